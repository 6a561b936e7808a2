package delegate

import (
	"context"

	"github.com/quiltql/quilt/gqlerrors"
)

// TransformRequest pushes dctx.Request through the subschema's transforms in
// registration order and records the rewritten request on the context.
func TransformRequest(dctx *DelegationContext, shared map[string]interface{}) *Request {
	req := dctx.Request
	for _, t := range dctx.Subschema.Transforms {
		req = t.TransformRequest(req, dctx, shared)
	}
	dctx.Request = req
	return req
}

// TransformResult pops res back through the subschema's transforms in
// reverse registration order, matching the request-side push.
func TransformResult(res *Result, dctx *DelegationContext, shared map[string]interface{}) *Result {
	transforms := dctx.Subschema.Transforms
	for i := len(transforms) - 1; i >= 0; i-- {
		res = transforms[i].TransformResult(res, dctx, shared)
	}
	return res
}

// Delegate runs one delegated call end to end: the request phase of every
// transform, the subschema's executor, then the result phase in reverse
// order. The shared scratch map is created fresh for the call.
func Delegate(ctx context.Context, dctx *DelegationContext) *Result {
	shared := make(map[string]interface{})

	req := TransformRequest(dctx, shared)

	if err := ctx.Err(); err != nil {
		return &Result{Errors: gqlerrors.FormatError(err)}
	}

	res := dctx.Subschema.Executor.Execute(ctx, req)
	if res == nil {
		res = &Result{}
	}

	return TransformResult(res, dctx, shared)
}
