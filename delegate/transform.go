package delegate

import (
	"github.com/vektah/gqlparser/v2/ast"
)

// Transform is a rewrite unit applied around one delegation boundary.
//
// TransformSchema runs once at build time, when the subschema is composed
// into the overall schema; it must be idempotent. TransformRequest runs right
// before the request reaches the subschema's executor, TransformResult right
// after the executor returns. For one delegated call requests flow through
// transforms in registration order and results in reverse registration order,
// so the pipeline behaves like a stack.
//
// The shared map is created fresh per delegated call and handed to every
// request and result phase, letting a transform stash state at request time
// for use at result time. A transform whose preconditions are absent must
// return its input unchanged, never fail the call.
type Transform interface {
	TransformSchema(schema *ast.Schema, cfg *SubschemaConfig) *ast.Schema
	TransformRequest(req *Request, dctx *DelegationContext, shared map[string]interface{}) *Request
	TransformResult(res *Result, dctx *DelegationContext, shared map[string]interface{}) *Result
}

// NoopTransform implements Transform with all phases as identity functions.
// Embed it to implement only the phases a transform cares about.
type NoopTransform struct{}

var _ Transform = NoopTransform{}

func (NoopTransform) TransformSchema(schema *ast.Schema, cfg *SubschemaConfig) *ast.Schema {
	return schema
}

func (NoopTransform) TransformRequest(req *Request, dctx *DelegationContext, shared map[string]interface{}) *Request {
	return req
}

func (NoopTransform) TransformResult(res *Result, dctx *DelegationContext, shared map[string]interface{}) *Result {
	return res
}
