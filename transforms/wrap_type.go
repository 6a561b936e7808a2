package transforms

import (
	"github.com/quiltql/quilt/delegate"

	"github.com/vektah/gqlparser/v2/ast"
)

// WrapType introduces exactly one extra nesting level: every field of the
// named type moves inside a single synthetic inner type reachable through
// one new field. It is a thin composition over WrapFields.
type WrapType struct {
	// TypeName is the outer type to wrap.
	TypeName string
	// FieldName is the new field exposing the wrapper.
	FieldName string
	// WrapperName is the synthetic inner type's name.
	WrapperName string

	inner *WrapFields
}

var _ delegate.Transform = &WrapType{}

func (t *WrapType) wrapFields() *WrapFields {
	if t.inner == nil {
		t.inner = &WrapFields{
			TypeName:    t.TypeName,
			FieldName:   t.FieldName,
			WrapperName: t.WrapperName,
		}
	}
	return t.inner
}

func (t *WrapType) TransformSchema(schema *ast.Schema, cfg *delegate.SubschemaConfig) *ast.Schema {
	return t.wrapFields().TransformSchema(schema, cfg)
}

func (t *WrapType) TransformRequest(req *delegate.Request, dctx *delegate.DelegationContext, shared map[string]interface{}) *delegate.Request {
	return t.wrapFields().TransformRequest(req, dctx, shared)
}

func (t *WrapType) TransformResult(res *delegate.Result, dctx *delegate.DelegationContext, shared map[string]interface{}) *delegate.Result {
	return t.wrapFields().TransformResult(res, dctx, shared)
}
