package transforms

import (
	"github.com/quiltql/quilt/delegate"

	"github.com/vektah/gqlparser/v2/ast"
)

// RootFieldFunc decides what happens to one root field: the name it should
// carry in the composite schema and whether it is kept at all.
type RootFieldFunc func(fieldName string, field *ast.FieldDefinition) (string, bool)

// RootFields renames or filters the fields of the schema's query, mutation
// and subscription types through per-root-type callbacks, without the caller
// needing to know the concrete root type names.
//
// The request phase maps renamed fields back to their origin names while
// keeping the exposed name as alias, so results and error paths come back
// already keyed correctly and no result phase is needed.
type RootFields struct {
	delegate.NoopTransform

	Query        RootFieldFunc
	Mutation     RootFieldFunc
	Subscription RootFieldFunc

	// renames maps exposed name -> origin name, per operation, filled at
	// schema time.
	renames map[ast.Operation]map[string]string
}

var _ delegate.Transform = &RootFields{}

func (t *RootFields) callbackFor(op ast.Operation) RootFieldFunc {
	switch op {
	case ast.Mutation:
		return t.Mutation
	case ast.Subscription:
		return t.Subscription
	default:
		return t.Query
	}
}

func (t *RootFields) TransformSchema(schema *ast.Schema, cfg *delegate.SubschemaConfig) *ast.Schema {
	if schema == nil || t.renames != nil {
		return schema
	}

	t.renames = make(map[ast.Operation]map[string]string)

	for _, root := range []struct {
		op  ast.Operation
		def *ast.Definition
	}{
		{ast.Query, schema.Query},
		{ast.Mutation, schema.Mutation},
		{ast.Subscription, schema.Subscription},
	} {
		cb := t.callbackFor(root.op)
		if cb == nil || root.def == nil {
			continue
		}

		renames := make(map[string]string)
		var fields ast.FieldList
		for _, f := range root.def.Fields {
			origin := f.Name
			newName, keep := cb(origin, f)
			if !keep {
				continue
			}
			if newName == "" {
				newName = origin
			}
			if newName != origin {
				fc := *f
				fc.Name = newName
				f = &fc
				renames[newName] = origin
			}
			fields = append(fields, f)
		}
		root.def.Fields = fields
		t.renames[root.op] = renames
	}

	return schema
}

func (t *RootFields) TransformRequest(req *delegate.Request, dctx *delegate.DelegationContext, shared map[string]interface{}) *delegate.Request {
	op := req.Operation()
	if op == nil {
		return req
	}

	renames := t.renames[op.Operation]
	if len(renames) == 0 {
		return req
	}

	changed := false
	selectionSet := make(ast.SelectionSet, 0, len(op.SelectionSet))
	for _, s := range op.SelectionSet {
		f, ok := s.(*ast.Field)
		if !ok {
			selectionSet = append(selectionSet, s)
			continue
		}
		origin, ok := renames[f.Name]
		if !ok {
			selectionSet = append(selectionSet, s)
			continue
		}

		fc := *f
		if fc.Alias == "" {
			fc.Alias = fc.Name
		}
		fc.Name = origin
		selectionSet = append(selectionSet, &fc)
		changed = true
	}

	if !changed {
		return req
	}

	opCpy := *op
	opCpy.SelectionSet = selectionSet
	return req.WithOperation(&opCpy)
}
