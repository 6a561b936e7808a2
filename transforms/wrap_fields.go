package transforms

import (
	"fmt"
	"sort"

	"github.com/quiltql/quilt/common"
	"github.com/quiltql/quilt/delegate"
	"github.com/quiltql/quilt/gqlerrors"

	"github.com/samber/lo"
	"github.com/vektah/gqlparser/v2/ast"
)

// WrapFields moves a chosen set of fields of one object type underneath a
// synthetic intermediate type, exposed through a single new field.
//
// Schema phase: the wrapped fields leave the outer type and form the inner
// type, reachable via FieldName. Request phase: selections on the relocated
// fields are nested one level deeper under the synthetic field, aliases and
// arguments preserved. Result phase: the nested partial result is lifted
// back up and errors that passed through the synthetic field lose that one
// path segment.
//
// All three phases are no-ops when their preconditions are absent.
type WrapFields struct {
	delegate.NoopTransform

	// TypeName is the outer object type whose fields are wrapped.
	TypeName string
	// FieldName is the single new field exposing the inner type.
	FieldName string
	// WrapperName is the name of the synthetic inner type.
	WrapperName string
	// WrappedFields lists the fields to relocate; nil wraps every field.
	WrappedFields []string
}

var _ delegate.Transform = &WrapFields{}

func (t *WrapFields) sharedKey() string {
	return fmt.Sprintf("wrapFields:%s:%s:%s", t.TypeName, t.FieldName, t.WrapperName)
}

func (t *WrapFields) wraps(fieldName string) bool {
	if common.IsIntrospectionName(fieldName) {
		return false
	}
	if t.WrappedFields == nil {
		return true
	}
	return lo.Contains(t.WrappedFields, fieldName)
}

func (t *WrapFields) TransformSchema(schema *ast.Schema, cfg *delegate.SubschemaConfig) *ast.Schema {
	if schema == nil {
		return schema
	}

	def := schema.Types[t.TypeName]
	if def == nil || def.Kind != ast.Object {
		return schema
	}

	// already applied
	if _, ok := schema.Types[t.WrapperName]; ok {
		return schema
	}

	var wrapped, remaining ast.FieldList
	for _, f := range def.Fields {
		if t.wraps(f.Name) {
			wrapped = append(wrapped, f)
		} else {
			remaining = append(remaining, f)
		}
	}
	if len(wrapped) == 0 {
		return schema
	}

	inner := &ast.Definition{
		Kind:   ast.Object,
		Name:   t.WrapperName,
		Fields: wrapped,
	}

	def.Fields = append(remaining, &ast.FieldDefinition{
		Name: t.FieldName,
		Type: ast.NonNullNamedType(t.WrapperName, nil),
	})
	schema.Types[t.WrapperName] = inner

	return schema
}

func (t *WrapFields) TransformRequest(req *delegate.Request, dctx *delegate.DelegationContext, shared map[string]interface{}) *delegate.Request {
	op := req.Operation()
	if op == nil {
		return req
	}

	schema := dctx.Subschema.Schema
	root := rootDefinition(schema, op.Operation)
	if root == nil {
		return req
	}

	var touched [][]string
	selectionSet := t.wrapSelections(schema, root, op.SelectionSet, nil, &touched)
	if len(touched) == 0 {
		return req
	}

	shared[t.sharedKey()] = touched

	opCpy := *op
	opCpy.SelectionSet = selectionSet
	return req.WithOperation(&opCpy)
}

// wrapSelections rewrites sel bottom-up: children first, then the fields of
// TypeName present at this level move under one synthetic field. The alias
// path of every wrap position is recorded for the result phase.
func (t *WrapFields) wrapSelections(schema *ast.Schema, parent *ast.Definition, sel ast.SelectionSet, path []string, touched *[][]string) ast.SelectionSet {
	out := make(ast.SelectionSet, 0, len(sel))
	var wrapped ast.SelectionSet

	for _, s := range sel {
		switch s := s.(type) {
		case *ast.Field:
			f := *s
			if len(f.SelectionSet) > 0 {
				child := childDefinition(schema, parent, &f)
				f.SelectionSet = t.wrapSelections(schema, child, f.SelectionSet, append(path, responseKey(&f)), touched)
			}
			if parent != nil && parent.Name == t.TypeName && t.wraps(f.Name) {
				wrapped = append(wrapped, &f)
				continue
			}
			out = append(out, &f)
		case *ast.InlineFragment:
			frag := *s
			frag.SelectionSet = t.wrapSelections(schema, schema.Types[s.TypeCondition], s.SelectionSet, path, touched)
			out = append(out, &frag)
		default:
			out = append(out, s)
		}
	}

	if len(wrapped) > 0 {
		out = append(out, &ast.Field{
			Alias:        t.FieldName,
			Name:         t.FieldName,
			SelectionSet: wrapped,
		})
		*touched = append(*touched, append([]string{}, path...))
	}

	return out
}

func (t *WrapFields) TransformResult(res *delegate.Result, dctx *delegate.DelegationContext, shared map[string]interface{}) *delegate.Result {
	if res == nil {
		return res
	}

	touched, ok := shared[t.sharedKey()].([][]string)
	if !ok || len(touched) == 0 {
		return res
	}

	// outer wrap positions first, so inner recorded paths stay valid
	sort.Slice(touched, func(i, j int) bool {
		return len(touched[i]) < len(touched[j])
	})

	for _, path := range touched {
		t.liftData(res.Data, path)
	}

	var errs gqlerrors.ErrorList
	for _, err := range res.Errors {
		path := err.Path
		changed := false
		for _, prefix := range touched {
			if lifted, ok := t.liftErrorPath(path, prefix); ok {
				path = lifted
				changed = true
			}
		}
		if changed {
			errs = append(errs, gqlerrors.RelocatedError(err, path))
		} else {
			errs = append(errs, err)
		}
	}

	return res.WithErrors(errs)
}

// liftData merges the synthetic field's children back into its parent at
// every position the given alias path reaches, stepping through lists.
func (t *WrapFields) liftData(data interface{}, path []string) {
	switch data := data.(type) {
	case []interface{}:
		for _, el := range data {
			t.liftData(el, path)
		}
	case map[string]interface{}:
		if len(path) > 0 {
			t.liftData(data[path[0]], path[1:])
			return
		}
		inner, ok := data[t.FieldName].(map[string]interface{})
		if !ok {
			return
		}
		delete(data, t.FieldName)
		for k, v := range inner {
			data[k] = v
		}
	}
}

// liftErrorPath removes the synthetic field segment from errPath when it
// sits right after the recorded alias prefix. List indices between prefix
// segments are preserved.
func (t *WrapFields) liftErrorPath(errPath []interface{}, prefix []string) ([]interface{}, bool) {
	i := 0
	for _, seg := range prefix {
		matched := false
		for i < len(errPath) {
			s, isName := errPath[i].(string)
			if !isName {
				// list index, keep walking
				i++
				continue
			}
			if s != seg {
				return nil, false
			}
			i++
			matched = true
			break
		}
		if !matched {
			return nil, false
		}
	}

	for i < len(errPath) {
		if _, isName := errPath[i].(string); isName {
			break
		}
		i++
	}

	if i >= len(errPath) {
		return nil, false
	}
	if s, isName := errPath[i].(string); !isName || s != t.FieldName {
		return nil, false
	}

	lifted := append([]interface{}{}, errPath[:i]...)
	lifted = append(lifted, errPath[i+1:]...)
	return lifted, true
}

func responseKey(f *ast.Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

func rootDefinition(schema *ast.Schema, op ast.Operation) *ast.Definition {
	switch op {
	case ast.Mutation:
		return schema.Mutation
	case ast.Subscription:
		return schema.Subscription
	default:
		return schema.Query
	}
}

func childDefinition(schema *ast.Schema, parent *ast.Definition, f *ast.Field) *ast.Definition {
	if f.Definition != nil && f.Definition.Type != nil {
		return schema.Types[f.Definition.Type.Name()]
	}
	if parent == nil {
		return nil
	}
	fd := parent.Fields.ForName(f.Name)
	if fd == nil {
		return nil
	}
	return schema.Types[fd.Type.Name()]
}
