package transforms

import (
	"testing"

	"github.com/quiltql/quilt/delegate"
	"github.com/quiltql/quilt/format"
	"github.com/quiltql/quilt/gqlerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

const wrapFieldsSchema = `
	type User {
		id: ID!
		name: String!
		age: Int!
	}

	type Query {
		getUser: User!
		getUsers: [User!]!
	}
`

func mustLoadSchema(input string) *ast.Schema {
	return gqlparser.MustLoadSchema(&ast.Source{Name: "fixture", Input: input})
}

func mustLoadRequest(schema *ast.Schema, query string) *delegate.Request {
	doc, err := gqlparser.LoadQuery(schema, query)
	if err != nil {
		panic(err)
	}
	return &delegate.Request{
		Document:      doc,
		OperationType: doc.Operations[0].Operation,
	}
}

func renderRequest(req *delegate.Request) string {
	return format.NewDebugBufferedFormatter().FormatSelectionSet(req.Operation().SelectionSet)
}

func newWrapFields() *WrapFields {
	return &WrapFields{
		TypeName:      "User",
		FieldName:     "profile",
		WrapperName:   "UserProfile",
		WrappedFields: []string{"name", "age"},
	}
}

func TestWrapFieldsTransformSchema(t *testing.T) {
	schema := mustLoadSchema(wrapFieldsSchema)

	res := newWrapFields().TransformSchema(schema, nil)

	userDef := res.Types["User"]
	require.NotNil(t, userDef)
	assert.Nil(t, userDef.Fields.ForName("name"))
	assert.Nil(t, userDef.Fields.ForName("age"))
	assert.NotNil(t, userDef.Fields.ForName("id"))

	profile := userDef.Fields.ForName("profile")
	require.NotNil(t, profile)
	assert.Equal(t, "UserProfile!", profile.Type.String())

	wrapper := res.Types["UserProfile"]
	require.NotNil(t, wrapper)
	assert.NotNil(t, wrapper.Fields.ForName("name"))
	assert.NotNil(t, wrapper.Fields.ForName("age"))
}

func TestWrapFieldsTransformSchemaIdempotent(t *testing.T) {
	schema := mustLoadSchema(wrapFieldsSchema)

	tr := newWrapFields()
	tr.TransformSchema(schema, nil)
	tr.TransformSchema(schema, nil)

	userDef := schema.Types["User"]
	assert.Len(t, userDef.Fields, 2)
}

func TestWrapFieldsTransformSchemaMissingType(t *testing.T) {
	schema := mustLoadSchema(`
		type Query {
			getName: String!
		}
	`)

	tr := newWrapFields()
	res := tr.TransformSchema(schema, nil)

	assert.Nil(t, res.Types["UserProfile"])
}

func TestWrapFieldsTransformRequest(t *testing.T) {
	schema := mustLoadSchema(wrapFieldsSchema)
	dctx := &delegate.DelegationContext{
		Subschema: &delegate.SubschemaConfig{Schema: schema},
	}

	tr := newWrapFields()
	shared := make(map[string]interface{})

	req := tr.TransformRequest(mustLoadRequest(schema, `{ getUser { id name age } }`), dctx, shared)

	assert.Equal(t, `{ getUser { id profile { name age } } }`, renderRequest(req))
	assert.Contains(t, shared, tr.sharedKey())
}

func TestWrapFieldsTransformRequestNoop(t *testing.T) {
	schema := mustLoadSchema(wrapFieldsSchema)
	dctx := &delegate.DelegationContext{
		Subschema: &delegate.SubschemaConfig{Schema: schema},
	}

	tr := newWrapFields()
	shared := make(map[string]interface{})

	// no wrapped field selected, nothing changes
	req := tr.TransformRequest(mustLoadRequest(schema, `{ getUser { id } }`), dctx, shared)

	assert.Equal(t, `{ getUser { id } }`, renderRequest(req))
	assert.NotContains(t, shared, tr.sharedKey())
}

func TestWrapFieldsRoundTrip(t *testing.T) {
	schema := mustLoadSchema(wrapFieldsSchema)
	dctx := &delegate.DelegationContext{
		Subschema: &delegate.SubschemaConfig{Schema: schema},
	}

	tr := newWrapFields()
	shared := make(map[string]interface{})

	tr.TransformRequest(mustLoadRequest(schema, `{ getUser { id name age } }`), dctx, shared)

	res := &delegate.Result{
		Data: map[string]interface{}{
			"getUser": map[string]interface{}{
				"id": "1",
				"profile": map[string]interface{}{
					"name": "Ann",
					"age":  30,
				},
			},
		},
		Errors: gqlerrors.ErrorList{
			{Message: "boom", Path: []interface{}{"getUser", "profile", "name"}},
			{Message: "stays", Path: []interface{}{"getUser", "id"}},
		},
	}

	res = tr.TransformResult(res, dctx, shared)

	assert.EqualValues(t, map[string]interface{}{
		"getUser": map[string]interface{}{
			"id":   "1",
			"name": "Ann",
			"age":  30,
		},
	}, res.Data)

	require.Len(t, res.Errors, 2)
	assert.Equal(t, []interface{}{"getUser", "name"}, res.Errors[0].Path)
	assert.Equal(t, []interface{}{"getUser", "id"}, res.Errors[1].Path)
}

func TestWrapFieldsRoundTripList(t *testing.T) {
	schema := mustLoadSchema(wrapFieldsSchema)
	dctx := &delegate.DelegationContext{
		Subschema: &delegate.SubschemaConfig{Schema: schema},
	}

	tr := newWrapFields()
	shared := make(map[string]interface{})

	req := tr.TransformRequest(mustLoadRequest(schema, `{ getUsers { id name } }`), dctx, shared)
	assert.Equal(t, `{ getUsers { id profile { name } } }`, renderRequest(req))

	res := &delegate.Result{
		Data: map[string]interface{}{
			"getUsers": []interface{}{
				map[string]interface{}{
					"id":      "1",
					"profile": map[string]interface{}{"name": "Ann"},
				},
				map[string]interface{}{
					"id":      "2",
					"profile": map[string]interface{}{"name": "Bob"},
				},
			},
		},
		Errors: gqlerrors.ErrorList{
			{Message: "boom", Path: []interface{}{"getUsers", 1, "profile", "name"}},
		},
	}

	res = tr.TransformResult(res, dctx, shared)

	assert.EqualValues(t, map[string]interface{}{
		"getUsers": []interface{}{
			map[string]interface{}{"id": "1", "name": "Ann"},
			map[string]interface{}{"id": "2", "name": "Bob"},
		},
	}, res.Data)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, []interface{}{"getUsers", 1, "name"}, res.Errors[0].Path)
}

func TestWrapFieldsTransformResultNoop(t *testing.T) {
	tr := newWrapFields()
	dctx := &delegate.DelegationContext{}

	res := &delegate.Result{
		Data: map[string]interface{}{"x": 1},
	}

	// nothing recorded during the request phase, result passes through
	out := tr.TransformResult(res, dctx, map[string]interface{}{})
	assert.Same(t, res, out)
}
