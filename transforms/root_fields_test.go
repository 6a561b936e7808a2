package transforms

import (
	"testing"

	"github.com/quiltql/quilt/delegate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
)

const rootFieldsSchema = `
	type Query {
		getName: String!
		secret: String!
		other: String!
	}

	type Mutation {
		setName(name: String!): String!
	}
`

func newRootFields() *RootFields {
	return &RootFields{
		Query: func(fieldName string, field *ast.FieldDefinition) (string, bool) {
			switch fieldName {
			case "getName":
				return "fetchName", true
			case "secret":
				return "", false
			}
			return fieldName, true
		},
	}
}

func TestRootFieldsTransformSchema(t *testing.T) {
	schema := mustLoadSchema(rootFieldsSchema)

	tr := newRootFields()
	res := tr.TransformSchema(schema, nil)

	queryDef := res.Query
	require.NotNil(t, queryDef)
	assert.NotNil(t, queryDef.Fields.ForName("fetchName"))
	assert.Nil(t, queryDef.Fields.ForName("getName"))
	assert.Nil(t, queryDef.Fields.ForName("secret"))

	// mutation has no callback and stays untouched
	assert.NotNil(t, res.Mutation.Fields.ForName("setName"))
}

func TestRootFieldsTransformSchemaIdempotent(t *testing.T) {
	schema := mustLoadSchema(rootFieldsSchema)

	tr := newRootFields()
	tr.TransformSchema(schema, nil)
	tr.TransformSchema(schema, nil)

	assert.Len(t, schema.Query.Fields, 2)
}

func TestRootFieldsTransformRequest(t *testing.T) {
	schema := mustLoadSchema(rootFieldsSchema)

	tr := newRootFields()
	tr.TransformSchema(schema, nil)

	req := tr.TransformRequest(
		mustLoadRequest(schema, `{ fetchName }`),
		&delegate.DelegationContext{},
		map[string]interface{}{},
	)

	// the origin name goes over the wire, the exposed name stays as alias
	assert.Equal(t, `{ fetchName: getName }`, renderRequest(req))
}

func TestRootFieldsTransformRequestKeepsAlias(t *testing.T) {
	schema := mustLoadSchema(rootFieldsSchema)

	tr := newRootFields()
	tr.TransformSchema(schema, nil)

	req := tr.TransformRequest(
		mustLoadRequest(schema, `{ mine: fetchName }`),
		&delegate.DelegationContext{},
		map[string]interface{}{},
	)

	assert.Equal(t, `{ mine: getName }`, renderRequest(req))
}

func TestRootFieldsTransformRequestNoop(t *testing.T) {
	schema := mustLoadSchema(rootFieldsSchema)

	tr := newRootFields()
	tr.TransformSchema(schema, nil)

	in := mustLoadRequest(schema, `{ other }`)
	req := tr.TransformRequest(in, &delegate.DelegationContext{}, map[string]interface{}{})

	assert.Same(t, in, req)
}
