package stitch

import (
	"sort"

	"github.com/quiltql/quilt/common"
	"github.com/quiltql/quilt/delegate"

	"github.com/vektah/gqlparser/v2/ast"
)

// MergeTypeCandidate is one contribution of a named type. Subschema is nil
// for locally declared extra types and for synthetic conflict replacements.
type MergeTypeCandidate struct {
	Type              *ast.Definition
	Subschema         *delegate.SubschemaConfig
	TransformedSchema *ast.Schema
}

// TypeCandidateTable maps type names to their ordered candidate lists.
// Iteration follows discovery order, which makes merge determinism an
// explicit invariant instead of an accident of map iteration.
type TypeCandidateTable struct {
	names      []string
	candidates map[string][]*MergeTypeCandidate
}

func NewTypeCandidateTable() *TypeCandidateTable {
	return &TypeCandidateTable{
		candidates: make(map[string][]*MergeTypeCandidate),
	}
}

func (t *TypeCandidateTable) Add(name string, c *MergeTypeCandidate) {
	if _, ok := t.candidates[name]; !ok {
		t.names = append(t.names, name)
	}
	t.candidates[name] = append(t.candidates[name], c)
}

func (t *TypeCandidateTable) Get(name string) []*MergeTypeCandidate {
	return t.candidates[name]
}

// Names returns all type names in discovery order.
func (t *TypeCandidateTable) Names() []string {
	return t.names
}

func (t *TypeCandidateTable) Len() int {
	return len(t.names)
}

// RootNames holds the global names of the root operation types.
type RootNames struct {
	Query        string
	Mutation     string
	Subscription string
}

func DefaultRootNames() RootNames {
	return RootNames{
		Query:        common.DefaultQueryName,
		Mutation:     common.DefaultMutationName,
		Subscription: common.DefaultSubscriptionName,
	}
}

func (r RootNames) Contains(name string) bool {
	return name == r.Query || name == r.Mutation || name == r.Subscription
}

func (r RootNames) ForOperation(op ast.Operation) string {
	switch op {
	case ast.Mutation:
		return r.Mutation
	case ast.Subscription:
		return r.Subscription
	default:
		return r.Query
	}
}

// resolveRootNames resolves which type name plays each root operation role.
// Schema definition nodes take precedence over extension nodes; within each
// class the last seen node wins.
func resolveRootNames(docs []*ast.SchemaDocument) RootNames {
	roots := DefaultRootNames()

	apply := func(defs ast.SchemaDefinitionList) {
		for _, def := range defs {
			for _, ot := range def.OperationTypes {
				switch ot.Operation {
				case ast.Query:
					roots.Query = ot.Type
				case ast.Mutation:
					roots.Mutation = ot.Type
				case ast.Subscription:
					roots.Subscription = ot.Type
				}
			}
		}
	}

	// extensions first so definitions overwrite them
	for _, doc := range docs {
		apply(doc.SchemaExtension)
	}
	for _, doc := range docs {
		apply(doc.Schema)
	}

	return roots
}

// collect applies every subschema's schema-phase transforms once, then
// gathers type candidates: per subschema in list order, each named type of
// the transformed schema, with the subschema's own root types recorded under
// the global root names. Extra locally declared types come last.
func (s *Stitcher) collect() (*TypeCandidateTable, map[*delegate.SubschemaConfig]*ast.Schema, RootNames) {
	roots := resolveRootNames(s.SchemaDocuments)

	table := NewTypeCandidateTable()
	transformed := make(map[*delegate.SubschemaConfig]*ast.Schema, len(s.Subschemas))

	for _, cfg := range s.Subschemas {
		schema := cfg.Schema
		for _, t := range cfg.Transforms {
			schema = t.TransformSchema(schema, cfg)
		}
		transformed[cfg] = schema

		for _, name := range sortedTypeNames(schema) {
			def := schema.Types[name]

			candidate := &MergeTypeCandidate{
				Type:              def,
				Subschema:         cfg,
				TransformedSchema: schema,
			}

			switch {
			case schema.Query != nil && name == schema.Query.Name:
				table.Add(roots.Query, candidate)
			case schema.Mutation != nil && name == schema.Mutation.Name:
				table.Add(roots.Mutation, candidate)
			case schema.Subscription != nil && name == schema.Subscription.Name:
				table.Add(roots.Subscription, candidate)
			default:
				table.Add(name, candidate)
			}
		}
	}

	for _, def := range s.ExtraTypes {
		table.Add(def.Name, &MergeTypeCandidate{Type: def})
	}

	return table, transformed, roots
}

func sortedTypeNames(schema *ast.Schema) []string {
	var names []string
	for name, def := range schema.Types {
		if common.IsIntrospectionName(name) {
			continue
		}
		if def.Kind == ast.Scalar && common.IsBuiltinScalarName(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
