package stitch

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/quiltql/quilt/common"
	"github.com/quiltql/quilt/delegate"

	"github.com/samber/lo"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
)

// MergePolicy decides whether all candidates of a type name are merged into
// one composite type or a single winner is selected.
type MergePolicy interface {
	ShouldMerge(typeName string, candidates []*MergeTypeCandidate) bool
}

// MergeAll merges every type except built-in scalars, which are never merged.
type MergeAll struct{}

func (MergeAll) ShouldMerge(typeName string, candidates []*MergeTypeCandidate) bool {
	for _, c := range candidates {
		if c.Type.Kind == ast.Scalar && common.IsBuiltinScalarName(c.Type.Name) {
			return false
		}
	}
	return true
}

// MergeTypeNames merges exactly the listed type names.
type MergeTypeNames []string

func (m MergeTypeNames) ShouldMerge(typeName string, candidates []*MergeTypeCandidate) bool {
	return lo.Contains(m, typeName)
}

// MergePolicyFunc adapts a predicate to the MergePolicy interface.
type MergePolicyFunc func(typeName string, candidates []*MergeTypeCandidate) bool

func (f MergePolicyFunc) ShouldMerge(typeName string, candidates []*MergeTypeCandidate) bool {
	return f(typeName, candidates)
}

type conflictOutcomeKind int

const (
	conflictLeftWins conflictOutcomeKind = iota
	conflictRightWins
	conflictReplace
)

// ConflictOutcome is the tagged result of a type conflict callback. The
// "neither input" case is explicit: a replacement type is a terminal state
// winning every subsequent comparison.
type ConflictOutcome struct {
	kind        conflictOutcomeKind
	replacement *ast.Definition
}

func LeftWins() ConflictOutcome {
	return ConflictOutcome{kind: conflictLeftWins}
}

func RightWins() ConflictOutcome {
	return ConflictOutcome{kind: conflictRightWins}
}

func ReplaceWith(def *ast.Definition) ConflictOutcome {
	return ConflictOutcome{kind: conflictReplace, replacement: def}
}

// TypeConflictInfo hands the callback the origin of both competing types.
// A nil Subschema on either side marks a synthetic type.
type TypeConflictInfo struct {
	Left  *MergeTypeCandidate
	Right *MergeTypeCandidate
}

type OnTypeConflictFunc func(left, right *ast.Definition, info *TypeConflictInfo) ConflictOutcome

// Stitcher composes a list of subschemas into one composite schema.
type Stitcher struct {
	Subschemas []*delegate.SubschemaConfig

	// ExtraTypes are locally declared types appended after every
	// subschema's candidates, in declaration order.
	ExtraTypes      []*ast.Definition
	ExtraDirectives []*ast.DirectiveDefinition

	// SchemaDocuments carry schema-definition and extension nodes naming
	// which type plays which root operation role.
	SchemaDocuments []*ast.SchemaDocument

	// MergeDirectives lets subschema directives register in the shared
	// directive table, later subschemas silently overwriting earlier ones.
	MergeDirectives bool

	MergeTypes     MergePolicy
	OnTypeConflict OnTypeConflictFunc

	// TypeMerge overrides the merge algorithm for all merged types.
	// Defaults to DefaultTypeMerge.
	TypeMerge TypeMergeFunc
}

// Result is the outcome of one stitch: the immutable composite schema, the
// routing table and the per-subschema transformed schemas needed to build
// delegation contexts.
type Result struct {
	Schema             *ast.Schema
	Routes             *RouteTable
	RootNames          RootNames
	TransformedSchemas map[*delegate.SubschemaConfig]*ast.Schema
}

// Stitch collects type candidates from every subschema, merges or selects
// per type name and rebuilds the result into one consistent schema.
func (s *Stitcher) Stitch() (*Result, error) {
	if len(s.Subschemas) == 0 {
		return nil, errors.New("no subschemas provided")
	}
	for _, cfg := range s.Subschemas {
		if cfg.Schema == nil {
			return nil, errors.New("subschema without schema")
		}
	}

	table, transformed, roots := s.collect()
	directives := s.collectDirectives(transformed)

	mergeFn := s.TypeMerge
	if mergeFn == nil {
		mergeFn = DefaultTypeMerge
	}

	var defs []*ast.Definition
	for _, name := range table.Names() {
		candidates := table.Get(name)

		var def *ast.Definition
		var err error
		if s.shouldMergeType(name, candidates, roots) {
			fn := customMergeFor(name, candidates)
			if fn == nil {
				fn = mergeFn
			}
			def, err = fn(name, candidates)
		} else {
			def = s.selectType(candidates)
		}
		if err != nil {
			return nil, fmt.Errorf("unable to merge type %s: %w", name, err)
		}

		defs = append(defs, def)
	}

	schema, err := buildSchema(defs, directives, roots)
	if err != nil {
		return nil, err
	}

	return &Result{
		Schema:             schema,
		Routes:             buildRoutes(table),
		RootNames:          roots,
		TransformedSchemas: transformed,
	}, nil
}

func (s *Stitcher) shouldMergeType(name string, candidates []*MergeTypeCandidate, roots RootNames) bool {
	// root operation types are always composed from all candidates
	if roots.Contains(name) {
		return true
	}

	if s.MergeTypes != nil && s.MergeTypes.ShouldMerge(name, candidates) {
		return true
	}

	// external per-type merge configuration forces a merge
	for _, c := range candidates {
		if c.Subschema != nil && c.Subschema.Merge[name] != nil {
			return true
		}
	}

	return false
}

// customMergeFor returns the per-type merge override, if any candidate's
// subschema configured one.
func customMergeFor(name string, candidates []*MergeTypeCandidate) TypeMergeFunc {
	for _, c := range candidates {
		if c.Subschema == nil {
			continue
		}
		if mc := c.Subschema.Merge[name]; mc != nil && mc.Merge != nil {
			return func(typeName string, cs []*MergeTypeCandidate) (*ast.Definition, error) {
				types := make([]*ast.Definition, len(cs))
				for i, cand := range cs {
					types[i] = cand.Type
				}
				return mc.Merge(typeName, types)
			}
		}
	}
	return nil
}

// selectType picks a single winner. Without a conflict callback the last
// candidate wins. With one, candidates reduce pairwise left to right; a
// replacement returned by the callback is terminal and wins every
// subsequent comparison.
func (s *Stitcher) selectType(candidates []*MergeTypeCandidate) *ast.Definition {
	if s.OnTypeConflict == nil {
		return candidates[len(candidates)-1].Type
	}

	acc := candidates[0]
	replaced := false

	for _, next := range candidates[1:] {
		if replaced {
			break
		}

		outcome := s.OnTypeConflict(acc.Type, next.Type, &TypeConflictInfo{
			Left:  acc,
			Right: next,
		})

		switch outcome.kind {
		case conflictRightWins:
			acc = next
		case conflictReplace:
			acc = &MergeTypeCandidate{Type: outcome.replacement}
			replaced = true
		}
	}

	return acc.Type
}

type directiveTable struct {
	names []string
	defs  map[string]*ast.DirectiveDefinition
}

func (t *directiveTable) set(def *ast.DirectiveDefinition) {
	if _, ok := t.defs[def.Name]; !ok {
		t.names = append(t.names, def.Name)
	}
	t.defs[def.Name] = def
}

func (s *Stitcher) collectDirectives(transformed map[*delegate.SubschemaConfig]*ast.Schema) *directiveTable {
	table := &directiveTable{defs: make(map[string]*ast.DirectiveDefinition)}

	if s.MergeDirectives {
		for _, cfg := range s.Subschemas {
			schema := transformed[cfg]
			for _, name := range sortedDirectiveNames(schema) {
				table.set(schema.Directives[name])
			}
		}
	}

	for _, def := range s.ExtraDirectives {
		table.set(def)
	}

	return table
}

// buildSchema renders the merged definitions back to SDL and reloads them,
// producing a schema whose internal references are consistent again.
func buildSchema(defs []*ast.Definition, directives *directiveTable, roots RootNames) (*ast.Schema, error) {
	known := make(map[string]*ast.Definition, len(defs))
	for _, def := range defs {
		known[def.Name] = def
	}

	doc := &ast.SchemaDocument{}

	for _, name := range directives.names {
		doc.Directives = append(doc.Directives, directives.defs[name])
	}

	for _, def := range defs {
		doc.Definitions = append(doc.Definitions, scrubDirectives(def, directives.defs))
	}

	schemaDef := &ast.SchemaDefinition{}
	for _, ot := range []struct {
		op   ast.Operation
		name string
	}{
		{ast.Query, roots.Query},
		{ast.Mutation, roots.Mutation},
		{ast.Subscription, roots.Subscription},
	} {
		if def, ok := known[ot.name]; ok && len(def.Fields) > 0 {
			schemaDef.OperationTypes = append(schemaDef.OperationTypes, &ast.OperationTypeDefinition{
				Operation: ot.op,
				Type:      ot.name,
			})
		}
	}
	if len(schemaDef.OperationTypes) == 0 {
		return nil, errors.New("composite schema has no root operation types")
	}
	doc.Schema = ast.SchemaDefinitionList{schemaDef}

	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatSchemaDocument(doc)

	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "stitched", Input: buf.String()})
	if err != nil {
		return nil, fmt.Errorf("unable to load stitched schema: %w", err)
	}

	return schema, nil
}

// scrubDirectives drops directive usages whose definition didn't make it
// into the shared directive table, so the rebuilt schema stays valid.
func scrubDirectives(def *ast.Definition, known map[string]*ast.DirectiveDefinition) *ast.Definition {
	keep := func(list ast.DirectiveList) ast.DirectiveList {
		var res ast.DirectiveList
		for _, d := range list {
			if _, ok := known[d.Name]; ok {
				res = append(res, d)
			}
		}
		return res
	}

	cpy := copyDefinition(def)
	cpy.Directives = keep(cpy.Directives)

	for i, f := range cpy.Fields {
		if len(f.Directives) == 0 {
			continue
		}
		fc := *f
		fc.Directives = keep(fc.Directives)
		cpy.Fields[i] = &fc
	}

	for i, ev := range cpy.EnumValues {
		if len(ev.Directives) == 0 {
			continue
		}
		evc := *ev
		evc.Directives = keep(evc.Directives)
		cpy.EnumValues[i] = &evc
	}

	return cpy
}

func buildRoutes(table *TypeCandidateTable) *RouteTable {
	routes := NewRouteTable()
	for _, name := range table.Names() {
		for _, c := range table.Get(name) {
			if c.Subschema == nil || c.Type.Kind != ast.Object {
				continue
			}
			for _, f := range c.Type.Fields {
				if common.IsIntrospectionName(f.Name) {
					continue
				}
				routes.Set(name, f.Name, c.Subschema)
			}
		}
	}
	return routes
}

func sortedDirectiveNames(schema *ast.Schema) []string {
	var names []string
	for name := range schema.Directives {
		if isBuiltinDirectiveName(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isBuiltinDirectiveName(name string) bool {
	switch name {
	case "skip", "include", "deprecated", "specifiedBy":
		return true
	}
	return false
}
