package quilt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/quiltql/quilt/common"
	"github.com/quiltql/quilt/delegate"
	"github.com/quiltql/quilt/gqlerrors"
	"github.com/quiltql/quilt/requests"
	"github.com/quiltql/quilt/stitch"

	"github.com/samber/lo"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// Gateway serves one composite schema stitched from several subschemas,
// splitting every incoming operation by root field and delegating each
// slice to the subschema that owns it.
type Gateway struct {
	schema             *ast.Schema
	routes             *stitch.RouteTable
	rootNames          stitch.RootNames
	transformedSchemas map[*delegate.SubschemaConfig]*ast.Schema
}

type GatewayOption func(*stitch.Stitcher)

func WithMergePolicy(p stitch.MergePolicy) GatewayOption {
	return func(s *stitch.Stitcher) {
		s.MergeTypes = p
	}
}

func WithTypeConflictFunc(f stitch.OnTypeConflictFunc) GatewayOption {
	return func(s *stitch.Stitcher) {
		s.OnTypeConflict = f
	}
}

func WithExtraTypes(defs ...*ast.Definition) GatewayOption {
	return func(s *stitch.Stitcher) {
		s.ExtraTypes = append(s.ExtraTypes, defs...)
	}
}

func WithExtraDirectives(defs ...*ast.DirectiveDefinition) GatewayOption {
	return func(s *stitch.Stitcher) {
		s.ExtraDirectives = append(s.ExtraDirectives, defs...)
	}
}

func WithSchemaDocuments(docs ...*ast.SchemaDocument) GatewayOption {
	return func(s *stitch.Stitcher) {
		s.SchemaDocuments = append(s.SchemaDocuments, docs...)
	}
}

func WithMergeDirectives() GatewayOption {
	return func(s *stitch.Stitcher) {
		s.MergeDirectives = true
	}
}

func WithTypeMerge(fn stitch.TypeMergeFunc) GatewayOption {
	return func(s *stitch.Stitcher) {
		s.TypeMerge = fn
	}
}

func NewGateway(subschemas []*delegate.SubschemaConfig, options ...GatewayOption) (*Gateway, error) {
	stitcher := &stitch.Stitcher{
		Subschemas: subschemas,
		MergeTypes: stitch.MergeAll{},
	}

	for _, optionFunc := range options {
		optionFunc(stitcher)
	}

	sr, err := stitcher.Stitch()
	if err != nil {
		return nil, fmt.Errorf("unable to stitch schemas: %w", err)
	}

	return &Gateway{
		schema:             sr.Schema,
		routes:             sr.Routes,
		rootNames:          sr.RootNames,
		transformedSchemas: sr.TransformedSchemas,
	}, nil
}

// Schema returns the composite schema served by the gateway.
func (g *Gateway) Schema() *ast.Schema {
	return g.schema
}

type Result struct {
	Errors gqlerrors.ErrorList    `json:"errors,omitempty"`
	Data   map[string]interface{} `json:"data"`

	index int `json:"-"`
}

type Results []*Result

func (rs Results) Emit(w http.ResponseWriter, isBatch bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	e := json.NewEncoder(w)
	if isBatch {
		e.Encode(rs)
	} else {
		e.Encode(rs[0])
	}
}

// Execute resolves one query or mutation against the composite schema.
// Subscriptions are served over the websocket endpoint instead.
func (g *Gateway) Execute(ctx context.Context, request *requests.Request) *Result {
	query, qerr := gqlparser.LoadQuery(g.schema, request.Query)
	if qerr != nil {
		return &Result{
			Errors: gqlerrors.FormatError(qerr),
			Data:   nil,
		}
	}

	var operation *ast.OperationDefinition
	if request.OperationName != nil {
		operation = query.Operations.ForName(*request.OperationName)
	} else if len(query.Operations) == 1 && query.Operations[0].Name == "" {
		operation = query.Operations[0]
	}

	if operation == nil {
		var err error
		if request.OperationName != nil {
			err = fmt.Errorf(
				"unable to extract query for operation %s",
				*request.OperationName,
			)
		} else {
			err = errors.New("many queries provided, but no operationName")
		}
		return &Result{
			Errors: gqlerrors.ErrorList{
				gqlerrors.NewError(gqlerrors.ValidationFailedError, err),
			},
			Data: nil,
		}
	}

	if operation.Operation == ast.Subscription {
		return &Result{
			Errors: gqlerrors.ErrorList{
				gqlerrors.NewError(
					gqlerrors.ValidationFailedError,
					errors.New("subscriptions are only served over websocket connections"),
				),
			},
			Data: nil,
		}
	}

	rootName := g.rootNames.ForOperation(operation.Operation)
	rootDef := g.schema.Types[rootName]

	result := make(map[string]interface{})
	var resErrors gqlerrors.ErrorList

	// split root fields between their owning subschemas, preserving the
	// order fields first appear in
	var order []*delegate.SubschemaConfig
	groups := make(map[*delegate.SubschemaConfig]ast.SelectionSet)

	for _, field := range common.SelectionSetToFields(operation.SelectionSet, rootDef) {
		if field.Name == common.TypenameFieldName {
			result[responseKey(field)] = rootName
			continue
		}

		if common.IsIntrospectionName(field.Name) {
			resErrors = append(resErrors, gqlerrors.NewError(
				gqlerrors.ValidationFailedError,
				fmt.Errorf("introspection field %s is not supported", field.Name),
			))
			continue
		}

		cfg, ok := g.routes.Get(rootName, field.Name)
		if !ok {
			resErrors = append(resErrors, gqlerrors.NewError(
				gqlerrors.ValidationFailedError,
				fmt.Errorf("no subschema serves field %s.%s", rootName, field.Name),
			))
			continue
		}

		if groups[cfg] == nil {
			order = append(order, cfg)
		}
		groups[cfg] = append(groups[cfg], field)
	}

	runOne := func(cfg *delegate.SubschemaConfig) *delegate.Result {
		op := &ast.OperationDefinition{
			Operation:           operation.Operation,
			Name:                operation.Name,
			VariableDefinitions: operation.VariableDefinitions,
			SelectionSet:        groups[cfg],
		}

		req := &delegate.Request{
			Document: &ast.QueryDocument{
				Operations: ast.OperationList{op},
				Fragments:  query.Fragments,
			},
			Variables:     request.Variables,
			OperationName: operation.Name,
			OperationType: operation.Operation,
		}

		return delegate.Delegate(ctx, &delegate.DelegationContext{
			Subschema:         cfg,
			TargetSchema:      g.schema,
			TransformedSchema: g.transformedSchemas[cfg],
			OriginalRequest:   req,
			Request:           req,
			OperationType:     operation.Operation,
		})
	}

	partials := make([]*delegate.Result, len(order))

	if operation.Operation == ast.Mutation {
		// mutations run sequentially in field order
		for i, cfg := range order {
			partials[i] = runOne(cfg)
		}
	} else {
		partials, _ = common.AsyncMapReduce(
			lo.Range(len(order)),
			partials,
			func(i int) (lo.Tuple2[int, *delegate.Result], error) {
				return lo.T2(i, runOne(order[i])), nil
			},
			func(acc []*delegate.Result, value lo.Tuple2[int, *delegate.Result]) []*delegate.Result {
				acc[value.A] = value.B
				return acc
			},
		)
	}

	for _, partial := range partials {
		if partial == nil {
			continue
		}
		if partial.Data != nil {
			result = mergeMaps(result, partial.Data)
		}
		resErrors = append(resErrors, partial.Errors...)
	}

	return &Result{
		Errors: resErrors,
		Data:   result,
	}
}

// queryHandler responds to queries on POST requests. POST requests can
// either be a single object with { query, variables, operationName } or a
// list of that object.
func (g *Gateway) queryHandler(w http.ResponseWriter, r *http.Request) {
	rs, err := requests.Parse(r)
	if err != nil {
		emitError(
			w,
			http.StatusUnprocessableEntity,
			err,
		)
		return
	}

	results, _ := common.AsyncMapReduce(
		lo.Range(len(rs.Requests)),
		make(Results, len(rs.Requests)),
		func(index int) (*Result, error) {
			result := g.Execute(r.Context(), rs.Requests[index])
			result.index = index
			return result, nil
		},
		func(acc Results, value *Result) Results {
			acc[value.index] = value
			return acc
		},
	)

	// emit the response
	results.Emit(w, rs.IsBatchMode)
}

func emitError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := map[string]interface{}{
		"data":   nil,
		"errors": gqlerrors.FormatError(err),
	}

	e := json.NewEncoder(w)
	e.Encode(resp)
}

func (g *Gateway) Handler(w http.ResponseWriter, r *http.Request) {
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		g.subscriptionHandler(w, r)
		return
	}

	g.queryHandler(w, r)
}

func responseKey(field *ast.Field) string {
	if field.Alias != "" {
		return field.Alias
	}
	return field.Name
}
