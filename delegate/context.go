package delegate

import (
	"context"

	"github.com/vektah/gqlparser/v2/ast"
)

// Executor runs one delegated operation against a subschema. Expected
// execution failures come back inside the Result, never as a returned fault.
type Executor interface {
	Execute(ctx context.Context, req *Request) *Result
}

// Subscriber is implemented by executors able to serve subscription
// operations. Events are pushed to resCh until closeCh fires; a trailing nil
// signals completion.
type Subscriber interface {
	Subscribe(ctx context.Context, req *Request, closeCh <-chan struct{}, resCh chan<- *Result) error
}

// TypeMergeConfig configures merging for a single named type contributed by
// a subschema. Its presence alone forces the type to be merged; Merge, when
// set, overrides the default merge algorithm for that type.
type TypeMergeConfig struct {
	Merge func(typeName string, types []*ast.Definition) (*ast.Definition, error)
}

// SubschemaConfig bundles one independently-owned schema with its execution
// path. It is owned by the caller and referenced, never copied, by the
// stitching engine.
type SubschemaConfig struct {
	Schema     *ast.Schema
	Executor   Executor
	Transforms []Transform
	Merge      map[string]*TypeMergeConfig
}

// Request is one operation to be delegated to a subschema.
type Request struct {
	Document      *ast.QueryDocument
	Variables     map[string]interface{}
	OperationName string
	OperationType ast.Operation
}

// Operation returns the operation definition this request executes.
func (r *Request) Operation() *ast.OperationDefinition {
	if r.Document == nil {
		return nil
	}
	if r.OperationName != "" {
		return r.Document.Operations.ForName(r.OperationName)
	}
	if len(r.Document.Operations) > 0 {
		return r.Document.Operations[0]
	}
	return nil
}

// WithOperation returns a copy of r running a replacement operation
// definition. The document is copied shallowly, fragments are shared.
func (r *Request) WithOperation(op *ast.OperationDefinition) *Request {
	cpy := *r
	doc := &ast.QueryDocument{
		Operations: ast.OperationList{op},
	}
	if r.Document != nil {
		doc.Fragments = r.Document.Fragments
		doc.Position = r.Document.Position
	}
	cpy.Document = doc
	return &cpy
}

// DelegationContext carries the state of one delegated call. It is owned
// exclusively for the lifetime of that call and never shared between
// concurrent delegations.
type DelegationContext struct {
	Subschema *SubschemaConfig
	// TargetSchema is the composite schema the incoming operation was
	// written against.
	TargetSchema *ast.Schema
	// TransformedSchema is the subschema's schema after its transforms'
	// schema phases were applied at build time.
	TransformedSchema *ast.Schema
	OriginalRequest   *Request
	Request           *Request
	OperationType     ast.Operation
}
