package common

import "strings"

const (
	// IntrospectionPrefix marks type and field names reserved for introspection.
	IntrospectionPrefix = "__"

	TypenameFieldName = "__typename"

	DefaultQueryName        = "Query"
	DefaultMutationName     = "Mutation"
	DefaultSubscriptionName = "Subscription"
)

var builtinScalarNames = map[string]struct{}{
	"Int":     {},
	"Float":   {},
	"String":  {},
	"Boolean": {},
	"ID":      {},
}

func IsIntrospectionName(name string) bool {
	return strings.HasPrefix(name, IntrospectionPrefix)
}

// IsBuiltinScalarName reports whether name is one of the five spec scalars.
func IsBuiltinScalarName(name string) bool {
	_, ok := builtinScalarNames[name]
	return ok
}
