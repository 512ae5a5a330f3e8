package executor

import "errors"

// Location is a line/column position in the query document.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// GraphQLError represents an error that occurred during execution
type GraphQLError struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string {
	return e.Message
}

// ExecutionResult represents the result of executing a GraphQL query
type ExecutionResult struct {
	Data   any            `json:"data,omitempty"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

// extensionsCarrier is implemented by errors that contribute to the
// "extensions" member of a located error.
type extensionsCarrier interface {
	Extensions() map[string]any
}

// NewLocatedError builds a GraphQLError for err at path, copying extensions
// from the first error in the chain that provides them.
func NewLocatedError(err error, path Path) GraphQLError {
	ge := GraphQLError{Message: err.Error(), Path: path}
	var ec extensionsCarrier
	if errors.As(err, &ec) {
		ge.Extensions = ec.Extensions()
	}
	return ge
}

// Request is one GraphQL request as received from a client.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}
