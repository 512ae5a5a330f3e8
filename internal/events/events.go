// Package events defines the values published on the eventbus. Handlers
// receive the publishing context, which carries the request id.
package events

import (
	"net/http"
	"time"
)

// HTTPStart is published when the server receives a request.
type HTTPStart struct {
	Request *http.Request
}

// HTTPFinish is published once the response is written.
type HTTPFinish struct {
	Request  *http.Request
	Status   int
	Duration time.Duration
}

// GraphQLStart is published before a document is validated and executed.
// OperationType is empty if the document did not parse.
type GraphQLStart struct {
	Query         string
	OperationName string
	OperationType string
}

// GraphQLFinish is published with every error of the result, request and
// field errors alike.
type GraphQLFinish struct {
	Query         string
	OperationName string
	OperationType string
	Errors        []error
	Duration      time.Duration
}

// FetchStart is published before an upstream request is sent. ID pairs it
// with its FetchFinish.
type FetchStart struct {
	ID     string
	Method string
	URL    string
}

// FetchFinish is published when an upstream request completes. Status is 0
// if no response arrived.
type FetchFinish struct {
	ID       string
	Method   string
	URL      string
	Status   int
	Err      error
	Duration time.Duration
}
