package upstream

import "fmt"

// FetchError reports a failed upstream request: a transport failure, a
// non-2xx status or an undecodable body.
type FetchError struct {
	Method string
	URL    string
	// Status is the response status, 0 when no response was received.
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Extensions tags the error for GraphQL responses.
func (e *FetchError) Extensions() map[string]any {
	ext := map[string]any{"code": "FETCH_ERROR"}
	if e.Status != 0 {
		ext["status"] = e.Status
	}
	return ext
}
