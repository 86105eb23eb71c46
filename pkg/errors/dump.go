package errors

import (
	"errors"
	"fmt"
)

type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	HTTPStatus int    `json:"http_status,omitempty"`
	Endpoint   string `json:"endpoint,omitempty"`
}

// HTTPError annotates an error with the upstream status and endpoint
// that produced it. pkg/rest wraps transport failures in it so logs
// keep the wire context.
type HTTPError struct {
	Status   int
	Endpoint string
	Body     string
	Err      error
}

func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("http %d from %s: %v", e.Status, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("http %d from %s", e.Status, e.Endpoint)
}

func (e *HTTPError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		d.HTTPStatus = httpErr.Status
		d.Endpoint = httpErr.Endpoint
	}

	return d
}
