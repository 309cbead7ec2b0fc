// Package apperr defines the failure kinds surfaced by the relay.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failure.
type Kind string

const (
	// KindConnection means no vendor session could be established.
	KindConnection Kind = "CONNECTION_ERROR"
	// KindNoData means every requested index quote failed.
	KindNoData Kind = "NO_DATA"
	// KindVendor means the vendor reported a failure or an empty result.
	KindVendor Kind = "VENDOR_ERROR"
	// KindPartialData means some, but not all, index quotes failed. It is
	// logged and never returned to a caller.
	KindPartialData Kind = "PARTIAL_DATA"
	KindInternal    Kind = "INTERNAL_ERROR"
)

// Sentinels for errors.Is; matching is by Kind only.
var (
	ErrConnection  = &Error{Kind: KindConnection}
	ErrNoData      = &Error{Kind: KindNoData}
	ErrVendor      = &Error{Kind: KindVendor}
	ErrPartialData = &Error{Kind: KindPartialData}
)

// Failure names one item that could not be fetched and why.
type Failure struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Error is a classified failure. Message is the text shown to callers;
// Cause is kept for logs only.
type Error struct {
	Kind          Kind
	Message       string
	VendorMessage string
	Failures      []Failure
	Cause         error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// HTTPStatus maps the kind onto a response status. The frontend only
// distinguishes success from failure, so every kind is a 500.
func (e *Error) HTTPStatus() int {
	return http.StatusInternalServerError
}

// Connection wraps a session failure.
func Connection(cause error) *Error {
	return &Error{Kind: KindConnection, Message: "Failed to connect to Breeze API", Cause: cause}
}

// NoData reports that every item failed.
func NoData(failures []Failure) *Error {
	return &Error{Kind: KindNoData, Message: "Failed to fetch any index data", Failures: failures}
}

// Vendor carries the vendor's own message verbatim in VendorMessage.
func Vendor(vendorMessage string) *Error {
	return &Error{
		Kind:          KindVendor,
		Message:       "Breeze API Error: " + vendorMessage,
		VendorMessage: vendorMessage,
	}
}

// VendorCall wraps a transport or decoding failure of a vendor call. The
// caller sees the failure text itself.
func VendorCall(cause error) *Error {
	return &Error{Kind: KindVendor, Message: cause.Error(), VendorMessage: cause.Error(), Cause: cause}
}

// PartialData describes a partially failed batch for logging.
func PartialData(failures []Failure, total int) *Error {
	keys := make([]string, 0, len(failures))
	for _, f := range failures {
		keys = append(keys, f.Key)
	}
	return &Error{
		Kind:     KindPartialData,
		Message:  fmt.Sprintf("%d of %d items failed: %s", len(failures), total, strings.Join(keys, ", ")),
		Failures: failures,
	}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Public returns the status and message to expose for err. Unclassified
// errors become a generic 500.
func Public(err error) (int, string) {
	if e, ok := As(err); ok {
		return e.HTTPStatus(), e.Message
	}
	return http.StatusInternalServerError, "internal server error"
}
