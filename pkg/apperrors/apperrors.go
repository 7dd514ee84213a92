// Package apperrors holds the error taxonomy shared by the matcher, the stores and the API.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

// Error codes surfaced to API clients.
const (
	CodeProfileNotFound        = "profile_not_found"
	CodeNoMatchFound           = "no_match_found"
	CodeAlreadyLinkedElsewhere = "already_linked_elsewhere"
	CodeStoreUnavailable       = "store_unavailable"
	CodeCRMUnavailable         = "crm_unavailable"
)

var (
	// ErrProfileNotFound is returned when a profile id does not resolve. Not retried.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrNoMatchFound is returned by link-by-phone when no CRM customer clears the threshold.
	ErrNoMatchFound = errors.New("no matching CRM customer found")
	// ErrAlreadyLinkedElsewhere is returned when the best CRM customer is already matched to another profile.
	ErrAlreadyLinkedElsewhere = errors.New("CRM customer is already linked to another profile")
)

// StoreError is a persistence failure (connectivity, constraint violation).
type StoreError struct {
	Op  string
	Err error
}

// NewStoreError wraps err as a StoreError for the given operation.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// ExternalFetchError is a failure to read customers from the CRM.
type ExternalFetchError struct {
	Source string
	Err    error
}

// NewExternalFetchError wraps err as an ExternalFetchError.
func NewExternalFetchError(source string, err error) *ExternalFetchError {
	return &ExternalFetchError{Source: source, Err: err}
}

func (e *ExternalFetchError) Error() string {
	return fmt.Sprintf("fetch customers from %s: %v", e.Source, e.Err)
}

func (e *ExternalFetchError) Unwrap() error {
	return e.Err
}

// IsStoreError reports whether err wraps a StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// IsExternalFetchError reports whether err wraps an ExternalFetchError.
func IsExternalFetchError(err error) bool {
	var fe *ExternalFetchError
	return errors.As(err, &fe)
}

// ToHTTPError translates domain errors into HTTP errors for the echo error handler.
// Errors that are already HTTP errors, or unknown, are returned unchanged.
func ToHTTPError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrProfileNotFound):
		return httperror.NewHTTPError(http.StatusNotFound, "profile not found").AddMetaValue("code", CodeProfileNotFound)
	case errors.Is(err, ErrNoMatchFound):
		return httperror.NewHTTPError(http.StatusNotFound, "no matching customer found, check the phone number and try again").AddMetaValue("code", CodeNoMatchFound)
	case errors.Is(err, ErrAlreadyLinkedElsewhere):
		return httperror.NewHTTPError(http.StatusConflict, "this customer is already linked to another account").AddMetaValue("code", CodeAlreadyLinkedElsewhere)
	case IsStoreError(err):
		return httperror.NewHTTPError(http.StatusServiceUnavailable, "please try again").AddMetaValue("code", CodeStoreUnavailable)
	case IsExternalFetchError(err):
		return httperror.NewHTTPError(http.StatusBadGateway, "customer records are unavailable, please try again").AddMetaValue("code", CodeCRMUnavailable)
	}

	return err
}
