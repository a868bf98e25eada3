package merging

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

// ErrorKind classifies why a merge was refused or aborted.
type ErrorKind string

const (
	// KindNotFound: survivor or loser does not resolve to a record.
	KindNotFound ErrorKind = "not_found"
	// KindInvalidRequest: identical ids, mismatched kinds, foreign tenant, or a bad field selection.
	KindInvalidRequest ErrorKind = "invalid_request"
	// KindAlreadyMerged: either record was already retired into another.
	KindAlreadyMerged ErrorKind = "already_merged"
	// KindTransferFailure: the store failed while moving references; nothing was committed.
	KindTransferFailure ErrorKind = "transfer_failure"
)

// MergeError is returned by Orchestrator.Merge for every failure.
type MergeError struct {
	Kind    ErrorKind
	Message string
	// Entry names the manifest entry being transferred when the failure happened.
	Entry string
	Err   error
}

func newError(kind ErrorKind, format string, args ...any) *MergeError {
	return &MergeError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func transferFailure(entry string, err error) *MergeError {
	return &MergeError{
		Kind:    KindTransferFailure,
		Message: fmt.Sprintf("failed to transfer %s references", entry),
		Entry:   entry,
		Err:     err,
	}
}

func (e *MergeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}

func (e *MergeError) StatusCode() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindAlreadyMerged:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (e *MergeError) ToHTTPError() *httperror.HTTPError {
	herr := httperror.NewHTTPError(e.StatusCode(), e.Message).AddMetaValue("error_kind", string(e.Kind))
	if e.Entry != "" {
		herr = herr.AddMetaValue("manifest_entry", e.Entry)
	}
	return herr
}

func kindOf(err error) ErrorKind {
	var me *MergeError
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}

func IsNotFound(err error) bool { return kindOf(err) == KindNotFound }

func IsInvalidRequest(err error) bool { return kindOf(err) == KindInvalidRequest }

func IsAlreadyMerged(err error) bool { return kindOf(err) == KindAlreadyMerged }

func IsTransferFailure(err error) bool { return kindOf(err) == KindTransferFailure }
