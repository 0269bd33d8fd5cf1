// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package prov

import (
	"context"
	"errors"
	"fmt"

	"github.com/platform-engineering-labs/formae/pkg/plugin/resource"
)

// Operation names used in ProviderError.
const (
	OpCreateOrUpdate = "create-or-update"
	OpDelete         = "delete"
	OpGet            = "get"
	OpList           = "list"
)

// NotFoundError is returned by Get when the resource does not exist.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// Coded is implemented by provider errors that know their operation error code.
type Coded interface {
	ErrorCode() resource.OperationErrorCode
}

// CodeOf classifies an adapter error.
func CodeOf(err error) resource.OperationErrorCode {
	if err == nil {
		return ""
	}
	var coded Coded
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	switch {
	case IsNotFound(err):
		return resource.OperationErrorCodeNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return resource.OperationErrorCodeServiceTimeout
	}
	return resource.OperationErrorCodeGeneralServiceException
}

// ProviderError wraps a failure returned by an Adapter while executing an
// operation.
type ProviderError struct {
	OperationID string
	Op          string
	Handle      string
	Code        resource.OperationErrorCode
	Err         error
}

// NewProviderError wraps err, classifying it with CodeOf.
func NewProviderError(operationID, op, handle string, err error) *ProviderError {
	return &ProviderError{
		OperationID: operationID,
		Op:          op,
		Handle:      handle,
		Code:        CodeOf(err),
		Err:         err,
	}
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("operation %q: %s %s failed (%s): %v", e.OperationID, e.Op, e.Handle, e.Code, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
