// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package prov

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/platform-engineering-labs/formae/pkg/plugin/resource"
	"github.com/stretchr/testify/assert"
)

type throttled struct{}

func (throttled) Error() string { return "slow down" }

func (throttled) ErrorCode() resource.OperationErrorCode {
	return resource.OperationErrorCodeThrottling
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, resource.OperationErrorCode(""), CodeOf(nil))
	assert.Equal(t, resource.OperationErrorCodeNotFound, CodeOf(fmt.Errorf("get: %w", &NotFoundError{Kind: "k", Name: "n"})))
	assert.Equal(t, resource.OperationErrorCodeServiceTimeout, CodeOf(fmt.Errorf("poll: %w", context.DeadlineExceeded)))
	assert.Equal(t, resource.OperationErrorCodeThrottling, CodeOf(fmt.Errorf("wrapped: %w", throttled{})))
	assert.Equal(t, resource.OperationErrorCodeGeneralServiceException, CodeOf(errors.New("boom")))
}

func TestProviderError_Unwrap(t *testing.T) {
	cause := &NotFoundError{Kind: "k", Name: "n"}
	err := NewProviderError("op-1", OpGet, "k:n", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, resource.OperationErrorCodeNotFound, err.Code)
	assert.Contains(t, err.Error(), `operation "op-1"`)
}
