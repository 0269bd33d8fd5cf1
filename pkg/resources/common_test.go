// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/google/uuid"
	"github.com/platform-engineering-labs/formae/pkg/plugin/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	handles "github.com/platform-engineering-labs/formae-sequencer/pkg/model"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/prov"
)

func TestParseProps(t *testing.T) {
	props, err := parseProps(nil)
	require.NoError(t, err)
	assert.Empty(t, props)

	props, err = parseProps(json.RawMessage(" null "))
	require.NoError(t, err)
	assert.Empty(t, props)

	props, err = parseProps(json.RawMessage(`{"location":"eastus","sku":{"name":"Standard_LRS"}}`))
	require.NoError(t, err)
	assert.Equal(t, "eastus", props["location"])
	assert.Equal(t, map[string]any{"name": "Standard_LRS"}, props["sku"])

	_, err = parseProps(json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}

func TestPayloadTags(t *testing.T) {
	payload := json.RawMessage(`{"tags":{"env":"dev","count":3}}`)
	props, err := parseProps(payload)
	require.NoError(t, err)

	tags := payloadTags(payload, props)
	require.Len(t, tags, 1)
	assert.Equal(t, "dev", *tags["env"])

	assert.Nil(t, payloadTags(json.RawMessage(`{}`), map[string]any{}))
}

func TestSplitResourceID(t *testing.T) {
	parts := splitResourceID("/subscriptions/sub/resourceGroups/rg/providers/Microsoft.Network/virtualNetworks/vnet/subnets/default")
	assert.Equal(t, "sub", parts["subscriptions"])
	assert.Equal(t, "rg", parts["resourcegroups"])
	assert.Equal(t, "Microsoft.Network", parts["providers"])
	assert.Equal(t, "default", parts["subnets"])
	assert.Empty(t, splitResourceID(""))
}

func responseError(status int, code string) error {
	req, _ := http.NewRequest(http.MethodGet, "https://management.azure.com/subscriptions/sub", nil)
	return &azcore.ResponseError{
		ErrorCode:   code,
		StatusCode:  status,
		RawResponse: &http.Response{StatusCode: status, Request: req},
	}
}

func TestMapAzureErrorToOperationErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want resource.OperationErrorCode
	}{
		{"nil", nil, ""},
		{"response 404", responseError(http.StatusNotFound, "ResourceGroupNotFound"), resource.OperationErrorCodeNotFound},
		{"response 403", responseError(http.StatusForbidden, "AuthorizationFailed"), resource.OperationErrorCodeAccessDenied},
		{"response 401", responseError(http.StatusUnauthorized, "InvalidAuthenticationToken"), resource.OperationErrorCodeInvalidCredentials},
		{"response 409", responseError(http.StatusConflict, "RoleAssignmentExists"), resource.OperationErrorCodeResourceConflict},
		{"response 429", responseError(http.StatusTooManyRequests, "TooManyRequests"), resource.OperationErrorCodeThrottling},
		{"response 400", responseError(http.StatusBadRequest, "InvalidParameter"), resource.OperationErrorCodeInvalidRequest},
		{"response 400 quota", responseError(http.StatusBadRequest, "QuotaExceeded"), resource.OperationErrorCodeServiceLimitExceeded},
		{"response 503", responseError(http.StatusServiceUnavailable, "ServiceUnavailable"), resource.OperationErrorCodeServiceInternalError},
		{"wrapped response", fmt.Errorf("create: %w", responseError(http.StatusGatewayTimeout, "GatewayTimeout")), resource.OperationErrorCodeServiceTimeout},
		{"deadline", fmt.Errorf("poll: %w", context.DeadlineExceeded), resource.OperationErrorCodeServiceTimeout},
		{"message not found", errors.New("ResourceNotFound: vault missing"), resource.OperationErrorCodeNotFound},
		{"message conflict", errors.New("StorageAccountAlreadyTaken: Conflict"), resource.OperationErrorCodeResourceConflict},
		{"message network", errors.New("dial tcp: connection refused"), resource.OperationErrorCodeNetworkFailure},
		{"unknown", errors.New("something odd"), resource.OperationErrorCodeGeneralServiceException},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapAzureErrorToOperationErrorCode(tt.err))
		})
	}
}

func TestIsDeleteSuccessError(t *testing.T) {
	assert.False(t, isDeleteSuccessError(nil))
	assert.True(t, isDeleteSuccessError(responseError(http.StatusNotFound, "ResourceNotFound")))
	assert.False(t, isDeleteSuccessError(responseError(http.StatusConflict, "Conflict")))
}

func TestWrapAzureError(t *testing.T) {
	cause := errors.New("Throttling: slow down")
	err := wrapAzureError("failed to create vault", cause)

	assert.EqualError(t, err, "failed to create vault: Throttling: slow down")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, resource.OperationErrorCodeThrottling, prov.CodeOf(err))
}

func TestReadError(t *testing.T) {
	h := handles.NewHandle(ResourceTypeResourceGroup, "rg", nil)

	err := readError(h, errors.New("ResourceGroupNotFound"))
	assert.True(t, prov.IsNotFound(err))

	err = readError(h, errors.New("AuthorizationFailed"))
	assert.False(t, prov.IsNotFound(err))
	assert.Equal(t, resource.OperationErrorCodeAccessDenied, prov.CodeOf(err))
}

func TestScopeNames(t *testing.T) {
	rg := handles.NewHandle(ResourceTypeResourceGroup, "rg", nil)
	vnet := handles.NewHandle(ResourceTypeVirtualNetwork, "vnet", rg)
	subnet := handles.NewHandle(ResourceTypeSubnet, "default", vnet)

	name, err := resourceGroupName(subnet)
	require.NoError(t, err)
	assert.Equal(t, "rg", name)

	name, err = scopeName(subnet, ResourceTypeVirtualNetwork)
	require.NoError(t, err)
	assert.Equal(t, "vnet", name)

	_, err = resourceGroupName(handles.NewHandle(ResourceTypeStorageAccount, "acct", nil))
	assert.ErrorContains(t, err, "must be scoped to a "+ResourceTypeResourceGroup)

	byID := handles.NewHandle(ResourceTypeSubnet, "default", nil)
	byID.RemoteID = "azure:v1:2GaXoTzMSxkPGZlOvtnu3dqGDUr:/subscriptions/sub/resourceGroups/rg-id/providers/Microsoft.Network/virtualNetworks/vnet-id/subnets/default"
	name, err = resourceGroupName(byID)
	require.NoError(t, err)
	assert.Equal(t, "rg-id", name)
	name, err = scopeName(byID, ResourceTypeVirtualNetwork)
	require.NoError(t, err)
	assert.Equal(t, "vnet-id", name)

	parentByID := handles.NewHandle(ResourceTypeVirtualNetwork, "vnet", nil)
	parentByID.RemoteID = "/subscriptions/sub/resourceGroups/rg-parent/providers/Microsoft.Network/virtualNetworks/vnet"
	name, err = resourceGroupName(handles.NewHandle(ResourceTypeSubnet, "default", parentByID))
	require.NoError(t, err)
	assert.Equal(t, "rg-parent", name)

	name, err = listScopeName(ResourceTypeSubnet, vnet, ResourceTypeResourceGroup)
	require.NoError(t, err)
	assert.Equal(t, "rg", name)

	_, err = listScopeName(ResourceTypeStorageAccount, nil, ResourceTypeResourceGroup)
	assert.Error(t, err)
}

func TestAssignmentName(t *testing.T) {
	guid := "9f1c2b6e-7d3a-4b5c-8e9f-0a1b2c3d4e5f"
	assert.Equal(t, guid, assignmentName("/subscriptions/sub", guid))

	a := assignmentName("/subscriptions/SUB/resourceGroups/rg", "reader")
	b := assignmentName("/subscriptions/sub/resourcegroups/RG", "reader")
	assert.Equal(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)

	assert.NotEqual(t, a, assignmentName("/subscriptions/sub/resourceGroups/rg", "writer"))
}

type testEnum string

func TestEnumSliceAndStringSlice(t *testing.T) {
	got := enumSlice[testEnum]([]any{"get", 3, "list"})
	require.Len(t, got, 2)
	assert.Equal(t, testEnum("get"), *got[0])
	assert.Equal(t, testEnum("list"), *got[1])
	assert.Empty(t, enumSlice[testEnum](nil))

	strs, err := stringSlice([]any{"10.0.0.0/16"}, "addressPrefixes")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/16", *strs[0])

	_, err = stringSlice("10.0.0.0/16", "addressPrefixes")
	assert.ErrorContains(t, err, "addressPrefixes must be an array")
	_, err = stringSlice([]any{1}, "addressPrefixes")
	assert.ErrorContains(t, err, "addressPrefixes[0] must be a string")
}
