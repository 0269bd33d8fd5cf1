// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package resources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/platform-engineering-labs/formae/pkg/model"
	"github.com/platform-engineering-labs/formae/pkg/plugin/resource"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/client"
	handles "github.com/platform-engineering-labs/formae-sequencer/pkg/model"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/nativeid"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/prov"
)

// parseProps decodes a descriptor payload. An empty payload is an empty object.
func parseProps(payload json.RawMessage) (map[string]any, error) {
	props := make(map[string]any)
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return props, nil
	}
	if err := json.Unmarshal(trimmed, &props); err != nil {
		return nil, fmt.Errorf("failed to parse resource properties: %w", err)
	}
	return props, nil
}

// payloadTags merges formae-style "Tags" ([{Key, Value}]) with an ARM-style
// "tags" object. ARM-style entries win on conflict. Returns nil if no tags are present.
func payloadTags(payload json.RawMessage, props map[string]any) map[string]*string {
	tags := formaeTagsToAzureTags(payload)
	raw, ok := props["tags"].(map[string]any)
	if !ok || len(raw) == 0 {
		return tags
	}
	if tags == nil {
		tags = make(map[string]*string, len(raw))
	}
	for k, v := range raw {
		if s, ok := v.(string); ok {
			tags[k] = stringPtr(s)
		}
	}
	return tags
}

// formaeTagsToAzureTags converts Formae tags from resource properties to Azure SDK format.
// Extracts tags using model.GetTagsFromProperties and converts to map[string]*string.
// Returns nil if no tags are present.
func formaeTagsToAzureTags(properties []byte) map[string]*string {
	if len(properties) == 0 {
		return nil
	}
	tags := model.GetTagsFromProperties(properties)
	if len(tags) == 0 {
		return nil
	}
	azureTags := make(map[string]*string)
	for _, tag := range tags {
		val := tag.Value
		azureTags[tag.Key] = &val
	}
	return azureTags
}

// locationOf returns the payload location or the configured default.
func locationOf(props map[string]any, c *client.Client) string {
	if location, ok := props["location"].(string); ok && location != "" {
		return location
	}
	return c.Location()
}

// resourceGroupName returns the name of the resource group containing target.
func resourceGroupName(target *handles.Handle) (string, error) {
	return scopeName(target, ResourceTypeResourceGroup)
}

// armIDSegments maps container kinds to their ARM resource ID segment.
var armIDSegments = map[string]string{
	ResourceTypeResourceGroup:  "resourcegroups",
	ResourceTypeVirtualNetwork: "virtualnetworks",
	ResourceTypeFlexibleServer: "flexibleservers",
}

// scopeName returns the name of the nearest ancestor of the given kind. A
// handle without that ancestor falls back to the remote IDs recorded on it or
// its scopes, so handles known only by ARM ID still resolve.
func scopeName(target *handles.Handle, kind string) (string, error) {
	if s := target.Ancestor(kind); s != nil && s.Name != "" {
		return s.Name, nil
	}
	if segment, ok := armIDSegments[kind]; ok {
		for h := target; h != nil; h = h.Scope {
			if name := splitResourceID(armIDOf(h))[segment]; name != "" {
				return name, nil
			}
		}
	}
	return "", fmt.Errorf("%s %q must be scoped to a %s", target.Kind, target.Name, kind)
}

// listScopeName is scopeName for List queries, where scope is the container itself.
func listScopeName(kind string, scope *handles.Handle, scopeKind string) (string, error) {
	for s := scope; s != nil; s = s.Scope {
		if s.Kind == scopeKind && s.Name != "" {
			return s.Name, nil
		}
	}
	return "", fmt.Errorf("listing %s requires a %s scope", kind, scopeKind)
}

// armIDOf returns the raw ARM ID recorded on a handle, or "".
func armIDOf(h *handles.Handle) string {
	if h == nil {
		return ""
	}
	return nativeid.NativeID(h.RemoteID).ArmID()
}

// observed returns the post-operation view of target. The ID reported by
// Azure is preferred; expected is used when the response carries none.
func observed(target *handles.Handle, id *string, expected string) *handles.Handle {
	if id != nil && *id != "" {
		return prov.Observed(target, *id)
	}
	return prov.Observed(target, expected)
}

// listed builds the handle of a resource returned by a list call.
func listed(kind string, scope *handles.Handle, name, id *string) *handles.Handle {
	if name == nil || id == nil {
		return nil
	}
	return prov.Observed(handles.NewHandle(kind, *name, scope), *id)
}

// splitResourceID splits an Azure resource ID into its component parts.
// Example: /subscriptions/xxx/resourceGroups/yyy returns map["subscriptions"]="xxx", map["resourcegroups"]="yyy"
// For nested resources: /subscriptions/xxx/resourceGroups/yyy/providers/Microsoft.Network/virtualNetworks/zzz
// returns map["subscriptions"]="xxx", map["resourcegroups"]="yyy", map["virtualnetworks"]="zzz"
// Note: Keys are lowercased for case-insensitive matching since Azure returns inconsistent casing.
func splitResourceID(resourceID string) map[string]string {
	parts := make(map[string]string)

	segments := []string{}
	for _, seg := range strings.Split(resourceID, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}

	for i := 0; i < len(segments)-1; i += 2 {
		parts[strings.ToLower(segments[i])] = segments[i+1]
	}

	return parts
}

// azureError attaches an operation error code to an Azure SDK failure.
type azureError struct {
	code resource.OperationErrorCode
	err  error
}

func (e *azureError) Error() string {
	return e.err.Error()
}

func (e *azureError) Unwrap() error {
	return e.err
}

func (e *azureError) ErrorCode() resource.OperationErrorCode {
	return e.code
}

// wrapAzureError classifies err and prefixes it with what was being attempted.
func wrapAzureError(action string, err error) error {
	return &azureError{
		code: mapAzureErrorToOperationErrorCode(err),
		err:  fmt.Errorf("%s: %w", action, err),
	}
}

// readError turns a failed Get into prov.NotFoundError when the resource is absent.
func readError(target *handles.Handle, err error) error {
	if isDeleteSuccessError(err) {
		return fmt.Errorf("%w: %v", &prov.NotFoundError{Kind: target.Kind, Name: target.Name}, err)
	}
	return wrapAzureError(fmt.Sprintf("failed to read %s %q", target.Kind, target.Name), err)
}

// mapAzureErrorToOperationErrorCode maps Azure SDK errors to OperationErrorCode.
// HTTP status codes from azcore.ResponseError are used when present; the
// message patterns cover errors raised before or after the HTTP exchange.
func mapAzureErrorToOperationErrorCode(err error) resource.OperationErrorCode {
	if err == nil {
		return ""
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return resource.OperationErrorCodeNotFound
		case http.StatusForbidden:
			return resource.OperationErrorCodeAccessDenied
		case http.StatusUnauthorized:
			return resource.OperationErrorCodeInvalidCredentials
		case http.StatusConflict:
			return resource.OperationErrorCodeResourceConflict
		case http.StatusTooManyRequests:
			return resource.OperationErrorCodeThrottling
		case http.StatusBadRequest:
			if strings.Contains(respErr.ErrorCode, "QuotaExceeded") || strings.Contains(respErr.ErrorCode, "LimitExceeded") {
				return resource.OperationErrorCodeServiceLimitExceeded
			}
			return resource.OperationErrorCodeInvalidRequest
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return resource.OperationErrorCodeServiceTimeout
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
			return resource.OperationErrorCodeServiceInternalError
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return resource.OperationErrorCodeServiceTimeout
	}

	errStr := err.Error()

	switch {
	// 404 Not Found errors
	case strings.Contains(errStr, "ResourceGroupNotFound"),
		strings.Contains(errStr, "ResourceNotFound"),
		strings.Contains(errStr, "NotFound"),
		strings.Contains(errStr, "404"):
		return resource.OperationErrorCodeNotFound

	// 403 Forbidden / Access Denied
	case strings.Contains(errStr, "AuthorizationFailed"),
		strings.Contains(errStr, "Forbidden"),
		strings.Contains(errStr, "403"):
		return resource.OperationErrorCodeAccessDenied

	// 401 Unauthorized / Invalid Credentials
	case strings.Contains(errStr, "Unauthorized"),
		strings.Contains(errStr, "AuthenticationFailed"),
		strings.Contains(errStr, "InvalidAuthenticationToken"),
		strings.Contains(errStr, "401"):
		return resource.OperationErrorCodeInvalidCredentials

	// 409 Conflict
	case strings.Contains(errStr, "Conflict"),
		strings.Contains(errStr, "ResourceExists"),
		strings.Contains(errStr, "409"):
		return resource.OperationErrorCodeResourceConflict

	// 429 Throttling
	case strings.Contains(errStr, "TooManyRequests"),
		strings.Contains(errStr, "Throttling"),
		strings.Contains(errStr, "429"):
		return resource.OperationErrorCodeThrottling

	case strings.Contains(errStr, "InternalServerError"),
		strings.Contains(errStr, "500"):
		return resource.OperationErrorCodeServiceInternalError

	case strings.Contains(errStr, "Timeout"),
		strings.Contains(errStr, "RequestTimeout"),
		strings.Contains(errStr, "GatewayTimeout"):
		return resource.OperationErrorCodeServiceTimeout

	case strings.Contains(errStr, "QuotaExceeded"),
		strings.Contains(errStr, "LimitExceeded"):
		return resource.OperationErrorCodeServiceLimitExceeded

	case strings.Contains(errStr, "InvalidParameter"),
		strings.Contains(errStr, "InvalidRequest"),
		strings.Contains(errStr, "BadRequest"),
		strings.Contains(errStr, "400"):
		return resource.OperationErrorCodeInvalidRequest

	case strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "network"),
		strings.Contains(errStr, "dial"):
		return resource.OperationErrorCodeNetworkFailure

	default:
		return resource.OperationErrorCodeGeneralServiceException
	}
}

// stringPtr returns a pointer to a string. Useful for Azure SDK calls.
func stringPtr(s string) *string {
	return &s
}

// isDeleteSuccessError returns true if the error indicates the resource is already deleted.
// For delete operations, NotFound means the goal is achieved (resource doesn't exist).
func isDeleteSuccessError(err error) bool {
	if err == nil {
		return false
	}
	return mapAzureErrorToOperationErrorCode(err) == resource.OperationErrorCodeNotFound
}

// stringSlice converts a JSON array of strings to SDK form.
func stringSlice(raw any, field string) ([]*string, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an array", field)
	}
	out := make([]*string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s[%d] must be a string", field, i)
		}
		out[i] = stringPtr(s)
	}
	return out, nil
}
