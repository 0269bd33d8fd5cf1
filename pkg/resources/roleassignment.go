// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/authorization/armauthorization/v2"
	"github.com/google/uuid"
	"github.com/platform-engineering-labs/formae/pkg/plugin/resource"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/client"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/model"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/prov"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/registry"
)

const ResourceTypeRoleAssignment = "Azure::Authorization::RoleAssignment"

func init() {
	registry.Register(ResourceTypeRoleAssignment, func(client *client.Client) prov.Adapter {
		return &RoleAssignment{client}
	})
}

// RoleAssignment grants a principal a role at the ARM ID of its scope handle,
// or at the subscription when the handle has no scope. The scope handle must
// already carry a remote ID.
//
// ARM requires a GUID name. A handle name that is not a GUID is mapped to a
// stable one derived from the scope and the name, so reruns address the same
// assignment.
type RoleAssignment struct {
	Client *client.Client
}

func (r *RoleAssignment) scope(target *model.Handle) (string, error) {
	if target.Scope == nil {
		return "/subscriptions/" + r.Client.Config.SubscriptionId, nil
	}
	if id := armIDOf(target.Scope); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("role assignment %q: scope %s has no remote ID", target.Name, target.Scope.Key())
}

func assignmentName(scope, name string) string {
	if _, err := uuid.Parse(name); err == nil {
		return name
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.ToLower(scope)+"/"+name)).String()
}

func (r *RoleAssignment) CreateOrUpdate(ctx context.Context, target *model.Handle, payload json.RawMessage) (*model.Handle, error) {
	scope, err := r.scope(target)
	if err != nil {
		return nil, err
	}
	props, err := parseProps(payload)
	if err != nil {
		return nil, err
	}

	principalID, ok := props["principalId"].(string)
	if !ok || principalID == "" {
		return nil, fmt.Errorf("principalId is required")
	}
	roleDefinitionID, ok := props["roleDefinitionId"].(string)
	if !ok || roleDefinitionID == "" {
		return nil, fmt.Errorf("roleDefinitionId is required")
	}

	params := armauthorization.RoleAssignmentCreateParameters{
		Properties: &armauthorization.RoleAssignmentProperties{
			PrincipalID:      stringPtr(principalID),
			RoleDefinitionID: stringPtr(roleDefinitionID),
		},
	}
	if principalType, ok := props["principalType"].(string); ok && principalType != "" {
		params.Properties.PrincipalType = to.Ptr(armauthorization.PrincipalType(principalType))
	}
	if description, ok := props["description"].(string); ok && description != "" {
		params.Properties.Description = stringPtr(description)
	}
	if condition, ok := props["condition"].(string); ok && condition != "" {
		params.Properties.Condition = stringPtr(condition)
	}
	if conditionVersion, ok := props["conditionVersion"].(string); ok && conditionVersion != "" {
		params.Properties.ConditionVersion = stringPtr(conditionVersion)
	}

	name := assignmentName(scope, target.Name)
	result, err := r.Client.RoleAssignmentsClient.Create(ctx, scope, name, params, nil)
	if err != nil {
		// The same grant under another name already exists.
		if mapAzureErrorToOperationErrorCode(err) == resource.OperationErrorCodeResourceConflict {
			if id, findErr := r.findExisting(ctx, scope, principalID, roleDefinitionID); findErr == nil && id != "" {
				return prov.Observed(target, id), nil
			}
		}
		return nil, wrapAzureError("failed to create RoleAssignment", err)
	}
	return observed(target, result.ID, scope+"/providers/Microsoft.Authorization/roleAssignments/"+name), nil
}

func (r *RoleAssignment) findExisting(ctx context.Context, scope, principalID, roleDefinitionID string) (string, error) {
	pager := r.Client.RoleAssignmentsClient.NewListForScopePager(scope, &armauthorization.RoleAssignmentsClientListForScopeOptions{
		Filter: to.Ptr(fmt.Sprintf("principalId eq '%s'", principalID)),
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return "", err
		}
		for _, ra := range page.Value {
			if ra.ID == nil || ra.Properties == nil || ra.Properties.RoleDefinitionID == nil {
				continue
			}
			if strings.EqualFold(*ra.Properties.RoleDefinitionID, roleDefinitionID) {
				return *ra.ID, nil
			}
		}
	}
	return "", nil
}

func (r *RoleAssignment) Delete(ctx context.Context, target *model.Handle) error {
	var err error
	if id := armIDOf(target); id != "" {
		_, err = r.Client.RoleAssignmentsClient.DeleteByID(ctx, id, nil)
	} else {
		scope, scopeErr := r.scope(target)
		if scopeErr != nil {
			return scopeErr
		}
		_, err = r.Client.RoleAssignmentsClient.Delete(ctx, scope, assignmentName(scope, target.Name), nil)
	}
	if err != nil && !isDeleteSuccessError(err) {
		return wrapAzureError("failed to delete RoleAssignment", err)
	}
	return nil
}

func (r *RoleAssignment) Get(ctx context.Context, target *model.Handle) (*model.Handle, error) {
	scope, err := r.scope(target)
	if err != nil {
		return nil, err
	}
	result, err := r.Client.RoleAssignmentsClient.Get(ctx, scope, assignmentName(scope, target.Name), nil)
	if err != nil {
		return nil, readError(target, err)
	}
	if result.ID == nil {
		return nil, fmt.Errorf("role assignment %q returned no ID", target.Name)
	}
	return prov.Observed(target, *result.ID), nil
}

func (r *RoleAssignment) List(ctx context.Context, kind string, scope *model.Handle) ([]*model.Handle, error) {
	armScope := "/subscriptions/" + r.Client.Config.SubscriptionId
	if scope != nil {
		if armScope = armIDOf(scope); armScope == "" {
			return nil, fmt.Errorf("listing %s: scope %s has no remote ID", kind, scope.Key())
		}
	}

	pager := r.Client.RoleAssignmentsClient.NewListForScopePager(armScope, nil)

	var out []*model.Handle
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrapAzureError(fmt.Sprintf("failed to list role assignments at %s", armScope), err)
		}
		for _, ra := range page.Value {
			if h := listed(kind, scope, ra.Name, ra.ID); h != nil {
				out = append(out, h)
			}
		}
	}
	return out, nil
}
