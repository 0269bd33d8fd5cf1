// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/msi/armmsi"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/client"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/model"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/prov"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/registry"
)

const ResourceTypeUserAssignedIdentity = "Azure::ManagedIdentity::UserAssignedIdentity"

func init() {
	registry.Register(ResourceTypeUserAssignedIdentity, func(client *client.Client) prov.Adapter {
		return &UserAssignedIdentity{client}
	})
}

type UserAssignedIdentity struct {
	Client *client.Client
}

func (u *UserAssignedIdentity) expectedID(rgName, identityName string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.ManagedIdentity/userAssignedIdentities/%s",
		u.Client.Config.SubscriptionId, rgName, identityName)
}

// CreateOrUpdate is synchronous; identities have no long-running operations.
func (u *UserAssignedIdentity) CreateOrUpdate(ctx context.Context, target *model.Handle, payload json.RawMessage) (*model.Handle, error) {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return nil, err
	}
	props, err := parseProps(payload)
	if err != nil {
		return nil, err
	}

	params := armmsi.Identity{
		Location: stringPtr(locationOf(props, u.Client)),
		Tags:     payloadTags(payload, props),
	}

	result, err := u.Client.UserAssignedIdentitiesClient.CreateOrUpdate(ctx, rgName, target.Name, params, nil)
	if err != nil {
		return nil, wrapAzureError("failed to create UserAssignedIdentity", err)
	}
	return observed(target, result.ID, u.expectedID(rgName, target.Name)), nil
}

func (u *UserAssignedIdentity) Delete(ctx context.Context, target *model.Handle) error {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return err
	}
	if _, err := u.Client.UserAssignedIdentitiesClient.Delete(ctx, rgName, target.Name, nil); err != nil && !isDeleteSuccessError(err) {
		return wrapAzureError("failed to delete UserAssignedIdentity", err)
	}
	return nil
}

func (u *UserAssignedIdentity) Get(ctx context.Context, target *model.Handle) (*model.Handle, error) {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return nil, err
	}
	result, err := u.Client.UserAssignedIdentitiesClient.Get(ctx, rgName, target.Name, nil)
	if err != nil {
		return nil, readError(target, err)
	}
	return observed(target, result.ID, u.expectedID(rgName, target.Name)), nil
}

func (u *UserAssignedIdentity) List(ctx context.Context, kind string, scope *model.Handle) ([]*model.Handle, error) {
	resourceGroupName, err := listScopeName(kind, scope, ResourceTypeResourceGroup)
	if err != nil {
		return nil, err
	}

	pager := u.Client.UserAssignedIdentitiesClient.NewListByResourceGroupPager(resourceGroupName, nil)

	var out []*model.Handle
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrapAzureError(fmt.Sprintf("failed to list identities in resource group %s", resourceGroupName), err)
		}
		for _, identity := range page.Value {
			if h := listed(kind, scope, identity.Name, identity.ID); h != nil {
				out = append(out, h)
			}
		}
	}
	return out, nil
}
