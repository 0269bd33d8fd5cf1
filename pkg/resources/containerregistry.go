// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerregistry/armcontainerregistry"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/client"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/model"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/prov"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/registry"
)

const ResourceTypeContainerRegistry = "Azure::ContainerRegistry::Registry"

func init() {
	registry.Register(ResourceTypeContainerRegistry, func(client *client.Client) prov.Adapter {
		return &ContainerRegistry{client}
	})
}

// ContainerRegistry provisions ACR registries. Create and update are
// separate ARM operations, so CreateOrUpdate looks the registry up first.
type ContainerRegistry struct {
	Client *client.Client
}

func (cr *ContainerRegistry) expectedID(rgName, registryName string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.ContainerRegistry/registries/%s",
		cr.Client.Config.SubscriptionId, rgName, registryName)
}

func (cr *ContainerRegistry) CreateOrUpdate(ctx context.Context, target *model.Handle, payload json.RawMessage) (*model.Handle, error) {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return nil, err
	}
	props, err := parseProps(payload)
	if err != nil {
		return nil, err
	}

	_, err = cr.Client.RegistriesClient.Get(ctx, rgName, target.Name, nil)
	switch {
	case err == nil:
		return cr.update(ctx, target, rgName, props, payload)
	case !isDeleteSuccessError(err):
		return nil, wrapAzureError("failed to read Container Registry", err)
	}

	var skuName string
	if skuRaw, ok := props["sku"].(map[string]any); ok {
		skuName, _ = skuRaw["name"].(string)
	}
	if skuName == "" {
		return nil, fmt.Errorf("sku.name is required")
	}

	params := armcontainerregistry.Registry{
		Location:   stringPtr(locationOf(props, cr.Client)),
		SKU:        &armcontainerregistry.SKU{Name: to.Ptr(armcontainerregistry.SKUName(skuName))},
		Properties: &armcontainerregistry.RegistryProperties{},
		Tags:       payloadTags(payload, props),
	}
	if adminEnabled, ok := props["adminUserEnabled"].(bool); ok {
		params.Properties.AdminUserEnabled = to.Ptr(adminEnabled)
	}
	if publicAccess, ok := props["publicNetworkAccess"].(string); ok {
		params.Properties.PublicNetworkAccess = to.Ptr(armcontainerregistry.PublicNetworkAccess(publicAccess))
	}
	if zoneRedundancy, ok := props["zoneRedundancy"].(string); ok {
		params.Properties.ZoneRedundancy = to.Ptr(armcontainerregistry.ZoneRedundancy(zoneRedundancy))
	}

	poller, err := cr.Client.RegistriesClient.BeginCreate(ctx, rgName, target.Name, params, nil)
	if err != nil {
		return nil, wrapAzureError("failed to start Container Registry creation", err)
	}
	result, err := poller.PollUntilDone(ctx, cr.Client.PollOptions())
	if err != nil {
		return nil, wrapAzureError("failed to create Container Registry", err)
	}
	return observed(target, result.ID, cr.expectedID(rgName, target.Name)), nil
}

// update applies the mutable subset: SKU, admin user, network access and tags.
func (cr *ContainerRegistry) update(ctx context.Context, target *model.Handle, rgName string, props map[string]any, payload json.RawMessage) (*model.Handle, error) {
	params := armcontainerregistry.RegistryUpdateParameters{
		Properties: &armcontainerregistry.RegistryPropertiesUpdateParameters{},
		Tags:       payloadTags(payload, props),
	}
	if adminEnabled, ok := props["adminUserEnabled"].(bool); ok {
		params.Properties.AdminUserEnabled = to.Ptr(adminEnabled)
	}
	if publicAccess, ok := props["publicNetworkAccess"].(string); ok {
		params.Properties.PublicNetworkAccess = to.Ptr(armcontainerregistry.PublicNetworkAccess(publicAccess))
	}
	if skuRaw, ok := props["sku"].(map[string]any); ok {
		if name, ok := skuRaw["name"].(string); ok && name != "" {
			params.SKU = &armcontainerregistry.SKU{Name: to.Ptr(armcontainerregistry.SKUName(name))}
		}
	}

	poller, err := cr.Client.RegistriesClient.BeginUpdate(ctx, rgName, target.Name, params, nil)
	if err != nil {
		return nil, wrapAzureError("failed to start Container Registry update", err)
	}
	result, err := poller.PollUntilDone(ctx, cr.Client.PollOptions())
	if err != nil {
		return nil, wrapAzureError("failed to update Container Registry", err)
	}
	return observed(target, result.ID, cr.expectedID(rgName, target.Name)), nil
}

func (cr *ContainerRegistry) Delete(ctx context.Context, target *model.Handle) error {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return err
	}
	poller, err := cr.Client.RegistriesClient.BeginDelete(ctx, rgName, target.Name, nil)
	if err != nil {
		if isDeleteSuccessError(err) {
			return nil
		}
		return wrapAzureError("failed to start Container Registry deletion", err)
	}
	if _, err := poller.PollUntilDone(ctx, cr.Client.PollOptions()); err != nil && !isDeleteSuccessError(err) {
		return wrapAzureError("failed to delete Container Registry", err)
	}
	return nil
}

func (cr *ContainerRegistry) Get(ctx context.Context, target *model.Handle) (*model.Handle, error) {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return nil, err
	}
	result, err := cr.Client.RegistriesClient.Get(ctx, rgName, target.Name, nil)
	if err != nil {
		return nil, readError(target, err)
	}
	return observed(target, result.ID, cr.expectedID(rgName, target.Name)), nil
}

func (cr *ContainerRegistry) List(ctx context.Context, kind string, scope *model.Handle) ([]*model.Handle, error) {
	resourceGroupName, err := listScopeName(kind, scope, ResourceTypeResourceGroup)
	if err != nil {
		return nil, err
	}

	pager := cr.Client.RegistriesClient.NewListByResourceGroupPager(resourceGroupName, nil)

	var out []*model.Handle
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrapAzureError(fmt.Sprintf("failed to list container registries in resource group %s", resourceGroupName), err)
		}
		for _, reg := range page.Value {
			if h := listed(kind, scope, reg.Name, reg.ID); h != nil {
				out = append(out, h)
			}
		}
	}
	return out, nil
}
