// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v4"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/client"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/model"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/prov"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/registry"
)

const ResourceTypeVirtualNetwork = "Azure::Network::VirtualNetwork"

func init() {
	registry.Register(ResourceTypeVirtualNetwork, func(client *client.Client) prov.Adapter {
		return &VirtualNetwork{client}
	})
}

// VirtualNetwork provisions virtual networks inside a resource group.
type VirtualNetwork struct {
	Client *client.Client
}

func (v *VirtualNetwork) expectedID(rgName, vnetName string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Network/virtualNetworks/%s",
		v.Client.Config.SubscriptionId, rgName, vnetName)
}

func (v *VirtualNetwork) CreateOrUpdate(ctx context.Context, target *model.Handle, payload json.RawMessage) (*model.Handle, error) {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return nil, err
	}
	props, err := parseProps(payload)
	if err != nil {
		return nil, err
	}

	addressSpace, ok := props["addressSpace"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("addressSpace is required")
	}
	addressPrefixes, err := stringSlice(addressSpace["addressPrefixes"], "addressSpace.addressPrefixes")
	if err != nil {
		return nil, err
	}
	if len(addressPrefixes) == 0 {
		return nil, fmt.Errorf("addressSpace.addressPrefixes is required")
	}

	params := armnetwork.VirtualNetwork{
		Location: stringPtr(locationOf(props, v.Client)),
		Properties: &armnetwork.VirtualNetworkPropertiesFormat{
			AddressSpace: &armnetwork.AddressSpace{
				AddressPrefixes: addressPrefixes,
			},
		},
		Tags: payloadTags(payload, props),
	}

	if dnsRaw, ok := props["dhcpOptions"].(map[string]any); ok {
		servers, err := stringSlice(dnsRaw["dnsServers"], "dhcpOptions.dnsServers")
		if err != nil {
			return nil, err
		}
		params.Properties.DhcpOptions = &armnetwork.DhcpOptions{DNSServers: servers}
	}

	poller, err := v.Client.VirtualNetworksClient.BeginCreateOrUpdate(ctx, rgName, target.Name, params, nil)
	if err != nil {
		return nil, wrapAzureError("failed to start VNet creation", err)
	}
	result, err := poller.PollUntilDone(ctx, v.Client.PollOptions())
	if err != nil {
		return nil, wrapAzureError("failed to create VNet", err)
	}
	return observed(target, result.ID, v.expectedID(rgName, target.Name)), nil
}

func (v *VirtualNetwork) Delete(ctx context.Context, target *model.Handle) error {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return err
	}
	poller, err := v.Client.VirtualNetworksClient.BeginDelete(ctx, rgName, target.Name, nil)
	if err != nil {
		if isDeleteSuccessError(err) {
			return nil
		}
		return wrapAzureError("failed to start VNet deletion", err)
	}
	if _, err := poller.PollUntilDone(ctx, v.Client.PollOptions()); err != nil && !isDeleteSuccessError(err) {
		return wrapAzureError("failed to delete VNet", err)
	}
	return nil
}

func (v *VirtualNetwork) Get(ctx context.Context, target *model.Handle) (*model.Handle, error) {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return nil, err
	}
	result, err := v.Client.VirtualNetworksClient.Get(ctx, rgName, target.Name, nil)
	if err != nil {
		return nil, readError(target, err)
	}
	return observed(target, result.ID, v.expectedID(rgName, target.Name)), nil
}

func (v *VirtualNetwork) List(ctx context.Context, kind string, scope *model.Handle) ([]*model.Handle, error) {
	resourceGroupName, err := listScopeName(kind, scope, ResourceTypeResourceGroup)
	if err != nil {
		return nil, err
	}

	pager := v.Client.VirtualNetworksClient.NewListPager(resourceGroupName, nil)

	var out []*model.Handle
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrapAzureError(fmt.Sprintf("failed to list virtual networks in resource group %s", resourceGroupName), err)
		}
		for _, vnet := range page.Value {
			if h := listed(kind, scope, vnet.Name, vnet.ID); h != nil {
				out = append(out, h)
			}
		}
	}
	return out, nil
}
