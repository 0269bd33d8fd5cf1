// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v4"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/client"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/model"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/prov"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/registry"
)

const ResourceTypeNetworkInterface = "Azure::Network::NetworkInterface"

func init() {
	registry.Register(ResourceTypeNetworkInterface, func(client *client.Client) prov.Adapter {
		return &NetworkInterface{client}
	})
}

// NetworkInterface provisions NICs. Subnet, public IP and NSG references in
// the payload are ARM IDs.
type NetworkInterface struct {
	Client *client.Client
}

func (nic *NetworkInterface) expectedID(rgName, nicName string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Network/networkInterfaces/%s",
		nic.Client.Config.SubscriptionId, rgName, nicName)
}

func parseIPConfigurations(ipConfigsRaw []any) ([]*armnetwork.InterfaceIPConfiguration, error) {
	ipConfigs := make([]*armnetwork.InterfaceIPConfiguration, 0, len(ipConfigsRaw))
	for i, ipConfigRaw := range ipConfigsRaw {
		ipConfigMap, ok := ipConfigRaw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("ipConfigurations[%d] must be an object", i)
		}

		ipConfig := &armnetwork.InterfaceIPConfiguration{
			Properties: &armnetwork.InterfaceIPConfigurationPropertiesFormat{},
		}

		if name, ok := ipConfigMap["name"].(string); ok {
			ipConfig.Name = stringPtr(name)
		}
		if subnet, ok := ipConfigMap["subnet"].(string); ok && subnet != "" {
			ipConfig.Properties.Subnet = &armnetwork.Subnet{ID: stringPtr(subnet)}
		}
		if publicIP, ok := ipConfigMap["publicIPAddress"].(string); ok && publicIP != "" {
			ipConfig.Properties.PublicIPAddress = &armnetwork.PublicIPAddress{ID: stringPtr(publicIP)}
		}
		if allocMethod, ok := ipConfigMap["privateIPAllocationMethod"].(string); ok {
			method := armnetwork.IPAllocationMethod(allocMethod)
			ipConfig.Properties.PrivateIPAllocationMethod = &method
		}
		if privateIP, ok := ipConfigMap["privateIPAddress"].(string); ok && privateIP != "" {
			ipConfig.Properties.PrivateIPAddress = stringPtr(privateIP)
		}
		if primary, ok := ipConfigMap["primary"].(bool); ok {
			ipConfig.Properties.Primary = to.Ptr(primary)
		}

		ipConfigs = append(ipConfigs, ipConfig)
	}
	return ipConfigs, nil
}

func (nic *NetworkInterface) CreateOrUpdate(ctx context.Context, target *model.Handle, payload json.RawMessage) (*model.Handle, error) {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return nil, err
	}
	props, err := parseProps(payload)
	if err != nil {
		return nil, err
	}

	ipConfigsRaw, ok := props["ipConfigurations"].([]any)
	if !ok || len(ipConfigsRaw) == 0 {
		return nil, fmt.Errorf("ipConfigurations is required")
	}
	ipConfigs, err := parseIPConfigurations(ipConfigsRaw)
	if err != nil {
		return nil, err
	}

	params := armnetwork.Interface{
		Location: stringPtr(locationOf(props, nic.Client)),
		Properties: &armnetwork.InterfacePropertiesFormat{
			IPConfigurations: ipConfigs,
		},
		Tags: payloadTags(payload, props),
	}

	if nsgID, ok := props["networkSecurityGroup"].(string); ok && nsgID != "" {
		params.Properties.NetworkSecurityGroup = &armnetwork.SecurityGroup{ID: stringPtr(nsgID)}
	}
	if enableAcceleratedNetworking, ok := props["enableAcceleratedNetworking"].(bool); ok {
		params.Properties.EnableAcceleratedNetworking = to.Ptr(enableAcceleratedNetworking)
	}
	if enableIPForwarding, ok := props["enableIPForwarding"].(bool); ok {
		params.Properties.EnableIPForwarding = to.Ptr(enableIPForwarding)
	}

	poller, err := nic.Client.InterfacesClient.BeginCreateOrUpdate(ctx, rgName, target.Name, params, nil)
	if err != nil {
		return nil, wrapAzureError("failed to start NetworkInterface creation", err)
	}
	result, err := poller.PollUntilDone(ctx, nic.Client.PollOptions())
	if err != nil {
		return nil, wrapAzureError("failed to create NetworkInterface", err)
	}
	return observed(target, result.ID, nic.expectedID(rgName, target.Name)), nil
}

func (nic *NetworkInterface) Delete(ctx context.Context, target *model.Handle) error {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return err
	}
	poller, err := nic.Client.InterfacesClient.BeginDelete(ctx, rgName, target.Name, nil)
	if err != nil {
		if isDeleteSuccessError(err) {
			return nil
		}
		return wrapAzureError("failed to start NetworkInterface deletion", err)
	}
	if _, err := poller.PollUntilDone(ctx, nic.Client.PollOptions()); err != nil && !isDeleteSuccessError(err) {
		return wrapAzureError("failed to delete NetworkInterface", err)
	}
	return nil
}

func (nic *NetworkInterface) Get(ctx context.Context, target *model.Handle) (*model.Handle, error) {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return nil, err
	}
	result, err := nic.Client.InterfacesClient.Get(ctx, rgName, target.Name, nil)
	if err != nil {
		return nil, readError(target, err)
	}
	return observed(target, result.ID, nic.expectedID(rgName, target.Name)), nil
}

func (nic *NetworkInterface) List(ctx context.Context, kind string, scope *model.Handle) ([]*model.Handle, error) {
	resourceGroupName, err := listScopeName(kind, scope, ResourceTypeResourceGroup)
	if err != nil {
		return nil, err
	}

	pager := nic.Client.InterfacesClient.NewListPager(resourceGroupName, nil)

	var out []*model.Handle
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrapAzureError(fmt.Sprintf("failed to list network interfaces in resource group %s", resourceGroupName), err)
		}
		for _, iface := range page.Value {
			if h := listed(kind, scope, iface.Name, iface.ID); h != nil {
				out = append(out, h)
			}
		}
	}
	return out, nil
}
