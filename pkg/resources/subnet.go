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

const ResourceTypeSubnet = "Azure::Network::Subnet"

func init() {
	registry.Register(ResourceTypeSubnet, func(client *client.Client) prov.Adapter {
		return &Subnet{client}
	})
}

// Subnet provisions subnets. A subnet handle is scoped to its virtual network,
// whose scope is the resource group.
type Subnet struct {
	Client *client.Client
}

func (s *Subnet) names(target *model.Handle) (rgName, vnetName string, err error) {
	if vnetName, err = scopeName(target, ResourceTypeVirtualNetwork); err != nil {
		return "", "", err
	}
	if rgName, err = resourceGroupName(target); err != nil {
		return "", "", err
	}
	return rgName, vnetName, nil
}

func (s *Subnet) expectedID(rgName, vnetName, subnetName string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Network/virtualNetworks/%s/subnets/%s",
		s.Client.Config.SubscriptionId, rgName, vnetName, subnetName)
}

func (s *Subnet) CreateOrUpdate(ctx context.Context, target *model.Handle, payload json.RawMessage) (*model.Handle, error) {
	rgName, vnetName, err := s.names(target)
	if err != nil {
		return nil, err
	}
	props, err := parseProps(payload)
	if err != nil {
		return nil, err
	}

	addressPrefix, ok := props["addressPrefix"].(string)
	if !ok || addressPrefix == "" {
		return nil, fmt.Errorf("addressPrefix is required")
	}

	params := armnetwork.Subnet{
		Properties: &armnetwork.SubnetPropertiesFormat{
			AddressPrefix: stringPtr(addressPrefix),
		},
	}
	if nsgID, ok := props["networkSecurityGroup"].(string); ok && nsgID != "" {
		params.Properties.NetworkSecurityGroup = &armnetwork.SecurityGroup{ID: stringPtr(nsgID)}
	}

	poller, err := s.Client.SubnetsClient.BeginCreateOrUpdate(ctx, rgName, vnetName, target.Name, params, nil)
	if err != nil {
		return nil, wrapAzureError("failed to start Subnet creation", err)
	}
	result, err := poller.PollUntilDone(ctx, s.Client.PollOptions())
	if err != nil {
		return nil, wrapAzureError("failed to create Subnet", err)
	}
	return observed(target, result.ID, s.expectedID(rgName, vnetName, target.Name)), nil
}

func (s *Subnet) Delete(ctx context.Context, target *model.Handle) error {
	rgName, vnetName, err := s.names(target)
	if err != nil {
		return err
	}
	poller, err := s.Client.SubnetsClient.BeginDelete(ctx, rgName, vnetName, target.Name, nil)
	if err != nil {
		if isDeleteSuccessError(err) {
			return nil
		}
		return wrapAzureError("failed to start Subnet deletion", err)
	}
	if _, err := poller.PollUntilDone(ctx, s.Client.PollOptions()); err != nil && !isDeleteSuccessError(err) {
		return wrapAzureError("failed to delete Subnet", err)
	}
	return nil
}

func (s *Subnet) Get(ctx context.Context, target *model.Handle) (*model.Handle, error) {
	rgName, vnetName, err := s.names(target)
	if err != nil {
		return nil, err
	}
	result, err := s.Client.SubnetsClient.Get(ctx, rgName, vnetName, target.Name, nil)
	if err != nil {
		return nil, readError(target, err)
	}
	return observed(target, result.ID, s.expectedID(rgName, vnetName, target.Name)), nil
}

func (s *Subnet) List(ctx context.Context, kind string, scope *model.Handle) ([]*model.Handle, error) {
	virtualNetworkName, err := listScopeName(kind, scope, ResourceTypeVirtualNetwork)
	if err != nil {
		return nil, err
	}
	resourceGroupName, err := listScopeName(kind, scope, ResourceTypeResourceGroup)
	if err != nil {
		return nil, err
	}

	pager := s.Client.SubnetsClient.NewListPager(resourceGroupName, virtualNetworkName, nil)

	var out []*model.Handle
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrapAzureError(fmt.Sprintf("failed to list subnets in vnet %s/%s", resourceGroupName, virtualNetworkName), err)
		}
		for _, subnet := range page.Value {
			if h := listed(kind, scope, subnet.Name, subnet.ID); h != nil {
				out = append(out, h)
			}
		}
	}
	return out, nil
}
