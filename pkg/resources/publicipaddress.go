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

const ResourceTypePublicIPAddress = "Azure::Network::PublicIPAddress"

func init() {
	registry.Register(ResourceTypePublicIPAddress, func(client *client.Client) prov.Adapter {
		return &PublicIPAddress{client}
	})
}

type PublicIPAddress struct {
	Client *client.Client
}

func (p *PublicIPAddress) expectedID(rgName, pipName string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Network/publicIPAddresses/%s",
		p.Client.Config.SubscriptionId, rgName, pipName)
}

func (p *PublicIPAddress) CreateOrUpdate(ctx context.Context, target *model.Handle, payload json.RawMessage) (*model.Handle, error) {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return nil, err
	}
	props, err := parseProps(payload)
	if err != nil {
		return nil, err
	}

	params := armnetwork.PublicIPAddress{
		Location:   stringPtr(locationOf(props, p.Client)),
		Properties: &armnetwork.PublicIPAddressPropertiesFormat{},
		Tags:       payloadTags(payload, props),
	}

	if skuRaw, ok := props["sku"].(map[string]any); ok {
		sku := &armnetwork.PublicIPAddressSKU{}
		if name, ok := skuRaw["name"].(string); ok {
			skuName := armnetwork.PublicIPAddressSKUName(name)
			sku.Name = &skuName
		}
		if tier, ok := skuRaw["tier"].(string); ok {
			skuTier := armnetwork.PublicIPAddressSKUTier(tier)
			sku.Tier = &skuTier
		}
		params.SKU = sku
	}

	if allocationMethod, ok := props["publicIPAllocationMethod"].(string); ok {
		method := armnetwork.IPAllocationMethod(allocationMethod)
		params.Properties.PublicIPAllocationMethod = &method
	}

	if ipVersion, ok := props["publicIPAddressVersion"].(string); ok {
		version := armnetwork.IPVersion(ipVersion)
		params.Properties.PublicIPAddressVersion = &version
	}

	if timeout, ok := props["idleTimeoutInMinutes"].(float64); ok {
		t := int32(timeout)
		params.Properties.IdleTimeoutInMinutes = &t
	}

	if dnsRaw, ok := props["dnsSettings"].(map[string]any); ok {
		dns := &armnetwork.PublicIPAddressDNSSettings{}
		if label, ok := dnsRaw["domainNameLabel"].(string); ok {
			dns.DomainNameLabel = stringPtr(label)
		}
		if reverseFqdn, ok := dnsRaw["reverseFqdn"].(string); ok {
			dns.ReverseFqdn = stringPtr(reverseFqdn)
		}
		params.Properties.DNSSettings = dns
	}

	poller, err := p.Client.PublicIPAddressesClient.BeginCreateOrUpdate(ctx, rgName, target.Name, params, nil)
	if err != nil {
		return nil, wrapAzureError("failed to start PublicIP creation", err)
	}
	result, err := poller.PollUntilDone(ctx, p.Client.PollOptions())
	if err != nil {
		return nil, wrapAzureError("failed to create PublicIP", err)
	}
	return observed(target, result.ID, p.expectedID(rgName, target.Name)), nil
}

func (p *PublicIPAddress) Delete(ctx context.Context, target *model.Handle) error {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return err
	}
	poller, err := p.Client.PublicIPAddressesClient.BeginDelete(ctx, rgName, target.Name, nil)
	if err != nil {
		if isDeleteSuccessError(err) {
			return nil
		}
		return wrapAzureError("failed to start PublicIP deletion", err)
	}
	if _, err := poller.PollUntilDone(ctx, p.Client.PollOptions()); err != nil && !isDeleteSuccessError(err) {
		return wrapAzureError("failed to delete PublicIP", err)
	}
	return nil
}

func (p *PublicIPAddress) Get(ctx context.Context, target *model.Handle) (*model.Handle, error) {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return nil, err
	}
	result, err := p.Client.PublicIPAddressesClient.Get(ctx, rgName, target.Name, nil)
	if err != nil {
		return nil, readError(target, err)
	}
	return observed(target, result.ID, p.expectedID(rgName, target.Name)), nil
}

func (p *PublicIPAddress) List(ctx context.Context, kind string, scope *model.Handle) ([]*model.Handle, error) {
	resourceGroupName, err := listScopeName(kind, scope, ResourceTypeResourceGroup)
	if err != nil {
		return nil, err
	}

	pager := p.Client.PublicIPAddressesClient.NewListPager(resourceGroupName, nil)

	var out []*model.Handle
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrapAzureError(fmt.Sprintf("failed to list public IPs in resource group %s", resourceGroupName), err)
		}
		for _, pip := range page.Value {
			if h := listed(kind, scope, pip.Name, pip.ID); h != nil {
				out = append(out, h)
			}
		}
	}
	return out, nil
}
