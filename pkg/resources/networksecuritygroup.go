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

const ResourceTypeNetworkSecurityGroup = "Azure::Network::NetworkSecurityGroup"

func init() {
	registry.Register(ResourceTypeNetworkSecurityGroup, func(client *client.Client) prov.Adapter {
		return &NetworkSecurityGroup{client}
	})
}

type NetworkSecurityGroup struct {
	Client *client.Client
}

func (n *NetworkSecurityGroup) expectedID(rgName, nsgName string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Network/networkSecurityGroups/%s",
		n.Client.Config.SubscriptionId, rgName, nsgName)
}

func parseSecurityRules(rulesRaw []any) ([]*armnetwork.SecurityRule, error) {
	rules := make([]*armnetwork.SecurityRule, 0, len(rulesRaw))
	for i, ruleRaw := range rulesRaw {
		ruleMap, ok := ruleRaw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("securityRules[%d] must be an object", i)
		}

		rule := &armnetwork.SecurityRule{
			Properties: &armnetwork.SecurityRulePropertiesFormat{},
		}

		if name, ok := ruleMap["name"].(string); ok {
			rule.Name = stringPtr(name)
		}
		if desc, ok := ruleMap["description"].(string); ok {
			rule.Properties.Description = stringPtr(desc)
		}
		if priority, ok := ruleMap["priority"].(float64); ok {
			p := int32(priority)
			rule.Properties.Priority = &p
		}
		if direction, ok := ruleMap["direction"].(string); ok {
			d := armnetwork.SecurityRuleDirection(direction)
			rule.Properties.Direction = &d
		}
		if access, ok := ruleMap["access"].(string); ok {
			a := armnetwork.SecurityRuleAccess(access)
			rule.Properties.Access = &a
		}
		if protocol, ok := ruleMap["protocol"].(string); ok {
			p := armnetwork.SecurityRuleProtocol(protocol)
			rule.Properties.Protocol = &p
		}
		if src, ok := ruleMap["sourcePortRange"].(string); ok {
			rule.Properties.SourcePortRange = stringPtr(src)
		}
		if dst, ok := ruleMap["destinationPortRange"].(string); ok {
			rule.Properties.DestinationPortRange = stringPtr(dst)
		}
		if srcAddr, ok := ruleMap["sourceAddressPrefix"].(string); ok {
			rule.Properties.SourceAddressPrefix = stringPtr(srcAddr)
		}
		if dstAddr, ok := ruleMap["destinationAddressPrefix"].(string); ok {
			rule.Properties.DestinationAddressPrefix = stringPtr(dstAddr)
		}

		rules = append(rules, rule)
	}
	return rules, nil
}

func (n *NetworkSecurityGroup) CreateOrUpdate(ctx context.Context, target *model.Handle, payload json.RawMessage) (*model.Handle, error) {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return nil, err
	}
	props, err := parseProps(payload)
	if err != nil {
		return nil, err
	}

	params := armnetwork.SecurityGroup{
		Location: stringPtr(locationOf(props, n.Client)),
		Tags:     payloadTags(payload, props),
	}

	if rulesRaw, ok := props["securityRules"].([]any); ok && len(rulesRaw) > 0 {
		rules, err := parseSecurityRules(rulesRaw)
		if err != nil {
			return nil, err
		}
		params.Properties = &armnetwork.SecurityGroupPropertiesFormat{
			SecurityRules: rules,
		}
	}

	poller, err := n.Client.SecurityGroupsClient.BeginCreateOrUpdate(ctx, rgName, target.Name, params, nil)
	if err != nil {
		return nil, wrapAzureError("failed to start NSG creation", err)
	}
	result, err := poller.PollUntilDone(ctx, n.Client.PollOptions())
	if err != nil {
		return nil, wrapAzureError("failed to create NSG", err)
	}
	return observed(target, result.ID, n.expectedID(rgName, target.Name)), nil
}

func (n *NetworkSecurityGroup) Delete(ctx context.Context, target *model.Handle) error {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return err
	}
	poller, err := n.Client.SecurityGroupsClient.BeginDelete(ctx, rgName, target.Name, nil)
	if err != nil {
		if isDeleteSuccessError(err) {
			return nil
		}
		return wrapAzureError("failed to start NSG deletion", err)
	}
	if _, err := poller.PollUntilDone(ctx, n.Client.PollOptions()); err != nil && !isDeleteSuccessError(err) {
		return wrapAzureError("failed to delete NSG", err)
	}
	return nil
}

func (n *NetworkSecurityGroup) Get(ctx context.Context, target *model.Handle) (*model.Handle, error) {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return nil, err
	}
	result, err := n.Client.SecurityGroupsClient.Get(ctx, rgName, target.Name, nil)
	if err != nil {
		return nil, readError(target, err)
	}
	return observed(target, result.ID, n.expectedID(rgName, target.Name)), nil
}

func (n *NetworkSecurityGroup) List(ctx context.Context, kind string, scope *model.Handle) ([]*model.Handle, error) {
	resourceGroupName, err := listScopeName(kind, scope, ResourceTypeResourceGroup)
	if err != nil {
		return nil, err
	}

	pager := n.Client.SecurityGroupsClient.NewListPager(resourceGroupName, nil)

	var out []*model.Handle
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrapAzureError(fmt.Sprintf("failed to list NSGs in resource group %s", resourceGroupName), err)
		}
		for _, nsg := range page.Value {
			if h := listed(kind, scope, nsg.Name, nsg.ID); h != nil {
				out = append(out, h)
			}
		}
	}
	return out, nil
}
