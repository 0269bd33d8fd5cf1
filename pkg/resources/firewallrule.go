// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/postgresql/armpostgresqlflexibleservers/v4"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/client"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/model"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/prov"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/registry"
)

const ResourceTypeFirewallRule = "Azure::DBforPostgreSQL::FirewallRule"

func init() {
	registry.Register(ResourceTypeFirewallRule, func(client *client.Client) prov.Adapter {
		return &FirewallRule{client}
	})
}

// FirewallRule provisions server firewall rules. A rule handle is scoped to
// its flexible server.
type FirewallRule struct {
	Client *client.Client
}

func (f *FirewallRule) names(target *model.Handle) (rgName, serverName string, err error) {
	if serverName, err = scopeName(target, ResourceTypeFlexibleServer); err != nil {
		return "", "", err
	}
	if rgName, err = resourceGroupName(target); err != nil {
		return "", "", err
	}
	return rgName, serverName, nil
}

func (f *FirewallRule) expectedID(rgName, serverName, ruleName string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.DBforPostgreSQL/flexibleServers/%s/firewallRules/%s",
		f.Client.Config.SubscriptionId, rgName, serverName, ruleName)
}

func (f *FirewallRule) CreateOrUpdate(ctx context.Context, target *model.Handle, payload json.RawMessage) (*model.Handle, error) {
	rgName, serverName, err := f.names(target)
	if err != nil {
		return nil, err
	}
	props, err := parseProps(payload)
	if err != nil {
		return nil, err
	}

	startIP, ok := props["startIpAddress"].(string)
	if !ok || startIP == "" {
		return nil, fmt.Errorf("startIpAddress is required")
	}
	endIP, ok := props["endIpAddress"].(string)
	if !ok || endIP == "" {
		return nil, fmt.Errorf("endIpAddress is required")
	}

	params := armpostgresqlflexibleservers.FirewallRule{
		Properties: &armpostgresqlflexibleservers.FirewallRuleProperties{
			StartIPAddress: to.Ptr(startIP),
			EndIPAddress:   to.Ptr(endIP),
		},
	}

	poller, err := f.Client.FirewallRulesClient.BeginCreateOrUpdate(ctx, rgName, serverName, target.Name, params, nil)
	if err != nil {
		return nil, wrapAzureError("failed to start FirewallRule creation", err)
	}
	result, err := poller.PollUntilDone(ctx, f.Client.PollOptions())
	if err != nil {
		return nil, wrapAzureError("failed to create FirewallRule", err)
	}
	return observed(target, result.ID, f.expectedID(rgName, serverName, target.Name)), nil
}

func (f *FirewallRule) Delete(ctx context.Context, target *model.Handle) error {
	rgName, serverName, err := f.names(target)
	if err != nil {
		return err
	}
	poller, err := f.Client.FirewallRulesClient.BeginDelete(ctx, rgName, serverName, target.Name, nil)
	if err != nil {
		if isDeleteSuccessError(err) {
			return nil
		}
		return wrapAzureError("failed to start FirewallRule deletion", err)
	}
	if _, err := poller.PollUntilDone(ctx, f.Client.PollOptions()); err != nil && !isDeleteSuccessError(err) {
		return wrapAzureError("failed to delete FirewallRule", err)
	}
	return nil
}

func (f *FirewallRule) Get(ctx context.Context, target *model.Handle) (*model.Handle, error) {
	rgName, serverName, err := f.names(target)
	if err != nil {
		return nil, err
	}
	result, err := f.Client.FirewallRulesClient.Get(ctx, rgName, serverName, target.Name, nil)
	if err != nil {
		return nil, readError(target, err)
	}
	return observed(target, result.ID, f.expectedID(rgName, serverName, target.Name)), nil
}

func (f *FirewallRule) List(ctx context.Context, kind string, scope *model.Handle) ([]*model.Handle, error) {
	serverName, err := listScopeName(kind, scope, ResourceTypeFlexibleServer)
	if err != nil {
		return nil, err
	}
	resourceGroupName, err := listScopeName(kind, scope, ResourceTypeResourceGroup)
	if err != nil {
		return nil, err
	}

	pager := f.Client.FirewallRulesClient.NewListByServerPager(resourceGroupName, serverName, nil)

	var out []*model.Handle
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrapAzureError(fmt.Sprintf("failed to list firewall rules for server %s", serverName), err)
		}
		for _, rule := range page.Value {
			if h := listed(kind, scope, rule.Name, rule.ID); h != nil {
				out = append(out, h)
			}
		}
	}
	return out, nil
}
