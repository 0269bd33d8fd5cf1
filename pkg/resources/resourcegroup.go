// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/platform-engineering-labs/formae/pkg/plugin"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/client"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/model"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/prov"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/registry"
)

const ResourceTypeResourceGroup = "Azure::Resources::ResourceGroup"

func init() {
	registry.Register(ResourceTypeResourceGroup, func(client *client.Client) prov.Adapter {
		return &ResourceGroup{client}
	})
}

// ResourceGroup provisions resource groups. They live at subscription scope,
// so handles of this kind have no Scope.
type ResourceGroup struct {
	Client *client.Client
}

func (rg *ResourceGroup) expectedID(name string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s", rg.Client.Config.SubscriptionId, name)
}

func (rg *ResourceGroup) CreateOrUpdate(ctx context.Context, target *model.Handle, payload json.RawMessage) (*model.Handle, error) {
	props, err := parseProps(payload)
	if err != nil {
		return nil, err
	}

	params := armresources.ResourceGroup{
		Location: stringPtr(locationOf(props, rg.Client)),
		Tags:     payloadTags(payload, props),
	}
	if managedBy, ok := props["managedBy"].(string); ok && managedBy != "" {
		params.ManagedBy = &managedBy
	}

	// Resource groups are synchronous; CreateOrUpdate covers both paths.
	result, err := rg.Client.ResourceGroupsClient.CreateOrUpdate(ctx, target.Name, params, nil)
	if err != nil {
		return nil, wrapAzureError("failed to create or update resource group", err)
	}
	return observed(target, result.ID, rg.expectedID(target.Name)), nil
}

func (rg *ResourceGroup) Delete(ctx context.Context, target *model.Handle) error {
	poller, err := rg.Client.ResourceGroupsClient.BeginDelete(ctx, target.Name, nil)
	if err != nil {
		// If the resource is already gone (NotFound), treat as success
		if isDeleteSuccessError(err) {
			return nil
		}
		return wrapAzureError("failed to start resource group deletion", err)
	}
	if _, err := poller.PollUntilDone(ctx, rg.Client.PollOptions()); err != nil && !isDeleteSuccessError(err) {
		return wrapAzureError("failed to delete resource group", err)
	}
	return nil
}

func (rg *ResourceGroup) Get(ctx context.Context, target *model.Handle) (*model.Handle, error) {
	result, err := rg.Client.ResourceGroupsClient.Get(ctx, target.Name, nil)
	if err != nil {
		return nil, readError(target, err)
	}
	return observed(target, result.ID, rg.expectedID(target.Name)), nil
}

func (rg *ResourceGroup) List(ctx context.Context, kind string, scope *model.Handle) ([]*model.Handle, error) {
	log := plugin.LoggerFromContext(ctx)
	log.Debug("ResourceGroup.List starting")

	pager := rg.Client.ResourceGroupsClient.NewListPager(nil)

	var out []*model.Handle
	pageNum := 0

	for pager.More() {
		pageNum++
		page, err := pager.NextPage(ctx)
		if err != nil {
			log.Error("ResourceGroup.List failed", "page", pageNum, "error", err)
			return nil, wrapAzureError("failed to list resource groups", err)
		}

		log.Debug("ResourceGroup.List page received", "page", pageNum, "itemsInPage", len(page.Value))

		for _, group := range page.Value {
			if h := listed(kind, nil, group.Name, group.ID); h != nil {
				out = append(out, h)
			}
		}
	}

	log.Debug("ResourceGroup.List completed", "totalPages", pageNum, "totalItems", len(out))
	return out, nil
}
