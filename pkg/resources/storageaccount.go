// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"
	"github.com/platform-engineering-labs/formae/pkg/plugin"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/client"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/model"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/prov"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/registry"
)

const ResourceTypeStorageAccount = "Azure::Storage::StorageAccount"

func init() {
	registry.Register(ResourceTypeStorageAccount, func(client *client.Client) prov.Adapter {
		return &StorageAccount{client}
	})
}

// StorageAccount is the provisioner for Azure Storage Accounts.
//
// The first apply creates the account with a PUT; later applies PATCH the
// mutable settings (SKU, access tier, TLS, tags) of the existing account.
type StorageAccount struct {
	Client *client.Client
}

func (s *StorageAccount) expectedID(rgName, accountName string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Storage/storageAccounts/%s",
		s.Client.Config.SubscriptionId, rgName, accountName)
}

func parseStorageSKU(props map[string]any) *armstorage.SKU {
	skuRaw, ok := props["sku"].(map[string]any)
	if !ok {
		return nil
	}
	name, ok := skuRaw["name"].(string)
	if !ok || name == "" {
		return nil
	}
	skuName := armstorage.SKUName(name)
	return &armstorage.SKU{Name: &skuName}
}

func (s *StorageAccount) CreateOrUpdate(ctx context.Context, target *model.Handle, payload json.RawMessage) (*model.Handle, error) {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return nil, err
	}
	props, err := parseProps(payload)
	if err != nil {
		return nil, err
	}

	_, err = s.Client.StorageAccountsClient.GetProperties(ctx, rgName, target.Name, nil)
	switch {
	case err == nil:
		return s.update(ctx, target, rgName, props, payload)
	case isDeleteSuccessError(err):
		return s.create(ctx, target, rgName, props, payload)
	default:
		return nil, wrapAzureError("failed to read StorageAccount", err)
	}
}

func (s *StorageAccount) create(ctx context.Context, target *model.Handle, rgName string, props map[string]any, payload json.RawMessage) (*model.Handle, error) {
	sku := parseStorageSKU(props)
	if sku == nil {
		return nil, fmt.Errorf("sku.name is required")
	}

	kindRaw, ok := props["kind"].(string)
	if !ok || kindRaw == "" {
		return nil, fmt.Errorf("kind is required")
	}
	kind := armstorage.Kind(kindRaw)

	params := armstorage.AccountCreateParameters{
		Location:   stringPtr(locationOf(props, s.Client)),
		SKU:        sku,
		Kind:       &kind,
		Properties: &armstorage.AccountPropertiesCreateParameters{},
		Tags:       payloadTags(payload, props),
	}

	if accessTier, ok := props["accessTier"].(string); ok {
		tier := armstorage.AccessTier(accessTier)
		params.Properties.AccessTier = &tier
	}
	if httpsOnly, ok := props["enableHttpsTrafficOnly"].(bool); ok {
		params.Properties.EnableHTTPSTrafficOnly = &httpsOnly
	}
	if tlsVersion, ok := props["minimumTlsVersion"].(string); ok {
		version := armstorage.MinimumTLSVersion(tlsVersion)
		params.Properties.MinimumTLSVersion = &version
	}
	if allowPublicAccess, ok := props["allowBlobPublicAccess"].(bool); ok {
		params.Properties.AllowBlobPublicAccess = &allowPublicAccess
	}

	poller, err := s.Client.StorageAccountsClient.BeginCreate(ctx, rgName, target.Name, params, nil)
	if err != nil {
		return nil, wrapAzureError("failed to start StorageAccount creation", err)
	}
	result, err := poller.PollUntilDone(ctx, s.Client.PollOptions())
	if err != nil {
		return nil, wrapAzureError("failed to create StorageAccount", err)
	}
	return observed(target, result.ID, s.expectedID(rgName, target.Name)), nil
}

func (s *StorageAccount) update(ctx context.Context, target *model.Handle, rgName string, props map[string]any, payload json.RawMessage) (*model.Handle, error) {
	params := armstorage.AccountUpdateParameters{
		SKU:        parseStorageSKU(props),
		Properties: &armstorage.AccountPropertiesUpdateParameters{},
		Tags:       payloadTags(payload, props),
	}

	if accessTier, ok := props["accessTier"].(string); ok {
		tier := armstorage.AccessTier(accessTier)
		params.Properties.AccessTier = &tier
	}
	if httpsOnly, ok := props["enableHttpsTrafficOnly"].(bool); ok {
		params.Properties.EnableHTTPSTrafficOnly = &httpsOnly
	}
	if tlsVersion, ok := props["minimumTlsVersion"].(string); ok {
		version := armstorage.MinimumTLSVersion(tlsVersion)
		params.Properties.MinimumTLSVersion = &version
	}
	if allowPublicAccess, ok := props["allowBlobPublicAccess"].(bool); ok {
		params.Properties.AllowBlobPublicAccess = &allowPublicAccess
	}

	plugin.LoggerFromContext(ctx).Debug("StorageAccount exists, patching", "resourceGroup", rgName, "name", target.Name)

	result, err := s.Client.StorageAccountsClient.Update(ctx, rgName, target.Name, params, nil)
	if err != nil {
		return nil, wrapAzureError("failed to update StorageAccount", err)
	}
	return observed(target, result.ID, s.expectedID(rgName, target.Name)), nil
}

func (s *StorageAccount) Delete(ctx context.Context, target *model.Handle) error {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return err
	}
	// Storage account deletion is synchronous.
	if _, err := s.Client.StorageAccountsClient.Delete(ctx, rgName, target.Name, nil); err != nil && !isDeleteSuccessError(err) {
		return wrapAzureError("failed to delete StorageAccount", err)
	}
	return nil
}

func (s *StorageAccount) Get(ctx context.Context, target *model.Handle) (*model.Handle, error) {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return nil, err
	}
	result, err := s.Client.StorageAccountsClient.GetProperties(ctx, rgName, target.Name, nil)
	if err != nil {
		return nil, readError(target, err)
	}
	return observed(target, result.ID, s.expectedID(rgName, target.Name)), nil
}

func (s *StorageAccount) List(ctx context.Context, kind string, scope *model.Handle) ([]*model.Handle, error) {
	resourceGroupName, err := listScopeName(kind, scope, ResourceTypeResourceGroup)
	if err != nil {
		return nil, err
	}

	pager := s.Client.StorageAccountsClient.NewListByResourceGroupPager(resourceGroupName, nil)

	var out []*model.Handle
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrapAzureError(fmt.Sprintf("failed to list storage accounts in resource group %s", resourceGroupName), err)
		}
		for _, account := range page.Value {
			if h := listed(kind, scope, account.Name, account.ID); h != nil {
				out = append(out, h)
			}
		}
	}
	return out, nil
}
