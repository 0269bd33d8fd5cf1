// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/keyvault/armkeyvault"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/client"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/model"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/prov"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/registry"
)

const ResourceTypeKeyVault = "Azure::KeyVault::Vault"

func init() {
	registry.Register(ResourceTypeKeyVault, func(client *client.Client) prov.Adapter {
		return &KeyVault{client}
	})
}

// KeyVault is the provisioner for Azure Key Vaults.
type KeyVault struct {
	Client *client.Client
}

func (kv *KeyVault) expectedID(rgName, vaultName string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.KeyVault/vaults/%s",
		kv.Client.Config.SubscriptionId, rgName, vaultName)
}

// enumSlice converts a JSON array of strings into SDK enum pointers,
// ignoring entries that are not strings.
func enumSlice[T ~string](raw any) []*T {
	items, _ := raw.([]any)
	out := make([]*T, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			v := T(s)
			out = append(out, &v)
		}
	}
	return out
}

func parseAccessPolicies(accessPoliciesRaw []any) []*armkeyvault.AccessPolicyEntry {
	accessPolicies := make([]*armkeyvault.AccessPolicyEntry, 0, len(accessPoliciesRaw))
	for _, apRaw := range accessPoliciesRaw {
		apMap, ok := apRaw.(map[string]any)
		if !ok {
			continue
		}
		entry := &armkeyvault.AccessPolicyEntry{}
		if tid, ok := apMap["tenantId"].(string); ok {
			entry.TenantID = stringPtr(tid)
		}
		if oid, ok := apMap["objectId"].(string); ok {
			entry.ObjectID = stringPtr(oid)
		}
		if permsRaw, ok := apMap["permissions"].(map[string]any); ok {
			entry.Permissions = &armkeyvault.Permissions{}
			if keys, ok := permsRaw["keys"]; ok {
				entry.Permissions.Keys = enumSlice[armkeyvault.KeyPermissions](keys)
			}
			if secrets, ok := permsRaw["secrets"]; ok {
				entry.Permissions.Secrets = enumSlice[armkeyvault.SecretPermissions](secrets)
			}
			if certs, ok := permsRaw["certificates"]; ok {
				entry.Permissions.Certificates = enumSlice[armkeyvault.CertificatePermissions](certs)
			}
			if storage, ok := permsRaw["storage"]; ok {
				entry.Permissions.Storage = enumSlice[armkeyvault.StoragePermissions](storage)
			}
		}
		accessPolicies = append(accessPolicies, entry)
	}
	return accessPolicies
}

func parseVaultNetworkACLs(networkAclsRaw map[string]any) *armkeyvault.NetworkRuleSet {
	acls := &armkeyvault.NetworkRuleSet{}
	if defaultAction, ok := networkAclsRaw["defaultAction"].(string); ok {
		acls.DefaultAction = to.Ptr(armkeyvault.NetworkRuleAction(defaultAction))
	}
	if bypass, ok := networkAclsRaw["bypass"].(string); ok {
		acls.Bypass = to.Ptr(armkeyvault.NetworkRuleBypassOptions(bypass))
	}
	if ipRulesRaw, ok := networkAclsRaw["ipRules"].([]any); ok {
		for _, rule := range ipRulesRaw {
			if ruleMap, ok := rule.(map[string]any); ok {
				if value, ok := ruleMap["value"].(string); ok {
					acls.IPRules = append(acls.IPRules, &armkeyvault.IPRule{Value: stringPtr(value)})
				}
			}
		}
	}
	if vnetRulesRaw, ok := networkAclsRaw["virtualNetworkRules"].([]any); ok {
		for _, rule := range vnetRulesRaw {
			if ruleMap, ok := rule.(map[string]any); ok {
				if id, ok := ruleMap["id"].(string); ok {
					acls.VirtualNetworkRules = append(acls.VirtualNetworkRules, &armkeyvault.VirtualNetworkRule{ID: stringPtr(id)})
				}
			}
		}
	}
	return acls
}

func (kv *KeyVault) CreateOrUpdate(ctx context.Context, target *model.Handle, payload json.RawMessage) (*model.Handle, error) {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return nil, err
	}
	props, err := parseProps(payload)
	if err != nil {
		return nil, err
	}

	tenantID, ok := props["tenantId"].(string)
	if !ok || tenantID == "" {
		return nil, fmt.Errorf("tenantId is required")
	}
	skuMap, ok := props["sku"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("sku is required")
	}
	skuName, ok := skuMap["name"].(string)
	if !ok || skuName == "" {
		return nil, fmt.Errorf("sku.name is required")
	}

	params := armkeyvault.VaultCreateOrUpdateParameters{
		Location: stringPtr(locationOf(props, kv.Client)),
		Properties: &armkeyvault.VaultProperties{
			TenantID: stringPtr(tenantID),
			SKU: &armkeyvault.SKU{
				Family: to.Ptr(armkeyvault.SKUFamilyA),
				Name:   to.Ptr(armkeyvault.SKUName(skuName)),
			},
		},
		Tags: payloadTags(payload, props),
	}

	if v, ok := props["enabledForDeployment"].(bool); ok {
		params.Properties.EnabledForDeployment = to.Ptr(v)
	}
	if v, ok := props["enabledForDiskEncryption"].(bool); ok {
		params.Properties.EnabledForDiskEncryption = to.Ptr(v)
	}
	if v, ok := props["enabledForTemplateDeployment"].(bool); ok {
		params.Properties.EnabledForTemplateDeployment = to.Ptr(v)
	}
	if v, ok := props["enableSoftDelete"].(bool); ok {
		params.Properties.EnableSoftDelete = to.Ptr(v)
	}
	if v, ok := props["softDeleteRetentionInDays"].(float64); ok {
		params.Properties.SoftDeleteRetentionInDays = to.Ptr(int32(v))
	}
	if v, ok := props["enablePurgeProtection"].(bool); ok {
		params.Properties.EnablePurgeProtection = to.Ptr(v)
	}
	if v, ok := props["enableRbacAuthorization"].(bool); ok {
		params.Properties.EnableRbacAuthorization = to.Ptr(v)
	}
	if accessPoliciesRaw, ok := props["accessPolicies"].([]any); ok {
		params.Properties.AccessPolicies = parseAccessPolicies(accessPoliciesRaw)
	}
	if networkAclsRaw, ok := props["networkAcls"].(map[string]any); ok {
		params.Properties.NetworkACLs = parseVaultNetworkACLs(networkAclsRaw)
	}

	poller, err := kv.Client.VaultsClient.BeginCreateOrUpdate(ctx, rgName, target.Name, params, nil)
	if err != nil {
		return nil, wrapAzureError("failed to start Key Vault creation", err)
	}
	result, err := poller.PollUntilDone(ctx, kv.Client.PollOptions())
	if err != nil {
		return nil, wrapAzureError("failed to create Key Vault", err)
	}
	return observed(target, result.ID, kv.expectedID(rgName, target.Name)), nil
}

// Delete removes the vault. Soft-deleted vaults are not purged.
func (kv *KeyVault) Delete(ctx context.Context, target *model.Handle) error {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return err
	}
	if _, err := kv.Client.VaultsClient.Delete(ctx, rgName, target.Name, nil); err != nil && !isDeleteSuccessError(err) {
		return wrapAzureError("failed to delete Key Vault", err)
	}
	return nil
}

func (kv *KeyVault) Get(ctx context.Context, target *model.Handle) (*model.Handle, error) {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return nil, err
	}
	result, err := kv.Client.VaultsClient.Get(ctx, rgName, target.Name, nil)
	if err != nil {
		return nil, readError(target, err)
	}
	return observed(target, result.ID, kv.expectedID(rgName, target.Name)), nil
}

func (kv *KeyVault) List(ctx context.Context, kind string, scope *model.Handle) ([]*model.Handle, error) {
	resourceGroupName, err := listScopeName(kind, scope, ResourceTypeResourceGroup)
	if err != nil {
		return nil, err
	}

	pager := kv.Client.VaultsClient.NewListByResourceGroupPager(resourceGroupName, nil)

	var out []*model.Handle
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrapAzureError(fmt.Sprintf("failed to list key vaults in resource group %s", resourceGroupName), err)
		}
		for _, vault := range page.Value {
			if h := listed(kind, scope, vault.Name, vault.ID); h != nil {
				out = append(out, h)
			}
		}
	}
	return out, nil
}
