// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerservice/armcontainerservice/v4"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/client"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/model"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/prov"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/registry"
)

const ResourceTypeManagedCluster = "Azure::ContainerService::ManagedCluster"

func init() {
	registry.Register(ResourceTypeManagedCluster, func(client *client.Client) prov.Adapter {
		return &ManagedCluster{client}
	})
}

// ManagedCluster provisions AKS clusters. The full model is PUT on every
// apply; AKS reconciles the difference.
type ManagedCluster struct {
	Client *client.Client
}

func (mc *ManagedCluster) expectedID(rgName, clusterName string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.ContainerService/managedClusters/%s",
		mc.Client.Config.SubscriptionId, rgName, clusterName)
}

func parseAgentPoolProfiles(poolsRaw []any) ([]*armcontainerservice.ManagedClusterAgentPoolProfile, error) {
	pools := make([]*armcontainerservice.ManagedClusterAgentPoolProfile, 0, len(poolsRaw))
	for i, poolRaw := range poolsRaw {
		poolMap, ok := poolRaw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("agentPoolProfiles[%d] must be an object", i)
		}
		name, ok := poolMap["name"].(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("agentPoolProfiles[%d].name is required", i)
		}

		pool := &armcontainerservice.ManagedClusterAgentPoolProfile{Name: to.Ptr(name)}
		if count, ok := poolMap["count"].(float64); ok {
			pool.Count = to.Ptr(int32(count))
		}
		if vmSize, ok := poolMap["vmSize"].(string); ok {
			pool.VMSize = to.Ptr(vmSize)
		}
		if osDiskSize, ok := poolMap["osDiskSizeGB"].(float64); ok {
			pool.OSDiskSizeGB = to.Ptr(int32(osDiskSize))
		}
		if osType, ok := poolMap["osType"].(string); ok {
			pool.OSType = to.Ptr(armcontainerservice.OSType(osType))
		}
		if mode, ok := poolMap["mode"].(string); ok {
			pool.Mode = to.Ptr(armcontainerservice.AgentPoolMode(mode))
		}
		if enableAutoScaling, ok := poolMap["enableAutoScaling"].(bool); ok {
			pool.EnableAutoScaling = to.Ptr(enableAutoScaling)
		}
		if minCount, ok := poolMap["minCount"].(float64); ok {
			pool.MinCount = to.Ptr(int32(minCount))
		}
		if maxCount, ok := poolMap["maxCount"].(float64); ok {
			pool.MaxCount = to.Ptr(int32(maxCount))
		}
		if subnetID, ok := poolMap["vnetSubnetID"].(string); ok && subnetID != "" {
			pool.VnetSubnetID = to.Ptr(subnetID)
		}
		pools = append(pools, pool)
	}
	return pools, nil
}

func parseClusterNetworkProfile(netRaw map[string]any) *armcontainerservice.NetworkProfile {
	netProfile := &armcontainerservice.NetworkProfile{}
	if plugin, ok := netRaw["networkPlugin"].(string); ok {
		netProfile.NetworkPlugin = to.Ptr(armcontainerservice.NetworkPlugin(plugin))
	}
	if pluginMode, ok := netRaw["networkPluginMode"].(string); ok {
		netProfile.NetworkPluginMode = to.Ptr(armcontainerservice.NetworkPluginMode(pluginMode))
	}
	if policy, ok := netRaw["networkPolicy"].(string); ok {
		netProfile.NetworkPolicy = to.Ptr(armcontainerservice.NetworkPolicy(policy))
	}
	if serviceCidr, ok := netRaw["serviceCidr"].(string); ok {
		netProfile.ServiceCidr = to.Ptr(serviceCidr)
	}
	if dnsServiceIP, ok := netRaw["dnsServiceIP"].(string); ok {
		netProfile.DNSServiceIP = to.Ptr(dnsServiceIP)
	}
	if podCidr, ok := netRaw["podCidr"].(string); ok {
		netProfile.PodCidr = to.Ptr(podCidr)
	}
	if lbSku, ok := netRaw["loadBalancerSku"].(string); ok {
		netProfile.LoadBalancerSKU = to.Ptr(armcontainerservice.LoadBalancerSKU(lbSku))
	}
	return netProfile
}

func (mc *ManagedCluster) CreateOrUpdate(ctx context.Context, target *model.Handle, payload json.RawMessage) (*model.Handle, error) {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return nil, err
	}
	props, err := parseProps(payload)
	if err != nil {
		return nil, err
	}

	poolsRaw, ok := props["agentPoolProfiles"].([]any)
	if !ok || len(poolsRaw) == 0 {
		return nil, fmt.Errorf("agentPoolProfiles is required")
	}
	pools, err := parseAgentPoolProfiles(poolsRaw)
	if err != nil {
		return nil, err
	}

	dnsPrefix := target.Name
	if v, ok := props["dnsPrefix"].(string); ok && v != "" {
		dnsPrefix = v
	}

	params := armcontainerservice.ManagedCluster{
		Location: to.Ptr(locationOf(props, mc.Client)),
		Properties: &armcontainerservice.ManagedClusterProperties{
			DNSPrefix:         to.Ptr(dnsPrefix),
			AgentPoolProfiles: pools,
		},
		Tags: payloadTags(payload, props),
	}

	// AKS rejects clusters without an identity; system-assigned is the default.
	params.Identity = &armcontainerservice.ManagedClusterIdentity{
		Type: to.Ptr(armcontainerservice.ResourceIdentityTypeSystemAssigned),
	}
	if identityRaw, ok := props["identity"].(map[string]any); ok {
		if identityType, ok := identityRaw["type"].(string); ok {
			params.Identity.Type = to.Ptr(armcontainerservice.ResourceIdentityType(identityType))
		}
	}

	if skuRaw, ok := props["sku"].(map[string]any); ok {
		sku := &armcontainerservice.ManagedClusterSKU{}
		if name, ok := skuRaw["name"].(string); ok {
			sku.Name = to.Ptr(armcontainerservice.ManagedClusterSKUName(name))
		}
		if tier, ok := skuRaw["tier"].(string); ok {
			sku.Tier = to.Ptr(armcontainerservice.ManagedClusterSKUTier(tier))
		}
		params.SKU = sku
	}
	if kubeVersion, ok := props["kubernetesVersion"].(string); ok && kubeVersion != "" {
		params.Properties.KubernetesVersion = to.Ptr(kubeVersion)
	}
	if enableRBAC, ok := props["enableRBAC"].(bool); ok {
		params.Properties.EnableRBAC = to.Ptr(enableRBAC)
	}
	if netRaw, ok := props["networkProfile"].(map[string]any); ok {
		params.Properties.NetworkProfile = parseClusterNetworkProfile(netRaw)
	}
	if aadRaw, ok := props["aadProfile"].(map[string]any); ok {
		aadProfile := &armcontainerservice.ManagedClusterAADProfile{}
		if managed, ok := aadRaw["managed"].(bool); ok {
			aadProfile.Managed = to.Ptr(managed)
		}
		if enableAzureRBAC, ok := aadRaw["enableAzureRBAC"].(bool); ok {
			aadProfile.EnableAzureRBAC = to.Ptr(enableAzureRBAC)
		}
		if tenantID, ok := aadRaw["tenantID"].(string); ok {
			aadProfile.TenantID = to.Ptr(tenantID)
		}
		params.Properties.AADProfile = aadProfile
	}
	if linuxRaw, ok := props["linuxProfile"].(map[string]any); ok {
		linuxProfile := &armcontainerservice.LinuxProfile{}
		if adminUsername, ok := linuxRaw["adminUsername"].(string); ok {
			linuxProfile.AdminUsername = to.Ptr(adminUsername)
		}
		if sshRaw, ok := linuxRaw["ssh"].(map[string]any); ok {
			keysRaw, _ := sshRaw["publicKeys"].([]any)
			var keys []*armcontainerservice.SSHPublicKey
			for _, keyRaw := range keysRaw {
				if keyMap, ok := keyRaw.(map[string]any); ok {
					if keyData, ok := keyMap["keyData"].(string); ok {
						keys = append(keys, &armcontainerservice.SSHPublicKey{KeyData: to.Ptr(keyData)})
					}
				}
			}
			if len(keys) > 0 {
				linuxProfile.SSH = &armcontainerservice.SSHConfiguration{PublicKeys: keys}
			}
		}
		params.Properties.LinuxProfile = linuxProfile
	}

	poller, err := mc.Client.ManagedClustersClient.BeginCreateOrUpdate(ctx, rgName, target.Name, params, nil)
	if err != nil {
		return nil, wrapAzureError("failed to start AKS cluster creation", err)
	}
	result, err := poller.PollUntilDone(ctx, mc.Client.PollOptions())
	if err != nil {
		return nil, wrapAzureError("failed to create AKS cluster", err)
	}
	return observed(target, result.ID, mc.expectedID(rgName, target.Name)), nil
}

func (mc *ManagedCluster) Delete(ctx context.Context, target *model.Handle) error {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return err
	}
	poller, err := mc.Client.ManagedClustersClient.BeginDelete(ctx, rgName, target.Name, nil)
	if err != nil {
		if isDeleteSuccessError(err) {
			return nil
		}
		return wrapAzureError("failed to start AKS cluster deletion", err)
	}
	if _, err := poller.PollUntilDone(ctx, mc.Client.PollOptions()); err != nil && !isDeleteSuccessError(err) {
		return wrapAzureError("failed to delete AKS cluster", err)
	}
	return nil
}

func (mc *ManagedCluster) Get(ctx context.Context, target *model.Handle) (*model.Handle, error) {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return nil, err
	}
	result, err := mc.Client.ManagedClustersClient.Get(ctx, rgName, target.Name, nil)
	if err != nil {
		return nil, readError(target, err)
	}
	return observed(target, result.ID, mc.expectedID(rgName, target.Name)), nil
}

func (mc *ManagedCluster) List(ctx context.Context, kind string, scope *model.Handle) ([]*model.Handle, error) {
	resourceGroupName, err := listScopeName(kind, scope, ResourceTypeResourceGroup)
	if err != nil {
		return nil, err
	}

	pager := mc.Client.ManagedClustersClient.NewListByResourceGroupPager(resourceGroupName, nil)

	var out []*model.Handle
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrapAzureError(fmt.Sprintf("failed to list AKS clusters in resource group %s", resourceGroupName), err)
		}
		for _, cluster := range page.Value {
			if h := listed(kind, scope, cluster.Name, cluster.ID); h != nil {
				out = append(out, h)
			}
		}
	}
	return out, nil
}
