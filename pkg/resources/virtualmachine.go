// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/client"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/model"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/prov"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/registry"
)

const ResourceTypeVirtualMachine = "Azure::Compute::VirtualMachine"

func init() {
	registry.Register(ResourceTypeVirtualMachine, func(client *client.Client) prov.Adapter {
		return &VirtualMachine{client}
	})
}

// VirtualMachine provisions VMs. The first apply sends the full model; later
// applies only PATCH the size and tags, since OS and storage profiles are
// fixed at creation.
type VirtualMachine struct {
	Client *client.Client
}

func (vm *VirtualMachine) expectedID(rgName, vmName string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Compute/virtualMachines/%s",
		vm.Client.Config.SubscriptionId, rgName, vmName)
}

func (vm *VirtualMachine) CreateOrUpdate(ctx context.Context, target *model.Handle, payload json.RawMessage) (*model.Handle, error) {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return nil, err
	}
	props, err := parseProps(payload)
	if err != nil {
		return nil, err
	}

	_, err = vm.Client.VirtualMachinesClient.Get(ctx, rgName, target.Name, nil)
	switch {
	case err == nil:
		return vm.update(ctx, target, rgName, props, payload)
	case !isDeleteSuccessError(err):
		return nil, wrapAzureError("failed to read VirtualMachine", err)
	}

	params, err := vm.buildModel(target, props, payload)
	if err != nil {
		return nil, err
	}

	poller, err := vm.Client.VirtualMachinesClient.BeginCreateOrUpdate(ctx, rgName, target.Name, params, nil)
	if err != nil {
		return nil, wrapAzureError("failed to start VirtualMachine creation", err)
	}
	result, err := poller.PollUntilDone(ctx, vm.Client.PollOptions())
	if err != nil {
		return nil, wrapAzureError("failed to create VirtualMachine", err)
	}
	return observed(target, result.ID, vm.expectedID(rgName, target.Name)), nil
}

func (vm *VirtualMachine) buildModel(target *model.Handle, props map[string]any, payload json.RawMessage) (armcompute.VirtualMachine, error) {
	vmSize, ok := props["vmSize"].(string)
	if !ok || vmSize == "" {
		return armcompute.VirtualMachine{}, fmt.Errorf("vmSize is required")
	}

	nicsRaw, ok := props["networkInterfaces"].([]any)
	if !ok || len(nicsRaw) == 0 {
		return armcompute.VirtualMachine{}, fmt.Errorf("networkInterfaces is required")
	}
	networkInterfaces := make([]*armcompute.NetworkInterfaceReference, 0, len(nicsRaw))
	for i, nicRaw := range nicsRaw {
		nicMap, ok := nicRaw.(map[string]any)
		if !ok {
			return armcompute.VirtualMachine{}, fmt.Errorf("networkInterfaces[%d] must be an object", i)
		}
		nicID, ok := nicMap["id"].(string)
		if !ok || nicID == "" {
			return armcompute.VirtualMachine{}, fmt.Errorf("networkInterfaces[%d].id is required", i)
		}
		nicRef := &armcompute.NetworkInterfaceReference{ID: stringPtr(nicID)}
		if primary, ok := nicMap["primary"].(bool); ok {
			nicRef.Properties = &armcompute.NetworkInterfaceReferenceProperties{Primary: to.Ptr(primary)}
		}
		networkInterfaces = append(networkInterfaces, nicRef)
	}

	imageRefRaw, ok := props["imageReference"].(map[string]any)
	if !ok {
		return armcompute.VirtualMachine{}, fmt.Errorf("imageReference is required")
	}
	imageRef := &armcompute.ImageReference{}
	if publisher, ok := imageRefRaw["publisher"].(string); ok {
		imageRef.Publisher = stringPtr(publisher)
	}
	if offer, ok := imageRefRaw["offer"].(string); ok {
		imageRef.Offer = stringPtr(offer)
	}
	if sku, ok := imageRefRaw["sku"].(string); ok {
		imageRef.SKU = stringPtr(sku)
	}
	if version, ok := imageRefRaw["version"].(string); ok {
		imageRef.Version = stringPtr(version)
	}

	osDisk := &armcompute.OSDisk{CreateOption: to.Ptr(armcompute.DiskCreateOptionTypesFromImage)}
	if osDiskRaw, ok := props["osDisk"].(map[string]any); ok {
		if name, ok := osDiskRaw["name"].(string); ok && name != "" {
			osDisk.Name = stringPtr(name)
		}
		if createOption, ok := osDiskRaw["createOption"].(string); ok {
			co := armcompute.DiskCreateOptionTypes(createOption)
			osDisk.CreateOption = &co
		}
		if diskSizeGB, ok := osDiskRaw["diskSizeGB"].(float64); ok {
			osDisk.DiskSizeGB = to.Ptr(int32(diskSizeGB))
		}
		if caching, ok := osDiskRaw["caching"].(string); ok {
			c := armcompute.CachingTypes(caching)
			osDisk.Caching = &c
		}
		if managedDiskRaw, ok := osDiskRaw["managedDisk"].(map[string]any); ok {
			osDisk.ManagedDisk = &armcompute.ManagedDiskParameters{}
			if storageAccountType, ok := managedDiskRaw["storageAccountType"].(string); ok {
				sat := armcompute.StorageAccountTypes(storageAccountType)
				osDisk.ManagedDisk.StorageAccountType = &sat
			}
		}
	}

	adminUsername, ok := props["adminUsername"].(string)
	if !ok || adminUsername == "" {
		return armcompute.VirtualMachine{}, fmt.Errorf("adminUsername is required")
	}
	computerName := target.Name
	if cn, ok := props["computerName"].(string); ok && cn != "" {
		computerName = cn
	}

	params := armcompute.VirtualMachine{
		Location: stringPtr(locationOf(props, vm.Client)),
		Properties: &armcompute.VirtualMachineProperties{
			HardwareProfile: &armcompute.HardwareProfile{
				VMSize: to.Ptr(armcompute.VirtualMachineSizeTypes(vmSize)),
			},
			NetworkProfile: &armcompute.NetworkProfile{
				NetworkInterfaces: networkInterfaces,
			},
			StorageProfile: &armcompute.StorageProfile{
				ImageReference: imageRef,
				OSDisk:         osDisk,
			},
			OSProfile: &armcompute.OSProfile{
				ComputerName:  stringPtr(computerName),
				AdminUsername: stringPtr(adminUsername),
			},
		},
		Tags: payloadTags(payload, props),
	}

	if adminPassword, ok := props["adminPassword"].(string); ok && adminPassword != "" {
		params.Properties.OSProfile.AdminPassword = stringPtr(adminPassword)
	}

	if linuxConfigRaw, ok := props["linuxConfiguration"].(map[string]any); ok {
		linuxConfig := &armcompute.LinuxConfiguration{}
		if disablePassword, ok := linuxConfigRaw["disablePasswordAuthentication"].(bool); ok {
			linuxConfig.DisablePasswordAuthentication = to.Ptr(disablePassword)
		}
		if provisionVMAgent, ok := linuxConfigRaw["provisionVMAgent"].(bool); ok {
			linuxConfig.ProvisionVMAgent = to.Ptr(provisionVMAgent)
		}
		if sshRaw, ok := linuxConfigRaw["ssh"].(map[string]any); ok {
			if publicKeysRaw, ok := sshRaw["publicKeys"].([]any); ok {
				publicKeys := make([]*armcompute.SSHPublicKey, 0, len(publicKeysRaw))
				for _, pkRaw := range publicKeysRaw {
					if pkMap, ok := pkRaw.(map[string]any); ok {
						pk := &armcompute.SSHPublicKey{}
						if path, ok := pkMap["path"].(string); ok {
							pk.Path = stringPtr(path)
						}
						if keyData, ok := pkMap["keyData"].(string); ok {
							pk.KeyData = stringPtr(keyData)
						}
						publicKeys = append(publicKeys, pk)
					}
				}
				linuxConfig.SSH = &armcompute.SSHConfiguration{PublicKeys: publicKeys}
			}
		}
		params.Properties.OSProfile.LinuxConfiguration = linuxConfig
	}

	return params, nil
}

func (vm *VirtualMachine) update(ctx context.Context, target *model.Handle, rgName string, props map[string]any, payload json.RawMessage) (*model.Handle, error) {
	params := armcompute.VirtualMachineUpdate{
		Tags: payloadTags(payload, props),
	}
	if vmSize, ok := props["vmSize"].(string); ok && vmSize != "" {
		params.Properties = &armcompute.VirtualMachineProperties{
			HardwareProfile: &armcompute.HardwareProfile{
				VMSize: to.Ptr(armcompute.VirtualMachineSizeTypes(vmSize)),
			},
		}
	}

	poller, err := vm.Client.VirtualMachinesClient.BeginUpdate(ctx, rgName, target.Name, params, nil)
	if err != nil {
		return nil, wrapAzureError("failed to start VirtualMachine update", err)
	}
	result, err := poller.PollUntilDone(ctx, vm.Client.PollOptions())
	if err != nil {
		return nil, wrapAzureError("failed to update VirtualMachine", err)
	}
	return observed(target, result.ID, vm.expectedID(rgName, target.Name)), nil
}

func (vm *VirtualMachine) Delete(ctx context.Context, target *model.Handle) error {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return err
	}
	poller, err := vm.Client.VirtualMachinesClient.BeginDelete(ctx, rgName, target.Name, nil)
	if err != nil {
		if isDeleteSuccessError(err) {
			return nil
		}
		return wrapAzureError("failed to start VirtualMachine deletion", err)
	}
	if _, err := poller.PollUntilDone(ctx, vm.Client.PollOptions()); err != nil && !isDeleteSuccessError(err) {
		return wrapAzureError("failed to delete VirtualMachine", err)
	}
	return nil
}

func (vm *VirtualMachine) Get(ctx context.Context, target *model.Handle) (*model.Handle, error) {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return nil, err
	}
	result, err := vm.Client.VirtualMachinesClient.Get(ctx, rgName, target.Name, nil)
	if err != nil {
		return nil, readError(target, err)
	}
	return observed(target, result.ID, vm.expectedID(rgName, target.Name)), nil
}

func (vm *VirtualMachine) List(ctx context.Context, kind string, scope *model.Handle) ([]*model.Handle, error) {
	resourceGroupName, err := listScopeName(kind, scope, ResourceTypeResourceGroup)
	if err != nil {
		return nil, err
	}

	pager := vm.Client.VirtualMachinesClient.NewListPager(resourceGroupName, nil)

	var out []*model.Handle
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrapAzureError(fmt.Sprintf("failed to list virtual machines in resource group %s", resourceGroupName), err)
		}
		for _, machine := range page.Value {
			if h := listed(kind, scope, machine.Name, machine.ID); h != nil {
				out = append(out, h)
			}
		}
	}
	return out, nil
}
