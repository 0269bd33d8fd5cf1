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

const ResourceTypeFlexibleServer = "Azure::DBforPostgreSQL::FlexibleServer"

func init() {
	registry.Register(ResourceTypeFlexibleServer, func(client *client.Client) prov.Adapter {
		return &FlexibleServer{client}
	})
}

// FlexibleServer provisions PostgreSQL flexible servers. Version, admin login
// and network placement are fixed at creation; updates PATCH the rest.
type FlexibleServer struct {
	Client *client.Client
}

func (f *FlexibleServer) expectedID(rgName, serverName string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.DBforPostgreSQL/flexibleServers/%s",
		f.Client.Config.SubscriptionId, rgName, serverName)
}

// serverSettings holds the properties shared by create and update.
type serverSettings struct {
	sku               *armpostgresqlflexibleservers.SKU
	storage           *armpostgresqlflexibleservers.Storage
	backup            *armpostgresqlflexibleservers.Backup
	highAvailability  *armpostgresqlflexibleservers.HighAvailability
	maintenanceWindow *armpostgresqlflexibleservers.MaintenanceWindow
	authConfig        *armpostgresqlflexibleservers.AuthConfig
}

func parseServerSettings(props map[string]any) serverSettings {
	var s serverSettings

	if skuMap, ok := props["sku"].(map[string]any); ok {
		s.sku = &armpostgresqlflexibleservers.SKU{}
		if v, ok := skuMap["name"].(string); ok {
			s.sku.Name = to.Ptr(v)
		}
		if v, ok := skuMap["tier"].(string); ok {
			s.sku.Tier = to.Ptr(armpostgresqlflexibleservers.SKUTier(v))
		}
	}

	if storageMap, ok := props["storage"].(map[string]any); ok {
		s.storage = &armpostgresqlflexibleservers.Storage{}
		if v, ok := storageMap["storageSizeGB"].(float64); ok {
			s.storage.StorageSizeGB = to.Ptr(int32(v))
		}
		if v, ok := storageMap["autoGrow"].(string); ok {
			s.storage.AutoGrow = to.Ptr(armpostgresqlflexibleservers.StorageAutoGrow(v))
		}
		if v, ok := storageMap["tier"].(string); ok {
			s.storage.Tier = to.Ptr(armpostgresqlflexibleservers.AzureManagedDiskPerformanceTiers(v))
		}
		if v, ok := storageMap["iops"].(float64); ok {
			s.storage.Iops = to.Ptr(int32(v))
		}
		if v, ok := storageMap["throughput"].(float64); ok {
			s.storage.Throughput = to.Ptr(int32(v))
		}
	}

	if backupMap, ok := props["backup"].(map[string]any); ok {
		s.backup = &armpostgresqlflexibleservers.Backup{}
		if v, ok := backupMap["backupRetentionDays"].(float64); ok {
			s.backup.BackupRetentionDays = to.Ptr(int32(v))
		}
		if v, ok := backupMap["geoRedundantBackup"].(string); ok {
			s.backup.GeoRedundantBackup = to.Ptr(armpostgresqlflexibleservers.GeoRedundantBackupEnum(v))
		}
	}

	if haMap, ok := props["highAvailability"].(map[string]any); ok {
		s.highAvailability = &armpostgresqlflexibleservers.HighAvailability{}
		if v, ok := haMap["mode"].(string); ok {
			s.highAvailability.Mode = to.Ptr(armpostgresqlflexibleservers.HighAvailabilityMode(v))
		}
		if v, ok := haMap["standbyAvailabilityZone"].(string); ok {
			s.highAvailability.StandbyAvailabilityZone = to.Ptr(v)
		}
	}

	if mwMap, ok := props["maintenanceWindow"].(map[string]any); ok {
		s.maintenanceWindow = &armpostgresqlflexibleservers.MaintenanceWindow{}
		if v, ok := mwMap["customWindow"].(string); ok {
			s.maintenanceWindow.CustomWindow = to.Ptr(v)
		}
		if v, ok := mwMap["dayOfWeek"].(float64); ok {
			s.maintenanceWindow.DayOfWeek = to.Ptr(int32(v))
		}
		if v, ok := mwMap["startHour"].(float64); ok {
			s.maintenanceWindow.StartHour = to.Ptr(int32(v))
		}
		if v, ok := mwMap["startMinute"].(float64); ok {
			s.maintenanceWindow.StartMinute = to.Ptr(int32(v))
		}
	}

	if authMap, ok := props["authConfig"].(map[string]any); ok {
		s.authConfig = &armpostgresqlflexibleservers.AuthConfig{}
		if v, ok := authMap["activeDirectoryAuth"].(string); ok {
			s.authConfig.ActiveDirectoryAuth = to.Ptr(armpostgresqlflexibleservers.ActiveDirectoryAuthEnum(v))
		}
		if v, ok := authMap["passwordAuth"].(string); ok {
			s.authConfig.PasswordAuth = to.Ptr(armpostgresqlflexibleservers.PasswordAuthEnum(v))
		}
		if v, ok := authMap["tenantId"].(string); ok {
			s.authConfig.TenantID = to.Ptr(v)
		}
	}

	return s
}

func (f *FlexibleServer) CreateOrUpdate(ctx context.Context, target *model.Handle, payload json.RawMessage) (*model.Handle, error) {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return nil, err
	}
	props, err := parseProps(payload)
	if err != nil {
		return nil, err
	}
	settings := parseServerSettings(props)

	_, err = f.Client.FlexibleServersClient.Get(ctx, rgName, target.Name, nil)
	switch {
	case err == nil:
		return f.update(ctx, target, rgName, settings, payloadTags(payload, props))
	case !isDeleteSuccessError(err):
		return nil, wrapAzureError("failed to read FlexibleServer", err)
	}

	version, ok := props["version"].(string)
	if !ok || version == "" {
		return nil, fmt.Errorf("version is required")
	}
	adminLogin, ok := props["administratorLogin"].(string)
	if !ok || adminLogin == "" {
		return nil, fmt.Errorf("administratorLogin is required")
	}
	adminPassword, ok := props["administratorLoginPassword"].(string)
	if !ok || adminPassword == "" {
		return nil, fmt.Errorf("administratorLoginPassword is required")
	}
	if settings.sku == nil || settings.sku.Name == nil || settings.sku.Tier == nil {
		return nil, fmt.Errorf("sku.name and sku.tier are required")
	}

	params := armpostgresqlflexibleservers.Server{
		Location: to.Ptr(locationOf(props, f.Client)),
		SKU:      settings.sku,
		Properties: &armpostgresqlflexibleservers.ServerProperties{
			Version:                    to.Ptr(armpostgresqlflexibleservers.ServerVersion(version)),
			AdministratorLogin:         to.Ptr(adminLogin),
			AdministratorLoginPassword: to.Ptr(adminPassword),
			CreateMode:                 to.Ptr(armpostgresqlflexibleservers.CreateModeDefault),
			Storage:                    settings.storage,
			Backup:                     settings.backup,
			HighAvailability:           settings.highAvailability,
			MaintenanceWindow:          settings.maintenanceWindow,
			AuthConfig:                 settings.authConfig,
		},
		Tags: payloadTags(payload, props),
	}
	if az, ok := props["availabilityZone"].(string); ok && az != "" {
		params.Properties.AvailabilityZone = to.Ptr(az)
	}
	if networkMap, ok := props["network"].(map[string]any); ok {
		network := &armpostgresqlflexibleservers.Network{}
		if v, ok := networkMap["delegatedSubnetResourceId"].(string); ok {
			network.DelegatedSubnetResourceID = to.Ptr(v)
		}
		if v, ok := networkMap["privateDnsZoneArmResourceId"].(string); ok {
			network.PrivateDNSZoneArmResourceID = to.Ptr(v)
		}
		if v, ok := networkMap["publicNetworkAccess"].(string); ok {
			network.PublicNetworkAccess = to.Ptr(armpostgresqlflexibleservers.ServerPublicNetworkAccessState(v))
		}
		params.Properties.Network = network
	}

	poller, err := f.Client.FlexibleServersClient.BeginCreate(ctx, rgName, target.Name, params, nil)
	if err != nil {
		return nil, wrapAzureError("failed to start FlexibleServer creation", err)
	}
	result, err := poller.PollUntilDone(ctx, f.Client.PollOptions())
	if err != nil {
		return nil, wrapAzureError("failed to create FlexibleServer", err)
	}
	return observed(target, result.ID, f.expectedID(rgName, target.Name)), nil
}

func (f *FlexibleServer) update(ctx context.Context, target *model.Handle, rgName string, s serverSettings, tags map[string]*string) (*model.Handle, error) {
	params := armpostgresqlflexibleservers.ServerForUpdate{
		SKU:  s.sku,
		Tags: tags,
	}
	if s.storage != nil || s.backup != nil || s.highAvailability != nil || s.maintenanceWindow != nil || s.authConfig != nil {
		params.Properties = &armpostgresqlflexibleservers.ServerPropertiesForUpdate{
			Storage:           s.storage,
			Backup:            s.backup,
			HighAvailability:  s.highAvailability,
			MaintenanceWindow: s.maintenanceWindow,
			AuthConfig:        s.authConfig,
		}
	}

	poller, err := f.Client.FlexibleServersClient.BeginUpdate(ctx, rgName, target.Name, params, nil)
	if err != nil {
		return nil, wrapAzureError("failed to start FlexibleServer update", err)
	}
	result, err := poller.PollUntilDone(ctx, f.Client.PollOptions())
	if err != nil {
		return nil, wrapAzureError("failed to update FlexibleServer", err)
	}
	return observed(target, result.ID, f.expectedID(rgName, target.Name)), nil
}

func (f *FlexibleServer) Delete(ctx context.Context, target *model.Handle) error {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return err
	}
	poller, err := f.Client.FlexibleServersClient.BeginDelete(ctx, rgName, target.Name, nil)
	if err != nil {
		if isDeleteSuccessError(err) {
			return nil
		}
		return wrapAzureError("failed to start FlexibleServer deletion", err)
	}
	if _, err := poller.PollUntilDone(ctx, f.Client.PollOptions()); err != nil && !isDeleteSuccessError(err) {
		return wrapAzureError("failed to delete FlexibleServer", err)
	}
	return nil
}

func (f *FlexibleServer) Get(ctx context.Context, target *model.Handle) (*model.Handle, error) {
	rgName, err := resourceGroupName(target)
	if err != nil {
		return nil, err
	}
	result, err := f.Client.FlexibleServersClient.Get(ctx, rgName, target.Name, nil)
	if err != nil {
		return nil, readError(target, err)
	}
	return observed(target, result.ID, f.expectedID(rgName, target.Name)), nil
}

func (f *FlexibleServer) List(ctx context.Context, kind string, scope *model.Handle) ([]*model.Handle, error) {
	resourceGroupName, err := listScopeName(kind, scope, ResourceTypeResourceGroup)
	if err != nil {
		return nil, err
	}

	pager := f.Client.FlexibleServersClient.NewListByResourceGroupPager(resourceGroupName, nil)

	var out []*model.Handle
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrapAzureError(fmt.Sprintf("failed to list flexible servers in resource group %s", resourceGroupName), err)
		}
		for _, server := range page.Value {
			if h := listed(kind, scope, server.Name, server.ID); h != nil {
				out = append(out, h)
			}
		}
	}
	return out, nil
}
