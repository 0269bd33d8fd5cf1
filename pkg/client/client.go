// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package client

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/authorization/armauthorization/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerregistry/armcontainerregistry"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerservice/armcontainerservice/v4"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/keyvault/armkeyvault"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/msi/armmsi"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v4"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/postgresql/armpostgresqlflexibleservers/v4"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/config"
)

// applicationID is sent in the User-Agent of every ARM request.
const applicationID = "formae-sequencer"

// Client wraps the typed Azure SDK clients used by the provisioners.
//
// When adding new resource types, add a typed client field here rather than
// issuing raw requests from a provisioner.
type Client struct {
	Config                       *config.Config
	ResourceGroupsClient         *armresources.ResourceGroupsClient
	VirtualNetworksClient        *armnetwork.VirtualNetworksClient
	SubnetsClient                *armnetwork.SubnetsClient
	SecurityGroupsClient         *armnetwork.SecurityGroupsClient
	PublicIPAddressesClient      *armnetwork.PublicIPAddressesClient
	InterfacesClient             *armnetwork.InterfacesClient
	VirtualMachinesClient        *armcompute.VirtualMachinesClient
	StorageAccountsClient        *armstorage.AccountsClient
	VaultsClient                 *armkeyvault.VaultsClient
	ManagedClustersClient        *armcontainerservice.ManagedClustersClient
	RegistriesClient             *armcontainerregistry.RegistriesClient
	UserAssignedIdentitiesClient *armmsi.UserAssignedIdentitiesClient
	RoleAssignmentsClient        *armauthorization.RoleAssignmentsClient
	FlexibleServersClient        *armpostgresqlflexibleservers.ServersClient
	FirewallRulesClient          *armpostgresqlflexibleservers.FirewallRulesClient
}

// NewClient acquires credentials and builds every typed client.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	cred, err := cfg.ToAzureCredential(ctx)
	if err != nil {
		return nil, err
	}
	return NewClientWithCredential(cfg, cred, nil)
}

// NewClientWithCredential builds the typed clients from an existing credential.
// A nil options value uses the defaults.
func NewClientWithCredential(cfg *config.Config, cred azcore.TokenCredential, clientOptions *arm.ClientOptions) (*Client, error) {
	if clientOptions == nil {
		clientOptions = &arm.ClientOptions{
			ClientOptions: policy.ClientOptions{
				Telemetry: policy.TelemetryOptions{ApplicationID: applicationID},
			},
		}
	}

	b := &builder{subscriptionID: cfg.SubscriptionId, cred: cred, options: clientOptions}
	c := &Client{
		Config:                       cfg,
		ResourceGroupsClient:         build(b, armresources.NewResourceGroupsClient),
		VirtualNetworksClient:        build(b, armnetwork.NewVirtualNetworksClient),
		SubnetsClient:                build(b, armnetwork.NewSubnetsClient),
		SecurityGroupsClient:         build(b, armnetwork.NewSecurityGroupsClient),
		PublicIPAddressesClient:      build(b, armnetwork.NewPublicIPAddressesClient),
		InterfacesClient:             build(b, armnetwork.NewInterfacesClient),
		VirtualMachinesClient:        build(b, armcompute.NewVirtualMachinesClient),
		StorageAccountsClient:        build(b, armstorage.NewAccountsClient),
		VaultsClient:                 build(b, armkeyvault.NewVaultsClient),
		ManagedClustersClient:        build(b, armcontainerservice.NewManagedClustersClient),
		RegistriesClient:             build(b, armcontainerregistry.NewRegistriesClient),
		UserAssignedIdentitiesClient: build(b, armmsi.NewUserAssignedIdentitiesClient),
		RoleAssignmentsClient:        build(b, armauthorization.NewRoleAssignmentsClient),
		FlexibleServersClient:        build(b, armpostgresqlflexibleservers.NewServersClient),
		FirewallRulesClient:          build(b, armpostgresqlflexibleservers.NewFirewallRulesClient),
	}
	if b.err != nil {
		return nil, fmt.Errorf("failed to create ARM client: %w", b.err)
	}
	return c, nil
}

// builder holds what every subscription-scoped ARM client constructor takes
// and keeps the first constructor error.
type builder struct {
	subscriptionID string
	cred           azcore.TokenCredential
	options        *arm.ClientOptions
	err            error
}

func build[T any](b *builder, newClient func(string, azcore.TokenCredential, *arm.ClientOptions) (*T, error)) *T {
	if b.err != nil {
		return nil
	}
	c, err := newClient(b.subscriptionID, b.cred, b.options)
	if err != nil {
		b.err = err
		return nil
	}
	return c
}

// PollOptions returns the options every provisioner passes to PollUntilDone.
func (c *Client) PollOptions() *runtime.PollUntilDoneOptions {
	freq := config.DefaultPollFrequency
	if c.Config != nil && c.Config.PollFrequency > 0 {
		freq = c.Config.PollFrequency
	}
	return &runtime.PollUntilDoneOptions{Frequency: freq}
}

// Location returns the configured default location.
func (c *Client) Location() string {
	if c.Config != nil && c.Config.Location != "" {
		return c.Config.Location
	}
	return config.DefaultLocation
}
