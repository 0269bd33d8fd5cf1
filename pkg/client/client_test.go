// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package client

import (
	"testing"
	"time"

	azfake "github.com/Azure/azure-sdk-for-go/sdk/azcore/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/config"
)

func TestNewClientWithCredential(t *testing.T) {
	cfg := &config.Config{SubscriptionId: "00000000-0000-0000-0000-000000000001"}
	c, err := NewClientWithCredential(cfg, &azfake.TokenCredential{}, nil)
	require.NoError(t, err)

	assert.NotNil(t, c.ResourceGroupsClient)
	assert.NotNil(t, c.StorageAccountsClient)
	assert.NotNil(t, c.RoleAssignmentsClient)
	assert.NotNil(t, c.FirewallRulesClient)
	assert.Same(t, cfg, c.Config)
}

func TestClientDefaults(t *testing.T) {
	c := &Client{Config: &config.Config{}}
	assert.Equal(t, config.DefaultLocation, c.Location())
	assert.Equal(t, config.DefaultPollFrequency, c.PollOptions().Frequency)

	c.Config = &config.Config{Location: "eastus", PollFrequency: 2 * time.Second}
	assert.Equal(t, "eastus", c.Location())
	assert.Equal(t, 2*time.Second, c.PollOptions().Frequency)
}
