// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

const (
	DefaultLocation      = "westus"
	DefaultPollFrequency = 10 * time.Second

	EnvSubscriptionID = "AZURE_SUBSCRIPTION_ID"
	EnvLocation       = "AZURE_LOCATION"
	EnvPollFrequency  = "AZURE_POLL_FREQUENCY"
)

// Config holds the Azure settings shared by every provisioner.
type Config struct {
	SubscriptionId string
	// Location is used for resources whose payload does not name one.
	Location string
	// PollFrequency is how often long-running operations are polled.
	PollFrequency time.Duration
}

// FromTargetConfig extracts Azure configuration from target config JSON.
// Unknown or malformed input yields the defaults.
func FromTargetConfig(targetConfig json.RawMessage) *Config {
	cfg := &Config{Location: DefaultLocation, PollFrequency: DefaultPollFrequency}
	if targetConfig == nil {
		return cfg
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(targetConfig, &raw); err != nil {
		return cfg
	}

	if subscriptionID, ok := raw["SubscriptionId"].(string); ok {
		cfg.SubscriptionId = subscriptionID
	}
	if location, ok := raw["Location"].(string); ok && location != "" {
		cfg.Location = location
	}
	if freq, ok := raw["PollFrequency"].(string); ok {
		if d, err := time.ParseDuration(freq); err == nil && d > 0 {
			cfg.PollFrequency = d
		}
	}
	return cfg
}

// FromEnv reads AZURE_SUBSCRIPTION_ID, AZURE_LOCATION and AZURE_POLL_FREQUENCY.
func FromEnv() (*Config, error) {
	cfg := &Config{
		SubscriptionId: os.Getenv(EnvSubscriptionID),
		Location:       DefaultLocation,
		PollFrequency:  DefaultPollFrequency,
	}
	if location := os.Getenv(EnvLocation); location != "" {
		cfg.Location = location
	}
	if freq := os.Getenv(EnvPollFrequency); freq != "" {
		d, err := time.ParseDuration(freq)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvPollFrequency, err)
		}
		cfg.PollFrequency = d
	}
	return cfg, nil
}

// Validate reports missing or invalid settings.
func (c *Config) Validate() error {
	var errs []error
	if c.SubscriptionId == "" {
		errs = append(errs, fmt.Errorf("subscription id is required (set %s)", EnvSubscriptionID))
	}
	if c.Location == "" {
		errs = append(errs, errors.New("location is required"))
	}
	if c.PollFrequency <= 0 {
		errs = append(errs, fmt.Errorf("poll frequency must be positive, got %s", c.PollFrequency))
	}
	return errors.Join(errs...)
}

// ToAzureCredential creates Azure credentials using the default credential chain.
// This uses DefaultAzureCredential which tries multiple authentication methods:
// - Environment variables (AZURE_CLIENT_ID, AZURE_CLIENT_SECRET, AZURE_TENANT_ID)
// - Managed Identity
// - Azure CLI
// - Azure Developer CLI
func (c *Config) ToAzureCredential(ctx context.Context) (azcore.TokenCredential, error) {
	return azidentity.NewDefaultAzureCredential(nil)
}
