// Package profile loads optional per-asset execution overrides from YAML.
// Assets without a profile fall back to the orchestrator defaults.
package profile

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// AssetProfile overrides execution parameters for one asset.
type AssetProfile struct {
	AssetID            string  `yaml:"asset_id"`
	MaxSlippage        float64 `yaml:"max_slippage"`
	RetryCount         int     `yaml:"retry_count"`
	TimeoutMs          int     `yaml:"timeout_ms"`
	SkipLiquidityCheck bool    `yaml:"skip_liquidity_check"`
}

type file struct {
	Assets []AssetProfile `yaml:"assets"`
}

// Set is an immutable lookup of asset profiles.
type Set struct {
	mu       sync.RWMutex
	profiles map[string]AssetProfile
}

// Load reads profiles from a YAML file.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes profiles from raw YAML.
func Parse(data []byte) (*Set, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse asset profiles: %w", err)
	}
	s := &Set{profiles: make(map[string]AssetProfile, len(f.Assets))}
	for _, p := range f.Assets {
		if p.AssetID == "" {
			return nil, fmt.Errorf("asset profile without asset_id")
		}
		s.profiles[p.AssetID] = p
	}
	return s, nil
}

// Empty returns a set with no overrides.
func Empty() *Set {
	return &Set{profiles: make(map[string]AssetProfile)}
}

// Get returns the profile for an asset, if one exists.
func (s *Set) Get(assetID string) (AssetProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[assetID]
	return p, ok
}

// Len returns the number of loaded profiles.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}
