// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that call
// provider APIs.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with provider requests
	// (e.g. "harvest-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// StoreConfig holds settings for the document store.
type StoreConfig struct {
	// DataDir is the base directory holding the store database
	// (contains index/harvest.db).
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// MaxResults is the default page size for searches (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// ProvidersConfig holds settings for provider/service-request definitions.
type ProvidersConfig struct {
	// Dir is the directory of provider definition YAML files, one file
	// per provider.
	Dir string `json:"dir" yaml:"dir"`
}

// HarvestConfig holds settings for harvest runs and the scheduler.
type HarvestConfig struct {
	HTTPConfig `yaml:",inline"`

	// PageDelay is the pause between consecutive page fetches within one
	// run (default 1s). Pages are fetched sequentially because each
	// page's offset depends on the previous page's result count.
	PageDelay time.Duration `json:"page_delay" yaml:"page_delay"`

	// MaxPages caps the pagination loop per run (default 100). Guards
	// against providers that never report an end.
	MaxPages int `json:"max_pages" yaml:"max_pages"`

	// JobTimeout bounds one harvest run (default 600s).
	JobTimeout time.Duration `json:"job_timeout" yaml:"job_timeout"`

	// MaxAttempts is the number of tries per scheduled run before the
	// failure is logged and the run abandoned (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`
}

// CacheConfig holds settings for the optional api_direct response cache.
type CacheConfig struct {
	// Enabled turns the Redis response cache on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Addr is the Redis address (default "localhost:6379").
	Addr string `json:"addr" yaml:"addr"`

	// TTL is how long a cached provider response stays valid (default 5m).
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

// PermissionConfig holds settings for the permission collaborator.
type PermissionConfig struct {
	// GrantsFile is the YAML file of user grants. Empty means every
	// check passes (single-operator mode).
	GrantsFile string `json:"grants_file" yaml:"grants_file"`
}

// Config is the root configuration for the harvest-engine CLI.
type Config struct {
	Providers  ProvidersConfig  `json:"providers" yaml:"providers"`
	Store      StoreConfig      `json:"store" yaml:"store"`
	Harvest    HarvestConfig    `json:"harvest" yaml:"harvest"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	Permission PermissionConfig `json:"permission" yaml:"permission"`
}
