// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the harvest-engine CLI.
// Implements: prd001-providers, prd003-requests, prd002-mapping,
//
//	prd004-search, prd005-harvest (CLI surface).
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/harvest-engine/internal/configsrc"
	"github.com/pdiddy/harvest-engine/internal/docstore"
	"github.com/pdiddy/harvest-engine/internal/secrets"
	"github.com/pdiddy/harvest-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds provider credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the harvest-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "harvest-engine",
	Short: "Multi-tenant API aggregation and harvesting",
	Long: `harvest-engine aggregates external APIs behind declarative provider
configuration. Providers and their service requests describe how to
authenticate, paginate, and map arbitrary JSON/XML responses onto a
normalized document schema; the engine either proxies requests live
(fetch) or serves previously harvested documents (search).

Each operation is a subcommand: search, fetch, harvest, populate,
providers, and keys.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./harvest-engine.yaml or ~/.config/harvest-engine/config.yaml)")
	rootCmd.PersistentFlags().String("providers-dir", "", "directory of provider definition YAML files (default: providers)")
	rootCmd.PersistentFlags().String("data-dir", "", "base directory for the document store (default: data)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("harvest-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "harvest-engine"))
		}
	}

	viper.SetDefault("providers.dir", "providers")
	viper.SetDefault("store.data_dir", "data")
	viper.SetDefault("store.max_results", 20)

	viper.SetEnvPrefix("HARVEST_ENGINE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig materializes the root config from viper and flag overrides.
func loadConfig() types.Config {
	var cfg types.Config
	_ = viper.Unmarshal(&cfg)

	if dir, _ := rootCmd.PersistentFlags().GetString("providers-dir"); dir != "" {
		cfg.Providers.Dir = dir
	}
	if cfg.Providers.Dir == "" {
		cfg.Providers.Dir = viper.GetString("providers.dir")
	}
	if dir, _ := rootCmd.PersistentFlags().GetString("data-dir"); dir != "" {
		cfg.Store.DataDir = dir
	}
	if cfg.Store.DataDir == "" {
		cfg.Store.DataDir = viper.GetString("store.data_dir")
	}
	if cfg.Store.MaxResults <= 0 {
		cfg.Store.MaxResults = viper.GetInt("store.max_results")
	}
	if cfg.Harvest.UserAgent == "" {
		cfg.Harvest.UserAgent = defaultUserAgent
	}
	return cfg
}

// loadRegistry loads provider definitions and applies credentials.
func loadRegistry(cfg types.Config) (*configsrc.Registry, error) {
	reg, err := configsrc.LoadDir(cfg.Providers.Dir)
	if err != nil {
		return nil, err
	}
	secrets.Apply(loadedSecrets, reg.Providers())
	return reg, nil
}

// resolveServiceRequest finds a provider and service request from
// --provider/--request flags or a combined "provider/request" key.
func resolveServiceRequest(reg *configsrc.Registry, providerKey, requestKey string) (*types.Provider, *types.ServiceRequest, error) {
	if providerKey != "" && requestKey != "" {
		p := reg.Provider(providerKey)
		if p == nil {
			return nil, nil, fmt.Errorf("unknown provider %q", providerKey)
		}
		sr := p.ServiceRequestByName(requestKey)
		if sr == nil {
			return nil, nil, fmt.Errorf("provider %q has no service request %q", providerKey, requestKey)
		}
		return p, sr, nil
	}
	if requestKey != "" {
		p, sr := reg.ServiceRequest(requestKey)
		if sr == nil {
			return nil, nil, fmt.Errorf("unknown service request %q", requestKey)
		}
		return p, sr, nil
	}
	return nil, nil, fmt.Errorf("provide --provider and --request, or --request as provider/request")
}

// openStore opens the document store under the configured data directory.
func openStore(cfg types.Config, logger *zap.Logger) (*docstore.Store, error) {
	return docstore.NewStore(cfg.Store, logger)
}

// newLogger builds the zap logger for long-running operations.
func newLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
