// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/harvest-engine/internal/permission"
	"github.com/pdiddy/harvest-engine/pkg/types"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect configured providers",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured providers and their service requests",
	RunE:  runProvidersList,
}

var providersShowCmd = &cobra.Command{
	Use:   "show [provider]",
	Short: "Show one provider definition, inheritance applied",
	Args:  cobra.ExactArgs(1),
	RunE:  runProvidersShow,
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Inspect response-key mappings",
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the response keys of one service request",
	RunE:  runKeysList,
}

func init() {
	providersCmd.PersistentFlags().String("user", "", "user id for permission checks")

	keysListCmd.Flags().String("provider", "", "provider name")
	keysListCmd.Flags().String("request", "", "service request name, or provider/request")
	keysListCmd.Flags().String("user", "", "user id for permission checks")

	providersCmd.AddCommand(providersListCmd)
	providersCmd.AddCommand(providersShowCmd)
	keysCmd.AddCommand(keysListCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(keysCmd)
}

// checkRead verifies the user may read the entity. An empty grants file
// configuration allows everything.
func checkRead(cmd *cobra.Command, cfg types.Config, entityKind, entityID string) error {
	user, _ := cmd.Flags().GetString("user")
	checker, err := permission.Load(cfg.Permission.GrantsFile)
	if err != nil {
		return err
	}
	if !checker.Check(user, entityKind, entityID, []string{"read"}) {
		return fmt.Errorf("user %q may not read %s %q", user, entityKind, entityID)
	}
	return nil
}

func runProvidersList(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	for _, p := range reg.Providers() {
		if err := checkRead(cmd, cfg, "provider", p.Name); err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", p.Name, err)
			continue
		}
		fmt.Printf("%s (%s)\n", p.Name, p.Label)
		for _, sr := range p.ServiceRequests {
			pagination := sr.PaginationType
			if pagination == "" {
				pagination = "single-shot"
			}
			fmt.Printf("  %-30s  %-8s  %s\n", sr.Name, sr.Type, pagination)
		}
	}
	return nil
}

func runProvidersShow(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	p := reg.Provider(args[0])
	if p == nil {
		return fmt.Errorf("unknown provider %q", args[0])
	}
	if err := checkRead(cmd, cfg, "provider", p.Name); err != nil {
		return err
	}

	// Credentials stay out of the printed definition.
	redacted := *p
	redacted.Properties = make(map[string]string, len(p.Properties))
	for name, value := range p.Properties {
		if _, secret := loadedSecrets[p.Name+"-"+name]; secret {
			value = "<redacted>"
		}
		redacted.Properties[name] = value
	}

	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func runKeysList(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	providerKey, _ := cmd.Flags().GetString("provider")
	requestKey, _ := cmd.Flags().GetString("request")
	p, sr, err := resolveServiceRequest(reg, providerKey, requestKey)
	if err != nil {
		return err
	}
	if err := checkRead(cmd, cfg, "service_request", sr.Name); err != nil {
		return err
	}

	fmt.Printf("%s/%s: %d response keys\n\n", p.Name, sr.Name, len(sr.ResponseKeys))
	fmt.Printf("%-25s  %-30s  %-8s  %-5s  %s\n", "Name", "Path", "Type", "Item", "Shown")
	for _, key := range sr.ResponseKeys {
		rdt := key.ReturnDataType
		if rdt == "" {
			rdt = types.ReturnText
		}
		fmt.Printf("%-25s  %-30s  %-8s  %-5t  %t\n",
			key.Name, key.Value, rdt, key.ListItem, key.ShowInResponse)
	}
	return nil
}
