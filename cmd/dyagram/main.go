package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cmoses01/DyaGram/internal/config"
	"github.com/cmoses01/DyaGram/internal/inventory"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "dyagram",
	Short:         "Discovers network topology over RESTCONF, SSH and SNMP and reports drift against a saved baseline.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", envOr("DYAGRAM_CONFIG", ""), "Path to an optional YAML config file")

	rootCmd.AddCommand(newDiscoverCmd(), newServeCmd(), newWatchCmd(), newInitCmd(), newSiteCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	return config.LoadFromPath(configPath, os.LookupEnv)
}

// resolveSite returns the explicit site or the workspace's current one.
func resolveSite(cfg config.Config, site string) (string, error) {
	if site != "" {
		return site, nil
	}
	return inventory.NewWorkspace(cfg.Workspace).CurrentSite()
}

func envOr(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
