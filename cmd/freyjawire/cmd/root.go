/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/ssargent/freyjawire/pkg/config"
	"github.com/ssargent/freyjawire/pkg/di"
)

// skipBuild marks commands that run without an open store
const skipBuild = "freyjawire/skip-build"

var container *di.Container

// SetContainer injects the dependency container
func SetContainer(c *di.Container) {
	container = c
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "freyjawire",
	Short: "FreyjaWire - versioned, compressed values over an embedded store",
	Long: `FreyjaWire stores values in named containers, optionally tagged with a
version and wrapped in a compression envelope, and reads them back into
caller-owned buffers without intermediate copies.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipBuild] == "true" {
			return nil
		}
		return buildContainer(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if container == nil {
			return nil
		}
		return container.Close()
	},
}

// loadConfig reads the config file named by --config, falling back to the
// defaults when it does not exist, and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg := config.DefaultConfig()
	if config.ConfigExists(configPath) {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir, _ = cmd.Flags().GetString("data-dir")
	}
	return cfg, nil
}

func buildContainer(cmd *cobra.Command) error {
	if container == nil {
		return errors.New("dependency container not initialized")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	inMemory, _ := cmd.Flags().GetBool("in-memory")
	return container.Build(cfg, di.BuildOptions{InMemory: inMemory})
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		// PersistentPostRunE is skipped when RunE fails
		if container != nil {
			_ = container.Close()
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: OS-specific location)")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "./data", "Data directory for the store (overrides config)")
	rootCmd.PersistentFlags().Bool("in-memory", false, "Use a scratch in-memory store")
}
