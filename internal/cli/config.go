package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/nesach/internal/model"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage nesach configuration",
	Long: `Manage nesach configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (NESACH_*, e.g. NESACH_LLM_PROVIDER), also read from .env
3. Config file (~/.nesach/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if f := viper.ConfigFileUsed(); f != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", f)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults and environment)\n\n")
		}

		data, err := yaml.Marshal(redact(cfg))
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long:  `Create ~/.nesach/config.yaml (or the --config path) populated with the defaults.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("find home directory: %w", err)
			}
			path = filepath.Join(home, ".nesach", "config.yaml")
		}

		if err := writeDefaultConfig(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created default configuration: %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

const configHeader = `# nesach configuration
#
# Configuration hierarchy (highest to lowest priority):
#   1. CLI flags
#   2. Environment variables (NESACH_*)
#   3. This config file
#   4. Built-in defaults
#
# Secrets are better kept in the environment:
#   export OPENAI_API_KEY=sk-...
#   export ANTHROPIC_API_KEY=sk-ant-...
#   export GEMINI_API_KEY=...
#   export NESACH_SINK_DSN=postgres://...

`

func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(configHeader), data...), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// redact masks secrets before display
func redact(cfg *model.Config) *model.Config {
	c := *cfg
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	c.LLM.APIKey = mask(c.LLM.APIKey)
	c.Storage.AccessKey = mask(c.Storage.AccessKey)
	c.Storage.SecretKey = mask(c.Storage.SecretKey)
	c.Server.JWTSecret = mask(c.Server.JWTSecret)
	c.Sink.DSN = mask(c.Sink.DSN)
	return &c
}
