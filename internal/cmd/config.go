package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/iamnilay3/Shimmer/internal/config"
	"github.com/iamnilay3/Shimmer/internal/fsutil"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage Shimmer configuration",
	Long: `View and manage Shimmer configuration.

Configuration is loaded from (in order of precedence):
  1. Environment variables (SHIMMER_*)
  2. Config file (~/.config/shimmer/config.yaml)
  3. Default values

For paths.temp_root, TMPDIR and then TEMP are consulted when neither the
environment nor the config file sets it.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default configuration file with comments explaining each option.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	out := cmd.OutOrStdout()
	if cfgFile := viper.ConfigFileUsed(); cfgFile != "" {
		fmt.Fprintf(out, "# Config file: %s\n", cfgFile)
	} else {
		fmt.Fprintln(out, "# No config file found, using defaults")
	}
	_, err = out.Write(data)
	return err
}

const defaultConfigContent = `# Shimmer Configuration

paths:
  # Root for scoped scratch directories. Empty falls back to TMPDIR, then TEMP.
  # SHIMMER_PATHS_TEMP_ROOT overrides this value.
  temp_root: ""
  # Directory for single-instance lock files (Unix). Empty uses the system temp dir.
  lock_dir: ""

# Retries for removals that fail because another process briefly holds a file
retry:
  # Retries after the first attempt
  max_attempts: 3
  # Wait between attempts in milliseconds
  delay_ms: 100

parallel:
  # Maximum units of work running at once (default: number of CPUs)
  degree: %d

instance:
  # Processes sharing a key exclude each other
  key: shimmer
  # How long to wait for the guard in milliseconds
  # 0 tries once, a negative value waits forever
  timeout_ms: 0

logging:
  # Minimum level: debug, info, warn, error
  level: info
  # Directory receiving shimmer.log. Empty writes to stderr.
  dir: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()
	fsys := fsutil.NewOS()

	// Check if config file already exists
	if exists, err := fsys.FileExists(configFile); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("config file already exists at %s", configFile)
	}

	content := fmt.Sprintf(defaultConfigContent, config.Default().Parallel.Degree)
	if err := fsys.WriteStream(strings.NewReader(content), configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. $HOME/.config/shimmer/config.yaml\n")
	fmt.Fprintf(out, "  3. ./config.yaml (current directory)\n")
	fmt.Fprintln(out, "\nEnvironment variables: SHIMMER_* (e.g., SHIMMER_RETRY_MAX_ATTEMPTS)")

	return nil
}
