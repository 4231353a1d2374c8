package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iamnilay3/Shimmer/internal/config"
	"github.com/iamnilay3/Shimmer/internal/fsutil"
	"github.com/iamnilay3/Shimmer/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "shimmer",
	Short: "Resilient filesystem and single-instance utilities",
	Long: `Shimmer bundles the filesystem plumbing an installer needs: recursive
directory creation and deletion that tolerates read-only and briefly locked
files, bounded-parallel hashing, scoped scratch directories, and a
machine-wide "only one instance" guard.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/shimmer/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/shimmer")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SHIMMER")
	// Replace dots with underscores for nested keys in env vars
	// e.g., SHIMMER_RETRY_MAX_ATTEMPTS for retry.max_attempts
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// runtimeEnv holds what every command needs once configuration is loaded.
type runtimeEnv struct {
	cfg    *config.Config
	logger *logging.Logger
	fs     *fsutil.FS
}

func loadRuntime() (*runtimeEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	fsys := fsutil.NewOS(
		fsutil.WithLogger(logger),
		fsutil.WithDeletePolicy(cfg.Retry.Policy()),
	)

	return &runtimeEnv{cfg: cfg, logger: logger, fs: fsys}, nil
}

func (r *runtimeEnv) Close() {
	_ = r.logger.Close()
}
