package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Bitlatte/readnext/internal/config"
	"github.com/Bitlatte/readnext/internal/logger"
)

var cfgFile string
var appConfig config.Config
var log logger.Logger = logger.NewNop()

var rootCmd = &cobra.Command{
	Use:   "readnext",
	Short: "readnext - related posts and reading state for Markdown blogs",
	Long: `readnext builds a static site from your Markdown content with ranked
related posts and a heading outline for every page, and serves it with a
small JSON API that personalises recommendations from each reader's
interactions.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
}

func initializeConfig(cmd *cobra.Command) error {
	v := viper.New()
	config.SetDefaults(v.SetDefault)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("READNEXT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlag("log.level", cmd.Root().PersistentFlags().Lookup("log-level")); err != nil {
		return fmt.Errorf("bind log-level flag: %w", err)
	}

	readErr := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if readErr != nil && (cfgFile != "" || !errors.As(readErr, &notFound)) {
		return fmt.Errorf("failed to read config file: %w", readErr)
	}

	if err := v.Unmarshal(&appConfig); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}

	l, err := logger.New(appConfig.Log)
	if err != nil {
		return err
	}
	log = l

	if readErr != nil {
		log.Debug("No config file found, using defaults and environment")
	} else {
		log.Debug("Using config file", logger.String("path", v.ConfigFileUsed()))
	}
	return nil
}
