package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/GPTx-global/oracle-relayer/oracle/config"
	"github.com/GPTx-global/oracle-relayer/oracle/daemon"
	"github.com/GPTx-global/oracle-relayer/oracle/log"
	"github.com/GPTx-global/oracle-relayer/oracle/metrics"
)

const (
	appName   = "oracled"
	envPrefix = "ORACLED"

	flagHome      = "home"
	flagLogLevel  = "log-level"
	flagOverwrite = "overwrite"
)

// Version is set at build time.
var Version = "dev"

var DefaultHome = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + appName
	}
	return filepath.Join(home, "."+appName)
}()

// NewRootCmd builds the oracled command tree. Flags can also be set through
// ORACLED_ prefixed environment variables.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Relays cross-chain oracle requests and pushes price feeds",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return v.BindPFlags(cmd.Flags())
		},
	}

	rootCmd.PersistentFlags().String(flagHome, DefaultHome, "directory for config and logs")
	rootCmd.PersistentFlags().String(flagLogLevel, "", "log level, overrides the config (debug|info|warn|error)")

	rootCmd.AddCommand(
		startCmd(v),
		configCmd(v),
		versionCmd(),
	)

	return rootCmd
}

func loadConfig(v *viper.Viper) (*config.Config, string, error) {
	home := v.GetString(flagHome)
	cfg, err := config.LoadHome(home)
	if err != nil {
		return nil, home, err
	}
	if level := v.GetString(flagLogLevel); level != "" {
		cfg.Log.Level = level
	}
	return cfg, home, nil
}

func startCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the relayer until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, home, err := loadConfig(v)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log.InitLogger(log.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
			if cfg.Log.File {
				log.ResetLogger(home)
			}
			if err := metrics.Init(); err != nil {
				return err
			}
			cfg.Print(home)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := daemon.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to create daemon: %w", err)
			}
			if err := d.Start(ctx); err != nil {
				return fmt.Errorf("failed to start daemon: %w", err)
			}

			stopped := make(chan error, 1)
			go func() { stopped <- d.Wait() }()

			select {
			case <-ctx.Done():
				log.Info("Shutting down")
				return d.Stop()
			case err := <-stopped:
				if ctx.Err() != nil {
					log.Info("Shutting down")
					return d.Stop()
				}
				if err == nil {
					err = errors.New("relayer stopped unexpectedly")
				}
				log.Errorf("Relayer stopped: %v", err)
				if stopErr := d.Stop(); stopErr != nil {
					log.Warnf("Failed to stop cleanly: %v", stopErr)
				}
				return err
			}
		},
	}
}

func configCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the relayer config",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config to the home directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := filepath.Join(v.GetString(flagHome), config.FileName)
			if _, err := os.Stat(path); err == nil && !v.GetBool(flagOverwrite) {
				return fmt.Errorf("%s already exists, use --%s to replace it", path, flagOverwrite)
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			cmd.Printf("Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().Bool(flagOverwrite, false, "replace an existing config")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(v)
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			cmd.Print(string(data))
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(Version)
		},
	}
}
