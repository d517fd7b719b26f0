package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/guardline-io/guardline/logger"
)

const (
	// The prefix for configuration keys inside environment.
	envPrefix = "GUARDD"
	// The default name for config file.
	defaultConfigFile = "config.props"
	// The default guardd directory.
	defaultGuarddDir = ".guardd"

	keyHome   = "home"
	keyConfig = "config"

	flagNameLogOutputFile = "log-file"
	flagNameLogLevel      = "log-level"
	flagNameLogFormat     = "log-format"
)

type (
	guarddApp struct {
		baseCmd    *cobra.Command
		baseConfig *baseConfiguration
	}

	baseConfiguration struct {
		// The guardd home directory.
		HomeDir string
		// Configuration file URL. If it's relative, then it's relative from the HomeDir.
		CfgFile string

		Logger *slog.Logger
	}
)

// New creates a new guardd application
func New() *guarddApp {
	baseCmd, baseConfig := newBaseCmd()
	return &guarddApp{baseCmd, baseConfig}
}

// Execute adds all child commands and runs the application
func (a *guarddApp) Execute(ctx context.Context) error {
	a.baseCmd.AddCommand(newDaemonCmd(a.baseConfig))
	a.baseCmd.AddCommand(newInstallCmd(a.baseConfig))
	return a.baseCmd.ExecuteContext(ctx)
}

func newBaseCmd() (*cobra.Command, *baseConfiguration) {
	config := &baseConfiguration{}
	var baseCmd = &cobra.Command{
		Use:           "guardd",
		Short:         "Liveness gated authorization and settlement service",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(cmd, config); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			return nil
		},
	}
	config.addConfigurationFlags(baseCmd)
	return baseCmd, config
}

func (r *baseConfiguration) addConfigurationFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&r.HomeDir, keyHome, "", fmt.Sprintf("set the GUARDD_HOME for this invocation (default is %s)", guarddHomeDir()))
	cmd.PersistentFlags().StringVar(&r.CfgFile, keyConfig, "", fmt.Sprintf("config file URL (default is $GUARDD_HOME/%s)", defaultConfigFile))
	cmd.PersistentFlags().String(flagNameLogOutputFile, "", "log file path, stderr when not set")
	cmd.PersistentFlags().String(flagNameLogLevel, "", "logging level, one of: debug, info, warn, error")
	cmd.PersistentFlags().String(flagNameLogFormat, "", "log format, one of: text, json")
}

func initializeConfig(cmd *cobra.Command, config *baseConfiguration) error {
	var errs []error
	if err := config.initializeConfigFile(cmd); err != nil {
		errs = append(errs, fmt.Errorf("reading configuration: %w", err))
	}
	if err := config.initLogger(cmd); err != nil {
		errs = append(errs, fmt.Errorf("initializing logger: %w", err))
	}
	return errors.Join(errs...)
}

// initializeConfigFile reads in config file and ENV variables if set.
func (config *baseConfiguration) initializeConfigFile(cmd *cobra.Command) error {
	v := viper.New()

	if config.HomeDir == "" {
		config.HomeDir = guarddHomeDir()
	}
	if config.CfgFile == "" {
		config.CfgFile = filepath.Join(config.HomeDir, defaultConfigFile)
	} else if !filepath.IsAbs(config.CfgFile) {
		config.CfgFile = filepath.Join(config.HomeDir, config.CfgFile)
	}
	if _, err := os.Stat(config.CfgFile); err == nil {
		v.SetConfigFile(config.CfgFile)
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}

	// Bind flags to environment variables with the GUARDD_ prefix so that
	// ie --server-address can be set via GUARDD_SERVER_ADDRESS.
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	return bindFlags(cmd, v)
}

// Bind each cobra flag to its associated viper configuration (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var bindFlagErr []error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == keyHome || f.Name == keyConfig {
			// "home" and "config" are special configuration values, handled separately.
			return
		}
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name, fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				bindFlagErr = append(bindFlagErr, fmt.Errorf("binding env to flag %q: %w", f.Name, err))
				return
			}
		}
		// Apply the viper config value to the flag when the flag is not set and viper has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				bindFlagErr = append(bindFlagErr, fmt.Errorf("setting flag %q value: %w", f.Name, err))
				return
			}
		}
	})
	return errors.Join(bindFlagErr...)
}

func (config *baseConfiguration) initLogger(cmd *cobra.Command) error {
	cfg := &logger.Config{}
	var err error
	if cfg.Level, err = cmd.Flags().GetString(flagNameLogLevel); err != nil {
		return err
	}
	if cfg.Format, err = cmd.Flags().GetString(flagNameLogFormat); err != nil {
		return err
	}
	if cfg.OutputPath, err = cmd.Flags().GetString(flagNameLogOutputFile); err != nil {
		return err
	}
	config.Logger, err = logger.New(cfg)
	return err
}

func guarddHomeDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return defaultGuarddDir
	}
	return filepath.Join(dir, defaultGuarddDir)
}
