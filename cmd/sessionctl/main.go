package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tyemirov/tsession/pkg/sessionclient"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "sessionctl",
		Short:        "Bearer-token session client with a local reference backend",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("api_base", "http://localhost:8080/api", "Absolute base URL of the auth API")
	rootCmd.PersistentFlags().String("store_url", defaultStoreURL(), "Session store (memory://, file://<path>, sqlite://<path>, postgres://...)")
	rootCmd.PersistentFlags().String("login_path", sessionclient.DefaultLoginPath, "Path of the login page")
	rootCmd.PersistentFlags().Duration("refresh_interval", sessionclient.DefaultRefreshInterval, "Credential renewal interval")
	rootCmd.PersistentFlags().Duration("redirect_delay", sessionclient.DefaultRedirectDelay, "Delay before redirecting after session expiry")
	rootCmd.PersistentFlags().String("log_level", "warn", "Log level (debug, info, warn, error)")

	for _, key := range []string{"api_base", "store_url", "login_path", "refresh_interval", "redirect_delay", "log_level"} {
		_ = viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key))
	}

	viper.SetEnvPrefix("TSESSION")
	viper.AutomaticEnv()

	rootCmd.AddCommand(
		newLoginCommand(),
		newLogoutCommand(),
		newWhoAmICommand(),
		newRefreshCommand(),
		newCallCommand(),
		newServeCommand(),
	)
	return rootCmd
}

const (
	configCodeMissingAPIBase         = "config.missing_api_base"
	configCodeMissingStoreURL        = "config.missing_store_url"
	configCodeInvalidLoginPath       = "config.invalid_login_path"
	configCodeInvalidRefreshInterval = "config.invalid_refresh_interval"
	configCodeInvalidRedirectDelay   = "config.invalid_redirect_delay"
	configCodeInvalidLogLevel        = "config.invalid_log_level"
)

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

// ClientSettings is the validated configuration shared by client commands.
type ClientSettings struct {
	APIBase         string
	StoreURL        string
	LoginPath       string
	RefreshInterval time.Duration
	RedirectDelay   time.Duration
	LogLevel        zapcore.Level
}

func LoadClientSettings() (ClientSettings, error) {
	apiBase := strings.TrimSpace(viper.GetString("api_base"))
	if apiBase == "" {
		return ClientSettings{}, configError(configCodeMissingAPIBase, "api_base must be provided")
	}

	storeURL := strings.TrimSpace(viper.GetString("store_url"))
	if storeURL == "" {
		return ClientSettings{}, configError(configCodeMissingStoreURL, "store_url must be provided")
	}

	loginPath := strings.TrimSpace(viper.GetString("login_path"))
	if loginPath == "" {
		loginPath = sessionclient.DefaultLoginPath
	}
	if !strings.HasPrefix(loginPath, "/") {
		return ClientSettings{}, configError(configCodeInvalidLoginPath, "login_path must start with /")
	}

	refreshInterval := viper.GetDuration("refresh_interval")
	if refreshInterval <= 0 {
		return ClientSettings{}, configError(configCodeInvalidRefreshInterval, "refresh_interval must be greater than zero")
	}

	redirectDelay := viper.GetDuration("redirect_delay")
	if redirectDelay < 0 {
		return ClientSettings{}, configError(configCodeInvalidRedirectDelay, "redirect_delay must not be negative")
	}

	logLevel, levelErr := zapcore.ParseLevel(viper.GetString("log_level"))
	if levelErr != nil {
		return ClientSettings{}, configError(configCodeInvalidLogLevel, levelErr.Error())
	}

	return ClientSettings{
		APIBase:         apiBase,
		StoreURL:        storeURL,
		LoginPath:       loginPath,
		RefreshInterval: refreshInterval,
		RedirectDelay:   redirectDelay,
		LogLevel:        logLevel,
	}, nil
}

func defaultStoreURL() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "memory://"
	}
	return "file://" + filepath.ToSlash(filepath.Join(configDir, "tsession", "session.json"))
}

func newLogger(level zapcore.Level) (*zap.Logger, error) {
	configuration := zap.NewProductionConfig()
	configuration.Level = zap.NewAtomicLevelAt(level)
	return configuration.Build()
}
