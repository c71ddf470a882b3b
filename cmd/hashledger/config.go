package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func setDefaults() {
	viper.SetDefault("http.port", 8080)
	viper.SetDefault("http.cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("http.rate_limit_rps", 20)
	viper.SetDefault("grpc.port", 9090)
	viper.SetDefault("auth.writer_secret", "")
	viper.SetDefault("auth.issuer", "hashledger")
	viper.SetDefault("auth.token_ttl", "1h")
	viper.SetDefault("health.check_interval", "30s")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
}

// setup loads configuration and builds the logger before any command runs.
func setup(_ *cobra.Command, _ []string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("hashledger")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("configs")
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("HASHLEDGER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	cfgMissing := false
	if err := viper.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
		cfgMissing = true
	}

	l, err := newLogger(viper.GetString("log.level"), viper.GetString("log.format"))
	if err != nil {
		return err
	}
	logger = l

	if cfgMissing {
		logger.Debug("no config file found, using defaults and env vars")
	} else {
		logger.Debug("config loaded", zap.String("file", viper.ConfigFileUsed()))
	}
	return nil
}

// newLogger builds a zap logger writing to stderr. format is "json" or "console".
func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log.level: %w", err)
	}

	var cfg zap.Config
	switch format {
	case "json", "":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log.format %q (want json or console)", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}
