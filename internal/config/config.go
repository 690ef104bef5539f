// Package config loads credvault settings from defaults, a yaml file,
// CREDVAULT_* environment variables and command line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	AppName        = "credvault"
	VaultFileName  = "vault.db"
	ConfigFileName = "credvault.yaml"
	EnvPrefix      = "CREDVAULT"
)

// Config is passed explicitly to the vault and the commands; there is no
// process-wide instance.
type Config struct {
	VaultPath   string        `mapstructure:"vault"`
	LogLevel    string        `mapstructure:"log_level"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
	UseKeyring  bool          `mapstructure:"keyring"`
	// KDFIterations is the PBKDF2 work factor used when a vault is created or
	// its password changes. Zero means crypto.DefaultIters. Existing vaults
	// keep the count stored in their config bucket.
	KDFIterations int `mapstructure:"kdf_iterations"`
}

// fileConfig is the on-disk yaml shape; durations are written as strings.
type fileConfig struct {
	Vault         string `yaml:"vault"`
	LogLevel      string `yaml:"log_level"`
	OpenTimeout   string `yaml:"open_timeout"`
	Keyring       bool   `yaml:"keyring"`
	KDFIterations int    `yaml:"kdf_iterations,omitempty"`
}

// ConfigPath returns the full path for the configuration file.
func ConfigPath(system bool) (string, error) {
	var configDir string

	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), AppName)
		default:
			configDir = filepath.Join("/etc", AppName)
		}
	} else {
		userDir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(userDir, AppName)
	}

	return filepath.Join(configDir, ConfigFileName), nil
}

// DefaultVaultPath returns the per-user vault location.
func DefaultVaultPath() (string, error) {
	userDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not get user config directory: %w", err)
	}
	return filepath.Join(userDir, AppName, VaultFileName), nil
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	vaultPath, err := DefaultVaultPath()
	if err != nil {
		vaultPath = VaultFileName
	}
	return Config{
		VaultPath:   vaultPath,
		LogLevel:    "warn",
		OpenTimeout: time.Second,
		UseKeyring:  true,
	}
}

// Load resolves the configuration. configFile, when non-empty, takes
// precedence over the standard search locations. flags may be nil.
func Load(flags *pflag.FlagSet, configFile string) (Config, error) {
	var c Config
	v := viper.New()

	d := Defaults()
	v.SetDefault("vault", d.VaultPath)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("open_timeout", d.OpenTimeout)
	v.SetDefault("keyring", d.UseKeyring)
	v.SetDefault("kdf_iterations", d.KDFIterations)

	v.SetConfigName(strings.TrimSuffix(ConfigFileName, filepath.Ext(ConfigFileName)))
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	if userConfigPath, err := ConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := ConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine unless it was asked for explicitly
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return c, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range map[string]string{
			"vault":     "vault",
			"log_level": "log-level",
		} {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return c, err
				}
			}
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("failed to parse config: %w", err)
	}
	if c.KDFIterations < 0 {
		return c, fmt.Errorf("kdf_iterations must not be negative")
	}

	return c, nil
}

// WriteFile writes c as yaml to path, creating parent directories.
// An existing file is left untouched.
func WriteFile(path string, c Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(fileConfig{
		Vault:         c.VaultPath,
		LogLevel:      c.LogLevel,
		OpenTimeout:   c.OpenTimeout.String(),
		Keyring:       c.UseKeyring,
		KDFIterations: c.KDFIterations,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}
