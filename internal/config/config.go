package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mycelium-labs/mycelium/internal/branding"
	"github.com/spf13/viper"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Setting keys.
const (
	KeyTools         = "tools"
	KeyBackup        = "backup"
	KeyRemoveOrphans = "remove_orphans"
	KeyLogLevel      = "log.level"
	KeyLogFormat     = "log.format"
	KeyEnvFile       = "env_file"
)

// Dir returns the path to the Mycelium home directory (~/.mycelium/).
// MYCELIUM_HOME overrides it.
func Dir() string {
	if v := os.Getenv(branding.EnvVar("HOME")); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file (~/.mycelium/config.yaml).
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

// Load initializes Viper to read from the config file and environment.
func Load() {
	viper.SetConfigFile(FilePath())
	viper.SetConfigType(fileType)
	viper.SetEnvPrefix(branding.EnvPrefix())
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault(KeyTools, []string{})
	viper.SetDefault(KeyBackup, true)
	viper.SetDefault(KeyRemoveOrphans, false)
	viper.SetDefault(KeyLogLevel, "info")
	viper.SetDefault(KeyLogFormat, "text")
	viper.SetDefault(KeyEnvFile, filepath.Join(Dir(), ".env"))

	// Ignore error if config file doesn't exist yet.
	_ = viper.ReadInConfig()
}

// Get returns a config value by key. Returns empty string if not set.
func Get(key string) string {
	return viper.GetString(key)
}

// Tools returns the default tool ids to sync. Empty means every installed tool.
// Accepts a YAML list or a comma-separated env value.
func Tools() []string {
	raw := viper.GetStringSlice(KeyTools)
	var tools []string
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			if p := strings.TrimSpace(part); p != "" {
				tools = append(tools, p)
			}
		}
	}
	return tools
}

// Backup reports whether tool config files are copied aside before a write.
func Backup() bool { return viper.GetBool(KeyBackup) }

// RemoveOrphans reports whether sync removes unmanaged symlinks by default.
func RemoveOrphans() bool { return viper.GetBool(KeyRemoveOrphans) }

// LogLevel returns the configured log level string.
func LogLevel() string { return viper.GetString(KeyLogLevel) }

// LogFormat returns the configured log format string.
func LogFormat() string { return viper.GetString(KeyLogFormat) }

// EnvFile returns the path of the .env file used for ${NAME} substitution.
func EnvFile() string { return viper.GetString(KeyEnvFile) }

// Set writes a config key-value pair and saves the config file.
func Set(key, value string) error {
	if err := EnsureDir(); err != nil {
		return err
	}

	viper.Set(key, value)

	configFile := FilePath()

	// Create the file if it doesn't exist.
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", configFile, err)
		}
		f.Close()
	}

	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
