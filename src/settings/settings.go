// Package settings loads the configuration shared by every command.
//
// Values come from, in increasing precedence: defaults, a YAML config file,
// SISENSE_SYNC_* environment variables and command line flags bound by the CLI.
package settings

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variables, e.g. SISENSE_SYNC_REPO.
const EnvPrefix = "SISENSE_SYNC"

// ConfigName is the config file name searched for when none is given.
const ConfigName = "sisense-sync"

// Variant is the Sisense platform flavour ("linux" or "windows").
type Variant string

// SupportsModels reports whether the platform accepts data model uploads and deletes.
func (v Variant) SupportsModels() bool {
	return strings.EqualFold(strings.TrimSpace(string(v)), "linux")
}

// Author is the identity of the commits made by download.
type Author struct {
	Name  string `mapstructure:"name" yaml:"name"`
	Email string `mapstructure:"email" yaml:"email"`
}

// Settings is built once at startup and passed to every flow.
type Settings struct {
	Host     string        `mapstructure:"host" yaml:"host"`
	Token    string        `mapstructure:"token" yaml:"token"`
	Username string        `mapstructure:"username" yaml:"username"`
	Password string        `mapstructure:"password" yaml:"password"`
	Version  Variant       `mapstructure:"version" yaml:"version"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// Repo is the remote git repository the artifacts are committed to.
	Repo string `mapstructure:"repo" yaml:"repo"`
	// Env names the environment; it is both the branch and the artifact subdirectory.
	Env     string `mapstructure:"env" yaml:"env"`
	WorkDir string `mapstructure:"workdir" yaml:"workdir"`
	Author  Author `mapstructure:"author" yaml:"author"`

	LogLevel string `mapstructure:"log-level" yaml:"log-level"`
}

var defaults = map[string]any{
	"host":         "",
	"token":        "",
	"username":     "",
	"password":     "",
	"version":      "linux",
	"timeout":      5 * time.Minute,
	"repo":         "",
	"env":          "",
	"workdir":      "work",
	"author.name":  "",
	"author.email": "",
	"log-level":    "info",
}

// NewViper returns a viper instance with defaults and environment lookup configured.
func NewViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configFile, or searches for sisense-sync.yaml when it is empty, and
// decodes everything v knows into Settings. A missing searched config file is not an error.
func Load(v *viper.Viper, configFile string) (Settings, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.sisense-sync")
		v.AddConfigPath("/etc/sisense-sync")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Settings{}, errors.Wrap(err, "read config")
		}
	}
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, errors.Wrap(err, "decode config")
	}
	return s, nil
}

// ValidateClient checks the settings needed to reach the platform.
func (s Settings) ValidateClient() error {
	if strings.TrimSpace(s.Host) == "" {
		return fmt.Errorf("host is required (config key 'host' or %s_HOST)", EnvPrefix)
	}
	if s.Token == "" && s.Username == "" {
		return fmt.Errorf("either token or username/password is required")
	}
	return nil
}

// ValidateRepository checks the settings needed by download.
func (s Settings) ValidateRepository() error {
	if strings.TrimSpace(s.Repo) == "" {
		return fmt.Errorf("repo is required (config key 'repo' or %s_REPO)", EnvPrefix)
	}
	if strings.TrimSpace(s.Env) == "" {
		return fmt.Errorf("env is required (config key 'env' or %s_ENV)", EnvPrefix)
	}
	if strings.ContainsAny(s.Env, `/\`) || s.Env == "." || s.Env == ".." {
		return fmt.Errorf("env %q must be a single path segment", s.Env)
	}
	if strings.TrimSpace(s.WorkDir) == "" {
		return fmt.Errorf("workdir must not be empty")
	}
	return nil
}

// Masked returns a copy with secrets replaced, for display.
func (s Settings) Masked() Settings {
	if s.Token != "" {
		s.Token = "********"
	}
	if s.Password != "" {
		s.Password = "********"
	}
	return s
}
