// Package config loads worklog settings from defaults, an optional YAML file
// and WORKLOG_* environment variables, in increasing order of precedence.
// Command-line overrides are applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/baiirun/worklog/internal/model"
)

// Dir is the per-user directory holding the database, attachments and config.
const Dir = ".worklog"

// Keys.
const (
	KeyDB                     = "db"
	KeyAttachmentsDir         = "attachments_dir"
	KeyActorID                = "actor.id"
	KeyActorRole              = "actor.role"
	KeyRequireCompletionProof = "require_completion_proof"
	KeyRequestTimeout         = "request_timeout"
	KeyLogLevel               = "log.level"
	KeyLogFormat              = "log.format"
	KeyTelemetryEnabled       = "telemetry.enabled"
	KeyTelemetryStdout        = "telemetry.stdout"
)

type Config struct {
	DB                     string
	AttachmentsDir         string
	Actor                  model.Actor
	RequireCompletionProof bool
	// RequestTimeout bounds each engine call. Zero means the engine default;
	// a negative value turns the deadline off.
	RequestTimeout         time.Duration
	Log                    Log
	Telemetry              Telemetry
}

type Log struct {
	Level  string
	Format string
}

type Telemetry struct {
	Enabled bool
	Stdout  bool
}

// DefaultPath returns ~/.worklog/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, Dir, "config.yaml"), nil
}

// Load reads configuration. An empty path means the default location, which
// may be absent; an explicit path must exist. Overrides win over everything.
func Load(path string, overrides map[string]any) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("config: home dir: %w", err)
	}

	v := viper.New()
	setDefaults(v, filepath.Join(home, Dir))

	v.SetEnvPrefix("WORKLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(home, Dir, "config.yaml")
	}
	if _, statErr := os.Stat(path); statErr == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicit || !errors.Is(statErr, os.ErrNotExist) {
		return nil, fmt.Errorf("config: %w", statErr)
	}

	for k, val := range overrides {
		v.Set(k, val)
	}
	return decode(v)
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault(KeyDB, filepath.Join(dir, "worklog.db"))
	v.SetDefault(KeyAttachmentsDir, filepath.Join(dir, "attachments"))
	v.SetDefault(KeyActorID, os.Getenv("USER"))
	v.SetDefault(KeyActorRole, string(model.RoleSupervisor))
	v.SetDefault(KeyRequireCompletionProof, false)
	v.SetDefault(KeyRequestTimeout, "30s")
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyTelemetryEnabled, false)
	v.SetDefault(KeyTelemetryStdout, false)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DB:                     expandHome(v.GetString(KeyDB)),
		AttachmentsDir:         expandHome(v.GetString(KeyAttachmentsDir)),
		Actor:                  model.Actor{ID: strings.TrimSpace(v.GetString(KeyActorID)), Role: model.Role(v.GetString(KeyActorRole))},
		RequireCompletionProof: v.GetBool(KeyRequireCompletionProof),
		RequestTimeout:         v.GetDuration(KeyRequestTimeout),
		Log:                    Log{Level: strings.ToLower(v.GetString(KeyLogLevel)), Format: strings.ToLower(v.GetString(KeyLogFormat))},
		Telemetry:              Telemetry{Enabled: v.GetBool(KeyTelemetryEnabled), Stdout: v.GetBool(KeyTelemetryStdout)},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be fixed by defaults.
func (c *Config) Validate() error {
	if !c.Actor.Role.IsValid() {
		return fmt.Errorf("config: invalid %s %q (want supervisor, member or viewer)", KeyActorRole, c.Actor.Role)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: invalid %s %q (want text or json)", KeyLogFormat, c.Log.Format)
	}
	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
