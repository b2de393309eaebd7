// Package runtimeconfig loads the duel configuration file. JSON and YAML are
// both accepted, a .env file is folded into the environment when present,
// and the parsed document is validated against an embedded JSON schema
// before any defaults apply.
package runtimeconfig

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/xeipuuv/gojsonschema"

	"github.com/agentduel/agentduel/internal/config"
)

//go:embed schema.json
var schemaJSON string

const (
	defaultListenAddr     = ":8080"
	defaultTimeoutSeconds = 600
	defaultAuditDBPath    = "./.agentduel/audit.db"
	defaultRetentionHours = 168
)

type Config struct {
	Goal                string `json:"goal" yaml:"goal"`
	LeftProvider        string `json:"leftProvider" yaml:"leftProvider"`
	RightProvider       string `json:"rightProvider" yaml:"rightProvider"`
	SessionEndpoint     string `json:"sessionEndpoint" yaml:"sessionEndpoint"`
	StreamEndpoint      string `json:"streamEndpoint" yaml:"streamEndpoint"`
	ListenAddr          string `json:"listenAddr" yaml:"listenAddr"`
	TimeoutSeconds      int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
	AuditDBPath         string `json:"auditDBPath" yaml:"auditDBPath"`
	AuditRetentionHours int    `json:"auditRetentionHours" yaml:"auditRetentionHours"`
	StateBackend        string `json:"stateBackend" yaml:"stateBackend"`
}

// Timeout converts the configured per-run budget to a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AuditRetention converts the configured retention window to a duration.
func (c Config) AuditRetention() time.Duration {
	return time.Duration(c.AuditRetentionHours) * time.Hour
}

// Load reads, validates, and defaults the configuration at path. A .env file
// next to the config is loaded first, best effort, so the file can reference
// secrets without embedding them.
func Load(path string) (Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Config{}, fmt.Errorf("config path is required")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to resolve config path: %w", err)
	}

	_ = godotenv.Load(filepath.Join(filepath.Dir(absPath), ".env"))

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %q: %w", absPath, err)
	}

	doc, err := toJSON(absPath, data)
	if err != nil {
		return Config{}, err
	}
	if err := validate(doc); err != nil {
		return Config{}, fmt.Errorf("config file %q: %w", absPath, err)
	}

	var cfg Config
	if err := json.Unmarshal(doc, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config file %q: %w", absPath, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// toJSON normalizes the raw file to a JSON document so one schema covers
// both formats.
func toJSON(path string, data []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		doc, err := yaml.YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode config file %q as YAML: %w", path, err)
		}
		return doc, nil
	default:
		if !json.Valid(data) {
			return nil, fmt.Errorf("config file %q is not valid JSON", path)
		}
		return data, nil
	}
}

func validate(doc []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func (c *Config) applyDefaults() {
	c.Goal = strings.TrimSpace(c.Goal)
	c.LeftProvider = strings.ToLower(strings.TrimSpace(c.LeftProvider))
	c.RightProvider = strings.ToLower(strings.TrimSpace(c.RightProvider))
	c.SessionEndpoint = strings.TrimSpace(c.SessionEndpoint)
	c.StreamEndpoint = strings.TrimSpace(c.StreamEndpoint)
	if c.ListenAddr == "" {
		c.ListenAddr = config.Getenv("DUEL_LISTEN_ADDR", defaultListenAddr)
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = config.GetenvInt("DUEL_TIMEOUT_SECONDS", defaultTimeoutSeconds)
	}
	if c.AuditDBPath == "" {
		c.AuditDBPath = config.Getenv("DUEL_AUDIT_DB_PATH", defaultAuditDBPath)
	}
	if c.AuditRetentionHours <= 0 {
		c.AuditRetentionHours = config.GetenvInt("DUEL_AUDIT_RETENTION_HOURS", defaultRetentionHours)
	}
	if c.StateBackend == "" {
		c.StateBackend = config.Getenv("DUEL_STATE_BACKEND", "sqlite")
	}
}
