// Package bridgeconfig loads the bridge's configuration surface (spec
// §6.5) from a JSON file with environment-variable overrides, grounded
// on the teacher's internal/memory.Config: a defaulted, nil-pointer-safe
// struct loaded once via LoadConfig/WithDefaults.
package bridgeconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the bridge's full configuration surface (spec §6.5).
type Config struct {
	// Required.
	BotToken            string   `json:"bot_token"`
	AllowedUserIDs       []string `json:"allowed_user_ids"`
	ApprovedDirectories  []string `json:"approved_directories"`

	// Core-relevant optional, all defaulted by WithDefaults.
	IdleTimeoutSeconds    int     `json:"idle_timeout_seconds"`
	EditIntervalSeconds   float64 `json:"edit_interval_seconds"`
	MaxMessageLength      int     `json:"max_message_length"`
	MediaGroupTimeoutSecs float64 `json:"media_group_timeout_seconds"`
	AgentConfigDir        string  `json:"agent_config_dir"`
	GCHorizonHours        int     `json:"gc_horizon_hours"`
	SkillsDir             string  `json:"skills_dir"`

	// AgentCommand/AgentArgs name the coding-agent CLI binary the User
	// Client Actor drives via agentsdk.SubprocessClient.
	AgentCommand string   `json:"agent_command"`
	AgentArgs    []string `json:"agent_args"`

	// Ambient, not in spec.md's core table but required to run a
	// real process: storage paths, MCP passthrough, optional Redis
	// presence, and the HTTP webhook bind address.
	DBPath         string `json:"db_path"`
	ClaudeConfigDir string `json:"claude_config_dir"`
	MCPConfigPath  string `json:"mcp_config_path"`
	RedisURL       string `json:"redis_url"`
	ListenAddr     string `json:"listen_addr"`

	// PlatformBaseURL points at the chat-platform adapter this bridge
	// relays through (see internal/chatplatform.HTTPClient). Empty means
	// "no adapter configured" — the process falls back to an in-memory
	// fake, useful only for local smoke testing.
	PlatformBaseURL string `json:"platform_base_url"`
	WebhookSecretToken string `json:"webhook_secret_token"`
	OperatorEmails     []string `json:"operator_emails"`
}

const (
	defaultIdleTimeoutSeconds    = 3600
	defaultEditIntervalSeconds   = 2.0
	defaultMaxMessageLength      = 4000
	defaultMediaGroupTimeoutSecs = 1.0
	defaultGCHorizonHours        = 24
	defaultListenAddr            = ":8080"
	defaultAgentCommand          = "claude"
	defaultSkillsDir             = "skills"
)

// DefaultConfig mirrors spec §6.5's stated defaults.
func DefaultConfig() Config {
	return Config{
		IdleTimeoutSeconds:    defaultIdleTimeoutSeconds,
		EditIntervalSeconds:   defaultEditIntervalSeconds,
		MaxMessageLength:      defaultMaxMessageLength,
		MediaGroupTimeoutSecs: defaultMediaGroupTimeoutSecs,
		GCHorizonHours:        defaultGCHorizonHours,
		ListenAddr:            defaultListenAddr,
		DBPath:                "~/.agentbridge/bridge.db",
	}
}

// WithDefaults fills any zero-valued optional field with its default,
// the same nil/zero-safe merge the teacher's memory.Config.WithDefaults
// performs.
func (c Config) WithDefaults() Config {
	out := c
	if out.IdleTimeoutSeconds <= 0 {
		out.IdleTimeoutSeconds = defaultIdleTimeoutSeconds
	}
	if out.EditIntervalSeconds <= 0 {
		out.EditIntervalSeconds = defaultEditIntervalSeconds
	}
	if out.MaxMessageLength <= 0 {
		out.MaxMessageLength = defaultMaxMessageLength
	}
	if out.MediaGroupTimeoutSecs <= 0 {
		out.MediaGroupTimeoutSecs = defaultMediaGroupTimeoutSecs
	}
	if out.GCHorizonHours <= 0 {
		out.GCHorizonHours = defaultGCHorizonHours
	}
	if strings.TrimSpace(out.ListenAddr) == "" {
		out.ListenAddr = defaultListenAddr
	}
	if strings.TrimSpace(out.DBPath) == "" {
		out.DBPath = DefaultConfig().DBPath
	}
	if strings.TrimSpace(out.AgentCommand) == "" {
		out.AgentCommand = defaultAgentCommand
	}
	if strings.TrimSpace(out.SkillsDir) == "" {
		out.SkillsDir = defaultSkillsDir
	}
	return out
}

// IdleTimeout is IdleTimeoutSeconds as a time.Duration.
func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

// EditInterval is EditIntervalSeconds as a time.Duration.
func (c Config) EditInterval() time.Duration {
	return time.Duration(c.EditIntervalSeconds * float64(time.Second))
}

// MediaGroupTimeout is MediaGroupTimeoutSecs as a time.Duration.
func (c Config) MediaGroupTimeout() time.Duration {
	return time.Duration(c.MediaGroupTimeoutSecs * float64(time.Second))
}

// IsAllowedUser reports whether userID appears in AllowedUserIDs. An
// empty AllowedUserIDs list is a configuration error, never "allow
// all" — checked by Validate, not here.
func (c Config) IsAllowedUser(userID string) bool {
	for _, id := range c.AllowedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Validate enforces spec §6.5's required fields and §7's
// "configuration errors are fatal at process start" rule.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BotToken) == "" {
		return errors.New("bridgeconfig: bot_token is required")
	}
	if len(c.AllowedUserIDs) == 0 {
		return errors.New("bridgeconfig: at least one allowed_user_id is required")
	}
	if len(c.ApprovedDirectories) == 0 {
		return errors.New("bridgeconfig: at least one approved_directory is required")
	}
	return nil
}

// envOverrides applies AGENTBRIDGE_*-prefixed environment variables on
// top of a file-loaded config, for secrets operators prefer not to put
// in a file on disk (the bot token chief among them).
func (c Config) envOverrides() Config {
	out := c
	if v := os.Getenv("AGENTBRIDGE_BOT_TOKEN"); v != "" {
		out.BotToken = v
	}
	if v := os.Getenv("AGENTBRIDGE_ALLOWED_USER_IDS"); v != "" {
		out.AllowedUserIDs = splitNonEmpty(v)
	}
	if v := os.Getenv("AGENTBRIDGE_APPROVED_DIRECTORIES"); v != "" {
		out.ApprovedDirectories = splitNonEmpty(v)
	}
	if v := os.Getenv("AGENTBRIDGE_REDIS_URL"); v != "" {
		out.RedisURL = v
	}
	if v := os.Getenv("AGENTBRIDGE_LISTEN_ADDR"); v != "" {
		out.ListenAddr = v
	}
	if v := os.Getenv("AGENTBRIDGE_IDLE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			out.IdleTimeoutSeconds = n
		}
	}
	if v := os.Getenv("AGENTBRIDGE_PLATFORM_BASE_URL"); v != "" {
		out.PlatformBaseURL = v
	}
	if v := os.Getenv("AGENTBRIDGE_WEBHOOK_SECRET_TOKEN"); v != "" {
		out.WebhookSecretToken = v
	}
	return out
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadConfig reads configPath (missing file → bare defaults, same
// tolerant-of-absence behavior as memory.LoadConfig), applies
// environment overrides, fills defaults, and validates.
func LoadConfig(configPath string) (Config, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = "agentbridge.json"
	}

	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("bridgeconfig: read %s: %w", path, err)
		}
		cfg = DefaultConfig()
	} else {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("bridgeconfig: parse %s: %w", path, err)
		}
	}

	cfg = cfg.envOverrides().WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
