// Package optionsbuilder composes an agentsdk.Options record from the
// CLI-user's own settings file, per-query overrides, and this
// bridge's fixed headless policy (bypass permission mode, mobile
// display hint, optional approved-directory sandboxing).
package optionsbuilder

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lijiaxing1997/agentbridge/internal/agentsdk"
	"github.com/lijiaxing1997/agentbridge/internal/mcpclient"
)

const mobileDisplayHint = "\n\nYou are being driven through a chat client on a phone. Keep replies skimmable: short paragraphs, no wide tables, and prefer bullet lists over dense prose."

// CLISettings is the subset of the coding-agent CLI's own settings
// file this bridge reads. Unknown fields in the file are ignored.
type CLISettings struct {
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt"`
}

// SecurityValidator rejects a proposed tool invocation outside an
// approved working directory or matching a known-dangerous shell
// pattern. A nil validator disables the permission callback entirely.
type SecurityValidator interface {
	Validate(toolName string, input map[string]any, approvedDirectory string) agentsdk.PermissionDecision
}

// Overrides are the per-query fields the Orchestrator supplies on top
// of CLI-user settings.
type Overrides struct {
	Cwd               string
	SessionID         string
	Model             string
	Betas             []string
	ApprovedDirectory string
}

// Builder reads the CLI-user settings file once per lifetime and
// caches it, the same "parse once, reuse" discipline the teacher's
// config loaders use for their own settings files.
type Builder struct {
	settingsPath string
	validator    SecurityValidator
	mcpConfig    mcpclient.Config

	once     sync.Once
	settings CLISettings
	loadErr  error

	logger *slog.Logger
}

// New builds an options Builder. mcpConfigPath may be empty, in which
// case MCP passthrough is disabled.
func New(settingsPath string, validator SecurityValidator, mcpConfigPath string, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Builder{settingsPath: settingsPath, validator: validator, logger: logger}
	if strings.TrimSpace(mcpConfigPath) != "" {
		if cfg, err := mcpclient.LoadConfig(mcpConfigPath); err == nil {
			b.mcpConfig = cfg
		} else {
			logger.Warn("mcp config load failed, passthrough disabled", "path", mcpConfigPath, "error", err)
		}
	}
	return b
}

func (b *Builder) loadSettings() CLISettings {
	b.once.Do(func() {
		data, err := os.ReadFile(b.settingsPath)
		if err != nil {
			if !os.IsNotExist(err) {
				b.logger.Warn("cli settings file unreadable, using empty settings", "path", b.settingsPath, "error", err)
			}
			return
		}
		var s CLISettings
		if err := json.Unmarshal(data, &s); err != nil {
			b.logger.Warn("cli settings file malformed, treating as empty", "path", b.settingsPath, "error", err)
			return
		}
		b.settings = s
	})
	return b.settings
}

// Build composes the options record. cwd is required; an empty value
// is a fatal build error, matching the spec's "SDK rejects a field →
// propagate as a fatal build error" edge case.
func (b *Builder) Build(ov Overrides) (agentsdk.Options, error) {
	if strings.TrimSpace(ov.Cwd) == "" {
		return agentsdk.Options{}, fmt.Errorf("optionsbuilder: cwd is required")
	}

	settings := b.loadSettings()

	model := ov.Model
	if model == "" {
		model = settings.Model
	}

	opts := agentsdk.Options{
		Cwd:            filepath.Clean(ov.Cwd),
		Resume:         ov.SessionID,
		Model:          model,
		Betas:          ov.Betas,
		PermissionMode: "bypass",
		SystemPrompt:   systemPrompt(settings),
		MCPServers:     mcpServerOptions(b.mcpConfig),
	}

	if b.validator != nil && ov.ApprovedDirectory != "" {
		approved := ov.ApprovedDirectory
		validator := b.validator
		opts.Permission = func(toolName string, input map[string]any) agentsdk.PermissionDecision {
			return validator.Validate(toolName, input, approved)
		}
	}

	return opts, nil
}

// systemPrompt preserves the CLI's own preset (settings.SystemPrompt,
// which may itself be empty — the CLI supplies its built-in preset
// when given none) and appends the mobile hint; it never replaces the
// preset outright.
func systemPrompt(settings CLISettings) string {
	return settings.SystemPrompt + mobileDisplayHint
}

func mcpServerOptions(cfg mcpclient.Config) []agentsdk.MCPServerOptions {
	if len(cfg.Servers) == 0 {
		return nil
	}
	out := make([]agentsdk.MCPServerOptions, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		if s.Disabled {
			continue
		}
		out = append(out, agentsdk.MCPServerOptions{
			Name:      s.Name,
			Transport: s.Transport,
			Command:   s.Command,
			Args:      s.Args,
			URL:       s.URL,
		})
	}
	return out
}
