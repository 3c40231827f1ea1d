package agentsdk

import "context"

// PermissionDecision is returned by a permission callback to allow or
// block one proposed tool invocation.
type PermissionDecision struct {
	Allow  bool
	Reason string
}

// PermissionFunc is consulted by the CLI subprocess before a tool use
// executes, when Options.Permission is set (spec §4.2).
type PermissionFunc func(toolName string, input map[string]any) PermissionDecision

// Options is the SDK options record built by the Options Builder
// (spec §4.2) and passed to Client.Connect.
type Options struct {
	Cwd             string
	Resume          string // session id to resume; empty starts fresh
	Model           string
	Betas           []string
	PermissionMode  string // always "bypass" per spec §4.2
	SystemPrompt    string
	MCPServers      []MCPServerOptions
	Permission      PermissionFunc
}

// MCPServerOptions is the subset of an MCP server descriptor the
// Agent SDK options record forwards to the CLI subprocess so it can
// start additional MCP servers (SPEC_FULL §4.2 MCP passthrough).
type MCPServerOptions struct {
	Name      string
	Transport string
	Command   string
	Args      []string
	URL       string
}

// Client is the Agent SDK contract (spec §6.1). Every call after
// Connect and before Disconnect must happen on the same goroutine
// that called Connect — the SDK's cancellation scopes are bound to
// that goroutine, which is the entire reason the User Client Actor
// exists (spec §4.7, §9).
type Client interface {
	Connect(ctx context.Context, opts Options) error
	// Query sends prompt content and returns a channel of raw SDK
	// messages terminated by exactly one "result" message and then
	// closed. The channel is a finite, non-resumable producer (spec
	// §9) — callers must drain it to completion or cancel ctx.
	Query(ctx context.Context, blocks []ContentBlock) (<-chan RawMessage, <-chan error)
	Interrupt(ctx context.Context) error
	Disconnect(ctx context.Context) error
	GetServerInfo(ctx context.Context) (ServerInfo, error)
}
