// Package clientmanager owns the user_id → Actor map (spec §4.8),
// grounded on the teacher's internal/cluster.SlaveRegistry: a single
// mutex-protected map, re-keyed from slave id to user id and re-typed
// from *SlaveSession to *actor.Actor. Entries carry no online/offline
// state; an actor that exits is removed from the map.
package clientmanager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lijiaxing1997/agentbridge/internal/actor"
	"github.com/lijiaxing1997/agentbridge/internal/agentsdk"
	"github.com/lijiaxing1997/agentbridge/internal/optionsbuilder"
	"github.com/lijiaxing1997/agentbridge/internal/sessionindex"
	"github.com/lijiaxing1997/agentbridge/internal/sessionrepo"
)

// ClientFactory builds a fresh, unconnected agentsdk.Client — the
// Client Manager never talks to the SDK transport directly, only
// through Actor, which owns the connect call.
type ClientFactory func() agentsdk.Client

// entry is one map slot: the live actor plus the directory it was
// started with, so a directory change can be detected without asking
// the actor (which may have already exited).
type entry struct {
	actor     *actor.Actor
	directory string
}

// Manager is the Client Manager (spec §4.8).
type Manager struct {
	mu      sync.Mutex
	actors  map[string]*entry
	factory ClientFactory
	builder *optionsbuilder.Builder
	index   *sessionindex.Index
	repo    *sessionrepo.Repo
	presence PresenceStore
	idleTimeout func() (int, bool)
	logger  *slog.Logger
}

// PresenceStore is the optional cross-instance presence hook (spec
// SPEC_FULL §4.8), grounded on the teacher's RedisPresenceStore. A nil
// PresenceStore disables the check entirely — the mutex-protected map
// already guarantees "at most one Actor per user id" within a process.
type PresenceStore interface {
	TryClaim(ctx context.Context, userID, instanceID string) (bool, error)
	Release(ctx context.Context, userID string) error
}

// New builds a Manager. presence may be nil.
func New(factory ClientFactory, builder *optionsbuilder.Builder, index *sessionindex.Index, repo *sessionrepo.Repo, presence PresenceStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		actors:   make(map[string]*entry),
		factory:  factory,
		builder:  builder,
		index:    index,
		repo:     repo,
		presence: presence,
		logger:   logger,
	}
}

// GetOrConnectParams are the resolved inputs to GetOrConnect.
type GetOrConnectParams struct {
	UserID            string
	Directory         string
	SessionID         string // explicit override; empty means "resolve"
	Model             string
	Betas             []string
	ApprovedDirectory string
	ForceNew          bool
}

// GetOrConnect returns a running Actor for the user, reusing an
// existing one when its directory still matches, per spec §4.8 steps
// 1–6.
func (m *Manager) GetOrConnect(ctx context.Context, p GetOrConnectParams) (*actor.Actor, error) {
	m.mu.Lock()
	if e, ok := m.actors[p.UserID]; ok {
		if e.actor.Running() && e.directory == p.Directory {
			m.mu.Unlock()
			return e.actor, nil
		}
		delete(m.actors, p.UserID)
		m.mu.Unlock()
		e.actor.Stop()
	} else {
		m.mu.Unlock()
	}

	sessionID, model, betas := p.SessionID, p.Model, p.Betas
	if !p.ForceNew && sessionID == "" {
		resolved, resolvedModel, resolvedBetas := m.resolveSession(p.UserID, p.Directory)
		sessionID = resolved
		if model == "" {
			model = resolvedModel
		}
		if len(betas) == 0 {
			betas = resolvedBetas
		}
	}

	if m.presence != nil {
		claimed, err := m.presence.TryClaim(ctx, p.UserID, instanceID())
		if err != nil {
			m.logger.Warn("presence claim failed, proceeding without cross-instance guard", "user_id", p.UserID, "error", err)
		} else if !claimed {
			return nil, fmt.Errorf("clientmanager: session for user %s is connected on another instance", p.UserID)
		}
	}

	opts, err := m.builder.Build(optionsbuilder.Overrides{
		Cwd:               p.Directory,
		SessionID:         sessionID,
		Model:             model,
		Betas:             betas,
		ApprovedDirectory: p.ApprovedDirectory,
	})
	if err != nil {
		return nil, fmt.Errorf("clientmanager: build options: %w", err)
	}

	idleTimeout := actor.DefaultIdleTimeout
	if m.idleTimeout != nil {
		if hours, ok := m.idleTimeout(); ok {
			idleTimeout = durationHours(hours)
		}
	}

	a := actor.New(p.UserID, m.factory(), opts, idleTimeout, m.onActorExit, m.logger)
	if err := a.Start(ctx); err != nil {
		return nil, fmt.Errorf("clientmanager: start actor: %w", err)
	}

	m.mu.Lock()
	m.actors[p.UserID] = &entry{actor: a, directory: p.Directory}
	m.mu.Unlock()

	if m.repo != nil {
		if err := m.repo.Upsert(p.UserID, sessionID, p.Directory, model, betas); err != nil {
			m.logger.Warn("session repo upsert failed", "user_id", p.UserID, "error", err)
		}
	}

	return a, nil
}

func (m *Manager) resolveSession(userID, directory string) (sessionID, model string, betas []string) {
	if m.repo != nil {
		if rec, err := m.repo.GetByUser(userID); err == nil && rec != nil && rec.Directory == directory {
			return rec.SessionID, rec.Model, rec.Betas
		}
	}
	if m.index != nil {
		if latest, err := m.index.GetLatestSession(directory); err == nil {
			return latest, "", nil
		}
	}
	return "", "", nil
}

// SwitchSession disconnects the current actor (if any) and reconnects
// with an explicit session id.
func (m *Manager) SwitchSession(ctx context.Context, userID, sessionID, directory string) (*actor.Actor, error) {
	m.Disconnect(userID)
	return m.GetOrConnect(ctx, GetOrConnectParams{UserID: userID, Directory: directory, SessionID: sessionID, ForceNew: true})
}

// UpdateSessionId writes a freshly minted session id to the Session
// Repository row of a user with a tracked actor, keeping the row's
// model and betas. The actor's own in-memory session id is updated by
// the actor itself after each completed query; this method does not
// touch it.
func (m *Manager) UpdateSessionId(userID, newSessionID string) {
	m.mu.Lock()
	e, ok := m.actors[userID]
	var directory, model string
	var betas []string
	if ok {
		directory = e.directory
	}
	m.mu.Unlock()
	if !ok || m.repo == nil {
		return
	}
	if rec, err := m.repo.GetByUser(userID); err == nil && rec != nil {
		model, betas = rec.Model, rec.Betas
	}
	if err := m.repo.Upsert(userID, newSessionID, directory, model, betas); err != nil {
		m.logger.Warn("session repo upsert failed", "user_id", userID, "error", err)
	}
}

// SetModel persists a model/betas override, applied on the actor's
// next reconnect (the running actor keeps its current model).
func (m *Manager) SetModel(userID, model string, betas []string) error {
	if m.repo == nil {
		return nil
	}
	rec, err := m.repo.GetByUser(userID)
	if err != nil {
		return err
	}
	sessionID, directory := "", ""
	if rec != nil {
		sessionID, directory = rec.SessionID, rec.Directory
	}
	return m.repo.Upsert(userID, sessionID, directory, model, betas)
}

// Interrupt forwards to the actor if one is present; a no-op
// otherwise.
func (m *Manager) Interrupt(ctx context.Context, userID string) error {
	m.mu.Lock()
	e, ok := m.actors[userID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return e.actor.Interrupt(ctx)
}

// Disconnect removes the actor for userID (if any) from the map and
// stops it.
func (m *Manager) Disconnect(userID string) {
	m.mu.Lock()
	e, ok := m.actors[userID]
	if ok {
		delete(m.actors, userID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	e.actor.Stop()
	if m.presence != nil {
		_ = m.presence.Release(context.Background(), userID)
	}
}

// DisconnectAll stops every actor currently tracked, used on graceful
// shutdown.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.actors))
	for id := range m.actors {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.Disconnect(id)
	}
}

// GetAvailableCommands returns the cached slash-command list for a
// user's actor, or nil if no actor is running.
func (m *Manager) GetAvailableCommands(userID string) []actor.CommandInfo {
	m.mu.Lock()
	e, ok := m.actors[userID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return e.actor.AvailableCommands()
}

// HasActor reports whether a running actor is currently tracked for
// userID, letting the Orchestrator distinguish "no actor" from "actor
// exists but its command cache is empty" on the command-passthrough
// path (spec.md §4.9).
func (m *Manager) HasActor(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.actors[userID]
	return ok
}

// CurrentDirectory returns the directory a user's running actor was
// started with, and whether one exists.
func (m *Manager) CurrentDirectory(userID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.actors[userID]
	if !ok {
		return "", false
	}
	return e.directory, true
}

// onActorExit is the actor's on_exit callback: self-removal from the
// map, matching spec §4.7's "after Stop() returns, the actor is
// unreachable via the Client Manager" invariant for every exit path,
// not just an explicit Disconnect.
func (m *Manager) onActorExit(userID string) {
	m.mu.Lock()
	delete(m.actors, userID)
	m.mu.Unlock()
}
