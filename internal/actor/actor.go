// Package actor implements the User Client Actor: one goroutine per
// user that owns a single agentsdk.Client and serializes every
// connect/query/disconnect call through it, because the SDK binds its
// cancellation scopes to whichever goroutine called Connect. Grounded
// on the teacher's cronrunner.Runner wakeCh/doneCh worker-loop shape,
// generalized from a cron tick consumer to a bounded work-item queue.
package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lijiaxing1997/agentbridge/internal/agentsdk"
	"github.com/lijiaxing1997/agentbridge/internal/streamevent"
)

// ErrNotRunning is returned by Submit when the actor's worker has
// already exited (idle timeout, stop, or a fatal connect failure).
var ErrNotRunning = errors.New("actor: not running")

// DefaultIdleTimeout is how long the worker waits for a new work item
// before it shuts itself down (spec §6.5).
const DefaultIdleTimeout = 1 * time.Hour

// DefaultStopTimeout bounds how long Stop() waits for a graceful exit
// before cancelling the worker outright.
const DefaultStopTimeout = 10 * time.Second

type workItem struct {
	query    Query
	onStream StreamCallback
	result   chan workResult
}

type workResult struct {
	value QueryResult
	err   error
}

// CommandInfo mirrors agentsdk.CommandInfo for callers that don't want
// to import the agentsdk package just to read the commands cache.
type CommandInfo = agentsdk.CommandInfo

// Actor owns one SDK client for one user id.
type Actor struct {
	userID  string
	options agentsdk.Options
	client  agentsdk.Client

	idleTimeout time.Duration
	onExit      func(userID string)
	logger      *slog.Logger

	queue chan any // workItem or stopSentinel
	done  chan struct{}

	mu                 sync.Mutex
	running            bool
	querying           bool
	sessionID          string
	availableCommands  []CommandInfo
}

type stopSentinel struct{}

// New builds an Actor bound to userID and a freshly constructed SDK
// client. onExit is called exactly once, from the worker goroutine,
// after the worker has fully torn down (spec §4.7's "notify
// on_exit(user_id)").
func New(userID string, client agentsdk.Client, options agentsdk.Options, idleTimeout time.Duration, onExit func(userID string), logger *slog.Logger) *Actor {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Actor{
		userID:      userID,
		options:     options,
		client:      client,
		idleTimeout: idleTimeout,
		onExit:      onExit,
		logger:      logger,
		queue:       make(chan any, 8),
		done:        make(chan struct{}),
		sessionID:   options.Resume,
	}
}

// Start connects the SDK client and spawns the worker goroutine. It
// returns only once connect has completed (or failed).
func (a *Actor) Start(ctx context.Context) error {
	connected := make(chan error, 1)
	go a.run(ctx, connected)
	if err := <-connected; err != nil {
		return err
	}
	return nil
}

func (a *Actor) run(ctx context.Context, connected chan<- error) {
	if err := a.client.Connect(ctx, a.options); err != nil {
		connected <- fmt.Errorf("actor: connect: %w", err)
		close(a.done)
		return
	}

	a.mu.Lock()
	a.running = true
	a.mu.Unlock()
	connected <- nil

	info, err := a.client.GetServerInfo(ctx)
	if err != nil {
		a.logger.Warn("actor: get_server_info failed", "user_id", a.userID, "error", err)
	} else {
		a.mu.Lock()
		a.availableCommands = info.Commands
		a.mu.Unlock()
	}

	a.loop(ctx)

	a.mu.Lock()
	a.running = false
	a.availableCommands = nil
	a.mu.Unlock()

	_ = a.client.Disconnect(ctx)
	if a.onExit != nil {
		a.onExit(a.userID)
	}
	close(a.done)
}

func (a *Actor) loop(ctx context.Context) {
	timer := time.NewTimer(a.idleTimeout)
	defer timer.Stop()

	for {
		select {
		case raw := <-a.queue:
			if !timer.Stop() {
				<-timer.C
			}
			switch item := raw.(type) {
			case stopSentinel:
				return
			case workItem:
				a.processItem(ctx, item)
			}
			timer.Reset(a.idleTimeout)
		case <-timer.C:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (a *Actor) processItem(ctx context.Context, item workItem) {
	a.mu.Lock()
	a.querying = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.querying = false
		a.mu.Unlock()
	}()

	start := time.Now()
	blocks := item.query.ToContentBlocks()

	msgs, errc := a.client.Query(ctx, blocks)

	var result QueryResult
	turns := 0
	var streamErr error

loop:
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				break loop
			}
			ev := streamevent.Classify(msg)
			switch ev.Kind {
			case streamevent.KindResult:
				result = QueryResult{
					ResponseText: ev.Content,
					SessionID:    ev.SessionID,
					Cost:         ev.Cost,
					NumTurns:     turns,
					DurationMS:   time.Since(start).Milliseconds(),
				}
			case streamevent.KindText:
				if ev.Content != "" && item.onStream != nil {
					item.onStream(ev)
				}
			case streamevent.KindToolUse:
				if !msg.Partial {
					turns++
				}
				if item.onStream != nil {
					item.onStream(ev)
				}
			case streamevent.KindThinking:
				if ev.Content != "" && item.onStream != nil {
					item.onStream(ev)
				}
			case streamevent.KindToolResult:
				if ev.Content != "" && item.onStream != nil {
					item.onStream(ev)
				}
			}
		case err := <-errc:
			if err != nil {
				streamErr = err
			}
		case <-ctx.Done():
			streamErr = ctx.Err()
			break loop
		}
	}

	if streamErr != nil {
		item.result <- workResult{err: streamErr}
		return
	}

	result.NumTurns = turns
	a.mu.Lock()
	a.sessionID = result.SessionID
	a.mu.Unlock()

	item.result <- workResult{value: result}
}

// Submit enqueues a query and blocks until the worker publishes its
// result (or the actor is not running).
func (a *Actor) Submit(ctx context.Context, query Query, onStream StreamCallback) (QueryResult, error) {
	a.mu.Lock()
	running := a.running
	a.mu.Unlock()
	if !running {
		return QueryResult{}, ErrNotRunning
	}

	item := workItem{query: query, onStream: onStream, result: make(chan workResult, 1)}
	select {
	case a.queue <- item:
	case <-ctx.Done():
		return QueryResult{}, ctx.Err()
	case <-a.done:
		return QueryResult{}, ErrNotRunning
	}

	select {
	case res := <-item.result:
		return res.value, res.err
	case <-ctx.Done():
		return QueryResult{}, ctx.Err()
	}
}

// Stop enqueues the stop sentinel and waits (bounded) for the worker
// to exit. On timeout it logs a warning and returns; it does not
// cancel the worker, which keeps running until its current item
// finishes or the ctx passed to Start is cancelled.
func (a *Actor) Stop() {
	select {
	case a.queue <- stopSentinel{}:
	default:
	}
	select {
	case <-a.done:
	case <-time.After(DefaultStopTimeout):
		a.logger.Warn("actor: stop timed out waiting for worker exit", "user_id", a.userID)
	}
}

// Interrupt forwards to the SDK's interrupt call. Safe to call from
// any goroutine; a no-op if the actor isn't currently querying.
func (a *Actor) Interrupt(ctx context.Context) error {
	a.mu.Lock()
	querying := a.querying
	a.mu.Unlock()
	if !querying {
		return nil
	}
	return a.client.Interrupt(ctx)
}

// AvailableCommands returns a snapshot of the cached CLI-native
// command list.
func (a *Actor) AvailableCommands() []CommandInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]CommandInfo, len(a.availableCommands))
	copy(out, a.availableCommands)
	return out
}

// HasCommand is a cache membership test over AvailableCommands.
func (a *Actor) HasCommand(name string) bool {
	for _, c := range a.AvailableCommands() {
		if c.Name == name {
			return true
		}
	}
	return false
}

// SessionID returns the actor's current session id, updated after
// every successfully completed query.
func (a *Actor) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// Running reports whether the worker goroutine is still alive.
func (a *Actor) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}
