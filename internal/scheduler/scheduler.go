// Package scheduler runs the bridge's two maintenance jobs —
// session_gc and format_health — on independent cron schedules.
// Grounded on the teacher's internal/autonomy/cronrunner.Runner, with
// the LLM-task execution branch removed (that branch *is* "the agent"
// and is out of scope) and robfig/cron/v3 doing all scheduling in
// place of the teacher's own wakeCh/doneCh loop and hand-rolled
// due-job claiming.
package scheduler

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lijiaxing1997/agentbridge/internal/gateway"
	"github.com/lijiaxing1997/agentbridge/internal/sessionindex"
	"github.com/lijiaxing1997/agentbridge/internal/sessionrepo"
)

// DefaultSessionGCSchedule runs once an hour; DefaultFormatHealthSchedule
// runs once a day. Both are standard 5-field cron expressions.
const (
	DefaultSessionGCSchedule      = "0 * * * *"
	DefaultFormatHealthSchedule   = "0 6 * * *"
	emailSubjectFormatHealthWarn  = "[agentbridge] session history format health warning"
)

// Scheduler wraps a robfig/cron/v3.Cron instance with the two
// built-in maintenance jobs. RunSessionGCNow and RunFormatHealthNow
// run a job immediately, so tests need not wait on real wall-clock
// schedules.
type Scheduler struct {
	cron           *cron.Cron
	repo           *sessionrepo.Repo
	index          *sessionindex.Index
	emailGateway   *gateway.EmailGateway
	operatorEmails []string
	gcHorizonHours int
	logger         *slog.Logger

	mu       sync.Mutex
	lastGC   time.Time
	lastScan time.Time
}

// Options configures a Scheduler.
type Options struct {
	Repo                 *sessionrepo.Repo
	Index                *sessionindex.Index
	EmailGateway         *gateway.EmailGateway
	OperatorEmails       []string
	GCHorizonHours       int
	SessionGCSchedule    string
	FormatHealthSchedule string
	Logger               *slog.Logger
}

// New builds a Scheduler and registers both jobs, but does not start
// it — call Start.
func New(opts Options) (*Scheduler, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gcHorizon := opts.GCHorizonHours
	if gcHorizon <= 0 {
		gcHorizon = 24
	}
	gcSchedule := strings.TrimSpace(opts.SessionGCSchedule)
	if gcSchedule == "" {
		gcSchedule = DefaultSessionGCSchedule
	}
	healthSchedule := strings.TrimSpace(opts.FormatHealthSchedule)
	if healthSchedule == "" {
		healthSchedule = DefaultFormatHealthSchedule
	}

	s := &Scheduler{
		cron:           cron.New(),
		repo:           opts.Repo,
		index:          opts.Index,
		emailGateway:   opts.EmailGateway,
		operatorEmails: opts.OperatorEmails,
		gcHorizonHours: gcHorizon,
		logger:         logger,
	}

	if _, err := s.cron.AddFunc(gcSchedule, s.runSessionGC); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(healthSchedule, s.runFormatHealth); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins running the scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler from starting new jobs, then blocks until
// any in-flight job finishes or ctx is done, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
}

// RunSessionGCNow runs the session_gc job immediately, synchronously —
// used by tests and by an operator-triggered manual sweep.
func (s *Scheduler) RunSessionGCNow() {
	s.runSessionGC()
}

// RunFormatHealthNow runs the format_health job immediately,
// synchronously.
func (s *Scheduler) RunFormatHealthNow() {
	s.runFormatHealth()
}

func (s *Scheduler) runSessionGC() {
	if s.repo == nil {
		return
	}
	n, err := s.repo.CleanupExpired(s.gcHorizonHours)
	s.mu.Lock()
	s.lastGC = time.Now()
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("scheduler: session_gc failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("scheduler: session_gc removed stale rows", "count", n)
	}
}

func (s *Scheduler) runFormatHealth() {
	if s.index == nil {
		return
	}
	warning, err := s.index.CheckFormatHealth()
	s.mu.Lock()
	s.lastScan = time.Now()
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("scheduler: format_health check failed", "error", err)
		return
	}
	if warning == "" {
		return
	}
	s.logger.Warn("scheduler: format health warning", "warning", warning)
	s.deliverWarning(warning)
}

// deliverWarning sends the format-health digest to the operator
// mailbox rather than the chat platform — format health is an
// operator concern, not a user-facing one (SPEC_FULL §4.9).
func (s *Scheduler) deliverWarning(warning string) {
	if s.emailGateway == nil || len(s.operatorEmails) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, addr := range s.operatorEmails {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if err := s.emailGateway.SendReply(ctx, addr, emailSubjectFormatHealthWarn, warning, gateway.EmailThreadContext{}); err != nil {
			s.logger.Warn("scheduler: format health digest delivery failed", "to", addr, "error", err)
		}
	}
}
