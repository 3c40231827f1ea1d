// Package orchestrator wires the inbound webhook, the Client Manager,
// the User Client Actor, and the Progress Renderer into the four core
// paths spec.md §4.9 describes: plain text, attachments (including
// media-group buffering), slash-command passthrough to the agent CLI,
// and inline-keyboard callbacks (directory browse, session pick, skill
// pick, model pick). It implements webhook.Handler directly, the same
// "glue struct implements the transport's callback interface" shape
// the teacher uses to wire internal/gateway's inbound mail handler.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lijiaxing1997/agentbridge/internal/actor"
	"github.com/lijiaxing1997/agentbridge/internal/agentsdk"
	"github.com/lijiaxing1997/agentbridge/internal/attachments"
	"github.com/lijiaxing1997/agentbridge/internal/chatplatform"
	"github.com/lijiaxing1997/agentbridge/internal/clientmanager"
	"github.com/lijiaxing1997/agentbridge/internal/renderer"
	"github.com/lijiaxing1997/agentbridge/internal/sessionindex"
	"github.com/lijiaxing1997/agentbridge/internal/sessionrepo"
	"github.com/lijiaxing1997/agentbridge/internal/streamevent"
	"github.com/lijiaxing1997/agentbridge/internal/webhook"
)

const defaultAnalyzePrompt = "analyze these"

// Config carries the operator-facing settings the Orchestrator needs
// beyond its collaborators, mirroring bridgeconfig.Config's core-relevant
// fields (spec §6.5).
type Config struct {
	ApprovedDirectories []string
	SkillsDir           string
	BotCommands         []string // registered bot commands out of scope for CLI passthrough (spec §1)
	EditInterval        time.Duration
	MaxMessageLength    int
	MediaGroupTimeout   time.Duration
	Logger              *slog.Logger
}

// Orchestrator glues the core subsystems together per spec §4.9.
type Orchestrator struct {
	platform chatplatform.Platform
	manager  *clientmanager.Manager
	repo     *sessionrepo.Repo
	index    *sessionindex.Index

	approvedDirs []string
	skillsDir    string
	botCommands  map[string]bool

	editInterval time.Duration
	maxMsgLength int

	mediaGroups *attachments.MediaGroupCollector

	mu       sync.Mutex
	groupCtx map[string]*groupContext
	browse   map[string]*browseState

	logger *slog.Logger
}

// groupContext is the per-album bookkeeping the MediaGroupCollector's
// flat (groupID, items) callback can't carry itself.
type groupContext struct {
	chatID   string
	userID   string
	captions []string
}

// New builds an Orchestrator. cfg's zero-valued durations/lengths fall
// back to the Progress Renderer's and Media Group Collector's own
// defaults.
func New(platform chatplatform.Platform, manager *clientmanager.Manager, repo *sessionrepo.Repo, index *sessionindex.Index, cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		platform:     platform,
		manager:      manager,
		repo:         repo,
		index:        index,
		approvedDirs: cfg.ApprovedDirectories,
		skillsDir:    cfg.SkillsDir,
		botCommands:  toCommandSet(cfg.BotCommands),
		editInterval: cfg.EditInterval,
		maxMsgLength: cfg.MaxMessageLength,
		groupCtx:     make(map[string]*groupContext),
		browse:       make(map[string]*browseState),
		logger:       logger,
	}
	o.mediaGroups = attachments.NewMediaGroupCollector(cfg.MediaGroupTimeout, o.onMediaGroupFlush)
	return o
}

func toCommandSet(cmds []string) map[string]bool {
	set := make(map[string]bool, len(cmds))
	for _, c := range cmds {
		set[normalizeCommand(c)] = true
	}
	return set
}

func normalizeCommand(word string) string {
	return strings.ToLower(strings.TrimPrefix(word, "/"))
}

// HandleMessage implements webhook.Handler.
func (o *Orchestrator) HandleMessage(r *http.Request, msg webhook.InboundMessage) error {
	ctx := r.Context()

	if len(msg.Attachments) > 0 {
		return o.handleAttachments(ctx, msg)
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}
	if strings.HasPrefix(text, "/") {
		return o.handleCommand(ctx, msg.ChatID, msg.UserID, text)
	}
	return o.handleQuery(ctx, msg.ChatID, msg.UserID, actor.Query{Text: text})
}

// handleCommand implements spec §4.9's command-passthrough path.
func (o *Orchestrator) handleCommand(ctx context.Context, chatID, userID, text string) error {
	fields := strings.Fields(text)
	word := normalizeCommand(fields[0])

	if o.botCommands[word] {
		// Registered bot command: dispatch parsing is explicitly out of
		// scope (spec.md §1); some other layer owns it.
		return nil
	}

	claimed := hasCommand(o.manager.GetAvailableCommands(userID), fields[0])
	switch {
	case claimed:
		return o.handleQuery(ctx, chatID, userID, actor.Query{Text: text})
	case o.manager.HasActor(userID):
		o.notify(ctx, chatID, fmt.Sprintf("Command not found: %s", fields[0]))
		return nil
	default:
		// No actor yet — pass verbatim and let the CLI decide, per
		// spec.md §4.9.
		return o.handleQuery(ctx, chatID, userID, actor.Query{Text: text})
	}
}

func hasCommand(cmds []actor.CommandInfo, word string) bool {
	name := strings.TrimPrefix(word, "/")
	for _, c := range cmds {
		if strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

// handleAttachments implements spec §4.9's inbound-attachment path,
// steps 1–4; step 5 onward is handleQuery via finishAttachmentGroup.
func (o *Orchestrator) handleAttachments(ctx context.Context, msg webhook.InboundMessage) error {
	groupID := groupKey(msg.UserID, msg.MediaGroupID)
	if groupID != "" {
		o.recordGroupContext(groupID, msg.ChatID, msg.UserID, msg.Text)
	}

	var immediate []attachments.RawAttachment
	for _, att := range msg.Attachments {
		downloaded, err := o.platform.DownloadFile(ctx, att.FileID)
		if err != nil {
			o.logger.Warn("orchestrator: attachment download failed", "user_id", msg.UserID, "file_id", att.FileID, "error", err)
			continue
		}
		raw := attachments.RawAttachment{
			IsPhoto:  att.IsPhoto,
			Filename: firstNonEmpty(downloaded.Filename, att.Filename),
			MIMEType: firstNonEmpty(downloaded.MIMEType, att.MIMEType),
			Data:     downloaded.Data,
		}
		items, ok := o.mediaGroups.Add(attachments.Item{GroupID: groupID, Attachment: raw})
		if ok {
			immediate = append(immediate, items...)
		}
	}

	if groupID == "" && len(immediate) > 0 {
		o.finishAttachmentGroup(ctx, msg.ChatID, msg.UserID, msg.Text, immediate)
	}
	// A grouped album's items are still buffering; onMediaGroupFlush
	// completes the path once the debounce timer fires.
	return nil
}

func groupKey(userID, mediaGroupID string) string {
	if mediaGroupID == "" {
		return ""
	}
	return userID + ":" + mediaGroupID
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func (o *Orchestrator) recordGroupContext(groupID, chatID, userID, caption string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	gc, ok := o.groupCtx[groupID]
	if !ok {
		gc = &groupContext{chatID: chatID, userID: userID}
		o.groupCtx[groupID] = gc
	}
	if strings.TrimSpace(caption) != "" {
		gc.captions = append(gc.captions, caption)
	}
}

// onMediaGroupFlush is the MediaGroupCollector's onFlush callback; it
// runs on the collector's own timer goroutine.
func (o *Orchestrator) onMediaGroupFlush(groupID string, items []attachments.RawAttachment) {
	o.mu.Lock()
	gc, ok := o.groupCtx[groupID]
	if ok {
		delete(o.groupCtx, groupID)
	}
	o.mu.Unlock()
	if !ok {
		o.logger.Warn("orchestrator: media group flushed with no recorded context", "group_id", groupID)
		return
	}

	caption := ""
	if len(gc.captions) > 0 {
		caption = gc.captions[0]
	}
	o.finishAttachmentGroup(context.Background(), gc.chatID, gc.userID, caption, items)
}

// finishAttachmentGroup implements spec §4.9's attachment-path steps
// 2–5: process each raw attachment, notify once per unsupported file,
// and continue into the shared query path if anything survived.
func (o *Orchestrator) finishAttachmentGroup(ctx context.Context, chatID, userID, caption string, raws []attachments.RawAttachment) {
	blocks := make([]agentsdk.ContentBlock, 0, len(raws))
	for _, raw := range raws {
		block, err := attachments.Process(raw)
		if err != nil {
			var unsupported *attachments.UnsupportedAttachmentError
			if errors.As(err, &unsupported) {
				o.notify(ctx, chatID, fmt.Sprintf("Couldn't use %q (%s) — unsupported file type.", unsupported.Filename, unsupported.MIMEType))
				continue
			}
			o.logger.Warn("orchestrator: attachment processing failed", "user_id", userID, "error", err)
			continue
		}
		blocks = append(blocks, block)
	}
	if len(blocks) == 0 {
		return
	}

	text := strings.TrimSpace(caption)
	if text == "" {
		text = defaultAnalyzePrompt
	}
	if err := o.handleQuery(ctx, chatID, userID, actor.Query{Text: text, Attachments: blocks}); err != nil {
		o.logger.Warn("orchestrator: attachment query failed", "user_id", userID, "error", err)
	}
}

// handleQuery implements spec §4.9's inbound-text path steps 1–8,
// shared by the plain-text, attachment, and command-passthrough paths.
func (o *Orchestrator) handleQuery(ctx context.Context, chatID, userID string, query actor.Query) error {
	directory := o.resolveDirectory(userID)

	rend, err := renderer.New(ctx, o.platform, chatID, o.rendererOptions()...)
	if err != nil {
		o.logger.Warn("orchestrator: renderer start failed", "user_id", userID, "error", err)
		return err
	}
	callback := func(ev streamevent.StreamEvent) { rend.Update(ctx, ev) }

	a, err := o.manager.GetOrConnect(ctx, clientmanager.GetOrConnectParams{
		UserID:            userID,
		Directory:         directory,
		ApprovedDirectory: o.approvedRootFor(directory),
	})
	if err != nil {
		rend.Finalize(ctx)
		o.notify(ctx, chatID, fmt.Sprintf("Couldn't start an agent session: %v", err))
		return err
	}

	result, err := a.Submit(ctx, query, callback)
	rend.Finalize(ctx)
	if err != nil {
		o.notify(ctx, chatID, fmt.Sprintf("Query failed: %v", err))
		return err
	}

	if result.SessionID != "" {
		o.manager.UpdateSessionId(userID, result.SessionID)
	}

	if _, err := o.platform.SendMessage(ctx, chatID, result.ResponseText, nil); err != nil {
		o.logger.Warn("orchestrator: final message send failed, swallowing", "user_id", userID, "error", err)
	}
	return nil
}

func (o *Orchestrator) rendererOptions() []renderer.Option {
	var opts []renderer.Option
	if o.editInterval > 0 {
		opts = append(opts, renderer.WithEditInterval(o.editInterval))
	}
	if o.maxMsgLength > 0 {
		opts = append(opts, renderer.WithMaxMessageLength(o.maxMsgLength))
	}
	opts = append(opts, renderer.WithLogger(o.logger))
	return opts
}

// resolveDirectory implements spec §4.9 step 1: per-user remembered
// directory, falling back to the first approved root.
func (o *Orchestrator) resolveDirectory(userID string) string {
	if o.repo != nil {
		if dir, err := o.repo.GetCurrentDirectory(userID); err == nil && dir != "" {
			return dir
		}
	}
	if len(o.approvedDirs) > 0 {
		return o.approvedDirs[0]
	}
	return ""
}

// approvedRootFor returns the approved root containing directory, or
// the first configured root if none matches exactly.
func (o *Orchestrator) approvedRootFor(directory string) string {
	for _, root := range o.approvedDirs {
		if withinRoot(root, directory) {
			return root
		}
	}
	if len(o.approvedDirs) > 0 {
		return o.approvedDirs[0]
	}
	return directory
}

func withinRoot(root, candidate string) bool {
	root = filepath.Clean(root)
	candidate = filepath.Clean(candidate)
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

// notify posts a short, best-effort error message — chat-platform
// transport failures are swallowed per spec §7.
func (o *Orchestrator) notify(ctx context.Context, chatID, text string) {
	if _, err := o.platform.SendMessage(ctx, chatID, text, nil); err != nil {
		o.logger.Warn("orchestrator: notify send failed, swallowing", "chat_id", chatID, "error", err)
	}
}

var _ webhook.Handler = (*Orchestrator)(nil)
