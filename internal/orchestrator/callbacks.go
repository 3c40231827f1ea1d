package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lijiaxing1997/agentbridge/internal/actor"
	"github.com/lijiaxing1997/agentbridge/internal/chatplatform"
	"github.com/lijiaxing1997/agentbridge/internal/skillpicker"
	"github.com/lijiaxing1997/agentbridge/internal/webhook"
)

// oneMillionContextBeta is the SDK beta flag a "model:<name>:1m"
// callback opts into.
const oneMillionContextBeta = "context-1m-2025-08-07"

// browseState is the per-user chat-session storage spec.md §4.9
// requires for the directory-browse and session-pick callbacks: the
// approved root the user is browsing under, and the subpath navigated
// to so far.
type browseState struct {
	root    string
	subPath string
}

// HandleCallback implements webhook.Handler. Every payload kind edits
// the originating chat message in place, per spec.md §4.9.
func (o *Orchestrator) HandleCallback(r *http.Request, cb webhook.InboundCallback) error {
	ctx := r.Context()
	kind, arg, ok := splitPayload(cb.Payload)
	if !ok {
		o.answer(ctx, cb.CallbackID, "")
		return nil
	}

	switch kind {
	case "nav":
		return o.handleNav(ctx, cb, arg)
	case "sel":
		return o.handleSelect(ctx, cb, arg)
	case "session":
		return o.handleSessionPick(ctx, cb, arg)
	case "skill":
		return o.handleSkillPick(ctx, cb, arg)
	case "model":
		return o.handleModelPick(ctx, cb, arg)
	default:
		o.answer(ctx, cb.CallbackID, "unrecognized action")
		return nil
	}
}

func splitPayload(payload string) (kind, arg string, ok bool) {
	idx := strings.IndexByte(payload, ':')
	if idx < 0 {
		return "", "", false
	}
	return payload[:idx], payload[idx+1:], true
}

func (o *Orchestrator) answer(ctx context.Context, callbackID, toast string) {
	if err := o.platform.AnswerCallback(ctx, callbackID, toast); err != nil {
		o.logger.Warn("orchestrator: answer callback failed, swallowing", "error", err)
	}
}

func (o *Orchestrator) getBrowse(userID string) *browseState {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.browse[userID]
	if !ok {
		st = &browseState{root: o.approvedRootFor(o.resolveDirectory(userID))}
		o.browse[userID] = st
	}
	return st
}

// handleNav implements the `nav:<rel-path>` callback: step into (or
// out of, via "..") a subdirectory and re-render the picker keyboard.
func (o *Orchestrator) handleNav(ctx context.Context, cb webhook.InboundCallback, arg string) error {
	st := o.getBrowse(cb.UserID)

	o.mu.Lock()
	switch arg {
	case "..":
		st.subPath = filepath.Dir(st.subPath)
		if st.subPath == "." {
			st.subPath = ""
		}
	default:
		st.subPath = filepath.Join(st.subPath, arg)
	}
	o.mu.Unlock()

	return o.renderBrowser(ctx, cb, st)
}

// handleSelect implements the `sel:<rel-path>` callback: persist the
// chosen directory as the user's current directory.
func (o *Orchestrator) handleSelect(ctx context.Context, cb webhook.InboundCallback, arg string) error {
	st := o.getBrowse(cb.UserID)
	o.mu.Lock()
	if arg != "" {
		st.subPath = arg
	}
	dir := filepath.Join(st.root, st.subPath)
	o.mu.Unlock()

	if o.repo != nil {
		if err := o.repo.SetCurrentDirectory(cb.UserID, dir); err != nil {
			o.logger.Warn("orchestrator: set current directory failed", "user_id", cb.UserID, "error", err)
		}
	}

	o.answer(ctx, cb.CallbackID, "Directory set.")
	o.editCallbackMessage(ctx, cb, fmt.Sprintf("Working directory set to `%s`.", dir), nil)
	return nil
}

// renderBrowser lists subdirectories of root/subPath and edits the
// originating message with a fresh nav/sel inline keyboard.
func (o *Orchestrator) renderBrowser(ctx context.Context, cb webhook.InboundCallback, st *browseState) error {
	o.mu.Lock()
	root, subPath := st.root, st.subPath
	o.mu.Unlock()

	dir := filepath.Join(root, subPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		o.answer(ctx, cb.CallbackID, "")
		o.editCallbackMessage(ctx, cb, fmt.Sprintf("Couldn't list %q: %v", dir, err), nil)
		return nil
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var rows [][]chatplatform.InlineButton
	if subPath != "" {
		rows = append(rows, []chatplatform.InlineButton{{Label: ".. (up)", Payload: "nav:.."}})
	}
	for _, name := range names {
		rel := filepath.Join(subPath, name)
		rows = append(rows, []chatplatform.InlineButton{{Label: name, Payload: "nav:" + rel}})
	}
	rows = append(rows, []chatplatform.InlineButton{{Label: "Select this directory", Payload: "sel:" + subPath}})

	o.answer(ctx, cb.CallbackID, "")
	o.editCallbackMessage(ctx, cb, fmt.Sprintf("Browsing `%s`", dir), chatplatform.InlineKeyboard(rows))
	return nil
}

// handleSessionPick implements `session:<id|__new__>`.
func (o *Orchestrator) handleSessionPick(ctx context.Context, cb webhook.InboundCallback, arg string) error {
	directory := o.resolveDirectory(cb.UserID)
	sessionID := arg
	if arg == "__new__" {
		sessionID = ""
	}

	if _, err := o.manager.SwitchSession(ctx, cb.UserID, sessionID, directory); err != nil {
		o.answer(ctx, cb.CallbackID, "")
		o.editCallbackMessage(ctx, cb, fmt.Sprintf("Couldn't switch session: %v", err), nil)
		return err
	}

	label := "a new session"
	if sessionID != "" {
		label = "session " + sessionID
	}
	o.answer(ctx, cb.CallbackID, "Session switched.")
	o.editCallbackMessage(ctx, cb, fmt.Sprintf("Switched to %s in `%s`.", label, directory), nil)
	return nil
}

// handleSkillPick implements `skill:<name>`: `/<name>` for the chosen
// skill is sent back as the next query text, per SPEC_FULL §4.9 — the
// CLI subprocess expands it, not this repository.
func (o *Orchestrator) handleSkillPick(ctx context.Context, cb webhook.InboundCallback, arg string) error {
	summary, err := skillpicker.ByName(o.skillsDir, arg)
	if err != nil {
		o.answer(ctx, cb.CallbackID, "skill not found")
		return nil
	}

	o.answer(ctx, cb.CallbackID, "Running "+summary.Name)
	o.editCallbackMessage(ctx, cb, fmt.Sprintf("Running skill `%s`…", summary.Name), nil)

	return o.handleQuery(ctx, cb.ChatID, cb.UserID, actor.Query{Text: "/" + summary.Name})
}

// handleModelPick implements `model:<name>[:1m]`.
func (o *Orchestrator) handleModelPick(ctx context.Context, cb webhook.InboundCallback, arg string) error {
	parts := strings.SplitN(arg, ":", 2)
	model := parts[0]
	var betas []string
	if len(parts) == 2 && parts[1] == "1m" {
		betas = []string{oneMillionContextBeta}
	}

	if err := o.manager.SetModel(cb.UserID, model, betas); err != nil {
		o.answer(ctx, cb.CallbackID, "")
		o.editCallbackMessage(ctx, cb, fmt.Sprintf("Couldn't set model: %v", err), nil)
		return err
	}

	o.answer(ctx, cb.CallbackID, "Model set.")
	o.editCallbackMessage(ctx, cb, fmt.Sprintf("Model set to `%s` (applies on next reconnect).", model), nil)
	return nil
}

func (o *Orchestrator) editCallbackMessage(ctx context.Context, cb webhook.InboundCallback, text string, keyboard chatplatform.InlineKeyboard) {
	handle := chatplatform.MessageHandle{ChatID: cb.ChatID, MessageID: cb.MessageID}
	if err := o.platform.EditMessage(ctx, handle, text, keyboard); err != nil {
		o.logger.Warn("orchestrator: edit callback message failed, swallowing", "error", err)
	}
}
