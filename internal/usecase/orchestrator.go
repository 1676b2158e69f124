// Package usecase coordinates the conversation: it turns finished
// recordings and typed text into persisted user/assistant turn pairs.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"tabitalk/internal/domain"
	"tabitalk/internal/ports"
)

// Config bounds the conversation context and startup history.
type Config struct {
	ContextWindow int
	HistoryLimit  int
}

// Orchestrator owns the in-memory turn list and runs the
// recognize/translate pipeline. One action is in flight at a time;
// concurrent requests are rejected, not queued. A generation counter
// guards async continuations so results of a superseded action are
// dropped instead of applied.
type Orchestrator struct {
	service  ports.TranslationService
	store    ports.ConversationStore
	settings ports.SettingsStore
	hints    ports.HintStrategy
	speech   ports.SpeechOutput
	clip     ports.Clipboard
	events   ports.EventSink
	logger   *slog.Logger
	cfg      Config

	mu    sync.Mutex
	turns []domain.Turn
	busy  bool
	gen   uint64
	edit  *editSession
}

// editSession remembers the pre-edit text so cancel can restore it
// exactly.
type editSession struct {
	id       string
	original string
}

func NewOrchestrator(
	service ports.TranslationService,
	store ports.ConversationStore,
	settings ports.SettingsStore,
	hints ports.HintStrategy,
	speech ports.SpeechOutput,
	clip ports.Clipboard,
	events ports.EventSink,
	logger *slog.Logger,
	cfg Config,
) *Orchestrator {
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = 10
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		service:  service,
		store:    store,
		settings: settings,
		hints:    hints,
		speech:   speech,
		clip:     clip,
		events:   events,
		logger:   logger,
		cfg:      cfg,
	}
}

// LoadHistory populates the turn list from the store. Called once at
// startup; a read failure leaves the conversation empty.
func (o *Orchestrator) LoadHistory(ctx context.Context) {
	turns, err := o.store.Recent(ctx, o.cfg.HistoryLimit)
	if err != nil {
		o.logger.Error("failed to load conversation history", "error", err)
		turns = nil
	}

	o.mu.Lock()
	o.turns = turns
	o.mu.Unlock()

	o.events.TurnsChanged(o.Turns())
	o.events.PipelineStateChanged(domain.PipelineIdle, domain.ReasonStartup)
}

// Turns returns a snapshot of the conversation.
func (o *Orchestrator) Turns() []domain.Turn {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.Turn(nil), o.turns...)
}

// Busy reports whether a pipeline action is in flight.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

// HandleClip receives a finished recording and runs the voice pipeline
// asynchronously. Implements ports.ClipHandler.
func (o *Orchestrator) HandleClip(ctx context.Context, clip domain.AudioClip) {
	gen, ok := o.begin()
	if !ok {
		o.events.AppError(domain.ErrorCodeBusy, domain.ErrBusy.Error())
		return
	}
	go o.runVoicePipeline(ctx, gen, clip)
}

// SendText runs the translate pipeline for typed input.
func (o *Orchestrator) SendText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	gen, ok := o.begin()
	if !ok {
		return domain.ErrBusy
	}

	userTurn := newTurn(domain.RoleUser, text)
	o.apply(gen, func() {
		o.turns = append(o.turns, userTurn)
	})
	o.events.TurnsChanged(o.Turns())

	go func() {
		persisted := o.persistTurn(ctx, gen, userTurn)
		o.runTranslation(ctx, gen, persisted)
	}()
	return nil
}

func (o *Orchestrator) runVoicePipeline(ctx context.Context, gen uint64, clip domain.AudioClip) {
	pending := newPendingTurn(domain.RoleUser)
	if !o.apply(gen, func() {
		o.turns = append(o.turns, pending)
	}) {
		return
	}
	o.events.TurnsChanged(o.Turns())
	o.events.PipelineStateChanged(domain.PipelineRecognizing, domain.ReasonRecognizing)

	hint := o.hints.Hint(o.Turns())
	language := o.settings.Get().Language

	text, err := o.service.Transcribe(ctx, clip, hint, language)
	if err != nil {
		o.failPipeline(gen, pending.ID, domain.ErrorCodeTranscription, err)
		return
	}

	userTurn := pending
	userTurn.Text = text
	userTurn.Pending = false
	if !o.apply(gen, func() {
		o.replaceTurn(userTurn)
	}) {
		return
	}
	o.events.TurnsChanged(o.Turns())

	userTurn = o.persistTurn(ctx, gen, userTurn)
	o.runTranslation(ctx, gen, userTurn)
}

// runTranslation translates a user turn, persists the pair, and speaks
// the result when auto-speak is on.
func (o *Orchestrator) runTranslation(ctx context.Context, gen uint64, userTurn domain.Turn) {
	pending := newPendingTurn(domain.RoleAssistant)
	if !o.apply(gen, func() {
		o.turns = append(o.turns, pending)
	}) {
		return
	}
	o.events.TurnsChanged(o.Turns())
	o.events.PipelineStateChanged(domain.PipelineTranslating, domain.ReasonTranslating)

	window := o.contextWindow(userTurn.ID)

	translated, err := o.service.Translate(ctx, userTurn.Text, window)
	if err != nil {
		o.failPipeline(gen, pending.ID, domain.ErrorCodeTranslation, err)
		return
	}

	assistantTurn := pending
	assistantTurn.Text = translated
	assistantTurn.Pending = false
	if !o.apply(gen, func() {
		o.replaceTurn(assistantTurn)
		o.busy = false
	}) {
		return
	}

	// The user turn is normally persisted already; this retries a
	// failed append before the assistant row so order is kept.
	o.persistTurn(ctx, gen, userTurn)
	o.persistTurn(ctx, gen, assistantTurn)

	o.events.TurnsChanged(o.Turns())
	o.events.PipelineStateChanged(domain.PipelineIdle, domain.ReasonTurnComplete)

	settings := o.settings.Get()
	if settings.AutoSpeak {
		_ = o.speech.Speak(ctx, translated, settings.Voice, settings.Speed)
	}
}

// persistTurn stores a finished turn the moment it stops being
// pending and records its row id in memory. Turns that already carry a
// row id are left alone. Storage failures are logged and swallowed so
// the conversation keeps flowing.
func (o *Orchestrator) persistTurn(ctx context.Context, gen uint64, turn domain.Turn) domain.Turn {
	if turn.Seq != 0 {
		return turn
	}
	seq, err := o.store.Append(ctx, turn)
	if err != nil {
		o.logger.Error("failed to persist turn", "role", turn.Role, "error", err)
		return turn
	}
	turn.Seq = seq
	o.apply(gen, func() {
		o.replaceTurn(turn)
	})
	return turn
}

// failPipeline removes the dangling pending turn, surfaces the error,
// and returns the pipeline to idle.
func (o *Orchestrator) failPipeline(gen uint64, pendingID string, code domain.ErrorCode, err error) {
	if !o.apply(gen, func() {
		o.removeTurn(pendingID)
		o.busy = false
	}) {
		return
	}
	o.events.TurnsChanged(o.Turns())
	o.events.AppError(code, err.Error())
	o.events.PipelineStateChanged(domain.PipelineIdle, domain.ReasonPipelineFailed)
}

// BeginEdit marks the most recent user turn editable and saves its
// text for cancel.
func (o *Orchestrator) BeginEdit() error {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return domain.ErrBusy
	}
	if o.edit != nil {
		o.mu.Unlock()
		return fmt.Errorf("%w: an edit is already open", domain.ErrBusy)
	}

	idx := o.lastUserTurnLocked()
	if idx < 0 {
		o.mu.Unlock()
		return errors.New("no user turn to edit")
	}
	o.edit = &editSession{id: o.turns[idx].ID, original: o.turns[idx].Text}
	o.turns[idx].Editing = true
	o.mu.Unlock()

	o.events.TurnsChanged(o.Turns())
	return nil
}

// CancelEdit restores the saved pre-edit text exactly.
func (o *Orchestrator) CancelEdit() {
	o.mu.Lock()
	edit := o.edit
	o.edit = nil
	if edit != nil {
		for i := range o.turns {
			if o.turns[i].ID == edit.id {
				o.turns[i].Text = edit.original
				o.turns[i].Editing = false
			}
		}
	}
	o.mu.Unlock()

	if edit != nil {
		o.events.TurnsChanged(o.Turns())
	}
}

// ConfirmEdit applies the edited text, drops the stale translation
// that followed the turn, and translates again.
func (o *Orchestrator) ConfirmEdit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ErrEmptyEditContent
	}

	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return domain.ErrBusy
	}
	edit := o.edit
	if edit == nil {
		o.mu.Unlock()
		return errors.New("no edit in progress")
	}
	o.edit = nil

	idx := -1
	for i := range o.turns {
		if o.turns[i].ID == edit.id {
			idx = i
			break
		}
	}
	if idx < 0 {
		o.mu.Unlock()
		return errors.New("edited turn no longer exists")
	}

	o.turns[idx].Text = text
	o.turns[idx].Editing = false
	userTurn := o.turns[idx]

	var staleSeq int64
	if idx+1 < len(o.turns) && o.turns[idx+1].Role == domain.RoleAssistant {
		staleSeq = o.turns[idx+1].Seq
		o.turns = append(o.turns[:idx+1], o.turns[idx+2:]...)
	}

	o.busy = true
	gen := o.gen
	o.mu.Unlock()

	if userTurn.Seq != 0 {
		if err := o.store.UpdateText(ctx, userTurn.Seq, text); err != nil {
			o.logger.Error("failed to update edited turn", "seq", userTurn.Seq, "error", err)
		}
	}
	if staleSeq != 0 {
		if err := o.store.Delete(ctx, staleSeq); err != nil {
			o.logger.Error("failed to delete stale translation", "seq", staleSeq, "error", err)
		}
	}

	o.events.TurnsChanged(o.Turns())
	go o.runTranslation(ctx, gen, userTurn)
	return nil
}

// PlayTurn speaks a stored assistant turn. Explicit playback ignores
// the auto-speak preference.
func (o *Orchestrator) PlayTurn(ctx context.Context, id string) error {
	o.mu.Lock()
	var turn *domain.Turn
	for i := range o.turns {
		if o.turns[i].ID == id {
			turn = &o.turns[i]
			break
		}
	}
	if turn == nil || turn.Pending || turn.Text == "" {
		o.mu.Unlock()
		return errors.New("turn is not playable")
	}
	text := turn.Text
	o.mu.Unlock()

	settings := o.settings.Get()
	go func() {
		_ = o.speech.Speak(ctx, text, settings.Voice, settings.Speed)
	}()
	return nil
}

// LastTranslation returns the newest non-pending assistant turn.
func (o *Orchestrator) LastTranslation() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.turns) - 1; i >= 0; i-- {
		if o.turns[i].Role == domain.RoleAssistant && !o.turns[i].Pending && o.turns[i].Text != "" {
			return o.turns[i].Text, true
		}
	}
	return "", false
}

// CopyLastTranslation puts the newest translation on the clipboard.
func (o *Orchestrator) CopyLastTranslation(ctx context.Context) error {
	text, ok := o.LastTranslation()
	if !ok {
		return errors.New("no translation to copy")
	}
	if err := o.clip.SetText(ctx, text); err != nil {
		o.events.AppError(domain.ErrorCodeClipboard, err.Error())
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}

// ClearAll wipes the conversation from memory and storage. Any
// pipeline in flight is superseded: its results will be dropped by the
// generation guard.
func (o *Orchestrator) ClearAll(ctx context.Context) {
	o.mu.Lock()
	o.gen++
	o.turns = nil
	o.busy = false
	o.edit = nil
	o.mu.Unlock()

	o.speech.Stop()
	if err := o.store.Clear(ctx); err != nil {
		o.logger.Error("failed to clear conversation store", "error", err)
	}

	o.events.TurnsChanged(o.Turns())
	o.events.PipelineStateChanged(domain.PipelineIdle, domain.ReasonHistoryCleared)
}

// begin claims the single in-flight slot and snapshots the generation.
func (o *Orchestrator) begin() (uint64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy || o.edit != nil {
		return 0, false
	}
	o.busy = true
	return o.gen, true
}

// apply runs fn under the lock unless the generation moved on.
func (o *Orchestrator) apply(gen uint64, fn func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen {
		return false
	}
	fn()
	return true
}

// contextWindow returns the most recent non-empty finished turns
// preceding the given turn, oldest first.
func (o *Orchestrator) contextWindow(beforeID string) []domain.Turn {
	o.mu.Lock()
	turns := append([]domain.Turn(nil), o.turns...)
	o.mu.Unlock()

	for i := range turns {
		if turns[i].ID == beforeID {
			turns = turns[:i]
			break
		}
	}

	eligible := lo.Filter(turns, func(turn domain.Turn, _ int) bool {
		return !turn.Pending && strings.TrimSpace(turn.Text) != ""
	})
	if len(eligible) > o.cfg.ContextWindow {
		eligible = eligible[len(eligible)-o.cfg.ContextWindow:]
	}
	return eligible
}

func (o *Orchestrator) replaceTurn(turn domain.Turn) {
	for i := range o.turns {
		if o.turns[i].ID == turn.ID {
			o.turns[i] = turn
			return
		}
	}
}

func (o *Orchestrator) removeTurn(id string) {
	for i := range o.turns {
		if o.turns[i].ID == id {
			o.turns = append(o.turns[:i], o.turns[i+1:]...)
			return
		}
	}
}

func (o *Orchestrator) lastUserTurnLocked() int {
	for i := len(o.turns) - 1; i >= 0; i-- {
		if o.turns[i].Role == domain.RoleUser && !o.turns[i].Pending {
			return i
		}
	}
	return -1
}

func newTurn(role domain.Role, text string) domain.Turn {
	return domain.Turn{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

func newPendingTurn(role domain.Role) domain.Turn {
	turn := newTurn(role, "")
	turn.Pending = true
	return turn
}
