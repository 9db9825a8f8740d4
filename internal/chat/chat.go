// Package chat runs conversation turns: assemble context, stream the
// model's answer, persist the completed exchange.
//
// Each turn moves through a fixed lifecycle (idle, context building, model
// streaming, complete or failed). Context assembly always finishes before
// the model call starts, and an exchange is persisted only after the full
// answer arrived, so cancellation mid-stream never leaves partial history.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/creatorlens/creatorlens/internal/assembler"
	"github.com/creatorlens/creatorlens/internal/session"
)

const (
	// maxHistoryMessageChars caps each history message sent to the model.
	// Full content stays in the database; only the model sees the cut.
	maxHistoryMessageChars = 3000

	// maxUserMessageChars caps the current user message sent to the model.
	maxUserMessageChars = 12_000

	// fallbackResponse is returned when the model produces empty output.
	fallbackResponse = "I couldn't generate a response. Please try rephrasing your question."

	truncationMarker = "\n[...truncated]"
)

// ErrTurnFailed is the user-facing failure for a chat turn. The internal
// cause is logged, never shown; callers present this as a retry hint.
var ErrTurnFailed = errors.New("the assistant could not complete this turn, please try again")

// StreamCallback receives each chunk of the model's answer as it arrives.
// Returning an error aborts the stream.
type StreamCallback func(ctx context.Context, chunk *ai.ModelResponseChunk) error

// ContextBuilder assembles the prompt context for a turn.
type ContextBuilder interface {
	Build(ctx context.Context, creatorID int64, query string) (*assembler.Context, error)
}

// SessionStore is the subset of the session store the agent needs.
type SessionStore interface {
	Get(ctx context.Context, id uuid.UUID) (*session.Session, error)
	History(ctx context.Context, sessionID uuid.UUID, limit int) ([]session.Message, error)
	AppendExchange(ctx context.Context, sessionID uuid.UUID, userContent, assistantContent string) error
}

// Response is the completed result of one turn.
type Response struct {
	// Text is the model's full answer.
	Text string

	// ItemIDs are the content items whose transcripts backed the answer.
	ItemIDs []int64

	// SemanticDegraded reports that retrieval ran keyword-only.
	SemanticDegraded bool

	// State is the turn's final state (complete on success).
	State State
}

// Config contains all required parameters for the chat agent.
type Config struct {
	Genkit    *genkit.Genkit
	Assembler ContextBuilder
	Sessions  SessionStore
	Logger    *slog.Logger

	// ModelName is the provider-qualified model, e.g. "googleai/gemini-2.5-flash".
	ModelName string

	// HistoryLimit is how many past messages each turn replays.
	HistoryLimit int

	// RetryConfig tunes model-call retries (zero value uses defaults).
	RetryConfig RetryConfig

	// RateLimiter optionally throttles model calls (nil = default).
	RateLimiter *rate.Limiter
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Assembler == nil {
		return errors.New("assembler is required")
	}
	if cfg.Sessions == nil {
		return errors.New("session store is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	return nil
}

// Agent runs conversation turns. It is stateless across turns; all
// configuration is captured immutably at construction, so concurrent
// turns for different sessions never contend here.
type Agent struct {
	g            *genkit.Genkit
	assembler    ContextBuilder
	sessions     SessionStore
	logger       *slog.Logger
	modelName    string
	historyLimit int
	retryConfig  RetryConfig
	rateLimiter  *rate.Limiter
}

// New creates an Agent from cfg.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 20
	}
	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}
	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	return &Agent{
		g:            cfg.Genkit,
		assembler:    cfg.Assembler,
		sessions:     cfg.Sessions,
		logger:       logger,
		modelName:    cfg.ModelName,
		historyLimit: historyLimit,
		retryConfig:  retryConfig,
		rateLimiter:  rl,
	}, nil
}

// Execute runs one turn without streaming.
func (a *Agent) Execute(ctx context.Context, sessionID uuid.UUID, message string) (*Response, error) {
	return a.ExecuteStream(ctx, sessionID, message, nil)
}

// ExecuteStream runs one turn, forwarding model output through callback as
// it arrives (callback may be nil for non-streaming use). The completed
// exchange is appended to history only after the full answer arrived;
// cancellation or failure mid-stream persists nothing.
func (a *Agent) ExecuteStream(ctx context.Context, sessionID uuid.UUID, message string, callback StreamCallback) (*Response, error) {
	t := &turn{}

	t.advance(StateContextBuilding)
	sess, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, a.fail(t, sessionID, "loading session", err)
	}
	history, err := a.sessions.History(ctx, sessionID, a.historyLimit)
	if err != nil {
		return nil, a.fail(t, sessionID, "loading history", err)
	}

	// Context is assembled fully before any model call; the model never
	// starts generating against a partial context.
	assembled, err := a.assembler.Build(ctx, sess.CreatorID, message)
	if err != nil {
		return nil, a.fail(t, sessionID, "assembling context", err)
	}

	t.advance(StateModelStreaming)
	messages := historyMessages(history)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(truncateMarked(message, maxUserMessageChars))))

	var chunksSent bool
	opts := []ai.GenerateOption{
		ai.WithModelName(a.modelName),
		ai.WithSystem(assembled.Text),
		ai.WithMessages(messages...),
	}
	if callback != nil {
		opts = append(opts, ai.WithStreaming(func(cbCtx context.Context, chunk *ai.ModelResponseChunk) error {
			// Stop forwarding the moment the caller is gone.
			if err := cbCtx.Err(); err != nil {
				return err
			}
			chunksSent = true
			return callback(cbCtx, chunk)
		}))
	}

	resp, err := a.generateWithRetry(ctx, opts, &chunksSent)
	if err != nil {
		return nil, a.fail(t, sessionID, "calling model", err)
	}

	responseText := resp.Text()
	if strings.TrimSpace(responseText) == "" {
		a.logger.Warn("model returned empty response", "session_id", sessionID)
		responseText = fallbackResponse
	}

	// Commit point: the full answer arrived, record the exchange.
	if err := a.sessions.AppendExchange(ctx, sessionID, message, responseText); err != nil {
		return nil, a.fail(t, sessionID, "persisting exchange", err)
	}

	t.advance(StateComplete)
	a.logger.Info("turn complete",
		"session_id", sessionID,
		"creator_id", sess.CreatorID,
		"answer_chars", len(responseText),
		"retrieved_items", len(assembled.ItemIDs),
		"semantic_degraded", assembled.SemanticDegraded)

	return &Response{
		Text:             responseText,
		ItemIDs:          assembled.ItemIDs,
		SemanticDegraded: assembled.SemanticDegraded,
		State:            t.state,
	}, nil
}

// fail records the internal cause and returns the generic user-facing
// error. Unknown sessions keep their specific error so callers can react.
func (a *Agent) fail(t *turn, sessionID uuid.UUID, stage string, cause error) error {
	t.advance(StateFailed)
	a.logger.Error("turn failed",
		"session_id", sessionID,
		"stage", stage,
		"error", cause)
	if errors.Is(cause, session.ErrNotFound) {
		return cause
	}
	return fmt.Errorf("%w", ErrTurnFailed)
}

// historyMessages converts stored history to model messages, capping each
// message so one giant paste cannot crowd out the context.
func historyMessages(history []session.Message) []*ai.Message {
	messages := make([]*ai.Message, 0, len(history)+1)
	for _, m := range history {
		content := truncateMarked(m.Content, maxHistoryMessageChars)
		if m.Role == session.RoleAssistant {
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(content)))
		} else {
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(content)))
		}
	}
	return messages
}

func truncateMarked(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + truncationMarker
}
