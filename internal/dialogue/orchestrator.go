package dialogue

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kalambet/booktalk/internal/metrics"
)

const logPromptPrefix = 100

// Orchestrator turns a book id and a conversation history into one grounded
// assistant reply. It keeps no state between calls and never retries.
type Orchestrator struct {
	books   BookFinder
	backend Backend
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an Orchestrator. m may be nil to disable metrics.
func New(books BookFinder, backend Backend, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		books:   books,
		backend: backend,
		metrics: m,
		logger:  slog.Default(),
	}
}

// Respond produces the next assistant message for req. Errors are one of
// *ValidationError, *NotFoundError or *BackendError.
func (o *Orchestrator) Respond(ctx context.Context, req TurnRequest) (Message, error) {
	start := time.Now()
	log := o.logger.With("turn_id", uuid.NewString(), "unique_id", req.UniqueID)

	msg, err := o.respond(ctx, req, log)
	elapsed := time.Since(start)
	o.metrics.ObserveTurn(outcome(err), elapsed)

	if err != nil {
		log.Warn("chat turn failed", "error", err, "duration_ms", elapsed.Milliseconds())
		return Message{}, err
	}
	log.Info("chat turn completed",
		"history_len", len(req.Messages),
		"reply_len", len(msg.Content),
		"duration_ms", elapsed.Milliseconds(),
	)
	return msg, nil
}

func (o *Orchestrator) respond(ctx context.Context, req TurnRequest, log *slog.Logger) (Message, error) {
	if err := Validate(req); err != nil {
		return Message{}, err
	}

	book, ok := o.books.FindByID(req.UniqueID)
	if !ok {
		return Message{}, &NotFoundError{ID: req.UniqueID}
	}
	if !book.Chattable() {
		return Message{}, &ValidationError{Field: "unique_id", Reason: "refers to a book with no content to discuss"}
	}

	system := SystemPrompt(book)
	log.Debug("calling completion backend",
		"system_prefix", truncate(system, logPromptPrefix),
		"history_len", len(req.Messages),
	)

	reply, err := o.backend.Complete(ctx, system, slices.Clone(req.Messages))
	if err != nil {
		return Message{}, &BackendError{Err: err}
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return Message{}, &BackendError{Err: ErrEmptyReply}
	}

	return Message{Role: RoleAssistant, Content: reply}, nil
}

func outcome(err error) string {
	var (
		ve *ValidationError
		nf *NotFoundError
	)
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.As(err, &ve):
		return metrics.OutcomeInvalid
	case errors.As(err, &nf):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeBackendError
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
