package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"claimscan/internal/attempts"
	"claimscan/internal/itemservice"
	"claimscan/internal/logging"
	"claimscan/internal/services"
)

// TokenSource supplies the session token of the signed-in user. An empty
// token means no authenticated session exists.
type TokenSource interface {
	SessionToken() string
}

// StaticToken is a TokenSource around a fixed token, typically from config.
type StaticToken string

func (t StaticToken) SessionToken() string { return string(t) }

// Recorder persists attempt lifecycle events. *attempts.Store satisfies it.
type Recorder interface {
	Add(ctx context.Context, itemID, mode string, source attempts.Source) (*attempts.Attempt, error)
	Resolve(ctx context.Context, id string, status attempts.Status, message string) error
}

// Dispatcher sends resolved item identifiers to the item service.
type Dispatcher struct {
	logger   *slog.Logger
	service  itemservice.Service
	recorder Recorder
	tokens   TokenSource
}

func New(service itemservice.Service, recorder Recorder, tokens TokenSource, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		logger:   logging.NewComponentLogger(logger, "dispatcher"),
		service:  service,
		recorder: recorder,
		tokens:   tokens,
	}
}

// Dispatch calls the item service once for the given mode. The returned
// attempt is always terminal; err carries the failure classification when the
// attempt failed, nil on success.
func (d *Dispatcher) Dispatch(ctx context.Context, itemID string, mode Mode, source attempts.Source) (*attempts.Attempt, error) {
	token := ""
	if d.tokens != nil {
		token = strings.TrimSpace(d.tokens.SessionToken())
	}
	if token == "" {
		err := services.Wrap(services.ErrUnauthenticated, "dispatcher", "dispatch", "no session token", nil)
		attempt := d.record(ctx, itemID, mode, source)
		d.resolve(ctx, attempt, attempts.StatusFailed, "authentication required")
		return attempt, err
	}

	attempt := d.record(ctx, itemID, mode, source)
	ctx = services.WithAttemptID(ctx, attempt.ID)
	logger := logging.WithContext(ctx, d.logger)

	start := time.Now()
	var (
		result itemservice.Result
		err    error
	)
	switch mode {
	case ModeCollect:
		result, err = d.service.CollectItem(ctx, token, itemID)
	default:
		result, err = d.service.CreateClaim(ctx, token, itemID)
	}

	if err != nil {
		message := failureMessage(err)
		d.resolve(ctx, attempt, attempts.StatusFailed, message)
		logger.Warn("dispatch failed",
			logging.String(logging.FieldItemID, itemID),
			logging.String(logging.FieldMode, string(mode)),
			logging.Error(err),
			logging.String(logging.FieldEventType, "dispatch_failed"),
		)
		return attempt, err
	}

	message := outcomeMessage(mode, result.Status)
	d.resolve(ctx, attempt, attempts.StatusSucceeded, message)
	logger.Info("dispatch succeeded",
		logging.String(logging.FieldItemID, itemID),
		logging.String(logging.FieldMode, string(mode)),
		logging.String("service_status", result.Status),
		logging.Duration("elapsed", time.Since(start)),
		logging.String(logging.FieldEventType, "dispatch_succeeded"),
	)
	return attempt, nil
}

func (d *Dispatcher) record(ctx context.Context, itemID string, mode Mode, source attempts.Source) *attempts.Attempt {
	if d.recorder != nil {
		attempt, err := d.recorder.Add(ctx, itemID, string(mode), source)
		if err == nil {
			return attempt
		}
		d.logger.Warn("record attempt failed", logging.Error(err))
	}
	// Persistence failure must not block the dispatch itself.
	return &attempts.Attempt{
		ItemID:    itemID,
		Mode:      string(mode),
		Source:    source,
		Status:    attempts.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

func (d *Dispatcher) resolve(ctx context.Context, attempt *attempts.Attempt, status attempts.Status, message string) {
	attempt.Status = status
	attempt.Message = message
	now := time.Now().UTC()
	attempt.ResolvedAt = &now
	if d.recorder == nil || attempt.ID == "" {
		return
	}
	if err := d.recorder.Resolve(ctx, attempt.ID, status, message); err != nil {
		d.logger.Warn("resolve attempt failed",
			logging.String(logging.FieldAttemptID, attempt.ID),
			logging.Error(err),
		)
	}
}

var claimMessages = map[string]string{
	"pending":         "Claim submitted, awaiting approval",
	"approved":        "Claim approved",
	"rejected":        "Claim rejected",
	"already_claimed": "Item already claimed",
}

var collectMessages = map[string]string{
	"collected":         "Item collected",
	"not_claimed":       "Item has not been claimed",
	"already_collected": "Item already collected",
}

// outcomeMessage maps the service's status string to the text shown to the
// operator. Unknown statuses are surfaced verbatim rather than hidden.
func outcomeMessage(mode Mode, status string) string {
	status = strings.ToLower(strings.TrimSpace(status))
	table := claimMessages
	fallback := "Claim status: "
	if mode == ModeCollect {
		table = collectMessages
		fallback = "Collect status: "
	}
	if message, ok := table[status]; ok {
		return message
	}
	if status == "" {
		return strings.TrimSuffix(fallback, ": ") + " accepted"
	}
	return fallback + status
}

func failureMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
