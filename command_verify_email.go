package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type VerifyEmailMessage struct {
	Token      string `json:"token" example:"350399bc-c095-4bdc-a59c-3352d44848e4" doc:"Email verification token."`
	OnResponse func(result *VerificationResult)
}

func (e VerifyEmailMessage) Type() string { return "user.verify" }

// VerificationResult reports the outcome of a token redemption. Already is
// true when the account had been verified before this call.
type VerificationResult struct {
	User    *User
	Already bool
}

// VerifyEmailHandler redeems a verification token. Redemption is idempotent:
// the token is never consumed, a replayed link succeeds without changing the
// record again.
type VerifyEmailHandler struct {
	repo           RepositoryManager
	logger         Logger
	loggerProvider LoggerProvider
	activitySink   ActivitySink
}

func NewVerifyEmailHandler(repo RepositoryManager) *VerifyEmailHandler {
	loggerProvider, logger := ResolveLogger("identity.verify", nil, nil)
	return &VerifyEmailHandler{
		repo:           repo,
		logger:         logger,
		loggerProvider: loggerProvider,
		activitySink:   noopActivitySink{},
	}
}

func (h *VerifyEmailHandler) WithLogger(logger Logger) *VerifyEmailHandler {
	h.loggerProvider, h.logger = ResolveLogger("identity.verify", h.loggerProvider, logger)
	return h
}

// WithLoggerProvider overrides the logger provider used by the handler.
func (h *VerifyEmailHandler) WithLoggerProvider(provider LoggerProvider) *VerifyEmailHandler {
	h.loggerProvider, h.logger = ResolveLogger("identity.verify", provider, h.logger)
	return h
}

func (h *VerifyEmailHandler) WithActivitySink(sink ActivitySink) *VerifyEmailHandler {
	h.activitySink = normalizeActivitySink(sink)
	return h
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	result := &VerificationResult{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	token, err := uuid.Parse(event.Token)
	if err != nil {
		// An unparseable token cannot belong to any account, report it the
		// same as an unknown one.
		return ErrVerificationTokenNotFound
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByVerificationTokenTx(ctx, tx, token)
		if err != nil {
			if goerrors.IsNotFound(err) {
				return ErrVerificationTokenNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for verification")
		}

		if user.Verified {
			result.User = user
			result.Already = true
			return nil
		}

		verified, err := h.repo.Users().MarkVerifiedTx(ctx, tx, token)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark account verified")
		}

		result.User = verified
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to execute email verification")
	}

	eventType := ActivityEventVerifySuccess
	if result.Already {
		eventType = ActivityEventVerifyReplay
	}
	h.emitEvent(ctx, eventType, result.User)

	if event.OnResponse != nil {
		event.OnResponse(result)
	}

	return nil
}

func (h *VerifyEmailHandler) emitEvent(ctx context.Context, eventType ActivityEventType, user *User) {
	sink := normalizeActivitySink(h.activitySink)

	event := ActivityEvent{
		EventType:  eventType,
		Metadata:   map[string]any{},
		OccurredAt: time.Now(),
	}

	if user != nil {
		event.UserID = user.ID.String()
		event.Email = user.Email
	}

	if err := sink.Record(ctx, event); err != nil {
		h.logger.Warn("activity sink record error", "error", err)
	}
}
