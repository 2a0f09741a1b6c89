package identity

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

type ResendVerificationMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Email of the account to re-send the verification link to."`
	OnResponse func(resp *ResendVerificationResponse)
}

func (e ResendVerificationMessage) Type() string { return "user.verification.resend" }

// ResendVerificationResponse reports what happened to a resend request. HTTP
// layers that care about enumeration should answer uniformly regardless of
// Found; the flags exist for hosts that own the email list anyway.
type ResendVerificationResponse struct {
	Found   bool `json:"found" example:"true" doc:"An account exists for the email."`
	Already bool `json:"already" example:"false" doc:"The account was verified before this request."`
	Sent    bool `json:"sent" example:"true" doc:"A verification email went out."`
}

// ResendVerificationHandler re-sends the verification link for an unverified
// account. The original token is reused, never rotated, so links from earlier
// emails stay valid.
type ResendVerificationHandler struct {
	repo           RepositoryManager
	mailer         Mailer
	logger         Logger
	loggerProvider LoggerProvider
	activitySink   ActivitySink
	baseURL        string
}

func NewResendVerificationHandler(repo RepositoryManager) *ResendVerificationHandler {
	loggerProvider, logger := ResolveLogger("identity.verify", nil, nil)
	return &ResendVerificationHandler{
		repo:           repo,
		mailer:         NewConsoleMailer(),
		logger:         logger,
		loggerProvider: loggerProvider,
		activitySink:   noopActivitySink{},
	}
}

func (h *ResendVerificationHandler) WithMailer(mailer Mailer) *ResendVerificationHandler {
	if mailer != nil {
		h.mailer = mailer
	}
	return h
}

func (h *ResendVerificationHandler) WithLogger(logger Logger) *ResendVerificationHandler {
	h.loggerProvider, h.logger = ResolveLogger("identity.verify", h.loggerProvider, logger)
	return h
}

// WithLoggerProvider overrides the logger provider used by the handler.
func (h *ResendVerificationHandler) WithLoggerProvider(provider LoggerProvider) *ResendVerificationHandler {
	h.loggerProvider, h.logger = ResolveLogger("identity.verify", provider, h.logger)
	return h
}

func (h *ResendVerificationHandler) WithActivitySink(sink ActivitySink) *ResendVerificationHandler {
	h.activitySink = normalizeActivitySink(sink)
	return h
}

// WithBaseURL sets the absolute prefix for verification links. Without it the
// email carries a relative /verify/{token} path.
func (h *ResendVerificationHandler) WithBaseURL(baseURL string) *ResendVerificationHandler {
	h.baseURL = baseURL
	return h
}

func (h *ResendVerificationHandler) Execute(ctx context.Context, event ResendVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification resend",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResendVerificationHandler) execute(ctx context.Context, event ResendVerificationMessage) error {
	resp := &ResendVerificationResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := strings.TrimSpace(event.Email)
	if !isEmail(email) {
		return goerrors.New("a valid email is required to resend verification", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"email": event.Email})
	}

	user, err := h.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		// An unknown email is an expected outcome, not an application error.
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			if event.OnResponse != nil {
				event.OnResponse(resp)
			}
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for verification resend")
	}

	resp.Found = true

	if user.Verified {
		resp.Already = true
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
		return nil
	}

	subject, body := NewVerificationEmail(h.baseURL, user)
	if err := h.mailer.Send(ctx, user.Email, subject, body); err != nil {
		h.logger.Error("verification email delivery failed", "email", user.Email, "error", err)

		mailErr := ErrMailDelivery.Clone()
		mailErr.Source = err
		return mailErr.WithMetadata(map[string]any{
			"email": user.Email,
		})
	}

	resp.Sent = true
	h.emitEvent(ctx, user)

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *ResendVerificationHandler) emitEvent(ctx context.Context, user *User) {
	sink := normalizeActivitySink(h.activitySink)

	event := ActivityEvent{
		EventType:  ActivityEventVerifyResend,
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
