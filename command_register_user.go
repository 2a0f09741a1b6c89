package identity

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

const defaultPhoneRegion = "US"

type RegisterUserMessage struct {
	FirstName       string   `json:"first_name" example:"Pepe" doc:"Customer first name."`
	LastName        string   `json:"last_name" example:"Rone" doc:"Customer last name."`
	Email           string   `json:"email" example:"pepe.rone@example.com" doc:"Customer email."`
	Phone           string   `json:"phone" example:"+15555555555" doc:"Customer phone number."`
	PhoneRegion     string   `json:"phone_region" example:"US" doc:"Region used to normalize national phone numbers."`
	DateOfBirth     string   `json:"date_of_birth" example:"1990-04-01" doc:"Customer date of birth."`
	Address         string   `json:"address" example:"123 Main St" doc:"Customer address."`
	TravelInterests []string `json:"travel_interests" example:"['hiking']" doc:"Customer travel interests."`
	Password        string   `json:"password" doc:"Plaintext password, hashed before it touches storage."`
	UseHashid       bool
	OnResponse      func(resp *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

type RegisterUserResponse struct {
	User *User
}

// RegisterUserHandler persists a new unverified account and sends the
// verification email after the transaction commits. A mail failure is
// reported as ErrMailDelivery but does not roll the account back; the
// verification token stays redeemable once delivery is fixed.
type RegisterUserHandler struct {
	repo           RepositoryManager
	mailer         Mailer
	logger         Logger
	loggerProvider LoggerProvider
	featureGate    gate.FeatureGate
	activitySink   ActivitySink
	baseURL        string
}

func NewRegisterUserHandler(repo RepositoryManager) *RegisterUserHandler {
	loggerProvider, logger := ResolveLogger("identity.register", nil, nil)
	return &RegisterUserHandler{
		repo:           repo,
		mailer:         NewConsoleMailer(),
		logger:         logger,
		loggerProvider: loggerProvider,
		activitySink:   noopActivitySink{},
	}
}

// WithFeatureGate makes registration conditional on the users signup flag.
func (h *RegisterUserHandler) WithFeatureGate(featureGate gate.FeatureGate) *RegisterUserHandler {
	h.featureGate = featureGate
	return h
}

func (h *RegisterUserHandler) WithMailer(mailer Mailer) *RegisterUserHandler {
	if mailer != nil {
		h.mailer = mailer
	}
	return h
}

func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	h.loggerProvider, h.logger = ResolveLogger("identity.register", h.loggerProvider, logger)
	return h
}

// WithLoggerProvider overrides the logger provider used by the handler.
func (h *RegisterUserHandler) WithLoggerProvider(provider LoggerProvider) *RegisterUserHandler {
	h.loggerProvider, h.logger = ResolveLogger("identity.register", provider, h.logger)
	return h
}

func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activitySink = normalizeActivitySink(sink)
	return h
}

// WithBaseURL sets the absolute prefix for verification links. Without it the
// email carries a relative /verify/{token} path.
func (h *RegisterUserHandler) WithBaseURL(baseURL string) *RegisterUserHandler {
	h.baseURL = baseURL
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	if h.featureGate != nil {
		if err := requireFeatureGate(ctx, h.featureGate, gate.FeatureUsersSignup, ErrSignupDisabled); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := strings.TrimSpace(event.Email)
	if !isEmail(email) {
		return goerrors.New("a valid email is required for registration", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"email": event.Email})
	}

	phone := strings.TrimSpace(event.Phone)
	if phone != "" {
		normalized, err := normalizePhone(phone, event.PhoneRegion)
		if err != nil {
			return err
		}
		phone = normalized
	}

	hash, err := HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		FirstName:       event.FirstName,
		LastName:        event.LastName,
		Email:           email,
		Phone:           phone,
		DateOfBirth:     event.DateOfBirth,
		Address:         event.Address,
		TravelInterests: event.TravelInterests,
		PasswordHash:    hash,
	}

	if event.UseHashid {
		if id, err := hashid.NewUUID(email); err == nil {
			user.ID = id
		}
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// Courtesy check so the common duplicate gets a clean answer without
		// burning an insert. The unique index is what actually guarantees it.
		if _, err := h.repo.Users().GetByEmailTx(ctx, tx, email); err == nil {
			return ErrEmailTaken
		} else if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing account")
		}

		created, err := h.repo.Users().RegisterTx(ctx, tx, user)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
		}

		user = created
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	if err := h.sendVerificationEmail(ctx, user); err != nil {
		return err
	}

	h.emitEvent(ctx, ActivityEventRegisterSuccess, user, nil)

	if event.OnResponse != nil {
		event.OnResponse(&RegisterUserResponse{User: user})
	}

	return nil
}

func (h *RegisterUserHandler) sendVerificationEmail(ctx context.Context, user *User) error {
	subject, body := NewVerificationEmail(h.baseURL, user)

	if err := h.mailer.Send(ctx, user.Email, subject, body); err != nil {
		h.logger.Error("verification email delivery failed", "email", user.Email, "error", err)
		h.emitEvent(ctx, ActivityEventRegisterMailError, user, map[string]any{
			"error": err.Error(),
		})

		mailErr := ErrMailDelivery.Clone()
		mailErr.Source = err
		return mailErr.WithMetadata(map[string]any{
			"email": user.Email,
		})
	}

	return nil
}

func (h *RegisterUserHandler) emitEvent(ctx context.Context, eventType ActivityEventType, user *User, metadata map[string]any) {
	sink := normalizeActivitySink(h.activitySink)

	event := ActivityEvent{
		EventType: eventType,
		Metadata:  metadata,
	}

	if user != nil {
		event.UserID = user.ID.String()
		event.Email = user.Email
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	event.OccurredAt = time.Now()

	if err := sink.Record(ctx, event); err != nil {
		h.logger.Warn("activity sink record error", "error", err)
	}
}

func normalizePhone(raw, region string) (string, error) {
	if region == "" {
		region = defaultPhoneRegion
	}

	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryValidation, "could not parse phone number").
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"phone": raw})
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", goerrors.New("invalid phone number", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"phone": raw})
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}
