package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// Logger is the structured logging contract shared by every component in the
// package. It is the go-logger surface, so any glog logger satisfies it.
type Logger = glog.Logger

// LoggerProvider resolves named loggers so each component logs under its own
// scope.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// LegacyLogger is the printf style contract older applications pass in.
type LegacyLogger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// FormattedLogger matches loggers that expose printf style methods with an f
// suffix, like sugared zap or logrus loggers.
type FormattedLogger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

func defaultLogger() Logger {
	return glog.NewLogger(
		glog.WithName("identity"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
}

// ResolveLogger picks the logger a component should use: a named logger from
// the provider when available, the explicit logger otherwise, the package
// default as a last resort. The returned provider keeps resolving names with
// the same fallback.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	resolved := logger

	if provider != nil {
		if candidate := provider.GetLogger(name); candidate != nil {
			resolved = candidate
		}
	}

	if resolved == nil {
		resolved = defaultLogger()
	}

	return fallbackLoggerProvider{provider: provider, fallback: resolved}, resolved
}

type fallbackLoggerProvider struct {
	provider LoggerProvider
	fallback Logger
}

func (p fallbackLoggerProvider) GetLogger(name string) Logger {
	if p.provider == nil {
		return nil
	}
	if logger := p.provider.GetLogger(name); logger != nil {
		return logger
	}
	return p.fallback
}

// FromLegacyLogger adapts a printf style logger to the structured contract.
func FromLegacyLogger(legacy LegacyLogger) Logger {
	if legacy == nil {
		return noopLogger{}
	}
	return legacyLoggerAdapter{legacy: legacy}
}

type legacyLoggerAdapter struct {
	legacy LegacyLogger
}

func (l legacyLoggerAdapter) Trace(message string, args ...any)  { l.legacy.Debug(message, args...) }
func (l legacyLoggerAdapter) Debug(message string, args ...any)  { l.legacy.Debug(message, args...) }
func (l legacyLoggerAdapter) Info(message string, args ...any)   { l.legacy.Info(message, args...) }
func (l legacyLoggerAdapter) Warn(message string, args ...any)   { l.legacy.Warn(message, args...) }
func (l legacyLoggerAdapter) Error(message string, args ...any)  { l.legacy.Error(message, args...) }
func (l legacyLoggerAdapter) Fatal(message string, args ...any)  { l.legacy.Error(message, args...) }
func (l legacyLoggerAdapter) WithContext(context.Context) Logger { return l }

// FromFormattedLogger adapts an f suffixed printf logger to the structured
// contract.
func FromFormattedLogger(formatted FormattedLogger) Logger {
	if formatted == nil {
		return noopLogger{}
	}
	return formattedLoggerAdapter{formatted: formatted}
}

type formattedLoggerAdapter struct {
	formatted FormattedLogger
}

func (l formattedLoggerAdapter) Trace(message string, args ...any) {
	l.formatted.Debugf(message, args...)
}

func (l formattedLoggerAdapter) Debug(message string, args ...any) {
	l.formatted.Debugf(message, args...)
}

func (l formattedLoggerAdapter) Info(message string, args ...any) {
	l.formatted.Infof(message, args...)
}

func (l formattedLoggerAdapter) Warn(message string, args ...any) {
	l.formatted.Warnf(message, args...)
}

func (l formattedLoggerAdapter) Error(message string, args ...any) {
	l.formatted.Errorf(message, args...)
}

func (l formattedLoggerAdapter) Fatal(message string, args ...any) {
	l.formatted.Errorf(message, args...)
}

func (l formattedLoggerAdapter) WithContext(context.Context) Logger { return l }

// ToFormattedLogger exposes a structured logger through printf style methods.
func ToFormattedLogger(logger Logger) FormattedLogger {
	if logger == nil {
		logger = defaultLogger()
	}
	return formattedFacade{logger: logger}
}

type formattedFacade struct {
	logger Logger
}

func (f formattedFacade) Debugf(format string, args ...any) {
	f.logger.Debug(fmt.Sprintf(format, args...))
}

func (f formattedFacade) Infof(format string, args ...any) {
	f.logger.Info(fmt.Sprintf(format, args...))
}

func (f formattedFacade) Warnf(format string, args ...any) {
	f.logger.Warn(fmt.Sprintf(format, args...))
}

func (f formattedFacade) Errorf(format string, args ...any) {
	f.logger.Error(fmt.Sprintf(format, args...))
}

type noopLogger struct{}

func (noopLogger) Trace(string, ...any)               {}
func (noopLogger) Debug(string, ...any)               {}
func (noopLogger) Info(string, ...any)                {}
func (noopLogger) Warn(string, ...any)                {}
func (noopLogger) Error(string, ...any)               {}
func (noopLogger) Fatal(string, ...any)               {}
func (noopLogger) WithContext(context.Context) Logger { return noopLogger{} }

// Session holds attributes that are part of an auth session
type Session interface {
	GetUserID() string
	GetUserUUID() (uuid.UUID, error)
	GetAudience() []string
	GetIssuer() string
	GetIssuedAt() *time.Time
	GetData() map[string]any
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (string, error)
	SessionFromToken(token string) (Session, error)
	IdentityFromSession(ctx context.Context, session Session) (Identity, error)
	TokenService() TokenService
}

type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
	GetExtendedSession() bool
}

type HTTPAuthenticator interface {
	Middleware
	Login(c router.Context, payload LoginPayload) error
	Logout(c router.Context)
	SetRedirect(c router.Context)
	GetRedirect(c router.Context, def ...string) string
	GetRedirectOrDefault(c router.Context) string
	MakeClientRouteAuthErrorHandler(optionalAuth bool) func(c router.Context, err error) error
}

// Identity holds the attributes of an identity
type Identity interface {
	ID() string
	Email() string
	FirstName() string
	LastName() string
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetContextKey() string
	GetTokenExpiration() int
	GetExtendedTokenDuration() int
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
	GetRejectedRouteKey() string
	GetRejectedRouteDefault() string
}

// IdentityProvider ensure we have a store to retrieve auth identity
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error)
	FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}
