package identity_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

const usersMigrationFile = "data/sql/migrations/20241118093000_create_users.up.sql"

func newTestRepoManager(t *testing.T) identity.RepositoryManager {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	ddl, err := identity.GetMigrationsFS().ReadFile(usersMigrationFile)
	require.NoError(t, err)

	for _, stmt := range strings.Split(string(ddl), "--bun:split") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		_, err = db.Exec(stmt)
		require.NoError(t, err)
	}

	t.Cleanup(func() {
		_ = db.Close()
		_ = sqldb.Close()
	})

	return identity.NewRepositoryManager(db)
}

type recordingMailer struct {
	to       []string
	subjects []string
	bodies   []string
	err      error
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.to = append(m.to, to)
	m.subjects = append(m.subjects, subject)
	m.bodies = append(m.bodies, body)
	return nil
}

func collectEvents(events *[]identity.ActivityEvent) identity.ActivitySink {
	return identity.ActivitySinkFunc(func(_ context.Context, event identity.ActivityEvent) error {
		*events = append(*events, event)
		return nil
	})
}

func TestRegisterUserHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("registers an unverified account and emails the token", func(t *testing.T) {
		repo := newTestRepoManager(t)
		mailer := &recordingMailer{}

		var events []identity.ActivityEvent
		handler := identity.NewRegisterUserHandler(repo).
			WithMailer(mailer).
			WithActivitySink(collectEvents(&events)).
			WithBaseURL("https://app.example.com")

		var resp *identity.RegisterUserResponse
		err := handler.Execute(ctx, identity.RegisterUserMessage{
			FirstName: "Ana",
			LastName:  "Lemon",
			Email:     "ana.lemon@example.com",
			Password:  "password123",
			OnResponse: func(r *identity.RegisterUserResponse) {
				resp = r
			},
		})
		require.NoError(t, err)
		require.NotNil(t, resp)
		require.NotNil(t, resp.User)

		user := resp.User
		assert.NotEqual(t, uuid.Nil, user.ID)
		assert.NotEqual(t, uuid.Nil, user.VerificationToken)
		assert.False(t, user.Verified)
		require.NotEmpty(t, user.PasswordHash)
		assert.NotEqual(t, "password123", user.PasswordHash)
		assert.NoError(t, identity.ComparePasswordAndHash("password123", user.PasswordHash))

		require.Len(t, mailer.to, 1)
		assert.Equal(t, "ana.lemon@example.com", mailer.to[0])
		assert.Contains(t, mailer.bodies[0], identity.VerificationLink("https://app.example.com", user.VerificationToken))

		stored, err := repo.Users().GetByEmail(ctx, "ana.lemon@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, stored.ID)
		assert.False(t, stored.Verified)

		require.Len(t, events, 1)
		assert.Equal(t, identity.ActivityEventRegisterSuccess, events[0].EventType)
		assert.Equal(t, user.ID.String(), events[0].UserID)
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		repo := newTestRepoManager(t)
		mailer := &recordingMailer{}
		handler := identity.NewRegisterUserHandler(repo).WithMailer(mailer)

		require.NoError(t, handler.Execute(ctx, identity.RegisterUserMessage{
			FirstName: "Ana",
			LastName:  "Lemon",
			Email:     "ana.lemon@example.com",
			Password:  "password123",
		}))

		err := handler.Execute(ctx, identity.RegisterUserMessage{
			FirstName: "Impostor",
			LastName:  "Lemon",
			Email:     "ana.lemon@example.com",
			Password:  "different-password",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, identity.ErrEmailTaken)

		assert.Len(t, mailer.to, 1)
	})

	t.Run("rejects an invalid email", func(t *testing.T) {
		repo := newTestRepoManager(t)
		mailer := &recordingMailer{}
		handler := identity.NewRegisterUserHandler(repo).WithMailer(mailer)

		err := handler.Execute(ctx, identity.RegisterUserMessage{
			FirstName: "Ana",
			Email:     "not-an-email",
			Password:  "password123",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "valid email")
		assert.Empty(t, mailer.to)
	})

	t.Run("empty password is rejected", func(t *testing.T) {
		repo := newTestRepoManager(t)
		handler := identity.NewRegisterUserHandler(repo).WithMailer(&recordingMailer{})

		err := handler.Execute(ctx, identity.RegisterUserMessage{
			FirstName: "Ana",
			LastName:  "Lemon",
			Email:     "ana.lemon@example.com",
			Password:  "",
		})
		assert.ErrorIs(t, err, identity.ErrNoEmptyString)
	})

	t.Run("normalizes phone numbers to E.164", func(t *testing.T) {
		repo := newTestRepoManager(t)

		var resp *identity.RegisterUserResponse
		handler := identity.NewRegisterUserHandler(repo).WithMailer(&recordingMailer{})

		err := handler.Execute(ctx, identity.RegisterUserMessage{
			FirstName: "Ana",
			LastName:  "Lemon",
			Email:     "ana.lemon@example.com",
			Phone:     "(650) 253-0000",
			Password:  "password123",
			OnResponse: func(r *identity.RegisterUserResponse) {
				resp = r
			},
		})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, "+16502530000", resp.User.Phone)
	})

	t.Run("rejects an invalid phone number", func(t *testing.T) {
		repo := newTestRepoManager(t)
		handler := identity.NewRegisterUserHandler(repo).WithMailer(&recordingMailer{})

		err := handler.Execute(ctx, identity.RegisterUserMessage{
			FirstName: "Ana",
			LastName:  "Lemon",
			Email:     "ana.lemon@example.com",
			Phone:     "123",
			Password:  "password123",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "phone")
	})

	t.Run("mail failure reports the error but keeps the account", func(t *testing.T) {
		repo := newTestRepoManager(t)
		mailer := &recordingMailer{err: errors.New("smtp unreachable")}

		var events []identity.ActivityEvent
		handler := identity.NewRegisterUserHandler(repo).
			WithMailer(mailer).
			WithActivitySink(collectEvents(&events))

		err := handler.Execute(ctx, identity.RegisterUserMessage{
			FirstName: "Ana",
			LastName:  "Lemon",
			Email:     "ana.lemon@example.com",
			Password:  "password123",
		})
		require.Error(t, err)

		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, identity.TextCodeMailDelivery, richErr.TextCode)
		assert.Equal(t, "ana.lemon@example.com", richErr.Metadata["email"])

		// The account outlives the failed delivery, its token stays redeemable.
		stored, err := repo.Users().GetByEmail(ctx, "ana.lemon@example.com")
		require.NoError(t, err)
		assert.False(t, stored.Verified)

		verifier := identity.NewVerifyEmailHandler(repo)
		require.NoError(t, verifier.Execute(ctx, identity.VerifyEmailMessage{
			Token: stored.VerificationToken.String(),
		}))

		verified, err := repo.Users().GetByEmail(ctx, "ana.lemon@example.com")
		require.NoError(t, err)
		assert.True(t, verified.Verified)

		require.Len(t, events, 1)
		assert.Equal(t, identity.ActivityEventRegisterMailError, events[0].EventType)
	})

	t.Run("hashid derives a deterministic user id", func(t *testing.T) {
		repo := newTestRepoManager(t)

		var resp *identity.RegisterUserResponse
		handler := identity.NewRegisterUserHandler(repo).WithMailer(&recordingMailer{})

		err := handler.Execute(ctx, identity.RegisterUserMessage{
			FirstName: "Ana",
			LastName:  "Lemon",
			Email:     "ana.lemon@example.com",
			Password:  "password123",
			UseHashid: true,
			OnResponse: func(r *identity.RegisterUserResponse) {
				resp = r
			},
		})
		require.NoError(t, err)
		require.NotNil(t, resp)

		expected, err := hashid.NewUUID("ana.lemon@example.com")
		require.NoError(t, err)
		assert.Equal(t, expected, resp.User.ID)
	})

	t.Run("cancelled context aborts before any work", func(t *testing.T) {
		repo := newTestRepoManager(t)
		handler := identity.NewRegisterUserHandler(repo).WithMailer(&recordingMailer{})

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := handler.Execute(cancelled, identity.RegisterUserMessage{
			FirstName: "Ana",
			LastName:  "Lemon",
			Email:     "ana.lemon@example.com",
			Password:  "password123",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
