package identity

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"
)

const defaultVerificationSubject = "Verify your account"

// Mailer hands a message off to an outbound email transport. Implementations
// return an error only when the handoff itself failed.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type MailerFunc func(ctx context.Context, to, subject, htmlBody string) error

func (f MailerFunc) Send(ctx context.Context, to, subject, htmlBody string) error {
	return f(ctx, to, subject, htmlBody)
}

// NewConsoleMailer prints messages to stdout. Development default, stands in
// until a real transport is wired.
func NewConsoleMailer() Mailer {
	return MailerFunc(func(_ context.Context, to, subject, htmlBody string) error {
		fmt.Println("====== SENDING EMAIL NOTIFICATION =======")
		fmt.Printf("to: %s\n", to)
		fmt.Printf("subject: %s\n", subject)
		fmt.Println(htmlBody)
		return nil
	})
}

// VerificationLink builds the redemption URL for a verification token.
func VerificationLink(baseURL string, token uuid.UUID) string {
	return strings.TrimRight(baseURL, "/") + "/verify/" + token.String()
}

// NewVerificationEmail renders the message sent after registration. The link
// carries the account's verification token and must only reach the owner's
// inbox.
func NewVerificationEmail(baseURL string, user *User) (subject, body string) {
	link := VerificationLink(baseURL, user.VerificationToken)

	body = fmt.Sprintf(`<p>Hi %s,</p>
<p>Confirm your email address to activate your account:</p>
<p><a href="%s">%s</a></p>
<p>If you did not sign up for this account, you can ignore this message.</p>`,
		html.EscapeString(user.FirstName),
		link,
		link,
	)

	return defaultVerificationSubject, body
}
