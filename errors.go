package identity

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCreds       = "auth_invalid_credentials"
	TextCodeEmailTaken         = "auth_email_taken"
	TextCodeTokenNotFound      = "auth_verification_token_not_found"
	TextCodeNotVerified        = "auth_account_not_verified"
	TextCodeMailDelivery       = "auth_mail_delivery_failed"
	TextCodeSignupDisabled     = "auth_signup_disabled"
	TextCodeEmptyPassword      = "auth_empty_password"
	TextCodeIdentityNotFound   = "auth_identity_not_found"
	TextCodeSessionNotFound    = "auth_session_not_found"
	TextCodeSessionDecodeError = "auth_session_decode_error"
	TextCodeClaimsMappingError = "auth_claims_mapping_error"
	TextCodeDataParseError     = "auth_data_parse_error"
	TextCodeTokenExpired       = "auth_token_expired"
	TextCodeTokenMalformed     = "auth_token_malformed"
	TextCodeImmutableClaim     = "auth_immutable_claim_mutation"
)

// ErrIdentityNotFound is returned when no identity matches the given identifier.
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(errors.CodeNotFound)

// ErrMismatchedHashAndPassword is returned for unknown identifiers and wrong
// passwords alike so callers cannot probe which accounts exist.
var ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrEmailTaken is returned when a registration collides with an existing email.
var ErrEmailTaken = errors.New("email already registered", errors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(errors.CodeConflict)

// ErrVerificationTokenNotFound is returned when no user owns the presented
// verification token.
var ErrVerificationTokenNotFound = errors.New("verification token not found", errors.CategoryNotFound).
	WithTextCode(TextCodeTokenNotFound).
	WithCode(errors.CodeNotFound)

// ErrAccountNotVerified is returned when credentials are fine but the account
// has not redeemed its verification token yet.
var ErrAccountNotVerified = errors.New("account email is not verified", errors.CategoryAuthz).
	WithTextCode(TextCodeNotVerified).
	WithCode(errors.CodeForbidden)

// ErrMailDelivery is returned when the verification email could not be handed
// to the mail collaborator. The user record is already persisted at that point.
var ErrMailDelivery = errors.New("could not deliver verification email", errors.CategoryOperation).
	WithTextCode(TextCodeMailDelivery).
	WithCode(errors.CodeInternal)

// ErrSignupDisabled is returned when the registration feature gate is off.
var ErrSignupDisabled = errors.New("signup is disabled", errors.CategoryAuthz).
	WithTextCode(TextCodeSignupDisabled).
	WithCode(errors.CodeForbidden)

// ErrNoEmptyString is returned when an empty password reaches the hasher.
var ErrNoEmptyString = errors.New("password cannot be an empty string", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

// ErrUnableToFindSession is returned when no session is present in the context.
var ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToDecodeSession is returned when a session token fails validation.
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionDecodeError).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToMapClaims is returned when token claims do not match the expected shape.
var ErrUnableToMapClaims = errors.New("unable to map claims", errors.CategoryAuth).
	WithTextCode(TextCodeClaimsMappingError).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToParseData is returned when payload data cannot be parsed.
var ErrUnableToParseData = errors.New("unable to parse data", errors.CategoryBadInput).
	WithTextCode(TextCodeDataParseError).
	WithCode(errors.CodeBadRequest)

// ErrTokenExpired is returned when a session token is past its expiry.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned when a token cannot be parsed at all.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrImmutableClaimMutation is returned when a claims decorator alters an
// identity or registered claim instead of the metadata extension.
var ErrImmutableClaimMutation = errors.New("immutable claim mutated", errors.CategoryInternal).
	WithTextCode(TextCodeImmutableClaim).
	WithCode(errors.CodeInternal)

// IsTokenExpiredError reports whether err represents an expired session token,
// matching both structured errors and legacy string errors from jwt parsers.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == TextCodeTokenExpired
	}

	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError reports whether err represents a malformed token.
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == TextCodeTokenMalformed
	}

	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
