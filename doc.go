// Package identity manages the user identity lifecycle (registration with
// deferred email verification, verification-token redemption, credential
// login) plus JWT session issuance, stateful repositories, and HTTP helpers.
//
// User lifecycle:
//   - Registration persists an unverified user together with a random
//     verification token, then emails a redemption link. The token doubles as
//     the verification credential and is never rotated or consumed.
//   - VerifyEmailHandler redeems the token idempotently: a replayed link
//     reports the account as already verified instead of failing. is_verified
//     only ever moves from false to true.
//   - Login requires a verified account and issues a signed session token; it
//     performs no writes. Unknown emails and wrong passwords fold into the
//     same InvalidCredentials answer so callers cannot probe for accounts.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the command
//     handlers and Auther to describe registration, verification, and login
//     events. Sinks run best-effort (errors are logged) so you can forward to
//     a database or queue without blocking authentication.
//
// Claims decoration:
//   - ClaimsDecorator is invoked before JWTs are signed. Decorators may enrich
//     extension fields such as metadata while protected claims (sub, iss, aud,
//     exp, etc.) remain immutable. Combine WithClaimsDecorator with
//     ActivitySink to keep lifecycle state and issued tokens consistent.
package identity
