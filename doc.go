// Package accounts coordinates the account lifecycle across two independent
// systems of record: an identity directory that owns credentials and a
// profile store that owns application attributes.
//
// Registration:
//   - Register creates the identity and then the profile. When the profile
//     write fails the identity is deleted again. A failed deletion leaves a
//     dangling identity that is logged, counted and reported through the
//     ActivitySink so an operator can reconcile it.
//   - Compensation runs detached from the caller's cancellation and is bounded
//     by the configured compensation timeout.
//
// Sessions:
//   - TokenService issues short lived access tokens and long lived refresh
//     tokens signed with independent secrets. Refreshing reads the current
//     profile so role changes apply to the next access token.
//   - Login failures are indistinguishable to callers regardless of whether
//     the email or the password was wrong.
//
// Errors:
//   - Every Coordinator failure is a go-errors *errors.Error. KindOf maps it to
//     the closed ErrorKind set (conflict, unauthorized, not found, invalid
//     request, internal) that transports translate to status codes.
//
// Activity sinks:
//   - ActivitySink receives registration, login, logout, password reset and
//     profile events. Sinks run best-effort (errors are logged).
package accounts
