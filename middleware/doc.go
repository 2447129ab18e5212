// Package middleware exposes HTTP middleware that authenticates requests with the
// bearer tokens issued after OTP verification.
//
// # Guards
//
//   - [RequireBearer] rejects requests without a valid token.
//   - [OptionalBearer] attaches the caller when a valid token is present and lets
//     every request through.
//
// Both read the Authorization header, verify the token with a [Verifier], and inject
// the verified claims into the request context.
//
// # What this package must NOT do
//
//   - Issue tokens.
//   - Access Redis or any other store.
package middleware
