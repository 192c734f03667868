// Package auth is the scheme-based authentication engine. Handlers implement
// one named scheme each (bearer tokens, API keys, session cookies); a
// Compound dispatches across them in registration order, first success wins;
// a Service owns the compound plus a default scheme and attaches the
// resulting principal to the request context.
//
// Authentication failures are ordinary values, never aborts: a handler that
// sees no credential returns ErrNoCredential, an invalid credential returns a
// *VerificationError, and either way the compound falls through to the next
// scheme. Challenge and forbid responses are descriptors (status plus
// headers) that the HTTP middleware translates onto the wire.
package auth
