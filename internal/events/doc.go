// Package events fans session lifecycle changes out to listeners without blocking
// the caller that changed the session.
//
// # Components
//
//   - [Sink] — interface for event consumers (channel, func, no-op).
//   - [Dispatcher] — buffered async relay that numbers events, coalesces repeated
//     bootstrap outcomes and counts drops.
//   - [Event] — one session transition with timestamp, kind, email and outcome.
//
// # Architecture boundaries
//
// This package owns buffering and delivery. It does NOT decide which transitions
// are worth announcing; the Engine does.
//
// # What this package must NOT do
//
//   - Carry bearer tokens in events.
//   - Import tripauth or any sibling internal package.
package events
