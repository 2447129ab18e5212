// Package tripauth implements the client-side sign-in lifecycle of the travel planner
// apps: an email + one-time-code login, a durable bearer-token session, and the
// start-up restore of that session.
//
// Construct an [Engine] with [New] and [Builder.Build], call [Engine.Bootstrap] once at
// process start, then drive a [LoginFlow] from UI events. The host owns the one-second
// timer that calls [LoginFlow.Tick]; [StartCountdown] is a ready-made one.
//
// # Architecture boundaries
//
// tripauth is the public surface. The session slot lives in package session and has a
// single writer (its Store); HTTP lives in package api. LoginFlow never touches storage
// or transport directly, it goes through the Engine.
//
// # What this package must NOT do
//
//   - Keep bearer tokens in package-level variables.
//   - Apply a response that completed after its challenge was replaced or abandoned.
//   - Treat malformed partial code input as an error; it is ignored.
package tripauth
