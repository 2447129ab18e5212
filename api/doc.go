// Package api is the only component that speaks HTTP to the travel planner backend.
//
// [Client] covers the four endpoints the apps consume: OTP request and verification,
// itinerary generation, and the health probe. Authorization is read from a
// [TokenSource] on every request; the client holds no credentials of its own.
package api
