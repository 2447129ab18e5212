// Package jwt reads and issues the bearer tokens exchanged with the itinerary backend.
//
// Clients only ever call [ExpiresAt] or [Unverified]: the signature is the backend's
// concern, the device merely reads the exp claim to decide whether a stored session is
// still worth restoring. [Manager] is the issuing/verifying side and is used by the local
// development backend and by tests.
package jwt
