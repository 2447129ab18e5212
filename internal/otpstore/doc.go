// Package otpstore keeps pending one-time codes for the development backend in Redis.
//
// # Record layout
//
// One key per email, value is a versioned binary record:
// version(1) attempts(2) expiresAt(8) emailLen(2) email hash(32).
// Only SHA-256(email ":" code) is stored; the code itself never reaches Redis.
//
// # Consume semantics
//
// A Lua script performs GET → validate → DEL/SET atomically. A match deletes the
// record (single use); a mismatch increments attempts and deletes the record once
// the limit is reached.
package otpstore
