// Package rate provides Redis-backed fixed-window throttles for the development
// backend's OTP endpoints.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - tro:  OTP requests per email
//   - troi: OTP requests per client IP
//   - trv:  OTP verifications per client IP
package rate
