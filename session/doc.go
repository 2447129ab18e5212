// Package session owns the client's single authenticated session slot: the in-memory
// [Session], its durable persistence through a [Backend], and the start-up
// reconstruction performed by [Store.Bootstrap].
//
// # Storage model
//
// A persisted session is two logical entries, the bearer token and the user's email.
// Backends write and remove both as one unit: [FileBackend] by atomic rename,
// [RedisBackend] by MULTI/EXEC, [MemoryBackend] under a mutex.
//
// # Architecture boundaries
//
// [Store] is the only writer of the slot. Everything else reads through
// [Store.Current] or [Store.BearerToken]. The package never talks to the network and
// never verifies token signatures; it only decodes the exp claim.
//
// # What this package must NOT do
//
//   - Import tripauth or api (no upward imports).
//   - Leave a partially populated Session in memory.
//   - Log token values.
package session
