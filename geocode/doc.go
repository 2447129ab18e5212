// Package geocode resolves itinerary activity locations to coordinates through a
// Nominatim-compatible search endpoint.
//
// Successful lookups are cached per location name; failures are never cached so a
// later call retries them.
package geocode
