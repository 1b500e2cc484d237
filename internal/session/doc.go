// Package session owns one 5250 session end to end.
//
// Ownership boundary:
// - connection state machine and the retry/reconnect/reset/abort actions
// - the single write gate serializing all shared-stream access
// - record read loop and data-stream dispatch into screen and field state
// - typeahead queue and backoff primitives
//
// Collaborators read screen and field state through the accessors on
// Controller; they never touch the connection directly.
package session
