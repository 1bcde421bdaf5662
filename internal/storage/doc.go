// Package storage persists the timer's run history.
//
// It records what already happened (fired, failed, drained jobs) for
// operators; it does NOT persist scheduled tasks. A restarted daemon
// starts with an empty wheel.
package storage
