// Package taskstore persists the locally tracked task list in SQLite.
//
// The store is bounded (most-recent tasks by creation time) and
// time-boxed (terminal tasks age out); in-flight tasks are never
// evicted by age. A corrupt database is moved aside and recreated
// empty rather than surfacing the corruption to callers.
package taskstore
