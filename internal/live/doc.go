// Package live keeps displayed query results fresh for one session.
//
// A Session owns a registry of live assignments. Each assignment is
// registered with KeepLive, which fetches the initial result through a
// Callback and subscribes the session to the assignment's topics.
// Invalidation signals (topic notifications and timer refetches) are
// handled by HandleLive, which debounces them per assignment and refetches
// through the reconciler. ChangePage navigates a paginated assignment.
//
// ARCHITECTURE:
//
// Single-Writer Session Loop:
// An interactive session processes every signal in one goroutine (Run).
// Hub deliveries and timer fires only enqueue a Message; the loop dequeues
// messages one at a time, so a session's registry is never mutated in
// parallel. Sessions share nothing with each other.
//
// Non-interactive sessions have no loop. Callers invoke KeepLive,
// HandleLive and ChangePage directly and use Drain to process timer
// messages that were queued in the meantime.
//
// Staleness Guard:
// Delayed refetches carry the time they were requested. A refetch
// requested at or before the entry's last fetch is dropped, so superseded
// debounce timers are never cancelled, only ignored.
//
// Reconciliation:
// Background refetches keep the membership and order of displayed lists
// and pages by default (ResultsKeep): records are matched by primary key
// and substituted in place, records missing from the fresh result are
// retained. Page navigation always replaces the page wholesale.
package live
