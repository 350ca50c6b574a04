// Package harness runs YAML scenarios against a live session backed by a
// real SQLite store and notification hub.
//
// A scenario names CUE files holding live declarations, seeds collections,
// then walks a list of steps: register a declaration, write or delete
// records, publish topics, advance time, navigate pages and connect the
// session. Expect clauses after a step check what the session displays.
//
// Time is virtual. The session's scheduler is a timeline driven by the
// advance step, so a debounced refetch fires at exactly the instant its
// window ends and traces are reproducible byte for byte.
//
// Every step and every fetch and assignment the session makes is recorded
// in the trace. RunWithGolden compares that trace against a golden file
// under testdata/golden; regenerate with:
//
//	go test ./internal/harness -update
package harness
