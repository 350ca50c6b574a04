// Package testutil provides deterministic collaborators for live session
// tests: a fixed clock origin, fixed session ids, a recording scheduler
// and an in-memory record source that counts its fetches.
package testutil
