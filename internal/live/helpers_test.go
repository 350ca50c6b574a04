package live_test

import (
	"io"
	"log/slog"

	"github.com/roach88/livequery/internal/live"
	"github.com/roach88/livequery/internal/testutil"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// newSession returns a non-interactive session on a test clock with a
// recording scheduler.
func newSession(opts ...live.SessionOption) (*live.Session, *testutil.RecordingScheduler) {
	sch := &testutil.RecordingScheduler{}
	base := []live.SessionOption{
		live.WithClock(testutil.NewClock()),
		live.WithScheduler(sch),
		live.WithLogger(quiet),
		live.WithIDGenerator(testutil.NewFixedIDGenerator("")),
	}
	return live.NewSession(append(base, opts...)...), sch
}
