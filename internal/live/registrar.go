package live

import (
	"context"

	"github.com/juju/errors"

	"github.com/roach88/livequery/internal/page"
)

// KeepLive registers key as a live assignment and assigns its first result.
//
// Invalid options fail before anything else happens. A LoadUntilConnected
// registration on a disconnected session assigns Loading and waits for
// Connect. Otherwise the session subscribes to the option topics, arms the
// refetch interval, fetches the first result
// unless Initial is given, and records the entry.
//
// Callback errors are returned unmodified and leave the session unchanged.
func (s *Session) KeepLive(ctx context.Context, key string, cb Callback, opts Options) error {
	if key == "" {
		return errors.NotValidf("empty assignment key")
	}
	if cb.IsZero() {
		return errors.NotValidf("nil callback for %q", key)
	}
	if err := opts.Validate(); err != nil {
		return errors.Annotatef(err, "keep live %q", key)
	}
	opts = opts.WithDefaults()

	if opts.LoadUntilConnected && !s.Connected() {
		s.mu.Lock()
		s.deferred[key] = registration{callback: cb, options: opts}
		s.assigns[key] = Loading()
		s.mu.Unlock()
		s.logger.Debug("live registration deferred", "key", key)
		return nil
	}

	if err := s.subscribe(opts.Subscribe); err != nil {
		return err
	}

	armed := false
	if opts.RefetchInterval > 0 {
		s.startInterval(key, opts.RefetchInterval)
		armed = true
	}

	var (
		result Result
		err    error
	)
	if opts.Initial != nil {
		result = *opts.Initial
	} else {
		result, err = cb.Call(ctx, s, nil)
	}
	if err != nil {
		if armed {
			s.stopInterval(key)
		}
		return err
	}
	markFirst(&result)

	e := s.commit(key, Entry{
		LastFetchedAt: s.clock.Now(),
		Callback:      cb,
		Options:       opts,
	}, result)

	s.logger.Debug("live registered",
		"key", key,
		"shape", result.Shape.String(),
		"topics", opts.Subscribe,
		"generation", e.Generation,
	)
	return nil
}

// markFirst derives IsFirst for page results.
func markFirst(r *Result) {
	if r.Shape == ShapePage {
		page.MarkFirst(&r.Page)
	}
}
