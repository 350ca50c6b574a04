package live

import (
	"context"
	"slices"

	"go.uber.org/multierr"
)

// HandleLive applies an invalidation signal to each of keys in order.
//
// Per key: unregistered keys and NoRefetch entries are ignored; a topic
// outside a non-empty Subscribe list is ignored; a refetch requested at or
// before the last fetch is stale and ignored; inside the refetch window
// the refetch is deferred to the end of the window; otherwise the value is
// refetched and reconciled.
//
// Errors of different keys are combined. A key whose refetch fails keeps
// its previous entry and value.
func (s *Session) HandleLive(ctx context.Context, sig Signal, keys []string, meta *Meta) error {
	var errs error
	for _, key := range keys {
		errs = multierr.Append(errs, s.handleKey(ctx, sig, key, meta))
	}
	return errs
}

func (s *Session) handleKey(ctx context.Context, sig Signal, key string, meta *Meta) error {
	entry, ok := s.Entry(key)
	if !ok {
		return nil
	}
	opts := entry.Options
	if opts.NoRefetch {
		return nil
	}

	if topic, isTopic := sig.TopicName(); isTopic && len(opts.Subscribe) > 0 && !slices.Contains(opts.Subscribe, topic) {
		return nil
	}

	now := s.clock.Now()
	elapsed := now.Sub(entry.LastFetchedAt)

	if meta != nil && !meta.RequestedAt.IsZero() && !meta.RequestedAt.After(entry.LastFetchedAt) {
		s.logger.Debug("live refetch stale",
			"key", key,
			"requested_at", meta.RequestedAt,
			"last_fetched_at", entry.LastFetchedAt,
		)
		return nil
	}

	if opts.RefetchWindow > 0 && elapsed < opts.RefetchWindow {
		delay := opts.RefetchWindow - elapsed
		s.scheduler.SendAfter(delay, Message{
			Signal: Refetch,
			Keys:   []string{key},
			Meta:   &Meta{RequestedAt: now},
		})
		s.logger.Debug("live refetch deferred",
			"key", key,
			"signal", sig.String(),
			"delay", delay,
		)
		return nil
	}

	current, _ := s.Read(key)
	next, err := s.reconcile(ctx, current, entry)
	if err != nil {
		return err
	}

	entry.LastFetchedAt = now
	e := s.commit(key, entry, next)
	s.logger.Debug("live refetched",
		"key", key,
		"signal", sig.String(),
		"shape", next.Shape.String(),
		"generation", e.Generation,
	)
	return nil
}
