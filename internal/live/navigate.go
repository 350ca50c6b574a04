package live

import (
	"context"
	"fmt"

	"github.com/juju/errors"

	"github.com/roach88/livequery/internal/page"
)

// ChangePage navigates the page displayed under key to target and
// replaces it wholesale. The filter and count flag of the current page
// carry over.
//
// Returns a not-found error for an unregistered key and
// page.ErrInvalidTarget when target is not reachable from the current page.
func (s *Session) ChangePage(ctx context.Context, key string, target page.Target) error {
	entry, ok := s.Entry(key)
	if !ok {
		return notRegistered(key)
	}
	current, _ := s.Read(key)
	if current.Shape != ShapePage {
		return errors.NotValidf("assignment %q holds a %s, not a page", key, current.Shape)
	}

	opts, ok := page.LinkParams(current.Page, target)
	if !ok {
		return fmt.Errorf("%s of %q: %w", target, key, page.ErrInvalidTarget)
	}
	opts.Filter = current.Page.Opts.Filter
	opts.Count = current.Page.Opts.Count

	next, err := s.refetchPage(ctx, entry, opts)
	if err != nil {
		return err
	}

	entry.LastFetchedAt = s.clock.Now()
	e := s.commit(key, entry, next)
	s.logger.Debug("live page changed",
		"key", key,
		"target", target.String(),
		"generation", e.Generation,
	)
	return nil
}

// PageLinks reports which symbolic targets are reachable from the page
// displayed under key.
func (s *Session) PageLinks(key string) map[string]bool {
	current, ok := s.Read(key)
	if !ok || current.Shape != ShapePage {
		return nil
	}
	links := make(map[string]bool, 4)
	for _, t := range []page.Target{page.First, page.Prev, page.Next, page.Last} {
		_, ok := page.LinkParams(current.Page, t)
		links[t.String()] = ok
	}
	return links
}
