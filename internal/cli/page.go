package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/roach88/livequery/internal/ir"
	"github.com/roach88/livequery/internal/page"
	"github.com/roach88/livequery/internal/store"
)

// PageOptions holds flags for the page command.
type PageOptions struct {
	*RootOptions
	Kind        string // "cursor" | "offset"
	Params      string // URL query the current page was fetched with
	More        bool
	Total       int // -1 when unknown
	FirstCursor string
	LastCursor  string
}

// PageLink is one navigation target and the parameters that request it.
type PageLink struct {
	Target    string `json:"target"`
	Reachable bool   `json:"reachable"`
	Query     string `json:"query,omitempty"`
}

// PageReport describes a page and its navigation links.
type PageReport struct {
	Kind     string     `json:"kind"`
	IsFirst  bool       `json:"is_first"`
	Number   int        `json:"number,omitempty"`
	LastPage int        `json:"last_page,omitempty"`
	Links    []PageLink `json:"links"`
}

// NewPageCommand creates the page command.
func NewPageCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PageOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "page [target]",
		Short: "Compute pagination links for a page",
		Long: `Describe a page by the parameters it was fetched with and print the
parameters that navigate from it. Without a target every symbolic target
(first, prev, next, last) is reported; a target may also be a page number.

Cursor pages need the cursors of their first and last records for prev
and next; offset pages need --total for last and numbered targets.

Examples:
  livequery page next --kind offset --params "offset=20&limit=10" --more
  livequery page --kind offset --params "offset=20&limit=10" --total 57
  livequery page prev --kind cursor --params "after=abc&limit=2" --first-cursor def`,
		Args:          cobra.RangeArgs(0, 1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPage(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "offset", "pagination kind (cursor|offset)")
	cmd.Flags().StringVar(&opts.Params, "params", "", "URL query the page was fetched with")
	cmd.Flags().BoolVar(&opts.More, "more", false, "more records follow in the fetch direction")
	cmd.Flags().IntVar(&opts.Total, "total", -1, "total matching records (-1 when unknown)")
	cmd.Flags().StringVar(&opts.FirstCursor, "first-cursor", "", "cursor of the page's first record")
	cmd.Flags().StringVar(&opts.LastCursor, "last-cursor", "", "cursor of the page's last record")

	return cmd
}

func runPage(opts *PageOptions, args []string, cmd *cobra.Command) error {
	formatter := newOutputFormatter(opts.RootOptions, cmd)

	p, err := describePage(opts)
	if err != nil {
		_ = formatter.Error(ErrCodeBadArgs, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid page", err)
	}

	targets := []page.Target{page.First, page.Prev, page.Next, page.Last}
	if len(args) == 1 {
		t, err := page.ParseTarget(args[0])
		if err != nil {
			_ = formatter.Error(ErrCodeBadArgs, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid target", err)
		}
		targets = []page.Target{t}
	}

	report := PageReport{Kind: p.Kind.String(), IsFirst: p.IsFirst}
	if n, ok := page.PageNumber(p); ok {
		report.Number = n
	}
	if n, ok := page.LastPage(p); ok && p.Kind == page.Offset {
		report.LastPage = n
	}
	for _, t := range targets {
		link := PageLink{Target: t.String()}
		if linkOpts, ok := page.LinkParams(p, t); ok {
			link.Reachable = true
			if link.Query, err = page.Encode(linkOpts); err != nil {
				return WrapExitError(ExitFailure, "encode link", err)
			}
		}
		report.Links = append(report.Links, link)
	}

	if len(args) == 1 && !report.Links[0].Reachable {
		formatter.VerboseLog("%s is not reachable from this page", args[0])
		_ = formatter.Error(ErrCodeBadArgs, fmt.Sprintf("%s: %v", args[0], page.ErrInvalidTarget), report)
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %v", args[0], page.ErrInvalidTarget))
	}

	if formatter.Format == "json" {
		return formatter.Success(report)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s page", report.Kind)
	if report.Number > 0 {
		fmt.Fprintf(w, " %d", report.Number)
		if report.LastPage > 0 {
			fmt.Fprintf(w, " of %d", report.LastPage)
		}
	}
	if report.IsFirst {
		fmt.Fprint(w, " (first)")
	}
	fmt.Fprintln(w)
	for _, l := range report.Links {
		if !l.Reachable {
			fmt.Fprintf(w, "  %-5s -\n", l.Target)
			continue
		}
		fmt.Fprintf(w, "  %-5s %s\n", l.Target, l.Query)
	}
	return nil
}

// describePage rebuilds the page the flags describe. Cursor pages get
// placeholder first and last records carrying the given cursors.
func describePage(opts *PageOptions) (page.Page, error) {
	values, err := url.ParseQuery(opts.Params)
	if err != nil {
		return page.Page{}, fmt.Errorf("parse params: %w", err)
	}
	o := page.FromValues(values, store.DefaultLimit, opts.Total >= 0)

	p := page.Page{
		Limit: o.Limit,
		More:  opts.More,
		Opts:  o,
	}
	if opts.Total >= 0 {
		p.Count = page.IntPtr(opts.Total)
	}

	switch opts.Kind {
	case "offset":
		p.Kind = page.Offset
		p.Offset = o.Offset
	case "cursor":
		p.Kind = page.Cursor
		p.After, p.Before = o.After, o.Before
		if opts.FirstCursor != "" || opts.LastCursor != "" {
			p.Results = []ir.Record{{Cursor: opts.FirstCursor}, {Cursor: opts.LastCursor}}
		}
	default:
		return page.Page{}, fmt.Errorf("invalid kind %q: must be cursor or offset", opts.Kind)
	}

	page.MarkFirst(&p)
	return p, nil
}
