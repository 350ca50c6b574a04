package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
	"unicode"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/roach88/livequery/internal/compiler"
	"github.com/roach88/livequery/internal/harness"
	"github.com/roach88/livequery/internal/ir"
	"github.com/roach88/livequery/internal/live"
	"github.com/roach88/livequery/internal/notify"
	"github.com/roach88/livequery/internal/page"
	"github.com/roach88/livequery/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string

	// SessionOptions are appended to the session's options (for testing).
	SessionOptions []live.SessionOption
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <specs-dir>",
		Short: "Keep live declarations fresh against a database",
		Long: `Open a SQLite database, keep every live declaration in the specs
directory live in one connected session, and read commands from stdin.

Every refetch prints the key, the displayed shape and the displayed ids.

Commands:
  put <collection> <json-object>   write a record
  delete <collection> <id>         delete a record (id is JSON or a bare string)
  publish <topic>                  send a topic to the session
  page <key> <target>              navigate: first, prev, next, last or a number
  show <key>                       print the displayed value
  quit                             stop

Example:
  livequery run --db ./posts.db ./specs`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// runner wires a store, a hub and one connected session for the run command.
type runner struct {
	store   *store.Store
	hub     *notify.Hub
	session *live.Session
	specs   map[string]ir.LiveSpec
	logger  *slog.Logger

	mu     sync.Mutex
	out    io.Writer
	format string
}

func runSession(opts *RunOptions, specsDir string, cmd *cobra.Command) error {
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: opts.logLevel(),
	})
	logger := slog.New(handler)

	specs, err := compileSpecs(specsDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile specs", err)
	}
	logger.Info("specs compiled", "live", len(specs))

	hub := notify.NewHub(notify.WithLogger(logger))
	st, err := store.Open(opts.Database, store.WithNotifier(hub))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()
	logger.Info("database ready", "path", opts.Database)

	sessionOpts := append([]live.SessionOption{
		live.Interactive(),
		live.WithTransport(hub),
		live.WithLogger(logger),
	}, opts.SessionOptions...)

	r := &runner{
		store:   st,
		hub:     hub,
		session: live.NewSession(sessionOpts...),
		specs:   make(map[string]ir.LiveSpec, len(specs)),
		logger:  logger,
		out:     cmd.OutOrStdout(),
		format:  opts.Format,
	}
	for _, spec := range specs {
		r.specs[spec.Key] = spec
		if len(spec.PrimaryKey) > 0 {
			st.DefineCollection(spec.Source.Collection, spec.PrimaryKey...)
		}
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- r.session.Run(ctx)
	}()

	err = r.registerAll(ctx, specs)
	if err == nil {
		err = r.serve(ctx, cmd.InOrStdin())
	}
	err = multierr.Append(err, r.shutdown(ctx, loopDone))
	if err != nil {
		return WrapExitError(ExitFailure, "session error", err)
	}

	logger.Info("session stopped gracefully")
	return nil
}

// compileSpecs loads and validates all live declarations in a directory.
func compileSpecs(dir string) ([]ir.LiveSpec, error) {
	loadResult, loadErrors := LoadSpecs(dir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}
	if verrs := compiler.Validate(loadResult.Specs); len(verrs) > 0 {
		return nil, verrs[0]
	}
	return loadResult.Specs, nil
}

// registerAll keeps every declaration live, in declaration order.
func (r *runner) registerAll(ctx context.Context, specs []ir.LiveSpec) error {
	for _, spec := range specs {
		spec := spec
		opts := live.OptionsFromSpec(spec)
		opts.AfterFetch = func(res live.Result, _ *live.Session) {
			r.print(spec.Key, res)
		}
		cb := harness.CallbackFor(harness.SourceFor(r.store, spec), spec)
		err := r.session.Do(ctx, func(ctx context.Context) error {
			return r.session.KeepLive(ctx, spec.Key, cb, opts)
		})
		if err != nil {
			return fmt.Errorf("keep %s live: %w", spec.Key, err)
		}
	}
	return nil
}

// serve executes stdin commands until EOF, quit or cancellation. Command
// errors are printed and do not stop the loop.
func (r *runner) serve(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			quit, err := r.command(ctx, line)
			if err != nil {
				r.printError(err)
			}
			if quit {
				return nil
			}
		}
	}
}

func (r *runner) command(ctx context.Context, line string) (bool, error) {
	fields := splitArgs(line, 3)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return false, nil
	}

	switch fields[0] {
	case "quit", "exit":
		return true, nil

	case "put":
		if len(fields) != 3 {
			return false, fmt.Errorf("usage: put <collection> <json-object>")
		}
		var obj ir.IRObject
		if err := json.Unmarshal([]byte(fields[2]), &obj); err != nil {
			return false, fmt.Errorf("put: invalid record: %w", err)
		}
		_, err := r.store.Put(ctx, fields[1], obj)
		return false, err

	case "delete":
		if len(fields) != 3 {
			return false, fmt.Errorf("usage: delete <collection> <id>")
		}
		id, err := ir.UnmarshalIRValue([]byte(fields[2]))
		if err != nil {
			id = ir.IRString(fields[2])
		}
		removed, err := r.store.Delete(ctx, fields[1], ir.Key{id})
		if err != nil {
			return false, err
		}
		if !removed {
			return false, fmt.Errorf("delete %s %s: no such record", fields[1], fields[2])
		}
		return false, nil

	case "publish":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: publish <topic>")
		}
		r.hub.Publish(fields[1])
		return false, nil

	case "page":
		if len(fields) != 3 {
			return false, fmt.Errorf("usage: page <key> <target>")
		}
		target, err := page.ParseTarget(fields[2])
		if err != nil {
			return false, err
		}
		return false, r.session.Do(ctx, func(ctx context.Context) error {
			return r.session.ChangePage(ctx, fields[1], target)
		})

	case "show":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: show <key>")
		}
		res, ok := r.session.Read(fields[1])
		if !ok {
			return false, fmt.Errorf("show: %q is not assigned", fields[1])
		}
		r.print(fields[1], res)
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %q", fields[0])
	}
}

// splitArgs splits line on whitespace into at most n fields; the last
// field keeps the remainder of the line verbatim.
func splitArgs(line string, n int) []string {
	var out []string
	rest := strings.TrimSpace(line)
	for rest != "" {
		if len(out) == n-1 {
			return append(out, rest)
		}
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			return append(out, rest)
		}
		out = append(out, rest[:end])
		rest = strings.TrimSpace(rest[end:])
	}
	return out
}

// shutdown waits for pending hub deliveries, closes the session and
// waits for its loop to finish the queued messages.
func (r *runner) shutdown(ctx context.Context, loopDone <-chan error) error {
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs error
	if ctx.Err() == nil {
		errs = multierr.Append(errs, r.hub.Settle(sctx))
	}
	r.session.Close()

	select {
	case err := <-loopDone:
		if err != nil && err != context.Canceled {
			errs = multierr.Append(errs, err)
		}
	case <-sctx.Done():
		errs = multierr.Append(errs, fmt.Errorf("session loop did not stop: %w", sctx.Err()))
	}
	return errs
}

// assignmentView is the printed form of a displayed value.
type assignmentView struct {
	Key   string   `json:"key"`
	Shape string   `json:"shape"`
	IDs   []string `json:"ids"`
	More  *bool    `json:"more,omitempty"`
	Count *int     `json:"count,omitempty"`
	Links []string `json:"links,omitempty"`
}

func (r *runner) view(key string, res live.Result) assignmentView {
	pk := live.DefaultPrimaryKey
	if spec, ok := r.specs[key]; ok && len(spec.PrimaryKey) > 0 {
		pk = spec.PrimaryKey
	}
	v := assignmentView{
		Key:   key,
		Shape: res.Shape.String(),
		IDs:   ir.IDs(res.Records(), pk),
	}
	if res.Shape == live.ShapePage {
		more := res.Page.More
		v.More = &more
		v.Count = res.Page.Count
		for _, t := range []page.Target{page.First, page.Prev, page.Next, page.Last} {
			if _, ok := page.LinkParams(res.Page, t); ok {
				v.Links = append(v.Links, t.String())
			}
		}
	}
	return v
}

func (r *runner) print(key string, res live.Result) {
	v := r.view(key, res)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.format == "json" {
		_ = json.NewEncoder(r.out).Encode(v)
		return
	}
	fmt.Fprintf(r.out, "%s %s [%s]", v.Key, v.Shape, strings.Join(v.IDs, " "))
	if v.Count != nil {
		fmt.Fprintf(r.out, " count=%d", *v.Count)
	}
	if len(v.Links) > 0 {
		fmt.Fprintf(r.out, " links=%s", strings.Join(v.Links, ","))
	}
	fmt.Fprintln(r.out)
}

func (r *runner) printError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.format == "json" {
		_ = json.NewEncoder(r.out).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: ErrCodeGeneric, Message: err.Error()},
		})
		return
	}
	fmt.Fprintf(r.out, "error: %v\n", err)
}
