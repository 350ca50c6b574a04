package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"go.uber.org/multierr"

	"github.com/roach88/livequery/internal/compiler"
	"github.com/roach88/livequery/internal/ir"
	"github.com/roach88/livequery/internal/live"
	"github.com/roach88/livequery/internal/notify"
	"github.com/roach88/livequery/internal/page"
	"github.com/roach88/livequery/internal/store"
	"github.com/roach88/livequery/internal/testutil"
)

// settleTimeout bounds the wait for hub deliveries after a write.
const settleTimeout = 5 * time.Second

// Harness executes one scenario.
// It owns a fresh in-memory store, a hub and a session on virtual time.
type Harness struct {
	store    *store.Store
	hub      *notify.Hub
	session  *live.Session
	timeline *timeline
	logger   *slog.Logger
	specs    map[string]ir.LiveSpec
	fetches  map[string]int
	result   *Result
	step     int
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. The
// returned error covers scenarios that cannot run at all (bad specs,
// unknown declarations); expect and assertion failures land in Result.
//
// Execution flow:
// 1. Compile and validate the live declarations
// 2. Open an in-memory store and seed it
// 3. Create the session on virtual time
// 4. Execute steps, checking expect clauses
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	specs, err := LoadSpecs(scenario.Specs)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		// Suppress logs in scenario runs
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		specs:   make(map[string]ir.LiveSpec, len(specs)),
		fetches: make(map[string]int),
		result:  NewResult(),
	}
	for _, spec := range specs {
		h.specs[spec.Key] = spec
	}

	h.hub = notify.NewHub(notify.WithLogger(h.logger))
	var ids int
	h.store, err = store.Open(":memory:",
		store.WithNotifier(h.hub),
		store.WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("r%d", ids)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer h.store.Close()

	for coll, pk := range scenario.Collections {
		h.store.DefineCollection(coll, pk...)
	}
	for _, spec := range specs {
		if len(spec.PrimaryKey) > 0 {
			h.store.DefineCollection(spec.Source.Collection, spec.PrimaryKey...)
		}
	}

	if err := h.preflight(scenario.Steps); err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := h.seed(ctx, scenario.Seed); err != nil {
		return nil, fmt.Errorf("failed to seed: %w", err)
	}

	clk := testutil.NewClock()
	h.timeline = newTimeline(clk)
	opts := []live.SessionOption{
		live.WithClock(clk),
		live.WithScheduler(h.timeline),
		live.WithTransport(h.hub),
		live.WithLogger(h.logger),
		live.WithIDGenerator(testutil.NewFixedIDGenerator("")),
	}
	if scenario.Connected {
		opts = append(opts, live.Interactive())
	}
	h.session = live.NewSession(opts...)
	h.timeline.deliver = h.session.Enqueue
	defer h.session.Close()

	for i, step := range scenario.Steps {
		h.step = i
		h.execute(ctx, step)
	}

	actx := &AssertionContext{Session: h.session, Specs: h.specs}
	for _, errMsg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(errMsg)
	}

	return h.result, nil
}

// LoadSpecs compiles and validates the live declarations in paths.
func LoadSpecs(paths []string) ([]ir.LiveSpec, error) {
	cctx := cuecontext.New()
	var specs []ir.LiveSpec
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read spec %s: %w", path, err)
		}
		v := cctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("compile spec %s: %w", path, err)
		}
		compiled, err := compiler.CompileAll(v)
		if err != nil {
			return nil, fmt.Errorf("compile spec %s: %w", path, err)
		}
		specs = append(specs, compiled...)
	}

	var errs error
	for _, verr := range compiler.Validate(specs) {
		errs = multierr.Append(errs, verr)
	}
	if errs != nil {
		return nil, fmt.Errorf("invalid specs: %w", errs)
	}
	return specs, nil
}

func (h *Harness) seed(ctx context.Context, seed map[string][]map[string]interface{}) error {
	colls := make([]string, 0, len(seed))
	for c := range seed {
		colls = append(colls, c)
	}
	sort.Strings(colls)

	for _, coll := range colls {
		records := make([]ir.IRObject, 0, len(seed[coll]))
		for i, raw := range seed[coll] {
			obj, err := convertArgsToIRObject(raw)
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", coll, i, err)
			}
			records = append(records, obj)
		}
		if _, err := h.store.PutAll(ctx, coll, records); err != nil {
			return fmt.Errorf("%s: %w", coll, err)
		}
	}
	return nil
}

// preflight rejects steps that cannot run at all: unknown declarations
// and values with no IR form.
func (h *Harness) preflight(steps []Step) error {
	for i, step := range steps {
		if step.Register != "" {
			if _, ok := h.specs[step.Register]; !ok {
				return fmt.Errorf("step %d: register: no live declaration %q", i, step.Register)
			}
		}
		if step.Put != nil {
			if _, err := convertArgsToIRObject(step.Put.Record); err != nil {
				return fmt.Errorf("step %d: put: %w", i, err)
			}
		}
		if step.Delete != nil {
			if _, err := convertKey(step.Delete.Key); err != nil {
				return fmt.Errorf("step %d: delete: %w", i, err)
			}
		}
	}
	return nil
}

// execute runs one step. The action's error is checked against
// step.Error: an unexpected failure or a missing expected one fails the
// scenario.
func (h *Harness) execute(ctx context.Context, step Step) {
	actionErr := h.act(ctx, step)

	switch {
	case step.Error != "" && actionErr == nil:
		h.result.AddError(fmt.Sprintf("step %d: expected error containing %q, got none", h.step, step.Error))
	case step.Error != "" && !strings.Contains(actionErr.Error(), step.Error):
		h.result.AddError(fmt.Sprintf("step %d: expected error containing %q, got %v", h.step, step.Error, actionErr))
	case step.Error == "" && actionErr != nil:
		h.result.AddError(fmt.Sprintf("step %d: %v", h.step, actionErr))
	}

	if step.Expect != nil {
		for _, msg := range checkExpect(h.session, h.specs, h.fetches, *step.Expect) {
			h.result.AddError(fmt.Sprintf("step %d: %s", h.step, msg))
		}
	}

	h.logger.Info("scenario step completed", "step", h.step)
}

// act performs the step's action and returns its outcome.
func (h *Harness) act(ctx context.Context, step Step) error {
	switch {
	case step.Register != "":
		spec := h.specs[step.Register]
		h.trace(TraceEvent{Event: EventRegister, Key: spec.Key})
		return h.register(ctx, spec)

	case step.Put != nil:
		fields, err := convertArgsToIRObject(step.Put.Record)
		if err != nil {
			return err
		}
		rec, err := h.store.Put(ctx, step.Put.Collection, fields)
		if err != nil {
			return err
		}
		h.trace(TraceEvent{
			Event: EventPut,
			Topic: step.Put.Collection,
			IDs:   ir.IDs([]ir.Record{rec}, h.store.PrimaryKey(step.Put.Collection)),
		})
		return h.settle(ctx)

	case step.Delete != nil:
		key, err := convertKey(step.Delete.Key)
		if err != nil {
			return err
		}
		removed, err := h.store.Delete(ctx, step.Delete.Collection, key)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("delete %s %s: no such record", step.Delete.Collection, key.Display())
		}
		h.trace(TraceEvent{Event: EventDelete, Topic: step.Delete.Collection, IDs: []string{key.Display()}})
		return h.settle(ctx)

	case step.Publish != "":
		h.trace(TraceEvent{Event: EventPublish, Topic: step.Publish})
		if !h.session.Connected() {
			return h.session.Deliver(ctx, step.Publish)
		}
		h.hub.Publish(step.Publish)
		return h.settle(ctx)

	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return err
		}
		err = h.timeline.Advance(ctx, d, h.session.Drain)
		h.trace(TraceEvent{Event: EventAdvance})
		return err

	case step.Navigate != nil:
		target, err := page.ParseTarget(step.Navigate.Target)
		if err != nil {
			return err
		}
		h.trace(TraceEvent{Event: EventNavigate, Key: step.Navigate.Key, Target: target.String()})
		return h.session.ChangePage(ctx, step.Navigate.Key, target)

	case step.Connect:
		h.trace(TraceEvent{Event: EventConnect})
		return h.session.Connect(ctx)
	}
	return nil
}

// register keeps spec live, recording its fetches and assignments.
func (h *Harness) register(ctx context.Context, spec ir.LiveSpec) error {
	key := spec.Key
	cb := CallbackFor(SourceFor(h.store, spec), spec)

	opts := live.OptionsFromSpec(spec)
	opts.AfterFetch = func(r live.Result, _ *live.Session) {
		h.trace(TraceEvent{
			Event: EventAssign,
			Key:   key,
			Shape: r.Shape.String(),
			IDs:   ir.IDs(r.Records(), primaryKey(spec)),
		})
	}
	return h.session.KeepLive(ctx, key, h.counted(key, cb), opts)
}

// counted wraps cb so every fetch is counted and traced.
func (h *Harness) counted(key string, cb live.Callback) live.Callback {
	before := func() {
		h.fetches[key]++
		h.trace(TraceEvent{Event: EventFetch, Key: key})
	}
	if cb.AcceptsPageOpts() {
		return live.WithPageOpts(func(ctx context.Context, s *live.Session, opts *page.Options) (live.Result, error) {
			before()
			return cb.Call(ctx, s, opts)
		})
	}
	return live.NoArgs(func(ctx context.Context, s *live.Session) (live.Result, error) {
		before()
		return cb.Call(ctx, s, nil)
	})
}

// settle waits for hub deliveries, then processes what they enqueued.
func (h *Harness) settle(ctx context.Context) error {
	sctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	if err := h.hub.Settle(sctx); err != nil {
		return fmt.Errorf("hub did not settle: %w", err)
	}
	return h.session.Drain(ctx)
}

func (h *Harness) trace(ev TraceEvent) {
	ev.Step = h.step
	ev.At = h.session.Now().Sub(testutil.Epoch).Milliseconds()
	h.result.AddEvent(ev)
}

func primaryKey(spec ir.LiveSpec) []string {
	if len(spec.PrimaryKey) > 0 {
		return spec.PrimaryKey
	}
	return live.DefaultPrimaryKey
}

func convertKey(raw []interface{}) (ir.Key, error) {
	key := make(ir.Key, len(raw))
	for i, r := range raw {
		v, err := convertToIRValue(r)
		if err != nil {
			return nil, fmt.Errorf("key[%d]: %w", i, err)
		}
		key[i] = v
	}
	return key, nil
}

// convertArgsToIRObject converts a map[string]interface{} to ir.IRObject.
// This handles YAML-parsed values and converts them to proper IRValue types.
func convertArgsToIRObject(args map[string]interface{}) (ir.IRObject, error) {
	if args == nil {
		return ir.IRObject{}, nil
	}

	result := make(ir.IRObject)
	for key, val := range args {
		irVal, err := convertToIRValue(val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		result[key] = irVal
	}
	return result, nil
}

// convertToIRValue converts a YAML-parsed value to an IRValue.
func convertToIRValue(val interface{}) (ir.IRValue, error) {
	switch v := val.(type) {
	case nil:
		return ir.IRNull{}, nil
	case string:
		return ir.IRString(v), nil
	case int:
		return ir.IRInt(int64(v)), nil
	case int64:
		return ir.IRInt(v), nil
	case float64:
		// Whole numbers become ints; floats are not IR values
		if v == float64(int64(v)) {
			return ir.IRInt(int64(v)), nil
		}
		return nil, fmt.Errorf("floats are forbidden in IR: %v", v)
	case bool:
		return ir.IRBool(v), nil
	case []interface{}:
		arr := make(ir.IRArray, len(v))
		for i, elem := range v {
			irElem, err := convertToIRValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]interface{}:
		obj, err := convertArgsToIRObject(v)
		if err != nil {
			return nil, err
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", val)
	}
}
