package harness

// Trace event names.
const (
	EventRegister = "register"
	EventFetch    = "fetch"
	EventAssign   = "assign"
	EventPut      = "put"
	EventDelete   = "delete"
	EventPublish  = "publish"
	EventAdvance  = "advance"
	EventNavigate = "navigate"
	EventConnect  = "connect"
)

// TraceEvent is one entry of a scenario trace.
type TraceEvent struct {
	Step   int      `json:"step"`
	Event  string   `json:"event"`
	Key    string   `json:"key,omitempty"`
	Topic  string   `json:"topic,omitempty"`
	Target string   `json:"target,omitempty"`
	Shape  string   `json:"shape,omitempty"`
	IDs    []string `json:"ids,omitempty"`

	// At is virtual time in milliseconds since the scenario started.
	At int64 `json:"at"`
}

// Label is the event name, suffixed with ":key" when the event has a key.
// Used by trace_order assertions.
func (e TraceEvent) Label() string {
	if e.Key == "" {
		return e.Event
	}
	return e.Event + ":" + e.Key
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	Pass bool `json:"pass"`

	// Trace contains every step and session event in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expect and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvent appends ev to the trace.
func (r *Result) AddEvent(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
