package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/livequery/internal/page"
)

// Scenario defines a live query scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists CUE files holding live declarations.
	// Paths are resolved against the base path given to the loader.
	Specs []string `yaml:"specs"`

	// Connected starts the session interactive. Otherwise the session is
	// a first render until a connect step runs.
	Connected bool `yaml:"connected,omitempty"`

	// Collections sets primary keys by collection name. Collections named
	// by a declaration also take the declaration's primary key.
	Collections map[string][]string `yaml:"collections,omitempty"`

	// Seed holds records written before the session exists.
	Seed map[string][]map[string]interface{} `yaml:"seed,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and displayed values.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one scenario action, optionally followed by an expect clause.
// At most one action field may be set; a step with no action only checks
// its expect clause.
type Step struct {
	// Register keeps the named declaration live.
	Register string `yaml:"register,omitempty"`

	// Put writes a record.
	Put *PutStep `yaml:"put,omitempty"`

	// Delete removes a record by key.
	Delete *DeleteStep `yaml:"delete,omitempty"`

	// Publish sends a bare topic to the session.
	Publish string `yaml:"publish,omitempty"`

	// Advance moves virtual time forward, e.g. "100ms".
	Advance string `yaml:"advance,omitempty"`

	// Navigate changes the displayed page of a declaration.
	Navigate *NavigateStep `yaml:"navigate,omitempty"`

	// Connect makes the session interactive.
	Connect bool `yaml:"connect,omitempty"`

	// Error, when set, expects the action to fail with a message
	// containing it.
	Error string `yaml:"error,omitempty"`

	// Expect checks the session after the action.
	Expect *Expect `yaml:"expect,omitempty"`
}

// PutStep writes a record to a collection.
type PutStep struct {
	Collection string                 `yaml:"collection"`
	Record     map[string]interface{} `yaml:"record"`
}

// DeleteStep removes the record with Key from a collection.
type DeleteStep struct {
	Collection string        `yaml:"collection"`
	Key        []interface{} `yaml:"key"`
}

// NavigateStep moves a paged declaration to Target: first, prev, next,
// last or a page number.
type NavigateStep struct {
	Key    string `yaml:"key"`
	Target string `yaml:"target"`
}

// Expect checks the value displayed under Key. Unset fields are not checked.
type Expect struct {
	Key string `yaml:"key"`

	// Shape is none, record, list, page or loading.
	Shape string `yaml:"shape,omitempty"`

	// IDs lists the displayed primary keys in order. Composite keys are
	// comma joined.
	IDs []string `yaml:"ids,omitempty"`

	// Records are subset matches against the displayed records, in order.
	Records []map[string]interface{} `yaml:"records,omitempty"`

	// Fetches is how many times the declaration's query has run.
	Fetches *int `yaml:"fetches,omitempty"`

	// Page fields; the displayed value must be a page.
	More    *bool `yaml:"more,omitempty"`
	Count   *int  `yaml:"count,omitempty"`
	IsFirst *bool `yaml:"is_first,omitempty"`
}

// Assertion validates the trace or a final displayed value.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event of Event (for Key, if set) was recorded
	// - "trace_order": Events ("fetch:posts", "put") appear in order
	// - "trace_count": Event (for Key, if set) appears exactly Count times
	// - "displayed": Key finally displays IDs
	Type string `yaml:"type"`

	Event  string   `yaml:"event,omitempty"`
	Key    string   `yaml:"key,omitempty"`
	Count  int      `yaml:"count,omitempty"`
	Events []string `yaml:"events,omitempty"`
	IDs    []string `yaml:"ids,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertDisplayed     = "displayed"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, "")
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving relative spec paths against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, st *Step) error {
	actions := 0
	for _, set := range []bool{
		st.Register != "",
		st.Put != nil,
		st.Delete != nil,
		st.Publish != "",
		st.Advance != "",
		st.Navigate != nil,
		st.Connect,
	} {
		if set {
			actions++
		}
	}
	if actions > 1 {
		return fmt.Errorf("steps[%d]: exactly one action per step, got %d", index, actions)
	}
	if actions == 0 && st.Expect == nil {
		return fmt.Errorf("steps[%d]: an action or expect is required", index)
	}
	if actions == 0 && st.Error != "" {
		return fmt.Errorf("steps[%d]: error requires an action", index)
	}

	switch {
	case st.Put != nil:
		if st.Put.Collection == "" {
			return fmt.Errorf("steps[%d].put: collection is required", index)
		}
		if st.Put.Record == nil {
			return fmt.Errorf("steps[%d].put: record is required", index)
		}
	case st.Delete != nil:
		if st.Delete.Collection == "" {
			return fmt.Errorf("steps[%d].delete: collection is required", index)
		}
		if len(st.Delete.Key) == 0 {
			return fmt.Errorf("steps[%d].delete: key is required", index)
		}
	case st.Advance != "":
		d, err := time.ParseDuration(st.Advance)
		if err != nil {
			return fmt.Errorf("steps[%d].advance: %w", index, err)
		}
		if d <= 0 {
			return fmt.Errorf("steps[%d].advance: must be positive, got %s", index, d)
		}
	case st.Navigate != nil:
		if st.Navigate.Key == "" {
			return fmt.Errorf("steps[%d].navigate: key is required", index)
		}
		if _, err := page.ParseTarget(st.Navigate.Target); err != nil {
			return fmt.Errorf("steps[%d].navigate: %w", index, err)
		}
	}

	if st.Expect != nil && st.Expect.Key == "" {
		return fmt.Errorf("steps[%d].expect: key is required", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertDisplayed:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for displayed", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
