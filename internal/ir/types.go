package ir

import "time"

// LiveSpec is a compiled live declaration: which query keeps which
// assignment fresh, and how.
type LiveSpec struct {
	Key                string        `json:"key"`
	Source             SourceSpec    `json:"source"`
	Subscribe          []string      `json:"subscribe,omitempty"`
	Refetch            bool          `json:"refetch"`
	Results            string        `json:"results"` // "keep" | "lose"
	LoadUntilConnected bool          `json:"load_until_connected,omitempty"`
	RefetchInterval    time.Duration `json:"refetch_interval,omitempty"`
	RefetchWindow      time.Duration `json:"refetch_window,omitempty"`
	PrimaryKey         []string      `json:"primary_key"`
}

// SourceSpec describes the query behind a live assignment.
type SourceSpec struct {
	Collection string       `json:"collection"`
	Where      IRObject     `json:"where,omitempty"` // field equality filter
	OrderBy    []OrderField `json:"order_by,omitempty"`
	Paginate   string       `json:"paginate"` // "none" | "cursor" | "offset"
	Limit      int          `json:"limit,omitempty"`
	Count      bool         `json:"count,omitempty"`
	Single     bool         `json:"single,omitempty"` // first matching record only
}

// OrderField is one sort column.
type OrderField struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}

// Pagination modes for SourceSpec.Paginate.
const (
	PaginateNone   = "none"
	PaginateCursor = "cursor"
	PaginateOffset = "offset"
)

// Result policies for LiveSpec.Results.
const (
	ResultsKeep = "keep"
	ResultsLose = "lose"
)
