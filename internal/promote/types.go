package promote

// Per-item statuses reported in a Result.
const (
	StatusCreated = "created"
	StatusUpdated = "updated"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Options tune how promoted entries land in the target environment.
type Options struct {
	Publish   bool `json:"publish,omitempty"`
	DryRun    bool `json:"dry_run,omitempty"`
	Overwrite bool `json:"overwrite,omitempty"`
}

// Request describes one promotion pass between two environments. Explicit
// IDs win; when none are given, entries are discovered in the source
// environment by content type.
type Request struct {
	Source       string   `json:"source,omitempty"`
	Target       string   `json:"target,omitempty"`
	IDs          []string `json:"ids,omitempty"`
	ContentTypes []string `json:"content_types,omitempty"`
	Options      Options  `json:"options,omitempty"`
}

// Item records what happened to a single entry. Message carries the skip
// reason or the failure, and stays empty for clean promotions.
type Item struct {
	ID          string `json:"id"`
	ContentType string `json:"content_type,omitempty"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
}

// Counts aggregates per-item statuses for one promotion pass.
type Counts struct {
	Created int `json:"created,omitempty"`
	Updated int `json:"updated,omitempty"`
	Skipped int `json:"skipped,omitempty"`
	Failed  int `json:"failed,omitempty"`
}

// Result is the outcome of one promotion pass. In a dry run the items
// keep the status the live run would have produced.
type Result struct {
	Source  string `json:"source,omitempty"`
	Target  string `json:"target,omitempty"`
	DryRun  bool   `json:"dry_run,omitempty"`
	Summary Counts `json:"summary"`
	Items   []Item `json:"items,omitempty"`
}

// add appends item and folds its status into the summary.
func (r *Result) add(item Item) {
	r.Items = append(r.Items, item)
	switch item.Status {
	case StatusCreated:
		r.Summary.Created++
	case StatusUpdated:
		r.Summary.Updated++
	case StatusFailed:
		r.Summary.Failed++
	default:
		r.Summary.Skipped++
	}
}
