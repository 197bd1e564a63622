package publish

// Actions a batch can perform.
const (
	ActionPublish   = "publish"
	ActionUnpublish = "unpublish"
)

// Per-item statuses reported in a BatchResult.
const (
	StatusPublished   = "published"
	StatusUnpublished = "unpublished"
	StatusSkipped     = "skipped"
	StatusFailed      = "failed"
)

// BatchRequest selects the nodes one batch operates on. Explicit IDs win;
// when none are given, nodes are discovered by content type.
type BatchRequest struct {
	Environment string   `json:"environment,omitempty"`
	IDs         []string `json:"ids,omitempty"`
	ContentType string   `json:"content_type,omitempty"`
	DryRun      bool     `json:"dry_run,omitempty"`
}

// ItemResult records what happened to a single node. Message carries the
// skip reason or the failure, and stays empty for clean transitions.
type ItemResult struct {
	ID          string `json:"id"`
	ContentType string `json:"content_type,omitempty"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
}

// Counts aggregates per-item statuses for one batch.
type Counts struct {
	Published   int `json:"published,omitempty"`
	Unpublished int `json:"unpublished,omitempty"`
	Skipped     int `json:"skipped,omitempty"`
	Failed      int `json:"failed,omitempty"`
}

// BatchResult is the outcome of one publish or unpublish batch. In a dry
// run the items keep the status the live run would have produced.
type BatchResult struct {
	Environment string       `json:"environment,omitempty"`
	Action      string       `json:"action"`
	DryRun      bool         `json:"dry_run,omitempty"`
	Counts      Counts       `json:"counts"`
	Items       []ItemResult `json:"items,omitempty"`
}

// add appends item and folds its status into the running counts.
func (r *BatchResult) add(item ItemResult) {
	r.Items = append(r.Items, item)
	switch item.Status {
	case StatusPublished:
		r.Counts.Published++
	case StatusUnpublished:
		r.Counts.Unpublished++
	case StatusFailed:
		r.Counts.Failed++
	default:
		r.Counts.Skipped++
	}
}
