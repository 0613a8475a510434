package domain

import "github.com/google/uuid"

// PipelineRun is the per-request aggregate. It is never persisted.
type PipelineRun struct {
	ID       string
	Query    string
	Intent   QueryIntent
	Tasks    []SearchTask
	Results  map[string][]ScoredItem // task id -> candidates
	Selected []ScoredItem
	Errors   []error
}

// NewPipelineRun starts a run for the given query.
func NewPipelineRun(query string) *PipelineRun {
	return &PipelineRun{
		ID:      uuid.NewString(),
		Query:   query,
		Results: make(map[string][]ScoredItem),
	}
}

// AddError records a recovered stage failure.
func (r *PipelineRun) AddError(err error) {
	if err != nil {
		r.Errors = append(r.Errors, err)
	}
}

// Candidates returns every task's candidates in task order.
func (r *PipelineRun) Candidates() []ScoredItem {
	var out []ScoredItem
	for _, t := range r.Tasks {
		out = append(out, r.Results[t.ID]...)
	}
	return out
}
