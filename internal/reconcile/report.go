package reconcile

import (
	"sync"
	"time"

	"github.com/okian/tourneyrank/internal/adapters/repository"
	"github.com/okian/tourneyrank/pkg/metrics"
)

// Outcome of reconciling one record.
type Outcome string

const (
	OutcomeInserted  Outcome = "inserted"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// Counts are the per-family outcomes of one run.
type Counts struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// New is the number of records that did not exist before this run.
func (c Counts) New() int { return c.Inserted }

// Existing is the number of records recognized as already stored.
func (c Counts) Existing() int { return c.Updated + c.Unchanged }

// Total is every record the run looked at.
func (c Counts) Total() int {
	return c.Inserted + c.Updated + c.Unchanged + c.Failed + c.Skipped
}

func (c *Counts) add(o Outcome) {
	switch o {
	case OutcomeInserted:
		c.Inserted++
	case OutcomeUpdated:
		c.Updated++
	case OutcomeUnchanged:
		c.Unchanged++
	case OutcomeFailed:
		c.Failed++
	case OutcomeSkipped:
		c.Skipped++
	}
}

// Report summarizes one sync run.
type Report struct {
	RunID    string                        `json:"run_id"`
	Families map[repository.Family]Counts `json:"families"`
	// Degraded lists families whose warm-up read failed and were treated
	// as empty.
	Degraded []repository.Family `json:"degraded,omitempty"`
	Duration time.Duration       `json:"duration"`
}

// Family returns the counts of f.
func (r Report) Family(f repository.Family) Counts {
	return r.Families[f]
}

// Failed reports whether any record failed to write.
func (r Report) Failed() int {
	n := 0
	for _, c := range r.Families {
		n += c.Failed
	}
	return n
}

// tally is written from writer goroutines.
type tally struct {
	mu     sync.Mutex
	counts map[repository.Family]*Counts
}

func newTally() *tally {
	t := &tally{counts: make(map[repository.Family]*Counts, len(repository.Families))}
	for _, f := range repository.Families {
		t.counts[f] = &Counts{}
	}
	return t
}

func (t *tally) record(f repository.Family, o Outcome) {
	t.mu.Lock()
	t.counts[f].add(o)
	t.mu.Unlock()
	metrics.RecordSyncOutcome(string(f), string(o))
}

func (t *tally) snapshot() map[repository.Family]Counts {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[repository.Family]Counts, len(t.counts))
	for f, c := range t.counts {
		out[f] = *c
	}
	return out
}
