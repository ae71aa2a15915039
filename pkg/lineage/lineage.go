package lineage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Bunka-lab/epstein-files/pkg/common"
	"github.com/Bunka-lab/epstein-files/pkg/logger"
)

// A CycleError reports a run registration that would make the dependency
// graph cyclic. Registration is refused, nothing is recorded.
type CycleError struct {
	RunID string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("lineage: registering run %s would create a dependency cycle", e.RunID)
}

// A Tracker maintains the DAG of classification runs. Every run declares
// the table.column sets it read and wrote; a run depends on another when it
// reads something the other wrote. The Tracker only reports what has to be
// recomputed, it never touches pipeline data itself.
//
// A Tracker should be created using NewTracker. It is safe for concurrent
// use.
type Tracker struct {
	lock  sync.Mutex
	runs  map[string]common.ClassificationRun
	order []string
	stale map[string]bool
}

func NewTracker() *Tracker {
	return &Tracker{
		runs:  make(map[string]common.ClassificationRun),
		stale: make(map[string]bool),
	}
}

// Register inserts a run into the DAG. It fails with a CycleError when the
// run's declared inputs and outputs would close a dependency loop, and with
// a plain error on duplicate or empty run ids. On failure the Tracker is
// left unchanged.
func (t *Tracker) Register(run common.ClassificationRun) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if run.RunID == "" {
		return fmt.Errorf("lineage: run id is required")
	}
	if _, ok := t.runs[run.RunID]; ok {
		return fmt.Errorf("lineage: run %s is already registered", run.RunID)
	}

	if overlaps(run.Outputs, run.Inputs) {
		return &CycleError{RunID: run.RunID}
	}

	// The new run closes a loop when a consumer of its outputs can
	// already reach a producer of its inputs.
	reachable := t.downstreamOf(run.Outputs)
	for _, id := range t.order {
		if !reachable[id] {
			continue
		}
		if overlaps(t.runs[id].Outputs, run.Inputs) {
			return &CycleError{RunID: run.RunID}
		}
	}

	t.runs[run.RunID] = run
	t.order = append(t.order, run.RunID)
	logger.Info("[Lineage] run registered",
		"run_id", run.RunID,
		"run_type", run.RunType,
		"inputs", len(run.Inputs),
		"outputs", len(run.Outputs))
	return nil
}

// Invalidate marks the run and everything transitively downstream of it as
// stale and returns the stale set in sorted order.
func (t *Tracker) Invalidate(runID string) ([]string, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	staleSet, err := t.staleSetOf(runID)
	if err != nil {
		return nil, err
	}
	for id := range staleSet {
		t.stale[id] = true
	}

	out := make([]string, 0, len(staleSet))
	for id := range staleSet {
		out = append(out, id)
	}
	sort.Strings(out)
	logger.Info("[Lineage] runs invalidated", "run_id", runID, "stale", len(out))
	return out, nil
}

// Impact returns the stale set of the run in topological order, which is
// the order the affected runs must be re-executed in to restore
// consistency. It does not change any staleness state.
func (t *Tracker) Impact(runID string) ([]string, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	staleSet, err := t.staleSetOf(runID)
	if err != nil {
		return nil, err
	}

	// Kahn's algorithm restricted to the stale subgraph, picking the
	// lexicographically smallest ready run each round for stable output.
	indegree := make(map[string]int, len(staleSet))
	for id := range staleSet {
		indegree[id] = 0
	}
	for id := range staleSet {
		for _, consumer := range t.consumersOf(id) {
			if _, ok := staleSet[consumer]; ok {
				indegree[consumer]++
			}
		}
	}

	var ready []string
	for id, degree := range indegree {
		if degree == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	out := make([]string, 0, len(staleSet))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		out = append(out, id)
		for _, consumer := range t.consumersOf(id) {
			if _, ok := indegree[consumer]; !ok {
				continue
			}
			indegree[consumer]--
			if indegree[consumer] == 0 {
				ready = insertSorted(ready, consumer)
			}
		}
	}
	return out, nil
}

// IsStale reports whether a run has been invalidated.
func (t *Tracker) IsStale(runID string) bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.stale[runID]
}

// Runs returns the registered runs in registration order.
func (t *Tracker) Runs() []common.ClassificationRun {
	t.lock.Lock()
	defer t.lock.Unlock()
	out := make([]common.ClassificationRun, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.runs[id])
	}
	return out
}

// staleSetOf computes the run and its transitive consumers. Callers hold
// the lock.
func (t *Tracker) staleSetOf(runID string) (map[string]bool, error) {
	if _, ok := t.runs[runID]; !ok {
		return nil, fmt.Errorf("lineage: unknown run %s", runID)
	}
	staleSet := map[string]bool{runID: true}
	queue := []string{runID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, consumer := range t.consumersOf(id) {
			if staleSet[consumer] {
				continue
			}
			staleSet[consumer] = true
			queue = append(queue, consumer)
		}
	}
	return staleSet, nil
}

// consumersOf lists the runs that read any column the given run wrote, in
// registration order. Callers hold the lock.
func (t *Tracker) consumersOf(runID string) []string {
	outputs := t.runs[runID].Outputs
	var out []string
	for _, id := range t.order {
		if id == runID {
			continue
		}
		if overlaps(outputs, t.runs[id].Inputs) {
			out = append(out, id)
		}
	}
	return out
}

// downstreamOf computes every run reachable from the given output columns.
// Callers hold the lock.
func (t *Tracker) downstreamOf(outputs []string) map[string]bool {
	reachable := make(map[string]bool)
	var queue []string
	for _, id := range t.order {
		if overlaps(outputs, t.runs[id].Inputs) {
			reachable[id] = true
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, consumer := range t.consumersOf(id) {
			if reachable[consumer] {
				continue
			}
			reachable[consumer] = true
			queue = append(queue, consumer)
		}
	}
	return reachable
}

func overlaps(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, ref := range a {
		set[ref] = true
	}
	for _, ref := range b {
		if set[ref] {
			return true
		}
	}
	return false
}

func insertSorted(list []string, id string) []string {
	idx := sort.SearchStrings(list, id)
	list = append(list, "")
	copy(list[idx+1:], list[idx:])
	list[idx] = id
	return list
}
