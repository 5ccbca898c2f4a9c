package observability

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultObjectiveWindow is used when an Objective leaves Window unset.
const DefaultObjectiveWindow = time.Hour

// Objective is a service level objective for one tracked operation, such as
// "effect.http".
type Objective struct {
	Operation   string        `yaml:"operation" json:"operation"`
	LatencyP99  time.Duration `yaml:"latency_p99" json:"latency_p99"`
	SuccessRate float64       `yaml:"success_rate" json:"success_rate"` // 0-1
	Window      time.Duration `yaml:"window" json:"window"`
}

// SLOObservation is a single finished operation.
type SLOObservation struct {
	Operation string        `json:"operation"`
	Latency   time.Duration `json:"latency"`
	Success   bool          `json:"success"`
	Timestamp time.Time     `json:"timestamp"`
}

// SLOStatus reports current compliance.
type SLOStatus struct {
	Operation        string  `json:"operation"`
	CurrentP99       float64 `json:"current_p99_ms"`
	CurrentSuccess   float64 `json:"current_success_rate"`
	InCompliance     bool    `json:"in_compliance"`
	BurnRate         float64 `json:"burn_rate"`         // >1 means burning faster than budget allows
	ErrorBudgetLeft  float64 `json:"error_budget_left"` // percentage remaining
	ObservationCount int     `json:"observation_count"`
}

// SLOTracker keeps a sliding window of observations for every operation
// that has an objective. Observations of other operations are dropped.
type SLOTracker struct {
	mu           sync.Mutex
	objectives   map[string]Objective
	observations map[string][]SLOObservation
	clock        func() time.Time
}

func NewSLOTracker(objectives ...Objective) *SLOTracker {
	t := &SLOTracker{
		objectives:   make(map[string]Objective),
		observations: make(map[string][]SLOObservation),
		clock:        time.Now,
	}
	for _, o := range objectives {
		t.SetObjective(o)
	}
	return t
}

// WithClock overrides clock for testing.
func (t *SLOTracker) WithClock(clock func() time.Time) *SLOTracker {
	t.clock = clock
	return t
}

func (t *SLOTracker) SetObjective(o Objective) {
	if o.Window <= 0 {
		o.Window = DefaultObjectiveWindow
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.objectives[o.Operation] = o
}

// Record adds an observation and evicts those that have left the window.
func (t *SLOTracker) Record(obs SLOObservation) {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, ok := t.objectives[obs.Operation]
	if !ok {
		return
	}
	now := t.clock()
	if obs.Timestamp.IsZero() {
		obs.Timestamp = now
	}
	t.observations[obs.Operation] = append(prune(t.observations[obs.Operation], now.Add(-o.Window)), obs)
}

func prune(obs []SLOObservation, from time.Time) []SLOObservation {
	i := 0
	for i < len(obs) && !obs[i].Timestamp.After(from) {
		i++
	}
	return obs[i:]
}

// Status computes current compliance for operation.
func (t *SLOTracker) Status(operation string) (*SLOStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, ok := t.objectives[operation]
	if !ok {
		return nil, fmt.Errorf("no objective for operation %q", operation)
	}
	return t.status(o), nil
}

// Statuses reports every objective, ordered by operation.
func (t *SLOTracker) Statuses() []SLOStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]SLOStatus, 0, len(t.objectives))
	for _, o := range t.objectives {
		out = append(out, *t.status(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out
}

func (t *SLOTracker) status(o Objective) *SLOStatus {
	windowed := prune(t.observations[o.Operation], t.clock().Add(-o.Window))
	if len(windowed) == 0 {
		return &SLOStatus{Operation: o.Operation, InCompliance: true, ErrorBudgetLeft: 100.0}
	}

	successCount := 0
	latencies := make([]float64, len(windowed))
	for i, obs := range windowed {
		if obs.Success {
			successCount++
		}
		latencies[i] = float64(obs.Latency.Milliseconds())
	}
	successRate := float64(successCount) / float64(len(windowed))

	sort.Float64s(latencies)
	p99Index := int(float64(len(latencies)) * 0.99)
	if p99Index >= len(latencies) {
		p99Index = len(latencies) - 1
	}
	p99 := latencies[p99Index]

	latencyOK := o.LatencyP99 <= 0 || p99 <= float64(o.LatencyP99.Milliseconds())
	successOK := successRate >= o.SuccessRate

	errorBudget := 1.0 - o.SuccessRate
	errorRate := 1.0 - successRate
	var burnRate, budgetLeft float64
	switch {
	case errorBudget > 0:
		burnRate = errorRate / errorBudget
		budgetLeft = max(0, 100.0*(1.0-burnRate))
	case errorRate == 0:
		budgetLeft = 100.0
	}

	return &SLOStatus{
		Operation:        o.Operation,
		CurrentP99:       p99,
		CurrentSuccess:   successRate,
		InCompliance:     latencyOK && successOK,
		BurnRate:         burnRate,
		ErrorBudgetLeft:  budgetLeft,
		ObservationCount: len(windowed),
	}
}
