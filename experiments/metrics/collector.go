package metrics

import (
	"sync/atomic"
	"time"
)

type SearchMetric struct {
	Iterations     int
	Duration       time.Duration
	Simulations    int
	Expansions     int
	TerminalLeaves int
	IsTreeReused   bool
}

type StepMetric struct {
	Step int
	SearchMetric
}

type EpisodeMetric struct {
	Run         int
	Seed        uint64
	Goal        string
	Manual      string
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	TotalSteps  int
	TotalReward float64
	Reached     bool
}

type Collector interface {
	Start(iterations int)
	SetTreeReused(value bool)
	AddSimulation()
	AddExpansion()
	AddTerminalLeaf()
	Complete() SearchMetric
}

type collector struct {
	iterations     int
	startTime      time.Time
	simulations    atomic.Int32
	expansions     atomic.Int32
	terminalLeaves atomic.Int32
	isTreeReused   atomic.Bool
}

func NewCollector() Collector {
	return &collector{}
}

func (m *collector) SetTreeReused(value bool) {
	m.isTreeReused.Store(value)
}

// Start resets the counters for a new search.
func (m *collector) Start(iterations int) {
	m.startTime = time.Now()
	m.iterations = iterations
	m.simulations.Store(0)
	m.expansions.Store(0)
	m.terminalLeaves.Store(0)
}

func (m *collector) AddSimulation() {
	m.simulations.Add(1)
}

func (m *collector) AddExpansion() {
	m.expansions.Add(1)
}

func (m *collector) AddTerminalLeaf() {
	m.terminalLeaves.Add(1)
}

func (m *collector) Complete() SearchMetric {
	return SearchMetric{
		Iterations:     m.iterations,
		Duration:       time.Since(m.startTime),
		Simulations:    int(m.simulations.Load()),
		Expansions:     int(m.expansions.Load()),
		TerminalLeaves: int(m.terminalLeaves.Load()),
		IsTreeReused:   m.isTreeReused.Load(),
	}
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) Start(iterations int)     {}
func (m *dummyCollector) SetTreeReused(value bool) {}
func (m *dummyCollector) AddSimulation()           {}
func (m *dummyCollector) AddExpansion()            {}
func (m *dummyCollector) AddTerminalLeaf()         {}
func (m *dummyCollector) Complete() SearchMetric   { return SearchMetric{} }
