package runner

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/tracker-engine/pkg/engine"
	"github.com/jwebster45206/tracker-engine/pkg/snapshot"
)

// TestSuite defines a complete integration test scenario
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name  string             `json:"name"`
	World string             `json:"world,omitempty"` // Used for regular tests
	Seed  *snapshot.Snapshot `json:"seed,omitempty"`  // Restored before the first step
	Steps []TestStep         `json:"steps,omitempty"` // Used for regular tests
	Cases []string           `json:"cases,omitempty"` // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep is one mutation and what the tracker should look like after it.
// A step without a mutation only checks expectations.
type TestStep struct {
	Name     string           `json:"name,omitempty"`
	Mutation *engine.Mutation `json:"mutation,omitempty"`
	// Async sends the mutation through the worker queue and polls for it.
	Async        bool         `json:"async,omitempty"`
	Expectations Expectations `json:"expect"`
}

// Expectations defines what to check after a test step executes
type Expectations struct {
	// Status is the expected HTTP status of the mutation call.
	Status *int `json:"status,omitempty"`

	Locations map[string]string `json:"locations,omitempty"` // location ID -> level name
	Sections  map[string]string `json:"sections,omitempty"`  // "location/section" -> level name
	Available map[string]int    `json:"available,omitempty"` // location ID -> available count
	Items     map[string]int    `json:"items,omitempty"`     // item ID -> count
	Settings  map[string]string `json:"settings,omitempty"`
	Breaks    map[string]bool   `json:"sequence_breaks,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName  string
	StepName  string
	Success   bool
	Error     error
	Duration  time.Duration
	RequestID string
	IsCheck   bool // True for steps without a mutation
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job      TestJob
	Results  []TestResult
	Error    error
	Duration time.Duration
	Tracker  uuid.UUID // ID of the tracker used for this test
}
