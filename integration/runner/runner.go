package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/tracker-engine/internal/handlers"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running tracker-engine API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
	WorldOverride     string // If set, overrides the world for all test cases
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 60 * time.Second},
		Timeout:           30 * time.Second,
		Logger:            func(string, ...interface{}) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}
		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite executes a complete test suite on a fresh tracker
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	world := suite.World
	if r.WorldOverride != "" {
		world = r.WorldOverride
	}
	info, err := CreateTracker(ctx, r.Client, r.BaseURL, world)
	if err != nil {
		result.Error = fmt.Errorf("failed to create tracker: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.Tracker = info.ID

	if suite.Seed != nil {
		if err := PutSnapshot(ctx, r.Client, r.BaseURL, info.ID, suite.Seed); err != nil {
			result.Error = fmt.Errorf("failed to seed tracker: %w", err)
			result.Duration = time.Since(start)
			return result, result.Error
		}
	}

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.runStep(ctx, info.ID, step)
		stepResult.TestName = suite.Name
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}
		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// runStep applies the step's mutation, if any, and checks expectations
// against the tracker afterwards.
func (r *Runner) runStep(ctx context.Context, id uuid.UUID, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{StepName: step.Name}
	fail := func(err error) TestResult {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	if step.Mutation == nil {
		result.IsCheck = true
	} else {
		before, err := GetTracker(ctx, r.Client, r.BaseURL, id)
		if err != nil {
			return fail(fmt.Errorf("failed to get tracker before mutation: %w", err))
		}

		want := http.StatusOK
		if step.Async {
			want = http.StatusAccepted
		}
		if step.Expectations.Status != nil {
			want = *step.Expectations.Status
		}
		resp, err := PostMutation(ctx, r.Client, r.BaseURL, id, *step.Mutation, step.Async, want)
		if err != nil {
			return fail(err)
		}
		result.RequestID = resp.RequestID

		if step.Async && want == http.StatusAccepted {
			if _, err := PollForUpdate(ctx, r.Client, r.BaseURL, id, before.UpdatedAt); err != nil {
				return fail(err)
			}
		}
	}

	after, err := GetTracker(ctx, r.Client, r.BaseURL, id)
	if err != nil {
		return fail(fmt.Errorf("failed to get tracker: %w", err))
	}
	if err := checkExpectations(step.Expectations, after); err != nil {
		return fail(fmt.Errorf("expectation failed: %w", err))
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result
}

// checkExpectations validates the expectations against the tracker view
func checkExpectations(exp Expectations, tr *handlers.TrackerResponse) error {
	var errs []string

	levels := make(map[string]string)
	available := make(map[string]int)
	for _, loc := range tr.Locations {
		levels[loc.ID] = loc.Level.String()
		available[loc.ID] = loc.Available
		for _, s := range loc.Sections {
			levels[loc.ID+"/"+s.ID] = s.Level.String()
		}
	}
	for id, want := range exp.Locations {
		if got, ok := levels[id]; !ok {
			errs = append(errs, fmt.Sprintf("unknown location %s", id))
		} else if got != want {
			errs = append(errs, fmt.Sprintf("location %s: expected %s, got %s", id, want, got))
		}
	}
	for id, want := range exp.Sections {
		if got, ok := levels[id]; !ok {
			errs = append(errs, fmt.Sprintf("unknown section %s", id))
		} else if got != want {
			errs = append(errs, fmt.Sprintf("section %s: expected %s, got %s", id, want, got))
		}
	}
	for id, want := range exp.Available {
		if got := available[id]; got != want {
			errs = append(errs, fmt.Sprintf("location %s: expected %d available, got %d", id, want, got))
		}
	}

	items := make(map[string]int)
	for _, it := range tr.Items {
		items[it.ID] = it.Count
	}
	for id, want := range exp.Items {
		if got := items[id]; got != want {
			errs = append(errs, fmt.Sprintf("item %s: expected %d, got %d", id, want, got))
		}
	}

	settings := make(map[string]string)
	for _, s := range tr.Settings {
		settings[s.ID] = s.Value
	}
	for id, want := range exp.Settings {
		if got := settings[id]; got != want {
			errs = append(errs, fmt.Sprintf("setting %s: expected %s, got %s", id, want, got))
		}
	}

	breaks := make(map[string]bool)
	for _, b := range tr.SequenceBreaks {
		breaks[b.ID] = b.Enabled
	}
	for id, want := range exp.Breaks {
		if got := breaks[id]; got != want {
			errs = append(errs, fmt.Sprintf("sequence break %s: expected %t, got %t", id, want, got))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
