package schemas

import "time"

// -- Run Report Schemas --

// RunState is a state of the scenario runner's state machine.
type RunState string

const (
	StateIdle       RunState = "idle"
	StateLaunching  RunState = "launching"
	StateNavigating RunState = "navigating"
	StateRunning    RunState = "running"
	StateCapturing  RunState = "capturing"
	StateDone       RunState = "done"
	StateFailed     RunState = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s RunState) Terminal() bool { return s == StateDone || s == StateFailed }

// Transition records entry into a state. StepIndex is -1 outside the running state.
type Transition struct {
	State     RunState  `json:"state"`
	StepIndex int       `json:"step_index"`
	At        time.Time `json:"at"`
}

// StepStatus is the outcome of a single step.
type StepStatus string

const (
	StepPassed  StepStatus = "passed"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// StepResult records the execution of one step.
type StepResult struct {
	Index      int        `json:"index"`
	Name       string     `json:"name"`
	Kind       StepKind   `json:"kind"`
	Locator    string     `json:"locator,omitempty"`
	Status     StepStatus `json:"status"`
	StartedAt  time.Time  `json:"started_at,omitempty"`
	DurationMs int64      `json:"duration_ms"`
	Error      string     `json:"error,omitempty"`
}

// DialogRecord is a native dialog that was intercepted and dismissed during a run.
type DialogRecord struct {
	Type    string    `json:"type"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// RunReport is the complete record of a scenario execution.
type RunReport struct {
	ID          string         `json:"id"`
	Scenario    string         `json:"scenario"`
	Driver      string         `json:"driver"`
	TargetURL   string         `json:"target_url"`
	Revision    string         `json:"revision,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	DurationMs  int64          `json:"duration_ms"`
	State       RunState       `json:"state"`
	Steps       []StepResult   `json:"steps"`
	Dialogs     []DialogRecord `json:"dialogs"`
	Transitions []Transition   `json:"transitions"`
	Artifact    string         `json:"artifact,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Succeeded reports whether the run reached the done state.
func (r *RunReport) Succeeded() bool { return r != nil && r.State == StateDone }
