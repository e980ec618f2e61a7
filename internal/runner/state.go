package runner

import (
	"fmt"
	"slices"
	"time"

	"github.com/xkilldash9x/scenario-cli/api/schemas"
)

// allowed lists the legal successors of each non-terminal state. Failed is
// reachable from every non-terminal state and is not listed.
var allowed = map[schemas.RunState][]schemas.RunState{
	schemas.StateIdle:       {schemas.StateLaunching},
	schemas.StateLaunching:  {schemas.StateNavigating},
	schemas.StateNavigating: {schemas.StateRunning, schemas.StateCapturing},
	schemas.StateRunning:    {schemas.StateRunning, schemas.StateCapturing},
	schemas.StateCapturing:  {schemas.StateDone},
}

// machine tracks the run state and records every transition into the report.
type machine struct {
	report *schemas.RunReport
	now    func() time.Time
}

func newMachine(report *schemas.RunReport, now func() time.Time) *machine {
	report.State = schemas.StateIdle
	report.Transitions = append(report.Transitions, schemas.Transition{State: schemas.StateIdle, StepIndex: -1, At: now()})
	return &machine{report: report, now: now}
}

func (m *machine) state() schemas.RunState { return m.report.State }

// to moves into next. stepIndex is recorded for the running state and -1 is stored otherwise.
func (m *machine) to(next schemas.RunState, stepIndex int) error {
	cur := m.report.State
	if cur.Terminal() {
		return fmt.Errorf("illegal transition %s -> %s: run already finished", cur, next)
	}
	if next != schemas.StateFailed && !slices.Contains(allowed[cur], next) {
		return fmt.Errorf("illegal transition %s -> %s", cur, next)
	}
	if next != schemas.StateRunning {
		stepIndex = -1
	}
	m.report.State = next
	m.report.Transitions = append(m.report.Transitions, schemas.Transition{State: next, StepIndex: stepIndex, At: m.now()})
	return nil
}
