package job

import "fmt"

// Stage is the position of a job in the pipeline. It only moves forward.
type Stage string

const (
	StageAuthorized   Stage = "authorized"
	StageTranscribing Stage = "transcribing"
	StageTranscribed  Stage = "transcribed"
	StageDelivering   Stage = "delivering"
	StageDelivered    Stage = "delivered"
	StageFailed       Stage = "failed"
)

var stageOrder = map[Stage]int{
	StageAuthorized:   0,
	StageTranscribing: 1,
	StageTranscribed:  2,
	StageDelivering:   3,
	StageDelivered:    4,
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageDelivered || s == StageFailed
}

// Job is the unit of work flowing through the pipeline. It is never stored;
// each stage rebuilds it from its trigger.
type Job struct {
	Identity
	OwnerContact   string
	Stage          Stage
	TranscriptText string
}

// New returns a job at the given stage. Stages other than the first use it to
// rebuild a job they were triggered for.
func New(id Identity, stage Stage) *Job {
	return &Job{Identity: id, Stage: stage}
}

// Advance moves the job to next. Any non-terminal stage may fail; otherwise
// next must come strictly after the current stage.
func (j *Job) Advance(next Stage) error {
	if j.Stage.Terminal() {
		return fmt.Errorf("job %s already %s", j.CorrelationID, j.Stage)
	}
	if next == StageFailed {
		j.Stage = next
		return nil
	}
	cur, ok := stageOrder[j.Stage]
	if !ok {
		return fmt.Errorf("job %s has unknown stage %q", j.CorrelationID, j.Stage)
	}
	nxt, ok := stageOrder[next]
	if !ok {
		return fmt.Errorf("unknown stage %q", next)
	}
	if nxt <= cur {
		return fmt.Errorf("job %s cannot move from %s back to %s", j.CorrelationID, j.Stage, next)
	}
	j.Stage = next
	return nil
}
