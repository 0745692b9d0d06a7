package entity

import "fmt"

// CheckinStage is the resumable position within a check-in flow.
//
// The flow is linear: opening -> questions -> reflection -> complete.
// Next is total; advancing a complete check-in stays at complete.
type CheckinStage string

const (
	StageOpening    CheckinStage = "opening"
	StageQuestions  CheckinStage = "questions"
	StageReflection CheckinStage = "reflection"
	StageComplete   CheckinStage = "complete"
)

// Valid reports whether the stage is one of the known values.
func (s CheckinStage) Valid() bool {
	switch s {
	case StageOpening, StageQuestions, StageReflection, StageComplete:
		return true
	}
	return false
}

// Next returns the stage that follows s.
func (s CheckinStage) Next() CheckinStage {
	switch s {
	case StageOpening:
		return StageQuestions
	case StageQuestions:
		return StageReflection
	case StageReflection:
		return StageComplete
	default:
		return StageComplete
	}
}

// Advance moves the check-in to the next stage, rejecting unknown input
// states so a hand-edited document cannot smuggle in an arbitrary stage.
func (c *Checkin) Advance() error {
	if !c.Stage.Valid() {
		return fmt.Errorf("cannot advance from unknown stage %q", c.Stage)
	}
	c.Stage = c.Stage.Next()
	c.Touch()
	return nil
}

// ParseCheckinStage validates a stored stage tag, falling back to the
// opening stage for values it does not recognize.
func ParseCheckinStage(s string) CheckinStage {
	st := CheckinStage(s)
	if st.Valid() {
		return st
	}
	return StageOpening
}

// FrameworkStage is the position within a guided framework exercise.
//
// The flow is linear: intro -> explore -> synthesize -> complete.
type FrameworkStage string

const (
	FrameworkIntro      FrameworkStage = "intro"
	FrameworkExplore    FrameworkStage = "explore"
	FrameworkSynthesize FrameworkStage = "synthesize"
	FrameworkComplete   FrameworkStage = "complete"
)

// Valid reports whether the stage is one of the known values.
func (s FrameworkStage) Valid() bool {
	switch s {
	case FrameworkIntro, FrameworkExplore, FrameworkSynthesize, FrameworkComplete:
		return true
	}
	return false
}

// Next returns the stage that follows s.
func (s FrameworkStage) Next() FrameworkStage {
	switch s {
	case FrameworkIntro:
		return FrameworkExplore
	case FrameworkExplore:
		return FrameworkSynthesize
	case FrameworkSynthesize:
		return FrameworkComplete
	default:
		return FrameworkComplete
	}
}

// Advance moves the session to the next stage.
func (f *FrameworkSession) Advance() error {
	if !f.Stage.Valid() {
		return fmt.Errorf("cannot advance from unknown stage %q", f.Stage)
	}
	f.Stage = f.Stage.Next()
	f.Touch()
	return nil
}

// ParseFrameworkStage validates a stored stage tag, falling back to the
// intro stage for values it does not recognize.
func ParseFrameworkStage(s string) FrameworkStage {
	st := FrameworkStage(s)
	if st.Valid() {
		return st
	}
	return FrameworkIntro
}
