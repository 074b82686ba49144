package engine

// HardWeight marks a constraint as non-negotiable: placements violating it
// are rejected outright during construction and annealing moves. Anything
// below only degrades the score.
const HardWeight = 100.0

// ConstraintType tags each variant for diagnostics and violation counting.
type ConstraintType string

const (
	ConstraintTeacherNotAvailable        ConstraintType = "TEACHER_NOT_AVAILABLE"
	ConstraintStudentSetNotAvailable     ConstraintType = "STUDENT_SET_NOT_AVAILABLE"
	ConstraintRoomNotAvailable           ConstraintType = "ROOM_NOT_AVAILABLE"
	ConstraintTeacherMaxDaysPerWeek      ConstraintType = "TEACHER_MAX_DAYS_PER_WEEK"
	ConstraintTeacherMaxConsecutiveHours ConstraintType = "TEACHER_MAX_CONSECUTIVE_HOURS"
	ConstraintTeacherMaxHoursPerDay      ConstraintType = "TEACHER_MAX_HOURS_PER_DAY"
	ConstraintTeacherMaxSpanPerDay       ConstraintType = "TEACHER_MAX_SPAN_PER_DAY"
	ConstraintTeacherMinGapsPerDay       ConstraintType = "TEACHER_MIN_GAPS_PER_DAY"
	ConstraintStudentSetMaxHoursPerDay   ConstraintType = "STUDENT_SET_MAX_HOURS_PER_DAY"
	ConstraintPreferredStartingTimes     ConstraintType = "ACTIVITY_PREFERRED_STARTING_TIMES"
	ConstraintPreferredRooms             ConstraintType = "ACTIVITY_PREFERRED_ROOMS"
	ConstraintActivitiesNotOverlapping   ConstraintType = "ACTIVITIES_NOT_OVERLAPPING"
	ConstraintMinGapsBetweenActivities   ConstraintType = "MIN_GAPS_BETWEEN_ACTIVITIES"
)

// Constraint is the uniform capability every variant implements. IsSatisfied
// must not mutate the assignment and returns true when the constraint is
// inactive.
type Constraint interface {
	Type() ConstraintType
	Weight() float64
	Active() bool
	SetActive(active bool)
	IsSatisfied(a *Assignment) bool
}

type baseConstraint struct {
	weight float64
	active bool
}

func newBase(weight float64) baseConstraint {
	if weight < 0 {
		weight = 0
	}
	if weight > HardWeight {
		weight = HardWeight
	}
	return baseConstraint{weight: weight, active: true}
}

func (b *baseConstraint) Weight() float64 { return b.weight }
func (b *baseConstraint) Active() bool    { return b.active }

// SetActive toggles the constraint. An inactive constraint is vacuously
// satisfied and contributes no penalty.
func (b *baseConstraint) SetActive(active bool) { b.active = active }

func snapshotPeriods(periods []Period) []Period {
	if len(periods) == 0 {
		return nil
	}
	copied := make([]Period, len(periods))
	copy(copied, periods)
	return copied
}

// overlaps reports whether the [start, start+duration) ranges of two
// same-day placements intersect.
func overlaps(aStart, aDuration, bStart, bDuration int) bool {
	return aStart < bStart+bDuration && bStart < aStart+aDuration
}
