package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeacherNotAvailableConstraint(t *testing.T) {
	teacher := &Teacher{ID: "t1", NotAvailable: []Period{{Day: 0, Hour: 2}}}
	c := NewTeacherNotAvailableConstraint(teacher, HardWeight)
	a := NewAssignment()

	assert.True(t, c.IsSatisfied(a))

	act := activityFixture("a1", 2, teacher)
	require.True(t, a.Assign(act, Period{Day: 0, Hour: 1}, "r1"))
	// covers hours 1-2, clipping the blocked hour
	assert.False(t, c.IsSatisfied(a))

	a.Remove(act)
	require.True(t, a.Assign(act, Period{Day: 0, Hour: 3}, "r1"))
	assert.True(t, c.IsSatisfied(a))
}

func TestTeacherNotAvailableSnapshotsPeriods(t *testing.T) {
	teacher := &Teacher{ID: "t1", NotAvailable: []Period{{Day: 0, Hour: 0}}}
	c := NewTeacherNotAvailableConstraint(teacher, HardWeight)

	// later entity mutation must not leak into the built constraint
	teacher.NotAvailable = append(teacher.NotAvailable, Period{Day: 1, Hour: 0})

	a := NewAssignment()
	require.True(t, a.Assign(activityFixture("a1", 1, teacher), Period{Day: 1, Hour: 0}, "r1"))
	assert.True(t, c.IsSatisfied(a))
}

func TestStudentSetNotAvailableConstraint(t *testing.T) {
	set := &StudentSet{ID: "g1", NotAvailable: []Period{{Day: 1, Hour: 0}}}
	c := NewStudentSetNotAvailableConstraint(set, 80)
	a := NewAssignment()

	act := &Activity{ID: "a1", TotalDuration: 1, StudentSets: []*StudentSet{set}}
	require.True(t, a.Assign(act, Period{Day: 1, Hour: 0}, "r1"))
	assert.False(t, c.IsSatisfied(a))

	c.SetActive(false)
	assert.True(t, c.IsSatisfied(a))
}

func TestRoomNotAvailableConstraint(t *testing.T) {
	room := &Room{ID: "r1", NotAvailable: []Period{{Day: 0, Hour: 0}}}
	c := NewRoomNotAvailableConstraint(room, HardWeight)
	a := NewAssignment()

	assert.True(t, c.IsSatisfied(a))
	require.True(t, a.Assign(activityFixture("a1", 1), Period{Day: 0, Hour: 0}, "r1"))
	assert.False(t, c.IsSatisfied(a))
}

func TestTeacherMaxDaysPerWeekConstraint(t *testing.T) {
	teacher := &Teacher{ID: "t1"}
	c := NewTeacherMaxDaysPerWeekConstraint(teacher, 2, HardWeight)
	a := NewAssignment()

	require.True(t, a.Assign(activityFixture("a1", 1, teacher), Period{Day: 0, Hour: 0}, "r1"))
	require.True(t, a.Assign(activityFixture("a2", 1, teacher), Period{Day: 1, Hour: 0}, "r1"))
	assert.True(t, c.IsSatisfied(a))

	require.True(t, a.Assign(activityFixture("a3", 1, teacher), Period{Day: 2, Hour: 0}, "r1"))
	assert.False(t, c.IsSatisfied(a))
}

func TestTeacherMaxConsecutiveHoursConstraint(t *testing.T) {
	teacher := &Teacher{ID: "t1"}
	c := NewTeacherMaxConsecutiveHoursConstraint(teacher, 2, HardWeight)
	a := NewAssignment()

	require.True(t, a.Assign(activityFixture("a1", 2, teacher), Period{Day: 0, Hour: 0}, "r1"))
	assert.True(t, c.IsSatisfied(a))

	// extends the run to three contiguous hours
	require.True(t, a.Assign(activityFixture("a2", 1, teacher), Period{Day: 0, Hour: 2}, "r2"))
	assert.False(t, c.IsSatisfied(a))

	a.Remove(a.activities["a2"])
	require.True(t, a.Assign(activityFixture("a3", 1, teacher), Period{Day: 0, Hour: 4}, "r2"))
	assert.True(t, c.IsSatisfied(a))
}

func TestTeacherMaxHoursPerDayConstraint(t *testing.T) {
	teacher := &Teacher{ID: "t1"}
	c := NewTeacherMaxHoursPerDayConstraint(teacher, 3, 70)
	a := NewAssignment()

	require.True(t, a.Assign(activityFixture("a1", 2, teacher), Period{Day: 0, Hour: 0}, "r1"))
	require.True(t, a.Assign(activityFixture("a2", 1, teacher), Period{Day: 0, Hour: 4}, "r1"))
	assert.True(t, c.IsSatisfied(a))

	require.True(t, a.Assign(activityFixture("a3", 1, teacher), Period{Day: 0, Hour: 6}, "r1"))
	assert.False(t, c.IsSatisfied(a))
}

func TestTeacherMaxSpanPerDayConstraint(t *testing.T) {
	teacher := &Teacher{ID: "t1"}
	c := NewTeacherMaxSpanPerDayConstraint(teacher, 4, 50)
	a := NewAssignment()

	require.True(t, a.Assign(activityFixture("a1", 1, teacher), Period{Day: 0, Hour: 0}, "r1"))
	require.True(t, a.Assign(activityFixture("a2", 1, teacher), Period{Day: 0, Hour: 3}, "r1"))
	assert.True(t, c.IsSatisfied(a))

	require.True(t, a.Assign(activityFixture("a3", 1, teacher), Period{Day: 0, Hour: 5}, "r1"))
	assert.False(t, c.IsSatisfied(a))
}

func TestTeacherMinGapsPerDayConstraint(t *testing.T) {
	teacher := &Teacher{ID: "t1"}
	c := NewTeacherMinGapsPerDayConstraint(teacher, 2, 40)
	a := NewAssignment()

	// a lone booking is exempt from the spacing floor
	require.True(t, a.Assign(activityFixture("a1", 2, teacher), Period{Day: 0, Hour: 0}, "r1"))
	assert.True(t, c.IsSatisfied(a))

	// a1 ends at hour 1; starting at hour 4 leaves a gap of 2
	require.True(t, a.Assign(activityFixture("a2", 1, teacher), Period{Day: 0, Hour: 4}, "r1"))
	assert.True(t, c.IsSatisfied(a))

	a.Remove(a.activities["a2"])
	require.True(t, a.Assign(activityFixture("a3", 1, teacher), Period{Day: 0, Hour: 3}, "r1"))
	assert.False(t, c.IsSatisfied(a))
}

func TestConstraintDeactivationThroughInterface(t *testing.T) {
	teacher := &Teacher{ID: "t1", NotAvailable: []Period{{Day: 0, Hour: 0}}}
	var c Constraint = NewTeacherNotAvailableConstraint(teacher, HardWeight)
	a := NewAssignment()
	require.True(t, a.Assign(activityFixture("a1", 1, teacher), Period{Day: 0, Hour: 0}, "r1"))
	require.False(t, c.IsSatisfied(a))

	c.SetActive(false)
	assert.False(t, c.Active())
	assert.True(t, c.IsSatisfied(a))
}

func TestStudentSetMaxHoursPerDayConstraint(t *testing.T) {
	set := &StudentSet{ID: "g1"}
	c := NewStudentSetMaxHoursPerDayConstraint(set, 2, HardWeight)
	a := NewAssignment()

	act := &Activity{ID: "a1", TotalDuration: 3, StudentSets: []*StudentSet{set}}
	require.True(t, a.Assign(act, Period{Day: 0, Hour: 0}, "r1"))
	assert.False(t, c.IsSatisfied(a))
}

func TestPreferredStartingTimesConstraint(t *testing.T) {
	act := &Activity{
		ID:                     "a1",
		TotalDuration:          1,
		PreferredStartingTimes: []Period{{Day: 0, Hour: 1}, {Day: 2, Hour: 0}},
	}
	c := NewPreferredStartingTimesConstraint(act, 60)
	a := NewAssignment()

	// unassigned activity is vacuously satisfied
	assert.True(t, c.IsSatisfied(a))

	require.True(t, a.Assign(act, Period{Day: 2, Hour: 0}, "r1"))
	assert.True(t, c.IsSatisfied(a))

	a.Remove(act)
	require.True(t, a.Assign(act, Period{Day: 3, Hour: 0}, "r1"))
	assert.False(t, c.IsSatisfied(a))
}

func TestPreferredStartingTimesWithoutPreferences(t *testing.T) {
	act := &Activity{ID: "a1", TotalDuration: 1}
	c := NewPreferredStartingTimesConstraint(act, 60)
	a := NewAssignment()
	require.True(t, a.Assign(act, Period{Day: 4, Hour: 7}, "r1"))
	assert.True(t, c.IsSatisfied(a))
}

func TestPreferredRoomsConstraint(t *testing.T) {
	act := &Activity{ID: "a1", TotalDuration: 1, PreferredRooms: []string{"lab1", "lab2"}}
	c := NewPreferredRoomsConstraint(act, 90)
	a := NewAssignment()

	assert.True(t, c.IsSatisfied(a))

	require.True(t, a.Assign(act, Period{Day: 0, Hour: 0}, "lab2"))
	assert.True(t, c.IsSatisfied(a))

	a.Remove(act)
	require.True(t, a.Assign(act, Period{Day: 0, Hour: 0}, "gym"))
	assert.False(t, c.IsSatisfied(a))
}

func TestActivitiesNotOverlappingConstraint(t *testing.T) {
	first := &Activity{ID: "a1", TotalDuration: 2}
	second := &Activity{ID: "a2", TotalDuration: 2}
	c := NewActivitiesNotOverlappingConstraint([]*Activity{first, second}, HardWeight)
	a := NewAssignment()

	require.True(t, a.Assign(first, Period{Day: 0, Hour: 0}, "r1"))
	assert.True(t, c.IsSatisfied(a))

	require.True(t, a.Assign(second, Period{Day: 0, Hour: 2}, "r2"))
	assert.True(t, c.IsSatisfied(a))

	// the (day,hour) global index prevents true overlap, so probe the rule
	// directly on separate ledgers sharing a day
	b := NewAssignment()
	require.True(t, b.Assign(first, Period{Day: 1, Hour: 0}, "r1"))
	require.True(t, b.Assign(second, Period{Day: 2, Hour: 1}, "r2"))
	assert.True(t, c.IsSatisfied(b))
}

func TestActivitiesNotOverlappingDetectsOverlap(t *testing.T) {
	first := &Activity{ID: "a1", TotalDuration: 3}
	second := &Activity{ID: "a2", TotalDuration: 2}
	c := NewActivitiesNotOverlappingConstraint([]*Activity{first, second}, HardWeight)

	a := NewAssignment()
	// force the shape by writing the id maps through Assign on distinct rooms
	// and days, then compare against a manual overlap on one day
	require.True(t, a.Assign(first, Period{Day: 0, Hour: 0}, "r1"))
	a.periods["a2"] = Period{Day: 0, Hour: 2}
	a.activities["a2"] = second
	assert.False(t, c.IsSatisfied(a))
}

func TestMinGapsBetweenActivitiesConstraint(t *testing.T) {
	first := &Activity{ID: "a1", TotalDuration: 2}
	second := &Activity{ID: "a2", TotalDuration: 1}
	c := NewMinGapsBetweenActivitiesConstraint([]*Activity{first, second}, 2, 40)
	a := NewAssignment()

	require.True(t, a.Assign(first, Period{Day: 0, Hour: 0}, "r1"))
	// first ends at hour 1; starting at hour 4 leaves a gap of 2
	require.True(t, a.Assign(second, Period{Day: 0, Hour: 4}, "r1"))
	assert.True(t, c.IsSatisfied(a))

	a.Remove(second)
	require.True(t, a.Assign(second, Period{Day: 0, Hour: 3}, "r1"))
	assert.False(t, c.IsSatisfied(a))

	// different days never violate the spacing rule
	a.Remove(second)
	require.True(t, a.Assign(second, Period{Day: 1, Hour: 2}, "r1"))
	assert.True(t, c.IsSatisfied(a))
}

func TestConstraintWeightClamping(t *testing.T) {
	teacher := &Teacher{ID: "t1"}
	assert.Equal(t, HardWeight, NewTeacherNotAvailableConstraint(teacher, 250).Weight())
	assert.Equal(t, 0.0, NewTeacherNotAvailableConstraint(teacher, -5).Weight())
}
