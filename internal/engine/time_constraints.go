package engine

import "sort"

// TeacherNotAvailableConstraint keeps a teacher's activities off the periods
// the teacher blacklisted. The blacklist is snapshotted at construction.
type TeacherNotAvailableConstraint struct {
	baseConstraint
	teacherID string
	periods   []Period
}

// NewTeacherNotAvailableConstraint snapshots the teacher's unavailable
// periods.
func NewTeacherNotAvailableConstraint(t *Teacher, weight float64) *TeacherNotAvailableConstraint {
	return &TeacherNotAvailableConstraint{
		baseConstraint: newBase(weight),
		teacherID:      t.ID,
		periods:        snapshotPeriods(t.NotAvailable),
	}
}

func (c *TeacherNotAvailableConstraint) Type() ConstraintType { return ConstraintTeacherNotAvailable }

func (c *TeacherNotAvailableConstraint) IsSatisfied(a *Assignment) bool {
	if !c.active {
		return true
	}
	return entityClearOfPeriods(a, a.ActivitiesForTeacher(c.teacherID), c.periods)
}

// StudentSetNotAvailableConstraint mirrors TeacherNotAvailableConstraint for
// a student set.
type StudentSetNotAvailableConstraint struct {
	baseConstraint
	studentSetID string
	periods      []Period
}

// NewStudentSetNotAvailableConstraint snapshots the set's unavailable periods.
func NewStudentSetNotAvailableConstraint(s *StudentSet, weight float64) *StudentSetNotAvailableConstraint {
	return &StudentSetNotAvailableConstraint{
		baseConstraint: newBase(weight),
		studentSetID:   s.ID,
		periods:        snapshotPeriods(s.NotAvailable),
	}
}

func (c *StudentSetNotAvailableConstraint) Type() ConstraintType {
	return ConstraintStudentSetNotAvailable
}

func (c *StudentSetNotAvailableConstraint) IsSatisfied(a *Assignment) bool {
	if !c.active {
		return true
	}
	return entityClearOfPeriods(a, a.ActivitiesForStudentSet(c.studentSetID), c.periods)
}

func entityClearOfPeriods(a *Assignment, acts []*Activity, blocked []Period) bool {
	for _, act := range acts {
		period, ok := a.PeriodFor(act.ID)
		if !ok {
			continue
		}
		for _, block := range blocked {
			if block.Day == period.Day && block.Hour >= period.Hour && block.Hour < period.Hour+act.TotalDuration {
				return false
			}
		}
	}
	return true
}

// TeacherMaxDaysPerWeekConstraint caps the distinct days a teacher works.
type TeacherMaxDaysPerWeekConstraint struct {
	baseConstraint
	teacherID string
	maxDays   int
}

// NewTeacherMaxDaysPerWeekConstraint builds the weekly day cap.
func NewTeacherMaxDaysPerWeekConstraint(t *Teacher, maxDays int, weight float64) *TeacherMaxDaysPerWeekConstraint {
	return &TeacherMaxDaysPerWeekConstraint{
		baseConstraint: newBase(weight),
		teacherID:      t.ID,
		maxDays:        maxDays,
	}
}

func (c *TeacherMaxDaysPerWeekConstraint) Type() ConstraintType {
	return ConstraintTeacherMaxDaysPerWeek
}

func (c *TeacherMaxDaysPerWeekConstraint) IsSatisfied(a *Assignment) bool {
	if !c.active || c.maxDays <= 0 {
		return true
	}
	return len(a.WorkingDaysForTeacher(c.teacherID)) <= c.maxDays
}

// TeacherMaxConsecutiveHoursConstraint caps the longest contiguous run of
// occupied hours on any day.
type TeacherMaxConsecutiveHoursConstraint struct {
	baseConstraint
	teacherID string
	maxHours  int
}

// NewTeacherMaxConsecutiveHoursConstraint builds the contiguous-hours cap.
func NewTeacherMaxConsecutiveHoursConstraint(t *Teacher, maxHours int, weight float64) *TeacherMaxConsecutiveHoursConstraint {
	return &TeacherMaxConsecutiveHoursConstraint{
		baseConstraint: newBase(weight),
		teacherID:      t.ID,
		maxHours:       maxHours,
	}
}

func (c *TeacherMaxConsecutiveHoursConstraint) Type() ConstraintType {
	return ConstraintTeacherMaxConsecutiveHours
}

func (c *TeacherMaxConsecutiveHoursConstraint) IsSatisfied(a *Assignment) bool {
	if !c.active || c.maxHours <= 0 {
		return true
	}
	for _, day := range a.WorkingDaysForTeacher(c.teacherID) {
		if a.LongestRunForTeacherOnDay(c.teacherID, day) > c.maxHours {
			return false
		}
	}
	return true
}

// TeacherMaxHoursPerDayConstraint caps total occupied hours per day.
type TeacherMaxHoursPerDayConstraint struct {
	baseConstraint
	teacherID string
	maxHours  int
}

// NewTeacherMaxHoursPerDayConstraint builds the daily hours cap.
func NewTeacherMaxHoursPerDayConstraint(t *Teacher, maxHours int, weight float64) *TeacherMaxHoursPerDayConstraint {
	return &TeacherMaxHoursPerDayConstraint{
		baseConstraint: newBase(weight),
		teacherID:      t.ID,
		maxHours:       maxHours,
	}
}

func (c *TeacherMaxHoursPerDayConstraint) Type() ConstraintType {
	return ConstraintTeacherMaxHoursPerDay
}

func (c *TeacherMaxHoursPerDayConstraint) IsSatisfied(a *Assignment) bool {
	if !c.active || c.maxHours <= 0 {
		return true
	}
	for _, day := range a.WorkingDaysForTeacher(c.teacherID) {
		if a.HoursForTeacherOnDay(c.teacherID, day) > c.maxHours {
			return false
		}
	}
	return true
}

// TeacherMaxSpanPerDayConstraint caps the distance between a teacher's first
// and last hour on any day.
type TeacherMaxSpanPerDayConstraint struct {
	baseConstraint
	teacherID string
	maxSpan   int
}

// NewTeacherMaxSpanPerDayConstraint builds the daily span cap.
func NewTeacherMaxSpanPerDayConstraint(t *Teacher, maxSpan int, weight float64) *TeacherMaxSpanPerDayConstraint {
	return &TeacherMaxSpanPerDayConstraint{
		baseConstraint: newBase(weight),
		teacherID:      t.ID,
		maxSpan:        maxSpan,
	}
}

func (c *TeacherMaxSpanPerDayConstraint) Type() ConstraintType {
	return ConstraintTeacherMaxSpanPerDay
}

func (c *TeacherMaxSpanPerDayConstraint) IsSatisfied(a *Assignment) bool {
	if !c.active || c.maxSpan <= 0 {
		return true
	}
	for _, day := range a.WorkingDaysForTeacher(c.teacherID) {
		if a.SpanForTeacherOnDay(c.teacherID, day) > c.maxSpan {
			return false
		}
	}
	return true
}

// TeacherMinGapsPerDayConstraint requires a minimum number of idle hours
// between a teacher's bookings on any day carrying two or more activities.
// Single-activity days are exempt.
type TeacherMinGapsPerDayConstraint struct {
	baseConstraint
	teacherID string
	minGaps   int
}

// NewTeacherMinGapsPerDayConstraint builds the daily spacing floor.
func NewTeacherMinGapsPerDayConstraint(t *Teacher, minGaps int, weight float64) *TeacherMinGapsPerDayConstraint {
	return &TeacherMinGapsPerDayConstraint{
		baseConstraint: newBase(weight),
		teacherID:      t.ID,
		minGaps:        minGaps,
	}
}

func (c *TeacherMinGapsPerDayConstraint) Type() ConstraintType {
	return ConstraintTeacherMinGapsPerDay
}

func (c *TeacherMinGapsPerDayConstraint) IsSatisfied(a *Assignment) bool {
	if !c.active || c.minGaps <= 0 {
		return true
	}
	byDay := make(map[int]int)
	for _, act := range a.ActivitiesForTeacher(c.teacherID) {
		if period, ok := a.PeriodFor(act.ID); ok {
			byDay[period.Day]++
		}
	}
	for day, count := range byDay {
		if count < 2 {
			continue
		}
		if a.GapsForTeacherOnDay(c.teacherID, day) < c.minGaps {
			return false
		}
	}
	return true
}

// StudentSetMaxHoursPerDayConstraint caps a student set's occupied hours per
// day.
type StudentSetMaxHoursPerDayConstraint struct {
	baseConstraint
	studentSetID string
	maxHours     int
}

// NewStudentSetMaxHoursPerDayConstraint builds the daily hours cap.
func NewStudentSetMaxHoursPerDayConstraint(s *StudentSet, maxHours int, weight float64) *StudentSetMaxHoursPerDayConstraint {
	return &StudentSetMaxHoursPerDayConstraint{
		baseConstraint: newBase(weight),
		studentSetID:   s.ID,
		maxHours:       maxHours,
	}
}

func (c *StudentSetMaxHoursPerDayConstraint) Type() ConstraintType {
	return ConstraintStudentSetMaxHoursPerDay
}

func (c *StudentSetMaxHoursPerDayConstraint) IsSatisfied(a *Assignment) bool {
	if !c.active || c.maxHours <= 0 {
		return true
	}
	for _, day := range a.WorkingDaysForStudentSet(c.studentSetID) {
		if a.HoursForStudentSetOnDay(c.studentSetID, day) > c.maxHours {
			return false
		}
	}
	return true
}

// PreferredStartingTimesConstraint pins an activity to one of its preferred
// start periods. Vacuously satisfied when no preference is configured or the
// activity is not assigned yet.
type PreferredStartingTimesConstraint struct {
	baseConstraint
	activityID string
	periods    []Period
}

// NewPreferredStartingTimesConstraint snapshots the activity's preferred
// starting times (single preference first when set).
func NewPreferredStartingTimesConstraint(act *Activity, weight float64) *PreferredStartingTimesConstraint {
	var periods []Period
	if act.PreferredStartingTime != nil {
		periods = append(periods, *act.PreferredStartingTime)
	}
	periods = append(periods, act.PreferredStartingTimes...)
	return &PreferredStartingTimesConstraint{
		baseConstraint: newBase(weight),
		activityID:     act.ID,
		periods:        periods,
	}
}

func (c *PreferredStartingTimesConstraint) Type() ConstraintType {
	return ConstraintPreferredStartingTimes
}

func (c *PreferredStartingTimesConstraint) IsSatisfied(a *Assignment) bool {
	if !c.active || len(c.periods) == 0 {
		return true
	}
	period, ok := a.PeriodFor(c.activityID)
	if !ok {
		return true
	}
	for _, preferred := range c.periods {
		if preferred == period {
			return true
		}
	}
	return false
}

// ActivitiesNotOverlappingConstraint forbids any two activities of a group
// from sharing a day with intersecting hour ranges.
type ActivitiesNotOverlappingConstraint struct {
	baseConstraint
	activities []*Activity
}

// NewActivitiesNotOverlappingConstraint builds the group overlap ban.
func NewActivitiesNotOverlappingConstraint(acts []*Activity, weight float64) *ActivitiesNotOverlappingConstraint {
	return &ActivitiesNotOverlappingConstraint{
		baseConstraint: newBase(weight),
		activities:     acts,
	}
}

func (c *ActivitiesNotOverlappingConstraint) Type() ConstraintType {
	return ConstraintActivitiesNotOverlapping
}

func (c *ActivitiesNotOverlappingConstraint) IsSatisfied(a *Assignment) bool {
	if !c.active {
		return true
	}
	for i := 0; i < len(c.activities); i++ {
		first, ok := a.PeriodFor(c.activities[i].ID)
		if !ok {
			continue
		}
		for j := i + 1; j < len(c.activities); j++ {
			second, ok := a.PeriodFor(c.activities[j].ID)
			if !ok || first.Day != second.Day {
				continue
			}
			if overlaps(first.Hour, c.activities[i].TotalDuration, second.Hour, c.activities[j].TotalDuration) {
				return false
			}
		}
	}
	return true
}

// MinGapsBetweenActivitiesConstraint enforces a minimum number of free hours
// between every same-day pair of a group.
type MinGapsBetweenActivitiesConstraint struct {
	baseConstraint
	activities []*Activity
	minGaps    int
}

// NewMinGapsBetweenActivitiesConstraint builds the group spacing rule.
func NewMinGapsBetweenActivitiesConstraint(acts []*Activity, minGaps int, weight float64) *MinGapsBetweenActivitiesConstraint {
	return &MinGapsBetweenActivitiesConstraint{
		baseConstraint: newBase(weight),
		activities:     acts,
		minGaps:        minGaps,
	}
}

func (c *MinGapsBetweenActivitiesConstraint) Type() ConstraintType {
	return ConstraintMinGapsBetweenActivities
}

func (c *MinGapsBetweenActivitiesConstraint) IsSatisfied(a *Assignment) bool {
	if !c.active || c.minGaps <= 0 {
		return true
	}
	type placed struct {
		start int
		end   int
	}
	byDay := make(map[int][]placed)
	for _, act := range c.activities {
		period, ok := a.PeriodFor(act.ID)
		if !ok {
			continue
		}
		byDay[period.Day] = append(byDay[period.Day], placed{
			start: period.Hour,
			end:   period.Hour + act.TotalDuration - 1,
		})
	}
	for _, items := range byDay {
		sort.Slice(items, func(i, j int) bool { return items[i].start < items[j].start })
		for i := 1; i < len(items); i++ {
			gap := items[i].start - items[i-1].end - 1
			if gap < c.minGaps {
				return false
			}
		}
	}
	return true
}
