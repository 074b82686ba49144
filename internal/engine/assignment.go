package engine

import "sort"

type slotKey struct {
	Day  int
	Hour int
}

type roomSlotKey struct {
	Room string
	Day  int
	Hour int
}

// Assignment is the mutable occupancy ledger for one candidate solution. It
// keeps four maps that are always mutually consistent: activity→period,
// activity→room, a global time index and a room-time index. Assign and Remove
// are atomic with respect to that invariant.
//
// The global time index is keyed by (day, hour) alone: at most one activity
// in the whole institution may occupy a given cell, regardless of which
// teachers, student sets or rooms are involved. That exclusivity is the
// engine's deliberate policy, not an accident of the room index.
type Assignment struct {
	periods    map[string]Period
	rooms      map[string]string
	timeIndex  map[slotKey]*Activity
	roomIndex  map[roomSlotKey]*Activity
	activities map[string]*Activity
}

// NewAssignment returns an empty ledger.
func NewAssignment() *Assignment {
	return &Assignment{
		periods:    make(map[string]Period),
		rooms:      make(map[string]string),
		timeIndex:  make(map[slotKey]*Activity),
		roomIndex:  make(map[roomSlotKey]*Activity),
		activities: make(map[string]*Activity),
	}
}

// Assign books the activity into every hour it covers starting at period.
// It returns false without mutating anything if any covered cell is already
// taken in the global time index or in the room index.
func (a *Assignment) Assign(act *Activity, period Period, roomID string) bool {
	if act == nil || act.TotalDuration < 1 {
		return false
	}
	for i := 0; i < act.TotalDuration; i++ {
		hour := period.Hour + i
		if _, taken := a.timeIndex[slotKey{Day: period.Day, Hour: hour}]; taken {
			return false
		}
		if _, taken := a.roomIndex[roomSlotKey{Room: roomID, Day: period.Day, Hour: hour}]; taken {
			return false
		}
	}

	a.periods[act.ID] = period
	a.rooms[act.ID] = roomID
	a.activities[act.ID] = act
	for i := 0; i < act.TotalDuration; i++ {
		hour := period.Hour + i
		a.timeIndex[slotKey{Day: period.Day, Hour: hour}] = act
		a.roomIndex[roomSlotKey{Room: roomID, Day: period.Day, Hour: hour}] = act
	}
	return true
}

// Remove clears the activity from all four maps. Removing an activity that
// was never assigned is a no-op.
func (a *Assignment) Remove(act *Activity) {
	if act == nil {
		return
	}
	period, ok := a.periods[act.ID]
	if !ok {
		return
	}
	roomID := a.rooms[act.ID]
	for i := 0; i < act.TotalDuration; i++ {
		hour := period.Hour + i
		delete(a.timeIndex, slotKey{Day: period.Day, Hour: hour})
		delete(a.roomIndex, roomSlotKey{Room: roomID, Day: period.Day, Hour: hour})
	}
	delete(a.periods, act.ID)
	delete(a.rooms, act.ID)
	delete(a.activities, act.ID)
}

// PeriodFor returns the start period for an assigned activity.
func (a *Assignment) PeriodFor(activityID string) (Period, bool) {
	period, ok := a.periods[activityID]
	return period, ok
}

// RoomFor returns the room for an assigned activity.
func (a *Assignment) RoomFor(activityID string) (string, bool) {
	roomID, ok := a.rooms[activityID]
	return roomID, ok
}

// ActivityAt returns whichever activity occupies the global (day, hour) cell.
func (a *Assignment) ActivityAt(day, hour int) *Activity {
	return a.timeIndex[slotKey{Day: day, Hour: hour}]
}

// ActivityInRoomAt returns the activity occupying the room at (day, hour).
func (a *Assignment) ActivityInRoomAt(roomID string, day, hour int) *Activity {
	return a.roomIndex[roomSlotKey{Room: roomID, Day: day, Hour: hour}]
}

// AssignedCount reports how many activities are currently placed.
func (a *Assignment) AssignedCount() int {
	return len(a.periods)
}

// ActivitiesForTeacher scans current assignments for activities taught by the
// teacher.
func (a *Assignment) ActivitiesForTeacher(teacherID string) []*Activity {
	var result []*Activity
	for id := range a.periods {
		if act := a.activities[id]; act != nil && act.hasTeacher(teacherID) {
			result = append(result, act)
		}
	}
	return result
}

// ActivitiesForStudentSet scans current assignments for activities attended
// by the student set.
func (a *Assignment) ActivitiesForStudentSet(studentSetID string) []*Activity {
	var result []*Activity
	for id := range a.periods {
		if act := a.activities[id]; act != nil && act.hasStudentSet(studentSetID) {
			result = append(result, act)
		}
	}
	return result
}

// ActivitiesInRoom returns the activities assigned to the room.
func (a *Assignment) ActivitiesInRoom(roomID string) []*Activity {
	var result []*Activity
	for id, assigned := range a.rooms {
		if assigned == roomID {
			if act := a.activities[id]; act != nil {
				result = append(result, act)
			}
		}
	}
	return result
}

// WorkingDaysForTeacher returns the distinct days the teacher is scheduled.
func (a *Assignment) WorkingDaysForTeacher(teacherID string) []int {
	return a.workingDays(a.ActivitiesForTeacher(teacherID))
}

// WorkingDaysForStudentSet returns the distinct days the set is scheduled.
func (a *Assignment) WorkingDaysForStudentSet(studentSetID string) []int {
	return a.workingDays(a.ActivitiesForStudentSet(studentSetID))
}

func (a *Assignment) workingDays(acts []*Activity) []int {
	seen := make(map[int]bool)
	for _, act := range acts {
		if period, ok := a.periods[act.ID]; ok {
			seen[period.Day] = true
		}
	}
	days := make([]int, 0, len(seen))
	for day := range seen {
		days = append(days, day)
	}
	sort.Ints(days)
	return days
}

// GapsForTeacherOnDay counts the idle hours between the teacher's first and
// last occupied hour of the day. Zero or one occupied hour means zero gaps.
func (a *Assignment) GapsForTeacherOnDay(teacherID string, day int) int {
	return gaps(a.occupiedHours(a.ActivitiesForTeacher(teacherID), day))
}

// GapsForStudentSetOnDay counts the student set's idle hours on a day.
func (a *Assignment) GapsForStudentSetOnDay(studentSetID string, day int) int {
	return gaps(a.occupiedHours(a.ActivitiesForStudentSet(studentSetID), day))
}

// SpanForTeacherOnDay returns lastHour-firstHour+1 across the teacher's
// activities on the day, 0 when the day is free.
func (a *Assignment) SpanForTeacherOnDay(teacherID string, day int) int {
	return span(a.occupiedHours(a.ActivitiesForTeacher(teacherID), day))
}

// SpanForStudentSetOnDay returns the student set's hour span on the day.
func (a *Assignment) SpanForStudentSetOnDay(studentSetID string, day int) int {
	return span(a.occupiedHours(a.ActivitiesForStudentSet(studentSetID), day))
}

// HoursForTeacherOnDay returns the number of occupied hours on the day.
func (a *Assignment) HoursForTeacherOnDay(teacherID string, day int) int {
	return len(a.occupiedHours(a.ActivitiesForTeacher(teacherID), day))
}

// HoursForStudentSetOnDay returns the set's occupied hours on the day.
func (a *Assignment) HoursForStudentSetOnDay(studentSetID string, day int) int {
	return len(a.occupiedHours(a.ActivitiesForStudentSet(studentSetID), day))
}

// LongestRunForTeacherOnDay returns the longest streak of contiguous occupied
// hours for the teacher on the day.
func (a *Assignment) LongestRunForTeacherOnDay(teacherID string, day int) int {
	hours := a.occupiedHours(a.ActivitiesForTeacher(teacherID), day)
	longest, run := 0, 0
	for i, hour := range hours {
		if i > 0 && hour == hours[i-1]+1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

func (a *Assignment) occupiedHours(acts []*Activity, day int) []int {
	seen := make(map[int]bool)
	for _, act := range acts {
		period, ok := a.periods[act.ID]
		if !ok || period.Day != day {
			continue
		}
		for i := 0; i < act.TotalDuration; i++ {
			seen[period.Hour+i] = true
		}
	}
	hours := make([]int, 0, len(seen))
	for hour := range seen {
		hours = append(hours, hour)
	}
	sort.Ints(hours)
	return hours
}

func gaps(hours []int) int {
	if len(hours) < 2 {
		return 0
	}
	total := 0
	for i := 1; i < len(hours); i++ {
		total += hours[i] - hours[i-1] - 1
	}
	return total
}

func span(hours []int) int {
	if len(hours) == 0 {
		return 0
	}
	return hours[len(hours)-1] - hours[0] + 1
}

// Clone deep-copies the ledger. Activities themselves are shared: entity
// records are immutable once solving starts.
func (a *Assignment) Clone() *Assignment {
	clone := &Assignment{
		periods:    make(map[string]Period, len(a.periods)),
		rooms:      make(map[string]string, len(a.rooms)),
		timeIndex:  make(map[slotKey]*Activity, len(a.timeIndex)),
		roomIndex:  make(map[roomSlotKey]*Activity, len(a.roomIndex)),
		activities: make(map[string]*Activity, len(a.activities)),
	}
	for id, period := range a.periods {
		clone.periods[id] = period
	}
	for id, roomID := range a.rooms {
		clone.rooms[id] = roomID
	}
	for key, act := range a.timeIndex {
		clone.timeIndex[key] = act
	}
	for key, act := range a.roomIndex {
		clone.roomIndex[key] = act
	}
	for id, act := range a.activities {
		clone.activities[id] = act
	}
	return clone
}
