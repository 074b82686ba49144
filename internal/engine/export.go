package engine

import "sort"

// ScheduleEntry is one resolved line of an exported timetable.
type ScheduleEntry struct {
	ActivityID      string   `json:"activityId"`
	ActivityName    string   `json:"activityName"`
	SubjectName     string   `json:"subjectName,omitempty"`
	Day             int      `json:"day"`
	StartHour       int      `json:"startHour"`
	EndHour         int      `json:"endHour"`
	RoomID          string   `json:"roomId,omitempty"`
	RoomName        string   `json:"roomName,omitempty"`
	TeacherNames    []string `json:"teacherNames,omitempty"`
	StudentSetNames []string `json:"studentSetNames,omitempty"`
}

// ScheduleExport is the day-bucketed projection of a finished assignment:
// entity id → day → entries sorted by start hour. Pure projection, no solving
// logic.
type ScheduleExport struct {
	Teachers    map[string]map[int][]ScheduleEntry `json:"teachers"`
	StudentSets map[string]map[int][]ScheduleEntry `json:"studentSets"`
	Rooms       map[string]map[int][]ScheduleEntry `json:"rooms"`
}

// AnalyzeConstraintViolations counts currently failing constraint instances
// per type tag, one tick per failing instance regardless of weight.
func (s *Scheduler) AnalyzeConstraintViolations(a *Assignment) map[ConstraintType]int {
	violations := make(map[ConstraintType]int)
	tally := func(c Constraint) {
		if c.Active() && !c.IsSatisfied(a) {
			violations[c.Type()]++
		}
	}
	for _, c := range s.timeConstraints {
		tally(c)
	}
	for _, c := range s.spaceConstraints {
		tally(c)
	}
	return violations
}

// ExportSchedule projects the assignment into per-teacher, per-student-set
// and per-room day buckets with resolved display names.
func (s *Scheduler) ExportSchedule(a *Assignment) *ScheduleExport {
	export := &ScheduleExport{
		Teachers:    make(map[string]map[int][]ScheduleEntry),
		StudentSets: make(map[string]map[int][]ScheduleEntry),
		Rooms:       make(map[string]map[int][]ScheduleEntry),
	}
	roomNames := make(map[string]string, len(s.rooms))
	for _, room := range s.rooms {
		roomNames[room.ID] = room.Name
	}

	for _, act := range s.activities {
		period, ok := a.PeriodFor(act.ID)
		if !ok {
			continue
		}
		roomID, _ := a.RoomFor(act.ID)

		entry := ScheduleEntry{
			ActivityID:   act.ID,
			ActivityName: act.Name,
			Day:          period.Day,
			StartHour:    period.Hour,
			EndHour:      period.Hour + act.TotalDuration - 1,
			RoomID:       roomID,
			RoomName:     roomNames[roomID],
		}
		if act.Subject != nil {
			entry.SubjectName = act.Subject.Name
		}
		for _, t := range act.Teachers {
			entry.TeacherNames = append(entry.TeacherNames, t.Name)
		}
		for _, set := range act.StudentSets {
			entry.StudentSetNames = append(entry.StudentSetNames, set.Name)
		}

		for _, t := range act.Teachers {
			bucket(export.Teachers, t.ID, period.Day, entry)
		}
		for _, set := range act.StudentSets {
			bucket(export.StudentSets, set.ID, period.Day, entry)
		}
		if roomID != "" {
			bucket(export.Rooms, roomID, period.Day, entry)
		}
	}

	sortBuckets(export.Teachers)
	sortBuckets(export.StudentSets)
	sortBuckets(export.Rooms)
	return export
}

func bucket(target map[string]map[int][]ScheduleEntry, id string, day int, entry ScheduleEntry) {
	if target[id] == nil {
		target[id] = make(map[int][]ScheduleEntry)
	}
	target[id][day] = append(target[id][day], entry)
}

func sortBuckets(target map[string]map[int][]ScheduleEntry) {
	for _, days := range target {
		for _, entries := range days {
			sort.Slice(entries, func(i, j int) bool {
				return entries[i].StartHour < entries[j].StartHour
			})
		}
	}
}
