package engine

// Period is a (day, hour) coordinate on the institutional time grid. It has
// no intrinsic duration; duration lives on Activity.
type Period struct {
	Day  int
	Hour int
}

// Teacher is an input entity. Limit fields use 0 to mean "no limit"; the
// engine never enforces them directly, constraints built over the teacher do.
type Teacher struct {
	ID   string
	Name string

	NotAvailable []Period

	MaxHoursPerDay      int
	MaxConsecutiveHours int
	MaxDaysPerWeek      int
	MinGapsPerDay       int
	MaxSpanPerDay       int
}

// StudentSet is a group of students scheduled together.
type StudentSet struct {
	ID   string
	Name string

	NotAvailable []Period

	MaxHoursPerDay int
	MaxSpanPerDay  int
}

// Subject classifies activities and can steer room selection.
type Subject struct {
	ID             string
	Name           string
	PreferredRooms []string
}

// ActivityTag is a free-form activity label; its preferred rooms are a
// room-selection fallback below the activity's and subject's own preferences.
type ActivityTag struct {
	ID             string
	Name           string
	PreferredRooms []string
}

// Room is a bookable space.
type Room struct {
	ID           string
	Name         string
	Capacity     int
	Building     string
	NotAvailable []Period
}

// Activity is the unit of scheduling: TotalDuration consecutive hours within
// a single day, involving its teachers and student sets. Preference fields
// are tried in declaration order during construction: the single preferred
// starting time first, then the preferred starting times list, then the
// generic preferred time slots.
type Activity struct {
	ID      string
	Name    string
	Subject *Subject

	Teachers    []*Teacher
	StudentSets []*StudentSet
	Tags        []*ActivityTag

	TotalDuration int

	PreferredStartingTime  *Period
	PreferredStartingTimes []Period
	PreferredTimeSlots     []Period
	PreferredRooms         []string

	// SubActivities is compositional metadata only; the engine schedules the
	// parent and never flattens the children.
	SubActivities []*Activity
}

func (a *Activity) hasTeacher(teacherID string) bool {
	for _, t := range a.Teachers {
		if t != nil && t.ID == teacherID {
			return true
		}
	}
	return false
}

func (a *Activity) hasStudentSet(studentSetID string) bool {
	for _, s := range a.StudentSets {
		if s != nil && s.ID == studentSetID {
			return true
		}
	}
	return false
}
