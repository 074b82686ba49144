package dto

// PeriodRef addresses a single timetable cell.
type PeriodRef struct {
	Day  int `json:"day" validate:"min=0"`
	Hour int `json:"hour" validate:"min=0"`
}

// TeacherInput describes a teacher and the limits attached to them.
type TeacherInput struct {
	ID                  string      `json:"id" validate:"required"`
	Name                string      `json:"name"`
	NotAvailable        []PeriodRef `json:"notAvailable" validate:"omitempty,dive"`
	MaxHoursPerDay      int         `json:"maxHoursPerDay" validate:"omitempty,min=0"`
	MaxConsecutiveHours int         `json:"maxConsecutiveHours" validate:"omitempty,min=0"`
	MaxDaysPerWeek      int         `json:"maxDaysPerWeek" validate:"omitempty,min=0"`
	MinGapsPerDay       int         `json:"minGapsPerDay" validate:"omitempty,min=0"`
	MaxSpanPerDay       int         `json:"maxSpanPerDay" validate:"omitempty,min=0"`
}

// StudentSetInput describes a group of students scheduled together.
type StudentSetInput struct {
	ID             string      `json:"id" validate:"required"`
	Name           string      `json:"name"`
	NotAvailable   []PeriodRef `json:"notAvailable" validate:"omitempty,dive"`
	MaxHoursPerDay int         `json:"maxHoursPerDay" validate:"omitempty,min=0"`
}

// SubjectInput describes a subject and its room preferences.
type SubjectInput struct {
	ID             string   `json:"id" validate:"required"`
	Name           string   `json:"name"`
	PreferredRooms []string `json:"preferredRooms"`
}

// ActivityTagInput labels activities sharing room preferences.
type ActivityTagInput struct {
	ID             string   `json:"id" validate:"required"`
	Name           string   `json:"name"`
	PreferredRooms []string `json:"preferredRooms"`
}

// RoomInput describes a schedulable room.
type RoomInput struct {
	ID           string      `json:"id" validate:"required"`
	Name         string      `json:"name"`
	Capacity     int         `json:"capacity" validate:"omitempty,min=0"`
	NotAvailable []PeriodRef `json:"notAvailable" validate:"omitempty,dive"`
}

// ActivityInput describes one block of lessons to place on the grid.
// PreferenceWeight tunes the derived preferred-time and preferred-room
// constraints; 100 makes them binding, unset leaves them soft.
type ActivityInput struct {
	ID                     string      `json:"id" validate:"required"`
	Name                   string      `json:"name"`
	SubjectID              string      `json:"subjectId"`
	TeacherIDs             []string    `json:"teacherIds"`
	StudentSetIDs          []string    `json:"studentSetIds"`
	TagIDs                 []string    `json:"tagIds"`
	TotalDuration          int         `json:"totalDuration" validate:"required,min=1"`
	PreferredStartingTime  *PeriodRef  `json:"preferredStartingTime"`
	PreferredStartingTimes []PeriodRef `json:"preferredStartingTimes" validate:"omitempty,dive"`
	PreferredTimeSlots     []PeriodRef `json:"preferredTimeSlots" validate:"omitempty,dive"`
	PreferredRooms         []string    `json:"preferredRooms"`
	PreferenceWeight       *float64    `json:"preferenceWeight" validate:"omitempty,min=0,max=100"`
}

// ConstraintInput activates one constraint variant over referenced entities.
type ConstraintInput struct {
	Type        string   `json:"type" validate:"required"`
	Weight      float64  `json:"weight" validate:"min=0,max=100"`
	Active      *bool    `json:"active"`
	TeacherID   string   `json:"teacherId"`
	StudentSet  string   `json:"studentSetId"`
	RoomID      string   `json:"roomId"`
	ActivityID  string   `json:"activityId"`
	ActivityIDs []string `json:"activityIds"`
	Limit       int      `json:"limit" validate:"omitempty,min=0"`
	MinGaps     int      `json:"minGaps" validate:"omitempty,min=0"`
}

// AnnealingInput overrides the refinement parameters.
type AnnealingInput struct {
	MaxIterations      int     `json:"maxIterations" validate:"omitempty,min=0"`
	InitialTemperature float64 `json:"initialTemperature" validate:"omitempty,min=0"`
	CoolingRate        float64 `json:"coolingRate" validate:"omitempty,gt=0,lt=1"`
}

// GenerateTimetableRequest instructs the solver to build a timetable proposal.
type GenerateTimetableRequest struct {
	Label         string             `json:"label"`
	Days          int                `json:"days" validate:"required,min=1,max=7"`
	PeriodsPerDay int                `json:"periodsPerDay" validate:"required,min=1,max=24"`
	Seed          *int64             `json:"seed"`
	Annealing     *AnnealingInput    `json:"annealing"`
	Teachers      []TeacherInput     `json:"teachers" validate:"omitempty,dive"`
	StudentSets   []StudentSetInput  `json:"studentSets" validate:"omitempty,dive"`
	Subjects      []SubjectInput     `json:"subjects" validate:"omitempty,dive"`
	Tags          []ActivityTagInput `json:"tags" validate:"omitempty,dive"`
	Rooms         []RoomInput        `json:"rooms" validate:"required,min=1,dive"`
	Activities    []ActivityInput    `json:"activities" validate:"required,min=1,dive"`
	Constraints   []ConstraintInput  `json:"constraints" validate:"omitempty,dive"`
	Async         bool               `json:"async"`
}

// ScheduleEntryDTO is one rendered placement in a timetable view.
type ScheduleEntryDTO struct {
	ActivityID      string   `json:"activityId"`
	ActivityName    string   `json:"activityName"`
	SubjectName     string   `json:"subjectName,omitempty"`
	TeacherNames    []string `json:"teacherNames,omitempty"`
	StudentSetNames []string `json:"studentSetNames,omitempty"`
	RoomID          string   `json:"roomId"`
	RoomName        string   `json:"roomName"`
	Day             int      `json:"day"`
	StartHour       int      `json:"startHour"`
	EndHour         int      `json:"endHour"`
}

// TimetableViews groups rendered entries by teacher, student set and room.
type TimetableViews struct {
	Teachers    map[string]map[int][]ScheduleEntryDTO `json:"teachers"`
	StudentSets map[string]map[int][]ScheduleEntryDTO `json:"studentSets"`
	Rooms       map[string]map[int][]ScheduleEntryDTO `json:"rooms"`
}

// UnplacedActivityDTO reports an activity the solver could not place.
type UnplacedActivityDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SolveReportDTO summarises a solver run.
type SolveReportDTO struct {
	InitialScore float64               `json:"initialScore"`
	BestScore    float64               `json:"bestScore"`
	Iterations   int                   `json:"iterations"`
	Unplaced     []UnplacedActivityDTO `json:"unplaced"`
}

// GenerateTimetableResponse returns the built proposal.
type GenerateTimetableResponse struct {
	ProposalID string          `json:"proposalId"`
	Status     string          `json:"status"`
	Report     SolveReportDTO  `json:"report"`
	Views      *TimetableViews `json:"views,omitempty"`
}

// ViolationDTO counts unsatisfied occurrences of one constraint variant.
type ViolationDTO struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// SaveTimetableRequest persists a proposal as a versioned run. Force allows
// saving a proposal that still has unplaced activities.
type SaveTimetableRequest struct {
	Label string `json:"label"`
	Force bool   `json:"force"`
}

// SolveRunQuery filters persisted runs.
type SolveRunQuery struct {
	Status   string `form:"status" json:"status"`
	Page     int    `form:"page" json:"page"`
	PageSize int    `form:"pageSize" json:"pageSize"`
}
