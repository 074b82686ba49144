package engine

import (
	"math"
	"sort"

	"go.uber.org/zap"
)

// minTemperature stops the annealing loop once cooling has made worse-move
// acceptance negligible.
const minTemperature = 0.1

// Scheduler owns the solve: entity registry, constraint lists and the seeded
// random stream. One Scheduler drives one solve at a time; run concurrent
// solves with separate Scheduler instances and seeds.
type Scheduler struct {
	days          int
	periodsPerDay int

	activities []*Activity
	rooms      []*Room

	timeConstraints  []Constraint
	spaceConstraints []Constraint

	rand   *randStream
	logger *zap.Logger
}

// UnplacedActivity identifies an activity the greedy pass could not place.
type UnplacedActivity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Report summarises a finished solve.
type Report struct {
	InitialScore float64            `json:"initialScore"`
	BestScore    float64            `json:"bestScore"`
	Iterations   int                `json:"iterations"`
	Unplaced     []UnplacedActivity `json:"unplaced,omitempty"`
}

// NewScheduler builds a scheduler over a days × periodsPerDay grid.
func NewScheduler(days, periodsPerDay int, seed int64, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		days:          days,
		periodsPerDay: periodsPerDay,
		rand:          newRandStream(seed),
		logger:        logger,
	}
}

// AddActivity registers an activity to be scheduled.
func (s *Scheduler) AddActivity(act *Activity) { s.activities = append(s.activities, act) }

// AddRoom registers a room.
func (s *Scheduler) AddRoom(room *Room) { s.rooms = append(s.rooms, room) }

// Activity returns the registered activity with the given id, or nil.
func (s *Scheduler) Activity(id string) *Activity {
	for _, act := range s.activities {
		if act.ID == id {
			return act
		}
	}
	return nil
}

// AddTimeConstraint registers a time-dimension constraint.
func (s *Scheduler) AddTimeConstraint(c Constraint) {
	s.timeConstraints = append(s.timeConstraints, c)
}

// AddSpaceConstraint registers a room-dimension constraint.
func (s *Scheduler) AddSpaceConstraint(c Constraint) {
	s.spaceConstraints = append(s.spaceConstraints, c)
}

// EvaluateSchedule scores the assignment as the weighted mean of per-
// constraint step scores: 100 when a constraint is inactive or satisfied,
// 0 otherwise. Zero registered weight scores 0.
func (s *Scheduler) EvaluateSchedule(a *Assignment) float64 {
	var totalWeight, weighted float64
	score := func(c Constraint) {
		totalWeight += c.Weight()
		if !c.Active() || c.IsSatisfied(a) {
			weighted += c.Weight() * 100
		}
	}
	for _, c := range s.timeConstraints {
		score(c)
	}
	for _, c := range s.spaceConstraints {
		score(c)
	}
	if totalWeight == 0 {
		return 0
	}
	return weighted / totalWeight
}

// CanPlaceActivity reports whether committing the placement would keep every
// hard constraint satisfied. It speculatively assigns, checks, then rolls
// back, so the assignment is unchanged regardless of outcome.
func (s *Scheduler) CanPlaceActivity(act *Activity, period Period, roomID string, a *Assignment) bool {
	if act == nil || act.TotalDuration < 1 {
		return false
	}
	if period.Day < 0 || period.Day >= s.days {
		return false
	}
	if period.Hour < 0 || period.Hour+act.TotalDuration > s.periodsPerDay {
		return false
	}
	for i := 0; i < act.TotalDuration; i++ {
		if a.ActivityAt(period.Day, period.Hour+i) != nil {
			return false
		}
		if a.ActivityInRoomAt(roomID, period.Day, period.Hour+i) != nil {
			return false
		}
	}

	if !a.Assign(act, period, roomID) {
		return false
	}
	ok := s.hardConstraintsHold(a)
	a.Remove(act)
	return ok
}

func (s *Scheduler) hardConstraintsHold(a *Assignment) bool {
	for _, c := range s.timeConstraints {
		if c.Weight() == HardWeight && !c.IsSatisfied(a) {
			return false
		}
	}
	for _, c := range s.spaceConstraints {
		if c.Weight() == HardWeight && !c.IsSatisfied(a) {
			return false
		}
	}
	return true
}

// roomPool resolves the candidate rooms for an activity: its own preferred
// rooms, then its subject's, then its tags', then every registered room.
func (s *Scheduler) roomPool(act *Activity) []string {
	if len(act.PreferredRooms) > 0 {
		pool := make([]string, len(act.PreferredRooms))
		copy(pool, act.PreferredRooms)
		return pool
	}
	if act.Subject != nil && len(act.Subject.PreferredRooms) > 0 {
		pool := make([]string, len(act.Subject.PreferredRooms))
		copy(pool, act.Subject.PreferredRooms)
		return pool
	}
	for _, tag := range act.Tags {
		if tag != nil && len(tag.PreferredRooms) > 0 {
			pool := make([]string, len(tag.PreferredRooms))
			copy(pool, tag.PreferredRooms)
			return pool
		}
	}
	pool := make([]string, 0, len(s.rooms))
	for _, room := range s.rooms {
		pool = append(pool, room.ID)
	}
	return pool
}

func (s *Scheduler) findSuitableRoom(act *Activity) string {
	pool := s.roomPool(act)
	if len(pool) == 0 {
		return ""
	}
	s.rand.shuffleStrings(pool)
	return pool[0]
}

// GenerateSchedule runs the two-phase solve: greedy feasible construction
// followed by simulated-annealing refinement, returning the best assignment
// seen. Out-of-range annealing parameters skip the refinement phase instead
// of failing; the greedy result is still returned.
func (s *Scheduler) GenerateSchedule(maxIterations int, initialTemperature, coolingRate float64) (*Assignment, Report) {
	assignment := NewAssignment()
	report := Report{}

	for _, act := range s.sortedByConstrainedness() {
		if s.placeActivity(act, assignment) {
			continue
		}
		report.Unplaced = append(report.Unplaced, UnplacedActivity{ID: act.ID, Name: act.Name})
		s.logger.Warn("activity could not be placed",
			zap.String("activity_id", act.ID),
			zap.String("activity_name", act.Name),
		)
	}

	report.InitialScore = s.EvaluateSchedule(assignment)
	report.BestScore = report.InitialScore

	if maxIterations <= 0 || initialTemperature <= 0 || coolingRate <= 0 || coolingRate >= 1 {
		s.logger.Warn("annealing parameters out of range, returning greedy solution",
			zap.Int("max_iterations", maxIterations),
			zap.Float64("initial_temperature", initialTemperature),
			zap.Float64("cooling_rate", coolingRate),
		)
		return assignment, report
	}

	best := assignment.Clone()
	bestScore := report.InitialScore
	current := assignment
	currentScore := report.InitialScore

	temperature := initialTemperature
	iteration := 0
	for iteration < maxIterations && temperature > minTemperature {
		neighbor := current.Clone()
		s.perturb(neighbor)
		neighborScore := s.EvaluateSchedule(neighbor)

		if neighborScore > currentScore || s.rand.next() < math.Exp(-(currentScore-neighborScore)/temperature) {
			current = neighbor
			currentScore = neighborScore
		}
		if currentScore > bestScore {
			best = current.Clone()
			bestScore = currentScore
		}

		temperature *= coolingRate
		iteration++
	}

	report.BestScore = bestScore
	report.Iterations = iteration
	return best, report
}

// sortedByConstrainedness orders activities hardest-first for the greedy
// pass: teacher count + student set count + duration, plus one when generic
// preferred time slots exist. Ties keep registration order.
func (s *Scheduler) sortedByConstrainedness() []*Activity {
	ordered := make([]*Activity, len(s.activities))
	copy(ordered, s.activities)
	sort.SliceStable(ordered, func(i, j int) bool {
		return constrainedness(ordered[i]) > constrainedness(ordered[j])
	})
	return ordered
}

func constrainedness(act *Activity) int {
	score := len(act.Teachers) + len(act.StudentSets) + act.TotalDuration
	if len(act.PreferredTimeSlots) > 0 {
		score++
	}
	return score
}

// placeActivity walks the placement priority ladder: the single preferred
// starting time, the preferred-starting-times list, the generic preferred
// slots, then a seed-shuffled sweep of the whole grid.
func (s *Scheduler) placeActivity(act *Activity, a *Assignment) bool {
	if act.PreferredStartingTime != nil {
		if s.tryPlace(act, *act.PreferredStartingTime, a) {
			return true
		}
	}
	for _, period := range act.PreferredStartingTimes {
		if s.tryPlace(act, period, a) {
			return true
		}
	}
	for _, period := range act.PreferredTimeSlots {
		if s.tryPlace(act, period, a) {
			return true
		}
	}

	candidates := make([]Period, 0, s.days*s.periodsPerDay)
	for day := 0; day < s.days; day++ {
		for hour := 0; hour+act.TotalDuration <= s.periodsPerDay; hour++ {
			candidates = append(candidates, Period{Day: day, Hour: hour})
		}
	}
	s.rand.shufflePeriods(candidates)
	for _, period := range candidates {
		if s.tryPlace(act, period, a) {
			return true
		}
	}
	return false
}

func (s *Scheduler) tryPlace(act *Activity, period Period, a *Assignment) bool {
	roomID := s.findSuitableRoom(act)
	if roomID == "" {
		return false
	}
	if !s.CanPlaceActivity(act, period, roomID, a) {
		return false
	}
	return a.Assign(act, period, roomID)
}

// perturb applies exactly one randomly chosen neighborhood move. A move that
// fails the hard-constraint gate is rolled back, leaving the neighbor equal
// to the solution it was cloned from.
func (s *Scheduler) perturb(a *Assignment) {
	ids := assignedIDsSorted(a)
	if len(ids) == 0 {
		return
	}
	switch s.rand.intn(3) {
	case 0:
		s.moveActivity(a, ids)
	case 1:
		s.swapActivities(a, ids)
	default:
		s.changeRoom(a, ids)
	}
}

func (s *Scheduler) moveActivity(a *Assignment, ids []string) {
	act := a.activities[ids[s.rand.intn(len(ids))]]
	oldPeriod, _ := a.PeriodFor(act.ID)
	oldRoom, _ := a.RoomFor(act.ID)

	hourRange := s.periodsPerDay - act.TotalDuration + 1
	if hourRange < 1 {
		return
	}
	period := Period{Day: s.rand.intn(s.days), Hour: s.rand.intn(hourRange)}
	roomID := s.findSuitableRoom(act)

	a.Remove(act)
	if roomID != "" && s.CanPlaceActivity(act, period, roomID, a) {
		a.Assign(act, period, roomID)
		return
	}
	a.Assign(act, oldPeriod, oldRoom)
}

func (s *Scheduler) swapActivities(a *Assignment, ids []string) {
	if len(ids) < 2 {
		return
	}
	i := s.rand.intn(len(ids))
	j := s.rand.intn(len(ids) - 1)
	if j >= i {
		j++
	}
	first, second := a.activities[ids[i]], a.activities[ids[j]]
	firstPeriod, _ := a.PeriodFor(first.ID)
	firstRoom, _ := a.RoomFor(first.ID)
	secondPeriod, _ := a.PeriodFor(second.ID)
	secondRoom, _ := a.RoomFor(second.ID)

	a.Remove(first)
	a.Remove(second)
	if s.CanPlaceActivity(first, secondPeriod, secondRoom, a) {
		a.Assign(first, secondPeriod, secondRoom)
		if s.CanPlaceActivity(second, firstPeriod, firstRoom, a) {
			a.Assign(second, firstPeriod, firstRoom)
			return
		}
		a.Remove(first)
	}
	a.Assign(first, firstPeriod, firstRoom)
	a.Assign(second, secondPeriod, secondRoom)
}

func (s *Scheduler) changeRoom(a *Assignment, ids []string) {
	act := a.activities[ids[s.rand.intn(len(ids))]]
	period, _ := a.PeriodFor(act.ID)
	oldRoom, _ := a.RoomFor(act.ID)

	roomID := s.findSuitableRoom(act)
	if roomID == "" || roomID == oldRoom {
		return
	}
	a.Remove(act)
	if s.CanPlaceActivity(act, period, roomID, a) {
		a.Assign(act, period, roomID)
		return
	}
	a.Assign(act, period, oldRoom)
}

func assignedIDsSorted(a *Assignment) []string {
	ids := make([]string, 0, len(a.periods))
	for id := range a.periods {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
