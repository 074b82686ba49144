package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/engine"
	"github.com/noah-isme/timetable-engine/internal/models"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
	"github.com/noah-isme/timetable-engine/pkg/jobs"
)

// Proposal lifecycle states reported to clients.
const (
	ProposalStatusPending   = "PENDING"
	ProposalStatusRunning   = "RUNNING"
	ProposalStatusCompleted = "COMPLETED"
	ProposalStatusFailed    = "FAILED"
)

// defaultPreferenceWeight applies to derived preferred-time and preferred-room
// constraints when the activity does not set its own.
const defaultPreferenceWeight = 80.0

type solveRunRepository interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, run *models.SolveRun) error
	List(ctx context.Context, status string, limit, offset int) ([]models.SolveRun, int, error)
	FindByID(ctx context.Context, id string) (*models.SolveRun, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SolveRunStatus) error
	Delete(ctx context.Context, id string) error
}

type solveRunSlotRepository interface {
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.SolveRunSlot) error
	ListByRun(ctx context.Context, runID string) ([]models.SolveRunSlot, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type solveObserver interface {
	ObserveSolve(duration time.Duration, score float64, unplaced int)
}

// SolverDefaults carries fallbacks applied when a request omits tuning values.
type SolverDefaults struct {
	Seed               int64
	MaxIterations      int
	InitialTemperature float64
	CoolingRate        float64
	ProposalTTL        time.Duration
	AsyncWorkers       int
	AsyncQueueSize     int
}

// timetableProposal is the in-memory result of one solver invocation. Entries
// in the TTL store are immutable snapshots: every lifecycle transition stores
// a fresh copy, so readers never observe a half-built result while the async
// worker is still solving.
type timetableProposal struct {
	ID         string
	Label      string
	Status     string
	Scheduler  *engine.Scheduler
	Assignment *engine.Assignment
	Report     engine.Report
	Err        *appErrors.Error
	Request    dto.GenerateTimetableRequest
	CreatedAt  time.Time
}

// SolverService builds timetables from request payloads and tracks proposals.
type SolverService struct {
	runs      solveRunRepository
	slots     solveRunSlotRepository
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
	observer  solveObserver
	defaults  SolverDefaults

	store *gocache.Cache
	queue *jobs.Queue
}

// NewSolverService wires solver dependencies. Repositories and the observer may
// be nil; persistence endpoints then report a precondition failure.
func NewSolverService(
	runs solveRunRepository,
	slots solveRunSlotRepository,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	observer solveObserver,
	defaults SolverDefaults,
) *SolverService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults.ProposalTTL <= 0 {
		defaults.ProposalTTL = 30 * time.Minute
	}
	if defaults.MaxIterations <= 0 {
		defaults.MaxIterations = 2000
	}
	if defaults.InitialTemperature <= 0 {
		defaults.InitialTemperature = 100
	}
	if defaults.CoolingRate <= 0 || defaults.CoolingRate >= 1 {
		defaults.CoolingRate = 0.97
	}

	s := &SolverService{
		runs:      runs,
		slots:     slots,
		tx:        tx,
		validator: validate,
		logger:    logger,
		observer:  observer,
		defaults:  defaults,
		store:     gocache.New(defaults.ProposalTTL, defaults.ProposalTTL),
	}
	s.queue = jobs.NewQueue("solver", s.processJob, jobs.QueueConfig{
		Workers:    defaults.AsyncWorkers,
		BufferSize: defaults.AsyncQueueSize,
		MaxRetries: 1,
		Logger:     logger,
	})
	return s
}

// Start launches the async worker pool.
func (s *SolverService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the async worker pool.
func (s *SolverService) Stop() {
	s.queue.Stop()
}

// Generate validates the payload and either solves inline or enqueues the run.
func (s *SolverService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}

	proposal := &timetableProposal{
		ID:        uuid.NewString(),
		Label:     req.Label,
		Status:    ProposalStatusPending,
		Request:   req,
		CreatedAt: time.Now().UTC(),
	}
	s.store.Set(proposal.ID, proposal, gocache.DefaultExpiration)

	if req.Async {
		if err := s.queue.TryEnqueue(jobs.Job{ID: proposal.ID, Type: "solve", Payload: proposal.ID}); err != nil {
			s.store.Delete(proposal.ID)
			return nil, appErrors.Wrap(err, appErrors.ErrQueueFull.Code, appErrors.ErrQueueFull.Status, appErrors.ErrQueueFull.Message)
		}
		return &dto.GenerateTimetableResponse{ProposalID: proposal.ID, Status: ProposalStatusPending}, nil
	}

	solved, err := s.solve(proposal)
	if err != nil {
		s.store.Delete(proposal.ID)
		return nil, err
	}
	return s.proposalResponse(solved), nil
}

// GetProposal returns the current state of a proposal.
func (s *SolverService) GetProposal(_ context.Context, id string) (*dto.GenerateTimetableResponse, error) {
	proposal, err := s.proposal(id)
	if err != nil {
		return nil, err
	}
	if proposal.Status == ProposalStatusFailed && proposal.Err != nil {
		return nil, proposal.Err
	}
	return s.proposalResponse(proposal), nil
}

// Violations counts unsatisfied active constraints for a completed proposal.
func (s *SolverService) Violations(_ context.Context, id string) ([]dto.ViolationDTO, error) {
	proposal, err := s.completedProposal(id)
	if err != nil {
		return nil, err
	}

	counts := proposal.Scheduler.AnalyzeConstraintViolations(proposal.Assignment)
	result := make([]dto.ViolationDTO, 0, len(counts))
	for constraintType, count := range counts {
		result = append(result, dto.ViolationDTO{Type: string(constraintType), Count: count})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result, nil
}

// Save persists a completed proposal as a versioned run.
func (s *SolverService) Save(ctx context.Context, id string, req dto.SaveTimetableRequest) (*models.SolveRun, error) {
	proposal, err := s.completedProposal(id)
	if err != nil {
		return nil, err
	}
	if s.runs == nil || s.slots == nil || s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "timetable persistence is disabled")
	}
	if len(proposal.Report.Unplaced) > 0 && !req.Force {
		return nil, appErrors.Clone(appErrors.ErrInfeasible, "proposal has unplaced activities and cannot be saved")
	}

	label := req.Label
	if label == "" {
		label = proposal.Label
	}

	meta, marshalErr := json.Marshal(map[string]any{
		"generatedAt": proposal.CreatedAt,
		"async":       proposal.Request.Async,
		"activities":  len(proposal.Request.Activities),
		"rooms":       len(proposal.Request.Rooms),
		"unplaced":    len(proposal.Report.Unplaced),
	})
	if marshalErr != nil {
		return nil, appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode run metadata")
	}

	run := &models.SolveRun{
		Label:         label,
		Status:        models.SolveRunStatusDraft,
		Seed:          s.effectiveSeed(proposal.Request),
		Days:          proposal.Request.Days,
		PeriodsPerDay: proposal.Request.PeriodsPerDay,
		InitialScore:  proposal.Report.InitialScore,
		BestScore:     proposal.Report.BestScore,
		Iterations:    proposal.Report.Iterations,
		Meta:          types.JSONText(meta),
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.runs.CreateVersioned(ctx, tx, run); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create run")
		return nil, err
	}

	slotModels := s.slotModels(proposal, run.ID)
	if err = s.slots.InsertBatch(ctx, tx, slotModels); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist run slots")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit run")
		return nil, err
	}

	s.store.Delete(id)
	return run, nil
}

// ListRuns returns persisted runs with paging.
func (s *SolverService) ListRuns(ctx context.Context, query dto.SolveRunQuery) ([]models.SolveRun, *models.Pagination, error) {
	if s.runs == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "timetable persistence is disabled")
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	runs, total, err := s.runs.List(ctx, query.Status, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list runs")
	}
	return runs, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// GetRun returns one persisted run with its slots.
func (s *SolverService) GetRun(ctx context.Context, id string) (*models.SolveRun, []models.SolveRunSlot, error) {
	if s.runs == nil || s.slots == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "timetable persistence is disabled")
	}
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "run not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load run")
	}
	slots, err := s.slots.ListByRun(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load run slots")
	}
	return run, slots, nil
}

// PublishRun promotes a draft run to the published status.
func (s *SolverService) PublishRun(ctx context.Context, id string) error {
	if s.runs == nil || s.tx == nil {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "timetable persistence is disabled")
	}
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "run not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load run")
	}
	if run.Status != models.SolveRunStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft runs can be published")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = s.runs.UpdateStatus(ctx, tx, id, models.SolveRunStatusPublished); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish run")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit publish")
		return err
	}
	return nil
}

// DeleteRun removes a draft run.
func (s *SolverService) DeleteRun(ctx context.Context, id string) error {
	if s.runs == nil {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "timetable persistence is disabled")
	}
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "run not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load run")
	}
	if run.Status != models.SolveRunStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft runs can be deleted")
	}
	if err := s.runs.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete run")
	}
	return nil
}

// ExportView returns the rendered timetable for a completed proposal.
func (s *SolverService) ExportView(_ context.Context, id string) (*engine.ScheduleExport, string, error) {
	proposal, err := s.completedProposal(id)
	if err != nil {
		return nil, "", err
	}
	export := proposal.Scheduler.ExportSchedule(proposal.Assignment)
	return export, proposal.Label, nil
}

// --- internals ---

func (s *SolverService) processJob(_ context.Context, job jobs.Job) error {
	id, _ := job.Payload.(string)
	proposal, err := s.proposal(id)
	if err != nil {
		s.logger.Warn("async proposal vanished before solve", zap.String("proposal_id", id))
		return nil
	}
	if _, solveErr := s.solve(proposal); solveErr != nil {
		failed := *proposal
		failed.Status = ProposalStatusFailed
		failed.Err = appErrors.FromError(solveErr)
		s.store.Set(failed.ID, &failed, gocache.DefaultExpiration)
	}
	return nil
}

// solve runs the scheduler and publishes each lifecycle transition to the
// store as a fresh snapshot. It returns the completed snapshot.
func (s *SolverService) solve(proposal *timetableProposal) (*timetableProposal, error) {
	running := *proposal
	running.Status = ProposalStatusRunning
	s.store.Set(running.ID, &running, gocache.DefaultExpiration)

	scheduler, err := s.buildScheduler(proposal.Request)
	if err != nil {
		return nil, err
	}

	maxIterations := s.defaults.MaxIterations
	initialTemperature := s.defaults.InitialTemperature
	coolingRate := s.defaults.CoolingRate
	if a := proposal.Request.Annealing; a != nil {
		if a.MaxIterations > 0 {
			maxIterations = a.MaxIterations
		}
		if a.InitialTemperature > 0 {
			initialTemperature = a.InitialTemperature
		}
		if a.CoolingRate > 0 {
			coolingRate = a.CoolingRate
		}
	}

	started := time.Now()
	assignment, report := scheduler.GenerateSchedule(maxIterations, initialTemperature, coolingRate)
	elapsed := time.Since(started)

	done := *proposal
	done.Scheduler = scheduler
	done.Assignment = assignment
	done.Report = report
	done.Status = ProposalStatusCompleted
	s.store.Set(done.ID, &done, gocache.DefaultExpiration)

	if s.observer != nil {
		s.observer.ObserveSolve(elapsed, report.BestScore, len(report.Unplaced))
	}
	s.logger.Info("timetable solved",
		zap.String("proposal_id", proposal.ID),
		zap.Duration("elapsed", elapsed),
		zap.Float64("initial_score", report.InitialScore),
		zap.Float64("best_score", report.BestScore),
		zap.Int("iterations", report.Iterations),
		zap.Int("unplaced", len(report.Unplaced)),
	)
	return &done, nil
}

func (s *SolverService) buildScheduler(req dto.GenerateTimetableRequest) (*engine.Scheduler, error) {
	scheduler := engine.NewScheduler(req.Days, req.PeriodsPerDay, s.effectiveSeed(req), s.logger)

	teachers := make(map[string]*engine.Teacher, len(req.Teachers))
	for _, in := range req.Teachers {
		teachers[in.ID] = &engine.Teacher{
			ID:                  in.ID,
			Name:                in.Name,
			NotAvailable:        toPeriods(in.NotAvailable),
			MaxHoursPerDay:      in.MaxHoursPerDay,
			MaxConsecutiveHours: in.MaxConsecutiveHours,
			MaxDaysPerWeek:      in.MaxDaysPerWeek,
			MinGapsPerDay:       in.MinGapsPerDay,
			MaxSpanPerDay:       in.MaxSpanPerDay,
		}
	}
	studentSets := make(map[string]*engine.StudentSet, len(req.StudentSets))
	for _, in := range req.StudentSets {
		studentSets[in.ID] = &engine.StudentSet{
			ID:             in.ID,
			Name:           in.Name,
			NotAvailable:   toPeriods(in.NotAvailable),
			MaxHoursPerDay: in.MaxHoursPerDay,
		}
	}
	subjects := make(map[string]*engine.Subject, len(req.Subjects))
	for _, in := range req.Subjects {
		subjects[in.ID] = &engine.Subject{ID: in.ID, Name: in.Name, PreferredRooms: in.PreferredRooms}
	}
	tags := make(map[string]*engine.ActivityTag, len(req.Tags))
	for _, in := range req.Tags {
		tags[in.ID] = &engine.ActivityTag{ID: in.ID, Name: in.Name, PreferredRooms: in.PreferredRooms}
	}
	rooms := make(map[string]*engine.Room, len(req.Rooms))
	for _, in := range req.Rooms {
		room := &engine.Room{
			ID:           in.ID,
			Name:         in.Name,
			Capacity:     in.Capacity,
			NotAvailable: toPeriods(in.NotAvailable),
		}
		rooms[in.ID] = room
		scheduler.AddRoom(room)
	}

	activities := make(map[string]*engine.Activity, len(req.Activities))
	for _, in := range req.Activities {
		activity := &engine.Activity{
			ID:                     in.ID,
			Name:                   in.Name,
			TotalDuration:          in.TotalDuration,
			PreferredStartingTimes: toPeriods(in.PreferredStartingTimes),
			PreferredTimeSlots:     toPeriods(in.PreferredTimeSlots),
			PreferredRooms:         in.PreferredRooms,
		}
		if in.PreferredStartingTime != nil {
			p := engine.Period{Day: in.PreferredStartingTime.Day, Hour: in.PreferredStartingTime.Hour}
			activity.PreferredStartingTime = &p
		}
		if in.SubjectID != "" {
			subject, ok := subjects[in.SubjectID]
			if !ok {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("activity %s references unknown subject %s", in.ID, in.SubjectID))
			}
			activity.Subject = subject
		}
		for _, teacherID := range in.TeacherIDs {
			teacher, ok := teachers[teacherID]
			if !ok {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("activity %s references unknown teacher %s", in.ID, teacherID))
			}
			activity.Teachers = append(activity.Teachers, teacher)
		}
		for _, setID := range in.StudentSetIDs {
			set, ok := studentSets[setID]
			if !ok {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("activity %s references unknown student set %s", in.ID, setID))
			}
			activity.StudentSets = append(activity.StudentSets, set)
		}
		for _, tagID := range in.TagIDs {
			tag, ok := tags[tagID]
			if !ok {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("activity %s references unknown tag %s", in.ID, tagID))
			}
			activity.Tags = append(activity.Tags, tag)
		}
		activities[in.ID] = activity
		scheduler.AddActivity(activity)
	}

	s.addDerivedConstraints(scheduler, req, teachers, studentSets, rooms)

	for _, in := range req.Constraints {
		if err := s.addExplicitConstraint(scheduler, in, teachers, studentSets, rooms, activities); err != nil {
			return nil, err
		}
	}
	return scheduler, nil
}

// addDerivedConstraints turns entity-level limits into hard constraints so
// callers do not have to restate them in the constraints list.
func (s *SolverService) addDerivedConstraints(
	scheduler *engine.Scheduler,
	req dto.GenerateTimetableRequest,
	teachers map[string]*engine.Teacher,
	studentSets map[string]*engine.StudentSet,
	rooms map[string]*engine.Room,
) {
	for _, in := range req.Teachers {
		teacher := teachers[in.ID]
		if len(in.NotAvailable) > 0 {
			scheduler.AddTimeConstraint(engine.NewTeacherNotAvailableConstraint(teacher, engine.HardWeight))
		}
		if in.MaxHoursPerDay > 0 {
			scheduler.AddTimeConstraint(engine.NewTeacherMaxHoursPerDayConstraint(teacher, in.MaxHoursPerDay, engine.HardWeight))
		}
		if in.MaxConsecutiveHours > 0 {
			scheduler.AddTimeConstraint(engine.NewTeacherMaxConsecutiveHoursConstraint(teacher, in.MaxConsecutiveHours, engine.HardWeight))
		}
		if in.MaxDaysPerWeek > 0 {
			scheduler.AddTimeConstraint(engine.NewTeacherMaxDaysPerWeekConstraint(teacher, in.MaxDaysPerWeek, engine.HardWeight))
		}
		if in.MaxSpanPerDay > 0 {
			scheduler.AddTimeConstraint(engine.NewTeacherMaxSpanPerDayConstraint(teacher, in.MaxSpanPerDay, engine.HardWeight))
		}
		if in.MinGapsPerDay > 0 {
			scheduler.AddTimeConstraint(engine.NewTeacherMinGapsPerDayConstraint(teacher, in.MinGapsPerDay, engine.HardWeight))
		}
	}
	for _, in := range req.StudentSets {
		set := studentSets[in.ID]
		if len(in.NotAvailable) > 0 {
			scheduler.AddTimeConstraint(engine.NewStudentSetNotAvailableConstraint(set, engine.HardWeight))
		}
		if in.MaxHoursPerDay > 0 {
			scheduler.AddTimeConstraint(engine.NewStudentSetMaxHoursPerDayConstraint(set, in.MaxHoursPerDay, engine.HardWeight))
		}
	}
	for _, in := range req.Rooms {
		if len(in.NotAvailable) > 0 {
			scheduler.AddSpaceConstraint(engine.NewRoomNotAvailableConstraint(rooms[in.ID], engine.HardWeight))
		}
	}
	for _, in := range req.Activities {
		activity := scheduler.Activity(in.ID)
		if activity == nil {
			continue
		}
		// Preferences are soft by default so construction can still fall back
		// to a full sweep; a preferenceWeight of 100 makes them binding.
		weight := defaultPreferenceWeight
		if in.PreferenceWeight != nil {
			weight = *in.PreferenceWeight
		}
		if len(in.PreferredStartingTimes) > 0 || in.PreferredStartingTime != nil {
			scheduler.AddTimeConstraint(engine.NewPreferredStartingTimesConstraint(activity, weight))
		}
		if len(in.PreferredRooms) > 0 {
			scheduler.AddSpaceConstraint(engine.NewPreferredRoomsConstraint(activity, weight))
		}
	}
}

func (s *SolverService) addExplicitConstraint(
	scheduler *engine.Scheduler,
	in dto.ConstraintInput,
	teachers map[string]*engine.Teacher,
	studentSets map[string]*engine.StudentSet,
	rooms map[string]*engine.Room,
	activities map[string]*engine.Activity,
) error {
	lookupTeacher := func() (*engine.Teacher, error) {
		teacher, ok := teachers[in.TeacherID]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("constraint %s references unknown teacher %s", in.Type, in.TeacherID))
		}
		return teacher, nil
	}
	lookupSet := func() (*engine.StudentSet, error) {
		set, ok := studentSets[in.StudentSet]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("constraint %s references unknown student set %s", in.Type, in.StudentSet))
		}
		return set, nil
	}
	lookupActivities := func() ([]*engine.Activity, error) {
		result := make([]*engine.Activity, 0, len(in.ActivityIDs))
		for _, id := range in.ActivityIDs {
			activity, ok := activities[id]
			if !ok {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("constraint %s references unknown activity %s", in.Type, id))
			}
			result = append(result, activity)
		}
		return result, nil
	}

	var constraint engine.Constraint
	switch engine.ConstraintType(in.Type) {
	case engine.ConstraintTeacherNotAvailable:
		teacher, err := lookupTeacher()
		if err != nil {
			return err
		}
		constraint = engine.NewTeacherNotAvailableConstraint(teacher, in.Weight)
	case engine.ConstraintStudentSetNotAvailable:
		set, err := lookupSet()
		if err != nil {
			return err
		}
		constraint = engine.NewStudentSetNotAvailableConstraint(set, in.Weight)
	case engine.ConstraintRoomNotAvailable:
		room, ok := rooms[in.RoomID]
		if !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("constraint %s references unknown room %s", in.Type, in.RoomID))
		}
		constraint = engine.NewRoomNotAvailableConstraint(room, in.Weight)
	case engine.ConstraintTeacherMaxDaysPerWeek:
		teacher, err := lookupTeacher()
		if err != nil {
			return err
		}
		constraint = engine.NewTeacherMaxDaysPerWeekConstraint(teacher, in.Limit, in.Weight)
	case engine.ConstraintTeacherMaxConsecutiveHours:
		teacher, err := lookupTeacher()
		if err != nil {
			return err
		}
		constraint = engine.NewTeacherMaxConsecutiveHoursConstraint(teacher, in.Limit, in.Weight)
	case engine.ConstraintTeacherMaxHoursPerDay:
		teacher, err := lookupTeacher()
		if err != nil {
			return err
		}
		constraint = engine.NewTeacherMaxHoursPerDayConstraint(teacher, in.Limit, in.Weight)
	case engine.ConstraintTeacherMaxSpanPerDay:
		teacher, err := lookupTeacher()
		if err != nil {
			return err
		}
		constraint = engine.NewTeacherMaxSpanPerDayConstraint(teacher, in.Limit, in.Weight)
	case engine.ConstraintTeacherMinGapsPerDay:
		teacher, err := lookupTeacher()
		if err != nil {
			return err
		}
		constraint = engine.NewTeacherMinGapsPerDayConstraint(teacher, in.MinGaps, in.Weight)
	case engine.ConstraintStudentSetMaxHoursPerDay:
		set, err := lookupSet()
		if err != nil {
			return err
		}
		constraint = engine.NewStudentSetMaxHoursPerDayConstraint(set, in.Limit, in.Weight)
	case engine.ConstraintPreferredStartingTimes:
		activity, ok := activities[in.ActivityID]
		if !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("constraint %s references unknown activity %s", in.Type, in.ActivityID))
		}
		constraint = engine.NewPreferredStartingTimesConstraint(activity, in.Weight)
	case engine.ConstraintPreferredRooms:
		activity, ok := activities[in.ActivityID]
		if !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("constraint %s references unknown activity %s", in.Type, in.ActivityID))
		}
		constraint = engine.NewPreferredRoomsConstraint(activity, in.Weight)
	case engine.ConstraintActivitiesNotOverlapping:
		group, err := lookupActivities()
		if err != nil {
			return err
		}
		constraint = engine.NewActivitiesNotOverlappingConstraint(group, in.Weight)
	case engine.ConstraintMinGapsBetweenActivities:
		group, err := lookupActivities()
		if err != nil {
			return err
		}
		constraint = engine.NewMinGapsBetweenActivitiesConstraint(group, in.MinGaps, in.Weight)
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown constraint type %s", in.Type))
	}

	if in.Active != nil && !*in.Active {
		constraint.SetActive(false)
	}
	switch engine.ConstraintType(in.Type) {
	case engine.ConstraintRoomNotAvailable, engine.ConstraintPreferredRooms:
		scheduler.AddSpaceConstraint(constraint)
	default:
		scheduler.AddTimeConstraint(constraint)
	}
	return nil
}

func (s *SolverService) proposal(id string) (*timetableProposal, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "proposal id is required")
	}
	raw, ok := s.store.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	proposal, ok := raw.(*timetableProposal)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInternal, "corrupt proposal entry")
	}
	return proposal, nil
}

func (s *SolverService) completedProposal(id string) (*timetableProposal, error) {
	proposal, err := s.proposal(id)
	if err != nil {
		return nil, err
	}
	switch proposal.Status {
	case ProposalStatusCompleted:
		return proposal, nil
	case ProposalStatusFailed:
		if proposal.Err != nil {
			return nil, proposal.Err
		}
		return nil, appErrors.Clone(appErrors.ErrInternal, "proposal failed")
	default:
		return nil, appErrors.Clone(appErrors.ErrConflict, "proposal is still being solved")
	}
}

func (s *SolverService) proposalResponse(proposal *timetableProposal) *dto.GenerateTimetableResponse {
	resp := &dto.GenerateTimetableResponse{
		ProposalID: proposal.ID,
		Status:     proposal.Status,
	}
	if proposal.Status != ProposalStatusCompleted {
		return resp
	}

	unplaced := make([]dto.UnplacedActivityDTO, 0, len(proposal.Report.Unplaced))
	for _, item := range proposal.Report.Unplaced {
		unplaced = append(unplaced, dto.UnplacedActivityDTO{ID: item.ID, Name: item.Name})
	}
	resp.Report = dto.SolveReportDTO{
		InitialScore: proposal.Report.InitialScore,
		BestScore:    proposal.Report.BestScore,
		Iterations:   proposal.Report.Iterations,
		Unplaced:     unplaced,
	}

	export := proposal.Scheduler.ExportSchedule(proposal.Assignment)
	resp.Views = &dto.TimetableViews{
		Teachers:    toEntryDTOMap(export.Teachers),
		StudentSets: toEntryDTOMap(export.StudentSets),
		Rooms:       toEntryDTOMap(export.Rooms),
	}
	return resp
}

func (s *SolverService) slotModels(proposal *timetableProposal, runID string) []models.SolveRunSlot {
	ids := make([]string, 0, len(proposal.Request.Activities))
	for _, in := range proposal.Request.Activities {
		ids = append(ids, in.ID)
	}
	sort.Strings(ids)

	slots := make([]models.SolveRunSlot, 0, len(ids))
	for _, id := range ids {
		period, ok := proposal.Assignment.PeriodFor(id)
		if !ok {
			continue
		}
		activity := proposal.Scheduler.Activity(id)
		duration := 1
		if activity != nil {
			duration = activity.TotalDuration
		}
		slot := models.SolveRunSlot{
			SolveRunID: runID,
			ActivityID: id,
			Day:        period.Day,
			StartHour:  period.Hour,
			Duration:   duration,
		}
		if roomID, ok := proposal.Assignment.RoomFor(id); ok && roomID != "" {
			slot.RoomID = &roomID
		}
		slots = append(slots, slot)
	}
	return slots
}

func (s *SolverService) effectiveSeed(req dto.GenerateTimetableRequest) int64 {
	if req.Seed != nil {
		return *req.Seed
	}
	return s.defaults.Seed
}

func toPeriods(refs []dto.PeriodRef) []engine.Period {
	if len(refs) == 0 {
		return nil
	}
	periods := make([]engine.Period, 0, len(refs))
	for _, ref := range refs {
		periods = append(periods, engine.Period{Day: ref.Day, Hour: ref.Hour})
	}
	return periods
}

func toEntryDTOMap(src map[string]map[int][]engine.ScheduleEntry) map[string]map[int][]dto.ScheduleEntryDTO {
	result := make(map[string]map[int][]dto.ScheduleEntryDTO, len(src))
	for key, days := range src {
		converted := make(map[int][]dto.ScheduleEntryDTO, len(days))
		for day, entries := range days {
			list := make([]dto.ScheduleEntryDTO, 0, len(entries))
			for _, entry := range entries {
				list = append(list, dto.ScheduleEntryDTO{
					ActivityID:      entry.ActivityID,
					ActivityName:    entry.ActivityName,
					SubjectName:     entry.SubjectName,
					TeacherNames:    entry.TeacherNames,
					StudentSetNames: entry.StudentSetNames,
					RoomID:          entry.RoomID,
					RoomName:        entry.RoomName,
					Day:             entry.Day,
					StartHour:       entry.StartHour,
					EndHour:         entry.EndHour,
				})
			}
			converted[day] = list
		}
		result[key] = converted
	}
	return result
}
