package service

import (
	"context"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/models"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

type stubRunRepo struct {
	created *models.SolveRun
	runs    []models.SolveRun
	findErr error
}

func (s *stubRunRepo) CreateVersioned(_ context.Context, _ sqlx.ExtContext, run *models.SolveRun) error {
	run.ID = "run-1"
	run.Version = 1
	s.created = run
	return nil
}

func (s *stubRunRepo) List(_ context.Context, _ string, _, _ int) ([]models.SolveRun, int, error) {
	return s.runs, len(s.runs), nil
}

func (s *stubRunRepo) FindByID(_ context.Context, id string) (*models.SolveRun, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	for i := range s.runs {
		if s.runs[i].ID == id {
			return &s.runs[i], nil
		}
	}
	return nil, appErrors.ErrNotFound
}

func (s *stubRunRepo) UpdateStatus(_ context.Context, _ sqlx.ExtContext, id string, status models.SolveRunStatus) error {
	for i := range s.runs {
		if s.runs[i].ID == id {
			s.runs[i].Status = status
		}
	}
	return nil
}

func (s *stubRunRepo) Delete(_ context.Context, _ string) error { return nil }

type stubSlotRepo struct {
	inserted []models.SolveRunSlot
}

func (s *stubSlotRepo) InsertBatch(_ context.Context, _ sqlx.ExtContext, slots []models.SolveRunSlot) error {
	s.inserted = append(s.inserted, slots...)
	return nil
}

func (s *stubSlotRepo) ListByRun(_ context.Context, _ string) ([]models.SolveRunSlot, error) {
	return s.inserted, nil
}

type stubObserver struct {
	count    int
	score    float64
	unplaced int
}

func (s *stubObserver) ObserveSolve(_ time.Duration, score float64, unplaced int) {
	s.count++
	s.score = score
	s.unplaced = unplaced
}

func solverFixtureRequest() dto.GenerateTimetableRequest {
	return dto.GenerateTimetableRequest{
		Label:         "autumn",
		Days:          5,
		PeriodsPerDay: 8,
		Teachers: []dto.TeacherInput{
			{ID: "t1", Name: "Ms. Garnet", NotAvailable: []dto.PeriodRef{{Day: 4, Hour: 0}}},
		},
		StudentSets: []dto.StudentSetInput{{ID: "g1", Name: "10A"}},
		Subjects:    []dto.SubjectInput{{ID: "sub1", Name: "Mathematics"}},
		Rooms:       []dto.RoomInput{{ID: "r1", Name: "Room 101"}, {ID: "r2", Name: "Room 102"}},
		Activities: []dto.ActivityInput{
			{ID: "a1", Name: "Math 10A", SubjectID: "sub1", TeacherIDs: []string{"t1"}, StudentSetIDs: []string{"g1"}, TotalDuration: 2},
			{ID: "a2", Name: "Math club", TeacherIDs: []string{"t1"}, TotalDuration: 1},
		},
	}
}

func newSolverFixture(observer solveObserver) *SolverService {
	return NewSolverService(nil, nil, nil, nil, zap.NewNop(), observer, SolverDefaults{
		Seed:               7,
		MaxIterations:      50,
		InitialTemperature: 20,
		CoolingRate:        0.9,
		ProposalTTL:        time.Minute,
	})
}

func TestSolverServiceGenerateSync(t *testing.T) {
	observer := &stubObserver{}
	svc := newSolverFixture(observer)

	resp, err := svc.Generate(context.Background(), solverFixtureRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ProposalID)
	assert.Equal(t, ProposalStatusCompleted, resp.Status)
	assert.Empty(t, resp.Report.Unplaced)
	assert.GreaterOrEqual(t, resp.Report.BestScore, resp.Report.InitialScore)
	require.NotNil(t, resp.Views)
	assert.Contains(t, resp.Views.Teachers, "t1")
	assert.Contains(t, resp.Views.StudentSets, "g1")
	assert.Equal(t, 1, observer.count)
}

func TestSolverServiceGenerateRejectsMissingRooms(t *testing.T) {
	svc := newSolverFixture(nil)
	req := solverFixtureRequest()
	req.Rooms = nil

	_, err := svc.Generate(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSolverServiceGenerateRejectsUnknownTeacherRef(t *testing.T) {
	svc := newSolverFixture(nil)
	req := solverFixtureRequest()
	req.Activities[0].TeacherIDs = []string{"ghost"}

	_, err := svc.Generate(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSolverServiceGenerateRejectsUnknownConstraintType(t *testing.T) {
	svc := newSolverFixture(nil)
	req := solverFixtureRequest()
	req.Constraints = []dto.ConstraintInput{{Type: "NOPE", Weight: 50}}

	_, err := svc.Generate(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSolverServiceExplicitConstraints(t *testing.T) {
	svc := newSolverFixture(nil)
	req := solverFixtureRequest()
	req.Constraints = []dto.ConstraintInput{
		{Type: "TEACHER_MAX_HOURS_PER_DAY", Weight: 60, TeacherID: "t1", Limit: 4},
		{Type: "TEACHER_MIN_GAPS_PER_DAY", Weight: 30, TeacherID: "t1", MinGaps: 1},
		{Type: "ACTIVITIES_NOT_OVERLAPPING", Weight: 100, ActivityIDs: []string{"a1", "a2"}},
	}

	resp, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, ProposalStatusCompleted, resp.Status)
}

func TestSolverServiceViolations(t *testing.T) {
	svc := newSolverFixture(nil)
	resp, err := svc.Generate(context.Background(), solverFixtureRequest())
	require.NoError(t, err)

	violations, err := svc.Violations(context.Background(), resp.ProposalID)
	require.NoError(t, err)
	// fixture is satisfiable, so no active constraint should be failing
	assert.Empty(t, violations)
}

func TestSolverServiceGetProposalUnknown(t *testing.T) {
	svc := newSolverFixture(nil)
	_, err := svc.GetProposal(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSolverServiceAsyncSolve(t *testing.T) {
	svc := newSolverFixture(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	req := solverFixtureRequest()
	req.Async = true
	resp, err := svc.Generate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, ProposalStatusPending, resp.Status)

	require.Eventually(t, func() bool {
		status, err := svc.GetProposal(ctx, resp.ProposalID)
		return err == nil && status.Status == ProposalStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)
}

func TestSolverServiceAsyncCompletedReadsAreFullyBuilt(t *testing.T) {
	svc := newSolverFixture(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	req := solverFixtureRequest()
	req.Async = true
	resp, err := svc.Generate(ctx, req)
	require.NoError(t, err)

	// concurrent pollers racing the worker must only ever observe a pending
	// state or a fully built result, never a COMPLETED shell without views
	results := make(chan *dto.GenerateTimetableResponse, 4)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deadline := time.Now().Add(5 * time.Second)
			for time.Now().Before(deadline) {
				status, err := svc.GetProposal(ctx, resp.ProposalID)
				if err == nil && status.Status == ProposalStatusCompleted {
					results <- status
					return
				}
				time.Sleep(time.Millisecond)
			}
			results <- nil
		}()
	}
	wg.Wait()
	close(results)

	for status := range results {
		require.NotNil(t, status)
		require.NotNil(t, status.Views)
		assert.GreaterOrEqual(t, status.Report.BestScore, status.Report.InitialScore)
	}
}

func TestSolverServiceDerivedTeacherMinGaps(t *testing.T) {
	svc := newSolverFixture(nil)

	build := func(periodsPerDay int) dto.GenerateTimetableRequest {
		req := solverFixtureRequest()
		req.Days = 1
		req.PeriodsPerDay = periodsPerDay
		req.Teachers[0].NotAvailable = nil
		req.Teachers[0].MinGapsPerDay = 1
		req.Activities = []dto.ActivityInput{
			{ID: "a1", Name: "Math", TeacherIDs: []string{"t1"}, TotalDuration: 1},
			{ID: "a2", Name: "Physics", TeacherIDs: []string{"t1"}, TotalDuration: 1},
		}
		return req
	}

	// two hours on the day leave no room for a gap, so one activity must yield
	resp, err := svc.Generate(context.Background(), build(2))
	require.NoError(t, err)
	assert.Len(t, resp.Report.Unplaced, 1)

	// a third hour makes hours 0 and 2 feasible
	resp, err = svc.Generate(context.Background(), build(3))
	require.NoError(t, err)
	assert.Empty(t, resp.Report.Unplaced)
}

func TestSolverServicePreferenceWeightControlsFallback(t *testing.T) {
	svc := newSolverFixture(nil)

	build := func() dto.GenerateTimetableRequest {
		req := solverFixtureRequest()
		req.Teachers[0].NotAvailable = nil
		req.Activities = []dto.ActivityInput{
			{ID: "a1", Name: "Math", TeacherIDs: []string{"t1"}, TotalDuration: 1, PreferredStartingTimes: []dto.PeriodRef{{Day: 0, Hour: 0}}},
			{ID: "a2", Name: "Physics", TeacherIDs: []string{"t1"}, TotalDuration: 1, PreferredStartingTimes: []dto.PeriodRef{{Day: 0, Hour: 0}}},
		}
		return req
	}

	// soft by default: the loser of the contested slot still lands elsewhere
	resp, err := svc.Generate(context.Background(), build())
	require.NoError(t, err)
	assert.Empty(t, resp.Report.Unplaced)

	// binding at weight 100: only one activity can honor the preference
	binding := 100.0
	req := build()
	req.Activities[0].PreferenceWeight = &binding
	req.Activities[1].PreferenceWeight = &binding
	resp, err = svc.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, resp.Report.Unplaced, 1)
}

func TestSolverServiceSaveWithoutPersistence(t *testing.T) {
	svc := newSolverFixture(nil)
	resp, err := svc.Generate(context.Background(), solverFixtureRequest())
	require.NoError(t, err)

	_, err = svc.Save(context.Background(), resp.ProposalID, dto.SaveTimetableRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestSolverServiceSavePersistsSlots(t *testing.T) {
	rawDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer rawDB.Close()
	db := sqlx.NewDb(rawDB, "sqlmock")

	mock.ExpectBegin()
	mock.ExpectCommit()

	runs := &stubRunRepo{}
	slots := &stubSlotRepo{}
	svc := NewSolverService(runs, slots, db, nil, zap.NewNop(), nil, SolverDefaults{
		Seed:               7,
		MaxIterations:      50,
		InitialTemperature: 20,
		CoolingRate:        0.9,
		ProposalTTL:        time.Minute,
	})

	resp, err := svc.Generate(context.Background(), solverFixtureRequest())
	require.NoError(t, err)

	run, err := svc.Save(context.Background(), resp.ProposalID, dto.SaveTimetableRequest{Label: "final"})
	require.NoError(t, err)
	assert.Equal(t, "final", run.Label)
	assert.Equal(t, models.SolveRunStatusDraft, run.Status)
	assert.Len(t, slots.inserted, 2)
	for _, slot := range slots.inserted {
		assert.Equal(t, "run-1", slot.SolveRunID)
		assert.NotNil(t, slot.RoomID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())

	// proposal is consumed on save
	_, err = svc.GetProposal(context.Background(), resp.ProposalID)
	require.Error(t, err)
}

func TestSolverServiceSaveForceSkipsUnplaced(t *testing.T) {
	rawDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer rawDB.Close()
	db := sqlx.NewDb(rawDB, "sqlmock")

	mock.ExpectBegin()
	mock.ExpectCommit()

	runs := &stubRunRepo{}
	slots := &stubSlotRepo{}
	svc := NewSolverService(runs, slots, db, nil, zap.NewNop(), nil, SolverDefaults{
		Seed:               7,
		MaxIterations:      50,
		InitialTemperature: 20,
		CoolingRate:        0.9,
		ProposalTTL:        time.Minute,
	})

	req := solverFixtureRequest()
	// longer than any day, so it can never be placed
	req.Activities = append(req.Activities, dto.ActivityInput{ID: "a9", Name: "Marathon", TotalDuration: 99})

	resp, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Report.Unplaced)

	_, err = svc.Save(context.Background(), resp.ProposalID, dto.SaveTimetableRequest{Label: "partial"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInfeasible.Code, appErrors.FromError(err).Code)

	run, err := svc.Save(context.Background(), resp.ProposalID, dto.SaveTimetableRequest{Label: "partial", Force: true})
	require.NoError(t, err)
	assert.Equal(t, "partial", run.Label)
	assert.Len(t, slots.inserted, 2)
	for _, slot := range slots.inserted {
		assert.NotEqual(t, "a9", slot.ActivityID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSolverServiceDeterministicPerSeed(t *testing.T) {
	build := func() *dto.GenerateTimetableResponse {
		svc := newSolverFixture(nil)
		seed := int64(1234)
		req := solverFixtureRequest()
		req.Seed = &seed
		resp, err := svc.Generate(context.Background(), req)
		require.NoError(t, err)
		return resp
	}

	first := build()
	second := build()
	assert.Equal(t, first.Report, second.Report)
	assert.Equal(t, first.Views, second.Views)
}
