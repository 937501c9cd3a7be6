package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"parkly/internal/notifications/events"
	reserrors "parkly/internal/reservations/errors"
	"parkly/internal/reservations/validator"
	"parkly/pkg/auth"
	"parkly/pkg/config"
	mongotx "parkly/pkg/db/mongo"
	apperrors "parkly/pkg/errors"
	"parkly/pkg/logger"
	"parkly/pkg/model"
)

const (
	userID  = "507f1f77bcf86cd799439011"
	otherID = "507f1f77bcf86cd799439012"
	spotID  = "507f1f77bcf86cd799439021"
	resID   = "507f1f77bcf86cd799439031"
)

type mockReservationRepository struct {
	createFunc          func(ctx context.Context, r *model.Reservation) error
	findByIDFunc        func(ctx context.Context, id string) (*model.Reservation, error)
	findOverlappingFunc func(ctx context.Context, spotID string, start, end time.Time, excludeID string) ([]*model.Reservation, error)
	findElapsedFunc     func(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error)
	updateIntervalFunc  func(ctx context.Context, id string, start, end time.Time) error
	updateStatusFunc    func(ctx context.Context, id, from, to string) error
}

func (m *mockReservationRepository) Create(ctx context.Context, r *model.Reservation) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, r)
	}
	r.ID = resID
	return nil
}

func (m *mockReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, reserrors.ErrNotFound
}

func (m *mockReservationRepository) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error) {
	return []*model.Reservation{}, nil
}

func (m *mockReservationRepository) FindBySpot(ctx context.Context, spotID string, limit int, offset int64) ([]*model.Reservation, error) {
	return []*model.Reservation{}, nil
}

func (m *mockReservationRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error) {
	return []*model.Reservation{}, nil
}

func (m *mockReservationRepository) FindOverlapping(ctx context.Context, spotID string, start, end time.Time, excludeID string) ([]*model.Reservation, error) {
	if m.findOverlappingFunc != nil {
		return m.findOverlappingFunc(ctx, spotID, start, end, excludeID)
	}
	return []*model.Reservation{}, nil
}

func (m *mockReservationRepository) FindElapsed(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error) {
	if m.findElapsedFunc != nil {
		return m.findElapsedFunc(ctx, now, limit)
	}
	return []*model.Reservation{}, nil
}

func (m *mockReservationRepository) UpdateInterval(ctx context.Context, id string, start, end time.Time) error {
	if m.updateIntervalFunc != nil {
		return m.updateIntervalFunc(ctx, id, start, end)
	}
	return nil
}

func (m *mockReservationRepository) UpdateStatus(ctx context.Context, id, from, to string) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, from, to)
	}
	return nil
}

func (m *mockReservationRepository) Count(ctx context.Context) (int64, error) {
	return 0, nil
}

func (m *mockReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockSpotLockRepository struct {
	createFunc func(ctx context.Context, lock *model.SpotLock) (*model.SpotLock, error)
	deleteFunc func(ctx context.Context, lockID string) error
	deleted    []string
}

func (m *mockSpotLockRepository) Create(ctx context.Context, lock *model.SpotLock) (*model.SpotLock, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, lock)
	}
	return lock, nil
}

func (m *mockSpotLockRepository) Delete(ctx context.Context, lockID string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, lockID)
	}
	m.deleted = append(m.deleted, lockID)
	return nil
}

type mockSpotService struct {
	getByIDFunc      func(ctx context.Context, id string) (*model.Spot, error)
	markReservedFunc func(ctx context.Context, id string) error
	markFreeFunc     func(ctx context.Context, id string) error
	markOccupiedFunc func(ctx context.Context, id string) error
}

func (m *mockSpotService) Create(ctx context.Context, spot *model.Spot) error { return nil }
func (m *mockSpotService) Claim(ctx context.Context, spotNumber, spotType, ownerID string) (*model.Spot, error) {
	return nil, nil
}
func (m *mockSpotService) GetByID(ctx context.Context, id string) (*model.Spot, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &model.Spot{ID: id, Type: model.SpotTypeStandard, Status: model.SpotStatusFree}, nil
}
func (m *mockSpotService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Spot, int64, error) {
	return nil, 0, nil
}
func (m *mockSpotService) ListByStatus(ctx context.Context, status string, limit int, offset int64) ([]*model.Spot, error) {
	return nil, nil
}
func (m *mockSpotService) ListByOwner(ctx context.Context, ownerID string) ([]*model.Spot, error) {
	return nil, nil
}
func (m *mockSpotService) Update(ctx context.Context, id string, updates *model.SpotUpdate) error {
	return nil
}
func (m *mockSpotService) Delete(ctx context.Context, id string) error { return nil }
func (m *mockSpotService) MarkReserved(ctx context.Context, id string) error {
	if m.markReservedFunc != nil {
		return m.markReservedFunc(ctx, id)
	}
	return nil
}
func (m *mockSpotService) MarkFree(ctx context.Context, id string) error {
	if m.markFreeFunc != nil {
		return m.markFreeFunc(ctx, id)
	}
	return nil
}
func (m *mockSpotService) MarkOccupied(ctx context.Context, id string) error {
	if m.markOccupiedFunc != nil {
		return m.markOccupiedFunc(ctx, id)
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:   logger.ERROR,
			Format:  logger.JSON,
			Service: "test",
		}),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		SpotLockTTL:  10 * time.Second,
	}
}

func newService(repo *mockReservationRepository, locks *mockSpotLockRepository, spots *mockSpotService) ReservationService {
	cfg := testConfig()
	return NewReservationService(repo, locks, spots, validator.NewReservationValidator(cfg.Log), events.NoopPublisher{}, cfg)
}

func driverCtx() context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{UserID: userID, Role: auth.RoleDriver})
}

func futureInterval() (time.Time, time.Time) {
	start := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	return start, start.Add(2 * time.Hour)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	appErr := apperrors.AsAppError(err)
	if appErr == nil {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	if appErr.Code != code {
		t.Fatalf("expected code %s, got %s (%v)", code, appErr.Code, err)
	}
}

func TestBook_Success(t *testing.T) {
	var reserved []string
	spots := &mockSpotService{
		markReservedFunc: func(ctx context.Context, id string) error {
			reserved = append(reserved, id)
			return nil
		},
	}
	locks := &mockSpotLockRepository{}
	svc := newService(&mockReservationRepository{}, locks, spots)

	start, end := futureInterval()
	reservation := &model.Reservation{UserID: userID, SpotID: spotID, StartTime: start, EndTime: end}

	if err := svc.Book(driverCtx(), reservation); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reservation.Status != model.ReservationStatusPending {
		t.Errorf("expected pending status, got %s", reservation.Status)
	}
	if len(reserved) != 1 || reserved[0] != spotID {
		t.Errorf("expected spot %s marked reserved, got %v", spotID, reserved)
	}
	if len(locks.deleted) != 1 {
		t.Errorf("expected lock released once, got %v", locks.deleted)
	}
}

func TestBook_OverlapRejected(t *testing.T) {
	start, end := futureInterval()
	created := false
	repo := &mockReservationRepository{
		findOverlappingFunc: func(ctx context.Context, sid string, s, e time.Time, excludeID string) ([]*model.Reservation, error) {
			return []*model.Reservation{
				{ID: otherID, SpotID: sid, StartTime: start.Add(time.Hour), EndTime: end.Add(time.Hour), Status: model.ReservationStatusPending},
			}, nil
		},
		createFunc: func(ctx context.Context, r *model.Reservation) error {
			created = true
			return nil
		},
	}
	svc := newService(repo, &mockSpotLockRepository{}, &mockSpotService{})

	err := svc.Book(driverCtx(), &model.Reservation{UserID: userID, SpotID: spotID, StartTime: start, EndTime: end})
	assertCode(t, err, apperrors.CodeConflict)
	if created {
		t.Error("reservation must not be created when the interval conflicts")
	}
}

func TestBook_AdjacentIntervalAllowed(t *testing.T) {
	_, end := futureInterval()
	repo := &mockReservationRepository{
		findOverlappingFunc: func(ctx context.Context, sid string, s, e time.Time, excludeID string) ([]*model.Reservation, error) {
			// Half-open semantics: a reservation ending exactly at the new
			// start never comes back from the repository filter.
			return []*model.Reservation{}, nil
		},
	}
	svc := newService(repo, &mockSpotLockRepository{}, &mockSpotService{})

	err := svc.Book(driverCtx(), &model.Reservation{UserID: userID, SpotID: spotID, StartTime: end, EndTime: end.Add(time.Hour)})
	if err != nil {
		t.Fatalf("adjacent interval should book cleanly: %v", err)
	}
}

func TestBook_LockContention(t *testing.T) {
	locks := &mockSpotLockRepository{
		createFunc: func(ctx context.Context, lock *model.SpotLock) (*model.SpotLock, error) {
			return nil, mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}
		},
	}
	svc := newService(&mockReservationRepository{}, locks, &mockSpotService{})

	start, end := futureInterval()
	err := svc.Book(driverCtx(), &model.Reservation{UserID: userID, SpotID: spotID, StartTime: start, EndTime: end})
	assertCode(t, err, apperrors.CodeConflict)
}

func TestBook_OccupiedSpotRejected(t *testing.T) {
	spots := &mockSpotService{
		getByIDFunc: func(ctx context.Context, id string) (*model.Spot, error) {
			return &model.Spot{ID: id, Type: model.SpotTypeStandard, Status: model.SpotStatusOccupied}, nil
		},
	}
	svc := newService(&mockReservationRepository{}, &mockSpotLockRepository{}, spots)

	start, end := futureInterval()
	err := svc.Book(driverCtx(), &model.Reservation{UserID: userID, SpotID: spotID, StartTime: start, EndTime: end})
	assertCode(t, err, apperrors.CodeConflict)
}

func TestBook_InvalidIntervalRejected(t *testing.T) {
	svc := newService(&mockReservationRepository{}, &mockSpotLockRepository{}, &mockSpotService{})
	start, _ := futureInterval()

	err := svc.Book(driverCtx(), &model.Reservation{UserID: userID, SpotID: spotID, StartTime: start, EndTime: start})
	assertCode(t, err, apperrors.CodeValidation)

	err = svc.Book(driverCtx(), &model.Reservation{UserID: userID, SpotID: spotID, StartTime: start, EndTime: start.Add(-time.Hour)})
	assertCode(t, err, apperrors.CodeValidation)
}

func TestBook_PastIntervalRejected(t *testing.T) {
	svc := newService(&mockReservationRepository{}, &mockSpotLockRepository{}, &mockSpotService{})

	start := time.Now().Add(-3 * time.Hour)
	err := svc.Book(driverCtx(), &model.Reservation{UserID: userID, SpotID: spotID, StartTime: start, EndTime: start.Add(time.Hour)})
	assertCode(t, err, apperrors.CodeValidation)
}

func TestBook_SpotTransitionFailureCancelsReservation(t *testing.T) {
	var cancelled bool
	repo := &mockReservationRepository{
		updateStatusFunc: func(ctx context.Context, id, from, to string) error {
			if from == model.ReservationStatusPending && to == model.ReservationStatusCancelled {
				cancelled = true
			}
			return nil
		},
	}
	spots := &mockSpotService{
		markReservedFunc: func(ctx context.Context, id string) error {
			return apperrors.State("Spot status changed concurrently, cannot move to reserved")
		},
	}
	svc := newService(repo, &mockSpotLockRepository{}, spots)

	start, end := futureInterval()
	err := svc.Book(driverCtx(), &model.Reservation{UserID: userID, SpotID: spotID, StartTime: start, EndTime: end})
	if err == nil {
		t.Fatal("expected error when spot transition fails")
	}
	if !cancelled {
		t.Error("expected compensating cancel of the inserted reservation")
	}
}

func TestUpdateInterval_ConflictWithOtherReservation(t *testing.T) {
	start, end := futureInterval()
	repo := &mockReservationRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
			return &model.Reservation{ID: resID, UserID: userID, SpotID: spotID, StartTime: start, EndTime: end, Status: model.ReservationStatusPending}, nil
		},
		findOverlappingFunc: func(ctx context.Context, sid string, s, e time.Time, excludeID string) ([]*model.Reservation, error) {
			if excludeID != resID {
				t.Errorf("expected own reservation %s excluded, got %q", resID, excludeID)
			}
			return []*model.Reservation{
				{ID: otherID, SpotID: sid, StartTime: s, EndTime: e, Status: model.ReservationStatusConfirmed},
			}, nil
		},
	}
	svc := newService(repo, &mockSpotLockRepository{}, &mockSpotService{})

	newStart := start.Add(time.Hour)
	newEnd := end.Add(time.Hour)
	err := svc.UpdateInterval(driverCtx(), resID, &model.ReservationUpdate{StartTime: &newStart, EndTime: &newEnd})
	assertCode(t, err, apperrors.CodeConflict)
}

func TestUpdateInterval_OwnWindowShiftSucceeds(t *testing.T) {
	start, end := futureInterval()
	var savedStart, savedEnd time.Time
	repo := &mockReservationRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
			return &model.Reservation{ID: resID, UserID: userID, SpotID: spotID, StartTime: start, EndTime: end, Status: model.ReservationStatusPending}, nil
		},
		findOverlappingFunc: func(ctx context.Context, sid string, s, e time.Time, excludeID string) ([]*model.Reservation, error) {
			return []*model.Reservation{}, nil
		},
		updateIntervalFunc: func(ctx context.Context, id string, s, e time.Time) error {
			savedStart, savedEnd = s, e
			return nil
		},
	}
	svc := newService(repo, &mockSpotLockRepository{}, &mockSpotService{})

	newEnd := end.Add(-time.Hour)
	if err := svc.UpdateInterval(driverCtx(), resID, &model.ReservationUpdate{EndTime: &newEnd}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !savedStart.Equal(start) || !savedEnd.Equal(newEnd) {
		t.Errorf("expected interval [%v, %v), got [%v, %v)", start, newEnd, savedStart, savedEnd)
	}
}

func TestUpdateInterval_ForbiddenForOtherUser(t *testing.T) {
	start, end := futureInterval()
	repo := &mockReservationRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
			return &model.Reservation{ID: resID, UserID: otherID, SpotID: spotID, StartTime: start, EndTime: end, Status: model.ReservationStatusPending}, nil
		},
	}
	svc := newService(repo, &mockSpotLockRepository{}, &mockSpotService{})

	newEnd := end.Add(time.Hour)
	err := svc.UpdateInterval(driverCtx(), resID, &model.ReservationUpdate{EndTime: &newEnd})
	assertCode(t, err, apperrors.CodeForbidden)
}

func TestCancel_FreesSpotAndRejectsSecondCancel(t *testing.T) {
	start, end := futureInterval()
	status := model.ReservationStatusConfirmed
	var freed int
	repo := &mockReservationRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
			return &model.Reservation{ID: resID, UserID: userID, SpotID: spotID, StartTime: start, EndTime: end, Status: status}, nil
		},
		updateStatusFunc: func(ctx context.Context, id, from, to string) error {
			status = to
			return nil
		},
	}
	spots := &mockSpotService{
		getByIDFunc: func(ctx context.Context, id string) (*model.Spot, error) {
			return &model.Spot{ID: id, Type: model.SpotTypeStandard, Status: model.SpotStatusReserved}, nil
		},
		markFreeFunc: func(ctx context.Context, id string) error {
			freed++
			return nil
		},
	}
	svc := newService(repo, &mockSpotLockRepository{}, spots)

	if err := svc.Cancel(driverCtx(), resID); err != nil {
		t.Fatalf("first cancel failed: %v", err)
	}
	if freed != 1 {
		t.Errorf("expected spot freed once, got %d", freed)
	}

	err := svc.Cancel(driverCtx(), resID)
	assertCode(t, err, apperrors.CodeState)
	if freed != 1 {
		t.Errorf("second cancel must not free the spot again, freed %d times", freed)
	}
}

func TestCancel_KeepsSpotWhenOtherReservationsRemain(t *testing.T) {
	start, end := futureInterval()
	var freed int
	repo := &mockReservationRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
			return &model.Reservation{ID: resID, UserID: userID, SpotID: spotID, StartTime: start, EndTime: end, Status: model.ReservationStatusPending}, nil
		},
		findOverlappingFunc: func(ctx context.Context, sid string, s, e time.Time, excludeID string) ([]*model.Reservation, error) {
			return []*model.Reservation{
				{ID: otherID, SpotID: sid, StartTime: start.Add(4 * time.Hour), EndTime: end.Add(4 * time.Hour), Status: model.ReservationStatusConfirmed},
			}, nil
		},
	}
	spots := &mockSpotService{
		markFreeFunc: func(ctx context.Context, id string) error {
			freed++
			return nil
		},
	}
	svc := newService(repo, &mockSpotLockRepository{}, spots)

	if err := svc.Cancel(driverCtx(), resID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if freed != 0 {
		t.Errorf("spot with remaining reservations must stay reserved, freed %d times", freed)
	}
}

func TestConfirm_Transitions(t *testing.T) {
	start, end := futureInterval()
	cases := []struct {
		name     string
		status   string
		wantCode string
	}{
		{"pending confirms", model.ReservationStatusPending, ""},
		{"confirmed is terminal for confirm", model.ReservationStatusConfirmed, apperrors.CodeState},
		{"cancelled rejected", model.ReservationStatusCancelled, apperrors.CodeState},
		{"finished rejected", model.ReservationStatusFinished, apperrors.CodeState},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockReservationRepository{
				findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
					return &model.Reservation{ID: resID, UserID: userID, SpotID: spotID, StartTime: start, EndTime: end, Status: tc.status}, nil
				},
			}
			svc := newService(repo, &mockSpotLockRepository{}, &mockSpotService{})

			err := svc.Confirm(driverCtx(), resID)
			if tc.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			assertCode(t, err, tc.wantCode)
		})
	}
}

func TestSweep_FinishesElapsedReservations(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	var finished []string
	repo := &mockReservationRepository{
		findElapsedFunc: func(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error) {
			return []*model.Reservation{
				{ID: resID, UserID: userID, SpotID: spotID, StartTime: past.Add(-time.Hour), EndTime: past, Status: model.ReservationStatusConfirmed},
				{ID: otherID, UserID: userID, SpotID: spotID, StartTime: past.Add(-3 * time.Hour), EndTime: past.Add(-2 * time.Hour), Status: model.ReservationStatusPending},
			}, nil
		},
		updateStatusFunc: func(ctx context.Context, id, from, to string) error {
			if to != model.ReservationStatusFinished {
				t.Errorf("sweep must only move reservations to finished, got %s", to)
			}
			finished = append(finished, id)
			return nil
		},
	}
	spots := &mockSpotService{
		getByIDFunc: func(ctx context.Context, id string) (*model.Spot, error) {
			return &model.Spot{ID: id, Type: model.SpotTypeStandard, Status: model.SpotStatusReserved}, nil
		},
	}
	svc := newService(repo, &mockSpotLockRepository{}, spots)

	count, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 reservations finished, got %d", count)
	}
	if len(finished) != 2 {
		t.Errorf("expected 2 status updates, got %v", finished)
	}
}

func TestSweep_SkipsConcurrentlyChangedReservations(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	repo := &mockReservationRepository{
		findElapsedFunc: func(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error) {
			return []*model.Reservation{
				{ID: resID, UserID: userID, SpotID: spotID, StartTime: past.Add(-time.Hour), EndTime: past, Status: model.ReservationStatusPending},
			}, nil
		},
		updateStatusFunc: func(ctx context.Context, id, from, to string) error {
			return reserrors.ErrStatusChanged
		},
	}
	svc := newService(repo, &mockSpotLockRepository{}, &mockSpotService{})

	count, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 reservations finished, got %d", count)
	}
}

func TestBook_PastStartRejected(t *testing.T) {
	svc := newService(&mockReservationRepository{}, &mockSpotLockRepository{}, &mockSpotService{})

	start := time.Now().Add(-time.Hour)
	err := svc.Book(driverCtx(), &model.Reservation{UserID: userID, SpotID: spotID, StartTime: start, EndTime: start.Add(2 * time.Hour)})
	assertCode(t, err, apperrors.CodeValidation)
}

func TestUpdateInterval_PastStartRejected(t *testing.T) {
	start, end := futureInterval()
	repo := &mockReservationRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
			return &model.Reservation{ID: resID, UserID: userID, SpotID: spotID, StartTime: start, EndTime: end, Status: model.ReservationStatusPending}, nil
		},
		updateIntervalFunc: func(ctx context.Context, id string, s, e time.Time) error {
			t.Fatal("an interval starting in the past must never be persisted")
			return nil
		},
	}
	svc := newService(repo, &mockSpotLockRepository{}, &mockSpotService{})

	newStart := time.Now().Add(-time.Hour)
	newEnd := time.Now().Add(time.Hour)
	err := svc.UpdateInterval(driverCtx(), resID, &model.ReservationUpdate{StartTime: &newStart, EndTime: &newEnd})
	assertCode(t, err, apperrors.CodeValidation)
}

// newLedgerRepo is a stateful in-memory reservation store whose overlap query
// applies the same half-open filter as the Mongo repository.
func newLedgerRepo() (*mockReservationRepository, *sync.Mutex, *[]*model.Reservation) {
	var mu sync.Mutex
	stored := []*model.Reservation{}
	repo := &mockReservationRepository{
		createFunc: func(ctx context.Context, r *model.Reservation) error {
			mu.Lock()
			defer mu.Unlock()
			r.ID = fmt.Sprintf("%024x", len(stored)+1)
			stored = append(stored, r)
			return nil
		},
		findOverlappingFunc: func(ctx context.Context, sid string, s, e time.Time, excludeID string) ([]*model.Reservation, error) {
			mu.Lock()
			defer mu.Unlock()
			var out []*model.Reservation
			for _, r := range stored {
				if r.SpotID != sid || r.ID == excludeID || r.Status == model.ReservationStatusCancelled {
					continue
				}
				if r.StartTime.Before(e) && r.EndTime.After(s) {
					out = append(out, r)
				}
			}
			return out, nil
		},
	}
	return repo, &mu, &stored
}

func TestBook_RandomizedIntervalsNeverOverlap(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := time.Now().Add(24 * time.Hour).Truncate(time.Hour)

	randomInterval := func() (time.Time, time.Time) {
		start := base.Add(time.Duration(rng.Intn(48*60)) * time.Minute)
		duration := time.Duration(30+rng.Intn(6*60)) * time.Minute
		return start, start.Add(duration)
	}

	for i := 0; i < 200; i++ {
		repo, _, stored := newLedgerRepo()
		svc := newService(repo, &mockSpotLockRepository{}, &mockSpotService{})

		firstStart, firstEnd := randomInterval()
		if err := svc.Book(driverCtx(), &model.Reservation{UserID: userID, SpotID: spotID, StartTime: firstStart, EndTime: firstEnd}); err != nil {
			t.Fatalf("iteration %d: booking an empty spot failed: %v", i, err)
		}

		secondStart, secondEnd := randomInterval()
		overlaps := firstStart.Before(secondEnd) && firstEnd.After(secondStart)
		err := svc.Book(driverCtx(), &model.Reservation{UserID: userID, SpotID: spotID, StartTime: secondStart, EndTime: secondEnd})

		if overlaps {
			assertCode(t, err, apperrors.CodeConflict)
			if len(*stored) != 1 {
				t.Fatalf("iteration %d: conflicting booking left %d reservations", i, len(*stored))
			}
			continue
		}
		if err != nil {
			t.Fatalf("iteration %d: disjoint interval [%v, %v) rejected: %v", i, secondStart, secondEnd, err)
		}
		if len(*stored) != 2 {
			t.Fatalf("iteration %d: expected 2 reservations, got %d", i, len(*stored))
		}
	}
}

func TestBook_ConcurrentAttemptsAdmitExactlyOne(t *testing.T) {
	start, end := futureInterval()

	for i := 0; i < 50; i++ {
		repo, _, stored := newLedgerRepo()

		var lockMu sync.Mutex
		held := map[string]bool{}
		locks := &mockSpotLockRepository{
			createFunc: func(ctx context.Context, lock *model.SpotLock) (*model.SpotLock, error) {
				lockMu.Lock()
				defer lockMu.Unlock()
				if held[lock.ID] {
					return nil, mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}
				}
				held[lock.ID] = true
				return lock, nil
			},
			deleteFunc: func(ctx context.Context, lockID string) error {
				lockMu.Lock()
				defer lockMu.Unlock()
				delete(held, lockID)
				return nil
			},
		}
		svc := newService(repo, locks, &mockSpotService{})

		errs := make([]error, 2)
		var wg sync.WaitGroup
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(j int) {
				defer wg.Done()
				errs[j] = svc.Book(driverCtx(), &model.Reservation{UserID: userID, SpotID: spotID, StartTime: start, EndTime: end})
			}(j)
		}
		wg.Wait()

		successes := 0
		for _, err := range errs {
			if err == nil {
				successes++
				continue
			}
			assertCode(t, err, apperrors.CodeConflict)
		}
		if successes != 1 {
			t.Fatalf("iteration %d: expected exactly one booking to win, got %d (errs: %v)", i, successes, errs)
		}
		if len(*stored) != 1 {
			t.Fatalf("iteration %d: expected 1 stored reservation, got %d", i, len(*stored))
		}
	}
}

func TestBook_RequiresIdentity(t *testing.T) {
	svc := newService(&mockReservationRepository{}, &mockSpotLockRepository{}, &mockSpotService{})

	start, end := futureInterval()
	err := svc.Book(context.Background(), &model.Reservation{UserID: userID, SpotID: spotID, StartTime: start, EndTime: end})
	assertCode(t, err, apperrors.CodeUnauthorized)
}
