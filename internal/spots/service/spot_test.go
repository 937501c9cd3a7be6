package service

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	spoterrors "parkly/internal/spots/errors"
	"parkly/internal/spots/validator"
	"parkly/pkg/auth"
	"parkly/pkg/config"
	mongotx "parkly/pkg/db/mongo"
	apperrors "parkly/pkg/errors"
	"parkly/pkg/logger"
	"parkly/pkg/model"
)

const (
	adminID = "507f1f77bcf86cd799439001"
	ownerID = "507f1f77bcf86cd799439002"
	spotID  = "507f1f77bcf86cd799439021"
)

type mockSpotRepository struct {
	createFunc           func(ctx context.Context, spot *model.Spot) error
	findByIDFunc         func(ctx context.Context, id string) (*model.Spot, error)
	findBySpotNumberFunc func(ctx context.Context, spotNumber string) (*model.Spot, error)
	updateFunc           func(ctx context.Context, id string, fields bson.M) error
	updateStatusFunc     func(ctx context.Context, id, from, to string) error
	deleteFunc           func(ctx context.Context, id string) error
}

func (m *mockSpotRepository) Create(ctx context.Context, spot *model.Spot) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, spot)
	}
	spot.ID = spotID
	return nil
}

func (m *mockSpotRepository) FindByID(ctx context.Context, id string) (*model.Spot, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, spoterrors.ErrNotFound
}

func (m *mockSpotRepository) FindBySpotNumber(ctx context.Context, spotNumber string) (*model.Spot, error) {
	if m.findBySpotNumberFunc != nil {
		return m.findBySpotNumberFunc(ctx, spotNumber)
	}
	return nil, spoterrors.ErrNotFound
}

func (m *mockSpotRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Spot, error) {
	return []*model.Spot{}, nil
}

func (m *mockSpotRepository) FindByStatus(ctx context.Context, status string, limit int, offset int64) ([]*model.Spot, error) {
	return []*model.Spot{}, nil
}

func (m *mockSpotRepository) FindByOwner(ctx context.Context, ownerID string) ([]*model.Spot, error) {
	return []*model.Spot{}, nil
}

func (m *mockSpotRepository) Update(ctx context.Context, id string, fields bson.M) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, fields)
	}
	return nil
}

func (m *mockSpotRepository) UpdateStatus(ctx context.Context, id, fromStatus, toStatus string) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, fromStatus, toStatus)
	}
	return nil
}

func (m *mockSpotRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockSpotRepository) Count(ctx context.Context) (int64, error) {
	return 0, nil
}

func (m *mockSpotRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
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
	}
}

func newService(repo *mockSpotRepository) SpotService {
	cfg := testConfig()
	return NewSpotService(repo, validator.NewSpotValidator(cfg.Log), cfg)
}

func adminCtx() context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{UserID: adminID, Role: auth.RoleAdmin})
}

func ownerCtx() context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{UserID: ownerID, Role: auth.RoleOwner})
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

func TestCreate_RequiresAdmin(t *testing.T) {
	svc := newService(&mockSpotRepository{})

	spot := &model.Spot{SpotNumber: "A-101", Type: model.SpotTypeStandard}
	err := svc.Create(ownerCtx(), spot)
	assertCode(t, err, apperrors.CodeForbidden)

	if err := svc.Create(adminCtx(), spot); err != nil {
		t.Fatalf("admin create failed: %v", err)
	}
	if spot.Status != model.SpotStatusFree {
		t.Errorf("new spot should default to free, got %s", spot.Status)
	}
}

func TestCreate_NormalizesSpotNumber(t *testing.T) {
	var created *model.Spot
	repo := &mockSpotRepository{
		createFunc: func(ctx context.Context, spot *model.Spot) error {
			created = spot
			return nil
		},
	}
	svc := newService(repo)

	if err := svc.Create(adminCtx(), &model.Spot{SpotNumber: "  a-101 ", Type: model.SpotTypeStandard}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("expected spot to reach the repository")
	}
	if created.SpotNumber != "A-101" {
		t.Errorf("expected spot number A-101, got %q", created.SpotNumber)
	}
}

func TestCreate_DuplicateNumberConflicts(t *testing.T) {
	repo := &mockSpotRepository{
		findBySpotNumberFunc: func(ctx context.Context, spotNumber string) (*model.Spot, error) {
			return &model.Spot{ID: spotID, SpotNumber: spotNumber}, nil
		},
	}
	svc := newService(repo)

	err := svc.Create(adminCtx(), &model.Spot{SpotNumber: "A-101", Type: model.SpotTypeStandard})
	assertCode(t, err, apperrors.CodeConflict)
}

func TestCreate_DuplicateIndexRaceConflicts(t *testing.T) {
	repo := &mockSpotRepository{
		createFunc: func(ctx context.Context, spot *model.Spot) error {
			return spoterrors.ErrDuplicateNumber
		},
	}
	svc := newService(repo)

	err := svc.Create(adminCtx(), &model.Spot{SpotNumber: "A-101", Type: model.SpotTypeStandard})
	assertCode(t, err, apperrors.CodeConflict)
}

func TestCreate_InvalidTypeRejected(t *testing.T) {
	svc := newService(&mockSpotRepository{})

	err := svc.Create(adminCtx(), &model.Spot{SpotNumber: "A-101", Type: "helipad"})
	assertCode(t, err, apperrors.CodeValidation)
}

func TestClaim_DefaultsTypeAndOwner(t *testing.T) {
	svc := newService(&mockSpotRepository{})

	spot, err := svc.Claim(ownerCtx(), "B-7", "", ownerID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spot.Type != model.SpotTypeStandard {
		t.Errorf("expected standard type default, got %s", spot.Type)
	}
	if spot.OwnerID != ownerID {
		t.Errorf("expected owner %s, got %s", ownerID, spot.OwnerID)
	}
	if spot.Status != model.SpotStatusFree {
		t.Errorf("claimed spot should start free, got %s", spot.Status)
	}
}

func TestUpdate_OwnerOnly(t *testing.T) {
	repo := &mockSpotRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Spot, error) {
			return &model.Spot{ID: id, SpotNumber: "A-101", Type: model.SpotTypeStandard, Status: model.SpotStatusFree, OwnerID: adminID}, nil
		},
	}
	svc := newService(repo)

	err := svc.Update(ownerCtx(), spotID, &model.SpotUpdate{Type: model.SpotTypeElectric})
	assertCode(t, err, apperrors.CodeForbidden)
}

func TestUpdate_BuildsPartialFieldSet(t *testing.T) {
	var fields bson.M
	repo := &mockSpotRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Spot, error) {
			return &model.Spot{ID: id, SpotNumber: "A-101", Type: model.SpotTypeStandard, Status: model.SpotStatusFree, OwnerID: ownerID}, nil
		},
		updateFunc: func(ctx context.Context, id string, f bson.M) error {
			fields = f
			return nil
		},
	}
	svc := newService(repo)

	overrideID := "507f1f77bcf86cd799439099"
	err := svc.Update(ownerCtx(), spotID, &model.SpotUpdate{Type: model.SpotTypeElectric, PricingOverrideID: &overrideID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields updated, got %v", fields)
	}
	if fields["type"] != model.SpotTypeElectric {
		t.Errorf("expected type update, got %v", fields["type"])
	}
	if fields["pricing_override_id"] != overrideID {
		t.Errorf("expected pricing override update, got %v", fields["pricing_override_id"])
	}
}

func TestUpdate_EmptyUpdateRejected(t *testing.T) {
	repo := &mockSpotRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Spot, error) {
			return &model.Spot{ID: id, SpotNumber: "A-101", Type: model.SpotTypeStandard, Status: model.SpotStatusFree, OwnerID: ownerID}, nil
		},
	}
	svc := newService(repo)

	err := svc.Update(ownerCtx(), spotID, &model.SpotUpdate{})
	assertCode(t, err, apperrors.CodeInvalidInput)
}

func TestDelete_RequiresAdmin(t *testing.T) {
	svc := newService(&mockSpotRepository{})

	err := svc.Delete(ownerCtx(), spotID)
	assertCode(t, err, apperrors.CodeForbidden)

	if err := svc.Delete(adminCtx(), spotID); err != nil {
		t.Fatalf("admin delete failed: %v", err)
	}
}

func TestTransitions(t *testing.T) {
	cases := []struct {
		name     string
		from     string
		move     func(svc SpotService, ctx context.Context) error
		wantTo   string
		wantCode string
	}{
		{"free to reserved", model.SpotStatusFree, func(svc SpotService, ctx context.Context) error {
			return svc.MarkReserved(ctx, spotID)
		}, model.SpotStatusReserved, ""},
		{"reserved to occupied", model.SpotStatusReserved, func(svc SpotService, ctx context.Context) error {
			return svc.MarkOccupied(ctx, spotID)
		}, model.SpotStatusOccupied, ""},
		{"reserved back to free", model.SpotStatusReserved, func(svc SpotService, ctx context.Context) error {
			return svc.MarkFree(ctx, spotID)
		}, model.SpotStatusFree, ""},
		{"occupied to free", model.SpotStatusOccupied, func(svc SpotService, ctx context.Context) error {
			return svc.MarkFree(ctx, spotID)
		}, model.SpotStatusFree, ""},
		{"free straight to occupied rejected", model.SpotStatusFree, func(svc SpotService, ctx context.Context) error {
			return svc.MarkOccupied(ctx, spotID)
		}, "", apperrors.CodeState},
		{"occupied to reserved rejected", model.SpotStatusOccupied, func(svc SpotService, ctx context.Context) error {
			return svc.MarkReserved(ctx, spotID)
		}, "", apperrors.CodeState},
		{"reserved to reserved rejected", model.SpotStatusReserved, func(svc SpotService, ctx context.Context) error {
			return svc.MarkReserved(ctx, spotID)
		}, "", apperrors.CodeState},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var gotFrom, gotTo string
			repo := &mockSpotRepository{
				findByIDFunc: func(ctx context.Context, id string) (*model.Spot, error) {
					return &model.Spot{ID: id, SpotNumber: "A-101", Type: model.SpotTypeStandard, Status: tc.from}, nil
				},
				updateStatusFunc: func(ctx context.Context, id, from, to string) error {
					gotFrom, gotTo = from, to
					return nil
				},
			}
			svc := newService(repo)

			err := tc.move(svc, adminCtx())
			if tc.wantCode != "" {
				assertCode(t, err, tc.wantCode)
				if gotTo != "" {
					t.Errorf("rejected transition must not hit the repository, got %s -> %s", gotFrom, gotTo)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotFrom != tc.from || gotTo != tc.wantTo {
				t.Errorf("expected %s -> %s, got %s -> %s", tc.from, tc.wantTo, gotFrom, gotTo)
			}
		})
	}
}

func TestTransition_ConcurrentChangeIsStateError(t *testing.T) {
	repo := &mockSpotRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Spot, error) {
			return &model.Spot{ID: id, SpotNumber: "A-101", Type: model.SpotTypeStandard, Status: model.SpotStatusFree}, nil
		},
		updateStatusFunc: func(ctx context.Context, id, from, to string) error {
			return spoterrors.ErrStatusChanged
		},
	}
	svc := newService(repo)

	err := svc.MarkReserved(adminCtx(), spotID)
	assertCode(t, err, apperrors.CodeState)
}

func TestListByStatus_RejectsUnknownStatus(t *testing.T) {
	svc := newService(&mockSpotRepository{})

	if _, err := svc.ListByStatus(adminCtx(), "parked", 10, 0); err == nil {
		t.Fatal("expected error for unknown status")
	} else {
		assertCode(t, err, apperrors.CodeInvalidInput)
	}
}

func TestListByOwner_OwnOrAdmin(t *testing.T) {
	svc := newService(&mockSpotRepository{})

	if _, err := svc.ListByOwner(ownerCtx(), adminID); err == nil {
		t.Fatal("expected forbidden for foreign owner listing")
	} else {
		assertCode(t, err, apperrors.CodeForbidden)
	}

	if _, err := svc.ListByOwner(adminCtx(), ownerID); err != nil {
		t.Fatalf("admin listing failed: %v", err)
	}
	if _, err := svc.ListByOwner(ownerCtx(), ownerID); err != nil {
		t.Fatalf("own listing failed: %v", err)
	}
}
