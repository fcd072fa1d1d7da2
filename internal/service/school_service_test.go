package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryadh-dz/autoecole-api/internal/models"
	appErrors "github.com/ryadh-dz/autoecole-api/pkg/errors"
)

func newSchoolService(t *testing.T) (*SchoolService, *fakeSchoolRepo, *fakeUserRepo) {
	t.Helper()
	users := newFakeUserRepo(
		models.User{ID: "guest-1", Email: "lina@example.com", Role: models.RoleGuest},
		models.User{ID: "student-1", Email: "amine@example.com", Role: models.RoleStudent},
	)
	schools := newFakeSchoolRepo()
	return NewSchoolService(schools, users, nil, nil, nil), schools, users
}

func validSchoolRequest() CreateSchoolRequest {
	return CreateSchoolRequest{
		Name:    "Ecole El Amane",
		State:   "Alger",
		Address: "12 rue Didouche Mourad",
		Price:   45000,
	}
}

func TestCreateSchoolPromotesGuestToManager(t *testing.T) {
	svc, _, users := newSchoolService(t)
	ctx := context.Background()

	school, err := svc.Create(ctx, "guest-1", validSchoolRequest())
	require.NoError(t, err)
	assert.Equal(t, "guest-1", school.ManagerID)
	assert.NotEmpty(t, school.ID)

	user, err := users.FindByID(ctx, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, user.Role)
}

func TestCreateSchoolOnePerManager(t *testing.T) {
	svc, _, _ := newSchoolService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "guest-1", validSchoolRequest())
	require.NoError(t, err)

	req := validSchoolRequest()
	req.Name = "Ecole Essalem"
	_, err = svc.Create(ctx, "guest-1", req)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestCreateSchoolRejectsStudents(t *testing.T) {
	svc, _, _ := newSchoolService(t)

	_, err := svc.Create(context.Background(), "student-1", validSchoolRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestCreateSchoolValidatesPayload(t *testing.T) {
	svc, _, _ := newSchoolService(t)
	ctx := context.Background()

	req := validSchoolRequest()
	req.Name = ""
	_, err := svc.Create(ctx, "guest-1", req)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	req = validSchoolRequest()
	req.State = "Atlantis"
	_, err = svc.Create(ctx, "guest-1", req)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidInput)
}

func TestListSchoolsFiltersByState(t *testing.T) {
	svc, schools, _ := newSchoolService(t)
	ctx := context.Background()
	require.NoError(t, schools.Create(ctx, &models.DrivingSchool{ID: "s1", State: "Alger", ManagerID: "m1"}))
	require.NoError(t, schools.Create(ctx, &models.DrivingSchool{ID: "s2", State: "Oran", ManagerID: "m2"}))

	list, pagination, err := svc.List(ctx, models.SchoolFilter{State: "Oran"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "s2", list[0].ID)
	assert.Equal(t, 1, pagination.TotalCount)

	_, _, err = svc.List(ctx, models.SchoolFilter{State: "Atlantis"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidInput)
}

func TestStatesListCoversAllWilayas(t *testing.T) {
	assert.Len(t, States, 58)
	seen := make(map[string]struct{}, len(States))
	for _, state := range States {
		require.True(t, ValidState(state))
		_, dup := seen[state]
		require.False(t, dup, "duplicate state %s", state)
		seen[state] = struct{}{}
	}
	assert.False(t, ValidState("Atlantis"))
}
