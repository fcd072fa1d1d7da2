package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ryadh-dz/autoecole-api/internal/models"
	appErrors "github.com/ryadh-dz/autoecole-api/pkg/errors"
)

type schoolRepository interface {
	Create(ctx context.Context, school *models.DrivingSchool) error
	FindByID(ctx context.Context, id string) (*models.DrivingSchool, error)
	FindByManager(ctx context.Context, managerID string) (*models.DrivingSchool, error)
	ExistsForManager(ctx context.Context, managerID string) (bool, error)
	List(ctx context.Context, filter models.SchoolFilter) ([]models.DrivingSchool, int, error)
}

type schoolUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateRole(ctx context.Context, id string, from []models.UserRole, to models.UserRole) (bool, error)
}

// States is the fixed list of wilayas a school or user can register under.
var States = []string{
	"Adrar", "Chlef", "Laghouat", "Oum El Bouaghi", "Batna", "Béjaïa",
	"Biskra", "Béchar", "Blida", "Bouira", "Tamanrasset", "Tébessa",
	"Tlemcen", "Tiaret", "Tizi Ouzou", "Alger", "Djelfa", "Jijel",
	"Sétif", "Saïda", "Skikda", "Sidi Bel Abbès", "Annaba", "Guelma",
	"Constantine", "Médéa", "Mostaganem", "M'Sila", "Mascara", "Ouargla",
	"Oran", "El Bayadh", "Illizi", "Bordj Bou Arréridj", "Boumerdès",
	"El Tarf", "Tindouf", "Tissemsilt", "El Oued", "Khenchela",
	"Souk Ahras", "Tipaza", "Mila", "Aïn Defla", "Naâma",
	"Aïn Témouchent", "Ghardaïa", "Relizane", "Timimoun",
	"Bordj Badji Mokhtar", "Ouled Djellal", "Béni Abbès", "In Salah",
	"In Guezzam", "Touggourt", "Djanet", "El M'Ghair", "El Meniaa",
}

// CreateSchoolRequest holds payload for registering a driving school.
type CreateSchoolRequest struct {
	Name        string  `json:"name" validate:"required"`
	State       string  `json:"state" validate:"required"`
	Address     string  `json:"address" validate:"required"`
	Price       float64 `json:"price" validate:"gt=0"`
	Description string  `json:"description"`
}

// SchoolService manages the driving school directory. Each manager owns at
// most one school and ownership never changes.
type SchoolService struct {
	repo      schoolRepository
	users     schoolUserRepository
	validator *validator.Validate
	cache     *CacheService
	logger    *zap.Logger
}

// NewSchoolService constructs the school service.
func NewSchoolService(repo schoolRepository, users schoolUserRepository, validate *validator.Validate, cache *CacheService, logger *zap.Logger) *SchoolService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchoolService{repo: repo, users: users, validator: validate, cache: cache, logger: logger}
}

// Create registers a school owned by the caller. A guest creator is
// promoted to manager; a caller who already owns a school gets a conflict.
func (s *SchoolService) Create(ctx context.Context, ownerID string, req CreateSchoolRequest) (*models.DrivingSchool, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}
	if !ValidState(req.State) {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "unknown state")
	}

	user, err := s.users.FindByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != models.RoleGuest && user.Role != models.RoleManager {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students and teachers cannot register a school")
	}

	exists, err := s.repo.ExistsForManager(ctx, ownerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing school")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "manager already owns a school")
	}

	if user.Role == models.RoleGuest {
		if _, err := s.users.UpdateRole(ctx, ownerID, []models.UserRole{models.RoleGuest}, models.RoleManager); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote user to manager")
		}
	}

	school := &models.DrivingSchool{
		ID:          uuid.NewString(),
		Name:        req.Name,
		State:       req.State,
		Address:     req.Address,
		Price:       req.Price,
		Description: req.Description,
		ManagerID:   ownerID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create school")
	}

	s.logger.Info("driving school created",
		zap.String("school_id", school.ID),
		zap.String("manager_id", ownerID),
		zap.String("state", school.State))
	return school, nil
}

// Get returns one school by ID.
func (s *SchoolService) Get(ctx context.Context, id string) (*models.DrivingSchool, error) {
	school, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "driving school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	return school, nil
}

// Mine returns the caller's school.
func (s *SchoolService) Mine(ctx context.Context, managerID string) (*models.DrivingSchool, error) {
	school, err := s.repo.FindByManager(ctx, managerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "you do not own a school")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	return school, nil
}

// List returns schools filtered by state with pagination metadata.
func (s *SchoolService) List(ctx context.Context, filter models.SchoolFilter) ([]models.DrivingSchool, *models.Pagination, error) {
	if filter.State != "" && !ValidState(filter.State) {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidInput, "unknown state")
	}
	schools, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schools")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return schools, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ValidState reports whether the state is a known wilaya.
func ValidState(state string) bool {
	for _, s := range States {
		if s == state {
			return true
		}
	}
	return false
}
