package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryadh-dz/autoecole-api/internal/models"
)

func TestRequiredPerRole(t *testing.T) {
	assert.Len(t, Required(models.RoleStudent), 3)
	assert.Len(t, Required(models.RoleTeacher), 4)
	assert.Len(t, Required(models.RoleManager), 2)
	assert.Empty(t, Required(models.RoleGuest))
	assert.Empty(t, Required(models.UserRole("unknown")))
}

func TestRequiredReturnsCopy(t *testing.T) {
	first := Required(models.RoleStudent)
	first[0].Kind = models.DocumentKind("mutated")
	assert.Equal(t, models.DocProfilePhoto, Required(models.RoleStudent)[0].Kind)
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		role       models.UserRole
		uploaded   []models.DocumentKind
		complete   bool
		percent    int
		missingLen int
	}{
		{
			name:       "nothing uploaded",
			role:       models.RoleStudent,
			uploaded:   nil,
			complete:   false,
			percent:    0,
			missingLen: 3,
		},
		{
			name:       "partial upload",
			role:       models.RoleStudent,
			uploaded:   []models.DocumentKind{models.DocProfilePhoto},
			complete:   false,
			percent:    33,
			missingLen: 2,
		},
		{
			name:       "duplicates count once",
			role:       models.RoleStudent,
			uploaded:   []models.DocumentKind{models.DocIDCard, models.DocIDCard},
			complete:   false,
			percent:    33,
			missingLen: 2,
		},
		{
			name: "off-catalog kinds ignored",
			role: models.RoleStudent,
			uploaded: []models.DocumentKind{
				models.DocProfilePhoto, models.DocTeachingLicense,
			},
			complete:   false,
			percent:    33,
			missingLen: 2,
		},
		{
			name: "all uploaded",
			role: models.RoleStudent,
			uploaded: []models.DocumentKind{
				models.DocProfilePhoto, models.DocIDCard, models.DocMedicalCertificate,
			},
			complete:   true,
			percent:    100,
			missingLen: 0,
		},
		{
			name:       "teacher three of four rounds",
			role:       models.RoleTeacher,
			uploaded:   []models.DocumentKind{models.DocProfilePhoto, models.DocIDCard, models.DocDrivingLicense},
			complete:   false,
			percent:    75,
			missingLen: 1,
		},
		{
			name:       "role without requirements is complete",
			role:       models.RoleGuest,
			uploaded:   nil,
			complete:   true,
			percent:    100,
			missingLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.role, tt.uploaded)
			assert.Equal(t, tt.complete, got.Complete)
			assert.Equal(t, tt.percent, got.Percent)
			assert.Len(t, got.Missing, tt.missingLen)
		})
	}
}

// Missing plus matched uploads must always account for every required kind.
func TestEvaluatePartition(t *testing.T) {
	roles := []models.UserRole{models.RoleStudent, models.RoleTeacher, models.RoleManager, models.RoleGuest}
	uploadSets := [][]models.DocumentKind{
		nil,
		{models.DocProfilePhoto},
		{models.DocProfilePhoto, models.DocProfilePhoto, models.DocIDCard},
		{models.DocIDCard, models.DocMedicalCertificate, models.DocDrivingLicense, models.DocTeachingLicense},
		{models.DocProfilePhoto, models.DocIDCard, models.DocMedicalCertificate, models.DocDrivingLicense, models.DocTeachingLicense},
	}

	for _, role := range roles {
		required := Required(role)
		catalogKinds := make(map[models.DocumentKind]struct{})
		for _, req := range required {
			catalogKinds[req.Kind] = struct{}{}
		}

		for _, uploads := range uploadSets {
			result := Evaluate(role, uploads)

			matched := make(map[models.DocumentKind]struct{})
			for _, kind := range uploads {
				if _, ok := catalogKinds[kind]; ok {
					matched[kind] = struct{}{}
				}
			}

			require.Equal(t, len(required), len(result.Missing)+len(matched),
				"role %s uploads %v", role, uploads)
		}
	}
}
