package catalog

import "github.com/ryadh-dz/autoecole-api/internal/models"

// Completeness describes how far along a user's document uploads are.
// Presence is what counts; verification is a separate concern.
type Completeness struct {
	Complete bool                  `json:"complete"`
	Missing  []models.DocumentKind `json:"missing"`
	Percent  int                   `json:"percent"`
}

// Evaluate compares uploaded document kinds against the role's checklist.
// Duplicate uploads of the same kind count once, kinds outside the
// checklist are ignored, and a role with no requirements is 100% complete.
func Evaluate(role models.UserRole, uploaded []models.DocumentKind) Completeness {
	required := Required(role)
	if len(required) == 0 {
		return Completeness{Complete: true, Missing: []models.DocumentKind{}, Percent: 100}
	}

	uploadedSet := make(map[models.DocumentKind]struct{}, len(uploaded))
	for _, kind := range uploaded {
		uploadedSet[kind] = struct{}{}
	}

	missing := make([]models.DocumentKind, 0, len(required))
	matched := 0
	for _, req := range required {
		if _, ok := uploadedSet[req.Kind]; ok {
			matched++
		} else {
			missing = append(missing, req.Kind)
		}
	}

	percent := (100*matched + len(required)/2) / len(required)
	return Completeness{
		Complete: len(missing) == 0,
		Missing:  missing,
		Percent:  percent,
	}
}
