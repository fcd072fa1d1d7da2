// Package catalog defines which documents each role must upload and
// evaluates how complete a user's uploads are. Everything here is pure:
// no storage, no side effects, no errors.
package catalog

import "github.com/ryadh-dz/autoecole-api/internal/models"

// Requirement is one entry in a role's document checklist.
type Requirement struct {
	Kind     models.DocumentKind `json:"kind"`
	Required bool                `json:"required"`
}

var requirementsByRole = map[models.UserRole][]Requirement{
	models.RoleStudent: {
		{Kind: models.DocProfilePhoto, Required: true},
		{Kind: models.DocIDCard, Required: true},
		{Kind: models.DocMedicalCertificate, Required: true},
	},
	models.RoleTeacher: {
		{Kind: models.DocProfilePhoto, Required: true},
		{Kind: models.DocIDCard, Required: true},
		{Kind: models.DocDrivingLicense, Required: true},
		{Kind: models.DocTeachingLicense, Required: true},
	},
	models.RoleManager: {
		{Kind: models.DocProfilePhoto, Required: true},
		{Kind: models.DocIDCard, Required: true},
	},
}

// Required returns the ordered document checklist for a role. Roles with
// no checklist (e.g. guest) yield an empty slice.
func Required(role models.UserRole) []Requirement {
	reqs := requirementsByRole[role]
	out := make([]Requirement, len(reqs))
	copy(out, reqs)
	return out
}
