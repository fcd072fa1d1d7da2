package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/ryadh-dz/autoecole-api/internal/models"
)

// In-memory repositories used across the service tests. The conditional
// updates mirror the SQL guards so stale writes fail the same way.

type fakeCourseRepo struct {
	courses map[string]models.Course
}

func newFakeCourseRepo() *fakeCourseRepo {
	return &fakeCourseRepo{courses: make(map[string]models.Course)}
}

func (m *fakeCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *fakeCourseRepo) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Course, error) {
	out := make([]models.Course, 0, len(models.CourseSequence))
	for _, courseType := range models.CourseSequence {
		for _, c := range m.courses {
			if c.EnrollmentID == enrollmentID && c.Type == courseType {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (m *fakeCourseRepo) FindByEnrollmentAndType(ctx context.Context, enrollmentID string, courseType models.CourseType) (*models.Course, error) {
	for _, c := range m.courses {
		if c.EnrollmentID == enrollmentID && c.Type == courseType {
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *fakeCourseRepo) Unlock(ctx context.Context, id string) (bool, error) {
	c, ok := m.courses[id]
	if !ok || c.Status != models.CourseLocked {
		return false, nil
	}
	c.Status = models.CourseAvailable
	m.courses[id] = c
	return true, nil
}

func (m *fakeCourseRepo) ApplySession(ctx context.Context, id string, observedSessions int, newStatus models.CourseStatus, newExamStatus models.ExamStatus) (bool, error) {
	c, ok := m.courses[id]
	if !ok {
		return false, nil
	}
	if c.CompletedSessions != observedSessions || c.CompletedSessions >= c.TotalSessions {
		return false, nil
	}
	if c.Status != models.CourseAvailable && c.Status != models.CourseInProgress {
		return false, nil
	}
	c.CompletedSessions++
	c.Status = newStatus
	c.ExamStatus = newExamStatus
	m.courses[id] = c
	return true, nil
}

func (m *fakeCourseRepo) ApplyExamResult(ctx context.Context, id string, score int, result models.ExamStatus, newStatus models.CourseStatus) (bool, error) {
	c, ok := m.courses[id]
	if !ok || c.ExamStatus != models.ExamAvailable {
		return false, nil
	}
	c.ExamStatus = result
	c.ExamScore = &score
	c.Status = newStatus
	m.courses[id] = c
	return true, nil
}

func (m *fakeCourseRepo) ResetForRetake(ctx context.Context, id string) (bool, error) {
	c, ok := m.courses[id]
	if !ok || c.ExamStatus != models.ExamFailed {
		return false, nil
	}
	c.CompletedSessions = 0
	c.Status = models.CourseInProgress
	c.ExamStatus = models.ExamNone
	c.ExamScore = nil
	m.courses[id] = c
	return true, nil
}

type fakeEnrollmentRepo struct {
	mu          sync.Mutex
	enrollments map[string]models.Enrollment
	courses     *fakeCourseRepo
	students    map[string]string
	schools     map[string]string
}

func newFakeEnrollmentRepo(courses *fakeCourseRepo) *fakeEnrollmentRepo {
	return &fakeEnrollmentRepo{
		enrollments: make(map[string]models.Enrollment),
		courses:     courses,
		students:    make(map[string]string),
		schools:     make(map[string]string),
	}
}

func (m *fakeEnrollmentRepo) CreateWithCourses(ctx context.Context, enrollment *models.Enrollment, courses []models.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrollments[enrollment.ID] = *enrollment
	if m.courses != nil {
		for _, c := range courses {
			m.courses.courses[c.ID] = c
		}
	}
	return nil
}

func (m *fakeEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *fakeEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detailLocked(id)
}

func (m *fakeEnrollmentRepo) detailLocked(id string) (*models.EnrollmentDetail, error) {
	e, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.EnrollmentDetail{
		Enrollment:  e,
		StudentName: m.students[e.StudentID],
		SchoolName:  m.schools[e.SchoolID],
	}, nil
}

func (m *fakeEnrollmentRepo) ExistsForStudentAndSchool(ctx context.Context, studentID, schoolID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.SchoolID == schoolID {
			return true, nil
		}
	}
	return false, nil
}

func (m *fakeEnrollmentRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *fakeEnrollmentRepo) ListBySchool(ctx context.Context, schoolID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.EnrollmentDetail
	for id, e := range m.enrollments {
		if e.SchoolID != schoolID {
			continue
		}
		if status != "" && e.Status != status {
			continue
		}
		detail, _ := m.detailLocked(id)
		out = append(out, *detail)
	}
	return out, nil
}

func (m *fakeEnrollmentRepo) CountBySchoolAndStatus(ctx context.Context, schoolID string, status models.EnrollmentStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, e := range m.enrollments {
		if e.SchoolID == schoolID && (status == "" || e.Status == status) {
			total++
		}
	}
	return total, nil
}

func (m *fakeEnrollmentRepo) RecordPayment(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok || e.Status != models.EnrollmentPendingPayment {
		return false, nil
	}
	e.PaymentStatus = models.PaymentCompleted
	e.Status = models.EnrollmentPendingDocuments
	m.enrollments[id] = e
	return true, nil
}

func (m *fakeEnrollmentRepo) AdvanceToApprovalQueue(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok || e.Status != models.EnrollmentPendingDocuments || e.PaymentStatus != models.PaymentCompleted {
		return false, nil
	}
	e.Status = models.EnrollmentPendingApproval
	m.enrollments[id] = e
	return true, nil
}

func (m *fakeEnrollmentRepo) Approve(ctx context.Context, id string, approvedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok || e.Status != models.EnrollmentPendingApproval {
		return false, nil
	}
	e.Status = models.EnrollmentApproved
	e.ApprovedAt = &approvedAt
	m.enrollments[id] = e
	return true, nil
}

func (m *fakeEnrollmentRepo) Reject(ctx context.Context, id, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok || e.Status != models.EnrollmentPendingApproval {
		return false, nil
	}
	e.Status = models.EnrollmentRejected
	e.RejectionReason = &reason
	m.enrollments[id] = e
	return true, nil
}

func (m *fakeEnrollmentRepo) Complete(ctx context.Context, id string, completedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok || e.Status != models.EnrollmentApproved {
		return false, nil
	}
	e.Status = models.EnrollmentCompleted
	e.CompletedAt = &completedAt
	m.enrollments[id] = e
	return true, nil
}

type fakeSchoolRepo struct {
	schools map[string]models.DrivingSchool
}

func newFakeSchoolRepo(schools ...models.DrivingSchool) *fakeSchoolRepo {
	repo := &fakeSchoolRepo{schools: make(map[string]models.DrivingSchool)}
	for _, s := range schools {
		repo.schools[s.ID] = s
	}
	return repo
}

func (m *fakeSchoolRepo) Create(ctx context.Context, school *models.DrivingSchool) error {
	m.schools[school.ID] = *school
	return nil
}

func (m *fakeSchoolRepo) FindByID(ctx context.Context, id string) (*models.DrivingSchool, error) {
	if s, ok := m.schools[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *fakeSchoolRepo) FindByManager(ctx context.Context, managerID string) (*models.DrivingSchool, error) {
	for _, s := range m.schools {
		if s.ManagerID == managerID {
			school := s
			return &school, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *fakeSchoolRepo) ExistsForManager(ctx context.Context, managerID string) (bool, error) {
	_, err := m.FindByManager(ctx, managerID)
	return err == nil, nil
}

func (m *fakeSchoolRepo) List(ctx context.Context, filter models.SchoolFilter) ([]models.DrivingSchool, int, error) {
	var out []models.DrivingSchool
	for _, s := range m.schools {
		if filter.State == "" || s.State == filter.State {
			out = append(out, s)
		}
	}
	return out, len(out), nil
}

type fakeUserRepo struct {
	users map[string]models.User
}

func newFakeUserRepo(users ...models.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]models.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *fakeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *fakeUserRepo) UpdateRole(ctx context.Context, id string, from []models.UserRole, to models.UserRole) (bool, error) {
	u, ok := m.users[id]
	if !ok {
		return false, nil
	}
	for _, role := range from {
		if u.Role == role {
			u.Role = to
			m.users[id] = u
			return true, nil
		}
	}
	return false, nil
}

type fakeDocumentRepo struct {
	documents map[string]models.Document
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{documents: make(map[string]models.Document)}
}

func (m *fakeDocumentRepo) addKinds(userID string, kinds ...models.DocumentKind) {
	for _, kind := range kinds {
		id := userID + ":" + string(kind)
		m.documents[id] = models.Document{ID: id, UserID: userID, Kind: kind, FileName: string(kind) + ".pdf"}
	}
}

func (m *fakeDocumentRepo) Replace(ctx context.Context, doc *models.Document) error {
	for id, d := range m.documents {
		if d.UserID == doc.UserID && d.Kind == doc.Kind {
			delete(m.documents, id)
		}
	}
	m.documents[doc.ID] = *doc
	return nil
}

func (m *fakeDocumentRepo) FindByID(ctx context.Context, id string) (*models.Document, error) {
	if d, ok := m.documents[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *fakeDocumentRepo) ListByUser(ctx context.Context, userID string) ([]models.Document, error) {
	var out []models.Document
	for _, d := range m.documents {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *fakeDocumentRepo) ListKindsByUser(ctx context.Context, userID string) ([]models.DocumentKind, error) {
	seen := make(map[models.DocumentKind]struct{})
	var out []models.DocumentKind
	for _, d := range m.documents {
		if d.UserID != userID {
			continue
		}
		if _, ok := seen[d.Kind]; ok {
			continue
		}
		seen[d.Kind] = struct{}{}
		out = append(out, d.Kind)
	}
	return out, nil
}

func (m *fakeDocumentRepo) MarkVerified(ctx context.Context, id, verifierID string, verifiedAt time.Time) (bool, error) {
	d, ok := m.documents[id]
	if !ok || d.IsVerified {
		return false, nil
	}
	d.IsVerified = true
	d.VerifiedBy = &verifierID
	d.VerifiedAt = &verifiedAt
	m.documents[id] = d
	return true, nil
}

type fakeApplicationRepo struct {
	applications map[string]models.TeacherApplication
	users        *fakeUserRepo
}

func newFakeApplicationRepo(users *fakeUserRepo) *fakeApplicationRepo {
	return &fakeApplicationRepo{applications: make(map[string]models.TeacherApplication), users: users}
}

func (m *fakeApplicationRepo) Create(ctx context.Context, application *models.TeacherApplication) error {
	m.applications[application.ID] = *application
	return nil
}

func (m *fakeApplicationRepo) FindByID(ctx context.Context, id string) (*models.TeacherApplication, error) {
	if a, ok := m.applications[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *fakeApplicationRepo) ExistsForUserAndSchool(ctx context.Context, userID, schoolID string) (bool, error) {
	for _, a := range m.applications {
		if a.UserID == userID && a.SchoolID == schoolID {
			return true, nil
		}
	}
	return false, nil
}

func (m *fakeApplicationRepo) listDetail(schoolID string, onlyPending bool) []models.TeacherApplicationDetail {
	var out []models.TeacherApplicationDetail
	for _, a := range m.applications {
		if a.SchoolID != schoolID {
			continue
		}
		if onlyPending && a.Status != models.ApplicationPending {
			continue
		}
		detail := models.TeacherApplicationDetail{TeacherApplication: a}
		if m.users != nil {
			if u, ok := m.users.users[a.UserID]; ok {
				detail.TeacherName = u.FullName
				detail.TeacherEmail = u.Email
			}
		}
		out = append(out, detail)
	}
	return out
}

func (m *fakeApplicationRepo) ListPendingBySchool(ctx context.Context, schoolID string) ([]models.TeacherApplicationDetail, error) {
	return m.listDetail(schoolID, true), nil
}

func (m *fakeApplicationRepo) ListBySchool(ctx context.Context, schoolID string) ([]models.TeacherApplicationDetail, error) {
	return m.listDetail(schoolID, false), nil
}

func (m *fakeApplicationRepo) FindLatestByUser(ctx context.Context, userID string) (*models.TeacherApplication, error) {
	for _, a := range m.applications {
		if a.UserID == userID {
			application := a
			return &application, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *fakeApplicationRepo) Approve(ctx context.Context, id string, approvedAt time.Time) (bool, error) {
	a, ok := m.applications[id]
	if !ok || a.Status != models.ApplicationPending {
		return false, nil
	}
	a.Status = models.ApplicationApproved
	a.ApprovedAt = &approvedAt
	m.applications[id] = a
	return true, nil
}
