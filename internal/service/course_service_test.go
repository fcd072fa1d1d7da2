package service

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryadh-dz/autoecole-api/internal/models"
	appErrors "github.com/ryadh-dz/autoecole-api/pkg/errors"
)

func courseByType(t *testing.T, f *lifecycleFixture, enrollmentID string, courseType models.CourseType) *models.Course {
	t.Helper()
	course, err := f.courseRepo.FindByEnrollmentAndType(context.Background(), enrollmentID, courseType)
	require.NoError(t, err)
	return course
}

// passCourse attends every remaining session and passes the exam.
func passCourse(t *testing.T, f *lifecycleFixture, studentID, courseID string) {
	t.Helper()
	ctx := context.Background()
	for {
		course, err := f.courseRepo.FindByID(ctx, courseID)
		require.NoError(t, err)
		if course.CompletedSessions >= course.TotalSessions {
			break
		}
		_, err = f.courses.CompleteSession(ctx, studentID, courseID)
		require.NoError(t, err)
	}
	_, err := f.courses.SubmitExam(ctx, studentID, courseID, 85)
	require.NoError(t, err)
}

func TestCompleteSessionOnLockedCourseIsInvalid(t *testing.T) {
	f := newLifecycleFixture(t)
	enrollment := f.enrollApproved(t, "student-1", "school-1")
	park := courseByType(t, f, enrollment.ID, models.CoursePark)

	_, err := f.courses.CompleteSession(context.Background(), "student-1", park.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
}

func TestCompleteSessionOpensExamAtCap(t *testing.T) {
	f := newLifecycleFixture(t)
	enrollment := f.enrollApproved(t, "student-1", "school-1")
	theory := courseByType(t, f, enrollment.ID, models.CourseTheory)
	ctx := context.Background()

	course, err := f.courses.CompleteSession(ctx, "student-1", theory.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, course.CompletedSessions)
	assert.Equal(t, models.CourseInProgress, course.Status)
	assert.Equal(t, models.ExamNone, course.ExamStatus)

	course, err = f.courses.CompleteSession(ctx, "student-1", theory.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, course.CompletedSessions)
	assert.Equal(t, models.CourseCompleted, course.Status)
	assert.Equal(t, models.ExamAvailable, course.ExamStatus)

	// The cap holds: no session past total_sessions.
	_, err = f.courses.CompleteSession(ctx, "student-1", theory.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
}

func TestCompleteSessionRequiresApprovedEnrollment(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	enrollment, err := f.enrollments.Enroll(ctx, "student-1", "school-1")
	require.NoError(t, err)
	theory := courseByType(t, f, enrollment.ID, models.CourseTheory)

	_, err = f.courses.CompleteSession(ctx, "student-1", theory.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
}

func TestSubmitExamValidatesScoreRange(t *testing.T) {
	f := newLifecycleFixture(t)
	enrollment := f.enrollApproved(t, "student-1", "school-1")
	theory := courseByType(t, f, enrollment.ID, models.CourseTheory)

	for _, score := range []int{-1, 101, 1000} {
		_, err := f.courses.SubmitExam(context.Background(), "student-1", theory.ID, score)
		require.Error(t, err)
		assert.ErrorIs(t, err, appErrors.ErrInvalidInput)
	}
}

func TestSubmitExamBeforeSessionsDoneIsInvalid(t *testing.T) {
	f := newLifecycleFixture(t)
	enrollment := f.enrollApproved(t, "student-1", "school-1")
	theory := courseByType(t, f, enrollment.ID, models.CourseTheory)

	_, err := f.courses.SubmitExam(context.Background(), "student-1", theory.ID, 90)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
}

func TestSubmitExamPassUnlocksNextCourse(t *testing.T) {
	f := newLifecycleFixture(t)
	enrollment := f.enrollApproved(t, "student-1", "school-1")
	theory := courseByType(t, f, enrollment.ID, models.CourseTheory)

	passCourse(t, f, "student-1", theory.ID)

	passed, err := f.courseRepo.FindByID(context.Background(), theory.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CourseCompleted, passed.Status)
	assert.Equal(t, models.ExamPassed, passed.ExamStatus)
	require.NotNil(t, passed.ExamScore)
	assert.Equal(t, 85, *passed.ExamScore)

	park := courseByType(t, f, enrollment.ID, models.CoursePark)
	assert.Equal(t, models.CourseAvailable, park.Status)
	road := courseByType(t, f, enrollment.ID, models.CourseRoad)
	assert.Equal(t, models.CourseLocked, road.Status)
}

func TestSubmitExamFailRetakePassRoundTrip(t *testing.T) {
	f := newLifecycleFixture(t)
	enrollment := f.enrollApproved(t, "student-1", "school-1")
	theory := courseByType(t, f, enrollment.ID, models.CourseTheory)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.courses.CompleteSession(ctx, "student-1", theory.ID)
		require.NoError(t, err)
	}
	failed, err := f.courses.SubmitExam(ctx, "student-1", theory.ID, 55)
	require.NoError(t, err)
	assert.Equal(t, models.ExamFailed, failed.ExamStatus)

	// A failed course blocks the next one and blocks more sessions.
	park := courseByType(t, f, enrollment.ID, models.CoursePark)
	assert.Equal(t, models.CourseLocked, park.Status)
	_, err = f.courses.CompleteSession(ctx, "student-1", theory.ID)
	require.Error(t, err)

	reset, err := f.courses.Retake(ctx, "student-1", theory.ID)
	require.NoError(t, err)
	assert.Zero(t, reset.CompletedSessions)
	assert.Equal(t, models.ExamNone, reset.ExamStatus)
	assert.Nil(t, reset.ExamScore)
	assert.Equal(t, models.CourseInProgress, reset.Status)

	passCourse(t, f, "student-1", theory.ID)
	park = courseByType(t, f, enrollment.ID, models.CoursePark)
	assert.Equal(t, models.CourseAvailable, park.Status)
}

func TestRetakeOnlyAfterFailedExam(t *testing.T) {
	f := newLifecycleFixture(t)
	enrollment := f.enrollApproved(t, "student-1", "school-1")
	theory := courseByType(t, f, enrollment.ID, models.CourseTheory)

	_, err := f.courses.Retake(context.Background(), "student-1", theory.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
}

func TestPassingAllCoursesCompletesEnrollment(t *testing.T) {
	f := newLifecycleFixture(t)
	enrollment := f.enrollApproved(t, "student-1", "school-1")
	ctx := context.Background()

	for _, courseType := range models.CourseSequence {
		course := courseByType(t, f, enrollment.ID, courseType)
		passCourse(t, f, "student-1", course.ID)
	}

	fresh, err := f.enrollRepo.FindByID(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentCompleted, fresh.Status)
	require.NotNil(t, fresh.CompletedAt)
	assert.Equal(t, []string{enrollment.ID}, f.certificates.enqueued)
}

func TestEnrollmentNotCompletedWhileCoursesRemain(t *testing.T) {
	f := newLifecycleFixture(t)
	enrollment := f.enrollApproved(t, "student-1", "school-1")

	theory := courseByType(t, f, enrollment.ID, models.CourseTheory)
	passCourse(t, f, "student-1", theory.ID)
	park := courseByType(t, f, enrollment.ID, models.CoursePark)
	passCourse(t, f, "student-1", park.ID)

	fresh, err := f.enrollRepo.FindByID(context.Background(), enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentApproved, fresh.Status)
	assert.Empty(t, f.certificates.enqueued)
}

func TestCourseOperationsForbiddenForOtherStudent(t *testing.T) {
	f := newLifecycleFixture(t)
	enrollment := f.enrollApproved(t, "student-1", "school-1")
	theory := courseByType(t, f, enrollment.ID, models.CourseTheory)

	_, err := f.courses.CompleteSession(context.Background(), "guest-1", theory.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

// TestCourseOrderingUnderRandomOperations throws random operations at an
// approved enrollment and checks the structural rules after every step: at
// most one course is workable, sessions never exceed the total, and a
// course only ever opens when every earlier course is passed.
func TestCourseOrderingUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()

	for run := 0; run < 20; run++ {
		f := newLifecycleFixture(t)
		enrollment := f.enrollApproved(t, "student-1", "school-1")

		courseIDs := make([]string, 0, 3)
		for _, courseType := range models.CourseSequence {
			courseIDs = append(courseIDs, courseByType(t, f, enrollment.ID, courseType).ID)
		}

		for step := 0; step < 60; step++ {
			id := courseIDs[rng.Intn(len(courseIDs))]
			switch rng.Intn(3) {
			case 0:
				_, _ = f.courses.CompleteSession(ctx, "student-1", id)
			case 1:
				_, _ = f.courses.SubmitExam(ctx, "student-1", id, rng.Intn(101))
			case 2:
				_, _ = f.courses.Retake(ctx, "student-1", id)
			}

			courses, err := f.courseRepo.ListByEnrollment(ctx, enrollment.ID)
			require.NoError(t, err)
			require.Len(t, courses, 3)

			active := 0
			for i, c := range courses {
				require.LessOrEqual(t, c.CompletedSessions, c.TotalSessions)
				if c.Active() {
					active++
				}
				if c.Status != models.CourseLocked {
					for j := 0; j < i; j++ {
						require.Equal(t, models.ExamPassed, courses[j].ExamStatus,
							"course %s open before %s passed", c.Type, courses[j].Type)
					}
				}
			}
			require.LessOrEqual(t, active, 1)
		}
	}
}
