package models

import "time"

// CourseType identifies one of the three sequential curriculum segments.
type CourseType string

const (
	CourseTheory CourseType = "theory"
	CoursePark   CourseType = "park"
	CourseRoad   CourseType = "road"
)

// CourseSequence is the fixed precedence order of course types.
var CourseSequence = []CourseType{CourseTheory, CoursePark, CourseRoad}

// SequenceIndex returns the position of a course type in the precedence
// order, or -1 for unknown types.
func (t CourseType) SequenceIndex() int {
	for i, ct := range CourseSequence {
		if ct == t {
			return i
		}
	}
	return -1
}

// CourseStatus is the per-course progression state.
type CourseStatus string

const (
	CourseLocked     CourseStatus = "locked"
	CourseAvailable  CourseStatus = "available"
	CourseInProgress CourseStatus = "in_progress"
	CourseCompleted  CourseStatus = "completed"
)

// ExamStatus tracks the course exam.
type ExamStatus string

const (
	ExamNone      ExamStatus = "none"
	ExamAvailable ExamStatus = "available"
	ExamPassed    ExamStatus = "passed"
	ExamFailed    ExamStatus = "failed"
)

// Course is one curriculum segment within an enrollment. One row per
// course type is created with the enrollment; all start locked and the
// theory course becomes available once the enrollment is approved.
type Course struct {
	ID                string       `db:"id" json:"id"`
	EnrollmentID      string       `db:"enrollment_id" json:"enrollment_id"`
	Type              CourseType   `db:"course_type" json:"course_type"`
	Status            CourseStatus `db:"status" json:"status"`
	CompletedSessions int          `db:"completed_sessions" json:"completed_sessions"`
	TotalSessions     int          `db:"total_sessions" json:"total_sessions"`
	ExamStatus        ExamStatus   `db:"exam_status" json:"exam_status"`
	ExamScore         *int         `db:"exam_score" json:"exam_score,omitempty"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updated_at"`
}

// Active reports whether the course is currently being worked on.
func (c Course) Active() bool {
	return c.Status == CourseAvailable || c.Status == CourseInProgress
}
