package model

// EnrollmentMode describes the access level granted on a course run.
type EnrollmentMode string

const (
	EnrollmentModeAudit    EnrollmentMode = "audit"
	EnrollmentModeVerified EnrollmentMode = "verified"
)

// Enrollment is a learner activation on a course run, owned by the LMS.
type Enrollment struct {
	ID          string
	UserID      string
	CourseRunID string
	Mode        EnrollmentMode
	IsActive    bool
}
