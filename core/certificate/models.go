package certificate

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
)

// DateLayout is how completion dates are printed on certificates.
const DateLayout = "January 2, 2006"

// Certificate is issued once per (user, course).
type Certificate struct {
	ID             string    `json:"id"`
	CertificateID  string    `json:"certificate_id"`
	UserID         string    `json:"user_id"`
	CourseID       string    `json:"course_id"`
	CourseTitle    string    `json:"course_title"`
	FullName       string    `json:"full_name"`
	StudentID      string    `json:"student_id"`
	CompletionDate time.Time `json:"completion_date"` // UTC
	CreatedAt      time.Time `json:"created_at"`      // UTC
}

// Filename is the name of the PDF served for the certificate.
func (c Certificate) Filename() string {
	return fmt.Sprintf("Kulmis-Academy-Certificate-%s.pdf", c.CertificateID)
}

type Eligibility struct {
	CanClaim       bool   `json:"can_claim"`
	CompletedCount int    `json:"completed_count"`
	TotalLessons   int    `json:"total_lessons"`
	Percent        int    `json:"percent"`
	AlreadyIssued  bool   `json:"already_issued"`
	CertificateID  string `json:"certificate_id,omitempty"`
}

// Issue contains what a student provides to claim a certificate.
type Issue struct {
	CourseID    string `json:"course_id" validate:"required,notblank"`
	FullName    string `json:"full_name" validate:"required,notblank,max=200"`
	CourseTitle string `json:"course_title" validate:"max=300"`
	StudentID   string `json:"student_id" validate:"max=100"`
}

func (is *Issue) Validate(validate *validator.Validate) error {
	is.CourseID = core.CleanString(is.CourseID)
	is.FullName = core.CleanString(is.FullName)
	is.CourseTitle = core.CleanString(is.CourseTitle)
	is.StudentID = core.CleanString(is.StudentID)
	return validate.Struct(is)
}

// Verification is the public view of a certificate.
type Verification struct {
	Valid          bool      `json:"valid"`
	CertificateID  string    `json:"certificate_id"`
	FullName       string    `json:"full_name"`
	CourseTitle    string    `json:"course_title"`
	CompletionDate time.Time `json:"completion_date"`
	CreatedAt      time.Time `json:"created_at"`
}

// QueryFilter applies AND operation on its non-empty fields.
type QueryFilter struct {
	UserID   string
	CourseID string
}
