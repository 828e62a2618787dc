package submissions

import (
	"image"
	"time"
)

const (
	StatusUnsubmitted = "unsubmitted"
	StatusSubmitting  = "submitting"
	StatusSubmitted   = "submitted"
	StatusFailed      = "failed"
)

// Submission is the per-session unit of work moving through the workflow:
// identity, normalized image, LaTeX text, and submission status.
type Submission struct {
	StudentID   string
	StudentName string
	Category    string
	Image       image.Image
	ImageJPEG   []byte
	LatexCode   string
	Status      string
	ErrorDetail string
	ImageLink   string
	CreatedAt   time.Time
	SubmittedAt time.Time
}

// Closed reports whether the record is terminal. Once submitted the record
// is never mutated again; a restart creates a fresh Submission.
func (s *Submission) Closed() bool {
	return s.Status == StatusSubmitted
}

func newSubmission(studentID, studentName, category string, now time.Time) *Submission {
	return &Submission{
		StudentID:   studentID,
		StudentName: studentName,
		Category:    category,
		Status:      StatusUnsubmitted,
		CreatedAt:   now,
	}
}
