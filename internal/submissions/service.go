package submissions

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mathsnap-backend/internal/imaging"
	"mathsnap-backend/internal/llm"
	"mathsnap-backend/internal/shared/telemetry"
)

// Session holds exactly one live Submission for one user's pass through the
// workflow. All mutation goes through its lock; the user is the only logical
// writer but HTTP requests may race.
type Session struct {
	ID string

	mu  sync.Mutex
	sub *Submission
}

// Snapshot returns a copy of the current Submission state.
func (s *Session) Snapshot() Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.sub
}

// beginSubmit is the Idle-guard: only an unsubmitted or failed Submission
// with an attached image may enter submitting.
func (s *Session) beginSubmit() (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.sub.Status {
	case StatusSubmitting:
		return Submission{}, ErrSubmitInFlight
	case StatusSubmitted:
		return Submission{}, ErrClosed
	}
	if len(s.sub.ImageJPEG) == 0 {
		return Submission{}, ErrNoImage
	}
	s.sub.Status = StatusSubmitting
	s.sub.ErrorDetail = ""
	return *s.sub, nil
}

func (s *Session) fail(detail string) Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sub.Status = StatusFailed
	s.sub.ErrorDetail = detail
	return *s.sub
}

func (s *Session) complete(link string, at time.Time) Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sub.Status = StatusSubmitted
	s.sub.ErrorDetail = ""
	s.sub.ImageLink = link
	s.sub.SubmittedAt = at
	return *s.sub
}

// Service is the session workflow: it sequences normalize -> extract ->
// (user edit) -> submit over a registry of live sessions.
type Service struct {
	LLM         llm.Client
	Coordinator *Coordinator
	Now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewService constructs a Service with an empty session registry.
func NewService(client llm.Client, coordinator *Coordinator) *Service {
	return &Service{
		LLM:         client,
		Coordinator: coordinator,
		sessions:    make(map[string]*Session),
	}
}

// Create starts a workflow session for the given identity.
func (svc *Service) Create(studentID, studentName, category string) (*Session, error) {
	studentID = strings.TrimSpace(studentID)
	studentName = strings.TrimSpace(studentName)
	if studentID == "" || studentName == "" {
		return nil, ErrInvalidIdentity
	}

	sess := &Session{
		ID:  uuid.NewString(),
		sub: newSubmission(studentID, studentName, strings.TrimSpace(category), svc.now()),
	}

	svc.mu.Lock()
	svc.sessions[sess.ID] = sess
	svc.mu.Unlock()

	telemetry.Info("session.created", map[string]any{
		"session_id": sess.ID,
		"student_id": studentID,
	})
	return sess, nil
}

// Get looks up a live session.
func (svc *Service) Get(id string) (*Session, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	sess, ok := svc.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

// AttachImage decodes, normalizes, and encodes the uploaded photo, then
// attaches it to the session's Submission. Re-uploading before submission
// replaces the previous image.
func (svc *Service) AttachImage(id string, data []byte) (Submission, error) {
	sess, err := svc.Get(id)
	if err != nil {
		return Submission{}, err
	}

	img, err := imaging.Decode(data)
	if err != nil {
		return Submission{}, err
	}
	normalized := imaging.Normalize(img)
	encoded, err := imaging.EncodeJPEG(normalized)
	if err != nil {
		return Submission{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.sub.Closed() {
		return *sess.sub, ErrClosed
	}
	if sess.sub.Status == StatusSubmitting {
		return *sess.sub, ErrSubmitInFlight
	}
	sess.sub.Image = normalized
	sess.sub.ImageJPEG = encoded
	return *sess.sub, nil
}

// Extract runs the vision model over the attached image and overwrites
// LatexCode with the result. Unsaved manual edits are discarded; extraction
// failures leave LatexCode untouched and are returned as tagged errors.
func (svc *Service) Extract(ctx context.Context, id string) (Submission, error) {
	sess, err := svc.Get(id)
	if err != nil {
		return Submission{}, err
	}

	sess.mu.Lock()
	if sess.sub.Closed() {
		snap := *sess.sub
		sess.mu.Unlock()
		return snap, ErrClosed
	}
	if len(sess.sub.ImageJPEG) == 0 {
		snap := *sess.sub
		sess.mu.Unlock()
		return snap, ErrNoImage
	}
	payload := sess.sub.ImageJPEG
	sess.mu.Unlock()

	latex, err := svc.LLM.ExtractLaTeX(ctx, llm.ExtractInput{ImageJPEG: payload})
	if err != nil {
		telemetry.Warn("extraction.failed", map[string]any{
			"session_id": sess.ID,
			"kind":       string(llm.KindOf(err)),
			"err":        err.Error(),
		})
		return sess.Snapshot(), err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.sub.Closed() {
		return *sess.sub, ErrClosed
	}
	sess.sub.LatexCode = latex
	return *sess.sub, nil
}

// UpdateCode applies a manual edit to the LaTeX text. Edits are allowed in
// any state except once the record is submitted.
func (svc *Service) UpdateCode(id, latex string) (Submission, error) {
	sess, err := svc.Get(id)
	if err != nil {
		return Submission{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.sub.Closed() {
		return *sess.sub, ErrClosed
	}
	sess.sub.LatexCode = latex
	return *sess.sub, nil
}

// Submit runs the two-step durable submission through the Coordinator.
func (svc *Service) Submit(ctx context.Context, id string) (Submission, error) {
	sess, err := svc.Get(id)
	if err != nil {
		return Submission{}, err
	}
	return svc.Coordinator.Submit(ctx, sess)
}

// Restart discards the session's Submission and replaces it with a fresh
// one for the same identity.
func (svc *Service) Restart(id string) (Submission, error) {
	sess, err := svc.Get(id)
	if err != nil {
		return Submission{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.sub.Status == StatusSubmitting {
		return *sess.sub, ErrSubmitInFlight
	}
	sess.sub = newSubmission(sess.sub.StudentID, sess.sub.StudentName, sess.sub.Category, svc.now())
	return *sess.sub, nil
}

func (svc *Service) now() time.Time {
	if svc.Now != nil {
		return svc.Now().UTC()
	}
	return time.Now().UTC()
}
