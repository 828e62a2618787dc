package submissions

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"mathsnap-backend/internal/shared/storage/ledger"
	"mathsnap-backend/internal/shared/storage/object"
	"mathsnap-backend/internal/shared/telemetry"
	"mathsnap-backend/internal/shared/util"
)

// Coordinator runs the two-step durable submission: store the image, then
// append the ledger row. Ordering is load-bearing: the ledger row references
// the stored image id, so the ledger is never written without a valid id.
type Coordinator struct {
	Store  object.Store
	Ledger ledger.Ledger
	Folder string
	Now    func() time.Time
}

// Submit transitions the session's Submission through
// submitting -> {submitted, failed}. A submission already in flight or
// already recorded is rejected before any collaborator call. Retrying a
// failed submission re-runs both steps from scratch; storage is
// at-least-once, and an orphan object from a ledger-stage retry is an
// accepted recoverable cost.
func (c *Coordinator) Submit(ctx context.Context, sess *Session) (Submission, error) {
	snap, err := sess.beginSubmit()
	if err != nil {
		return sess.Snapshot(), err
	}

	now := c.now()
	fileName := submissionFileName(snap.StudentID, snap.StudentName, now)

	id, err := c.Store.Save(ctx, c.Folder, fileName, bytes.NewReader(snap.ImageJPEG))
	if err != nil {
		submitErr := &SubmitError{Stage: "storage", Err: err}
		telemetry.Error("submission.storage.failed", map[string]any{
			"session_id": sess.ID,
			"student_id": snap.StudentID,
			"err":        err.Error(),
		})
		return sess.fail(submitErr.Error()), submitErr
	}

	link := c.Store.Link(id)
	row := ledger.Row{
		StudentID:   snap.StudentID,
		StudentName: snap.StudentName,
		Category:    snap.Category,
		LatexCode:   snap.LatexCode,
		SubmittedAt: now,
		ImageLink:   link,
	}
	if err := c.Ledger.AppendRow(ctx, row); err != nil {
		// The stored object stays; no compensating delete.
		submitErr := &SubmitError{Stage: "ledger", Err: err}
		telemetry.Error("submission.ledger.failed", map[string]any{
			"session_id": sess.ID,
			"student_id": snap.StudentID,
			"object_id":  id,
			"err":        err.Error(),
		})
		return sess.fail(submitErr.Error()), submitErr
	}

	telemetry.Info("submission.recorded", map[string]any{
		"session_id": sess.ID,
		"student_id": snap.StudentID,
		"object_id":  id,
	})
	return sess.complete(link, now), nil
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

// submissionFileName derives a collision-free object name from identity and
// submission time, so repeated submissions never overwrite each other.
func submissionFileName(studentID, studentName string, now time.Time) string {
	name := fmt.Sprintf("%s_%s_%s.jpg", studentID, studentName, now.Format("20060102_150405"))
	sanitized, err := util.SanitizeFileName(name)
	if err != nil {
		return fmt.Sprintf("submission_%s.jpg", now.Format("20060102_150405.000000000"))
	}
	return sanitized
}
