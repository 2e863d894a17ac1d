package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EnrollmentCreated = "enrollment.created"
	LessonCompleted   = "lesson.completed"
	PaymentCompleted  = "payment.completed"
	PaymentFailed     = "payment.failed"
	RefundRequested   = "refund.requested"
	RefundCompleted   = "refund.completed"
	PayoutProcessed   = "payout.processed"
	CertificateIssued = "certificate.issued"
	CoursePublished   = "course.published"
	CourseApproved    = "course.approved"
)

// Event is a fact published after the write that produced it committed.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       string         `json:"type"`
	UserID     uuid.UUID      `json:"user_id,omitempty"`
	CourseID   uuid.UUID      `json:"course_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func New(eventType string, userID, courseID uuid.UUID, data map[string]any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		UserID:     userID,
		CourseID:   courseID,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}
