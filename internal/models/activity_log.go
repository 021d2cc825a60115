package models

import (
	"time"

	"gorm.io/datatypes"
)

type ActivityKind string

const (
	ActivityCreated          ActivityKind = "created"
	ActivityUpdated          ActivityKind = "updated"
	ActivityStatusChanged    ActivityKind = "status_changed"
	ActivityStageChanged     ActivityKind = "stage_changed"
	ActivityNoteAdded        ActivityKind = "note_added"
	ActivityMeetingScheduled ActivityKind = "meeting_scheduled"
	ActivityCallMade         ActivityKind = "call_made"
	ActivityEmailSent        ActivityKind = "email_sent"
	ActivityProposalSent     ActivityKind = "proposal_sent"
	ActivityDocumentUploaded ActivityKind = "document_uploaded"
)

// Manual reports whether users may log the kind by hand.
func (k ActivityKind) Manual() bool {
	switch k {
	case ActivityNoteAdded, ActivityMeetingScheduled, ActivityCallMade, ActivityEmailSent, ActivityProposalSent, ActivityDocumentUploaded:
		return true
	}
	return false
}

// ActivityLog is the append-only audit trail of an opportunity.
type ActivityLog struct {
	ID            uint64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OpportunityID uint64       `gorm:"not null;index" json:"opportunity_id"`
	UserID        uint64       `gorm:"not null;index" json:"user_id"`
	Kind          ActivityKind `gorm:"type:varchar(30);not null" json:"activity_type"`
	Description   string       `gorm:"type:text;not null" json:"description"`

	OldValue datatypes.JSON `gorm:"type:jsonb" json:"old_value,omitempty"`
	NewValue datatypes.JSON `gorm:"type:jsonb" json:"new_value,omitempty"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index" json:"created_at"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}
