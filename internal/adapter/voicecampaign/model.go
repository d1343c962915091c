package voicecampaign

import (
	"time"

	"github.com/google/uuid"
)

// Campaign is an automated outbound-call campaign (recall reminders,
// reactivation, payment follow-ups) targeting a filtered patient set.
type Campaign struct {
	ID          uuid.UUID              `json:"id"`
	Name        string                 `json:"name"`
	Status      string                 `json:"status"`
	Script      string                 `json:"script"`
	VoiceID     string                 `json:"voice_id,omitempty"`
	Filter      map[string]interface{} `json:"filter,omitempty"`
	ScheduledAt *time.Time             `json:"scheduled_at,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}
