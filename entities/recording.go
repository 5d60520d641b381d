package entities

import (
	"time"
	"zoom-ingest/constant"
)

// Recording is the status-store row for one recording instance. It doubles as
// the idempotency ledger: rows are never deleted, only moved to FINISHED.
type Recording struct {
	UID       string                  `json:"uid" gorm:"type:varchar(255);primary_key"`
	State     constant.RecordingState `json:"state" gorm:"type:varchar(20);not null;index:idx_recordings_state"`
	Topic     string                  `json:"topic" gorm:"type:varchar(500)"`
	Creator   string                  `json:"creator" gorm:"type:varchar(255)"`
	Payload   []byte                  `json:"payload" gorm:"type:jsonb"`
	CreatedAt time.Time               `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time               `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (Recording) TableName() string {
	return "recordings"
}
