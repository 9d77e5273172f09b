package model

import (
	"time"

	"github.com/google/uuid"
)

// Appointment captures the slice of the booking domain this subsystem
// consumes: the two designated parties, the schedule, and the status
// flag the coordinator flips on completion. Booking itself lives in an
// external service.
const (
	AppointmentConfirmed = "confirmed"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
)

type Appointment struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	CounselorUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"counselor_user_id"`
	SessionType     string    `gorm:"type:varchar(20);not null;default:'video'" json:"session_type"`
	Date            time.Time `gorm:"type:date;not null" json:"date"`
	Time            string    `gorm:"type:varchar(8);not null" json:"time"`
	Status          string    `gorm:"type:varchar(20);not null;default:'confirmed'" json:"status"`
	CreatedAt       time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// User is the identity record the gateway resolves usernames and the
// observer rule from. Credential issuance is external.
type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username string    `gorm:"type:varchar(150);not null;uniqueIndex" json:"username"`
	FullName string    `gorm:"type:varchar(150)" json:"full_name"`
	Role     string    `gorm:"type:varchar(20);not null;default:'user'" json:"role"`
}
