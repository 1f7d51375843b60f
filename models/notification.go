package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationType defines the ledger event that produced a notification
type NotificationType string

const (
	NotificationTypeMainEntry   NotificationType = "main_entry"
	NotificationTypeToGenerator NotificationType = "to_generator"
	NotificationTypeRunLog      NotificationType = "run_log"
)

// NotificationStatus defines the delivery status of a notification
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// Notification is an outbox row written in the same unit of work as the
// ledger record it announces. The dispatcher delivers it to every admin.
type Notification struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	// Content
	Type    NotificationType `gorm:"size:50;not null;index" json:"type"`
	Subject string           `gorm:"size:500;not null" json:"subject"`
	Body    string           `gorm:"type:text;not null" json:"body"`
	Payload datatypes.JSON   `gorm:"type:jsonb" json:"payload,omitempty"`

	// Delivery status
	Recipients pq.StringArray     `gorm:"type:text[]" json:"recipients"`
	Status     NotificationStatus `gorm:"size:20;default:'pending';index" json:"status"`
	Attempts   int                `gorm:"not null;default:0" json:"attempts"`
	LastError  string             `gorm:"type:text" json:"lastError,omitempty"`
	SentAt     *time.Time         `json:"sentAt,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return
}

// MarkAsSent marks the notification as delivered to recipients
func (n *Notification) MarkAsSent(recipients []string, at time.Time) {
	n.Recipients = pq.StringArray(recipients)
	n.SentAt = &at
	n.Status = NotificationStatusSent
	n.LastError = ""
}

// MarkAsFailed records a failed delivery attempt
func (n *Notification) MarkAsFailed(reason string) {
	n.Status = NotificationStatusFailed
	n.LastError = reason
}

// Deliverable reports whether another attempt is allowed.
func (n Notification) Deliverable(maxAttempts int) bool {
	if n.Status == NotificationStatusSent {
		return false
	}
	return maxAttempts <= 0 || n.Attempts < maxAttempts
}
