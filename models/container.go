package models

import (
	"time"

	"github.com/google/uuid"
)

// MainContainerID is the fixed key of the single main container row.
// A second insert violates the primary key.
var MainContainerID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// MainContainer is the bulk reservoir every generator is refuelled from.
type MainContainer struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Capacity       float64    `gorm:"not null" json:"capacity"`
	CurrentFuel    float64    `gorm:"not null;default:0" json:"currentFuel"`
	LastRefillDate *time.Time `json:"lastRefillDate,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}
