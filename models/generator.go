package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Generator is a diesel generator refuelled from the main container.
type Generator struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string     `gorm:"size:100;not null" json:"name"`
	Capacity       float64    `gorm:"not null" json:"capacity"`
	CurrentFuel    float64    `gorm:"not null;default:0" json:"currentFuel"`
	Location       string     `gorm:"size:255" json:"location"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	FuelEfficiency float64    `gorm:"not null" json:"fuelEfficiency"` // liters per hour
	OperatorID     *uuid.UUID `gorm:"type:uuid;index" json:"operatorId,omitempty"`
	Operator       *User      `gorm:"foreignKey:OperatorID" json:"operator,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (g *Generator) BeforeCreate(tx *gorm.DB) (err error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return
}

// OperatedBy reports whether userID is the generator's operator.
func (g Generator) OperatedBy(userID uuid.UUID) bool {
	return g.OperatorID != nil && *g.OperatorID == userID
}

// HasCoordinates reports whether both latitude and longitude are set.
func (g Generator) HasCoordinates() bool {
	return g.Latitude != nil && g.Longitude != nil
}
