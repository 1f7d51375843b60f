package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MainFuelEntry records fuel received into the main container.
type MainFuelEntry struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Quantity              float64   `gorm:"not null" json:"quantity"`
	Rate                  float64   `gorm:"not null" json:"rate"`
	Amount                float64   `gorm:"not null" json:"amount"`
	ReceivedBy            string    `gorm:"size:100;not null" json:"receivedBy"`
	ReceivingUnitName     string    `gorm:"size:100;not null" json:"receivingUnitName"`
	ReceivingUnitLocation string    `gorm:"size:255;not null" json:"receivingUnitLocation"`
	SupplyingUnitName     string    `gorm:"size:100;not null" json:"supplyingUnitName"`
	SupplyingUnitLocation string    `gorm:"size:255;not null" json:"supplyingUnitLocation"`
	WorkerID              uuid.UUID `gorm:"type:uuid;not null;index" json:"workerId"`
	Worker                *User     `gorm:"foreignKey:WorkerID" json:"worker,omitempty"`
	CreatedAt             time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (e *MainFuelEntry) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return
}

// GeneratorFuelTransfer records fuel moved from the main container to a generator.
type GeneratorFuelTransfer struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Quantity        float64    `gorm:"not null" json:"quantity"`
	FromContainerID uuid.UUID  `gorm:"type:uuid;not null" json:"fromContainerId"`
	ToGeneratorID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"toGeneratorId"`
	ToGenerator     *Generator `gorm:"foreignKey:ToGeneratorID" json:"toGenerator,omitempty"`
	WorkerID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"workerId"`
	Worker          *User      `gorm:"foreignKey:WorkerID" json:"worker,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (t *GeneratorFuelTransfer) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return
}

// RunLog records one operating session of a generator.
type RunLog struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	GeneratorID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"generatorId"`
	Generator    *Generator `gorm:"foreignKey:GeneratorID" json:"generator,omitempty"`
	WorkerID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"workerId"`
	Worker       *User      `gorm:"foreignKey:WorkerID" json:"worker,omitempty"`
	StartTime    time.Time  `gorm:"not null" json:"startTime"`
	EndTime      time.Time  `gorm:"not null" json:"endTime"`
	Duration     int        `gorm:"not null" json:"duration"` // minutes
	FuelConsumed float64    `gorm:"not null" json:"fuelConsumed"`
	CreatedAt    time.Time  `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (l *RunLog) BeforeCreate(tx *gorm.DB) (err error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return
}
