package notify

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gorm.io/datatypes"

	"p9e.in/genfuel/models"
)

// Event is the data an admin email is rendered from. It is stored as the
// outbox row's payload.
type Event struct {
	Type          models.NotificationType `json:"type"`
	WorkerName    string                  `json:"workerName"`
	Amount        float64                 `json:"amount,omitempty"`
	GeneratorName string                  `json:"generatorName,omitempty"`
	Duration      int                     `json:"duration,omitempty"`
	FuelConsumed  float64                 `json:"fuelConsumed,omitempty"`
}

// MainEntryEvent announces fuel received into the main container.
func MainEntryEvent(quantity float64, workerName string) Event {
	return Event{Type: models.NotificationTypeMainEntry, Amount: quantity, WorkerName: workerName}
}

// TransferEvent announces fuel moved into a generator.
func TransferEvent(amount float64, generatorName, workerName string) Event {
	return Event{Type: models.NotificationTypeToGenerator, Amount: amount, GeneratorName: generatorName, WorkerName: workerName}
}

// RunLogEvent announces a logged generator run.
func RunLogEvent(generatorName string, duration int, fuelConsumed float64, workerName string) Event {
	return Event{Type: models.NotificationTypeRunLog, GeneratorName: generatorName, Duration: duration, FuelConsumed: fuelConsumed, WorkerName: workerName}
}

func liters(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "L"
}

func (e Event) Subject() string {
	switch e.Type {
	case models.NotificationTypeMainEntry:
		return "Main Container Fuel Entry"
	case models.NotificationTypeToGenerator:
		return "Generator Fuel Transfer"
	case models.NotificationTypeRunLog:
		return "Generator Run Log"
	default:
		return "Fuel Notification"
	}
}

func (e Event) Body() string {
	switch e.Type {
	case models.NotificationTypeMainEntry:
		return fmt.Sprintf("New fuel entry in main container:\nAmount: %s\nWorker: %s", liters(e.Amount), e.WorkerName)
	case models.NotificationTypeToGenerator:
		return fmt.Sprintf("Fuel transferred to generator %s:\nAmount: %s\nWorker: %s", e.GeneratorName, liters(e.Amount), e.WorkerName)
	case models.NotificationTypeRunLog:
		return fmt.Sprintf("Generator %s run log:\nDuration: %d minutes\nFuel Consumed: %s\nWorker: %s",
			e.GeneratorName, e.Duration, liters(e.FuelConsumed), e.WorkerName)
	default:
		return ""
	}
}

// Notification renders the event into a pending outbox row.
func (e Event) Notification() (*models.Notification, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode notification payload: %w", err)
	}
	return &models.Notification{
		Type:    e.Type,
		Subject: e.Subject(),
		Body:    e.Body(),
		Payload: datatypes.JSON(payload),
		Status:  models.NotificationStatusPending,
	}, nil
}
