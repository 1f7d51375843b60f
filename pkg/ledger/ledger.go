// Package ledger applies fuel movements: refills of the main container,
// transfers into generators and generator runs. Every operation checks its
// preconditions and writes its ledger row, balance changes and outbox row
// in one store unit of work.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"p9e.in/genfuel/models"
	"p9e.in/genfuel/pkg/apperr"
	"p9e.in/genfuel/pkg/notify"
	"p9e.in/genfuel/pkg/store"
	"p9e.in/genfuel/utils"
)

// Signaler is told about outbox rows once their transaction has committed.
type Signaler interface {
	Signal(ctx context.Context, id uuid.UUID)
}

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID   uuid.UUID
	Name string
}

type Service struct {
	store    store.Store
	signaler Signaler
	now      func() time.Time
}

// NewService builds a ledger service. signaler may be nil.
func NewService(s store.Store, signaler Signaler) *Service {
	return &Service{store: s, signaler: signaler, now: time.Now}
}

// MainEntryInput describes fuel received into the main container.
type MainEntryInput struct {
	Quantity              float64 `json:"quantity"`
	Rate                  float64 `json:"rate"`
	ReceivedBy            string  `json:"receivedBy"`
	ReceivingUnitName     string  `json:"receivingUnitName"`
	ReceivingUnitLocation string  `json:"receivingUnitLocation"`
	SupplyingUnitName     string  `json:"supplyingUnitName"`
	SupplyingUnitLocation string  `json:"supplyingUnitLocation"`
}

func (in *MainEntryInput) normalize() error {
	if in.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if in.Rate < 0 {
		return ErrInvalidRate
	}
	fields := []struct {
		name  string
		value *string
	}{
		{"receivedBy", &in.ReceivedBy},
		{"receivingUnitName", &in.ReceivingUnitName},
		{"receivingUnitLocation", &in.ReceivingUnitLocation},
		{"supplyingUnitName", &in.SupplyingUnitName},
		{"supplyingUnitLocation", &in.SupplyingUnitLocation},
	}
	for _, f := range fields {
		*f.value = strings.TrimSpace(*f.value)
		if *f.value == "" {
			return apperr.Validationf("%s is required", f.name)
		}
	}
	return nil
}

// CreateMainContainer creates the empty singleton container.
func (s *Service) CreateMainContainer(ctx context.Context, capacity float64) (models.MainContainer, error) {
	if capacity <= 0 {
		return models.MainContainer{}, ErrInvalidCapacity
	}
	c := models.MainContainer{ID: models.MainContainerID, Capacity: utils.Round2(capacity)}
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		return tx.CreateMainContainer(&c)
	})
	if errors.Is(err, store.ErrConflict) {
		return models.MainContainer{}, ErrContainerExists
	}
	if err != nil {
		return models.MainContainer{}, fmt.Errorf("create main container: %w", err)
	}
	slog.InfoContext(ctx, "main container created", "capacity", c.Capacity)
	return c, nil
}

// UpdateMainContainer changes the container's capacity.
func (s *Service) UpdateMainContainer(ctx context.Context, capacity float64) (models.MainContainer, error) {
	if capacity <= 0 {
		return models.MainContainer{}, ErrInvalidCapacity
	}
	var c models.MainContainer
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		var err error
		c, err = lockContainer(tx)
		if err != nil {
			return err
		}
		capacity = utils.Round2(capacity)
		if capacity < c.CurrentFuel {
			return ErrCapacityBelowContents
		}
		c.Capacity = capacity
		return tx.SaveMainContainer(&c)
	})
	if err != nil {
		return models.MainContainer{}, fmt.Errorf("update main container: %w", err)
	}
	return c, nil
}

// AddMainEntry records fuel received into the main container. The amount
// is always quantity × rate.
func (s *Service) AddMainEntry(ctx context.Context, actor Actor, in MainEntryInput) (models.MainFuelEntry, error) {
	if err := in.normalize(); err != nil {
		return models.MainFuelEntry{}, err
	}
	entry := models.MainFuelEntry{
		Quantity:              utils.Round2(in.Quantity),
		Rate:                  in.Rate,
		Amount:                utils.Round2(in.Quantity * in.Rate),
		ReceivedBy:            in.ReceivedBy,
		ReceivingUnitName:     in.ReceivingUnitName,
		ReceivingUnitLocation: in.ReceivingUnitLocation,
		SupplyingUnitName:     in.SupplyingUnitName,
		SupplyingUnitLocation: in.SupplyingUnitLocation,
		WorkerID:              actor.ID,
	}
	var outbox *models.Notification
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		c, err := lockContainer(tx)
		if err != nil {
			return err
		}
		next := utils.Round2(c.CurrentFuel + entry.Quantity)
		if next > c.Capacity {
			return ErrContainerCapacityExceeded
		}
		if err := tx.CreateMainEntry(&entry); err != nil {
			return err
		}
		now := s.now()
		c.CurrentFuel = next
		c.LastRefillDate = &now
		if err := tx.SaveMainContainer(&c); err != nil {
			return err
		}
		outbox, err = writeOutbox(tx, notify.MainEntryEvent(entry.Quantity, actor.Name))
		return err
	})
	if err != nil {
		return models.MainFuelEntry{}, fmt.Errorf("add main entry: %w", err)
	}
	s.signal(ctx, outbox)
	return entry, nil
}

// Transfer moves amount liters from the main container into a generator.
func (s *Service) Transfer(ctx context.Context, actor Actor, generatorID uuid.UUID, amount float64) (models.GeneratorFuelTransfer, error) {
	if amount <= 0 {
		return models.GeneratorFuelTransfer{}, ErrInvalidAmount
	}
	amount = utils.Round2(amount)
	var transfer models.GeneratorFuelTransfer
	var outbox *models.Notification
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		c, err := lockContainer(tx)
		if err != nil {
			return err
		}
		g, err := lockGenerator(tx, generatorID)
		if err != nil {
			return err
		}
		if c.CurrentFuel < amount {
			return ErrInsufficientMainFuel
		}
		if utils.Round2(g.CurrentFuel+amount) > g.Capacity {
			return ErrGeneratorCapacityExceeded
		}

		transfer = models.GeneratorFuelTransfer{
			Quantity:        amount,
			FromContainerID: c.ID,
			ToGeneratorID:   g.ID,
			WorkerID:        actor.ID,
		}
		if err := tx.CreateTransfer(&transfer); err != nil {
			return err
		}
		c.CurrentFuel = utils.Round2(c.CurrentFuel - amount)
		if err := tx.SaveMainContainer(&c); err != nil {
			return err
		}
		g.CurrentFuel = utils.Round2(g.CurrentFuel + amount)
		if err := tx.SaveGeneratorFuel(&g); err != nil {
			return err
		}
		outbox, err = writeOutbox(tx, notify.TransferEvent(amount, g.Name, actor.Name))
		return err
	})
	if err != nil {
		return models.GeneratorFuelTransfer{}, fmt.Errorf("transfer to generator: %w", err)
	}
	s.signal(ctx, outbox)
	return transfer, nil
}

// RunDuration returns the whole minutes between start and end, rounded
// half away from zero, and the fuel a generator burning efficiency L/h
// consumes in that time.
func RunDuration(start, end time.Time, efficiency float64) (minutes int, fuel float64) {
	minutes = utils.RoundInt(float64(end.Sub(start).Milliseconds()) / 60000)
	fuel = utils.Round2(float64(minutes) / 60 * efficiency)
	return minutes, fuel
}

// AddRunLog records a generator run and burns the fuel it consumed.
func (s *Service) AddRunLog(ctx context.Context, actor Actor, generatorID uuid.UUID, start, end time.Time) (models.RunLog, error) {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return models.RunLog{}, ErrInvalidRunTimes
	}
	var runLog models.RunLog
	var outbox *models.Notification
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		g, err := lockGenerator(tx, generatorID)
		if err != nil {
			return err
		}
		minutes, fuel := RunDuration(start, end, g.FuelEfficiency)
		if g.CurrentFuel < fuel {
			return ErrInsufficientGeneratorFuel
		}
		runLog = models.RunLog{
			GeneratorID:  g.ID,
			WorkerID:     actor.ID,
			StartTime:    start,
			EndTime:      end,
			Duration:     minutes,
			FuelConsumed: fuel,
		}
		if err := tx.CreateRunLog(&runLog); err != nil {
			return err
		}
		g.CurrentFuel = utils.Round2(g.CurrentFuel - fuel)
		if err := tx.SaveGeneratorFuel(&g); err != nil {
			return err
		}
		outbox, err = writeOutbox(tx, notify.RunLogEvent(g.Name, minutes, fuel, actor.Name))
		return err
	})
	if err != nil {
		return models.RunLog{}, fmt.Errorf("add run log: %w", err)
	}
	s.signal(ctx, outbox)
	return runLog, nil
}

func lockContainer(tx store.Tx) (models.MainContainer, error) {
	c, err := tx.LockMainContainer()
	if errors.Is(err, store.ErrNotFound) {
		return c, ErrContainerNotFound
	}
	return c, err
}

func lockGenerator(tx store.Tx, id uuid.UUID) (models.Generator, error) {
	g, err := tx.LockGenerator(id)
	if errors.Is(err, store.ErrNotFound) {
		return g, ErrGeneratorNotFound
	}
	return g, err
}

func writeOutbox(tx store.Tx, ev notify.Event) (*models.Notification, error) {
	n, err := ev.Notification()
	if err != nil {
		return nil, err
	}
	if err := tx.CreateNotification(n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) signal(ctx context.Context, n *models.Notification) {
	if s.signaler == nil || n == nil {
		return
	}
	s.signaler.Signal(context.WithoutCancel(ctx), n.ID)
}
