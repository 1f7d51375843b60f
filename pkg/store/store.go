package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"p9e.in/genfuel/models"
	"p9e.in/genfuel/utils"
)

var (
	// ErrNotFound is returned when a keyed lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("record already exists")
)

// LedgerQuery filters and orders reads of the append-only ledger tables.
type LedgerQuery struct {
	Range    *utils.DateRange // createdAt window, nil for all history
	WorkerID *uuid.UUID       // restrict to records written by this user
	Limit    int              // 0 means unlimited
	Newest   bool             // createdAt descending when set, ascending otherwise

	// PositiveOnly drops main entries with a non-positive quantity.
	PositiveOnly bool
}

// Store defines persistence for accounts, generators, the main container,
// the fuel ledger and the notification outbox. Reads resolve relations
// (operator, worker, generator) into the pointer fields of the models.
type Store interface {
	// users
	CreateUser(ctx context.Context, u *models.User) error
	UpdateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error)

	// generators
	CreateGenerator(ctx context.Context, g *models.Generator) error
	// UpdateGeneratorDetails writes name, location, operator and coordinates only.
	UpdateGeneratorDetails(ctx context.Context, g *models.Generator) error
	GetGenerator(ctx context.Context, id uuid.UUID) (models.Generator, error)
	// ListGenerators returns every generator, or those operated by operatorID when set.
	ListGenerators(ctx context.Context, operatorID *uuid.UUID) ([]models.Generator, error)

	// main container
	GetMainContainer(ctx context.Context) (models.MainContainer, error)

	// ledger
	ListMainEntries(ctx context.Context, q LedgerQuery) ([]models.MainFuelEntry, error)
	ListTransfers(ctx context.Context, q LedgerQuery) ([]models.GeneratorFuelTransfer, error)
	ListRunLogs(ctx context.Context, q LedgerQuery) ([]models.RunLog, error)

	// notification outbox
	GetNotification(ctx context.Context, id uuid.UUID) (models.Notification, error)
	// ListPendingNotifications returns undelivered rows created at or before
	// `before` with fewer than maxAttempts attempts, oldest first.
	ListPendingNotifications(ctx context.Context, before time.Time, maxAttempts, limit int) ([]models.Notification, error)
	UpdateNotification(ctx context.Context, n *models.Notification) error

	// Atomic runs fn as one unit of work. Nothing fn writes is visible
	// unless fn returns nil.
	Atomic(ctx context.Context, fn func(tx Tx) error) error

	Ping(ctx context.Context) error
}

// Tx is the write surface available inside Store.Atomic. Lock* reads hold
// the row until the unit of work ends.
type Tx interface {
	LockMainContainer() (models.MainContainer, error)
	LockGenerator(id uuid.UUID) (models.Generator, error)

	CreateMainContainer(c *models.MainContainer) error
	// SaveMainContainer writes capacity, current fuel and last refill date.
	SaveMainContainer(c *models.MainContainer) error
	// SaveGeneratorFuel writes the generator's current fuel only.
	SaveGeneratorFuel(g *models.Generator) error

	CreateMainEntry(e *models.MainFuelEntry) error
	CreateTransfer(t *models.GeneratorFuelTransfer) error
	CreateRunLog(l *models.RunLog) error
	CreateNotification(n *models.Notification) error
}
