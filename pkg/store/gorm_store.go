package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"p9e.in/genfuel/models"
)

var _ Store = (*GormStore)(nil)

// GormStore implements Store on PostgreSQL through gorm. The *gorm.DB must
// be opened with TranslateError so duplicate keys surface as
// gorm.ErrDuplicatedKey.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open, migrated connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	default:
		return err
	}
}

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("create user: %w", translate(err))
	}
	return nil
}

func (s *GormStore) UpdateUser(ctx context.Context, u *models.User) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", u.ID).Updates(map[string]any{
		"name":          u.Name,
		"phone":         u.Phone,
		"address":       u.Address,
		"role":          u.Role,
		"password_hash": u.PasswordHash,
	})
	if res.Error != nil {
		return fmt.Errorf("update user: %w", translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return models.User{}, translate(err)
	}
	return u, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return models.User{}, translate(err)
	}
	return u, nil
}

func (s *GormStore) ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Where("role = ?", role).Order("name ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *GormStore) CreateGenerator(ctx context.Context, g *models.Generator) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(g).Error; err != nil {
		return fmt.Errorf("create generator: %w", translate(err))
	}
	return nil
}

func (s *GormStore) UpdateGeneratorDetails(ctx context.Context, g *models.Generator) error {
	res := s.db.WithContext(ctx).Model(&models.Generator{}).Where("id = ?", g.ID).Updates(map[string]any{
		"name":        g.Name,
		"location":    g.Location,
		"operator_id": g.OperatorID,
		"latitude":    g.Latitude,
		"longitude":   g.Longitude,
	})
	if res.Error != nil {
		return fmt.Errorf("update generator: %w", translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) GetGenerator(ctx context.Context, id uuid.UUID) (models.Generator, error) {
	var g models.Generator
	if err := s.db.WithContext(ctx).Preload("Operator").First(&g, "id = ?", id).Error; err != nil {
		return models.Generator{}, translate(err)
	}
	return g, nil
}

func (s *GormStore) ListGenerators(ctx context.Context, operatorID *uuid.UUID) ([]models.Generator, error) {
	q := s.db.WithContext(ctx).Preload("Operator")
	if operatorID != nil {
		q = q.Where("operator_id = ?", *operatorID)
	}
	var gens []models.Generator
	if err := q.Order("name ASC").Order("id ASC").Find(&gens).Error; err != nil {
		return nil, fmt.Errorf("list generators: %w", err)
	}
	return gens, nil
}

func (s *GormStore) GetMainContainer(ctx context.Context) (models.MainContainer, error) {
	var c models.MainContainer
	if err := s.db.WithContext(ctx).First(&c, "id = ?", models.MainContainerID).Error; err != nil {
		return models.MainContainer{}, translate(err)
	}
	return c, nil
}

func applyLedgerQuery(db *gorm.DB, q LedgerQuery) *gorm.DB {
	if q.Range != nil {
		db = db.Where("created_at BETWEEN ? AND ?", q.Range.Start, q.Range.End)
	}
	if q.WorkerID != nil {
		db = db.Where("worker_id = ?", *q.WorkerID)
	}
	if q.Newest {
		db = db.Order("created_at DESC")
	} else {
		db = db.Order("created_at ASC")
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	return db
}

func (s *GormStore) ListMainEntries(ctx context.Context, q LedgerQuery) ([]models.MainFuelEntry, error) {
	db := s.db.WithContext(ctx).Preload("Worker")
	if q.PositiveOnly {
		db = db.Where("quantity > 0")
	}
	var entries []models.MainFuelEntry
	if err := applyLedgerQuery(db, q).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list main entries: %w", err)
	}
	return entries, nil
}

func (s *GormStore) ListTransfers(ctx context.Context, q LedgerQuery) ([]models.GeneratorFuelTransfer, error) {
	db := s.db.WithContext(ctx).Preload("ToGenerator").Preload("Worker")
	var transfers []models.GeneratorFuelTransfer
	if err := applyLedgerQuery(db, q).Find(&transfers).Error; err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return transfers, nil
}

func (s *GormStore) ListRunLogs(ctx context.Context, q LedgerQuery) ([]models.RunLog, error) {
	db := s.db.WithContext(ctx).Preload("Generator").Preload("Worker")
	var logs []models.RunLog
	if err := applyLedgerQuery(db, q).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list run logs: %w", err)
	}
	return logs, nil
}

func (s *GormStore) GetNotification(ctx context.Context, id uuid.UUID) (models.Notification, error) {
	var n models.Notification
	if err := s.db.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		return models.Notification{}, translate(err)
	}
	return n, nil
}

func (s *GormStore) ListPendingNotifications(ctx context.Context, before time.Time, maxAttempts, limit int) ([]models.Notification, error) {
	q := s.db.WithContext(ctx).
		Where("status <> ?", models.NotificationStatusSent).
		Where("created_at <= ?", before)
	if maxAttempts > 0 {
		q = q.Where("attempts < ?", maxAttempts)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.Notification
	if err := q.Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list pending notifications: %w", err)
	}
	return out, nil
}

func (s *GormStore) UpdateNotification(ctx context.Context, n *models.Notification) error {
	if err := s.db.WithContext(ctx).Save(n).Error; err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	return nil
}

// Atomic opens a database transaction; Lock* calls inside take
// SELECT ... FOR UPDATE row locks.
func (s *GormStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&gormTx{db: db})
	})
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) LockMainContainer() (models.MainContainer, error) {
	var c models.MainContainer
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, "id = ?", models.MainContainerID).Error
	if err != nil {
		return models.MainContainer{}, translate(err)
	}
	return c, nil
}

func (t *gormTx) LockGenerator(id uuid.UUID) (models.Generator, error) {
	var g models.Generator
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&g, "id = ?", id).Error
	if err != nil {
		return models.Generator{}, translate(err)
	}
	return g, nil
}

func (t *gormTx) CreateMainContainer(c *models.MainContainer) error {
	if err := t.db.Create(c).Error; err != nil {
		return fmt.Errorf("create main container: %w", translate(err))
	}
	return nil
}

func (t *gormTx) SaveMainContainer(c *models.MainContainer) error {
	err := t.db.Model(&models.MainContainer{}).Where("id = ?", c.ID).Updates(map[string]any{
		"capacity":         c.Capacity,
		"current_fuel":     c.CurrentFuel,
		"last_refill_date": c.LastRefillDate,
	}).Error
	if err != nil {
		return fmt.Errorf("save main container: %w", err)
	}
	return nil
}

func (t *gormTx) SaveGeneratorFuel(g *models.Generator) error {
	err := t.db.Model(&models.Generator{}).Where("id = ?", g.ID).Update("current_fuel", g.CurrentFuel).Error
	if err != nil {
		return fmt.Errorf("save generator fuel: %w", err)
	}
	return nil
}

func (t *gormTx) CreateMainEntry(e *models.MainFuelEntry) error {
	if err := t.db.Omit(clause.Associations).Create(e).Error; err != nil {
		return fmt.Errorf("create main entry: %w", err)
	}
	return nil
}

func (t *gormTx) CreateTransfer(tr *models.GeneratorFuelTransfer) error {
	if err := t.db.Omit(clause.Associations).Create(tr).Error; err != nil {
		return fmt.Errorf("create transfer: %w", err)
	}
	return nil
}

func (t *gormTx) CreateRunLog(l *models.RunLog) error {
	if err := t.db.Omit(clause.Associations).Create(l).Error; err != nil {
		return fmt.Errorf("create run log: %w", err)
	}
	return nil
}

func (t *gormTx) CreateNotification(n *models.Notification) error {
	if err := t.db.Create(n).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}
