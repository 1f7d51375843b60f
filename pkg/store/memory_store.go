package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"p9e.in/genfuel/models"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store for tests and -memory dev mode.
// Atomic holds the write lock for the whole unit of work, so fn must only
// use the Tx it is given.
type MemoryStore struct {
	mu  sync.RWMutex
	now func() time.Time

	users         map[uuid.UUID]models.User
	generators    map[uuid.UUID]models.Generator
	container     *models.MainContainer
	entries       []models.MainFuelEntry
	transfers     []models.GeneratorFuelTransfer
	runLogs       []models.RunLog
	notifications map[uuid.UUID]models.Notification
}

// MemoryOption customizes a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock sets the source of createdAt/updatedAt stamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		now:           time.Now,
		users:         make(map[uuid.UUID]models.User),
		generators:    make(map[uuid.UUID]models.Generator),
		notifications: make(map[uuid.UUID]models.Notification),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// stamp fills id and createdAt when unset, matching the gorm hooks.
func (s *MemoryStore) stamp(id *uuid.UUID, createdAt *time.Time) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	if createdAt.IsZero() {
		*createdAt = s.now()
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrConflict
		}
	}
	s.stamp(&u.ID, &u.CreatedAt)
	u.UpdatedAt = u.CreatedAt
	if u.Role == "" {
		u.Role = models.RoleWorker
	}
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryStore) UpdateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Name = u.Name
	existing.Phone = u.Phone
	existing.Address = u.Address
	existing.Role = u.Role
	existing.PasswordHash = u.PasswordHash
	existing.UpdatedAt = s.now()
	s.users[u.ID] = existing
	*u = existing
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id uuid.UUID) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (s *MemoryStore) ListUsersByRole(_ context.Context, role models.Role) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.User{}
	for _, u := range s.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *MemoryStore) CreateGenerator(_ context.Context, g *models.Generator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&g.ID, &g.CreatedAt)
	g.UpdatedAt = g.CreatedAt
	stored := *g
	stored.Operator = nil
	s.generators[g.ID] = stored
	return nil
}

func (s *MemoryStore) UpdateGeneratorDetails(_ context.Context, g *models.Generator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.generators[g.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Name = g.Name
	existing.Location = g.Location
	existing.OperatorID = g.OperatorID
	existing.Latitude = g.Latitude
	existing.Longitude = g.Longitude
	existing.UpdatedAt = s.now()
	s.generators[g.ID] = existing
	return nil
}

// withOperator resolves the operator relation. Caller holds mu.
func (s *MemoryStore) withOperator(g models.Generator) models.Generator {
	g.Operator = nil
	if g.OperatorID != nil {
		if u, ok := s.users[*g.OperatorID]; ok {
			g.Operator = &u
		}
	}
	return g
}

func (s *MemoryStore) GetGenerator(_ context.Context, id uuid.UUID) (models.Generator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.generators[id]
	if !ok {
		return models.Generator{}, ErrNotFound
	}
	return s.withOperator(g), nil
}

func (s *MemoryStore) ListGenerators(_ context.Context, operatorID *uuid.UUID) ([]models.Generator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Generator{}
	for _, g := range s.generators {
		if operatorID != nil && !g.OperatedBy(*operatorID) {
			continue
		}
		out = append(out, s.withOperator(g))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *MemoryStore) GetMainContainer(_ context.Context) (models.MainContainer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.container == nil {
		return models.MainContainer{}, ErrNotFound
	}
	return *s.container, nil
}

func (s *MemoryStore) userRef(id uuid.UUID) *models.User {
	if u, ok := s.users[id]; ok {
		return &u
	}
	return nil
}

func (s *MemoryStore) generatorRef(id uuid.UUID) *models.Generator {
	if g, ok := s.generators[id]; ok {
		g = s.withOperator(g)
		return &g
	}
	return nil
}

// selectLedger filters, orders and limits one ledger table.
func selectLedger[T any](rows []T, q LedgerQuery, createdAt func(T) time.Time, workerID func(T) uuid.UUID, keep func(T) bool) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if !q.Range.Contains(createdAt(r)) {
			continue
		}
		if q.WorkerID != nil && workerID(r) != *q.WorkerID {
			continue
		}
		if keep != nil && !keep(r) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.Newest {
			return createdAt(out[i]).After(createdAt(out[j]))
		}
		return createdAt(out[i]).Before(createdAt(out[j]))
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func (s *MemoryStore) ListMainEntries(_ context.Context, q LedgerQuery) ([]models.MainFuelEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keep func(models.MainFuelEntry) bool
	if q.PositiveOnly {
		keep = func(e models.MainFuelEntry) bool { return e.Quantity > 0 }
	}
	out := selectLedger(s.entries, q,
		func(e models.MainFuelEntry) time.Time { return e.CreatedAt },
		func(e models.MainFuelEntry) uuid.UUID { return e.WorkerID },
		keep)
	for i := range out {
		out[i].Worker = s.userRef(out[i].WorkerID)
	}
	return out, nil
}

func (s *MemoryStore) ListTransfers(_ context.Context, q LedgerQuery) ([]models.GeneratorFuelTransfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := selectLedger(s.transfers, q,
		func(t models.GeneratorFuelTransfer) time.Time { return t.CreatedAt },
		func(t models.GeneratorFuelTransfer) uuid.UUID { return t.WorkerID },
		nil)
	for i := range out {
		out[i].ToGenerator = s.generatorRef(out[i].ToGeneratorID)
		out[i].Worker = s.userRef(out[i].WorkerID)
	}
	return out, nil
}

func (s *MemoryStore) ListRunLogs(_ context.Context, q LedgerQuery) ([]models.RunLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := selectLedger(s.runLogs, q,
		func(l models.RunLog) time.Time { return l.CreatedAt },
		func(l models.RunLog) uuid.UUID { return l.WorkerID },
		nil)
	for i := range out {
		out[i].Generator = s.generatorRef(out[i].GeneratorID)
		out[i].Worker = s.userRef(out[i].WorkerID)
	}
	return out, nil
}

func (s *MemoryStore) GetNotification(_ context.Context, id uuid.UUID) (models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[id]
	if !ok {
		return models.Notification{}, ErrNotFound
	}
	return n, nil
}

func (s *MemoryStore) ListPendingNotifications(_ context.Context, before time.Time, maxAttempts, limit int) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Notification{}
	for _, n := range s.notifications {
		if n.CreatedAt.After(before) || !n.Deliverable(maxAttempts) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UpdateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[n.ID]; !ok {
		return ErrNotFound
	}
	n.UpdatedAt = s.now()
	s.notifications[n.ID] = *n
	return nil
}

// Atomic stages every write in a memTx and applies them only when fn
// returns nil.
func (s *MemoryStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, generators: make(map[uuid.UUID]models.Generator)}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

type memTx struct {
	store *MemoryStore

	container     *models.MainContainer
	generators    map[uuid.UUID]models.Generator
	entries       []models.MainFuelEntry
	transfers     []models.GeneratorFuelTransfer
	runLogs       []models.RunLog
	notifications []models.Notification
}

func (t *memTx) LockMainContainer() (models.MainContainer, error) {
	if t.container != nil {
		return *t.container, nil
	}
	if t.store.container == nil {
		return models.MainContainer{}, ErrNotFound
	}
	return *t.store.container, nil
}

func (t *memTx) LockGenerator(id uuid.UUID) (models.Generator, error) {
	if g, ok := t.generators[id]; ok {
		return g, nil
	}
	g, ok := t.store.generators[id]
	if !ok {
		return models.Generator{}, ErrNotFound
	}
	return g, nil
}

func (t *memTx) CreateMainContainer(c *models.MainContainer) error {
	if t.store.container != nil || t.container != nil {
		return ErrConflict
	}
	t.store.stamp(&c.ID, &c.CreatedAt)
	c.UpdatedAt = c.CreatedAt
	staged := *c
	t.container = &staged
	return nil
}

func (t *memTx) SaveMainContainer(c *models.MainContainer) error {
	current, err := t.LockMainContainer()
	if err != nil {
		return err
	}
	current.Capacity = c.Capacity
	current.CurrentFuel = c.CurrentFuel
	current.LastRefillDate = c.LastRefillDate
	current.UpdatedAt = t.store.now()
	t.container = &current
	return nil
}

func (t *memTx) SaveGeneratorFuel(g *models.Generator) error {
	current, err := t.LockGenerator(g.ID)
	if err != nil {
		return err
	}
	current.CurrentFuel = g.CurrentFuel
	current.UpdatedAt = t.store.now()
	t.generators[g.ID] = current
	return nil
}

func (t *memTx) CreateMainEntry(e *models.MainFuelEntry) error {
	t.store.stamp(&e.ID, &e.CreatedAt)
	row := *e
	row.Worker = nil
	t.entries = append(t.entries, row)
	return nil
}

func (t *memTx) CreateTransfer(tr *models.GeneratorFuelTransfer) error {
	t.store.stamp(&tr.ID, &tr.CreatedAt)
	row := *tr
	row.ToGenerator, row.Worker = nil, nil
	t.transfers = append(t.transfers, row)
	return nil
}

func (t *memTx) CreateRunLog(l *models.RunLog) error {
	t.store.stamp(&l.ID, &l.CreatedAt)
	row := *l
	row.Generator, row.Worker = nil, nil
	t.runLogs = append(t.runLogs, row)
	return nil
}

func (t *memTx) CreateNotification(n *models.Notification) error {
	t.store.stamp(&n.ID, &n.CreatedAt)
	n.UpdatedAt = n.CreatedAt
	if n.Status == "" {
		n.Status = models.NotificationStatusPending
	}
	t.notifications = append(t.notifications, *n)
	return nil
}

// commit applies staged writes. Caller holds the store's write lock.
func (t *memTx) commit() {
	s := t.store
	if t.container != nil {
		c := *t.container
		s.container = &c
	}
	for id, g := range t.generators {
		s.generators[id] = g
	}
	s.entries = append(s.entries, t.entries...)
	s.transfers = append(s.transfers, t.transfers...)
	s.runLogs = append(s.runLogs, t.runLogs...)
	for _, n := range t.notifications {
		s.notifications[n.ID] = n
	}
}
