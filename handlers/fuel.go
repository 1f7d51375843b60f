package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"p9e.in/genfuel/middleware"
	"p9e.in/genfuel/models"
	"p9e.in/genfuel/pkg/apperr"
	"p9e.in/genfuel/pkg/ledger"
	"p9e.in/genfuel/pkg/store"
	"p9e.in/genfuel/utils"
)

const (
	statsLimit         = 10
	workerHistoryLimit = 20
)

type capacityReq struct {
	Capacity float64 `json:"capacity"`
}

func (h *Handler) CreateMainContainer(w http.ResponseWriter, r *http.Request) {
	var req capacityReq
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	c, err := h.ledger.CreateMainContainer(r.Context(), req.Capacity)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) UpdateMainContainer(w http.ResponseWriter, r *http.Request) {
	var req capacityReq
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	c, err := h.ledger.UpdateMainContainer(r.Context(), req.Capacity)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type transactionResp struct {
	Success     bool               `json:"success"`
	Transaction models.Transaction `json:"transaction"`
}

// AddMainContainerFuel records a delivery into the main container.
func (h *Handler) AddMainContainerFuel(w http.ResponseWriter, r *http.Request) {
	var in ledger.MainEntryInput
	if err := decodeJSON(r, &in); err != nil {
		h.respondError(w, r, err)
		return
	}
	entry, err := h.ledger.AddMainEntry(r.Context(), actor(r), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionResp{Success: true, Transaction: models.MainEntryTransaction(entry)})
}

type transferReq struct {
	GeneratorID string  `json:"generatorId"`
	Amount      float64 `json:"amount"`
}

func (h *Handler) TransferToGenerator(w http.ResponseWriter, r *http.Request) {
	var req transferReq
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.Amount <= 0 {
		h.respondError(w, r, ledger.ErrInvalidAmount)
		return
	}
	genID, err := parseID(req.GeneratorID, "generatorId")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	t, err := h.ledger.Transfer(r.Context(), actor(r), genID, req.Amount)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionResp{Success: true, Transaction: models.TransferTransaction(t)})
}

type runLogReq struct {
	GeneratorID string          `json:"generatorId"`
	StartTime   models.JSONTime `json:"startTime"`
	EndTime     models.JSONTime `json:"endTime"`
}

func (h *Handler) AddRunLog(w http.ResponseWriter, r *http.Request) {
	var req runLogReq
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		h.respondError(w, r, apperr.Validationf("startTime and endTime are required"))
		return
	}
	genID, err := parseID(req.GeneratorID, "generatorId")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	l, err := h.ledger.AddRunLog(r.Context(), actor(r), genID, req.StartTime.Time(), req.EndTime.Time())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "runLog": l})
}

type statsResp struct {
	Generators         []models.Generator    `json:"generators"`
	MainContainer      *models.MainContainer `json:"mainContainer"`
	RecentTransactions []models.Transaction  `json:"recentTransactions"`
	RecentRunLogs      []models.RunLog       `json:"recentRunLogs"`
}

// Stats backs the admin dashboard.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recent := store.LedgerQuery{Limit: statsLimit, Newest: true}

	var (
		resp      statsResp
		entries   []models.MainFuelEntry
		transfers []models.GeneratorFuelTransfer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		resp.Generators, err = h.store.ListGenerators(gctx, nil)
		return err
	})
	g.Go(func() error {
		c, err := h.store.GetMainContainer(gctx)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		resp.MainContainer = &c
		return nil
	})
	g.Go(func() (err error) {
		entries, err = h.store.ListMainEntries(gctx, recent)
		return err
	})
	g.Go(func() (err error) {
		transfers, err = h.store.ListTransfers(gctx, recent)
		return err
	})
	g.Go(func() (err error) {
		resp.RecentRunLogs, err = h.store.ListRunLogs(gctx, recent)
		return err
	})
	if err := g.Wait(); err != nil {
		h.respondError(w, r, err)
		return
	}

	resp.RecentTransactions = models.MergeTransactions(entries, transfers, statsLimit)
	if resp.Generators == nil {
		resp.Generators = []models.Generator{}
	}
	if resp.RecentRunLogs == nil {
		resp.RecentRunLogs = []models.RunLog{}
	}
	writeJSON(w, http.StatusOK, resp)
}

type historyResp struct {
	Transactions []models.Transaction `json:"transactions"`
	RunLogs      []models.RunLog      `json:"runLogs"`
}

// history fetches ledger rows newest first. A positive limit applies to each
// record type separately.
func (h *Handler) history(r *http.Request, workerID *uuid.UUID, limit int) (historyResp, error) {
	rng, err := utils.ParseDateRange(r.URL.Query())
	if err != nil {
		return historyResp{}, apperr.Validationf("%s", err.Error())
	}
	q := store.LedgerQuery{Range: rng, WorkerID: workerID, Limit: limit, Newest: true}

	var (
		entries   []models.MainFuelEntry
		transfers []models.GeneratorFuelTransfer
		logs      []models.RunLog
	)
	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		entries, err = h.store.ListMainEntries(gctx, q)
		return err
	})
	g.Go(func() (err error) {
		transfers, err = h.store.ListTransfers(gctx, q)
		return err
	})
	g.Go(func() (err error) {
		logs, err = h.store.ListRunLogs(gctx, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return historyResp{}, err
	}
	if logs == nil {
		logs = []models.RunLog{}
	}
	return historyResp{
		Transactions: models.MergeTransactions(entries, transfers, limit),
		RunLogs:      logs,
	}, nil
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	resp, err := h.history(r, nil, 0)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// WorkerHistory returns the caller's own run logs and transactions.
func (h *Handler) WorkerHistory(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetUserID(r)
	resp, err := h.history(r, &id, workerHistoryLimit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
