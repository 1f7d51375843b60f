package models

import (
	"encoding/json"
	"sort"
	"time"
)

// TransactionKind tags which ledger record a Transaction carries.
type TransactionKind string

const (
	TransactionMainEntry TransactionKind = "main_entry"
	TransactionTransfer  TransactionKind = "transfer"
)

// Transaction is a fuel movement through the main container: either a
// refill (MainEntry) or a transfer to a generator (Transfer). Exactly one
// payload is set, matching Kind.
type Transaction struct {
	Kind      TransactionKind
	CreatedAt time.Time
	MainEntry *MainFuelEntry
	Transfer  *GeneratorFuelTransfer
}

// MainEntryTransaction wraps a refill record.
func MainEntryTransaction(e MainFuelEntry) Transaction {
	return Transaction{Kind: TransactionMainEntry, CreatedAt: e.CreatedAt, MainEntry: &e}
}

// TransferTransaction wraps a generator transfer record.
func TransferTransaction(t GeneratorFuelTransfer) Transaction {
	return Transaction{Kind: TransactionTransfer, CreatedAt: t.CreatedAt, Transfer: &t}
}

type transactionJSON struct {
	Kind      TransactionKind `json:"kind"`
	CreatedAt time.Time       `json:"createdAt"`
	Payload   any             `json:"payload"`
}

// MarshalJSON emits {kind, createdAt, payload}.
func (t Transaction) MarshalJSON() ([]byte, error) {
	out := transactionJSON{Kind: t.Kind, CreatedAt: t.CreatedAt}
	switch t.Kind {
	case TransactionMainEntry:
		out.Payload = t.MainEntry
	case TransactionTransfer:
		out.Payload = t.Transfer
	}
	return json.Marshal(out)
}

// MergeTransactions tags both record sets and returns them newest first.
// A positive limit truncates the merged list.
func MergeTransactions(entries []MainFuelEntry, transfers []GeneratorFuelTransfer, limit int) []Transaction {
	out := make([]Transaction, 0, len(entries)+len(transfers))
	for _, e := range entries {
		out = append(out, MainEntryTransaction(e))
	}
	for _, t := range transfers {
		out = append(out, TransferTransaction(t))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
