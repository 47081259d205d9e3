// Package confirm holds a described transaction until the user confirms or
// rejects it, and broadcasts it on confirmation.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"openorders/internal/common"
	"openorders/internal/ledger"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrNothingPending = errors.New("no transaction awaiting confirmation")
)

type Kind string

const (
	KindLimitOrderCancel Kind = "limit_order_cancel"
)

type Fee struct {
	Amount  int64
	AssetID string
	Asset   common.Asset
}

// Intent fully describes a transaction awaiting user confirmation.
type Intent struct {
	ID               uuid.UUID
	Kind             Kind
	Fee              Fee
	FeePayingAccount string
	OrderID          string
	Summary          string
	Transaction      *ledger.Transaction

	// OnComplete runs once the transaction has been broadcast.
	OnComplete func()
}

func (i Intent) String() string {
	return fmt.Sprintf("%s (fee %d %s, paid by %s)", i.Summary, i.Fee.Amount, i.Fee.Asset, i.FeePayingAccount)
}

// Broadcaster submits a signed-off transaction to the ledger.
type Broadcaster interface {
	Broadcast(ctx context.Context, tx *ledger.Transaction) error
}

type Workflow struct {
	broadcaster Broadcaster

	mu      sync.Mutex
	pending *Intent
	onBegin func(Intent)
}

func NewWorkflow(broadcaster Broadcaster) *Workflow {
	return &Workflow{broadcaster: broadcaster}
}

// OnBegin registers fn to be told about every new intent.
func (w *Workflow) OnBegin(fn func(Intent)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onBegin = fn
}

// Begin hands an intent over for confirmation, replacing any previous one.
func (w *Workflow) Begin(intent Intent) {
	w.mu.Lock()
	if w.pending != nil {
		log.Info().
			Str("replaced", w.pending.Summary).
			Str("intent", intent.Summary).
			Msg("replacing unconfirmed transaction")
	}
	w.pending = &intent
	onBegin := w.onBegin
	w.mu.Unlock()

	if onBegin != nil {
		onBegin(intent)
	}
}

func (w *Workflow) Pending() (Intent, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return Intent{}, false
	}
	return *w.pending, true
}

// Confirm broadcasts the pending transaction. On failure the intent stays
// pending so that it can be retried or rejected.
func (w *Workflow) Confirm(ctx context.Context) error {
	w.mu.Lock()
	intent := w.pending
	w.mu.Unlock()
	if intent == nil {
		return ErrNothingPending
	}

	if err := w.broadcaster.Broadcast(ctx, intent.Transaction); err != nil {
		log.Error().
			Err(err).
			Str("intent", intent.Summary).
			Msg("broadcast failed")
		return fmt.Errorf("unable to broadcast %s: %w", intent.Kind, err)
	}

	w.mu.Lock()
	if w.pending == intent {
		w.pending = nil
	}
	w.mu.Unlock()

	log.Info().Str("intent", intent.Summary).Msg("transaction broadcast")
	if intent.OnComplete != nil {
		intent.OnComplete()
	}
	return nil
}

// Reject drops the pending intent without broadcasting it.
func (w *Workflow) Reject() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return ErrNothingPending
	}
	w.pending = nil
	return nil
}
