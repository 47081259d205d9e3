// Package cancel coordinates cancelling an open order, deferring the
// cancellation until the wallet is unlocked when necessary.
//
// All coordinator state is touched only from callbacks run by its executor,
// so the single pending slot needs no locking.
package cancel

import (
	"context"
	"fmt"

	"openorders/internal/common"
	"openorders/internal/confirm"
	"openorders/internal/ledger"
	"openorders/internal/loop"
	"openorders/internal/wallet"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Wallet interface {
	Locked() bool
	PromptOpen() bool
	OpenPrompt()
	Subscribe(fn func(wallet.Event)) (unsubscribe func())
}

type Directory interface {
	Account(ctx context.Context, nameOrID string) (common.Account, error)
	Asset(ctx context.Context, id string) (common.Asset, error)
}

type Ledger interface {
	BuildCancelOrder(ctx context.Context, account common.Account, orderID string) (*ledger.Transaction, error)
	SetRequiredFees(ctx context.Context, tx *ledger.Transaction) error
}

type Confirmer interface {
	Begin(intent confirm.Intent)
}

// Display is the page state the coordinator reads and updates.
type Display interface {
	CurrentAccount() string
	RemoveOrder(orderID string) bool
}

type Status int

const (
	// Submitted means the cancellation was handed to the confirmation workflow.
	Submitted Status = iota
	// Deferred means the request waits for the wallet to unlock.
	Deferred
	// Skipped means the submit step ran while the wallet was still locked.
	Skipped
	// Aborted means a lookup or ledger step failed. Never shown to the user.
	Aborted
)

func (s Status) String() string {
	switch s {
	case Submitted:
		return "submitted"
	case Deferred:
		return "deferred"
	case Skipped:
		return "skipped"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

// Outcome reports how a cancel request ended. Observing outcomes is
// optional; an Aborted outcome is the whole of the failure handling.
type Outcome struct {
	OrderID string
	Status  Status
	Err     error
}

type Config struct {
	Wallet    Wallet
	Directory Directory
	Ledger    Ledger
	Confirmer Confirmer
	Display   Display
	Executor  loop.Executor

	// Observer, if set, receives every outcome on the executor.
	Observer func(Outcome)
}

// deferredCancel is a cancellation waiting for the wallet to unlock.
type deferredCancel struct {
	orderID string
	run     func(locked bool)
}

type Coordinator struct {
	wallet    Wallet
	directory Directory
	ledger    Ledger
	confirmer Confirmer
	display   Display
	exec      loop.Executor
	observer  func(Outcome)

	pending     *deferredCancel
	unsubscribe func()
}

func New(cfg Config) *Coordinator {
	c := &Coordinator{
		wallet:    cfg.Wallet,
		directory: cfg.Directory,
		ledger:    cfg.Ledger,
		confirmer: cfg.Confirmer,
		display:   cfg.Display,
		exec:      cfg.Executor,
		observer:  cfg.Observer,
	}
	c.unsubscribe = c.wallet.Subscribe(func(ev wallet.Event) {
		c.exec.Post(func() { c.onWalletEvent(ev) })
	})
	return c
}

// Close stops listening to wallet events. A pending cancellation is dropped
// with it.
func (c *Coordinator) Close() {
	c.unsubscribe()
}

// Cancel requests cancellation of an order.
func (c *Coordinator) Cancel(orderID string) {
	c.exec.Post(func() { c.onCancel(orderID) })
}

// Pending returns the order id waiting for an unlock, if any. Like all
// coordinator state it must be read on the executor.
func (c *Coordinator) Pending() (string, bool) {
	if c.pending == nil {
		return "", false
	}
	return c.pending.orderID, true
}

func (c *Coordinator) onCancel(orderID string) {
	if !c.wallet.Locked() {
		c.submit(orderID, false)
		return
	}

	// Last request wins: a newer request replaces the pending one.
	if c.pending != nil {
		log.Debug().
			Str("replaced", c.pending.orderID).
			Str("order", orderID).
			Msg("replacing pending cancel")
	}
	c.pending = &deferredCancel{
		orderID: orderID,
		run: func(locked bool) {
			c.submit(orderID, locked)
		},
	}
	if !c.wallet.PromptOpen() {
		c.wallet.OpenPrompt()
	}
	c.report(Outcome{OrderID: orderID, Status: Deferred})
}

// onWalletEvent fires the pending cancellation once per unlock.
func (c *Coordinator) onWalletEvent(ev wallet.Event) {
	if ev.Kind != wallet.Unlocked || c.pending == nil {
		return
	}
	// Clear before running so the slot is empty whatever run does.
	pending := c.pending
	c.pending = nil
	pending.run(ev.Locked)
}

// draft is a cancel transaction together with the account paying for it.
type draft struct {
	account common.Account
	tx      *ledger.Transaction
}

func (c *Coordinator) submit(orderID string, locked bool) {
	if locked {
		c.report(Outcome{OrderID: orderID, Status: Skipped})
		return
	}

	name := c.display.CurrentAccount()

	// 1. Resolve the account and build the transaction.
	loop.Await(c.exec, func(ctx context.Context) (draft, error) {
		account, err := c.directory.Account(ctx, name)
		if err != nil {
			return draft{}, fmt.Errorf("resolving account %q: %w", name, err)
		}
		tx, err := c.ledger.BuildCancelOrder(ctx, account, orderID)
		if err != nil {
			return draft{}, fmt.Errorf("building cancel: %w", err)
		}
		return draft{account: account, tx: tx}, nil
	}, func(d draft, err error) {
		if err != nil {
			c.abort(orderID, err)
			return
		}

		// 2. Price the transaction.
		loop.Await(c.exec, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.ledger.SetRequiredFees(ctx, d.tx)
		}, func(_ struct{}, err error) {
			if err != nil {
				c.abort(orderID, fmt.Errorf("computing fees: %w", err))
				return
			}

			if len(d.tx.Operations) == 0 {
				c.abort(orderID, ledger.ErrEmptyTransaction)
				return
			}

			// 3. Resolve the fee asset.
			fee := d.tx.Operations[0].Fee
			loop.Await(c.exec, func(ctx context.Context) (common.Asset, error) {
				return c.directory.Asset(ctx, fee.AssetID)
			}, func(asset common.Asset, err error) {
				if err != nil {
					c.abort(orderID, fmt.Errorf("resolving fee asset %q: %w", fee.AssetID, err))
					return
				}
				c.handOff(orderID, d, fee, asset)
			})
		})
	})
}

func (c *Coordinator) handOff(orderID string, d draft, fee common.AssetAmount, asset common.Asset) {
	c.confirmer.Begin(confirm.Intent{
		ID:   uuid.New(),
		Kind: confirm.KindLimitOrderCancel,
		Fee: confirm.Fee{
			Amount:  fee.Amount,
			AssetID: fee.AssetID,
			Asset:   asset,
		},
		FeePayingAccount: d.account.ID,
		OrderID:          orderID,
		Summary:          fmt.Sprintf("Cancel order %s", orderID),
		Transaction:      d.tx,
		OnComplete: func() {
			c.display.RemoveOrder(orderID)
		},
	})
	c.report(Outcome{OrderID: orderID, Status: Submitted})
}

func (c *Coordinator) abort(orderID string, err error) {
	log.Debug().
		Err(err).
		Str("order", orderID).
		Msg("cancel abandoned")
	c.report(Outcome{OrderID: orderID, Status: Aborted, Err: err})
}

func (c *Coordinator) report(outcome Outcome) {
	if c.observer != nil {
		c.observer(outcome)
	}
}
