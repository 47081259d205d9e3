// Package ledger builds unsigned ledger transactions and prices their fees.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"openorders/internal/common"

	"github.com/google/uuid"
)

var (
	ErrInvalidCancel     = errors.New("cancel needs an account and an order")
	ErrNoFeeForOperation = errors.New("no fee for operation")
	ErrEmptyTransaction  = errors.New("transaction has no operations")
)

const defaultExpiration = 15 * time.Second

// FeeSchedule is the flat fee charged per operation, denominated in AssetID.
type FeeSchedule struct {
	AssetID string
	Fees    map[OperationType]int64
}

// Required returns the fee for an operation type.
func (s FeeSchedule) Required(op OperationType) (common.AssetAmount, error) {
	amount, ok := s.Fees[op]
	if !ok {
		return common.AssetAmount{}, fmt.Errorf("%w: %s", ErrNoFeeForOperation, op)
	}
	return common.AssetAmount{Amount: amount, AssetID: s.AssetID}, nil
}

type Builder struct {
	fees       FeeSchedule
	expiration time.Duration
	now        func() time.Time
}

func NewBuilder(fees FeeSchedule, expiration time.Duration) *Builder {
	if expiration <= 0 {
		expiration = defaultExpiration
	}
	return &Builder{
		fees:       fees,
		expiration: expiration,
		now:        time.Now,
	}
}

// BuildCancelOrder returns a transaction cancelling orderID on behalf of
// account. Its fee is left at zero until SetRequiredFees is called.
func (b *Builder) BuildCancelOrder(ctx context.Context, account common.Account, orderID string) (*Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if account.ID == "" || orderID == "" {
		return nil, ErrInvalidCancel
	}

	return &Transaction{
		ID: uuid.New(),
		Operations: []Operation{{
			Type:             LimitOrderCancel,
			Fee:              common.AssetAmount{AssetID: b.fees.AssetID},
			FeePayingAccount: account.ID,
			Order:            orderID,
		}},
		Expiration: b.now().Add(b.expiration),
	}, nil
}

// SetRequiredFees fills in the fee of every operation of tx.
func (b *Builder) SetRequiredFees(ctx context.Context, tx *Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(tx.Operations) == 0 {
		return ErrEmptyTransaction
	}

	for i := range tx.Operations {
		fee, err := b.fees.Required(tx.Operations[i].Type)
		if err != nil {
			return err
		}
		tx.Operations[i].Fee = fee
	}
	return nil
}
