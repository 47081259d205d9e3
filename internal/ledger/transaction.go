package ledger

import (
	"time"

	"openorders/internal/common"

	"github.com/google/uuid"
)

type OperationType int

// Numbering follows the ledger's operation ids.
const (
	LimitOrderCreate OperationType = 1
	LimitOrderCancel OperationType = 2
)

func (t OperationType) String() string {
	switch t {
	case LimitOrderCreate:
		return "limit_order_create"
	case LimitOrderCancel:
		return "limit_order_cancel"
	}
	return "unknown"
}

type Operation struct {
	Type             OperationType
	Fee              common.AssetAmount
	FeePayingAccount string // Account id
	Order            string // Order id, for LimitOrderCancel
}

// Transaction is an unsigned ledger transaction.
type Transaction struct {
	ID         uuid.UUID
	Operations []Operation
	Expiration time.Time
}
