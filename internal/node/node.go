// Package node applies broadcast cancellations to the ledger's open orders.
package node

import (
	"context"
	"errors"
	"fmt"

	"openorders/internal/common"
	"openorders/internal/ledger"
	"openorders/internal/net"

	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownOrder    = errors.New("unknown order")
	ErrNotOwner        = errors.New("order is not owned by the fee paying account")
	ErrInsufficientFee = errors.New("insufficient fee")
)

// OrderBook is the set of open orders the node maintains.
type OrderBook interface {
	Order(orderID string) (common.Order, bool)
	RemoveOrder(orderID string) bool
}

type Node struct {
	orders OrderBook
	fees   ledger.FeeSchedule
}

func New(orders OrderBook, fees ledger.FeeSchedule) *Node {
	return &Node{orders: orders, fees: fees}
}

// HandleCancel removes the order named by msg once ownership and fee check out.
func (n *Node) HandleCancel(ctx context.Context, msg net.CancelOrderMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	order, ok := n.orders.Order(msg.OrderID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, msg.OrderID)
	}
	if order.Seller != msg.Account {
		return ErrNotOwner
	}

	required, err := n.fees.Required(ledger.LimitOrderCancel)
	if err != nil {
		return err
	}
	if msg.FeeAssetID != required.AssetID || msg.FeeAmount < required.Amount {
		return fmt.Errorf("%w: need %s", ErrInsufficientFee, required)
	}

	if !n.orders.RemoveOrder(msg.OrderID) {
		// Lost a race with another cancellation of the same order.
		return fmt.Errorf("%w: %s", ErrUnknownOrder, msg.OrderID)
	}

	log.Info().
		Str("order", msg.OrderID).
		Str("account", msg.Account).
		Msg("order cancelled")
	return nil
}
