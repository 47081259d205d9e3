package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"openorders/internal/ledger"

	"github.com/rs/zerolog/log"
)

const defaultBroadcastTimeout = 5 * time.Second

var (
	ErrRejected         = errors.New("transaction rejected by node")
	ErrUnexpectedReport = errors.New("report does not match transaction")
)

// Client broadcasts confirmed cancellations to a ledger node.
type Client struct {
	address string
	timeout time.Duration
	dialer  net.Dialer
}

func NewClient(address string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultBroadcastTimeout
	}
	return &Client{address: address, timeout: timeout}
}

// Broadcast sends tx and waits for the node's report.
func (c *Client) Broadcast(ctx context.Context, tx *ledger.Transaction) error {
	msg, err := NewCancelOrderMessage(tx)
	if err != nil {
		return err
	}
	payload, err := msg.Serialize()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return fmt.Errorf("unable to reach node: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}

	if err := writeFrame(conn, payload); err != nil {
		return fmt.Errorf("unable to send cancel: %w", err)
	}
	frame, err := readFrame(conn)
	if err != nil {
		return fmt.Errorf("unable to read report: %w", err)
	}
	report, err := parseReport(frame)
	if err != nil {
		return err
	}

	if report.TxID != tx.ID {
		return ErrUnexpectedReport
	}
	if report.MessageType == ErrorReport {
		return fmt.Errorf("%w: %s", ErrRejected, report.Err)
	}

	log.Debug().Str("tx", tx.ID.String()).Msg("cancel acknowledged")
	return nil
}
