package net

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"openorders/internal/common"
	"openorders/internal/ledger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cancelTx(orderID string) *ledger.Transaction {
	return &ledger.Transaction{
		ID: uuid.New(),
		Operations: []ledger.Operation{{
			Type:             ledger.LimitOrderCancel,
			Fee:              common.AssetAmount{Amount: 50, AssetID: "1.3.0"},
			FeePayingAccount: "1.2.17",
			Order:            orderID,
		}},
	}
}

func TestCancelOrderMessage_Parse(t *testing.T) {
	tx := cancelTx("1.7.42")
	msg, err := NewCancelOrderMessage(tx)
	require.NoError(t, err)

	buf, err := msg.Serialize()
	require.NoError(t, err)

	parsed, err := parseMessage(buf)
	require.NoError(t, err)
	assert.Equal(t, CancelOrder, parsed.GetType())
	assert.Equal(t, CancelOrderMessage{
		BaseMessage: BaseMessage{TypeOf: CancelOrder},
		TxID:        tx.ID,
		FeeAmount:   50,
		FeeAssetID:  "1.3.0",
		Account:     "1.2.17",
		OrderID:     "1.7.42",
	}, parsed)
}

func TestCancelOrderMessage_Truncated(t *testing.T) {
	msg, err := NewCancelOrderMessage(cancelTx("1.7.42"))
	require.NoError(t, err)
	buf, err := msg.Serialize()
	require.NoError(t, err)

	for _, n := range []int{1, 10, len(buf) - 1} {
		_, err := parseMessage(buf[:n])
		assert.ErrorIs(t, err, ErrMessageTooShort, "length %d", n)
	}
}

func TestCancelOrderMessage_Invalid(t *testing.T) {
	_, err := NewCancelOrderMessage(&ledger.Transaction{})
	assert.ErrorIs(t, err, ErrNotCancelOrder)

	tx := cancelTx(strings.Repeat("9", 256))
	msg, err := NewCancelOrderMessage(tx)
	require.NoError(t, err)
	_, err = msg.Serialize()
	assert.ErrorIs(t, err, ErrFieldTooLong)

	_, err = parseMessage([]byte{0, 9})
	assert.ErrorIs(t, err, ErrInvalidMessageType)
}

func TestReport_Parse(t *testing.T) {
	txID := uuid.New()

	buf, err := generateWireErrorReport(txID, errors.New("unknown order"))
	require.NoError(t, err)
	report, err := parseReport(buf)
	require.NoError(t, err)
	assert.Equal(t, Report{MessageType: ErrorReport, TxID: txID, ErrStrLen: 13, Err: "unknown order"}, report)

	buf, err = generateWireAck(txID)
	require.NoError(t, err)
	report, err = parseReport(buf)
	require.NoError(t, err)
	assert.Equal(t, Report{MessageType: Ack, TxID: txID}, report)
}

func TestFrames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, []byte("hello")))
	require.NoError(t, writeFrame(&buf, nil))

	first, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), first)
	second, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Empty(t, second)

	assert.ErrorIs(t, writeFrame(&buf, make([]byte, MAX_FRAME_SIZE+1)), ErrMessageTooLong)
}
