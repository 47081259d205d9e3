package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"openorders/internal/ledger"

	"github.com/google/uuid"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
	ErrMessageTooLong     = errors.New("message too long")
	ErrFieldTooLong       = errors.New("field longer than 255 bytes")
	ErrNotCancelOrder     = errors.New("transaction is not a single order cancellation")
)

type MessageType int

const (
	Heartbeat MessageType = iota
	CancelOrder
)

type ReportMessageType int

const (
	Ack ReportMessageType = iota
	ErrorReport
)

type Message interface {
	GetType() MessageType
}

// Message format constants
const (
	FrameHeaderLen              = 4
	BaseMessageHeaderLen        = 2
	CancelOrderMessageHeaderLen = 16 + 8 + 1 + 1 + 1
	reportFixedHeaderLen        = 1 + 16 + 4
	MAX_FRAME_SIZE              = 4 * 1024
)

// Generic message type.
type BaseMessage struct {
	TypeOf MessageType // 2 bytes
}

func (m BaseMessage) GetType() MessageType {
	return m.TypeOf
}

func (m BaseMessage) Serialize() ([]byte, error) {
	buf := make([]byte, BaseMessageHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(m.TypeOf))
	return buf, nil
}

func parseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return BaseMessage{}, ErrMessageTooShort
	}

	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	msg = msg[2:]
	switch typeOf {
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	case CancelOrder:
		return parseCancelOrder(msg)
	default:
		return BaseMessage{}, ErrInvalidMessageType
	}
}

// CancelOrderMessage carries a confirmed limit order cancellation.
type CancelOrderMessage struct {
	BaseMessage
	TxID       uuid.UUID // 16 bytes
	FeeAmount  int64     // 8 bytes
	FeeAssetID string    // 1 + n bytes
	Account    string    // 1 + n bytes, fee paying account id
	OrderID    string    // 1 + n bytes
}

// NewCancelOrderMessage encodes a transaction holding a single
// limit_order_cancel operation.
func NewCancelOrderMessage(tx *ledger.Transaction) (CancelOrderMessage, error) {
	if tx == nil || len(tx.Operations) != 1 || tx.Operations[0].Type != ledger.LimitOrderCancel {
		return CancelOrderMessage{}, ErrNotCancelOrder
	}
	op := tx.Operations[0]
	return CancelOrderMessage{
		BaseMessage: BaseMessage{TypeOf: CancelOrder},
		TxID:        tx.ID,
		FeeAmount:   op.Fee.Amount,
		FeeAssetID:  op.Fee.AssetID,
		Account:     op.FeePayingAccount,
		OrderID:     op.Order,
	}, nil
}

// Serialize converts the message to be sent on the wire, type header included.
func (m CancelOrderMessage) Serialize() ([]byte, error) {
	fields := []string{m.FeeAssetID, m.Account, m.OrderID}
	totalSize := BaseMessageHeaderLen + CancelOrderMessageHeaderLen
	for _, f := range fields {
		if len(f) > 255 {
			return nil, ErrFieldTooLong
		}
		totalSize += len(f)
	}

	buf := make([]byte, totalSize)
	binary.BigEndian.PutUint16(buf[0:2], uint16(CancelOrder))
	copy(buf[2:18], m.TxID[:])
	binary.BigEndian.PutUint64(buf[18:26], uint64(m.FeeAmount))

	offset := 26
	for _, f := range fields {
		buf[offset] = uint8(len(f))
		offset++
		offset += copy(buf[offset:], f)
	}
	return buf, nil
}

func parseCancelOrder(msg []byte) (CancelOrderMessage, error) {
	m := CancelOrderMessage{BaseMessage: BaseMessage{TypeOf: CancelOrder}}

	if len(msg) < CancelOrderMessageHeaderLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	copy(m.TxID[:], msg[0:16])
	m.FeeAmount = int64(binary.BigEndian.Uint64(msg[16:24]))

	offset := 24
	fields := []*string{&m.FeeAssetID, &m.Account, &m.OrderID}
	for _, f := range fields {
		if len(msg) < offset+1 {
			return CancelOrderMessage{}, ErrMessageTooShort
		}
		n := int(msg[offset])
		offset++
		if len(msg) < offset+n {
			return CancelOrderMessage{}, ErrMessageTooShort
		}
		*f = string(msg[offset : offset+n])
		offset += n
	}
	return m, nil
}

// Report answers a message. TxID echoes the cancellation it refers to.
type Report struct {
	MessageType ReportMessageType // 1 byte
	TxID        uuid.UUID         // 16 bytes
	ErrStrLen   uint32            // 4 bytes
	Err         string            // n bytes
}

// Serialize converts the report to be sent on the wire.
func (r *Report) Serialize() ([]byte, error) {
	buf := make([]byte, reportFixedHeaderLen+len(r.Err))
	buf[0] = byte(r.MessageType)
	copy(buf[1:17], r.TxID[:])
	binary.BigEndian.PutUint32(buf[17:21], uint32(len(r.Err)))
	copy(buf[reportFixedHeaderLen:], r.Err)
	return buf, nil
}

func parseReport(msg []byte) (Report, error) {
	if len(msg) < reportFixedHeaderLen {
		return Report{}, ErrMessageTooShort
	}
	r := Report{MessageType: ReportMessageType(msg[0])}
	copy(r.TxID[:], msg[1:17])
	r.ErrStrLen = binary.BigEndian.Uint32(msg[17:21])
	if len(msg) < reportFixedHeaderLen+int(r.ErrStrLen) {
		return Report{}, ErrMessageTooShort
	}
	r.Err = string(msg[reportFixedHeaderLen : reportFixedHeaderLen+int(r.ErrStrLen)])
	return r, nil
}

func generateWireAck(txID uuid.UUID) ([]byte, error) {
	report := Report{MessageType: Ack, TxID: txID}
	return report.Serialize()
}

func generateWireErrorReport(txID uuid.UUID, err error) ([]byte, error) {
	errStr := err.Error()
	report := Report{
		MessageType: ErrorReport,
		TxID:        txID,
		ErrStrLen:   uint32(len(errStr)),
		Err:         errStr,
	}
	return report.Serialize()
}

// writeFrame prefixes payload with its big-endian length.
func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) > MAX_FRAME_SIZE {
		return ErrMessageTooLong
	}
	buf := make([]byte, FrameHeaderLen+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(payload)))
	copy(buf[FrameHeaderLen:], payload)
	_, err := w.Write(buf)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, FrameHeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header)
	if n > MAX_FRAME_SIZE {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLong, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
