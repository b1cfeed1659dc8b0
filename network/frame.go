package network

import (
	"encoding/binary"
	"errors"
	"io"
)

// MessageType identifies the semantic meaning of a message
type MessageType uint8

const (
	// Control messages
	MsgHeartbeat MessageType = 0x01
	MsgHello     MessageType = 0x02 // Payload is the sender's 16-byte actor id

	// Waypoint synchronization, payload is a protocol message
	MsgWaypoint MessageType = 0x13
)

func (t MessageType) String() string {
	switch t {
	case MsgHeartbeat:
		return "heartbeat"
	case MsgHello:
		return "hello"
	case MsgWaypoint:
		return "waypoint"
	default:
		return "unknown"
	}
}

// HeaderSize is the fixed frame header length
// Layout: [Type:1][Flags:1][Seq:4][Ack:4][Len:2] big-endian
const HeaderSize = 12

// MaxFramePayload is the largest payload one frame carries
const MaxFramePayload = 65535

// Header flags
const (
	FlagNone uint8 = 0x00
	FlagMore uint8 = 0x01 // More fragments of the same message follow
)

var (
	ErrPayloadTooLarge  = errors.New("network: payload exceeds maximum message size")
	ErrFragmentMismatch = errors.New("network: fragment type does not match message")
)

// Message represents a framed network message
type Message struct {
	Type    MessageType
	Flags   uint8
	Seq     uint32 // Sender's sequence number
	Ack     uint32 // Last received sequence from peer
	Payload []byte
}

// NewMessage creates a message with the given type and payload
func NewMessage(t MessageType, payload []byte) *Message {
	return &Message{
		Type:    t,
		Flags:   FlagNone,
		Payload: payload,
	}
}

// WriteMessage writes m as one or more frames
// Payloads above MaxFramePayload are split, every fragment but the last carries FlagMore
func WriteMessage(w io.Writer, m *Message) error {
	var header [HeaderSize]byte
	rest := m.Payload

	for {
		chunk := rest
		flags := m.Flags &^ FlagMore
		if len(chunk) > MaxFramePayload {
			chunk = chunk[:MaxFramePayload]
			flags |= FlagMore
		}

		header[0] = byte(m.Type)
		header[1] = flags
		binary.BigEndian.PutUint32(header[2:6], m.Seq)
		binary.BigEndian.PutUint32(header[6:10], m.Ack)
		binary.BigEndian.PutUint16(header[10:12], uint16(len(chunk)))

		if _, err := w.Write(header[:]); err != nil {
			return err
		}
		if len(chunk) > 0 {
			if _, err := w.Write(chunk); err != nil {
				return err
			}
		}

		rest = rest[len(chunk):]
		if flags&FlagMore == 0 {
			return nil
		}
	}
}

// ReadMessage reads frames until a complete message is assembled
// maxSize <= 0 disables the reassembly bound
func ReadMessage(r io.Reader, maxSize int) (*Message, error) {
	var header [HeaderSize]byte
	var m *Message

	for {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			if m != nil && errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}

		typ := MessageType(header[0])
		flags := header[1]
		n := int(binary.BigEndian.Uint16(header[10:12]))

		if m == nil {
			m = &Message{
				Type:  typ,
				Flags: flags &^ FlagMore,
				Seq:   binary.BigEndian.Uint32(header[2:6]),
				Ack:   binary.BigEndian.Uint32(header[6:10]),
			}
		} else if typ != m.Type {
			return nil, ErrFragmentMismatch
		}

		if maxSize > 0 && len(m.Payload)+n > maxSize {
			return nil, ErrPayloadTooLarge
		}
		if n > 0 {
			off := len(m.Payload)
			m.Payload = append(m.Payload, make([]byte, n)...)
			if _, err := io.ReadFull(r, m.Payload[off:]); err != nil {
				if errors.Is(err, io.EOF) {
					return nil, io.ErrUnexpectedEOF
				}
				return nil, err
			}
		}

		if flags&FlagMore == 0 {
			return m, nil
		}
	}
}
