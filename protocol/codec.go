package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/lixenwraith/wayfinder/waypoint"
)

// Decode failures, wrapped with the field that failed
var (
	ErrEmpty            = errors.New("empty message")
	ErrUnknownKind      = errors.New("unknown message kind")
	ErrTruncated        = errors.New("truncated field")
	ErrNonFinite        = errors.New("non-finite coordinate")
	ErrNegativeCount    = errors.New("negative waypoint count")
	ErrCountExceeded    = errors.New("waypoint count exceeds limit")
	ErrInvalidText      = errors.New("invalid text field")
	ErrInvalidSelection = errors.New("invalid selection mode")
)

// Encode returns the tagged wire form of m
func Encode(m Message) []byte {
	return Append(nil, m)
}

// Append appends the tagged wire form of m to b
func Append(b []byte, m Message) []byte {
	b = append(b, byte(m.Kind()))
	return m.appendBody(b)
}

func (m FullSync) appendBody(b []byte) []byte {
	b = appendI32(b, int32(len(m.Waypoints)))
	for _, wp := range m.Waypoints {
		b = appendString(b, wp.Name)
		b = appendF32(b, wp.Position.X)
		b = appendF32(b, wp.Position.Y)
	}

	mode, index := m.Selection.Mode, int32(-1)
	switch mode {
	case waypoint.SelectWaypoint:
		index = int32(m.Selection.Index)
	case waypoint.SelectExploration:
	default:
		mode = waypoint.SelectNone
	}
	b = append(b, byte(mode))
	return appendI32(b, index)
}

func (m Created) appendBody(b []byte) []byte {
	b = appendString(b, m.Name)
	b = appendF32(b, m.Position.X)
	return appendF32(b, m.Position.Y)
}

func (m Deleted) appendBody(b []byte) []byte {
	return appendI32(b, m.Index)
}

// Decode dispatches on the tag byte and decodes the body
func Decode(data []byte, limits Limits) (Message, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	body := data[1:]
	switch Kind(data[0]) {
	case KindFullSync:
		return DecodeFullSync(body, limits)
	case KindCreated:
		return DecodeCreated(body, limits)
	case KindDeleted:
		return DecodeDeleted(body)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, data[0])
	}
}

// DecodeFullSync decodes a FullSync body
// Any failure invalidates the whole snapshot; no partial result is returned
func DecodeFullSync(body []byte, limits Limits) (FullSync, error) {
	limits = limits.normalized()
	r := reader{buf: body}

	count, err := r.i32()
	if err != nil {
		return FullSync{}, fmt.Errorf("count: %w", err)
	}
	if count < 0 {
		return FullSync{}, fmt.Errorf("%w: %d", ErrNegativeCount, count)
	}
	if int(count) > limits.MaxWaypoints {
		return FullSync{}, fmt.Errorf("%w: %d > %d", ErrCountExceeded, count, limits.MaxWaypoints)
	}

	// Each entry needs at least a length byte and two floats
	const minEntry = 1 + 4 + 4
	if r.remaining() < int(count)*minEntry {
		return FullSync{}, fmt.Errorf("waypoints: %w: %d entries declared, %d bytes remain",
			ErrTruncated, count, r.remaining())
	}

	wps := make([]waypoint.Waypoint, 0, count)
	for i := 0; i < int(count); i++ {
		wp, err := r.waypoint(limits)
		if err != nil {
			return FullSync{}, fmt.Errorf("waypoint %d: %w", i, err)
		}
		wps = append(wps, wp)
	}

	modeByte, err := r.u8()
	if err != nil {
		return FullSync{}, fmt.Errorf("selection mode: %w", err)
	}
	index, err := r.i32()
	if err != nil {
		return FullSync{}, fmt.Errorf("selection index: %w", err)
	}

	var sel waypoint.Selection
	switch waypoint.SelectionMode(modeByte) {
	case waypoint.SelectNone:
		sel = waypoint.NoSelection()
	case waypoint.SelectWaypoint:
		sel = waypoint.WaypointSelection(int(index))
	case waypoint.SelectExploration:
		// Exploration targets are local to each process; the key does not travel
		sel = waypoint.NoSelection()
	default:
		return FullSync{}, fmt.Errorf("%w: %d", ErrInvalidSelection, modeByte)
	}

	return FullSync{Waypoints: wps, Selection: sel}, nil
}

// DecodeCreated decodes a Created body
func DecodeCreated(body []byte, limits Limits) (Created, error) {
	limits = limits.normalized()
	r := reader{buf: body}
	wp, err := r.waypoint(limits)
	if err != nil {
		return Created{}, err
	}
	return Created{Name: wp.Name, Position: wp.Position}, nil
}

// DecodeDeleted decodes a Deleted body
func DecodeDeleted(body []byte) (Deleted, error) {
	r := reader{buf: body}
	index, err := r.i32()
	if err != nil {
		return Deleted{}, fmt.Errorf("index: %w", err)
	}
	return Deleted{Index: index}, nil
}

// reader consumes a byte slice, checking remaining length before every field
type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) need(n int) error {
	if n < 0 || r.remaining() < n {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, n, r.remaining())
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *reader) i32() (int32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := int32(binary.LittleEndian.Uint32(r.buf[r.off:]))
	r.off += 4
	return v, nil
}

func (r *reader) f32() (float32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := math.Float32frombits(binary.LittleEndian.Uint32(r.buf[r.off:]))
	r.off += 4
	return v, nil
}

func (r *reader) str(maxBytes int) (string, error) {
	n, w := binary.Uvarint(r.buf[r.off:])
	switch {
	case w == 0:
		return "", fmt.Errorf("length: %w", ErrTruncated)
	case w < 0:
		return "", fmt.Errorf("%w: length overflow", ErrInvalidText)
	}
	if n > uint64(maxBytes) {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidText, n, maxBytes)
	}
	r.off += w
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.buf[r.off : r.off+int(n)])
	r.off += int(n)
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: not UTF-8", ErrInvalidText)
	}
	return s, nil
}

func (r *reader) waypoint(limits Limits) (waypoint.Waypoint, error) {
	name, err := r.str(limits.MaxNameBytes)
	if err != nil {
		return waypoint.Waypoint{}, fmt.Errorf("name: %w", err)
	}
	x, err := r.f32()
	if err != nil {
		return waypoint.Waypoint{}, fmt.Errorf("x: %w", err)
	}
	y, err := r.f32()
	if err != nil {
		return waypoint.Waypoint{}, fmt.Errorf("y: %w", err)
	}
	pos := waypoint.Point{X: x, Y: y}
	if !pos.IsFinite() {
		return waypoint.Waypoint{}, fmt.Errorf("%w: (%v, %v)", ErrNonFinite, x, y)
	}
	return waypoint.Waypoint{Name: name, Position: pos}, nil
}

func appendI32(b []byte, v int32) []byte {
	return binary.LittleEndian.AppendUint32(b, uint32(v))
}

func appendF32(b []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
}

func appendString(b []byte, s string) []byte {
	b = binary.AppendUvarint(b, uint64(len(s)))
	return append(b, s...)
}
