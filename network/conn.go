package network

import (
	"bufio"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// conn carries whole messages over one of the supported byte streams
// A conn supports one concurrent reader and one concurrent writer
type conn interface {
	ReadMessage() (*Message, error)
	WriteMessage(*Message) error
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
	RemoteAddr() string
	Close() error
}

// streamConn frames messages directly on a TCP stream
type streamConn struct {
	raw     net.Conn
	reader  *bufio.Reader
	writer  *bufio.Writer
	maxSize int
}

func newStreamConn(raw net.Conn, cfg *Config) *streamConn {
	return &streamConn{
		raw:     raw,
		reader:  bufio.NewReaderSize(raw, cfg.ReadBufferSize),
		writer:  bufio.NewWriterSize(raw, cfg.WriteBufferSize),
		maxSize: cfg.MaxMessageSize,
	}
}

func (c *streamConn) ReadMessage() (*Message, error) {
	return ReadMessage(c.reader, c.maxSize)
}

func (c *streamConn) WriteMessage(m *Message) error {
	if err := WriteMessage(c.writer, m); err != nil {
		return err
	}
	return c.writer.Flush()
}

func (c *streamConn) SetReadDeadline(t time.Time) error  { return c.raw.SetReadDeadline(t) }
func (c *streamConn) SetWriteDeadline(t time.Time) error { return c.raw.SetWriteDeadline(t) }
func (c *streamConn) RemoteAddr() string                 { return c.raw.RemoteAddr().String() }
func (c *streamConn) Close() error                       { return c.raw.Close() }

// wsConn sends each framed message as one binary websocket message
type wsConn struct {
	ws      *websocket.Conn
	maxSize int
}

func newWSConn(ws *websocket.Conn, cfg *Config) *wsConn {
	if cfg.MaxMessageSize > 0 {
		fragments := cfg.MaxMessageSize/MaxFramePayload + 1
		ws.SetReadLimit(int64(cfg.MaxMessageSize + fragments*HeaderSize))
	}
	return &wsConn{ws: ws, maxSize: cfg.MaxMessageSize}
}

func (c *wsConn) ReadMessage() (*Message, error) {
	for {
		mt, r, err := c.ws.NextReader()
		if err != nil {
			return nil, err
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		return ReadMessage(r, c.maxSize)
	}
}

func (c *wsConn) WriteMessage(m *Message) error {
	w, err := c.ws.NextWriter(websocket.BinaryMessage)
	if err != nil {
		return err
	}
	if err := WriteMessage(w, m); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (c *wsConn) SetReadDeadline(t time.Time) error  { return c.ws.SetReadDeadline(t) }
func (c *wsConn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }
func (c *wsConn) RemoteAddr() string                 { return c.ws.RemoteAddr().String() }
func (c *wsConn) Close() error                       { return c.ws.Close() }
