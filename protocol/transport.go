package protocol

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
)

// Transport moves wire messages over one of the Jupyter channels. A real
// deployment multiplexes shell/iopub/stdin/control over ZeroMQ ROUTER/PUB
// sockets; no ZeroMQ binding is wired in here, so Transport abstracts over
// the wire carrier and kernel/ never depends on a specific one. signature is
// carried alongside Message rather than as a field on it, since Session
// computes it from a key Transport implementations never see.
type Transport interface {
	Send(ch Channel, msg Message, signature string) error
	Recv(ch Channel) (msg Message, signature string, err error)
	Close() error
}

// wireFrame is what actually crosses the wire per channel: the raw parts
// plus the signature, decoupled from Message so signing stays in session.go.
type wireFrame struct {
	Header       Header         `json:"header"`
	ParentHeader Header         `json:"parent_header"`
	Metadata     map[string]any `json:"metadata"`
	Content      map[string]any `json:"content"`
	Signature    string         `json:"signature"`
}

// ChannelTransport is an in-memory Transport backed by buffered Go channels,
// one pair per Jupyter channel. It stands in for a live socket in tests and
// for the loopback path a single-process embedding might use.
type ChannelTransport struct {
	mu           sync.Mutex
	inboxFrames  map[Channel]chan channelFrame
	outboxFrames map[Channel]chan channelFrame
	closed       bool
}

// NewChannelTransport builds a ChannelTransport where sends on outbox side
// become receivable on the paired peer's inbox side; use NewChannelPair to
// get two ends wired together.
func NewChannelTransport() *ChannelTransport {
	return &ChannelTransport{
		inboxFrames:  make(map[Channel]chan channelFrame),
		outboxFrames: make(map[Channel]chan channelFrame),
	}
}

// NewChannelPair returns two ChannelTransports wired so a Send on one's
// channel is delivered to the other's Recv on the same channel, for both
// directions independently.
func NewChannelPair(channels ...Channel) (a, b *ChannelTransport) {
	a, b = NewChannelTransport(), NewChannelTransport()
	for _, ch := range channels {
		toB := make(chan channelFrame, 64)
		toA := make(chan channelFrame, 64)
		a.outboxFrames[ch] = toB
		b.inboxFrames[ch] = toB
		b.outboxFrames[ch] = toA
		a.inboxFrames[ch] = toA
	}
	return a, b
}

// channelFrame is what actually moves through a ChannelTransport's Go
// channels: the message plus its signature, since the loopback carrier has
// no wire bytes to attach a signature field to.
type channelFrame struct {
	msg       Message
	signature string
}

func (t *ChannelTransport) Send(ch Channel, msg Message, signature string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("transport closed")
	}
	out, ok := t.outboxFrames[ch]
	if !ok {
		return fmt.Errorf("no outbox wired for channel %q", ch)
	}
	out <- channelFrame{msg: msg, signature: signature}
	return nil
}

func (t *ChannelTransport) Recv(ch Channel) (Message, string, error) {
	t.mu.Lock()
	in, ok := t.inboxFrames[ch]
	t.mu.Unlock()
	if !ok {
		return Message{}, "", fmt.Errorf("no inbox wired for channel %q", ch)
	}
	frame, ok := <-in
	if !ok {
		return Message{}, "", io.EOF
	}
	return frame.msg, frame.signature, nil
}

func (t *ChannelTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	for _, ch := range t.outboxFrames {
		close(ch)
	}
	return nil
}

// TCPTransport frames JSON messages over a length-prefixed TCP connection
// per channel, standing in for the ROUTER/PUB sockets a real ZeroMQ carrier
// would use. One net.Conn is dedicated to each Jupyter channel.
type TCPTransport struct {
	mu    sync.Mutex
	conns map[Channel]net.Conn
	rds   map[Channel]*bufio.Reader
}

// NewTCPTransport wraps conns, keyed by channel, for length-prefixed framing.
func NewTCPTransport(conns map[Channel]net.Conn) *TCPTransport {
	t := &TCPTransport{
		conns: conns,
		rds:   make(map[Channel]*bufio.Reader, len(conns)),
	}
	for ch, c := range conns {
		t.rds[ch] = bufio.NewReader(c)
	}
	return t
}

func (t *TCPTransport) Send(ch Channel, msg Message, signature string) error {
	t.mu.Lock()
	conn, ok := t.conns[ch]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("no connection for channel %q", ch)
	}
	frame := wireFrame{
		Header:       msg.Header,
		ParentHeader: msg.ParentHeader,
		Metadata:     msg.Metadata,
		Content:      msg.Content,
		Signature:    signature,
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(payload)))
	if _, err := conn.Write(length[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

func (t *TCPTransport) Recv(ch Channel) (Message, string, error) {
	t.mu.Lock()
	rd, ok := t.rds[ch]
	t.mu.Unlock()
	if !ok {
		return Message{}, "", fmt.Errorf("no connection for channel %q", ch)
	}
	var length [4]byte
	if _, err := io.ReadFull(rd, length[:]); err != nil {
		return Message{}, "", err
	}
	n := binary.BigEndian.Uint32(length[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(rd, payload); err != nil {
		return Message{}, "", fmt.Errorf("read frame body: %w", err)
	}
	var frame wireFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return Message{}, "", fmt.Errorf("unmarshal frame: %w", err)
	}
	msg := Message{
		Header:       frame.Header,
		ParentHeader: frame.ParentHeader,
		Metadata:     frame.Metadata,
		Content:      frame.Content,
		Channel:      ch,
	}
	return msg, frame.Signature, nil
}

func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var firstErr error
	for _, c := range t.conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
