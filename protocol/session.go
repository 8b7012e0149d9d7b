package protocol

import "fmt"

// Session binds a Transport to a signing key and session id, producing and
// consuming fully-signed wire messages so kernel/ only ever deals in
// application-level Message values.
type Session struct {
	ID        string
	key       []byte
	transport Transport
}

// NewSession builds a Session over transport, signing outgoing messages
// with key (may be empty for an unsigned connection).
func NewSession(id string, key []byte, transport Transport) *Session {
	return &Session{ID: id, key: key, transport: transport}
}

// Send stamps msg's session id, signs it, and writes it to ch. Every
// published message crosses the transport with its signature attached,
// never bare.
func (s *Session) Send(ch Channel, msg Message) error {
	msg.Header.Session = s.ID
	msg.Channel = ch
	sig, err := s.Sign(msg)
	if err != nil {
		return fmt.Errorf("sign message: %w", err)
	}
	return s.transport.Send(ch, msg, sig)
}

// Reply builds and sends a message whose parent_header is parent's header,
// as every Jupyter reply and iopub broadcast must.
func (s *Session) Reply(ch Channel, parent Message, msgType string, content map[string]any) error {
	reply := Message{
		Header:       NewHeader(s.ID, msgType),
		ParentHeader: parent.Header,
		Metadata:     map[string]any{},
		Content:      content,
	}
	return s.Send(ch, reply)
}

// Recv reads the next message on ch and verifies its signature.
// Verification happens here rather than at the transport layer since only
// Session knows the signing key.
func (s *Session) Recv(ch Channel) (Message, error) {
	msg, sig, err := s.transport.Recv(ch)
	if err != nil {
		return Message{}, err
	}
	msg.Channel = ch
	if err := s.Verify(msg, sig); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Verify checks a signature carried out-of-band (e.g. read from a raw wire
// frame's "signature" field before Message construction). Recv calls it
// for every message, whichever transport carried it.
func (s *Session) Verify(msg Message, sig string) error {
	ok, err := verify(s.key, msg, sig)
	if err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}
	if !ok {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

// Sign computes the signature for an outgoing msg, for transports that need
// to attach it explicitly to a wire frame.
func (s *Session) Sign(msg Message) (string, error) {
	return sign(s.key, msg)
}

// Close releases the underlying transport.
func (s *Session) Close() error {
	return s.transport.Close()
}
