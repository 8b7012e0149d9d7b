// Package protocol implements the wire boundary: Jupyter wire-protocol
// framing, message signing, and channel dispatch. No ZeroMQ binding or
// Jupyter-kernel library is wired in here, so this package is a
// from-scratch stand-in for a kernel-protocol library — it is deliberately
// kept free of any of the core's Swift/lldb semantics so a real
// ZeroMQ-backed implementation could replace it without touching kernel/,
// repl/, installer/, or diagnostics/.
package protocol

import (
	"time"

	"github.com/google/uuid"
)

// ProtocolVersion is the Jupyter messaging protocol version this adapter
// implements. kernel_info must report >= "5.4".
const ProtocolVersion = "5.4"

// Channel names a Jupyter socket role.
type Channel string

const (
	ChannelShell   Channel = "shell"
	ChannelIOPub   Channel = "iopub"
	ChannelControl Channel = "control"
	ChannelStdin   Channel = "stdin"
)

// Header is the envelope every Jupyter message carries.
type Header struct {
	MsgID    string `json:"msg_id"`
	Session  string `json:"session"`
	Username string `json:"username"`
	Date     string `json:"date"`
	MsgType  string `json:"msg_type"`
	Version  string `json:"version"`
}

// Message is a full Jupyter wire message: header, parent header (empty if
// this message did not originate from a client request), metadata, and the
// message-type-specific content.
type Message struct {
	Header       Header                 `json:"header"`
	ParentHeader Header                 `json:"parent_header"`
	Metadata     map[string]any         `json:"metadata"`
	Content      map[string]any         `json:"content"`
	Buffers      [][]byte               `json:"-"`
	Channel      Channel                `json:"-"`
}

// NewHeader builds a header for msgType, stamping a fresh message id and the
// current time. sessionID identifies the kernel session (constant for the
// process lifetime); username defaults to "kernel" as ipykernel does.
func NewHeader(sessionID, msgType string) Header {
	return Header{
		MsgID:    uuid.New().String(),
		Session:  sessionID,
		Username: "kernel",
		Date:     time.Now().UTC().Format(time.RFC3339Nano),
		MsgType:  msgType,
		Version:  ProtocolVersion,
	}
}

// LanguageInfo is the kernel_info_reply's language_info field.
type LanguageInfo struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	MIMEType      string `json:"mimetype"`
	FileExtension string `json:"file_extension"`
	PygmentsLexer string `json:"pygments_lexer"`
}
