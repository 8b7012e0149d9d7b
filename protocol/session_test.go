package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_SendAndRecv_RoundTrip(t *testing.T) {
	a, b := NewChannelPair(ChannelShell)
	sa := NewSession("sess-1", []byte("secret"), a)
	sb := NewSession("sess-1", []byte("secret"), b)
	defer sa.Close()
	defer sb.Close()

	msg := Message{Header: NewHeader("sess-1", "execute_request"), Content: map[string]any{"code": "1+1"}}
	require.NoError(t, sa.Send(ChannelShell, msg))

	got, err := sb.Recv(ChannelShell)
	require.NoError(t, err)
	assert.Equal(t, "execute_request", got.Header.MsgType)
	assert.Equal(t, "1+1", got.Content["code"])
	assert.Equal(t, ChannelShell, got.Channel)
}

func TestSession_Reply_CarriesParentHeader(t *testing.T) {
	a, b := NewChannelPair(ChannelShell)
	sa := NewSession("sess-1", nil, a)
	sb := NewSession("sess-1", nil, b)
	defer sa.Close()
	defer sb.Close()

	parent := Message{Header: NewHeader("sess-1", "execute_request")}
	require.NoError(t, sa.Reply(ChannelShell, parent, "execute_reply", map[string]any{"status": "ok"}))

	got, err := sb.Recv(ChannelShell)
	require.NoError(t, err)
	assert.Equal(t, parent.Header.MsgID, got.ParentHeader.MsgID)
	assert.Equal(t, "execute_reply", got.Header.MsgType)
}

func TestSession_SignAndVerify(t *testing.T) {
	s := NewSession("sess-1", []byte("secret"), NewChannelTransport())
	msg := Message{Header: NewHeader("sess-1", "execute_request"), Content: map[string]any{"code": "1"}}

	sig, err := s.Sign(msg)
	require.NoError(t, err)
	assert.NotEmpty(t, sig)
	require.NoError(t, s.Verify(msg, sig))
}

func TestSession_VerifyRejectsTamperedSignature(t *testing.T) {
	s := NewSession("sess-1", []byte("secret"), NewChannelTransport())
	msg := Message{Header: NewHeader("sess-1", "execute_request")}

	zeroSig := "0000000000000000000000000000000000000000000000000000000000000000"
	err := s.Verify(msg, zeroSig[:64])
	assert.Error(t, err)
}

func TestSession_UnsignedConnectionSkipsVerification(t *testing.T) {
	s := NewSession("sess-1", nil, NewChannelTransport())
	msg := Message{Header: NewHeader("sess-1", "execute_request")}
	assert.NoError(t, s.Verify(msg, ""))
}

func TestNewHeader_SetsProtocolVersion(t *testing.T) {
	h := NewHeader("sess-1", "kernel_info_request")
	assert.Equal(t, ProtocolVersion, h.Version)
	assert.Equal(t, "kernel", h.Username)
	assert.NotEmpty(t, h.MsgID)
}
