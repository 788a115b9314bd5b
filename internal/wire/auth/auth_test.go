package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAndParsePacket_RoundTrip(t *testing.T) {
	req := NewLoginRequest("player_one", "deadbeef")
	buf, err := BuildPacket(TypeLoginRequest, 0, 42, req.Encode())
	require.NoError(t, err)

	h, payload, err := ParsePacket(buf)
	require.NoError(t, err)
	assert.Equal(t, TypeLoginRequest, h.Type)
	assert.Equal(t, uint32(42), h.RequestID)
	assert.Equal(t, uint32(len(req.Encode())), h.PayloadSize)

	got, err := DecodeLoginRequest(payload)
	require.NoError(t, err)
	assert.Equal(t, "player_one", got.UsernameStr())
	assert.Equal(t, "deadbeef", got.PasswordHashStr())
}

func TestParsePacket_RejectsBadMagic(t *testing.T) {
	buf, err := BuildPacket(TypeLoginRequest, 0, 1, nil)
	require.NoError(t, err)
	buf[0] ^= 0xFF

	_, _, err = ParsePacket(buf)
	assert.Error(t, err)
}

func TestParsePacket_RejectsTruncatedPayload(t *testing.T) {
	buf, err := BuildPacket(TypeLogoutRequest, 7, 1, NewLogoutRequest("tok", true).Encode())
	require.NoError(t, err)

	_, _, err = ParsePacket(buf[:HeaderSize+2])
	assert.Error(t, err)
}

func TestBuildPacket_AcceptsNilPayload(t *testing.T) {
	_, err := BuildPacket(TypeLoginRequest, 0, 1, nil)
	assert.NoError(t, err, "nil payload with implied zero size is valid")
}

func TestCopyCString_TruncatesAndTerminates(t *testing.T) {
	var req RegisterRequest
	longName := "this_username_is_definitely_longer_than_32_bytes"
	r := NewRegisterRequest(longName, "hash", "e@x.com")
	req = r
	got := req.UsernameStr()
	assert.Less(t, len(got), maxUsername)
	assert.NotContains(t, got, "\x00")
}

func TestLoginResponse_RoundTrip(t *testing.T) {
	resp := NewLoginResponse(AccountBanned, 99, "", "cheating")
	buf, err := BuildPacket(TypeLoginResponse, 99, 5, resp.Encode())
	require.NoError(t, err)

	_, payload, err := ParsePacket(buf)
	require.NoError(t, err)
	got, err := DecodeLoginResponse(payload)
	require.NoError(t, err)
	assert.Equal(t, AccountBanned, got.Result)
	assert.Equal(t, "cheating", got.BanReasonStr())
}
