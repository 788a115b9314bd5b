package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/arenamatch/internal/model"
)

func TestConnectionRequest_RoundTrip(t *testing.T) {
	req := NewConnectionRequest(42, "hero_one", "tok123")
	buf, err := BuildPacket(TypeConnectionRequest, 0, req.Encode())
	require.NoError(t, err)

	h, payload, err := ParsePacket(buf)
	require.NoError(t, err)
	assert.Equal(t, TypeConnectionRequest, h.Type)

	got, err := DecodeConnectionRequest(payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got.AccountID)
	assert.Equal(t, "hero_one", got.UsernameStr())
	assert.Equal(t, "tok123", got.SessionTokenStr())
}

func TestClientInput_RoundTrip(t *testing.T) {
	in := ClientInput{MoveX: 1.5, MoveY: -2.25, Actions: 0b101}
	buf, err := BuildPacket(TypeClientInput, 99, in.Encode())
	require.NoError(t, err)

	h, payload, err := ParsePacket(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(99), h.Sequence)

	got, err := DecodeClientInput(payload)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestWorldSnapshot_RoundTripsThroughModel(t *testing.T) {
	snap := model.WorldSnapshot{
		Tick:          7,
		ServerTimeSec: 100.5,
		GameTimeSec:   42.25,
		Wave:          3,
		Entities: []model.EntitySnapshot{
			{NetworkID: 1, PosX: 1, PosY: 2, HasHP: true, HP: 100, OwnerClientID: 1, HasOwner: true},
			{NetworkID: 2, PosX: -1, PosY: -2, HasTeam: true, Team: 1},
		},
	}

	wire := FromModelSnapshot(snap)
	buf, err := BuildPacket(TypeWorldSnapshot, 5, wire.Encode())
	require.NoError(t, err)

	_, payload, err := ParsePacket(buf)
	require.NoError(t, err)
	decoded, err := DecodeWorldSnapshotWire(payload)
	require.NoError(t, err)

	got := ToModelSnapshot(decoded)
	assert.Equal(t, snap.Tick, got.Tick)
	assert.Len(t, got.Entities, 2)
	assert.True(t, got.Entities[0].HasOwner)
	assert.Equal(t, model.ClientID(1), got.Entities[0].OwnerClientID)
	assert.True(t, got.Entities[1].HasTeam)
	assert.EqualValues(t, 1, got.Entities[1].Team)
}

func TestParsePacket_RejectsTruncated(t *testing.T) {
	_, _, err := ParsePacket([]byte{1, 2, 3})
	assert.Error(t, err)
}
