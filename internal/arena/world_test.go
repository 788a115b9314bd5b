package arena

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/arenamatch/internal/model"
)

func TestArenaWorld_AddClient_CreatesOwnedEntity(t *testing.T) {
	w := NewArenaWorld()
	w.AddClient(1)

	snap := w.Snapshot()
	require.Len(t, snap.Entities, 1)
	assert.Equal(t, model.ClientID(1), snap.Entities[0].OwnerClientID)
	assert.True(t, snap.Entities[0].HasOwner)
}

func TestArenaWorld_ApplyInput_IsNoOpForUnknownClient(t *testing.T) {
	w := NewArenaWorld()
	w.ApplyInput(99, model.PlayerInput{MoveX: 1})
	w.Advance(1.0 / 30)

	snap := w.Snapshot()
	assert.Empty(t, snap.Entities)
}

func TestArenaWorld_Advance_IntegratesPendingMovement(t *testing.T) {
	w := NewArenaWorld()
	w.AddClient(1)
	w.ApplyInput(1, model.PlayerInput{Sequence: 5, MoveX: 1, MoveY: 0})
	w.Advance(1.0)

	snap := w.Snapshot()
	require.Len(t, snap.Entities, 1)
	assert.Greater(t, snap.Entities[0].PosX, float32(0))
	assert.Equal(t, uint64(1), snap.Tick)
	assert.Equal(t, uint32(5), w.LastProcessedInputFor(1))
}

func TestArenaWorld_RemoveClient_DespawnsEntity(t *testing.T) {
	w := NewArenaWorld()
	w.AddClient(1)
	w.RemoveClient(1)

	snap := w.Snapshot()
	assert.Empty(t, snap.Entities)
}

func TestAccumulator_StepsAtFixedInterval(t *testing.T) {
	w := NewArenaWorld()
	acc := NewAccumulator(10*time.Millisecond, w)

	ticks := acc.Step(25 * time.Millisecond)
	assert.Equal(t, 2, ticks)
	assert.Equal(t, uint64(2), w.Snapshot().Tick)

	ticks = acc.Step(6 * time.Millisecond) // 5ms leftover + 6ms = 11ms -> one more tick, 1ms carried
	assert.Equal(t, 1, ticks)
	assert.Equal(t, uint64(3), w.Snapshot().Tick)
}
