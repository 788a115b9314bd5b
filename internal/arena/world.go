// Package arena implements the authoritative world (C9): a deterministic
// simulation advanced by a fixed-timestep accumulator. The simulation
// rules themselves (movement, combat, abilities) are intentionally
// opaque — this package only guarantees the tick/input/snapshot contract
// a dedicated game server needs.
package arena

import (
	"math"
	"sync"
	"time"

	"github.com/udisondev/arenamatch/internal/model"
	"github.com/udisondev/arenamatch/internal/world"
)

// TickState is the narrow interface a dedicated game server drives the
// world through.
type TickState interface {
	Advance(dt float64)
	ApplyInput(clientID model.ClientID, input model.PlayerInput)
	Snapshot() model.WorldSnapshot
	AddClient(clientID model.ClientID)
	RemoveClient(clientID model.ClientID)
	LastProcessedInputFor(clientID model.ClientID) uint32
}

const moveSpeedPerSec = 5.0

// entity is the arena's internal representation of one networked thing:
// a player-controlled hero, or (in a richer simulation) an NPC/projectile.
// Movement here is a deliberately simple "approach commanded direction at
// a fixed speed" stand-in for the real game-rule simulation, which lies
// outside this package's scope.
type entity struct {
	networkID uint32
	posX, posY float32
	rotation   float32
	hp, mana   int32
	team       uint8
	entityType uint8
	owner      model.ClientID
	hasOwner   bool
}

// ArenaWorld is the concrete TickState implementation. Every method takes
// the mutex, so concurrent callers are serialized; the dedicated server
// drives it from a single event-loop goroutine.
type ArenaWorld struct {
	mu sync.Mutex

	tick        uint64
	serverTime  float64
	gameTime    float64
	wave        uint32
	entities    map[uint32]*entity
	byOwner     map[model.ClientID]uint32
	lastInput   map[model.ClientID]uint32
	pendingMove map[model.ClientID]model.PlayerInput
}

// NewArenaWorld returns an empty world at tick zero.
func NewArenaWorld() *ArenaWorld {
	return &ArenaWorld{
		entities:    make(map[uint32]*entity),
		byOwner:     make(map[model.ClientID]uint32),
		lastInput:   make(map[model.ClientID]uint32),
		pendingMove: make(map[model.ClientID]model.PlayerInput),
	}
}

// AddClient spawns a fresh controlled entity for clientId, owned by it.
func (w *ArenaWorld) AddClient(clientID model.ClientID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e := &entity{
		networkID:  world.IDGenerator().NextPlayerID(),
		hp:         100,
		mana:       100,
		team:       uint8(clientID % 2),
		entityType: 1,
		owner:      clientID,
		hasOwner:   true,
	}
	w.entities[e.networkID] = e
	w.byOwner[clientID] = e.networkID
}

// RemoveClient despawns clientId's controlled entity and forgets its
// input history.
func (w *ArenaWorld) RemoveClient(clientID model.ClientID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if netID, ok := w.byOwner[clientID]; ok {
		delete(w.entities, netID)
		delete(w.byOwner, clientID)
	}
	delete(w.lastInput, clientID)
	delete(w.pendingMove, clientID)
}

// ApplyInput records the latest commanded movement for clientId. A
// no-op if the client has no controlled entity. The actual position
// update happens on the next Advance, keeping simulation per-tick
// rather than per-packet.
func (w *ArenaWorld) ApplyInput(clientID model.ClientID, input model.PlayerInput) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.byOwner[clientID]; !ok {
		return
	}
	w.lastInput[clientID] = input.Sequence
	w.pendingMove[clientID] = input
}

// Advance steps the simulation by exactly dt seconds: integrates pending
// movement for every controlled entity, then stamps the clock.
func (w *ArenaWorld) Advance(dt float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for clientID, input := range w.pendingMove {
		netID, ok := w.byOwner[clientID]
		if !ok {
			continue
		}
		e := w.entities[netID]
		e.posX += input.MoveX * float32(moveSpeedPerSec*dt)
		e.posY += input.MoveY * float32(moveSpeedPerSec*dt)
		if input.MoveX != 0 || input.MoveY != 0 {
			e.rotation = float32(math.Atan2(float64(input.MoveY), float64(input.MoveX)))
		}
	}

	w.tick++
	w.serverTime += dt
	w.gameTime += dt
}

// Snapshot serializes every networked entity as of the last Advance.
// LastProcessedInput is left zero here: it is per-receiving-client and
// stamped by the session manager, which knows which client it is
// building the packet for.
func (w *ArenaWorld) Snapshot() model.WorldSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := model.WorldSnapshot{
		Tick:          w.tick,
		ServerTimeSec: w.serverTime,
		GameTimeSec:   w.gameTime,
		Wave:          w.wave,
	}
	snap.Entities = make([]model.EntitySnapshot, 0, len(w.entities))
	for _, e := range w.entities {
		snap.Entities = append(snap.Entities, model.EntitySnapshot{
			NetworkID:     e.networkID,
			PosX:          e.posX,
			PosY:          e.posY,
			Rotation:      e.rotation,
			HP:            e.hp,
			HasHP:         true,
			Mana:          e.mana,
			HasMana:       true,
			Team:          e.team,
			HasTeam:       true,
			EntityType:    e.entityType,
			HasEntityType: true,
			OwnerClientID: e.owner,
			HasOwner:      e.hasOwner,
		})
	}
	return snap
}

// LastProcessedInputFor returns the sequence number of the last input
// the world accepted for clientId, for stamping per-client snapshots.
func (w *ArenaWorld) LastProcessedInputFor(clientID model.ClientID) uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastInput[clientID]
}

// Accumulator drives Advance at a fixed tick interval regardless of the
// real-time delta between calls to Step.
type Accumulator struct {
	interval    time.Duration
	accumulated time.Duration
	world       TickState
}

// NewAccumulator returns an accumulator that advances world in
// tickInterval-sized steps.
func NewAccumulator(tickInterval time.Duration, world TickState) *Accumulator {
	return &Accumulator{interval: tickInterval, world: world}
}

// Step folds in a real-time delta and advances the world as many times
// as fit in the accumulated time, returning how many ticks ran.
func (a *Accumulator) Step(realDelta time.Duration) int {
	a.accumulated += realDelta
	ticks := 0
	for a.accumulated >= a.interval {
		a.world.Advance(a.interval.Seconds())
		a.accumulated -= a.interval
		ticks++
	}
	return ticks
}
