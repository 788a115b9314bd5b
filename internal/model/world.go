package model

// ClientID identifies a connection on a dedicated game server. Assigned
// monotonically and never reused within a server's lifetime.
type ClientID uint32

// PlayerInput is one client's commanded input for a tick. The
// authoritative world treats it as advisory only.
type PlayerInput struct {
	ClientID  ClientID
	Sequence  uint32
	MoveX     float32
	MoveY     float32
	Actions   uint32 // bitmask of requested actions, opaque to the transport layer
}

// EntitySnapshot is the wire-shaped state of one networked entity at a
// given tick.
type EntitySnapshot struct {
	NetworkID     uint32
	PosX, PosY    float32
	Rotation      float32
	HP            int32
	HasHP         bool
	Mana          int32
	HasMana       bool
	Team          uint8
	HasTeam       bool
	EntityType    uint8
	HasEntityType bool
	OwnerClientID ClientID
	HasOwner      bool
}

// WorldSnapshot is the full serialized world state broadcast to clients
// at every tick.
type WorldSnapshot struct {
	Tick               uint64
	ServerTimeSec      float64
	GameTimeSec        float64
	Wave               uint32
	LastProcessedInput uint32
	Entities           []EntitySnapshot
}

// ClientSession is a connected player's state on a dedicated game server.
type ClientSession struct {
	ClientID             ClientID
	AccountID            uint64
	Username             string
	RemoteAddr           string
	SecSinceInput        float64
	LastReceivedInputSeq uint32
	ControlledEntityID   uint32
	TeamSlot             uint8
	HeroName             string
}

// Location is a position in the region grid's integer coordinate space.
// It is deliberately coarser than the float32 simulation coordinates in
// EntitySnapshot — region partitioning only needs to know which 2048-unit
// cell an entity falls into.
type Location struct {
	X, Y int32
}

// NewLocation builds a Location from grid coordinates.
func NewLocation(x, y int32) Location {
	return Location{X: x, Y: y}
}

// WorldObject is a positioned, trackable thing in the region grid — a
// hero's controlled entity, tracked by the NetworkID the arena simulation
// assigned it.
type WorldObject struct {
	NetworkID     uint32
	Name          string
	Loc           Location
	OwnerClientID ClientID
}

// NewWorldObject constructs a tracked object at loc.
func NewWorldObject(networkID uint32, name string, loc Location) *WorldObject {
	return &WorldObject{NetworkID: networkID, Name: name, Loc: loc}
}

// ObjectID returns the object's NetworkID.
func (o *WorldObject) ObjectID() uint32 { return o.NetworkID }

// Location returns the object's current grid position.
func (o *WorldObject) Location() Location { return o.Loc }
