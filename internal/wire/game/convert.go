package game

import "github.com/udisondev/arenamatch/internal/model"

// FromModelSnapshot converts an authoritative WorldSnapshot into its wire
// representation.
func FromModelSnapshot(s model.WorldSnapshot) WorldSnapshotWire {
	w := WorldSnapshotWire{
		Tick:               s.Tick,
		ServerTimeSec:      s.ServerTimeSec,
		GameTimeSec:        s.GameTimeSec,
		Wave:               s.Wave,
		LastProcessedInput: s.LastProcessedInput,
		Entities:           make([]EntitySnapshotWire, len(s.Entities)),
	}
	for i, e := range s.Entities {
		w.Entities[i] = EntitySnapshotWire{
			NetworkID:     e.NetworkID,
			PosX:          e.PosX,
			PosY:          e.PosY,
			Rotation:      e.Rotation,
			HP:            e.HP,
			HasHP:         boolByte(e.HasHP),
			Mana:          e.Mana,
			HasMana:       boolByte(e.HasMana),
			Team:          e.Team,
			HasTeam:       boolByte(e.HasTeam),
			EntityType:    e.EntityType,
			HasEntityType: boolByte(e.HasEntityType),
			OwnerClientID: uint32(e.OwnerClientID),
			HasOwner:      boolByte(e.HasOwner),
		}
	}
	return w
}

// ToModelSnapshot converts a decoded wire snapshot back into the domain
// type (used by tests and by any future replay tooling).
func ToModelSnapshot(w WorldSnapshotWire) model.WorldSnapshot {
	s := model.WorldSnapshot{
		Tick:               w.Tick,
		ServerTimeSec:      w.ServerTimeSec,
		GameTimeSec:        w.GameTimeSec,
		Wave:               w.Wave,
		LastProcessedInput: w.LastProcessedInput,
		Entities:           make([]model.EntitySnapshot, len(w.Entities)),
	}
	for i, e := range w.Entities {
		s.Entities[i] = model.EntitySnapshot{
			NetworkID:     e.NetworkID,
			PosX:          e.PosX,
			PosY:          e.PosY,
			Rotation:      e.Rotation,
			HP:            e.HP,
			HasHP:         e.HasHP != 0,
			Mana:          e.Mana,
			HasMana:       e.HasMana != 0,
			Team:          e.Team,
			HasTeam:       e.HasTeam != 0,
			EntityType:    e.EntityType,
			HasEntityType: e.HasEntityType != 0,
			OwnerClientID: model.ClientID(e.OwnerClientID),
			HasOwner:      e.HasOwner != 0,
		}
	}
	return s
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
