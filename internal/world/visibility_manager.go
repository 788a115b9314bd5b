package world

import "github.com/udisondev/arenamatch/internal/model"

// VisibilityManager answers per-client visibility queries against the
// region grid. A match's entity count is small enough that there is no
// need for the batched, worker-pooled cache the grid was originally built
// for — session broadcast just asks, once per tick per client, which
// objects fall in the 3×3 region window around that client's position.
type VisibilityManager struct {
	world *World
}

// NewVisibilityManager returns a manager backed by world.
func NewVisibilityManager(world *World) *VisibilityManager {
	return &VisibilityManager{world: world}
}

// VisibleObjectIDs returns the NetworkIDs of every object visible from
// (x, y): the current region plus its eight neighbors.
func (vm *VisibilityManager) VisibleObjectIDs(x, y int32) []uint32 {
	ids := make([]uint32, 0, 16)
	ForEachVisibleObject(vm.world, x, y, func(obj *model.WorldObject) bool {
		ids = append(ids, obj.ObjectID())
		return true
	})
	return ids
}
