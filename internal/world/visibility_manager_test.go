package world

import (
	"testing"

	"github.com/udisondev/arenamatch/internal/model"
)

func TestVisibilityManager_VisibleObjectIDs(t *testing.T) {
	w := Instance()
	vm := NewVisibilityManager(w)

	baseX, baseY := int32(50000), int32(50000)
	loc := model.NewLocation(baseX, baseY)
	obj := model.NewWorldObject(70001, "Hero", loc)
	if err := w.AddObject(obj); err != nil {
		t.Fatalf("AddObject() error = %v", err)
	}
	defer w.RemoveObject(70001)

	ids := vm.VisibleObjectIDs(baseX, baseY)
	found := false
	for _, id := range ids {
		if id == 70001 {
			found = true
		}
	}
	if !found {
		t.Errorf("VisibleObjectIDs(%d, %d) = %v, want to contain 70001", baseX, baseY, ids)
	}
}

func TestVisibilityManager_OutOfBoundsReturnsEmpty(t *testing.T) {
	w := Instance()
	vm := NewVisibilityManager(w)

	ids := vm.VisibleObjectIDs(WorldXMax+10000, WorldYMax+10000)
	if len(ids) != 0 {
		t.Errorf("VisibleObjectIDs(out of bounds) = %v, want empty", ids)
	}
}
