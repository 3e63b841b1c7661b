package sim

import "testing"

func TestWithDefaults_MapIsPrivateCopy(t *testing.T) {
	want := DefaultMap()
	a := MatchConfig{Seed: 1}.WithDefaults()
	a.Map.Platforms[0].W = 1
	a.Map.PickupSpots[0][0] = -1

	b := MatchConfig{Seed: 2}.WithDefaults()
	if b.Map.Platforms[0] != want.Platforms[0] || b.Map.PickupSpots[0] != want.PickupSpots[0] {
		t.Fatalf("defaulted map shares storage: platform=%+v spot=%v", b.Map.Platforms[0], b.Map.PickupSpots[0])
	}
}
