package consensus

import "testing"

type fakeHistory struct {
	timestamps map[uint64]uint64
}

func (f fakeHistory) DifficultyAt(height uint64) (uint32, bool) { return 0, false }
func (f fakeHistory) TimestampAt(height uint64) (uint64, bool) {
	ts, ok := f.timestamps[height]
	return ts, ok
}

func TestExpectedDifficultyNonBoundaryReturnsUnchanged(t *testing.T) {
	got := ExpectedDifficulty(5, 12, fakeHistory{})
	if got != 12 {
		t.Fatalf("expected unchanged difficulty 12, got %d", got)
	}
}

func TestExpectedDifficultyGenesisAnchorSkipsRecalc(t *testing.T) {
	// tipHeight=19 -> nextHeight=20, a boundary; s = 19-20+1 = 0, so the
	// genesis-anchor rule applies and the tip difficulty is returned as-is.
	got := ExpectedDifficulty(19, 4, fakeHistory{})
	if got != 4 {
		t.Fatalf("expected tip difficulty 4 at genesis anchor, got %d", got)
	}
}

func TestExpectedDifficultyClampUpward(t *testing.T) {
	// tipHeight=39 -> nextHeight=40, boundary; s = 39-20+1 = 20.
	// actual/target ratio far exceeds MAX_CHANGE_FACTOR so factor clamps to 4.0.
	history := fakeHistory{timestamps: map[uint64]uint64{
		20: 0,
		39: 1, // actual=1s, target=600*20=12000s -> factor >> 4.0, clamps to 4.0
	}}
	got := ExpectedDifficulty(39, 10, history)
	want := uint32(40) // round(10 * 4.0) = 40, within [4,60]
	if got != want {
		t.Fatalf("expected clamped-up difficulty %d, got %d", want, got)
	}
}

func TestExpectedDifficultyClampDownwardHitsFloor(t *testing.T) {
	history := fakeHistory{timestamps: map[uint64]uint64{
		20: 0,
		39: 100000, // actual >> target -> factor clamps to 1/4.0
	}}
	got := ExpectedDifficulty(39, 10, history)
	want := uint32(4) // round(10 * 0.25) = 3, floored to MIN_DIFFICULTY=4
	if got != want {
		t.Fatalf("expected floored difficulty %d, got %d", want, got)
	}
}

func TestExpectedDifficultyZeroIntervalTicksUp(t *testing.T) {
	history := fakeHistory{timestamps: map[uint64]uint64{
		20: 500,
		39: 500, // actual == 0
	}}
	got := ExpectedDifficulty(39, 10, history)
	if got != 11 {
		t.Fatalf("expected tip_difficulty+1 = 11 on zero interval, got %d", got)
	}
}

func TestExpectedDifficultyMissingHistoryFallsBackToTip(t *testing.T) {
	got := ExpectedDifficulty(39, 10, fakeHistory{})
	if got != 10 {
		t.Fatalf("expected fallback to tip difficulty 10, got %d", got)
	}
}
