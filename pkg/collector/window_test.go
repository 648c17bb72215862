package collector

import "testing"

func TestWindowSwapsInvertedBounds(t *testing.T) {
	w := NewWindow(2000, 1000, 0, 0)
	if w.SinceMs != 1000 || w.UntilMs != 2000 {
		t.Errorf("bounds not normalized: since=%d until=%d", w.SinceMs, w.UntilMs)
	}
}

func TestWindowContains(t *testing.T) {
	tests := []struct {
		name    string
		window  Window
		ts      int64
		want    bool
	}{
		{"unbounded accepts any positive", NewWindow(0, 0, 0, 0), 12345, true},
		{"invalid timestamp rejected", NewWindow(0, 0, 0, 0), 0, false},
		{"inside both bounds", NewWindow(1000, 2000, 0, 0), 1500, true},
		{"at lower bound", NewWindow(1000, 2000, 0, 0), 1000, true},
		{"at upper bound", NewWindow(1000, 2000, 0, 0), 2000, true},
		{"before since", NewWindow(1000, 2000, 0, 0), 999, false},
		{"after until", NewWindow(1000, 2000, 0, 0), 2001, false},
		{"only since set", NewWindow(1000, 0, 0, 0), 999999, true},
		{"only until set", NewWindow(0, 2000, 0, 0), 1, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.window.Contains(test.ts); got != test.want {
				t.Errorf("Contains(%d) = %v, want %v", test.ts, got, test.want)
			}
		})
	}
}

func TestWindowLimitReached(t *testing.T) {
	w := NewWindow(0, 0, 5, 0)
	if w.LimitReached(4) {
		t.Error("limit should not be reached at 4")
	}
	if !w.LimitReached(5) {
		t.Error("limit should be reached at 5")
	}

	unlimited := NewWindow(0, 0, 0, 0)
	if unlimited.LimitReached(1 << 20) {
		t.Error("unset limit should never be reached")
	}
}
