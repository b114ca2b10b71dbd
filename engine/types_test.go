package engine_test

import (
	"testing"

	"github.com/warp/incentive-engine/engine"
)

func TestMustDecimal_ParsesStoredValues(t *testing.T) {
	// GIVEN decimal strings as the stores write them
	// WHEN parsed
	// THEN values come back exact
	if got := engine.MustDecimal("21450"); !got.Equal(engine.Dec(21450)) {
		t.Errorf("got %s, want 21450", got)
	}
	if got := engine.MustDecimal("0.02"); !got.Equal(engine.Dec(0.02)) {
		t.Errorf("got %s, want 0.02", got)
	}
	if got := engine.MustDecimal("-450.5"); !got.Equal(engine.Dec(-450.5)) {
		t.Errorf("got %s, want -450.5", got)
	}
}

func TestMustDecimal_PanicsOnCorruptValue(t *testing.T) {
	// GIVEN a string no store could have written
	// WHEN parsed
	// THEN the helper panics instead of coercing to zero
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unparseable decimal")
		}
	}()
	engine.MustDecimal("not a number")
}
