package app

import (
	"slices"
	"testing"

	"github.com/dkeye/talkroom/internal/domain"
)

func TestSpeakingTracker(t *testing.T) {
	st := NewSpeakingTracker()

	if !st.Set("r1", "u1", true) {
		t.Fatal("first start should change state")
	}
	if st.Set("r1", "u1", true) {
		t.Fatal("repeated start should not change state")
	}
	st.Set("r1", "u2", true)
	st.Set("r2", "u1", true)

	if got := st.Speaking("r1"); !slices.Equal(got, []domain.UserID{"u1", "u2"}) {
		t.Fatalf("speaking r1 = %v", got)
	}
	if !st.IsSpeaking("r2", "u1") || st.IsSpeaking("r2", "u2") {
		t.Fatal("IsSpeaking mismatch")
	}

	if !st.Set("r1", "u2", false) || st.Set("r1", "u2", false) {
		t.Fatal("stop should change state exactly once")
	}

	cleared := st.ClearUser("u1")
	if !slices.Equal(cleared, []domain.RoomID{"r1", "r2"}) {
		t.Fatalf("cleared = %v", cleared)
	}
	if got := st.Speaking("r1"); len(got) != 0 {
		t.Fatalf("speaking r1 after clear = %v", got)
	}
	if got := st.ClearUser("u1"); len(got) != 0 {
		t.Fatalf("second clear = %v", got)
	}
}
