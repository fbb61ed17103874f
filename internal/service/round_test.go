package service

import (
	"testing"

	"lotto-server/internal/state"
)

func TestFillRemaining(t *testing.T) {
	now := int64(1_700_000_000_000)

	st := &RoundStatus{State: state.StateAccepting, AcceptUntil: now + 90_500}
	st.fillRemaining(now)
	if st.SecondsRemaining != 90 {
		t.Fatalf("seconds_remaining = %d, want 90", st.SecondsRemaining)
	}

	// accept_until 时刻剩余为0
	st = &RoundStatus{State: state.StateAccepting, AcceptUntil: now}
	st.fillRemaining(now)
	if st.SecondsRemaining != 0 {
		t.Fatalf("seconds_remaining at accept_until = %d, want 0", st.SecondsRemaining)
	}

	// 过期快照不得出现负数
	st = &RoundStatus{State: state.StateAccepting, AcceptUntil: now - 5_000}
	st.fillRemaining(now)
	if st.SecondsRemaining != 0 {
		t.Fatalf("seconds_remaining past accept_until = %d, want 0", st.SecondsRemaining)
	}

	// 休息期无剩余秒数
	st = &RoundStatus{State: "break", NextRoundETA: now + 30_000}
	st.fillRemaining(now)
	if st.SecondsRemaining != 0 {
		t.Fatalf("seconds_remaining in break = %d, want 0", st.SecondsRemaining)
	}

	// 缓存快照携带的旧值必须被实时重算覆盖
	st = &RoundStatus{State: state.StateAccepting, AcceptUntil: now + 5_000, SecondsRemaining: 999}
	st.fillRemaining(now)
	if st.SecondsRemaining != 5 {
		t.Fatalf("cached seconds_remaining not recomputed: %d, want 5", st.SecondsRemaining)
	}
}
