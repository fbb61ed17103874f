package state

import "testing"

func TestNextState(t *testing.T) {
	cases := []struct {
		cur, evt string
		want     string
		wantErr  bool
	}{
		{StateAccepting, EvtExpire, StateClosed, false},
		{StateClosed, EvtSettle, StateFinalized, false},
		{StateAccepting, EvtSettle, StateAccepting, true},
		{StateClosed, EvtExpire, StateClosed, true},
		{StateFinalized, EvtExpire, StateFinalized, true},
		{StateFinalized, EvtSettle, StateFinalized, true},
	}
	for _, c := range cases {
		got, err := NextState(c.cur, c.evt)
		if c.wantErr {
			if err == nil {
				t.Fatalf("NextState(%s, %s): expected error", c.cur, c.evt)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NextState(%s, %s): %v", c.cur, c.evt, err)
		}
		if got != c.want {
			t.Fatalf("NextState(%s, %s) = %s, want %s", c.cur, c.evt, got, c.want)
		}
	}
}

func TestAcceptingWindowOpen(t *testing.T) {
	until := int64(1_700_000_180_000)
	if !AcceptingWindowOpen(until-1, until) {
		t.Fatalf("window must be open before accept_until")
	}
	// accept_until 时刻本身已关闭：该时刻拒绝售票、允许结算
	if AcceptingWindowOpen(until, until) {
		t.Fatalf("window must be closed at accept_until")
	}
	if AcceptingWindowOpen(until+1, until) {
		t.Fatalf("window must be closed after accept_until")
	}
}

func TestFromFlags(t *testing.T) {
	if got := FromFlags(true, false); got != StateAccepting {
		t.Fatalf("FromFlags(true,false) = %s", got)
	}
	if got := FromFlags(false, false); got != StateClosed {
		t.Fatalf("FromFlags(false,false) = %s", got)
	}
	// 已结算优先于售票标志
	if got := FromFlags(true, true); got != StateFinalized {
		t.Fatalf("FromFlags(true,true) = %s", got)
	}
	if got := FromFlags(false, true); got != StateFinalized {
		t.Fatalf("FromFlags(false,true) = %s", got)
	}
}
