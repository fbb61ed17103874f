package service

import (
	"sort"
	"testing"

	"golang.org/x/exp/rand"

	"lotto-server/internal/model"
)

func newTestRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func makeTicket(id int64, amount float64, nums []int) model.Ticket {
	return model.Ticket{
		ID:         id,
		TicketCode: "T" + string(rune('A'+id%26)),
		UserID:     id,
		RoundID:    1,
		Numbers:    model.EncodeNumbers(nums),
		Amount:     amount,
	}
}

func assertValidDraw(t *testing.T, draw []int) {
	t.Helper()
	if len(draw) == 0 || len(draw) > DrawSize {
		t.Fatalf("draw size out of range: %v", draw)
	}
	seen := make(map[int]bool)
	for _, n := range draw {
		if n < MinNumber || n > MaxNumber {
			t.Fatalf("number out of range: %d in %v", n, draw)
		}
		if seen[n] {
			t.Fatalf("duplicate number: %d in %v", n, draw)
		}
		seen[n] = true
	}
	if !sort.IntsAreSorted(draw) {
		t.Fatalf("draw not sorted: %v", draw)
	}
}

func TestLoseDrawAvoidsPlayedNumbers(t *testing.T) {
	tickets := []model.Ticket{
		makeTicket(1, 100, []int{1, 2, 3, 4, 5, 6}),
		makeTicket(2, 50, []int{7, 8, 9, 10, 11, 12}),
		makeTicket(3, 20, []int{85, 86, 87, 88, 89, 90}),
	}
	played := make(map[int]bool)
	for i := range tickets {
		for _, n := range tickets[i].NumbersList() {
			played[n] = true
		}
	}

	for seed := uint64(1); seed <= 50; seed++ {
		for counter := 1; counter < TotalLoseRounds; counter++ {
			res := ComputeDraw(tickets, counter, newTestRand(seed))
			if len(res.Draw) != DrawSize {
				t.Fatalf("lose draw must have %d numbers, got %v", DrawSize, res.Draw)
			}
			assertValidDraw(t, res.Draw)
			for _, n := range res.Draw {
				if played[n] {
					t.Fatalf("lose draw contains played number %d: %v", n, res.Draw)
				}
			}
			if res.Winner != nil {
				t.Fatalf("lose draw must not have a winner")
			}
			if res.NextCounter != counter+1 {
				t.Fatalf("next counter: got %d, want %d", res.NextCounter, counter+1)
			}
		}
	}
}

func TestLoseDrawFullRangeFallback(t *testing.T) {
	// 15张票恰好覆盖 1..90，补集为空，退化为全范围抽样
	var tickets []model.Ticket
	for i := 0; i < 15; i++ {
		nums := make([]int, 0, 6)
		for j := 0; j < 6; j++ {
			nums = append(nums, i*6+j+1)
		}
		tickets = append(tickets, makeTicket(int64(i+1), 10, nums))
	}

	res := ComputeDraw(tickets, 1, newTestRand(7))
	if len(res.Draw) != DrawSize {
		t.Fatalf("fallback draw must have %d numbers, got %v", DrawSize, res.Draw)
	}
	assertValidDraw(t, res.Draw)
	if res.Winner != nil {
		t.Fatalf("lose draw must not designate a winner even on fallback")
	}
}

func TestWinDrawForcesWinner(t *testing.T) {
	tickets := []model.Ticket{
		makeTicket(1, 100, []int{5, 17, 23, 42, 61, 90}),
		makeTicket(2, 200, []int{2, 11, 33, 44, 55, 66}),
	}

	for seed := uint64(1); seed <= 100; seed++ {
		res := ComputeDraw(tickets, TotalLoseRounds, newTestRand(seed))
		assertValidDraw(t, res.Draw)
		if res.Winner == nil {
			t.Fatalf("win round must designate a winner")
		}
		if res.Matched < PartialWinMatch {
			t.Fatalf("winner matched %d < %d", res.Matched, PartialWinMatch)
		}

		// 中奖票排序后的前3个号码必须全部出现在开奖号码里
		nums := res.Winner.NumbersList()
		inDraw := make(map[int]bool)
		for _, n := range res.Draw {
			inDraw[n] = true
		}
		for i := 0; i < PartialWinMatch; i++ {
			if !inDraw[nums[i]] {
				t.Fatalf("forced number %d missing from draw %v", nums[i], res.Draw)
			}
		}

		// 派彩 = 票额 x 命中倍数
		mult, ok := payoutMultipliers[res.Matched]
		if !ok {
			t.Fatalf("no payout multiplier for %d matches", res.Matched)
		}
		if want := res.Winner.Amount * float64(mult); res.WinAmount != want {
			t.Fatalf("win amount: got %v, want %v", res.WinAmount, want)
		}
		if res.NextCounter != 1 {
			t.Fatalf("counter must wrap to 1 after win round, got %d", res.NextCounter)
		}
	}
}

func TestWinDrawDedupeCanShrink(t *testing.T) {
	// 强制改写与随机位撞号时开奖号码去重后会少于6个；
	// 多种子下必然出现至少一次收缩
	tickets := []model.Ticket{
		makeTicket(1, 10, []int{1, 2, 3, 4, 5, 6}),
	}
	shrunk := false
	for seed := uint64(1); seed <= 300; seed++ {
		res := ComputeDraw(tickets, TotalLoseRounds, newTestRand(seed))
		assertValidDraw(t, res.Draw)
		if len(res.Draw) < DrawSize {
			shrunk = true
		}
		if len(res.Draw) < PartialWinMatch {
			t.Fatalf("draw can never shrink below %d: %v", PartialWinMatch, res.Draw)
		}
	}
	if !shrunk {
		t.Fatalf("expected at least one dedupe shrink across seeds")
	}
}

func TestWinDrawNoTickets(t *testing.T) {
	res := ComputeDraw(nil, TotalLoseRounds, newTestRand(3))
	if res.Winner != nil {
		t.Fatalf("no tickets, no winner")
	}
	if len(res.Draw) != DrawSize {
		t.Fatalf("draw must still have %d numbers, got %v", DrawSize, res.Draw)
	}
	assertValidDraw(t, res.Draw)
	if res.NextCounter != 1 {
		t.Fatalf("counter must wrap to 1, got %d", res.NextCounter)
	}
}

func TestNextCycleCounter(t *testing.T) {
	cases := []struct{ cur, want int }{
		{1, 2}, {2, 3}, {3, 4}, {4, 5}, {5, 1}, {9, 1},
	}
	for _, c := range cases {
		if got := NextCycleCounter(c.cur); got != c.want {
			t.Fatalf("NextCycleCounter(%d) = %d, want %d", c.cur, got, c.want)
		}
	}
}

func TestCountMatches(t *testing.T) {
	draw := []int{3, 17, 42, 56, 70, 88}
	cases := []struct {
		nums []int
		want int
	}{
		{[]int{3, 17, 42, 56, 70, 88}, 6},
		{[]int{3, 17, 42, 1, 2, 4}, 3},
		{[]int{1, 2, 4, 5, 6, 7}, 0},
		{[]int{88, 1, 2, 4, 5, 6}, 1},
	}
	for _, c := range cases {
		if got := countMatches(c.nums, draw); got != c.want {
			t.Fatalf("countMatches(%v) = %d, want %d", c.nums, got, c.want)
		}
	}
}

func TestComputeDrawDeterministic(t *testing.T) {
	tickets := []model.Ticket{
		makeTicket(1, 100, []int{5, 17, 23, 42, 61, 90}),
		makeTicket(2, 200, []int{2, 11, 33, 44, 55, 66}),
	}
	a := ComputeDraw(tickets, 2, newTestRand(42))
	b := ComputeDraw(tickets, 2, newTestRand(42))
	if len(a.Draw) != len(b.Draw) {
		t.Fatalf("same seed must give same draw: %v vs %v", a.Draw, b.Draw)
	}
	for i := range a.Draw {
		if a.Draw[i] != b.Draw[i] {
			t.Fatalf("same seed must give same draw: %v vs %v", a.Draw, b.Draw)
		}
	}
}
