package model

import "testing"

func TestEncodeNumbersSorts(t *testing.T) {
	got := EncodeNumbers([]int{88, 3, 70, 17, 56, 42})
	if got != "[3,17,42,56,70,88]" {
		t.Fatalf("EncodeNumbers = %s", got)
	}
	// 入参不被修改
	in := []int{9, 1, 5}
	_ = EncodeNumbers(in)
	if in[0] != 9 || in[1] != 1 || in[2] != 5 {
		t.Fatalf("input mutated: %v", in)
	}
}

func TestNumbersListRoundtrip(t *testing.T) {
	tk := Ticket{Numbers: EncodeNumbers([]int{61, 5, 90, 23, 42, 17})}
	got := tk.NumbersList()
	want := []int{5, 17, 23, 42, 61, 90}
	if len(got) != len(want) {
		t.Fatalf("NumbersList = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("NumbersList = %v, want %v", got, want)
		}
	}
}

func TestNumbersListMalformed(t *testing.T) {
	tk := Ticket{Numbers: "not json"}
	if got := tk.NumbersList(); got != nil {
		t.Fatalf("malformed numbers must return nil, got %v", got)
	}
}
