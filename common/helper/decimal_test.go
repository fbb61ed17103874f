package helper

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTrimDecimal(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"100", "100.00"},
		{"0.1", "0.10"},
		{"99.999", "100.00"},
		{"10.254", "10.25"},
		{"10.255", "10.26"},
		{"0", "0.00"},
	}
	for _, c := range cases {
		d, err := decimal.NewFromString(c.in)
		if err != nil {
			t.Fatalf("parse %q: %v", c.in, err)
		}
		if got := TrimDecimal(d); got != c.want {
			t.Fatalf("TrimDecimal(%s) = %s, want %s", c.in, got, c.want)
		}
	}
}
