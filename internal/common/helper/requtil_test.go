package helper

import "testing"

func TestValidateNumbers(t *testing.T) {
	cases := []struct {
		name string
		nums []int
		want []int
		ok   bool
	}{
		{"valid", []int{3, 17, 42, 56, 70, 88}, []int{3, 17, 42, 56, 70, 88}, true},
		{"valid boundary", []int{1, 2, 3, 4, 5, 90}, []int{1, 2, 3, 4, 5, 90}, true},
		// 重复值去重后仍为6个：接受，返回去重结果
		{"dup collapses to six", []int{1, 2, 3, 4, 5, 6, 6}, []int{1, 2, 3, 4, 5, 6}, true},
		{"dup twice collapses to six", []int{7, 7, 8, 8, 9, 10, 11, 12}, []int{7, 8, 9, 10, 11, 12}, true},
		// 去重后不足6个：拒绝
		{"dup shrinks below six", []int{1, 2, 3, 4, 5, 5}, nil, false},
		{"too few", []int{1, 2, 3, 4, 5}, nil, false},
		{"too many distinct", []int{1, 2, 3, 4, 5, 6, 7}, nil, false},
		{"empty", nil, nil, false},
		{"below range", []int{0, 2, 3, 4, 5, 6}, nil, false},
		{"above range", []int{1, 2, 3, 4, 5, 91}, nil, false},
	}
	for _, c := range cases {
		got, ok, _ := ValidateNumbers(c.nums)
		if ok != c.ok {
			t.Fatalf("%s: ValidateNumbers(%v) = %v, want %v", c.name, c.nums, ok, c.ok)
		}
		if !ok {
			continue
		}
		if len(got) != len(c.want) {
			t.Fatalf("%s: ValidateNumbers(%v) returned %v, want %v", c.name, c.nums, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%s: ValidateNumbers(%v) returned %v, want %v", c.name, c.nums, got, c.want)
			}
		}
	}
}

func TestValidatePlay(t *testing.T) {
	valid := PlayParsed{
		Numbers:        []int{3, 17, 42, 56, 70, 88},
		Amount:         "100.00",
		IdempotencyKey: "abc-123",
	}
	if ok, msg := ValidatePlay(&valid); !ok {
		t.Fatalf("valid play rejected: %s", msg)
	}

	noKey := valid
	noKey.IdempotencyKey = ""
	if ok, _ := ValidatePlay(&noKey); ok {
		t.Fatalf("missing idempotency_key accepted")
	}

	badAmount := valid
	badAmount.Amount = "10.999"
	if ok, _ := ValidatePlay(&badAmount); ok {
		t.Fatalf("3-decimal amount accepted")
	}

	negAmount := valid
	negAmount.Amount = "-5"
	if ok, _ := ValidatePlay(&negAmount); ok {
		t.Fatalf("negative amount accepted")
	}

	badNums := valid
	badNums.Numbers = []int{1, 2, 3}
	if ok, _ := ValidatePlay(&badNums); ok {
		t.Fatalf("short numbers accepted")
	}

	// 去重后恰好6个：通过，且入参被归一化为去重结果
	dupNums := valid
	dupNums.Numbers = []int{3, 17, 42, 56, 70, 88, 88}
	if ok, msg := ValidatePlay(&dupNums); !ok {
		t.Fatalf("deduplicable numbers rejected: %s", msg)
	}
	if len(dupNums.Numbers) != 6 {
		t.Fatalf("numbers not normalized: %v", dupNums.Numbers)
	}

	longKey := valid
	longKey.IdempotencyKey = string(make([]byte, 65))
	if ok, _ := ValidatePlay(&longKey); ok {
		t.Fatalf("oversized idempotency_key accepted")
	}
}

func TestIsMoneyFormat(t *testing.T) {
	valid := []string{"1", "0.5", "10.25", "1000000", "0.01"}
	for _, s := range valid {
		if !IsMoneyFormat(s) {
			t.Fatalf("IsMoneyFormat(%q) = false, want true", s)
		}
	}
	invalid := []string{"", "abc", "1.234", "-5", "1,000", "1.", ".5"}
	for _, s := range invalid {
		if IsMoneyFormat(s) {
			t.Fatalf("IsMoneyFormat(%q) = true, want false", s)
		}
	}
}

func TestValidateBankInfo(t *testing.T) {
	valid := BankInfoParsed{AccountNumber: "0123456789", BankName: "GTBank"}
	if ok, msg := ValidateBankInfo(&valid); !ok {
		t.Fatalf("valid bank info rejected: %s", msg)
	}

	short := BankInfoParsed{AccountNumber: "12345", BankName: "GTBank"}
	if ok, _ := ValidateBankInfo(&short); ok {
		t.Fatalf("5-digit account accepted")
	}

	alpha := BankInfoParsed{AccountNumber: "12345abc90", BankName: "GTBank"}
	if ok, _ := ValidateBankInfo(&alpha); ok {
		t.Fatalf("non-numeric account accepted")
	}

	noBank := BankInfoParsed{AccountNumber: "0123456789", BankName: "  "}
	if ok, _ := ValidateBankInfo(&noBank); ok {
		t.Fatalf("blank bank name accepted")
	}
}

func TestValidateWithdraw(t *testing.T) {
	if ok, _ := ValidateWithdraw(&WithdrawParsed{Amount: "500.00"}); !ok {
		t.Fatalf("valid withdraw amount rejected")
	}
	if ok, _ := ValidateWithdraw(&WithdrawParsed{Amount: ""}); ok {
		t.Fatalf("empty amount accepted")
	}
	if ok, _ := ValidateWithdraw(&WithdrawParsed{Amount: "12.345"}); ok {
		t.Fatalf("3-decimal amount accepted")
	}
}
