package model

import (
	"errors"
	"fmt"
	"testing"

	mysqlerr "github.com/go-sql-driver/mysql"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	dup := &mysqlerr.MySQLError{Number: 1062, Message: "Duplicate entry"}
	if !IsDuplicateKeyErr(dup) {
		t.Fatalf("1062 must be duplicate key")
	}
	if !IsDuplicateKeyErr(fmt.Errorf("insert failed: %w", dup)) {
		t.Fatalf("wrapped 1062 must be duplicate key")
	}
	if IsDuplicateKeyErr(&mysqlerr.MySQLError{Number: 1213}) {
		t.Fatalf("1213 is not duplicate key")
	}
	if IsDuplicateKeyErr(errors.New("some other error")) {
		t.Fatalf("plain error is not duplicate key")
	}
	if IsDuplicateKeyErr(nil) {
		t.Fatalf("nil is not duplicate key")
	}
}
