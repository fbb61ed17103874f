package model

import (
	"errors"

	mysqlerr "github.com/go-sql-driver/mysql"
)

// isDuplicateKeyErr 判断是否为 MySQL 唯一键冲突错误
// MySQL 错误码 1062: Duplicate entry
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var me *mysqlerr.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return false
}

// IsDuplicateKeyErr 供业务层复用的唯一键冲突判断
func IsDuplicateKeyErr(err error) bool {
	return isDuplicateKeyErr(err)
}
