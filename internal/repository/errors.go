package repository

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRawTableMissing odds_raw 表不存在
var ErrRawTableMissing = errors.New("odds_raw table not found")

// MissingColumnsError odds_raw 缺少契约要求的列
type MissingColumnsError struct {
	Table   string
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s missing columns: %s", e.Table, strings.Join(e.Columns, ", "))
}
