package normalize

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// rawObject 逐层解码：单个书商/盘口/选项格式错误只影响自身
type rawObject map[string]json.RawMessage

func parseObject(raw json.RawMessage) (rawObject, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var obj rawObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// array 返回字段对应的数组；字段缺失、为 null 或不是数组时 ok=false
func (o rawObject) array(key string) ([]json.RawMessage, bool) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

// str 返回去空白后的字符串字段；非字符串视为缺失
func (o rawObject) str(key string) string {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// timestamp present=false 表示字段缺失/为空，可回退到上一层；
// present=true 且 ok=false 表示字段存在但无法解析
func (o rawObject) timestamp(key string) (t time.Time, present, ok bool) {
	raw, exists := o[key]
	if !exists || isNull(raw) {
		return time.Time{}, false, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, true, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}
	t, err := parseTime(s)
	if err != nil {
		return time.Time{}, true, false
	}
	return t, true, true
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return canonicalTime(t), nil
}

// canonicalTime 统一为 UTC 微秒精度，与 PostgreSQL timestamptz 一致，保证去重键稳定
func canonicalTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// ParsePrice 解析美式赔率：整数、整值浮点或带符号字符串（"+150"）；0 与非整数无效
func ParsePrice(raw json.RawMessage) (int, bool) {
	if isNull(raw) {
		return 0, false
	}
	s := string(bytes.TrimSpace(raw))
	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal(raw, &unquoted); err != nil {
			return 0, false
		}
		// strconv 自身接受一个前导 +，重复符号（"++150"）解析失败
		s = strings.TrimSpace(unquoted)
	}
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		if n == 0 {
			return 0, false
		}
		return int(n), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f == 0 || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

// ParsePoint 解析盘口线（让分/大小分）。present=false 表示缺失
func ParsePoint(raw json.RawMessage) (p decimal.Decimal, present, ok bool) {
	if isNull(raw) {
		return decimal.Decimal{}, false, false
	}
	s := string(bytes.TrimSpace(raw))
	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal(raw, &unquoted); err != nil {
			return decimal.Decimal{}, true, false
		}
		s = strings.TrimSpace(unquoted)
		if s == "" {
			return decimal.Decimal{}, false, false
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, true, false
	}
	return d, true, true
}
