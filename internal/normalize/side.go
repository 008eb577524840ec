package normalize

import (
	"regexp"
	"strings"

	"github.com/gosignals-ai/bet-analyzer/internal/model"
)

// MarketFamily 盘口族决定方向判定规则与是否需要 point
type MarketFamily int

const (
	FamilyUnknown MarketFamily = iota
	FamilyMoneyline
	FamilySpread
	FamilyTotals
)

func (f MarketFamily) String() string {
	switch f {
	case FamilyMoneyline:
		return "moneyline"
	case FamilySpread:
		return "spread"
	case FamilyTotals:
		return "totals"
	}
	return "unknown"
}

// RequiresPoint 让分与大小分必须带 point；独赢不带
func (f MarketFamily) RequiresPoint() bool {
	return f == FamilySpread || f == FamilyTotals
}

// 基础盘口 + 可选分节后缀（h2h_q1、spreads_h1、totals_1st_5_innings 等）。
// alternate_*、team_totals 同一方向有多条线，落在同一去重键上会互相覆盖，不归入任何族。
var marketKeyPattern = regexp.MustCompile(`^(h2h|h2h_lay|h2h_3_way|spreads|totals)(?:_(?:q[1-4]|h[12]|p[1-3]|1st_[0-9]+_innings))?$`)

// FamilyOf 按盘口 key 判定所属族
func FamilyOf(marketKey string) MarketFamily {
	m := marketKeyPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(marketKey)))
	if m == nil {
		return FamilyUnknown
	}
	switch m[1] {
	case "h2h", "h2h_lay", "h2h_3_way":
		return FamilyMoneyline
	case "spreads":
		return FamilySpread
	case "totals":
		return FamilyTotals
	}
	return FamilyUnknown
}

// ClassifySide 将选项名映射为规范方向；无法判定时 ok=false，调用方丢弃该行，绝不猜测
func ClassifySide(family MarketFamily, outcomeName, homeTeam, awayTeam string) (model.Side, bool) {
	name := strings.ToLower(strings.TrimSpace(outcomeName))
	if name == "" {
		return "", false
	}
	switch family {
	case FamilyMoneyline, FamilySpread:
		if home := strings.ToLower(strings.TrimSpace(homeTeam)); home != "" && name == home {
			return model.SideHome, true
		}
		if away := strings.ToLower(strings.TrimSpace(awayTeam)); away != "" && name == away {
			return model.SideAway, true
		}
		if name == "draw" {
			return model.SideDraw, true
		}
	case FamilyTotals:
		if strings.HasPrefix(name, "over") {
			return model.SideOver, true
		}
		if strings.HasPrefix(name, "under") {
			return model.SideUnder, true
		}
	}
	return "", false
}
