// Package normalize 原始赔率快照 → 规范化维度/事实行的纯函数实现（不访问数据库）
package normalize

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPayloadNotObject 载荷不是 JSON 对象
	ErrPayloadNotObject = errors.New("payload is not a JSON object")
	// ErrMissingGameID 参数与载荷中都没有比赛 ID
	ErrMissingGameID = errors.New("game id missing from request and payload")
)

// Canonical 入库前的规范化结果
type Canonical struct {
	GameID string
	Hash   string
}

// Canonicalize 计算载荷内容哈希。参与哈希的只有固定子集：
// sport_key、id、commence_time、home_team、away_team、bookmakers（缺失时为 []），
// 各层 key 排序后紧凑序列化，因此 JSON 字段顺序不影响结果。
func Canonicalize(sportKey, gameID string, payload []byte) (Canonical, error) {
	doc, err := decodeObject(payload)
	if err != nil {
		return Canonical{}, err
	}

	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		if s, ok := doc["id"].(string); ok {
			gameID = strings.TrimSpace(s)
		}
	}
	if gameID == "" {
		return Canonical{}, ErrMissingGameID
	}

	bookmakers, ok := doc["bookmakers"]
	if !ok || bookmakers == nil {
		bookmakers = []interface{}{}
	}
	core := map[string]interface{}{
		"sport_key":     sportKey,
		"id":            gameID,
		"commence_time": doc["commence_time"],
		"home_team":     doc["home_team"],
		"away_team":     doc["away_team"],
		"bookmakers":    bookmakers,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(core); err != nil {
		return Canonical{}, fmt.Errorf("encode canonical payload: %w", err)
	}
	sum := sha256.Sum256(bytes.TrimRight(buf.Bytes(), "\n"))
	return Canonical{GameID: gameID, Hash: hex.EncodeToString(sum[:])}, nil
}

// decodeObject 保留数字原文（UseNumber），避免 float 往返改变哈希
func decodeObject(payload []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadNotObject, err)
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, ErrPayloadNotObject
	}
	return obj, nil
}
