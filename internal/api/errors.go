package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gosignals-ai/bet-analyzer/internal/service"
)

var codeStatus = map[service.Code]int{
	service.CodeInvalidRequest:   http.StatusBadRequest,
	service.CodeInvalidSnapshot:  http.StatusBadRequest,
	service.CodeOddsRawNotFound:  http.StatusNotFound,
	service.CodeMissingColumns:   http.StatusInternalServerError,
	service.CodeOddsSourceFailed: http.StatusBadGateway,
	service.CodeIngestFailed:     http.StatusInternalServerError,
	service.CodeNormalizeFailed:  http.StatusInternalServerError,
	service.CodeQueryFailed:      http.StatusInternalServerError,
}

// writeError 统一错误响应：{"error": code, "message": msg}；debug 模式附带 detail
func writeError(c *gin.Context, logger *logrus.Logger, err error) {
	var se *service.Error
	if !errors.As(err, &se) {
		se = &service.Error{Code: service.CodeQueryFailed, Message: "内部错误", Err: err}
	}
	status, ok := codeStatus[se.Code]
	if !ok {
		status = http.StatusInternalServerError
	}

	entry := logger.WithError(err).WithFields(logrus.Fields{"code": se.Code, "path": c.FullPath()})
	if status >= http.StatusInternalServerError {
		entry.Error("请求处理失败")
	} else {
		entry.Warn("请求参数或数据无效")
	}

	body := gin.H{"error": string(se.Code), "message": se.Message}
	if gin.IsDebugging() && se.Err != nil {
		body["detail"] = se.Err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(message string) error {
	return &service.Error{Code: service.CodeInvalidRequest, Message: message}
}

// queryBool 解析 1/0/true/false
func queryBool(c *gin.Context, key, def string) (bool, error) {
	v, err := strconv.ParseBool(c.DefaultQuery(key, def))
	if err != nil {
		return false, badRequest(key + " 必须是 0/1/true/false")
	}
	return v, nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest(key + " 必须是非负整数")
	}
	return n, nil
}

func queryTime(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, badRequest(key + " 必须是 RFC3339 时间")
	}
	t = t.UTC()
	return &t, nil
}

func queryIDs(c *gin.Context, key string) ([]uint64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]uint64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, badRequest(key + " 必须是逗号分隔的快照 id")
		}
		ids = append(ids, id)
	}
	return ids, nil
}
