package service

import (
	"errors"
	"fmt"

	"github.com/gosignals-ai/bet-analyzer/internal/repository"
)

// Code 对外稳定的错误码
type Code string

const (
	CodeInvalidRequest   Code = "invalid_request"
	CodeInvalidSnapshot  Code = "invalid_snapshot"
	CodeIngestFailed     Code = "ingest_failed"
	CodeOddsSourceFailed Code = "odds_source_failed"
	CodeOddsRawNotFound  Code = "odds_raw_not_found"
	CodeMissingColumns   Code = "missing_columns"
	CodeNormalizeFailed  Code = "normalize_failed"
	CodeQueryFailed      Code = "query_failed"
)

// Error 服务层错误：Code 给调用方分支，Err 保留原始原因
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf 取错误码；非服务层错误返回空串
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// MessageOf 取可对外展示的错误信息；非服务层错误不暴露原文
func MessageOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	return "内部错误"
}

// contractError odds_raw 契约校验失败时的错误映射
func contractError(err error) *Error {
	var mc *repository.MissingColumnsError
	switch {
	case errors.Is(err, repository.ErrRawTableMissing):
		return newError(CodeOddsRawNotFound, "odds_raw 表不存在", err)
	case errors.As(err, &mc):
		return newError(CodeMissingColumns, "odds_raw 缺少必需列", err)
	default:
		return newError(CodeNormalizeFailed, "校验 odds_raw 失败", err)
	}
}
