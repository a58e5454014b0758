package exchange

import (
	"errors"
	"lighter-grid-bot-go/internal/models"
	"net/http"
	"strings"
)

// KindOf 返回错误链中 *models.Error 的分类，其他错误返回 KindUnknown
func KindOf(err error) models.ErrorKind {
	var apiErr *models.Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return models.KindUnknown
}

// IsSequenceConflict 判断错误是否是序列号 (nonce) 冲突
func IsSequenceConflict(err error) bool {
	return KindOf(err) == models.KindSequenceConflict
}

// classify 根据交易所返回的状态码和消息给错误分类。
// 交易所没有为 nonce 冲突提供独立的错误码，只能匹配消息文本；
// 这是唯一允许做字符串匹配的地方。
func classify(status, code int, msg string) models.ErrorKind {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "nonce"):
		return models.KindSequenceConflict
	case status == http.StatusUnauthorized || status == http.StatusForbidden,
		strings.Contains(lower, "auth"), strings.Contains(lower, "signature"):
		return models.KindAuth
	case status >= http.StatusInternalServerError:
		return models.KindTransport
	case code != 0 || status >= http.StatusBadRequest:
		return models.KindRejected
	default:
		return models.KindUnknown
	}
}

func newError(kind models.ErrorKind, code int, msg string) *models.Error {
	return &models.Error{Kind: kind, Code: code, Msg: msg}
}
