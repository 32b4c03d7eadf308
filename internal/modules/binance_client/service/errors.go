package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

const (
	codeTooManyRequests    = -1003
	codeWouldImmediately   = -2021 // "Order would immediately trigger."
	codeInsufficientMargin = -2019
)

// APIError is a parsed exchange business error (non-2xx with a code/msg body).
type APIError struct {
	Code       int64
	Message    string
	HTTPStatus int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange error http=%d code=%d msg=%s", e.HTTPStatus, e.Code, e.Message)
}

// WouldImmediatelyTrigger reports the -2021 rejection for conditional orders.
func (e *APIError) WouldImmediatelyTrigger() bool { return e.Code == codeWouldImmediately }

func parseAPIError(status int, body []byte) *APIError {
	var parsed struct {
		Code int64  `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := sonic.Unmarshal(body, &parsed); err != nil || (parsed.Code == 0 && parsed.Msg == "") {
		return &APIError{HTTPStatus: status, Message: strings.TrimSpace(string(body))}
	}
	return &APIError{HTTPStatus: status, Code: parsed.Code, Message: parsed.Msg}
}

// parseBanUntil extracts the ban expiry from a -1003 message of the shape
// "... banned until 1692345678901. Please use the websocket ...".
func parseBanUntil(msg string) int64 {
	idx := strings.Index(msg, "banned until ")
	if idx < 0 {
		return 0
	}
	rest := msg[idx+len("banned until "):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	ms, err := strconv.ParseInt(rest[:end], 10, 64)
	if err != nil {
		return 0
	}
	return ms
}

// BanActiveError is returned before any network call while a stored
// ban-until timestamp is still in the future.
type BanActiveError struct {
	Until time.Time
}

func (e *BanActiveError) Error() string {
	return fmt.Sprintf("request blocked: banned until %s", e.Until.UTC().Format(time.RFC3339))
}

// SanitizationError means an order payload violated an exchange invariant
// the pre-send gate could not rewrite away. The order is aborted before any
// network call.
type SanitizationError struct {
	Reason string
}

func (e *SanitizationError) Error() string {
	return "order sanitization failed: " + e.Reason
}
