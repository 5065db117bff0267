package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"net"

	"github.com/rabbitmq/amqp091-go"

	"bdos/pkg/circuitbreaker"
)

// errInvalidPayload marks a stored payload that can never be published.
var errInvalidPayload = errors.New("outbox payload is not valid JSON")

// IsRetryableError determines if a publish error is worth retrying.
// Returns: (isRetryable, errorType)
func IsRetryableError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	if errors.Is(err, errInvalidPayload) {
		return false, "invalid_payload"
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return false, "json_encode_error"
	}
	var typeErr *json.UnsupportedTypeError
	if errors.As(err, &typeErr) {
		return false, "json_encode_error"
	}

	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		return true, "circuit_open"
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true, "connection_closed"
	}
	var amqpErr *amqp091.Error
	if errors.As(err, &amqpErr) {
		return amqpErr.Recover, "amqp_error"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true, "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return false, "context_canceled"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true, "network_timeout"
		}
		return true, "network_error"
	}

	// 发布失败大多是暂时性的，默认重试
	return true, "unknown_error"
}
