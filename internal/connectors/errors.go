package connectors

import (
	"errors"
	"fmt"
)

// StatusError: admin-сервис ответил не-2xx.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string // Усеченное тело для логов
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("admin api %s: unexpected status %d", e.Endpoint, e.Code)
}

// DecodeError: тело ответа не является JSON.
type DecodeError struct {
	Endpoint string
	Cause    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("admin api %s: invalid json: %v", e.Endpoint, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// StatusCode достает HTTP-код из цепочки ошибок (0, если это не StatusError).
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
