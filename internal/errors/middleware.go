package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var HTTPErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kagent_http_errors_total",
		Help: "Total HTTP errors by error type",
	},
	[]string{"type"},
)

// Middleware renders errors returned by handlers as {"error": message}.
func Middleware(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var se *Error
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) && !errors.As(err, &se) {
				se = WrapHTTPError(httpErr)
			} else {
				se = AsStructuredError(err)
			}

			HTTPErrorsTotal.WithLabelValues(string(se.Type)).Inc()
			logError(logger, c, se)

			if err := c.JSON(se.HTTPStatus(), se.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

func logError(logger *zap.Logger, c echo.Context, err *Error) {
	fields := []zap.Field{
		zap.String("error_type", string(err.Type)),
		zap.String("message", err.Message),
		zap.String("path", c.Request().URL.Path),
		zap.String("method", c.Request().Method),
		zap.Int("status", err.HTTPStatus()),
	}
	for k, v := range err.Context {
		fields = append(fields, zap.Any(k, v))
	}
	if err.Cause != nil {
		fields = append(fields, zap.Error(err.Cause))
	}

	switch err.Type {
	case TypeValidation, TypeNotFound:
		logger.Info("request rejected", fields...)
	case TypeConflict:
		logger.Warn("request conflict", fields...)
	default:
		logger.Error("request failed", fields...)
	}
}

// WrapHTTPError maps echo's own errors (404 route, 405, rate limit) onto the
// same response shape.
func WrapHTTPError(httpErr *echo.HTTPError) *Error {
	message := http.StatusText(httpErr.Code)
	if msg, ok := httpErr.Message.(string); ok && msg != "" {
		message = msg
	}

	var t ErrorType
	switch httpErr.Code {
	case http.StatusBadRequest, http.StatusMethodNotAllowed, http.StatusTooManyRequests, http.StatusUnsupportedMediaType:
		t = TypeValidation
	case http.StatusNotFound:
		t = TypeNotFound
	case http.StatusConflict:
		t = TypeConflict
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		t = TypeExternal
	default:
		t = TypeInternal
	}

	e := newError(t, message, httpErr.Internal)
	e.Status = httpErr.Code
	return e
}
