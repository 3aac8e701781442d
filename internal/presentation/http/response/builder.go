package response

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderservice/pkg/errorbank"
)

// LoggerKey is the echo context key holding the request-scoped *zap.Logger.
const LoggerKey = "logger"

// Envelope is the JSON body of every API response. Exactly one of Data and
// Error is set.
type Envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *ErrorBody     `json:"error,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Builder accumulates a response and writes it as an Envelope.
type Builder struct {
	ctx    echo.Context
	status int
	data   any
	err    error
	meta   map[string]any
}

func New(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx}
}

// WithStatus overrides the status code. Non-positive values are ignored.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// WithMeta sets a meta entry. Empty keys are ignored.
func (b *Builder) WithMeta(key string, value any) *Builder {
	if key == "" {
		return b
	}
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta[key] = value
	return b
}

// Build writes the response. The request id assigned by middleware is echoed
// in meta.request_id.
func (b *Builder) Build() error {
	if rid := b.ctx.Response().Header().Get(echo.HeaderXRequestID); rid != "" {
		b.WithMeta("request_id", rid)
	}

	env := Envelope{Success: b.err == nil, Meta: b.meta}
	status := b.status
	if b.err == nil {
		env.Data = b.data
		if status == 0 {
			status = http.StatusOK
		}
		return b.ctx.JSON(status, env)
	}

	appErr := errorbank.From(b.err)
	if status < http.StatusBadRequest {
		status = appErr.StatusCode()
	}
	if appErr.Kind() == errorbank.KindInternal {
		b.logInternal(appErr)
	}
	env.Error = &ErrorBody{
		Kind:    string(appErr.Kind()),
		Message: appErr.Message(),
		Details: appErr.Details(),
	}
	return b.ctx.JSON(status, env)
}

// logInternal records the cause of a 5xx, which the client never sees.
func (b *Builder) logInternal(err *errorbank.AppError) {
	logger, ok := b.ctx.Get(LoggerKey).(*zap.Logger)
	if !ok {
		return
	}
	logger.Error("request failed", zap.Error(err), zap.String("route", b.ctx.Path()))
}
