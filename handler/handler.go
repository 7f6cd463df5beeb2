// Package handler adapts API Gateway proxy events to the chat use case.
package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"formula-agent/internal/domain"
	"formula-agent/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	routeStart        = "/chat/start"
	routeTurn         = "/chat/turn"
	codeNotFound      = "NOT_FOUND"
	codeMethod        = "METHOD_NOT_ALLOWED"
)

type ChatUseCase interface {
	Start(ctx context.Context) (usecase.StartOutput, error)
	Turn(ctx context.Context, in usecase.TurnInput) (usecase.TurnOutput, error)
}

type Handler struct {
	uc  ChatUseCase
	log *slog.Logger
}

type turnRequest struct {
	SessionID string          `json:"sessionId"`
	Component string          `json:"component"`
	Value     json.RawMessage `json:"value"`
}

type startResponse struct {
	SessionID string       `json:"sessionId"`
	Reply     domain.Reply `json:"reply"`
}

type turnResponse struct {
	SessionID   string           `json:"sessionId"`
	Reply       domain.Reply     `json:"reply"`
	Form        domain.FormState `json:"form"`
	CheckoutURL string           `json:"checkoutUrl,omitempty"`
	CheckoutOK  bool             `json:"checkoutOk"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewHandler(uc ChatUseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	return &Handler{uc: uc, log: slog.Default()}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := h.log.With("correlation_id", correlationID, "path", req.Path)

	var (
		status int
		body   any
	)
	switch route := routeOf(req.Path); {
	case route == "":
		status, body = http.StatusNotFound, errorResponse{Error: codeNotFound, Message: "Unknown route."}
	case req.HTTPMethod != http.MethodPost:
		status, body = http.StatusMethodNotAllowed, errorResponse{Error: codeMethod, Message: "Use POST."}
	case route == routeStart:
		status, body = h.start(ctx, log)
	default:
		status, body = h.turn(ctx, log, req)
	}
	return respond(status, correlationID, body), nil
}

func (h *Handler) start(ctx context.Context, log *slog.Logger) (int, any) {
	out, err := h.uc.Start(ctx)
	if err != nil {
		return h.failure(log, err)
	}
	log.Info("session started", "session_id", out.SessionID)
	return http.StatusOK, startResponse{SessionID: out.SessionID, Reply: out.Reply}
}

func (h *Handler) turn(ctx context.Context, log *slog.Logger, req events.APIGatewayProxyRequest) (int, any) {
	in, err := decodeTurn(req)
	if err != nil {
		return h.failure(log, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_body", Err: err})
	}
	out, err := h.uc.Turn(ctx, in)
	if err != nil {
		return h.failure(log.With("session_id", in.SessionID), err)
	}
	log.Info("turn handled", "session_id", out.SessionID, "component", out.Reply.Component, "complete", out.Reply.IsComplete)
	return http.StatusOK, turnResponse{
		SessionID:   out.SessionID,
		Reply:       out.Reply,
		Form:        out.Form,
		CheckoutURL: out.CheckoutURL,
		CheckoutOK:  out.CheckoutOK,
	}
}

func (h *Handler) failure(log *slog.Logger, err error) (int, any) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		ucErr = &usecase.Error{Code: usecase.ErrorInternal, Reason: "unexpected", Err: err}
	}
	status := statusFor(ucErr.Code)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "code", ucErr.Code, "reason", ucErr.Reason, "err", err)
	} else {
		log.Warn("request rejected", "code", ucErr.Code, "reason", ucErr.Reason, "err", err)
	}
	return status, errorResponse{Error: string(ucErr.Code), Message: ucErr.UserMessage()}
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput, usecase.ErrorInvalidQuestion:
		return http.StatusBadRequest
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorConflict:
		return http.StatusConflict
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeTurn reads the turn body. value is usually a string; the dosage
// sliders submit an object, which is passed on as its JSON text.
func decodeTurn(req events.APIGatewayProxyRequest) (usecase.TurnInput, error) {
	raw := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return usecase.TurnInput{}, err
		}
		raw = decoded
	}
	var body turnRequest
	if err := json.Unmarshal(raw, &body); err != nil {
		return usecase.TurnInput{}, err
	}

	in := usecase.TurnInput{SessionID: body.SessionID, Component: body.Component}
	value := bytes.TrimSpace(body.Value)
	switch {
	case len(value) == 0 || bytes.Equal(value, []byte("null")):
	case value[0] == '"':
		if err := json.Unmarshal(value, &in.Value); err != nil {
			return usecase.TurnInput{}, err
		}
	default:
		in.Value = string(value)
	}
	return in, nil
}

func routeOf(path string) string {
	path = strings.TrimRight(path, "/")
	switch {
	case strings.HasSuffix(path, routeStart):
		return routeStart
	case strings.HasSuffix(path, routeTurn):
		return routeTurn
	default:
		return ""
	}
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func respond(status int, correlationID string, body any) events.APIGatewayProxyResponse {
	buf, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		buf = []byte(`{"error":"INTERNAL_ERROR","message":"Something went wrong on our side."}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(buf),
	}
}
