package handler

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/smuppy/backend/internal/domain"
	"go.uber.org/zap"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Success bool             `json:"success"`
	Code    domain.ErrorKind `json:"code"`
	Message string           `json:"message"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			zap.L().Warn("failed to encode JSON response", zap.Error(err))
		}
	}
}

// Error writes an error JSON response, using AppError status codes when available.
// Internal details are logged, never sent.
func Error(w http.ResponseWriter, err error) {
	appErr, ok := domain.AsAppError(err)
	if !ok {
		zap.L().Error("unhandled error", zap.Error(err))
		appErr = domain.ErrInternal("internal server error", err)
	}

	if appErr.Code >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("code", string(appErr.Kind)),
			zap.Error(appErr),
		)
	}
	if appErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(appErr.RetryAfter.Seconds()))))
	}

	msg := appErr.Message
	if appErr.Kind == domain.KindInternal {
		msg = "internal server error"
	}
	JSON(w, appErr.Code, errorResponse{Success: false, Code: appErr.Kind, Message: msg})
}

// DecodeJSON decodes a JSON request body into the given struct.
func DecodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrBadRequest("invalid JSON body")
	}
	return nil
}
