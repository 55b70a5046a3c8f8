package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"batchtrack/internal/bootstrap/logging"
	"batchtrack/internal/errs"
)

type errorBody struct {
	Kind    errs.Kind `json:"kind"`
	Message string    `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func statusForKind(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindUnauthorized:
		return http.StatusForbidden
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindInvalidState, errs.KindAlreadyClaimed:
		return http.StatusConflict
	case errs.KindCommit:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newErrorBody(err error) errorBody {
	if errs.IsKind(err, errs.KindInternal) {
		return errorBody{Kind: errs.KindInternal, Message: "internal error"}
	}
	return errorBody{Kind: errs.KindOf(err), Message: err.Error()}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := newErrorBody(err)
	status := statusForKind(body.Kind)
	if status >= http.StatusInternalServerError {
		logging.Error(r.Context(), "request failed", slog.Int("status", status), slog.Any("err", errs.Loggable(err)))
	} else {
		logging.Warn(r.Context(), "request rejected", slog.Int("status", status), slog.String("kind", string(body.Kind)), slog.String("reason", err.Error()))
	}
	writeJSON(w, status, errorEnvelope{Error: body})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
