package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/me/wesconsole/pkg/model"
)

// requestID generates a unique request identifier.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

// respondOK writes a success response with the standard envelope.
func respondOK(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusOK, reqID, data, nil)
}

// respondCreated writes a 201 response with the standard envelope.
func respondCreated(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusCreated, reqID, data, nil)
}

// respondError writes an error response with the standard envelope.
func respondError(w http.ResponseWriter, reqID string, status int, apiErr *model.APIError) {
	respondJSON(w, status, reqID, nil, apiErr)
}

// respondErr maps a console error onto its HTTP status.
func respondErr(w http.ResponseWriter, reqID string, err error) {
	respondError(w, reqID, statusFor(err), model.ToAPIError(err))
}

func statusFor(err error) int {
	var (
		valErr *model.ValidationError
		intErr *model.IntegrityError
		subErr *model.SubmissionError
		reqErr *model.RequestError
		netErr *model.NetworkError
		prsErr *model.ParseError
	)
	switch {
	case errors.As(err, &valErr):
		return http.StatusBadRequest
	case errors.As(err, &intErr):
		return http.StatusNotFound
	case errors.As(err, &subErr), errors.As(err, &reqErr), errors.As(err, &netErr):
		return http.StatusBadGateway
	case errors.As(err, &prsErr):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func respondJSON(w http.ResponseWriter, status int, reqID string, data any, apiErr *model.APIError) {
	resp := model.Response{
		RequestID: reqID,
		Timestamp: time.Now().UTC(),
		Data:      data,
		Error:     apiErr,
	}
	if apiErr != nil {
		resp.Status = "error"
	} else {
		resp.Status = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// decodeBody decodes a JSON request body into v, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, reqID string, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return false
	}
	return true
}

// forceParam reads the ?force=true query flag.
func forceParam(r *http.Request) bool {
	return r.URL.Query().Get("force") == "true"
}
