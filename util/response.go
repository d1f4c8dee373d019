package util

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func WriteJsonResponse(w http.ResponseWriter, status int, message string, data interface{}) {
	response := Response{
		Status:  status,
		Message: message,
		Data:    data,
	}

	jsonData, _ := json.Marshal(response)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(jsonData)
}

func WriteOkResponse(w http.ResponseWriter, data interface{}) {
	WriteJsonResponse(w, http.StatusOK, "ok", data)
}

func WriteJsonErrorResponse(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		message = fmt.Sprintf("%s: %v", message, err)
	}
	WriteJsonResponse(w, status, message, nil)
}

func WriteForbiddenResponse(w http.ResponseWriter, err error) {
	WriteJsonErrorResponse(w, http.StatusForbidden, "forbidden", err)
}

func WriteBadRequestResponse(w http.ResponseWriter, err error) {
	WriteJsonErrorResponse(w, http.StatusBadRequest, "bad request", err)
}

func WriteUnauthorizedResponse(w http.ResponseWriter, err error) {
	WriteJsonErrorResponse(w, http.StatusUnauthorized, "unauthorized", err)
}

func WriteTooLargeResponse(w http.ResponseWriter, err error) {
	WriteJsonErrorResponse(w, http.StatusRequestEntityTooLarge, "request too large", err)
}

func WriteUnprocessableResponse(w http.ResponseWriter, err error) {
	WriteJsonErrorResponse(w, http.StatusUnprocessableEntity, "unprocessable document", err)
}

func WriteTimeoutResponse(w http.ResponseWriter, err error) {
	WriteJsonErrorResponse(w, http.StatusGatewayTimeout, "timed out", err)
}

func WriteServerErrorResponse(w http.ResponseWriter, err error) {
	WriteJsonErrorResponse(w, http.StatusInternalServerError, "internal server error", err)
}
