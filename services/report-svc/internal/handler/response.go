// services/report-svc/internal/handler/response.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"farmreport/pkg/apperror"
	"farmreport/pkg/logger"
)

// Response конверт успешного ответа
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// ErrorBody описание ошибки
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ErrorResponse конверт ошибки
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// fail пишет ошибку со статусом из кода приложения
func fail(c *gin.Context, err error) {
	status := apperror.HTTPStatus(err)
	body := ErrorBody{
		Code:    string(apperror.Code(err)),
		Message: apperror.Message(err),
	}
	attrs := []any{"path", c.FullPath(), "code", body.Code, "error", err}
	if appErr, found := apperror.As(err); found {
		body.Field = appErr.Field
		if len(appErr.Details) > 0 {
			attrs = append(attrs, "details", appErr.DetailsCopy())
		}
	}

	log := logger.FromContext(c.Request.Context())
	if apperror.IsCallerError(err) || status < http.StatusInternalServerError {
		log.Warn("request rejected", attrs...)
	} else {
		log.Error("request failed", attrs...)
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Success: false, Error: body})
}
