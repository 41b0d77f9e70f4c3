package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-papers/internal/model"
	"github.com/stemsi/exstem-papers/internal/response"
	"github.com/stemsi/exstem-papers/internal/service"
)

var kindStatus = map[service.Kind]int{
	service.KindValidation:      http.StatusBadRequest,
	service.KindUnauthenticated: http.StatusUnauthorized,
	service.KindAuthorization:   http.StatusForbidden,
	service.KindNotFound:        http.StatusNotFound,
	service.KindConflict:        http.StatusConflict,
	service.KindScheduling:      http.StatusUnprocessableEntity,
	service.KindConfiguration:   http.StatusUnprocessableEntity,
	service.KindTimeout:         http.StatusGone,
}

// respondError writes the API error for err. Domain errors carry their own
// code; anything else is logged and reported as INTERNAL_ERROR.
func respondError(c *gin.Context, err error) {
	var derr *service.Error
	if !errors.As(err, &derr) {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("Unhandled service error")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	status, ok := kindStatus[derr.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	var aerr *model.AnswerError
	if errors.As(err, &aerr) {
		response.FailWithFields(c, status, derr.Code, map[string]string{aerr.Field(): aerr.Reason})
		return
	}
	response.Fail(c, status, derr.Code)
}

// paramUUID parses a path parameter, writing INVALID_ID on failure.
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
