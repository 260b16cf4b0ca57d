package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rryowa/blogauth/internal/models"
	"github.com/rryowa/blogauth/internal/util"
)

const internalErrorMessage = "internal server error"

// ErrorHandler is the single place errors become responses. Causes of 5xx
// errors are logged and never sent to the client.
func ErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var re util.ResponseError
		if errors.As(err, &re) {
			if re.Status >= http.StatusInternalServerError {
				log.Errorw("request failed", "kind", re.Kind.String(), "error", err, "uri", c.Request().RequestURI)
				writeError(c, log, re.Status, internalErrorMessage, nil)
				return
			}
			writeError(c, log, re.Status, re.Msg, re.Fields)
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg, ok := he.Message.(string)
			if !ok {
				msg = http.StatusText(he.Code)
			}
			if he.Code >= http.StatusInternalServerError {
				log.Errorw("HTTP error", "error", err, "uri", c.Request().RequestURI)
				msg = internalErrorMessage
			}
			writeError(c, log, he.Code, msg, nil)
			return
		}

		log.Errorw("unhandled error", "error", err, "uri", c.Request().RequestURI)
		writeError(c, log, http.StatusInternalServerError, internalErrorMessage, nil)
	}
}

func writeError(c echo.Context, log *zap.SugaredLogger, status int, msg string, fields []util.FieldError) {
	resp := models.ErrorResponse{Status: status, Message: msg}
	for _, f := range fields {
		resp.Fields = append(resp.Fields, models.FieldIssue{Field: f.Field, Message: f.Message})
	}

	if err := c.JSON(status, resp); err != nil {
		log.Errorw("failed to write json response", "error", err)
	}
}
