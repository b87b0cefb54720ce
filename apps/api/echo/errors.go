package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/evalix/core"
	"github.com/trezcool/evalix/core/sheet"
	"github.com/trezcool/evalix/storage/remote"
)

var (
	errHttpNotFound       = echo.NewHTTPError(http.StatusNotFound, "not found")
	errHttpBadGateway     = echo.NewHTTPError(http.StatusBadGateway, "sheet store unavailable")
	errHttpInvalidPeriod  = echo.NewHTTPError(http.StatusBadRequest, sheet.ErrInvalidPeriod.Error())
	errHttpInternalServer = echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator) echo.HTTPErrorHandler {
	logErr := func(ctx echo.Context, msg string, err error) {
		args := []interface{}{errors.Wrap(err, msg)}
		if claims, cErr := getContextClaims(ctx); cErr == nil {
			args = append(args, claims.Person())
		}
		logger.Error(msg, args...)
	}

	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = core.TranslateErrors(origErr, translator)
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *remote.RequestError:
			if origErr.NotFound() {
				code, message = errHttpNotFound.Code, errHttpNotFound.Message
				break
			}
			code, message = errHttpBadGateway.Code, errHttpBadGateway.Message
			logErr(ctx, "sheet store request failed", err)
		default:
			switch origErr {
			case sheet.ErrNotFound:
				code, message = errHttpNotFound.Code, errHttpNotFound.Message
			case sheet.ErrInvalidPeriod:
				code, message = errHttpInvalidPeriod.Code, errHttpInvalidPeriod.Message
			default: // any other error is a server error
				code, message = errHttpInternalServer.Code, errHttpInternalServer.Message
				logErr(ctx, http.StatusText(http.StatusInternalServerError), err)
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
