package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/analytics"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/certificate"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/course"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/subscription"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/user"
)

var (
	errUnauthorized    = echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	errRefreshExpired  = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden   = echo.NewHTTPError(http.StatusForbidden, "Forbidden")
	errTooManyRequests = echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests. Please try again later.")
	errInvalidForm     = echo.NewHTTPError(http.StatusBadRequest, "Invalid form data")
)

// domainErrStatuses maps the domain errors that are not validation errors to their HTTP status.
var domainErrStatuses = map[error]int{
	user.ErrNotFound:                http.StatusNotFound,
	user.ErrAuthenticationFailed:    http.StatusUnauthorized,
	user.ErrEmailExists:             http.StatusConflict,
	user.ErrResetEmailFailed:        http.StatusInternalServerError,
	user.ErrTempEmailFailed:         http.StatusInternalServerError,
	course.ErrNotFound:              http.StatusNotFound,
	course.ErrNoPDF:                 http.StatusNotFound,
	course.ErrProRequired:           http.StatusForbidden,
	course.ErrUpstreamPDF:           http.StatusBadGateway,
	subscription.ErrNotFound:        http.StatusNotFound,
	certificate.ErrNotFound:         http.StatusNotFound,
	certificate.ErrCourseIncomplete: http.StatusForbidden,
	analytics.ErrVisitNotFound:      http.StatusNotFound,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(
	logger core.Logger,
	translator ut.Translator,
	auth *authenticator,
	signalShutdown func(),
) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
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
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
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
		default:
			if status, ok := domainErrStatuses[cause]; ok {
				code = status
				message = cause.Error()
				if status >= http.StatusInternalServerError {
					logger.Error(cause.Error(), err, requestUser(ctx, auth))
				}
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg
			logger.Error(msg, errors.Wrap(err, msg), requestUser(ctx, auth))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
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

// requestUser identifies the user of a failed request for error reports.
func requestUser(ctx echo.Context, auth *authenticator) user.User {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr
	}
	var usr user.User
	claims, err := getContextClaims(ctx)
	if err != nil {
		var ok bool
		if claims, ok = auth.optionalClaims(ctx); !ok {
			return usr
		}
	}
	usr.ID = claims.Subject
	usr.Email = claims.Email
	usr.Role = claims.Role
	return usr
}
