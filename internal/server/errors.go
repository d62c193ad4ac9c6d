package server

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/profilecard/internal/middleware"
	"github.com/nfrund/profilecard/internal/view"
)

// setupErrorHandling logs unexpected errors with a stack trace. Browsers get
// the HTML error page through the renderer; everything else gets echo's
// default response.
func setupErrorHandling(e *echo.Echo) {
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		logger := middleware.FromContext(c.Request().Context())

		code, message := http.StatusInternalServerError, ""
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if code >= http.StatusInternalServerError {
				logger.Error("Internal Server Error", "status", he.Code, "error", err)
			} else if he.Message != nil {
				message = fmt.Sprint(he.Message)
			}
		} else {
			logger.Error("Internal Server Error (Unhandled)",
				"error", err.Error(),
				"stack_trace", string(debug.Stack()),
			)
		}

		if e.Renderer != nil && wantsHTML(c.Request()) {
			rerr := c.Render(code, "error", view.ErrorPage(code, message))
			if rerr == nil {
				return
			}
			logger.Error("Failed to render error page", "error", rerr)
		}
		e.DefaultHTTPErrorHandler(err, c)
	}
}

// wantsHTML reports whether the client asked for an HTML document.
func wantsHTML(r *http.Request) bool {
	return r.Method != http.MethodHead &&
		strings.Contains(r.Header.Get(echo.HeaderAccept), echo.MIMETextHTML)
}
