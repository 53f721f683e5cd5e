package transport

import (
	"os"

	"github.com/falconpay/falcon/lib"
	"github.com/falconpay/falcon/lib/responses"
	"github.com/falconpay/falcon/lib/service"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	glog "github.com/labstack/gommon/log"
	"github.com/ziflex/lecho/v3"
)

// InitEcho configures the HTTP server: request logging through lecho,
// request ids, panic recovery, sentry capture and the FALCON error handler.
func InitEcho(c *service.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	logger := lecho.New(
		os.Stdout,
		lecho.WithLevel(glog.INFO),
		lecho.WithTimestamp(),
	)
	e.Logger = logger
	e.Use(middleware.RequestID())
	e.Use(lecho.Middleware(lecho.Config{Logger: logger}))
	e.Use(middleware.Recover())
	if c.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{}))
	}

	e.HTTPErrorHandler = responses.HTTPErrorHandler
	e.Validator = &lib.CustomValidator{Validator: validator.New()}
	return e
}

// BasicAuthMiddleware guards the protocol endpoints with the configured
// credentials, answering the FALCON unauthorised envelope on failure.
func BasicAuthMiddleware(c *service.Config) echo.MiddlewareFunc {
	return middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Validator: func(user, password string, ctx echo.Context) (bool, error) {
			return user == c.AuthUser && password == c.AuthPassword, nil
		},
		Realm: "Restricted Area",
	})
}
