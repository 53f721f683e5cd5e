package transport

import (
	"github.com/falconpay/falcon/controllers"
	"github.com/falconpay/falcon/lib/service"
	"github.com/labstack/echo/v4"
)

func RegisterEndpoints(svc *service.FalconService, e *echo.Echo, secured *echo.Group, strictRateLimitMiddleware echo.MiddlewareFunc) {
	orderCtrl := controllers.NewOrderController(svc)

	e.GET("/", controllers.NewHomeController().Home)
	e.GET("/health", controllers.NewHealthController().Check)

	secured.GET("/authed", controllers.NewHomeController().Authed)
	secured.POST("/falcon", orderCtrl.OpenOrder, strictRateLimitMiddleware)
	secured.GET("/falcon/:id", orderCtrl.GetOrder)
}
