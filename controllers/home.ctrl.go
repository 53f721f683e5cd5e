package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type HomeController struct {
}

func NewHomeController() *HomeController {
	return &HomeController{}
}

// Home confirms that the service is running.
func (controller *HomeController) Home(c echo.Context) error {
	return c.String(http.StatusOK, "FALCON service active")
}

type AuthedResponseBody struct {
	Status string `json:"status"`
}

// Authed confirms that the caller is authorized.
func (controller *HomeController) Authed(c echo.Context) error {
	return c.JSON(http.StatusOK, &AuthedResponseBody{Status: "OK"})
}
