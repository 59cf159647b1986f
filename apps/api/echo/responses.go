package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type (
	DataResponse struct {
		Data interface{} `json:"data"`
	}

	SuccessResponse struct {
		Success bool        `json:"success"`
		Message string      `json:"message"`
		Data    interface{} `json:"data,omitempty"`
	}
)

func respondData(ctx echo.Context, data interface{}) error {
	return ctx.JSON(http.StatusOK, DataResponse{Data: data})
}

func respondSuccess(ctx echo.Context, code int, msg string, data interface{}) error {
	return ctx.JSON(code, SuccessResponse{Success: true, Message: msg, Data: data})
}
