package response

import (
	"errors"
	"net/http"

	appErr "surge-service/pkg/errors"

	"github.com/gin-gonic/gin"
)

type Body struct {
	Code    int         `json:"code"`
	ErrCode string      `json:"errCode,omitempty"`
	Data    interface{} `json:"data"`
	Msg     string      `json:"msg"`
}

func Success(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, data, "")
}

func Error(c *gin.Context, status int, msg string) {
	JSON(c, status, gin.H{}, msg)
}

// Fail maps err onto an HTTP status and carries its wire code.
func Fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, appErr.ErrSessionNotFound), errors.Is(err, appErr.ErrSettlementNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, appErr.ErrMalformedMessage):
		status, msg = http.StatusBadRequest, err.Error()
	}
	c.JSON(status, Body{
		Code:    status,
		ErrCode: appErr.Code(err),
		Data:    gin.H{},
		Msg:     msg,
	})
}

func JSON(c *gin.Context, status int, data interface{}, msg string) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(status, Body{
		Code: status,
		Data: data,
		Msg:  msg,
	})
}
