package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tokmz/wxgate/pkg/errors"
)

// Response 统一响应结构
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	ErrCode int    `json:"errCode,omitempty"`
	ErrMsg  string `json:"errMsg,omitempty"`
}

// OK 输出成功响应
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, &Response{Success: true, Data: data})
}

// Fail 输出失败响应，*errors.Error 映射到其 HttpCode
func Fail(c *gin.Context, err error) {
	var e *errors.Error
	if !errors.As(err, &e) {
		e = errors.ErrServer.WithError(err)
	}
	c.JSON(e.HttpCode, &Response{
		Success: false,
		ErrCode: e.Code,
		ErrMsg:  e.Message,
	})
}
