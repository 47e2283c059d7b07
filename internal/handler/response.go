package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/blues/campaignhub/internal/logger"
	"github.com/blues/campaignhub/internal/logic"
	"github.com/blues/campaignhub/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Response 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Pagination 分页信息
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"pageSize"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"totalPage"`
}

// PageResult 分页列表
type PageResult struct {
	Items      interface{} `json:"items"`
	Pagination Pagination  `json:"pagination"`
}

func newPageResult(items interface{}, page, pageSize int, total int64) PageResult {
	if page < 1 {
		page = 1
	}
	totalPage := int64(0)
	if pageSize > 0 {
		totalPage = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	return PageResult{
		Items: items,
		Pagination: Pagination{
			Page:      page,
			PageSize:  pageSize,
			Total:     total,
			TotalPage: totalPage,
		},
	}
}

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// HandleError 将业务错误映射为 HTTP 状态码
func HandleError(c *gin.Context, err error) {
	var be *logic.BizError
	if !errors.As(err, &be) {
		logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		ErrorResponse(c, http.StatusInternalServerError, "服务器内部错误")
		return
	}

	switch be.Kind {
	case logic.KindValidation:
		var data interface{}
		if be.Field != "" {
			data = gin.H{be.Field: []string{be.Message}}
		}
		c.JSON(http.StatusBadRequest, Response{Success: false, Message: be.Message, Data: data})
	case logic.KindForbidden:
		ErrorResponse(c, http.StatusForbidden, be.Message)
	case logic.KindNotFound:
		ErrorResponse(c, http.StatusNotFound, be.Message)
	case logic.KindConflict:
		ErrorResponse(c, http.StatusBadRequest, be.Message)
	case logic.KindExternal:
		logger.Warn("%s %s external failure: %v", c.Request.Method, c.FullPath(), err)
		ErrorResponse(c, http.StatusBadGateway, be.Message)
	default:
		ErrorResponse(c, http.StatusInternalServerError, be.Message)
	}
}

// paramId 解析路径中的 id
func paramId(c *gin.Context, name, message string) (int64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		ErrorResponse(c, http.StatusBadRequest, message)
		return 0, false
	}
	return int64(id), true
}

func pageQuery(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "0"))
	return page, pageSize
}

// mustActor 认证中间件之后调用
func mustActor(c *gin.Context) (logic.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "缺少认证信息")
	}
	return actor, ok
}
