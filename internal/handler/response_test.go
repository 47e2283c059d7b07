package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blues/campaignhub/internal/logic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", logic.ValidationError("amount", "金额必须大于0"), http.StatusBadRequest},
		{"forbidden", logic.ForbiddenError("无权操作"), http.StatusForbidden},
		{"not found", logic.NotFoundError("不存在"), http.StatusNotFound},
		{"conflict", logic.ConflictError("已存在"), http.StatusBadRequest},
		{"external", logic.ExternalError("支付网关失败", errors.New("timeout")), http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			HandleError(c, tt.err)

			assert.Equal(t, tt.want, w.Code)
			assert.False(t, decode(t, w).Success)
		})
	}
}

func TestHandleError_ValidationField(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	HandleError(c, logic.ValidationError("amount", "金额必须大于0"))

	resp := decode(t, w)
	assert.Equal(t, "金额必须大于0", resp.Message)
	assert.Equal(t, map[string]interface{}{"amount": []interface{}{"金额必须大于0"}}, resp.Data)
}

func TestParamId(t *testing.T) {
	r := gin.New()
	r.GET("/items/:id", func(c *gin.Context) {
		id, ok := paramId(c, "id", "无效的ID")
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	for path, want := range map[string]int{
		"/items/7":           http.StatusOK,
		"/items/0":           http.StatusBadRequest,
		"/items/-1":          http.StatusBadRequest,
		"/items/abc":         http.StatusBadRequest,
		"/items/99999999999": http.StatusBadRequest,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Code, path)
	}
}

func TestNewPageResult(t *testing.T) {
	res := newPageResult([]int{1, 2}, 0, 6, 13)
	assert.Equal(t, Pagination{Page: 1, PageSize: 6, Total: 13, TotalPage: 3}, res.Pagination)

	empty := newPageResult(nil, 2, 0, 5)
	assert.Equal(t, int64(0), empty.Pagination.TotalPage)
}

func TestMustActor_Unauthenticated(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := mustActor(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
