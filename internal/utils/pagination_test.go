package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestGetPaginationParams(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/assets?page=0&limit=500&order=sideways&search=cats", nil)

	params := GetPaginationParams(c)
	assert.Equal(t, 1, params.Page)
	assert.Equal(t, defaultPageSize, params.Limit)
	assert.Equal(t, "desc", params.Order)
	assert.Equal(t, "cats", params.Search)
	assert.Equal(t, "created_at", params.Sort)
}

func TestPaginationWindow(t *testing.T) {
	tests := []struct {
		name       string
		params     PaginationParams
		n          int
		start, end int
	}{
		{"first page", PaginationParams{Page: 1, Limit: 10}, 25, 0, 10},
		{"last partial page", PaginationParams{Page: 3, Limit: 10}, 25, 20, 25},
		{"past the end", PaginationParams{Page: 5, Limit: 10}, 25, 25, 25},
		{"no limit", PaginationParams{Page: 2}, 25, 0, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.params.Window(tt.n)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestCreatePaginationResult(t *testing.T) {
	result := CreatePaginationResult([]int{1, 2}, 21, PaginationParams{Page: 2, Limit: 10})
	assert.Equal(t, 3, result.TotalPages)
	assert.Equal(t, int64(21), result.Total)
}
