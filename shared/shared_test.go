package shared_test

import (
	"consult/shared"
	"consult/shared/constant"
	"consult/shared/dto"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateTotalPage(t *testing.T) {
	tests := []struct {
		name  string
		total int
		limit int
		want  int
	}{
		{name: "zero total", total: 0, limit: 10, want: 1},
		{name: "zero limit", total: 25, limit: 0, want: 1},
		{name: "exact pages", total: 20, limit: 10, want: 2},
		{name: "partial last page", total: 21, limit: 10, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shared.CalculateTotalPage(tt.total, tt.limit))
		})
	}
}

func TestTransformFields(t *testing.T) {
	type updateRequest struct {
		Status string `db:"status"`
		Mode   string `db:"mode"`
		Skip   string
	}

	fields := shared.TransformFields(updateRequest{Status: "cancelled"}, "operator-1")

	assert.Equal(t, "cancelled", fields["status"])
	assert.NotContains(t, fields, "mode")
	assert.Equal(t, "operator-1", fields[constant.FieldModifiedBy])
	assert.Contains(t, fields, constant.FieldModifiedAt)
}

func TestBuildCacheKey(t *testing.T) {
	assert.Equal(t, "booking:get", shared.BuildCacheKey("booking:get"))
	assert.Equal(t, "booking:get:abc", shared.BuildCacheKey("booking:get", "abc"))
	assert.Equal(t, "booking:slots:p1:2024-06-01", shared.BuildCacheKey("booking:slots", "p1", "2024-06-01"))
}

func TestBuildCacheKeyWithQuery_Distinct(t *testing.T) {
	params := dto.QueryParams{Page: 1, Limit: 10}

	filterA := shared.FilterByID("a", "id", "bookings")
	filterB := shared.FilterByID("b", "id", "bookings")

	keyA := shared.BuildCacheKeyWithQuery("booking:gets", params, filterA)
	keyB := shared.BuildCacheKeyWithQuery("booking:gets", params, filterB)

	assert.NotEqual(t, keyA, keyB)
	assert.Equal(t, keyA, shared.BuildCacheKeyWithQuery("booking:gets", params, filterA))
}
