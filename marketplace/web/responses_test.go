package web

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPaginationInfo(t *testing.T) {
	tests := []struct {
		name      string
		page      int
		limit     int
		total     int64
		wantPages int
		wantNext  bool
		wantPrev  bool
	}{
		{"first of many", 1, 20, 45, 3, true, false},
		{"middle page", 2, 20, 45, 3, true, true},
		{"last page", 3, 20, 45, 3, false, true},
		{"exact multiple", 2, 20, 40, 2, false, true},
		{"empty result", 1, 20, 0, 0, false, false},
		{"single short page", 1, 20, 7, 1, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := NewPaginationInfo(tt.page, tt.limit, tt.total)
			assert.Equal(t, tt.wantPages, info.TotalPages)
			assert.Equal(t, tt.wantNext, info.HasNext)
			assert.Equal(t, tt.wantPrev, info.HasPrev)
			assert.Equal(t, tt.total, info.Total)
		})
	}
}

func TestHealthCheckDegrades(t *testing.T) {
	hc := NewHealthCheck("test")
	assert.Equal(t, "healthy", hc.Status)

	hc.AddComponent("database", "up", "")
	assert.Equal(t, "healthy", hc.Status)

	hc.AddComponent("amqp", "down", "dial tcp: connection refused")
	assert.Equal(t, "degraded", hc.Status)

	// A later healthy component does not undo the degradation.
	hc.AddComponent("cache", "up", "")
	assert.Equal(t, "degraded", hc.Status)
}
