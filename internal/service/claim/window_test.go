package claim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWindowExpired(t *testing.T) {
	t.Parallel()

	delivered := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	period := 7

	tests := []struct {
		name    string
		now     time.Time
		expired bool
	}{
		{
			name:    "same day",
			now:     delivered.Add(2 * time.Hour),
			expired: false,
		},
		{
			name:    "exactly at the period boundary",
			now:     delivered.AddDate(0, 0, 7),
			expired: false,
		},
		{
			name:    "one day past the boundary",
			now:     delivered.AddDate(0, 0, 8),
			expired: true,
		},
		{
			// 7 days 11 hours rounds down to 7 days
			name:    "under half a day past still accepted",
			now:     delivered.AddDate(0, 0, 7).Add(11 * time.Hour),
			expired: false,
		},
		{
			// 7 days 13 hours rounds up to 8 days
			name:    "over half a day past rejected",
			now:     delivered.AddDate(0, 0, 7).Add(13 * time.Hour),
			expired: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expired, windowExpired(delivered, tt.now, period))
		})
	}
}
