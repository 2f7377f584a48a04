package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadquality/accident-severity-etl/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	record := domain.IntegratedAccident{
		Accident: domain.Accident{
			ID:          "acc-1",
			Severity:    3,
			Severe:      true,
			Geo:         domain.Geo{Lat: 35.0, Lon: -97.0},
			ProcessedAt: now,
		},
		Road: domain.RoadMatch{
			Matched:        true,
			SegmentID:      "seg-7",
			Highway:        "primary",
			DistanceMeters: 42.5,
		},
	}

	msg, err := serializeToMessage(record)
	require.NoError(t, err)

	assert.Equal(t, []byte("acc-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"severity":3`)
	assert.Contains(t, string(msg.Value), `"segment_id":"seg-7"`)

	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "severity", msg.Headers[0].Key)
	assert.Equal(t, []byte("3"), msg.Headers[0].Value)
	assert.Equal(t, "road_matched", msg.Headers[1].Key)
	assert.Equal(t, []byte("true"), msg.Headers[1].Value)
	assert.Equal(t, "processed_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[2].Value)
}
