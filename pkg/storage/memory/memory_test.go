package memory

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/marmos91/dittowopi/pkg/storage"
	storagetesting "github.com/marmos91/dittowopi/pkg/storage/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryGateway runs the complete Gateway test suite
// against the MemoryGateway implementation.
func TestMemoryGateway(t *testing.T) {
	suite := &storagetesting.GatewayTestSuite{
		NewGateway: func() storage.Gateway {
			return NewMemoryGateway()
		},
	}

	suite.Run(t)
}

func TestMemoryGateway_FrozenClockStillAdvancesVersion(t *testing.T) {
	frozen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g := NewMemoryGateway(WithClock(func() time.Time { return frozen }))
	ctx := context.Background()

	require.NoError(t, g.PutContent(ctx, "a.xlsx", bytes.NewReader([]byte("1")), 1))
	first, err := g.Head(ctx, "a.xlsx")
	require.NoError(t, err)

	require.NoError(t, g.PutContent(ctx, "a.xlsx", bytes.NewReader([]byte("2")), 1))
	second, err := g.Head(ctx, "a.xlsx")
	require.NoError(t, err)

	assert.True(t, second.ModifiedAt.After(first.ModifiedAt))
	assert.Equal(t, 1, g.Len())
}

func TestMemoryGateway_SubMillisecondClockStillAdvancesVersion(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g := NewMemoryGateway(WithClock(func() time.Time {
		now = now.Add(300 * time.Microsecond)
		return now
	}))
	ctx := context.Background()

	var millis []int64
	for _, body := range []string{"one", "two!", "three"} {
		require.NoError(t, g.PutContent(ctx, "a.xlsx", bytes.NewReader([]byte(body)), int64(len(body))))
		info, err := g.Head(ctx, "a.xlsx")
		require.NoError(t, err)
		millis = append(millis, info.ModifiedAt.UnixMilli())
	}

	assert.Less(t, millis[0], millis[1])
	assert.Less(t, millis[1], millis[2])
}
