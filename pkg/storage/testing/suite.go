package testing

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/dittowopi/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// GatewayTestSuite is a test suite for storage.Gateway implementations.
// It tests the interface contract, not implementation details, making it
// reusable across backends (memory, filesystem, S3).
//
// Usage:
//
//	func TestMyGateway(t *testing.T) {
//	    suite := &storagetesting.GatewayTestSuite{
//	        NewGateway: func() storage.Gateway {
//	            return mygateway.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type GatewayTestSuite struct {
	// NewGateway creates a fresh gateway for each test.
	NewGateway func() storage.Gateway

	// ModTimeResolution is how long to wait between two writes so the backend
	// reports a different modification time. S3 needs about a second.
	ModTimeResolution time.Duration
}

// Run executes all tests in the suite.
func (suite *GatewayTestSuite) Run(t *testing.T) {
	t.Run("PutThenGet", suite.testPutThenGet)
	t.Run("HeadReportsSize", suite.testHeadReportsSize)
	t.Run("OverwriteAdvancesModTime", suite.testOverwrite)
	t.Run("MissingKey", suite.testMissingKey)
	t.Run("EmptyObject", suite.testEmptyObject)
	t.Run("LargeObject", suite.testLargeObject)
	t.Run("ConcurrentPuts", suite.testConcurrentPuts)
	t.Run("InvalidKey", suite.testInvalidKey)
}

func put(t *testing.T, g storage.Gateway, key storage.Key, data []byte) {
	t.Helper()
	require.NoError(t, g.PutContent(context.Background(), key, bytes.NewReader(data), int64(len(data))))
}

func get(t *testing.T, g storage.Gateway, key storage.Key) []byte {
	t.Helper()
	rc, err := g.GetContent(context.Background(), key)
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func (suite *GatewayTestSuite) testPutThenGet(t *testing.T) {
	g := suite.NewGateway()

	put(t, g, "demo.xlsx", []byte("ABC"))
	assert.Equal(t, []byte("ABC"), get(t, g, "demo.xlsx"))

	put(t, g, "reports/q1.xlsx", []byte("nested"))
	assert.Equal(t, []byte("nested"), get(t, g, "reports/q1.xlsx"))
}

func (suite *GatewayTestSuite) testHeadReportsSize(t *testing.T) {
	g := suite.NewGateway()
	put(t, g, "size.xlsx", []byte("12345"))

	info, err := g.Head(context.Background(), "size.xlsx")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.False(t, info.ModifiedAt.IsZero())
}

func (suite *GatewayTestSuite) testOverwrite(t *testing.T) {
	g := suite.NewGateway()
	ctx := context.Background()

	put(t, g, "over.xlsx", []byte("first version"))
	before, err := g.Head(ctx, "over.xlsx")
	require.NoError(t, err)

	time.Sleep(suite.ModTimeResolution)

	put(t, g, "over.xlsx", []byte("v2"))
	after, err := g.Head(ctx, "over.xlsx")
	require.NoError(t, err)

	assert.Equal(t, []byte("v2"), get(t, g, "over.xlsx"))
	assert.Equal(t, int64(2), after.Size)
	assert.NotEqual(t, before.ModifiedAt.UnixMilli(), after.ModifiedAt.UnixMilli())
}

func (suite *GatewayTestSuite) testMissingKey(t *testing.T) {
	g := suite.NewGateway()
	ctx := context.Background()

	_, err := g.Head(ctx, "does/not/exist.xlsx")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = g.GetContent(ctx, "does/not/exist.xlsx")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func (suite *GatewayTestSuite) testEmptyObject(t *testing.T) {
	g := suite.NewGateway()
	put(t, g, "empty.xlsx", nil)

	info, err := g.Head(context.Background(), "empty.xlsx")
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size)
	assert.Empty(t, get(t, g, "empty.xlsx"))
}

func (suite *GatewayTestSuite) testLargeObject(t *testing.T) {
	g := suite.NewGateway()

	data := make([]byte, 3<<20)
	_, err := rand.Read(data)
	require.NoError(t, err)

	put(t, g, "large.bin", data)
	assert.True(t, bytes.Equal(data, get(t, g, "large.bin")))
}

func (suite *GatewayTestSuite) testConcurrentPuts(t *testing.T) {
	g := suite.NewGateway()

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data := []byte(fmt.Sprintf("writer-%d", i))
			key := storage.Key(fmt.Sprintf("concurrent/%d.txt", i))
			errs <- g.PutContent(context.Background(), key, bytes.NewReader(data), int64(len(data)))
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	for i := 0; i < writers; i++ {
		key := storage.Key(fmt.Sprintf("concurrent/%d.txt", i))
		assert.Equal(t, fmt.Sprintf("writer-%d", i), string(get(t, g, key)))
	}
}

func (suite *GatewayTestSuite) testInvalidKey(t *testing.T) {
	g := suite.NewGateway()

	_, err := g.Head(context.Background(), "")
	assert.ErrorIs(t, err, storage.ErrInvalidKey)
}
