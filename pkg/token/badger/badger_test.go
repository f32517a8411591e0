package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittowopi/pkg/storage"
	"github.com/marmos91/dittowopi/pkg/token"
	tokentesting "github.com/marmos91/dittowopi/pkg/token/testing"
)

func TestBadgerRegistry(t *testing.T) {
	suite := &tokentesting.RegistryTestSuite{
		NewRegistry: func(t *testing.T, opts token.Options) token.Registry {
			reg, err := NewBadgerRegistry(context.Background(), BadgerRegistryConfig{
				InMemory: true,
				Options:  opts,
			})
			require.NoError(t, err)
			return reg
		},
	}
	suite.Run(t)
}

func TestBadgerRegistry_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := BadgerRegistryConfig{DBPath: dir, Options: token.Options{TTL: time.Hour, MaxEntries: 10}}

	reg, err := NewBadgerRegistry(ctx, cfg)
	require.NoError(t, err)
	tok, err := reg.Issue(ctx, "persist/me.xlsx")
	require.NoError(t, err)
	require.NoError(t, reg.Close())

	reg, err = NewBadgerRegistry(ctx, cfg)
	require.NoError(t, err)
	defer reg.Close()

	assert.Equal(t, 1, reg.Len())
	key, err := reg.Resolve(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, storage.Key("persist/me.xlsx"), key)
}

func TestBadgerRegistry_RequiresPath(t *testing.T) {
	_, err := NewBadgerRegistry(context.Background(), BadgerRegistryConfig{})
	assert.Error(t, err)
}

func TestIssueKeyOrdering(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := keyIssue(base, "zzz")
	b := keyIssue(base.Add(time.Nanosecond), "aaa")
	assert.Less(t, string(a), string(b))

	tok, ok := tokenFromIssueKey(b)
	require.True(t, ok)
	assert.Equal(t, token.Token("aaa"), tok)
}
