package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)

	person70 := ScanKey{TenantID: "t1", Kind: models.EntityKindPerson, Threshold: 70}
	person90 := ScanKey{TenantID: "t1", Kind: models.EntityKindPerson, Threshold: 90}
	org70 := ScanKey{TenantID: "t1", Kind: models.EntityKindOrganization, Threshold: 70}
	entry := &Entry{Pairs: []models.DuplicatePair{{Score: 99}}, ScannedRecords: 2}

	got, gen, err := c.Get(ctx, person70)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, Generation(0), gen)

	for _, k := range []ScanKey{person70, person90, org70} {
		require.NoError(t, c.Set(ctx, k, gen, entry))
	}

	got, _, err = c.Get(ctx, person70)
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	require.NoError(t, c.Invalidate(ctx, "t1", models.EntityKindPerson))

	got, gen, _ = c.Get(ctx, person70)
	assert.Nil(t, got)
	assert.Equal(t, Generation(1), gen)
	got, _, _ = c.Get(ctx, person90)
	assert.Nil(t, got)
	got, _, _ = c.Get(ctx, org70)
	assert.NotNil(t, got)
}

func TestMemory_SetAfterInvalidateIsDiscarded(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)
	key := ScanKey{TenantID: "t1", Kind: models.EntityKindPerson, Threshold: 70}

	_, stale, err := c.Get(ctx, key)
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(ctx, "t1", models.EntityKindPerson))
	require.NoError(t, c.Set(ctx, key, stale, &Entry{ScannedRecords: 2}))

	got, gen, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, key, gen, &Entry{ScannedRecords: 3}))
	got, _, err = c.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.ScannedRecords)
}

func TestRedisKeys(t *testing.T) {
	key := ScanKey{TenantID: "t1", Kind: models.EntityKindOrganization, Threshold: 70}
	assert.Equal(t, "clover:scan:t1:organization:70", key.String())
	assert.Equal(t, "clover:scan:t1:organization:gen", generationKey("t1", models.EntityKindOrganization))
	assert.Equal(t, "clover:scan:t1:organization:3:70", entryKey(key, 3))
}
