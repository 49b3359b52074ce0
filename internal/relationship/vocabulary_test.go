package relationship_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexicon/internal/docstore/memory"
	"lexicon/internal/relationship"
	"lexicon/internal/terminology"
	dErrors "lexicon/pkg/domain-errors"
)

type countingLoader struct {
	codes []string
	err   error
	calls atomic.Int32
}

func (l *countingLoader) Load(context.Context) ([]string, error) {
	l.calls.Add(1)
	return l.codes, l.err
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	v, err := relationship.NewVocabulary(relationship.DefaultStatic())
	require.NoError(t, err)

	assert.NoError(t, v.Validate(ctx, ""))
	assert.NoError(t, v.Validate(ctx, "equivalent"))

	err = v.Validate(ctx, "same-as")
	require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidEnumValue))
	de, _ := dErrors.As(err)
	assert.Equal(t, "same-as", de.Detail("value"))
	assert.Contains(t, de.Detail("allowed"), "related-to")
}

func TestLoadOnceWithoutTTL(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{codes: []string{"equivalent"}}
	v, err := relationship.NewVocabulary(loader)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, v.Validate(ctx, "equivalent"))
		}()
	}
	wg.Wait()
	require.NoError(t, v.Load(ctx))

	assert.LessOrEqual(t, loader.calls.Load(), int32(8))
	calls := loader.calls.Load()
	require.NoError(t, v.Validate(ctx, "equivalent"))
	assert.Equal(t, calls, loader.calls.Load(), "a loaded vocabulary is not reloaded")
}

func TestStaleAfterTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	loader := &countingLoader{codes: []string{"equivalent"}}
	v, err := relationship.NewVocabulary(loader,
		relationship.WithTTL(time.Minute),
		relationship.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	require.NoError(t, v.Load(ctx))

	loader.codes = []string{"equivalent", "close-match"}
	assert.Error(t, v.Validate(ctx, "close-match"), "edits are invisible inside the window")

	now = now.Add(2 * time.Minute)
	assert.NoError(t, v.Validate(ctx, "close-match"))
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestRefreshFailureKeepsPreviousCodes(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{codes: []string{"equivalent"}}
	v, err := relationship.NewVocabulary(loader)
	require.NoError(t, err)
	require.NoError(t, v.Load(ctx))

	loader.err = errors.New("store down")
	err = v.Refresh(ctx)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	assert.NoError(t, v.Validate(ctx, "equivalent"))
}

func TestStoreLoaderAndSeed(t *testing.T) {
	ctx := context.Background()
	repo := terminology.NewRepository(memory.New())

	loader := relationship.NewStoreLoader(repo, "ftd-concept-map-relationship")
	_, err := loader.Load(ctx)
	require.Error(t, err, "missing reference terminology")

	created, err := relationship.Seed(ctx, repo, "ftd-concept-map-relationship")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = relationship.Seed(ctx, repo, "ftd-concept-map-relationship")
	require.NoError(t, err)
	assert.False(t, created, "seeding is idempotent")

	codes, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string(relationship.DefaultStatic()), codes)

	t.Run("soft-deleted relationships are not allowed", func(t *testing.T) {
		ref, err := repo.Load(ctx, "ftd-concept-map-relationship")
		require.NoError(t, err)
		ref.Codes[0].SetValid(false)
		require.NoError(t, repo.Save(ctx, ref))

		v, err := relationship.NewVocabulary(loader)
		require.NoError(t, err)
		assert.Error(t, v.Validate(ctx, ref.Codes[0].Code))
	})
}
