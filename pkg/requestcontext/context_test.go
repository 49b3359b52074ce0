package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "lexicon/pkg/domain-errors"
)

func TestEditor(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit editor without session", func(t *testing.T) {
		assert.Equal(t, "alice", Editor(ctx, "alice"))
	})

	t.Run("session user wins", func(t *testing.T) {
		assert.Equal(t, "bob", Editor(WithUserID(ctx, "bob"), "alice"))
	})

	t.Run("neither", func(t *testing.T) {
		assert.Empty(t, Editor(ctx, ""))
	})
}

func TestRequireEditor(t *testing.T) {
	ctx := context.Background()

	t.Run("falls back to the session user", func(t *testing.T) {
		editor, err := RequireEditor(WithUserID(ctx, "bob"), "")
		require.NoError(t, err)
		assert.Equal(t, "bob", editor)
	})

	t.Run("rejects a request with no editor", func(t *testing.T) {
		editor, err := RequireEditor(ctx, "")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeLackingUserID))
		assert.Empty(t, editor)
	})
}

func TestNow(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, fixed, Now(WithTime(context.Background(), fixed)))
	assert.WithinDuration(t, time.Now(), Now(context.Background()), time.Second)
}
