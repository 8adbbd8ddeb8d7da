package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/outfitmatch-backend/internal/data/graph"
	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
)

func TestBuilderRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	_, err := store.UpsertProducts(ctx, []fashion.Product{
		{ID: "t1", Category: fashion.CategoryTop, Price: 1000, Styles: fashion.StyleSet{fashion.StyleKorean}},
		{ID: "b1", Category: fashion.CategoryBottom, Price: 1200, Styles: fashion.StyleSet{fashion.StyleKorean}},
		{ID: "a1", Category: fashion.CategoryAccessory, Price: 9000, Styles: fashion.StyleSet{fashion.StyleKorean}},
	})
	require.NoError(t, err)

	b := NewBuilder(logger.Nop(), store, DefaultConfig(), nil)
	first, err := b.Run(ctx)
	require.NoError(t, err)
	second, err := b.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(2), first.GoesWith)
	assert.Equal(t, int64(1), first.OutfitPairs)
	assert.Equal(t, first.Stats, second.Stats)
	assert.Equal(t, int64(1), second.Stats.Isolated)
	assert.Equal(t, int64(2), second.Stats.Relationships[graph.RelGoesWith])
}

type blockingStore struct {
	graph.RelationshipBuilder
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) BuildGoesWith(context.Context, graph.GoesWithParams) (int64, error) {
	close(s.entered)
	<-s.release
	return 0, errors.New("stop here")
}

func TestBuilderRejectsOverlappingRuns(t *testing.T) {
	store := &blockingStore{RelationshipBuilder: graph.NewMemoryStore(), entered: make(chan struct{}), release: make(chan struct{})}
	b := NewBuilder(logger.Nop(), store, DefaultConfig(), nil)

	done := make(chan error, 1)
	go func() {
		_, err := b.Run(context.Background())
		done <- err
	}()
	<-store.entered
	_, err := b.Run(context.Background())
	assert.ErrorIs(t, err, ErrBuildInProgress)
	close(store.release)
	assert.Error(t, <-done)
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("0 3 * * *"))
	assert.NoError(t, ValidateSchedule("@daily"))
	assert.Error(t, ValidateSchedule(""))
	assert.Error(t, ValidateSchedule("every night"))
}
