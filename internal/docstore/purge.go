package docstore

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

const purgeConcurrency = 8

// Purge deletes every document of the given collections. Collections that know how to drop
// themselves do so; otherwise documents are streamed and deleted concurrently.
func Purge(ctx context.Context, collections ...CollectionRef) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range collections {
		g.Go(func() error {
			return purgeOne(gctx, c)
		})
	}
	return g.Wait()
}

func purgeOne(ctx context.Context, c CollectionRef) error {
	if p, ok := c.(Purgeable); ok {
		if err := p.Purge(ctx); err != nil {
			return fmt.Errorf("purge %s: %w", c.Path(), err)
		}
		return nil
	}
	return PurgeByDelete(ctx, c)
}

// PurgeByDelete streams ids and deletes documents one by one.
func PurgeByDelete(ctx context.Context, c CollectionRef) error {
	var ids []string
	if err := c.Stream(ctx, func(s Snapshot) error {
		ids = append(ids, s.ID())
		return nil
	}); err != nil {
		return fmt.Errorf("purge %s: list: %w", c.Path(), err)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(purgeConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			if err := c.Document(id).Delete(gctx); err != nil {
				return fmt.Errorf("purge %s/%s: %w", c.Path(), id, err)
			}
			return nil
		})
	}
	return g.Wait()
}
