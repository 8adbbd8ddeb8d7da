package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
	"github.com/yungbote/outfitmatch-backend/internal/platform/neo4jdb"
)

const defaultBatchSize = 500

// Neo4jStore implements Store on a shared pooled driver.
type Neo4jStore struct {
	db        *neo4jdb.Client
	log       *logger.Logger
	batchSize int
	now       func() time.Time
}

func NewNeo4jStore(log *logger.Logger, db *neo4jdb.Client) (*Neo4jStore, error) {
	if db == nil || db.Driver == nil {
		return nil, fmt.Errorf("graph: neo4j client required")
	}
	return &Neo4jStore{
		db:        db,
		log:       log.With("service", "Neo4jGraphStore"),
		batchSize: defaultBatchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.db.Close(ctx)
}

type statement struct {
	cypher string
	params map[string]any
}

// writeAll runs the statements in one managed transaction.
func (s *Neo4jStore) writeAll(ctx context.Context, op string, stmts ...statement) error {
	_, err := s.db.Write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, st := range stmts {
			res, err := tx.Run(ctx, st.cypher, st.params)
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fashion.External("neo4j", op, err)
	}
	return nil
}

// writeCount runs one write statement returning a single integer column "n".
func (s *Neo4jStore) writeCount(ctx context.Context, op, cypher string, params map[string]any) (int64, error) {
	out, err := s.db.Write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		recs, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return int64(0), nil
		}
		return neo4jdb.Int(recs[0], "n"), nil
	})
	if err != nil {
		return 0, fashion.External("neo4j", op, err)
	}
	return out.(int64), nil
}

func (s *Neo4jStore) readCount(ctx context.Context, op, cypher string, params map[string]any) (int64, error) {
	out, err := s.db.Read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		recs, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return int64(0), nil
		}
		return neo4jdb.Int(recs[0], "n"), nil
	})
	if err != nil {
		return 0, fashion.External("neo4j", op, err)
	}
	return out.(int64), nil
}

func (s *Neo4jStore) readRecords(ctx context.Context, op, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	out, err := s.db.Read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fashion.External("neo4j", op, err)
	}
	return out.([]*neo4j.Record), nil
}

func (s *Neo4jStore) stamp() string {
	return s.now().Format(time.RFC3339Nano)
}

func batches[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = defaultBatchSize
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
