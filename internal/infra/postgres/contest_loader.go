package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"contest-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ContestLoader loads contest definition JSONB from Postgres. The version
// column is authoritative over whatever the document carries.
type ContestLoader struct {
	pool *pgxpool.Pool
}

func NewContestLoader(pool *pgxpool.Pool) *ContestLoader {
	return &ContestLoader{pool: pool}
}

func (l *ContestLoader) LoadContest(ctx context.Context, contestID string) (domain.ContestDefinition, error) {
	var (
		raw     []byte
		version int
	)
	err := l.pool.QueryRow(ctx, `SELECT data, version FROM contests WHERE id=$1`, contestID).Scan(&raw, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ContestDefinition{}, domain.NotFoundf("contest %s not found", contestID)
		}
		return domain.ContestDefinition{}, fmt.Errorf("load contest: %w", err)
	}
	var contest domain.ContestDefinition
	if err := json.Unmarshal(raw, &contest); err != nil {
		return domain.ContestDefinition{}, fmt.Errorf("unmarshal contest: %w", err)
	}
	contest.ID = contestID
	contest.Version = version
	if err := contest.Validate(); err != nil {
		return domain.ContestDefinition{}, fmt.Errorf("stored contest %s is malformed: %v", contestID, err)
	}
	return contest, nil
}

// SetContestStatus moves the stored status from one value to another. The
// version column is left alone since the queue does not change.
func (l *ContestLoader) SetContestStatus(ctx context.Context, contestID string, from, to domain.ContestStatus) (bool, error) {
	tag, err := l.pool.Exec(ctx,
		`UPDATE contests SET data = jsonb_set(data, '{status}', to_jsonb($3::text)), updated_at = now()
		 WHERE id = $1 AND data->>'status' = $2`,
		contestID, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("update contest status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
