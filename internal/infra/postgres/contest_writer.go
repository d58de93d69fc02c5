package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"contest-service/internal/app"
	"contest-service/internal/domain"
	"github.com/uptrace/bun"
)

type contestRow struct {
	bun.BaseModel `bun:"table:contests"`

	ID        string          `bun:"id,pk"`
	Version   int             `bun:"version,notnull"`
	Data      json.RawMessage `bun:"data,type:jsonb,notnull"`
	UpdatedAt time.Time       `bun:"updated_at,notnull"`
}

// ContestWriter upserts contest definitions. A save bumps the version only
// when the playable queue changed, so in-flight participants are re-seated
// only when they have to be.
type ContestWriter struct {
	db  *bun.DB
	now func() time.Time
}

func NewContestWriter(db *bun.DB) *ContestWriter {
	return &ContestWriter{db: db, now: time.Now}
}

func (w *ContestWriter) SaveContest(ctx context.Context, c domain.ContestDefinition) (domain.ContestDefinition, error) {
	var saved domain.ContestDefinition
	err := w.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var current contestRow
		err := tx.NewSelect().
			Model(&current).
			Column("version", "data").
			Where("id = ?", c.ID).
			For("UPDATE").
			Scan(ctx)
		if err != nil && !isNoRows(err) {
			return fmt.Errorf("read contest: %w", err)
		}

		var prev *domain.ContestDefinition
		if err == nil {
			var stored domain.ContestDefinition
			if err := json.Unmarshal(current.Data, &stored); err != nil {
				return fmt.Errorf("unmarshal stored contest: %w", err)
			}
			stored.Version = current.Version
			prev = &stored
		}

		next, err := app.PrepareContestSave(prev, c)
		if err != nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal contest: %w", err)
		}
		row := &contestRow{ID: next.ID, Version: next.Version, Data: data, UpdatedAt: w.now().UTC()}
		_, err = tx.NewInsert().
			Model(row).
			On("CONFLICT (id) DO UPDATE").
			Set("version = EXCLUDED.version").
			Set("data = EXCLUDED.data").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("upsert contest: %w", err)
		}
		saved = next
		return nil
	})
	if err != nil {
		return domain.ContestDefinition{}, err
	}
	return saved, nil
}
