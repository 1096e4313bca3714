package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"binmaps/internal/domain"
)

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func valJSON(v []string) any {
	if len(v) == 0 {
		return nil
	}
	b, _ := json.Marshal(v)
	return string(b)
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// SaveCycle writes the cycle header and replaces its places in one transaction.
func (r *Repo) SaveCycle(ctx context.Context, c domain.CycleRecord) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, upsertCycleSQL,
		c.ID,
		c.Origin.Lat,
		c.Origin.Lng,
		c.Reason,
		c.QueriesTotal,
		c.QueriesCompleted,
		c.StartedAt.UTC(),
		c.FinishedAt.UTC(),
	); err != nil {
		return fmt.Errorf("upsert cycle %s: %w", c.ID, err)
	}
	if _, err = tx.ExecContext(ctx, deleteCyclePlacesSQL, c.ID); err != nil {
		return fmt.Errorf("clear places %s: %w", c.ID, err)
	}

	if len(c.Places) > 0 {
		values := make([]string, 0, len(c.Places))
		args := make([]any, 0, len(c.Places)*11) // 11 params per row
		for i, p := range c.Places {
			values = append(values, "(?,?,?,?,?,?,?,?,?,?,?)")
			var lat, lng *float64
			if p.Location != nil {
				lat, lng = &p.Location.Lat, &p.Location.Lng
			}
			args = append(args,
				c.ID,
				i,
				p.ID,
				p.Name,
				valStr(p.Address),
				valJSON(p.Types),
				valF64(lat),
				valF64(lng),
				valF64(p.Rating),
				p.MatchedTerm,
				p.Confidence,
			)
		}
		if _, err = tx.ExecContext(ctx, insertCyclePlacesPrefix+strings.Join(values, ","), args...); err != nil {
			return fmt.Errorf("insert places %s: %w", c.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *Repo) GetCycle(ctx context.Context, id string) (domain.CycleRecord, error) {
	var c domain.CycleRecord
	err := r.db.QueryRowContext(ctx, getCycleSQL, id).Scan(
		&c.ID,
		&c.Origin.Lat, &c.Origin.Lng,
		&c.Reason,
		&c.QueriesTotal,
		&c.QueriesCompleted,
		&c.StartedAt,
		&c.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CycleRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.CycleRecord{}, err
	}

	rows, err := r.db.QueryContext(ctx, listCyclePlacesSQL, id)
	if err != nil {
		return domain.CycleRecord{}, err
	}
	defer rows.Close()

	c.Places = []domain.ScoredPlace{}
	for rows.Next() {
		var (
			p        domain.ScoredPlace
			address  sql.NullString
			typesRaw sql.RawBytes
			lat, lng sql.NullFloat64
			rating   sql.NullFloat64
		)
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&address,
			&typesRaw,
			&lat, &lng,
			&rating,
			&p.MatchedTerm,
			&p.Confidence,
		); err != nil {
			return domain.CycleRecord{}, err
		}
		if address.Valid {
			p.Address = address.String
		}
		if len(typesRaw) > 0 {
			if err := json.Unmarshal(typesRaw, &p.Types); err != nil {
				return domain.CycleRecord{}, fmt.Errorf("decode types for %s: %w", p.Key(), err)
			}
		}
		if lat.Valid && lng.Valid {
			p.Location = &domain.Coords{Lat: lat.Float64, Lng: lng.Float64}
		}
		if rating.Valid {
			f := rating.Float64
			p.Rating = &f
		}
		c.Places = append(c.Places, p)
	}
	if err := rows.Err(); err != nil {
		return domain.CycleRecord{}, err
	}
	return c, nil
}
