package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGRepository struct{ pg *pgxpool.Pool }

func New(pg *pgxpool.Pool) *PGRepository { return &PGRepository{pg: pg} }

func (r *PGRepository) Get(ctx context.Context, key string, tenantKey *string) (string, bool, error) {
	var v string
	if tenantKey != nil {
		err := r.pg.QueryRow(ctx,
			`SELECT value FROM app_settings WHERE key = $1 AND tenant_key = $2`, key, *tenantKey).Scan(&v)
		if err == nil {
			return v, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", false, err
		}
	}
	err := r.pg.QueryRow(ctx,
		`SELECT value FROM app_settings WHERE key = $1 AND tenant_key IS NULL`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *PGRepository) Upsert(ctx context.Context, key string, tenantKey *string, value string, secret bool) error {
	_, err := r.pg.Exec(ctx, `
		INSERT INTO app_settings (id, tenant_key, key, value, is_secret)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ((COALESCE(tenant_key, '')), key)
		DO UPDATE SET value = EXCLUDED.value, is_secret = EXCLUDED.is_secret, updated_at = NOW()`,
		uuid.New(), tenantKey, key, value, secret)
	return err
}
