package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/corvusHold/notify/internal/directory/domain"
	idomain "github.com/corvusHold/notify/internal/identity/domain"
)

type PGRepository struct {
	pool *pgxpool.Pool
}

func New(pg *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pg}
}

const memberColumns = `client_id, condominium_id, user_id, display_name, email, role, active, created_at, updated_at`

func scanMember(row pgx.Row) (domain.Member, error) {
	var m domain.Member
	err := row.Scan(&m.Tenant.ClientID, &m.Tenant.CondominiumID, &m.UserID, &m.DisplayName, &m.Email,
		&m.Role, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (r *PGRepository) Create(ctx context.Context, m domain.Member) error {
	const sql = `
		INSERT INTO directory_members (client_id, condominium_id, user_id, display_name, email, role, active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
	`
	_, err := r.pool.Exec(ctx, sql, m.Tenant.ClientID, m.Tenant.CondominiumID, m.UserID, m.DisplayName, m.Email, m.Role)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrMemberExists
		}
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (r *PGRepository) Get(ctx context.Context, tenant idomain.Tenant, userID string) (domain.Member, error) {
	sql := `SELECT ` + memberColumns + ` FROM directory_members
		WHERE client_id = $1 AND condominium_id = $2 AND user_id = $3`
	m, err := scanMember(r.pool.QueryRow(ctx, sql, tenant.ClientID, tenant.CondominiumID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Member{}, domain.ErrMemberNotFound
	}
	if err != nil {
		return domain.Member{}, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (r *PGRepository) Deactivate(ctx context.Context, tenant idomain.Tenant, userID string) error {
	const sql = `
		UPDATE directory_members SET active = FALSE, updated_at = NOW()
		WHERE client_id = $1 AND condominium_id = $2 AND user_id = $3
	`
	tag, err := r.pool.Exec(ctx, sql, tenant.ClientID, tenant.CondominiumID, userID)
	if err != nil {
		return fmt.Errorf("deactivate member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMemberNotFound
	}
	return nil
}

func (r *PGRepository) List(ctx context.Context, tenant idomain.Tenant, query, role string, active int, limit, offset int32) ([]domain.Member, int64, error) {
	const where = `
		WHERE client_id = $1 AND condominium_id = $2
			AND ($3 = '' OR display_name ILIKE '%' || $3 || '%' OR email ILIKE '%' || $3 || '%' OR user_id = $3)
			AND ($4 = '' OR role = $4)
			AND ($5 = -1 OR active = ($5 = 1))
	`
	rows, err := r.pool.Query(ctx, `SELECT `+memberColumns+` FROM directory_members`+where+
		`ORDER BY created_at DESC, user_id LIMIT $6 OFFSET $7`,
		tenant.ClientID, tenant.CondominiumID, query, role, active, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	var items []domain.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan member: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate members: %w", err)
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM directory_members`+where,
		tenant.ClientID, tenant.CondominiumID, query, role, active).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count members: %w", err)
	}
	return items, total, nil
}

func (r *PGRepository) ListIDsByRoles(ctx context.Context, tenant idomain.Tenant, roles []string) ([]string, error) {
	const sql = `
		SELECT user_id FROM directory_members
		WHERE client_id = $1 AND condominium_id = $2 AND active AND role = ANY($3)
		ORDER BY user_id
	`
	rows, err := r.pool.Query(ctx, sql, tenant.ClientID, tenant.CondominiumID, roles)
	if err != nil {
		return nil, fmt.Errorf("query members by role: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect member ids: %w", err)
	}
	return ids, nil
}
