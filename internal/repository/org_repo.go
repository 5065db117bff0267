package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"bdos/internal/model"
)

// OrgRepository manages tenants and their members.
type OrgRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewOrgRepository(db *pgxpool.Pool, logger *zap.Logger) *OrgRepository {
	return &OrgRepository{db: db, logger: logger}
}

// EnsureOrg returns the id of the org with this name, creating it if needed.
func (r *OrgRepository) EnsureOrg(ctx context.Context, name string) (int, error) {
	var id int
	err := r.db.QueryRow(ctx, `
        WITH ins AS (
            INSERT INTO orgs (name) VALUES ($1)
            ON CONFLICT (name) DO NOTHING
            RETURNING id
        )
        SELECT id FROM ins
        UNION ALL
        SELECT id FROM orgs WHERE name = $1
        LIMIT 1
    `, name).Scan(&id)
	if err != nil {
		r.logger.Error("Failed to ensure org", zap.String("name", name), zap.Error(err))
		return 0, fmt.Errorf("ensure org %q: %w", name, err)
	}
	return id, nil
}

// EnsureUser inserts u unless the email is taken. Reports whether a row was created.
func (r *OrgRepository) EnsureUser(ctx context.Context, u *model.User) (bool, error) {
	tag, err := r.db.Exec(ctx, `
        INSERT INTO users (org_id, name, email, password_hash, is_admin)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (email) DO NOTHING
    `, u.OrgID, u.Name, u.Email, u.PasswordHash, u.IsAdmin)
	if err != nil {
		return false, fmt.Errorf("ensure user %q: %w", u.Email, err)
	}
	return tag.RowsAffected() == 1, nil
}
