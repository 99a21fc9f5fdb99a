package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// UserRoleRepository — чтение назначений ролей напрямую из PostgreSQL
// провайдера. Только чтение: назначения ролей этот сервис не меняет.
type UserRoleRepository struct {
	db    DBTX
	query string
}

// NewUserRoleRepository создаёт репозиторий назначений ролей.
// table — имя таблицы, допускается вид schema.table (например, public.user_roles).
func NewUserRoleRepository(db DBTX, table string) *UserRoleRepository {
	ident := pgx.Identifier(strings.Split(table, ".")).Sanitize()
	return &UserRoleRepository{
		db:    db,
		query: fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE user_id::text = $1 AND role::text = $2)`, ident),
	}
}

// HasRole проверяет наличие строки (userID, role).
// Реализует middleware.RoleStore.
func (r *UserRoleRepository) HasRole(ctx context.Context, userID, role string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, r.query, userID, role).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки роли: %w", err)
	}
	return exists, nil
}
