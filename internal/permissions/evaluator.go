package permissions

import (
	"database/sql"
	"errors"

	"github.com/acrowley/go-guild/internal/database"
)

// Evaluator resolves a user's effective permission set on a server.
// It is read-only: it never mutates state, and callers must treat a
// negative result as Forbidden rather than a silent no-op.
type Evaluator struct {
	db database.GuildRepository
}

func NewEvaluator(db database.GuildRepository) *Evaluator {
	return &Evaluator{db: db}
}

// HasPermission reports whether userId holds perm on server. The owner
// holds every permission unconditionally. Non-members hold none. A
// member with no explicit role falls back to the server's default role.
func (e *Evaluator) HasPermission(server database.Server, userId int, perm Permission) (bool, error) {
	if server.OwnerId == userId {
		return true, nil
	}

	member, err := e.db.GetMember(server.Id, userId)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var role database.Role
	if member.RoleId.Valid {
		role, err = e.db.GetRoleById(int(member.RoleId.Int64))
	} else {
		role, err = e.db.GetDefaultRole(server.Id)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return Contains(role.Permissions, perm), nil
}
