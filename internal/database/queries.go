package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const (
	createMemberQuery = "INSERT INTO members (user_id, server_id, role_id, created_at) " +
		"VALUES ($1, $2, $3, $4) RETURNING id, user_id, server_id, role_id, created_at"
	createRoleQuery = "INSERT INTO roles (server_id, name, permissions, is_default, created_at, updated_at) " +
		"VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, server_id, name, permissions, is_default"
	createChannelQuery = "INSERT INTO channels (external_id, server_id, name, kind, created_at, updated_at) " +
		"VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, external_id, server_id, name, kind, created_at"
)

func (db *PgGuildRepository) CreateUser(params CreateUserParams) (User, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	res := db.conn.QueryRowContext(ctx,
		"INSERT INTO users (username, status, created_at, updated_at) "+
			"VALUES ($1, 'OFFLINE', $2, $2) RETURNING id, username, status",
		params.Username,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(&u.Id, &u.Username, &u.Status)

	return u, err
}

func (db *PgGuildRepository) GetUserById(id int) (User, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		"SELECT id, username, status FROM users WHERE id = $1 LIMIT 1",
		id,
	)

	var u User
	err := row.Scan(&u.Id, &u.Username, &u.Status)

	return u, err
}

func (db *PgGuildRepository) UpdateUserStatus(id int, status string) error {
	ctx, cancel := db.queryCtx()
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		"UPDATE users SET status = $2, updated_at = $3 WHERE id = $1",
		id,
		status,
		time.Now().UTC(),
	)

	return err
}

// CreateServer creates the server, its default channel, its Admin and
// default roles and the owner's member row in one transaction. A
// failure at any step rolls back the whole server.
func (db *PgGuildRepository) CreateServer(params CreateServerParams) (Server, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return Server{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	res := tx.QueryRowContext(ctx,
		"INSERT INTO servers (external_id, name, owner_id, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, external_id, name, owner_id, created_at, updated_at",
		params.ExternalId,
		params.Name,
		params.OwnerId,
		now,
		now,
	)

	var server Server
	err = res.Scan(
		&server.Id,
		&server.ExternalId,
		&server.Name,
		&server.OwnerId,
		&server.CreatedAt,
		&server.UpdatedAt,
	)
	if err != nil {
		return Server{}, err
	}

	_, err = tx.ExecContext(ctx, createChannelQuery,
		params.ChannelExternalId,
		server.Id,
		params.ChannelName,
		"TEXT",
		now,
		now,
	)
	if err != nil {
		return Server{}, err
	}

	var adminRoleId int
	err = tx.QueryRowContext(ctx,
		"INSERT INTO roles (server_id, name, permissions, is_default, created_at, updated_at) "+
			"VALUES ($1, $2, $3, false, $4, $5) RETURNING id",
		server.Id,
		params.AdminRoleName,
		pq.StringArray(params.AdminPermissions),
		now,
		now,
	).Scan(&adminRoleId)
	if err != nil {
		return Server{}, err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO roles (server_id, name, permissions, is_default, created_at, updated_at) "+
			"VALUES ($1, $2, '{}', true, $3, $4)",
		server.Id,
		params.DefaultRoleName,
		now,
		now,
	)
	if err != nil {
		return Server{}, err
	}

	_, err = tx.ExecContext(ctx, createMemberQuery,
		params.OwnerId,
		server.Id,
		adminRoleId,
		now,
	)
	if err != nil {
		return Server{}, err
	}

	if err = tx.Commit(); err != nil {
		return Server{}, err
	}

	return server, nil
}

func (db *PgGuildRepository) GetServerById(id int) (Server, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		"SELECT id, external_id, name, owner_id, created_at, updated_at FROM servers "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var s Server
	err := row.Scan(&s.Id, &s.ExternalId, &s.Name, &s.OwnerId, &s.CreatedAt, &s.UpdatedAt)

	return s, err
}

func (db *PgGuildRepository) GetServerByExternalId(externalId string) (Server, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		"SELECT id, external_id, name, owner_id, created_at, updated_at FROM servers "+
			"WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var s Server
	err := row.Scan(&s.Id, &s.ExternalId, &s.Name, &s.OwnerId, &s.CreatedAt, &s.UpdatedAt)

	return s, err
}

func (db *PgGuildRepository) GetServerWithMembers(id int) (*Server, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	query := `
		SELECT
				s.id AS server_id,
				s.external_id,
				s.name AS server_name,
				s.owner_id,
				s.created_at AS server_created_at,
				s.updated_at AS server_updated_at,
				m.id,
				m.user_id,
				m.role_id,
				m.created_at AS member_created_at,
				u.username,
				u.status
		FROM servers s
		LEFT JOIN members m ON s.id = m.server_id
		LEFT JOIN users u ON m.user_id = u.id
		WHERE s.id = $1;
`

	rows, err := db.conn.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch server with members: %w", err)
	}
	defer rows.Close()

	var server *Server
	for rows.Next() {
		var (
			serverId        int
			externalId      string
			serverName      string
			ownerId         int
			serverCreatedAt time.Time
			serverUpdatedAt time.Time
			memberId        sql.NullInt64
			userId          sql.NullInt64
			roleId          sql.NullInt64
			memberCreatedAt sql.NullTime
			username        sql.NullString
			status          sql.NullString
		)

		err := rows.Scan(
			&serverId,
			&externalId,
			&serverName,
			&ownerId,
			&serverCreatedAt,
			&serverUpdatedAt,
			&memberId,
			&userId,
			&roleId,
			&memberCreatedAt,
			&username,
			&status,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		if server == nil {
			server = &Server{
				Id:         serverId,
				ExternalId: externalId,
				Name:       serverName,
				OwnerId:    ownerId,
				CreatedAt:  serverCreatedAt,
				UpdatedAt:  serverUpdatedAt,
				Members:    make([]Member, 0),
			}
		}

		if memberId.Valid && userId.Valid {
			server.Members = append(server.Members, Member{
				Id:        int(memberId.Int64),
				UserId:    int(userId.Int64),
				ServerId:  serverId,
				RoleId:    roleId,
				Username:  username.String,
				Status:    status.String,
				CreatedAt: memberCreatedAt.Time,
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if server == nil {
		return nil, sql.ErrNoRows
	}

	return server, nil
}

func (db *PgGuildRepository) ListServersForUser(userId int) ([]Server, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		"SELECT s.id, s.external_id, s.name, s.owner_id, s.created_at, s.updated_at "+
			"FROM members m JOIN servers s ON s.id = m.server_id WHERE m.user_id = $1",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var servers []Server
	for rows.Next() {
		var s Server
		if err = rows.Scan(&s.Id, &s.ExternalId, &s.Name, &s.OwnerId, &s.CreatedAt, &s.UpdatedAt); err != nil {
			break
		}

		servers = append(servers, s)
	}
	return servers, err
}

func (db *PgGuildRepository) UpdateServerName(id int, name string) (Server, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	res := db.conn.QueryRowContext(ctx,
		"UPDATE servers SET name = $2, updated_at = $3 WHERE id = $1 "+
			"RETURNING id, external_id, name, owner_id, created_at, updated_at",
		id,
		name,
		time.Now().UTC(),
	)

	var s Server
	err := res.Scan(&s.Id, &s.ExternalId, &s.Name, &s.OwnerId, &s.CreatedAt, &s.UpdatedAt)

	return s, err
}

// DeleteServer removes the server and everything owned by it. The
// deletes run inside one transaction so a partial cascade never
// survives a failure.
func (db *PgGuildRepository) DeleteServer(id int) error {
	ctx, cancel := db.queryCtx()
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, "DELETE FROM server_invites WHERE server_id = $1", id)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"DELETE FROM messages WHERE channel_id IN (SELECT id FROM channels WHERE server_id = $1)", id)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM channels WHERE server_id = $1", id)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM members WHERE server_id = $1", id)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM roles WHERE server_id = $1", id)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM servers WHERE id = $1", id)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (db *PgGuildRepository) CreateMember(userId, serverId int, roleId *int) (Member, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	var role sql.NullInt64
	if roleId != nil {
		role = sql.NullInt64{Int64: int64(*roleId), Valid: true}
	}

	res := db.conn.QueryRowContext(ctx, createMemberQuery,
		userId,
		serverId,
		role,
		time.Now().UTC(),
	)

	var m Member
	err := res.Scan(&m.Id, &m.UserId, &m.ServerId, &m.RoleId, &m.CreatedAt)

	return m, err
}

func (db *PgGuildRepository) GetMember(serverId, userId int) (Member, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		"SELECT m.id, m.user_id, m.server_id, m.role_id, m.created_at, u.username, u.status "+
			"FROM members m JOIN users u ON u.id = m.user_id "+
			"WHERE m.server_id = $1 AND m.user_id = $2 LIMIT 1",
		serverId,
		userId,
	)

	var m Member
	err := row.Scan(&m.Id, &m.UserId, &m.ServerId, &m.RoleId, &m.CreatedAt, &m.Username, &m.Status)

	return m, err
}

func (db *PgGuildRepository) GetMemberById(id int) (Member, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		"SELECT m.id, m.user_id, m.server_id, m.role_id, m.created_at, u.username, u.status "+
			"FROM members m JOIN users u ON u.id = m.user_id WHERE m.id = $1 LIMIT 1",
		id,
	)

	var m Member
	err := row.Scan(&m.Id, &m.UserId, &m.ServerId, &m.RoleId, &m.CreatedAt, &m.Username, &m.Status)

	return m, err
}

func (db *PgGuildRepository) MemberExists(serverId, userId int) (bool, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	res := db.conn.QueryRowContext(ctx,
		"SELECT id FROM members WHERE server_id = $1 AND user_id = $2 LIMIT 1",
		serverId,
		userId,
	)

	var id int
	err := res.Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

func (db *PgGuildRepository) DeleteMember(id int) error {
	ctx, cancel := db.queryCtx()
	defer cancel()

	_, err := db.conn.ExecContext(ctx, "DELETE FROM members WHERE id = $1", id)

	return err
}

func (db *PgGuildRepository) GetRoleById(id int) (Role, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		"SELECT id, server_id, name, permissions, is_default FROM roles WHERE id = $1 LIMIT 1",
		id,
	)

	return scanRole(row)
}

func (db *PgGuildRepository) GetDefaultRole(serverId int) (Role, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		"SELECT id, server_id, name, permissions, is_default FROM roles "+
			"WHERE server_id = $1 AND is_default LIMIT 1",
		serverId,
	)

	return scanRole(row)
}

func scanRole(row *sql.Row) (Role, error) {
	var r Role
	var perms pq.StringArray
	err := row.Scan(&r.Id, &r.ServerId, &r.Name, &perms, &r.IsDefault)
	r.Permissions = perms

	return r, err
}

func (db *PgGuildRepository) ListRoles(serverId int) ([]Role, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, server_id, name, permissions, is_default FROM roles WHERE server_id = $1 ORDER BY id",
		serverId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var r Role
		var perms pq.StringArray
		if err = rows.Scan(&r.Id, &r.ServerId, &r.Name, &perms, &r.IsDefault); err != nil {
			break
		}
		r.Permissions = perms

		roles = append(roles, r)
	}
	return roles, err
}

func (db *PgGuildRepository) CreateRole(params CreateRoleParams) (Role, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	now := time.Now().UTC()
	res := db.conn.QueryRowContext(ctx, createRoleQuery,
		params.ServerId,
		params.Name,
		pq.StringArray(params.Permissions),
		false,
		now,
		now,
	)

	var r Role
	var perms pq.StringArray
	err := res.Scan(&r.Id, &r.ServerId, &r.Name, &perms, &r.IsDefault)
	r.Permissions = perms

	return r, err
}

func (db *PgGuildRepository) UpdateRole(params UpdateRoleParams) (Role, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	res := db.conn.QueryRowContext(ctx,
		"UPDATE roles SET name = $2, permissions = $3, updated_at = $4 WHERE id = $1 "+
			"RETURNING id, server_id, name, permissions, is_default",
		params.RoleId,
		params.Name,
		pq.StringArray(params.Permissions),
		time.Now().UTC(),
	)

	var r Role
	var perms pq.StringArray
	err := res.Scan(&r.Id, &r.ServerId, &r.Name, &perms, &r.IsDefault)
	r.Permissions = perms

	return r, err
}

// DeleteRole clears the role from any member still holding it; those
// members fall back to the server's default role at evaluation time.
func (db *PgGuildRepository) DeleteRole(id int) error {
	ctx, cancel := db.queryCtx()
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, "UPDATE members SET role_id = NULL WHERE role_id = $1", id)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM roles WHERE id = $1", id)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (db *PgGuildRepository) CreateChannel(params CreateChannelParams) (Channel, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	now := time.Now().UTC()
	res := db.conn.QueryRowContext(ctx, createChannelQuery,
		params.ExternalId,
		params.ServerId,
		params.Name,
		params.Kind,
		now,
		now,
	)

	var c Channel
	err := res.Scan(&c.Id, &c.ExternalId, &c.ServerId, &c.Name, &c.Kind, &c.CreatedAt)

	return c, err
}

func (db *PgGuildRepository) GetChannelByExternalId(externalId string) (Channel, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		"SELECT id, external_id, server_id, name, kind, created_at FROM channels "+
			"WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var c Channel
	err := row.Scan(&c.Id, &c.ExternalId, &c.ServerId, &c.Name, &c.Kind, &c.CreatedAt)

	return c, err
}

func (db *PgGuildRepository) ListChannels(serverId int) ([]Channel, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, external_id, server_id, name, kind, created_at FROM channels "+
			"WHERE server_id = $1 ORDER BY id",
		serverId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var c Channel
		if err = rows.Scan(&c.Id, &c.ExternalId, &c.ServerId, &c.Name, &c.Kind, &c.CreatedAt); err != nil {
			break
		}

		channels = append(channels, c)
	}
	return channels, err
}

func (db *PgGuildRepository) UpdateChannelName(id int, name string) (Channel, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	res := db.conn.QueryRowContext(ctx,
		"UPDATE channels SET name = $2, updated_at = $3 WHERE id = $1 "+
			"RETURNING id, external_id, server_id, name, kind, created_at",
		id,
		name,
		time.Now().UTC(),
	)

	var c Channel
	err := res.Scan(&c.Id, &c.ExternalId, &c.ServerId, &c.Name, &c.Kind, &c.CreatedAt)

	return c, err
}

func (db *PgGuildRepository) DeleteChannel(id int) error {
	ctx, cancel := db.queryCtx()
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, "DELETE FROM messages WHERE channel_id = $1", id)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM channels WHERE id = $1", id)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (db *PgGuildRepository) CountChannels(serverId int) (int, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM channels WHERE server_id = $1",
		serverId,
	)

	var count int
	err := row.Scan(&count)

	return count, err
}

func (db *PgGuildRepository) CreateMessage(msg Message) (Message, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	res := db.conn.QueryRowContext(ctx,
		"INSERT INTO messages (channel_id, user_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, channel_id, user_id, content, created_at",
		msg.ChannelId,
		msg.UserId,
		msg.Content,
		msg.CreatedAt,
	)

	var m Message
	err := res.Scan(&m.Id, &m.ChannelId, &m.UserId, &m.Content, &m.CreatedAt)

	return m, err
}

func (db *PgGuildRepository) GetMessages(channelId, since, before, limit int) ([]Message, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	var upper, lower int = 1<<31 - 1, 0
	if before > 0 {
		upper = before - 1
	}

	if since > 0 {
		lower = since
	}

	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, channel_id, user_id, content, created_at FROM messages "+
			"WHERE channel_id = $1 AND id BETWEEN $2 AND $3 ORDER BY id DESC LIMIT $4",
		channelId,
		lower,
		upper,
		limit,
	)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, limit)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.Id, &msg.ChannelId, &msg.UserId, &msg.Content, &msg.CreatedAt); err != nil {
			break
		}

		messages = append(messages, msg)
	}
	return messages, err
}
