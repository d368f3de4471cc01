package database

import (
	"database/sql"
	"time"
)

func (db *PgGuildRepository) CreateInvite(senderId, receiverId, serverId int) (ServerInvite, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	now := time.Now().UTC()
	res := db.conn.QueryRowContext(ctx,
		"INSERT INTO server_invites (sender_id, receiver_id, server_id, status, created_at, updated_at) "+
			"VALUES ($1, $2, $3, 'PENDING', $4, $5) RETURNING id, sender_id, receiver_id, server_id, status, created_at",
		senderId,
		receiverId,
		serverId,
		now,
		now,
	)

	var inv ServerInvite
	err := res.Scan(&inv.Id, &inv.SenderId, &inv.ReceiverId, &inv.ServerId, &inv.Status, &inv.CreatedAt)

	return inv, err
}

func (db *PgGuildRepository) GetInviteById(id int) (ServerInvite, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		"SELECT i.id, i.sender_id, i.receiver_id, i.server_id, s.name, i.status, i.created_at "+
			"FROM server_invites i JOIN servers s ON s.id = i.server_id WHERE i.id = $1 LIMIT 1",
		id,
	)

	var inv ServerInvite
	err := row.Scan(&inv.Id, &inv.SenderId, &inv.ReceiverId, &inv.ServerId, &inv.ServerName, &inv.Status, &inv.CreatedAt)

	return inv, err
}

func (db *PgGuildRepository) HasPendingInvite(senderId, receiverId, serverId int) (bool, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		"SELECT id FROM server_invites WHERE sender_id = $1 AND receiver_id = $2 "+
			"AND server_id = $3 AND status = 'PENDING' LIMIT 1",
		senderId,
		receiverId,
		serverId,
	)

	var id int
	err := row.Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}

	return err == nil, err
}

// AcceptInvite flips a PENDING invite to ACCEPTED and creates the
// receiver's member row in a single transaction. A crash between the
// two writes must leave neither applied: an accepted invite with no
// membership is unrecoverable. The status guard in the UPDATE makes a
// concurrent second accept report ErrNotPending instead of inserting a
// duplicate member.
func (db *PgGuildRepository) AcceptInvite(inviteId int) (Member, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return Member{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	res := tx.QueryRowContext(ctx,
		"UPDATE server_invites SET status = 'ACCEPTED', updated_at = $2 "+
			"WHERE id = $1 AND status = 'PENDING' RETURNING receiver_id, server_id",
		inviteId,
		now,
	)

	var receiverId, serverId int
	err = res.Scan(&receiverId, &serverId)
	if err == sql.ErrNoRows {
		err = ErrNotPending
		return Member{}, err
	}
	if err != nil {
		return Member{}, err
	}

	memberRes := tx.QueryRowContext(ctx, createMemberQuery,
		receiverId,
		serverId,
		nil,
		now,
	)

	var m Member
	err = memberRes.Scan(&m.Id, &m.UserId, &m.ServerId, &m.RoleId, &m.CreatedAt)
	if err != nil {
		return Member{}, err
	}

	if err = tx.Commit(); err != nil {
		return Member{}, err
	}

	return m, nil
}

func (db *PgGuildRepository) UpdateInviteStatus(id int, status string) (ServerInvite, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	res := db.conn.QueryRowContext(ctx,
		"UPDATE server_invites SET status = $2, updated_at = $3 "+
			"WHERE id = $1 AND status = 'PENDING' "+
			"RETURNING id, sender_id, receiver_id, server_id, status, created_at",
		id,
		status,
		time.Now().UTC(),
	)

	var inv ServerInvite
	err := res.Scan(&inv.Id, &inv.SenderId, &inv.ReceiverId, &inv.ServerId, &inv.Status, &inv.CreatedAt)
	if err == sql.ErrNoRows {
		return ServerInvite{}, ErrNotPending
	}

	return inv, err
}

func (db *PgGuildRepository) DeleteInvite(id int) error {
	ctx, cancel := db.queryCtx()
	defer cancel()

	_, err := db.conn.ExecContext(ctx, "DELETE FROM server_invites WHERE id = $1", id)

	return err
}

func (db *PgGuildRepository) ListInvitesForReceiver(receiverId int) ([]ServerInvite, error) {
	return db.listPendingInvites("receiver_id", receiverId)
}

func (db *PgGuildRepository) ListInvitesForSender(senderId int) ([]ServerInvite, error) {
	return db.listPendingInvites("sender_id", senderId)
}

func (db *PgGuildRepository) listPendingInvites(column string, userId int) ([]ServerInvite, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		"SELECT i.id, i.sender_id, i.receiver_id, i.server_id, s.name, i.status, i.created_at "+
			"FROM server_invites i JOIN servers s ON s.id = i.server_id "+
			"WHERE i."+column+" = $1 AND i.status = 'PENDING' ORDER BY i.created_at DESC",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invites []ServerInvite
	for rows.Next() {
		var inv ServerInvite
		if err = rows.Scan(&inv.Id, &inv.SenderId, &inv.ReceiverId, &inv.ServerId, &inv.ServerName, &inv.Status, &inv.CreatedAt); err != nil {
			break
		}

		invites = append(invites, inv)
	}
	return invites, err
}
