package database

import (
	"database/sql"
	"time"
)

func (db *PgGuildRepository) CreateFriendship(senderId, receiverId int) (Friendship, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	now := time.Now().UTC()
	res := db.conn.QueryRowContext(ctx,
		"INSERT INTO friendships (sender_id, receiver_id, status, created_at, updated_at) "+
			"VALUES ($1, $2, 'PENDING', $3, $4) RETURNING id, sender_id, receiver_id, status, created_at",
		senderId,
		receiverId,
		now,
		now,
	)

	var f Friendship
	err := res.Scan(&f.Id, &f.SenderId, &f.ReceiverId, &f.Status, &f.CreatedAt)

	return f, err
}

func (db *PgGuildRepository) GetFriendshipById(id int) (Friendship, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		"SELECT id, sender_id, receiver_id, status, created_at FROM friendships "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var f Friendship
	err := row.Scan(&f.Id, &f.SenderId, &f.ReceiverId, &f.Status, &f.CreatedAt)

	return f, err
}

// GetFriendshipBetween looks the pair up in both directions; at most
// one row exists per unordered pair.
func (db *PgGuildRepository) GetFriendshipBetween(a, b int) (Friendship, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		"SELECT id, sender_id, receiver_id, status, created_at FROM friendships "+
			"WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1) LIMIT 1",
		a,
		b,
	)

	var f Friendship
	err := row.Scan(&f.Id, &f.SenderId, &f.ReceiverId, &f.Status, &f.CreatedAt)

	return f, err
}

func (db *PgGuildRepository) UpdateFriendshipStatus(id int, status string) (Friendship, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	res := db.conn.QueryRowContext(ctx,
		"UPDATE friendships SET status = $2, updated_at = $3 "+
			"WHERE id = $1 AND status = 'PENDING' "+
			"RETURNING id, sender_id, receiver_id, status, created_at",
		id,
		status,
		time.Now().UTC(),
	)

	var f Friendship
	err := res.Scan(&f.Id, &f.SenderId, &f.ReceiverId, &f.Status, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return Friendship{}, ErrNotPending
	}

	return f, err
}

func (db *PgGuildRepository) DeleteFriendship(id int) error {
	ctx, cancel := db.queryCtx()
	defer cancel()

	_, err := db.conn.ExecContext(ctx, "DELETE FROM friendships WHERE id = $1", id)

	return err
}

func (db *PgGuildRepository) ListFriends(userId int) ([]User, error) {
	ctx, cancel := db.queryCtx()
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		"SELECT u.id, u.username, u.status FROM friendships f "+
			"JOIN users u ON u.id = CASE WHEN f.sender_id = $1 THEN f.receiver_id ELSE f.sender_id END "+
			"WHERE (f.sender_id = $1 OR f.receiver_id = $1) AND f.status = 'ACCEPTED'",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var friends = make([]User, 0)
	for rows.Next() {
		var u User
		if err = rows.Scan(&u.Id, &u.Username, &u.Status); err != nil {
			break
		}

		friends = append(friends, u)
	}
	return friends, err
}
