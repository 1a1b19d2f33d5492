package database

import (
	"time"
)

func (db *PgClassChatRepository) CreateAccount(accountParams CreateAccountParams) (User, error) {
	role := accountParams.Role
	if role == "" {
		role = RoleStudent
	}

	res := db.conn.QueryRow(
		"INSERT INTO accounts (name, email, role, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $5) RETURNING id, name, email, role, created_at, updated_at",
		accountParams.Name,
		accountParams.EmailAddress,
		role,
		accountParams.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Name,
		&u.EmailAddress,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgClassChatRepository) UpdateAccount(accountParams UpdateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"UPDATE accounts SET name = $2, password_hash = $3, updated_at = $4 "+
			"WHERE id = $1 RETURNING id, name, email, role, created_at, updated_at",
		accountParams.UserId,
		accountParams.Name,
		accountParams.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Name,
		&u.EmailAddress,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgClassChatRepository) GetAccountById(accountId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, email, role, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Name,
		&user.EmailAddress,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgClassChatRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, email, role, password_hash, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Name,
		&user.EmailAddress,
		&user.Role,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgClassChatRepository) ListAccounts(excludeId int) ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT id, name, email, role, created_at FROM accounts "+
			"WHERE id != $1 ORDER BY name",
		excludeId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users = make([]User, 0)
	for rows.Next() {
		var user User
		if err = rows.Scan(&user.Id, &user.Name, &user.EmailAddress, &user.Role, &user.CreatedAt); err != nil {
			break
		}

		users = append(users, user)
	}

	return users, err
}

func (db *PgClassChatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	res := db.conn.QueryRow(
		"INSERT INTO messages (sender_id, receiver_id, body, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, sender_id, receiver_id, body, created_at",
		params.SenderId,
		params.ReceiverId,
		params.Body,
		time.Now().UTC(),
	)

	var msg Message
	err := res.Scan(
		&msg.Id,
		&msg.SenderId,
		&msg.ReceiverId,
		&msg.Body,
		&msg.CreatedAt,
	)

	return msg, err
}

func (db *PgClassChatRepository) GetConversation(accountId, peerId, before, limit int) ([]Message, error) {
	var upper int = 1<<31 - 1
	if before > 0 {
		upper = before - 1
	}

	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.Query(
		"SELECT id, sender_id, receiver_id, body, created_at FROM messages "+
			"WHERE ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)) "+
			"AND id <= $3 ORDER BY id DESC LIMIT $4",
		accountId,
		peerId,
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
		if err = rows.Scan(&msg.Id, &msg.SenderId, &msg.ReceiverId, &msg.Body, &msg.CreatedAt); err != nil {
			break
		}

		messages = append(messages, msg)
	}

	// reverse into oldest-first order for the client
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, err
}
