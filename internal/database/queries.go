package database

import (
	"time"
)

func (db *PgChatRepository) CreateUser(params CreateUserParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO users (name, email, password_hash, gender, image, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id, name, email, gender, image, created_at, updated_at",
		params.Name,
		params.Email,
		params.PasswordHash,
		params.Gender,
		params.Image,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Name,
		&u.Email,
		&u.Gender,
		&u.Image,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgChatRepository) UpdateUser(params UpdateUserParams) (User, error) {
	res := db.conn.QueryRow(
		"UPDATE users SET name = $2, password_hash = $3, gender = $4, image = $5, updated_at = $6 "+
			"WHERE id = $1 RETURNING id, name, email, gender, image, created_at, updated_at",
		params.UserId,
		params.Name,
		params.PasswordHash,
		params.Gender,
		params.Image,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Name,
		&u.Email,
		&u.Gender,
		&u.Image,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgChatRepository) GetUserById(userId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, email, gender, image, created_at, updated_at FROM users "+
			"WHERE id = $1 LIMIT 1",
		userId,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Name,
		&user.Email,
		&user.Gender,
		&user.Image,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgChatRepository) GetUserByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, email, password_hash, gender, image, created_at, updated_at FROM users "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Gender,
		&user.Image,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgChatRepository) ListUsersExcept(userId int) ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT id, name, image FROM users WHERE id != $1 ORDER BY id",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err = rows.Scan(&u.Id, &u.Name, &u.Image); err != nil {
			return nil, err
		}

		users = append(users, u)
	}

	return users, rows.Err()
}

// CreateMessage persists a message and returns the stored record. The id is
// assigned by the database sequence, which keeps ids unique under concurrent
// writers.
func (db *PgChatRepository) CreateMessage(senderId, receiverId int, text string) (Message, error) {
	res := db.conn.QueryRow(
		"INSERT INTO messages (sender_id, receiver_id, text, sent_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, sender_id, receiver_id, text, sent_at",
		senderId,
		receiverId,
		text,
		time.Now().UTC(),
	)

	var msg Message
	err := res.Scan(
		&msg.Id,
		&msg.SenderId,
		&msg.ReceiverId,
		&msg.Text,
		&msg.SentAt,
	)

	return msg, err
}

// GetMessagesByParticipant returns every message sent or received by the
// user, oldest first. Insertion order is authoritative, not sent_at.
func (db *PgChatRepository) GetMessagesByParticipant(userId int) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT id, sender_id, receiver_id, text, sent_at FROM messages "+
			"WHERE sender_id = $1 OR receiver_id = $1 ORDER BY id",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.Id, &msg.SenderId, &msg.ReceiverId, &msg.Text, &msg.SentAt); err != nil {
			return nil, err
		}

		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
