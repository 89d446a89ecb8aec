package database

import (
	"context"
	"fmt"
	"time"

	"autoservice/internal/models"
)

const userColumns = `id, name, login, password, phone_number, chat_id, status, created_at, updated_at`

var profileColumns = map[models.ProfileField]string{
	models.ProfileName:     "name",
	models.ProfileLogin:    "login",
	models.ProfilePassword: "password",
	models.ProfilePhone:    "phone_number",
}

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	if user.Role == "" {
		user.Role = models.RoleClient
	}
	now := time.Now().In(db.loc).Truncate(time.Second)
	result, err := db.ExecContext(ctx,
		`INSERT INTO users (name, login, password, phone_number, chat_id, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Name,
		user.Login,
		user.PasswordHash,
		user.Phone,
		user.ChatID,
		string(user.Role),
		db.stamp(now),
		db.stamp(now),
	)
	if err != nil {
		return mapError("create user", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return mapError("get last insert id", err)
	}
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return db.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (db *DB) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	return db.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE login = ?`, login)
}

func (db *DB) GetUserByName(ctx context.Context, name string) (*models.User, error) {
	return db.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE name = ?`, name)
}

func (db *DB) queryUser(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	if err := db.GetContext(ctx, &user, query, args...); err != nil {
		return nil, mapError("get user", err)
	}
	return &user, nil
}

// UpdateUserField writes one profile attribute. Password values must already be hashed.
func (db *DB) UpdateUserField(ctx context.Context, id int64, field models.ProfileField, value string) error {
	column, ok := profileColumns[field]
	if !ok {
		return fmt.Errorf("unsupported profile field %s", field)
	}
	return db.execAffectingOne(ctx, "update user "+column,
		`UPDATE users SET `+column+` = ?, updated_at = ? WHERE id = ?`, value, db.stamp(time.Now()), id)
}

// UpdateUserChatID binds the account to a chat. The chat is detached from any
// other account first so that one chat maps to at most one user.
func (db *DB) UpdateUserChatID(ctx context.Context, id, chatID int64) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return mapError("begin transaction", err)
	}
	defer tx.Rollback()

	now := db.stamp(time.Now())
	if chatID != 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET chat_id = 0, updated_at = ? WHERE chat_id = ? AND id != ?`, now, chatID, id); err != nil {
			return mapError("detach chat", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET chat_id = ?, updated_at = ? WHERE id = ?`, chatID, now, id); err != nil {
		return mapError("update user chat", err)
	}
	return mapError("commit transaction", tx.Commit())
}

func (db *DB) ListUsersByRole(ctx context.Context, role models.Role, limit, offset int) ([]*models.User, error) {
	var users []*models.User
	err := db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users WHERE status = ? ORDER BY name LIMIT ? OFFSET ?`,
		string(role), limit, offset)
	if err != nil {
		return nil, mapError("list users", err)
	}
	return users, nil
}

func (db *DB) CountUsersByRole(ctx context.Context, role models.Role) (int, error) {
	var count int
	if err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users WHERE status = ?`, string(role)); err != nil {
		return 0, mapError("count users", err)
	}
	return count, nil
}

// DeleteUser removes the account and, by cascade, its appointments.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	return db.execAffectingOne(ctx, "delete user", `DELETE FROM users WHERE id = ?`, id)
}
