package models

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

type User struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Login        string    `db:"login" json:"login"`
	PasswordHash string    `db:"password" json:"-"`
	Phone        string    `db:"phone_number" json:"phone"`
	ChatID       int64     `db:"chat_id" json:"chat_id"`
	Role         Role      `db:"status" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// ProfileField enumerates the user attributes that can be edited.
type ProfileField int

const (
	ProfileName ProfileField = iota + 1
	ProfileLogin
	ProfilePassword
	ProfilePhone
)

var profileFieldKeys = map[ProfileField]string{
	ProfileName:     "name",
	ProfileLogin:    "login",
	ProfilePassword: "password",
	ProfilePhone:    "phone_number",
}

var profileFieldTitles = map[ProfileField]string{
	ProfileName:     "Имя",
	ProfileLogin:    "Логин",
	ProfilePassword: "Пароль",
	ProfilePhone:    "Телефон",
}

// ProfileFields lists editable fields in display order.
func ProfileFields() []ProfileField {
	return []ProfileField{ProfileName, ProfileLogin, ProfilePassword, ProfilePhone}
}

func ParseProfileField(s string) (ProfileField, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for f, key := range profileFieldKeys {
		if key == s {
			return f, nil
		}
	}
	if s == "phone" {
		return ProfilePhone, nil
	}
	return 0, fmt.Errorf("unknown profile field %q", s)
}

func (f ProfileField) Key() string {
	return profileFieldKeys[f]
}

func (f ProfileField) Title() string {
	return profileFieldTitles[f]
}

func (f ProfileField) String() string {
	if key, ok := profileFieldKeys[f]; ok {
		return key
	}
	return fmt.Sprintf("ProfileField(%d)", int(f))
}

// Registration carries the raw input of a new account.
type Registration struct {
	Name     string `validate:"required,min=2,max=64"`
	Login    string `validate:"required,alphanum,min=3,max=32"`
	Password string `validate:"required,min=6,max=72"`
	Phone    string `validate:"required,numeric,len=11"`
	Role     Role   `validate:"omitempty,oneof=client admin"`
}
