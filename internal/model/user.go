package model

import "time"

type User struct {
	ID              string          `db:"id" json:"id"`
	Email           string          `db:"email" json:"email"`
	Name            string          `db:"name" json:"name"`
	PasswordHash    string          `db:"password_hash" json:"-"`
	Credits         int64           `db:"credits" json:"credits"`
	Is2FAEnabled    bool            `db:"is_2fa_enabled" json:"is2faEnabled"`
	TwoFactorMethod TwoFactorMethod `db:"two_factor_method" json:"twoFactorMethod"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
}

type CreateUserParams struct {
	ID              string
	Email           string
	Name            string
	PasswordHash    string
	Credits         int64
	Is2FAEnabled    bool
	TwoFactorMethod TwoFactorMethod
}

// PublicUser is the shape returned to clients on pairing completion and login.
type PublicUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Credits int64  `json:"credits"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Credits: u.Credits,
	}
}
