package domain

import (
	"fmt"
	"strings"
)

type UserID string

type User struct {
	ID           UserID
	Login        string
	PasswordHash string
	FullName     string
	Color        string
	ImageURL     string
}

func (u User) Validate() error {
	if strings.TrimSpace(string(u.ID)) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(u.Login) == "" {
		return fmt.Errorf("login is required")
	}
	if u.PasswordHash == "" {
		return fmt.Errorf("password hash is required")
	}

	return nil
}

func (u User) MemberProperties() MemberProperties {
	return MemberProperties{
		FullName: u.FullName,
		Color:    u.Color,
		ImageURL: u.ImageURL,
	}
}
