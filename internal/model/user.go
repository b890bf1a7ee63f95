package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sandeepkv93/remindd/internal/tz"
)

var ErrInvalidTimezone = errors.New("model: invalid timezone")

// DefaultTimezone is assigned to users that never declared one.
const DefaultTimezone = "UTC"

type User struct {
	ID                        string
	Name                      string
	Email                     string
	Timezone                  string
	EmailNotificationsEnabled bool
	CreatedAt                 time.Time
}

func (u User) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return errors.New("model: user id is required")
	}
	if !strings.Contains(u.Email, "@") {
		return errors.New("model: user email is required")
	}
	if err := tz.Validate(u.Timezone); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimezone, u.Timezone)
	}
	if u.CreatedAt.IsZero() {
		return errors.New("model: user created_at is required")
	}
	return nil
}
