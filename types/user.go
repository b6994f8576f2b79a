package types

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	// ResetCodeLength is the number of digits in a password reset code.
	ResetCodeLength = 6

	// ResetCodeTTL is how long an issued reset code stays usable.
	ResetCodeTTL = 15 * time.Minute

	// MinPasswordLength applies to password resets.
	MinPasswordLength = 4
)

// Column widths of the users table, counted in characters.
const (
	MaxUsernameLength = 150
	MaxEmailLength    = 254
	MaxNameLength     = 150
	MaxPhoneLength    = 15
)

// User represents an account in the system.
// It contains identity, role, credential and reset-code state.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's email address. It is not required to be unique.
	Email string `json:"email" db:"email"`

	// FirstName is the user's given name.
	FirstName string `json:"first_name" db:"first_name"`

	// LastName is the user's family name.
	LastName string `json:"last_name" db:"last_name"`

	// Role indicates the user's authorization level.
	Role Role `json:"role" db:"role"`

	// PhoneNumber is the optional contact number of the user.
	PhoneNumber *string `json:"phone_number" db:"phone_number"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password"`

	// ResetCode is the outstanding password reset code, if any.
	ResetCode *string `json:"-" db:"reset_code"`

	// ResetCodeExpires is the instant the outstanding reset code stops being valid.
	ResetCodeExpires *time.Time `json:"-" db:"reset_code_expires"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SetPassword replaces the stored hash with a salted bcrypt hash of raw.
func (u *User) SetPassword(raw string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashed)
	return nil
}

// CheckPassword reports whether raw matches the stored hash.
func (u *User) CheckPassword(raw string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(raw)) == nil
}

// ResetCodeValid reports whether code matches the outstanding reset code and
// now is strictly before its expiry.
func (u *User) ResetCodeValid(code string, now time.Time) bool {
	if u.ResetCode == nil || u.ResetCodeExpires == nil || *u.ResetCode == "" {
		return false
	}
	if !now.Before(*u.ResetCodeExpires) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*u.ResetCode), []byte(code)) == 1
}

// NewResetCode returns a uniformly random numeric code of ResetCodeLength
// digits. Leading zeros are kept.
func NewResetCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < ResetCodeLength; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", ResetCodeLength, n.Int64()), nil
}
