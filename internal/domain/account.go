package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost matches the cost the launcher has always hashed with;
// changing it would invalidate no hashes but slow down registration.
const bcryptCost = 10

// DefaultWave is the wave rank assigned at registration. Lower wave
// values denote a higher access tier.
const DefaultWave = 5

// Position is a player's last known in-game location.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// IngameState holds the per-account game state carried on the document.
type IngameState struct {
	Inventory map[string]int `json:"inventory"`
	Currency  int64          `json:"currency"`
}

// Account is a user account document as persisted in the store.
type Account struct {
	ID              string      `json:"id"`
	Username        string      `json:"username"`
	Email           string      `json:"email"`
	PasswordHash    string      `json:"passwordHash"`
	IsAdmin         bool        `json:"isAdmin"`
	Wave            int         `json:"wave"`
	OwnsGame        bool        `json:"ownsGame"`
	Ingame          IngameState `json:"ingame"`
	PlayerLocation  Position    `json:"playerLocation"`
	CreatedAt       time.Time   `json:"createdAt"`
	StarredChannels []string    `json:"starredChannels"`
}

// NewAccount returns an account with registration defaults applied.
// The password is not set; call SetPassword before persisting.
func NewAccount(username, email string) *Account {
	return &Account{
		ID:       uuid.New().String(),
		Username: username,
		Email:    email,
		Wave:     DefaultWave,
		Ingame: IngameState{
			Inventory: make(map[string]int),
		},
		CreatedAt:       time.Now(),
		StarredChannels: []string{},
	}
}

// SetPassword hashes the plaintext password and stores the hash.
func (a *Account) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return err
	}
	a.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether the candidate matches the stored hash.
func (a *Account) CheckPassword(candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(candidate)) == nil
}

// Star adds a channel to the starred set. Duplicates are suppressed;
// the return value reports whether the set changed.
func (a *Account) Star(channel string) bool {
	for _, c := range a.StarredChannels {
		if c == channel {
			return false
		}
	}
	a.StarredChannels = append(a.StarredChannels, channel)
	return true
}

// Unstar removes a channel from the starred set. Removing a channel
// that is not starred is a no-op.
func (a *Account) Unstar(channel string) bool {
	for i, c := range a.StarredChannels {
		if c == channel {
			a.StarredChannels = append(a.StarredChannels[:i], a.StarredChannels[i+1:]...)
			return true
		}
	}
	return false
}

// ValidEmail applies the launcher's historical email check: the address
// must contain both an '@' and a '.'.
func ValidEmail(email string) bool {
	return strings.Contains(email, "@") && strings.Contains(email, ".")
}

// UserDirectory partitions usernames by admin flag.
type UserDirectory struct {
	Staff   []string `json:"staff"`
	Backers []string `json:"backers"`
}

// BuildDirectory partitions the given accounts into staff and backers,
// preserving the store's iteration order.
func BuildDirectory(accounts []Account) UserDirectory {
	dir := UserDirectory{
		Staff:   []string{},
		Backers: []string{},
	}
	for _, a := range accounts {
		if a.IsAdmin {
			dir.Staff = append(dir.Staff, a.Username)
		} else {
			dir.Backers = append(dir.Backers, a.Username)
		}
	}
	return dir
}
