package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/launcher-backend/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Account documents are stored as JSON, one document per email, with a
// SetNX-claimed username index and an insertion-order list of emails.
// The SetNX claims are the storage-level uniqueness constraint: the
// pre-check in Create gives the friendly answer, the claim is the
// authoritative one.

// accountKey returns the Redis key for an account document
func (s *Store) accountKey(email string) string {
	return fmt.Sprintf("account:email:%s", email)
}

// usernameKey returns the Redis key claiming a username, holding the
// owning account's email
func (s *Store) usernameKey(username string) string {
	return fmt.Sprintf("account:username:%s", username)
}

// accountIndexKey is the list of registered emails in insertion order
const accountIndexKey = "account:all"

// FindByEmail returns the account with the given email
func (s *Store) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	data, err := s.client.Get(ctx, s.accountKey(email)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting account: %w", err)
	}

	var account domain.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("decoding account document: %w", err)
	}
	return &account, nil
}

// FindByUsername returns the account with the given username
func (s *Store) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	email, err := s.client.Get(ctx, s.usernameKey(username)).Result()
	if err == redis.Nil {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolving username: %w", err)
	}
	return s.FindByEmail(ctx, email)
}

// Create persists a new account. Both username and email must be
// unclaimed; a lost SetNX claim reports domain.ErrAccountExists and
// rolls back any partial claim.
func (s *Store) Create(ctx context.Context, account *domain.Account) error {
	// Friendly pre-check. The SetNX claims below remain authoritative
	// under concurrent registration.
	existing, err := s.client.Exists(ctx, s.accountKey(account.Email), s.usernameKey(account.Username)).Result()
	if err != nil {
		return fmt.Errorf("checking account existence: %w", err)
	}
	if existing > 0 {
		return domain.ErrAccountExists
	}

	claimed, err := s.client.SetNX(ctx, s.usernameKey(account.Username), account.Email, 0).Result()
	if err != nil {
		return fmt.Errorf("claiming username: %w", err)
	}
	if !claimed {
		return domain.ErrAccountExists
	}

	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("encoding account document: %w", err)
	}

	stored, err := s.client.SetNX(ctx, s.accountKey(account.Email), data, 0).Result()
	if err != nil {
		return fmt.Errorf("storing account: %w", err)
	}
	if !stored {
		// Another registration won the email; release the username.
		if delErr := s.client.Del(ctx, s.usernameKey(account.Username)).Err(); delErr != nil {
			s.logger.Warn("failed to release username claim", "username", account.Username, "error", delErr)
		}
		return domain.ErrAccountExists
	}

	if err := s.client.RPush(ctx, accountIndexKey, account.Email).Err(); err != nil {
		return fmt.Errorf("indexing account: %w", err)
	}
	return nil
}

// Restore reinstates an archived account document. Existing documents
// are left untouched.
func (s *Store) Restore(ctx context.Context, account *domain.Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("encoding account document: %w", err)
	}

	stored, err := s.client.SetNX(ctx, s.accountKey(account.Email), data, 0).Result()
	if err != nil {
		return fmt.Errorf("restoring account: %w", err)
	}
	if !stored {
		return nil
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.usernameKey(account.Username), account.Email, 0)
	pipe.RPush(ctx, accountIndexKey, account.Email)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("indexing restored account: %w", err)
	}
	return nil
}

// UpdateStarredChannels replaces the starred-channel set for the
// account matched by email. A missing account is a no-op, not an
// error: the caller treats "no match" as "no channels starred".
func (s *Store) UpdateStarredChannels(ctx context.Context, email string, channels []string) error {
	account, err := s.FindByEmail(ctx, email)
	if err == domain.ErrAccountNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	if channels == nil {
		channels = []string{}
	}
	account.StarredChannels = channels

	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("encoding account document: %w", err)
	}
	if err := s.client.Set(ctx, s.accountKey(email), data, 0).Err(); err != nil {
		return fmt.Errorf("updating account: %w", err)
	}
	return nil
}

// ListAll returns every account in insertion order.
func (s *Store) ListAll(ctx context.Context) ([]domain.Account, error) {
	emails, err := s.client.LRange(ctx, accountIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	accounts := make([]domain.Account, 0, len(emails))
	for _, email := range emails {
		account, err := s.FindByEmail(ctx, email)
		if err == domain.ErrAccountNotFound {
			// Index entry without a document; skip it.
			continue
		}
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, nil
}
