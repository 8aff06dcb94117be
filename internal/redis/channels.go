package redis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/launcher-backend/internal/domain"
)

// Each channel owns the key namespace "channel:<name>:*". A channel
// exists while its namespace holds at least one key; creation drops a
// marker key into the namespace and deletion clears the namespace.
// Channel names are lowercased at this boundary.

// channelPrefix returns the key prefix for a channel's namespace
func (s *Store) channelPrefix(channel string) string {
	return fmt.Sprintf("channel:%s:", strings.ToLower(channel))
}

// motdKey returns the Redis key for a channel's MOTD document
func (s *Store) motdKey(channel string) string {
	return s.channelPrefix(channel) + "motd"
}

// ChannelExists reports whether the channel's namespace is non-empty
func (s *Store) ChannelExists(ctx context.Context, channel string) (bool, error) {
	keys, err := s.keysMatching(ctx, s.channelPrefix(channel)+"*")
	if err != nil {
		return false, err
	}
	return len(keys) > 0, nil
}

// CreateChannel inserts a creation-marker document into the channel's
// namespace. Creation is not idempotent: calling twice leaves two
// markers, both counting toward existence.
func (s *Store) CreateChannel(ctx context.Context, channel string) error {
	key := s.channelPrefix(channel) + "marker:" + uuid.New().String()
	if err := s.client.Set(ctx, key, time.Now().Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("creating channel: %w", err)
	}
	return nil
}

// DeleteChannel removes every document in the channel's namespace. A
// channel that does not exist is a no-op.
func (s *Store) DeleteChannel(ctx context.Context, channel string) error {
	keys, err := s.keysMatching(ctx, s.channelPrefix(channel)+"*")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("deleting channel: %w", err)
	}
	return nil
}

// ListChannels enumerates every known channel namespace
func (s *Store) ListChannels(ctx context.Context) ([]string, error) {
	keys, err := s.keysMatching(ctx, "channel:*")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var channels []string
	for _, key := range keys {
		rest := strings.TrimPrefix(key, "channel:")
		name, _, found := strings.Cut(rest, ":")
		if !found || seen[name] {
			continue
		}
		seen[name] = true
		channels = append(channels, name)
	}
	sort.Strings(channels)
	return channels, nil
}

// MOTD returns the channel's message-of-the-day record. Absence of the
// document is domain.ErrMOTDNotFound, distinct from an empty message.
func (s *Store) MOTD(ctx context.Context, channel string) (*domain.MOTD, error) {
	result, err := s.client.HGetAll(ctx, s.motdKey(channel)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting motd: %w", err)
	}
	if len(result) == 0 {
		return nil, domain.ErrMOTDNotFound
	}

	date, err := time.Parse(time.RFC3339Nano, result["date"])
	if err != nil {
		return nil, fmt.Errorf("parsing motd date: %w", err)
	}
	return &domain.MOTD{
		Message: result["message"],
		Date:    date,
	}, nil
}

// SetMOTD upserts the channel's MOTD with the current timestamp,
// overwriting any prior record unconditionally.
func (s *Store) SetMOTD(ctx context.Context, channel, message string) (*domain.MOTD, error) {
	motd := &domain.MOTD{
		Message: message,
		Date:    time.Now(),
	}
	err := s.client.HSet(ctx, s.motdKey(channel),
		"message", motd.Message,
		"date", motd.Date.Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return nil, fmt.Errorf("setting motd: %w", err)
	}
	return motd, nil
}
