package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/launcher-backend/internal/config"
	"github.com/launcher-backend/internal/domain"
)

// AccountStore is the account document access the service needs.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
	Create(ctx context.Context, account *domain.Account) error
	UpdateStarredChannels(ctx context.Context, email string, channels []string) error
	ListAll(ctx context.Context) ([]domain.Account, error)
}

// ChannelStore is the channel document access the service needs.
type ChannelStore interface {
	ChannelExists(ctx context.Context, channel string) (bool, error)
	CreateChannel(ctx context.Context, channel string) error
	DeleteChannel(ctx context.Context, channel string) error
	ListChannels(ctx context.Context) ([]string, error)
	MOTD(ctx context.Context, channel string) (*domain.MOTD, error)
	SetMOTD(ctx context.Context, channel, message string) (*domain.MOTD, error)
}

// ConfigFetcher retrieves the remote game configuration.
type ConfigFetcher interface {
	GameConfig(ctx context.Context) (*domain.GameConfig, error)
}

// EventArchive records launcher events durably.
type EventArchive interface {
	RecordEvent(ctx context.Context, event domain.Event) error
}

// EventPublisher pushes launcher events onto the event stream.
type EventPublisher interface {
	Publish(event domain.Event)
}

// Broadcaster pushes MOTD updates to live channel subscribers.
type Broadcaster interface {
	BroadcastMOTDUpdate(channel string, motd domain.MOTD)
}

// LauncherService provides business logic for accounts, channels and
// the wave-gated build access resolution.
type LauncherService struct {
	accounts  AccountStore
	channels  ChannelStore
	fetcher   ConfigFetcher
	archive   EventArchive
	publisher EventPublisher
	hub       Broadcaster
	games     map[string]bool
	logger    *slog.Logger
}

// NewLauncherService creates a new launcher service
func NewLauncherService(
	accounts AccountStore,
	channels ChannelStore,
	fetcher ConfigFetcher,
	cfg *config.LauncherConfig,
	logger *slog.Logger,
) *LauncherService {
	games := make(map[string]bool, len(cfg.Games))
	for _, g := range cfg.Games {
		games[strings.ToLower(g)] = true
	}
	return &LauncherService{
		accounts: accounts,
		channels: channels,
		fetcher:  fetcher,
		games:    games,
		logger:   logger,
	}
}

// SetHub sets the broadcaster used for live MOTD updates
func (s *LauncherService) SetHub(hub Broadcaster) {
	s.hub = hub
}

// SetEventArchive sets the durable event log
func (s *LauncherService) SetEventArchive(archive EventArchive) {
	s.archive = archive
}

// SetEventPublisher sets the event stream publisher
func (s *LauncherService) SetEventPublisher(publisher EventPublisher) {
	s.publisher = publisher
}

// recordEvent archives and publishes a launcher event. Both sinks are
// best-effort and never fail the originating request.
func (s *LauncherService) recordEvent(ctx context.Context, event domain.Event) {
	if s.archive != nil {
		if err := s.archive.RecordEvent(ctx, event); err != nil {
			s.logger.Warn("failed to record launcher event", "type", event.Type, "error", err)
		}
	}
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
}

// ResolveAccess computes which builds the account's wave rank entitles
// it to see. Lower wave values denote a higher tier: a build is
// granted when its requiredWaveAccess is at or above the user's wave.
func (s *LauncherService) ResolveAccess(ctx context.Context, game, email string) (*domain.AccessGrant, error) {
	if !s.games[strings.ToLower(game)] {
		return nil, domain.ErrUnsupportedGame
	}

	gameConfig, err := s.fetcher.GameConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching game config: %w", err)
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if err == domain.ErrAccountNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("looking up account: %w", err)
	}

	allowed := make([]domain.Build, 0, len(gameConfig.Builds))
	for _, build := range gameConfig.Builds {
		if build.HasRequirement && build.RequiredWaveAccess >= account.Wave {
			allowed = append(allowed, build)
		}
	}

	return &domain.AccessGrant{
		Email:         email,
		WaveAccess:    account.Wave,
		AllowedBuilds: allowed,
	}, nil
}

// Register creates a new account with the registration defaults.
func (s *LauncherService) Register(ctx context.Context, username, email, password string) (*domain.Account, error) {
	if !domain.ValidEmail(email) {
		return nil, domain.ErrInvalidEmail
	}
	if username == "" || password == "" {
		return nil, domain.ErrInvalidRequest
	}

	account := domain.NewAccount(username, email)
	if err := account.SetPassword(password); err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	event := domain.NewEvent(domain.EventAccountRegistered)
	event.Email = email
	event.Metadata = map[string]string{"username": username}
	s.recordEvent(ctx, event)

	s.logger.Info("user registered", "username", username)
	return account, nil
}

// Login verifies the credentials for the given email. A missing
// account and a wrong password are indistinguishable to the caller.
func (s *LauncherService) Login(ctx context.Context, email, password string) error {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if err == domain.ErrAccountNotFound {
			return domain.ErrInvalidCredentials
		}
		return fmt.Errorf("looking up account: %w", err)
	}

	if !account.CheckPassword(password) {
		return domain.ErrInvalidCredentials
	}
	return nil
}

// UserDirectory partitions all usernames into staff and backers.
func (s *LauncherService) UserDirectory(ctx context.Context) (*domain.UserDirectory, error) {
	accounts, err := s.accounts.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	dir := domain.BuildDirectory(accounts)
	return &dir, nil
}

// ChannelExists reports whether the channel exists
func (s *LauncherService) ChannelExists(ctx context.Context, channel string) (bool, error) {
	return s.channels.ChannelExists(ctx, channel)
}

// CreateChannel creates a channel namespace
func (s *LauncherService) CreateChannel(ctx context.Context, channel string) error {
	if channel == "" {
		return domain.ErrInvalidRequest
	}
	if err := s.channels.CreateChannel(ctx, channel); err != nil {
		return err
	}

	event := domain.NewEvent(domain.EventChannelCreated)
	event.Channel = channel
	s.recordEvent(ctx, event)

	s.logger.Info("channel created", "channel", channel)
	return nil
}

// DeleteChannel removes a channel and everything in it
func (s *LauncherService) DeleteChannel(ctx context.Context, channel string) error {
	if err := s.channels.DeleteChannel(ctx, channel); err != nil {
		return err
	}

	event := domain.NewEvent(domain.EventChannelDeleted)
	event.Channel = channel
	s.recordEvent(ctx, event)

	s.logger.Info("channel deleted", "channel", channel)
	return nil
}

// ListChannels returns every known channel
func (s *LauncherService) ListChannels(ctx context.Context) ([]string, error) {
	return s.channels.ListChannels(ctx)
}

// MOTD returns a channel's message of the day
func (s *LauncherService) MOTD(ctx context.Context, channel string) (*domain.MOTD, error) {
	return s.channels.MOTD(ctx, channel)
}

// SetMOTD upserts a channel's message of the day and notifies live
// subscribers.
func (s *LauncherService) SetMOTD(ctx context.Context, channel, message string) (*domain.MOTD, error) {
	motd, err := s.channels.SetMOTD(ctx, channel, message)
	if err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.BroadcastMOTDUpdate(channel, *motd)
	}

	event := domain.NewEvent(domain.EventMOTDUpdated)
	event.Channel = channel
	s.recordEvent(ctx, event)

	return motd, nil
}

// StarChannel adds or removes a channel from the account's starred
// set. Starring an already starred channel and unstarring an absent
// one are both no-ops.
func (s *LauncherService) StarChannel(ctx context.Context, email, channel string, starred bool) error {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if err == domain.ErrAccountNotFound {
			// No matching account means no starred set to update.
			return nil
		}
		return fmt.Errorf("looking up account: %w", err)
	}

	var changed bool
	if starred {
		changed = account.Star(channel)
	} else {
		changed = account.Unstar(channel)
	}
	if !changed {
		return nil
	}

	return s.accounts.UpdateStarredChannels(ctx, email, account.StarredChannels)
}

// StarredChannels returns the channels the account has starred. An
// unknown email resolves to an empty list.
func (s *LauncherService) StarredChannels(ctx context.Context, email string) ([]string, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if err == domain.ErrAccountNotFound {
			return []string{}, nil
		}
		return nil, fmt.Errorf("looking up account: %w", err)
	}
	if account.StarredChannels == nil {
		return []string{}, nil
	}
	return account.StarredChannels, nil
}
