package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/launcher-backend/internal/config"
	"github.com/launcher-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeAccountStore struct {
	accounts  map[string]*domain.Account
	order     []string
	findCalls int
	createErr error
	listErr   error
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{accounts: make(map[string]*domain.Account)}
}

func (f *fakeAccountStore) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	f.findCalls++
	account, ok := f.accounts[email]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	clone := *account
	return &clone, nil
}

func (f *fakeAccountStore) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	for _, account := range f.accounts {
		if account.Username == username {
			clone := *account
			return &clone, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (f *fakeAccountStore) Create(ctx context.Context, account *domain.Account) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.accounts[account.Email]; ok {
		return domain.ErrAccountExists
	}
	for _, a := range f.accounts {
		if a.Username == account.Username {
			return domain.ErrAccountExists
		}
	}
	clone := *account
	f.accounts[account.Email] = &clone
	f.order = append(f.order, account.Email)
	return nil
}

func (f *fakeAccountStore) UpdateStarredChannels(ctx context.Context, email string, channels []string) error {
	account, ok := f.accounts[email]
	if !ok {
		return nil
	}
	account.StarredChannels = channels
	return nil
}

func (f *fakeAccountStore) ListAll(ctx context.Context) ([]domain.Account, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	accounts := make([]domain.Account, 0, len(f.order))
	for _, email := range f.order {
		accounts = append(accounts, *f.accounts[email])
	}
	return accounts, nil
}

type fakeChannelStore struct {
	channels map[string]bool
	motds    map[string]*domain.MOTD
}

func newFakeChannelStore() *fakeChannelStore {
	return &fakeChannelStore{
		channels: make(map[string]bool),
		motds:    make(map[string]*domain.MOTD),
	}
}

func (f *fakeChannelStore) ChannelExists(ctx context.Context, channel string) (bool, error) {
	return f.channels[channel] || f.motds[channel] != nil, nil
}

func (f *fakeChannelStore) CreateChannel(ctx context.Context, channel string) error {
	f.channels[channel] = true
	return nil
}

func (f *fakeChannelStore) DeleteChannel(ctx context.Context, channel string) error {
	delete(f.channels, channel)
	delete(f.motds, channel)
	return nil
}

func (f *fakeChannelStore) ListChannels(ctx context.Context) ([]string, error) {
	var names []string
	for name := range f.channels {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeChannelStore) MOTD(ctx context.Context, channel string) (*domain.MOTD, error) {
	motd, ok := f.motds[channel]
	if !ok {
		return nil, domain.ErrMOTDNotFound
	}
	return motd, nil
}

func (f *fakeChannelStore) SetMOTD(ctx context.Context, channel, message string) (*domain.MOTD, error) {
	motd := &domain.MOTD{Message: message, Date: time.Now().UTC()}
	f.motds[channel] = motd
	return motd, nil
}

type fakeFetcher struct {
	config *domain.GameConfig
	err    error
	calls  int
}

func (f *fakeFetcher) GameConfig(ctx context.Context) (*domain.GameConfig, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.config, nil
}

type fakeBroadcaster struct {
	updates []string
}

func (f *fakeBroadcaster) BroadcastMOTDUpdate(channel string, motd domain.MOTD) {
	f.updates = append(f.updates, channel)
}

// --- helpers ---

func newTestService(t *testing.T, accounts *fakeAccountStore, channels *fakeChannelStore, fetcher *fakeFetcher) *LauncherService {
	t.Helper()
	return NewLauncherService(
		accounts,
		channels,
		fetcher,
		&config.LauncherConfig{Games: []string{"genesis"}},
		slog.Default(),
	)
}

func addAccount(t *testing.T, store *fakeAccountStore, email string, wave int) {
	t.Helper()
	account := domain.NewAccount("user-"+email, email)
	account.Wave = wave
	require.NoError(t, store.Create(context.Background(), account))
}

func gameConfigFromJSON(t *testing.T, data string) *domain.GameConfig {
	t.Helper()
	cfg, err := domain.ParseGameConfig([]byte(data))
	require.NoError(t, err)
	return cfg
}

func buildIDs(t *testing.T, builds []domain.Build) []string {
	t.Helper()
	ids := make([]string, 0, len(builds))
	for _, b := range builds {
		var entry struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(b.Raw, &entry))
		ids = append(ids, entry.ID)
	}
	return ids
}

// --- resolver ---

func TestResolveAccessFiltersByWave(t *testing.T) {
	accounts := newFakeAccountStore()
	addAccount(t, accounts, "user@example.com", 3)

	fetcher := &fakeFetcher{config: gameConfigFromJSON(t, `{"builds":[
		{"id":"A","requiredWaveAccess":1},
		{"id":"B","requiredWaveAccess":5}
	]}`)}

	svc := newTestService(t, accounts, newFakeChannelStore(), fetcher)

	grant, err := svc.ResolveAccess(context.Background(), "genesis", "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", grant.Email)
	assert.Equal(t, 3, grant.WaveAccess)
	assert.Equal(t, []string{"B"}, buildIDs(t, grant.AllowedBuilds))
}

func TestResolveAccessPreservesBuildOrder(t *testing.T) {
	accounts := newFakeAccountStore()
	addAccount(t, accounts, "user@example.com", 2)

	fetcher := &fakeFetcher{config: gameConfigFromJSON(t, `{"builds":[
		{"id":"C","requiredWaveAccess":9},
		{"id":"A","requiredWaveAccess":2},
		{"id":"D","requiredWaveAccess":1},
		{"id":"B","requiredWaveAccess":4}
	]}`)}

	svc := newTestService(t, accounts, newFakeChannelStore(), fetcher)

	grant, err := svc.ResolveAccess(context.Background(), "genesis", "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, buildIDs(t, grant.AllowedBuilds))
}

func TestResolveAccessInclusiveBoundary(t *testing.T) {
	accounts := newFakeAccountStore()
	addAccount(t, accounts, "user@example.com", 4)

	fetcher := &fakeFetcher{config: gameConfigFromJSON(t, `{"builds":[
		{"id":"exact","requiredWaveAccess":4},
		{"id":"below","requiredWaveAccess":3}
	]}`)}

	svc := newTestService(t, accounts, newFakeChannelStore(), fetcher)

	grant, err := svc.ResolveAccess(context.Background(), "genesis", "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"exact"}, buildIDs(t, grant.AllowedBuilds))
}

func TestResolveAccessMonotonicInWave(t *testing.T) {
	// Lowering the wave value (raising privilege) must never shrink the
	// grant; raising it must never grow the grant.
	buildList := `{"builds":[
		{"id":"A","requiredWaveAccess":1},
		{"id":"B","requiredWaveAccess":3},
		{"id":"C","requiredWaveAccess":5},
		{"id":"D","requiredWaveAccess":7}
	]}`

	prevCount := -1
	for wave := 8; wave >= 1; wave-- {
		accounts := newFakeAccountStore()
		addAccount(t, accounts, "user@example.com", wave)
		fetcher := &fakeFetcher{config: gameConfigFromJSON(t, buildList)}
		svc := newTestService(t, accounts, newFakeChannelStore(), fetcher)

		grant, err := svc.ResolveAccess(context.Background(), "genesis", "user@example.com")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(grant.AllowedBuilds), prevCount, "wave %d", wave)
		prevCount = len(grant.AllowedBuilds)
	}
}

func TestResolveAccessSkipsBuildsWithoutRequirement(t *testing.T) {
	accounts := newFakeAccountStore()
	addAccount(t, accounts, "user@example.com", 1)

	fetcher := &fakeFetcher{config: gameConfigFromJSON(t, `{"builds":[
		{"id":"untagged"},
		{"id":"tagged","requiredWaveAccess":5}
	]}`)}

	svc := newTestService(t, accounts, newFakeChannelStore(), fetcher)

	grant, err := svc.ResolveAccess(context.Background(), "genesis", "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"tagged"}, buildIDs(t, grant.AllowedBuilds))
}

func TestResolveAccessUnsupportedGame(t *testing.T) {
	accounts := newFakeAccountStore()
	fetcher := &fakeFetcher{}
	svc := newTestService(t, accounts, newFakeChannelStore(), fetcher)

	_, err := svc.ResolveAccess(context.Background(), "other", "user@example.com")
	assert.ErrorIs(t, err, domain.ErrUnsupportedGame)

	// Neither collaborator may be contacted for a rejected game.
	assert.Zero(t, fetcher.calls)
	assert.Zero(t, accounts.findCalls)
}

func TestResolveAccessGameCaseInsensitive(t *testing.T) {
	accounts := newFakeAccountStore()
	addAccount(t, accounts, "user@example.com", 5)
	fetcher := &fakeFetcher{config: gameConfigFromJSON(t, `{"builds":[]}`)}
	svc := newTestService(t, accounts, newFakeChannelStore(), fetcher)

	for _, game := range []string{"genesis", "GENESIS", "Genesis"} {
		_, err := svc.ResolveAccess(context.Background(), game, "user@example.com")
		assert.NoError(t, err, "game %q", game)
	}
}

func TestResolveAccessUnknownEmail(t *testing.T) {
	accounts := newFakeAccountStore()
	fetcher := &fakeFetcher{config: gameConfigFromJSON(t, `{"builds":[{"id":"A","requiredWaveAccess":5}]}`)}
	svc := newTestService(t, accounts, newFakeChannelStore(), fetcher)

	_, err := svc.ResolveAccess(context.Background(), "genesis", "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestResolveAccessConfigError(t *testing.T) {
	accounts := newFakeAccountStore()
	addAccount(t, accounts, "user@example.com", 5)
	fetcher := &fakeFetcher{err: domain.ErrInvalidGameConfig}
	svc := newTestService(t, accounts, newFakeChannelStore(), fetcher)

	_, err := svc.ResolveAccess(context.Background(), "genesis", "user@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidGameConfig)
	// The config is validated before the account is consulted.
	assert.Zero(t, accounts.findCalls)
}

func TestResolveAccessEmptyBuildList(t *testing.T) {
	accounts := newFakeAccountStore()
	addAccount(t, accounts, "user@example.com", 5)
	fetcher := &fakeFetcher{config: gameConfigFromJSON(t, `{"builds":[]}`)}
	svc := newTestService(t, accounts, newFakeChannelStore(), fetcher)

	grant, err := svc.ResolveAccess(context.Background(), "genesis", "user@example.com")
	require.NoError(t, err)
	assert.NotNil(t, grant.AllowedBuilds)
	assert.Empty(t, grant.AllowedBuilds)
}

// --- accounts ---

func TestRegisterDefaults(t *testing.T) {
	accounts := newFakeAccountStore()
	svc := newTestService(t, accounts, newFakeChannelStore(), &fakeFetcher{})

	account, err := svc.Register(context.Background(), "tester", "tester@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, 5, account.Wave)
	assert.False(t, account.IsAdmin)
	assert.False(t, account.OwnsGame)
	assert.True(t, account.CheckPassword("hunter2"))
}

func TestRegisterRejectsMalformedEmail(t *testing.T) {
	accounts := newFakeAccountStore()
	svc := newTestService(t, accounts, newFakeChannelStore(), &fakeFetcher{})

	_, err := svc.Register(context.Background(), "tester", "not-an-email", "hunter2")
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
	assert.Empty(t, accounts.accounts)
}

func TestRegisterDuplicate(t *testing.T) {
	accounts := newFakeAccountStore()
	svc := newTestService(t, accounts, newFakeChannelStore(), &fakeFetcher{})

	_, err := svc.Register(context.Background(), "tester", "tester@example.com", "hunter2")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "tester2", "tester@example.com", "hunter2")
	assert.ErrorIs(t, err, domain.ErrAccountExists)

	_, err = svc.Register(context.Background(), "tester", "other@example.com", "hunter2")
	assert.ErrorIs(t, err, domain.ErrAccountExists)
}

func TestLogin(t *testing.T) {
	accounts := newFakeAccountStore()
	svc := newTestService(t, accounts, newFakeChannelStore(), &fakeFetcher{})

	_, err := svc.Register(context.Background(), "tester", "tester@example.com", "hunter2")
	require.NoError(t, err)

	assert.NoError(t, svc.Login(context.Background(), "tester@example.com", "hunter2"))
	assert.ErrorIs(t, svc.Login(context.Background(), "tester@example.com", "wrong"), domain.ErrInvalidCredentials)
	assert.ErrorIs(t, svc.Login(context.Background(), "nobody@example.com", "hunter2"), domain.ErrInvalidCredentials)
}

func TestUserDirectory(t *testing.T) {
	accounts := newFakeAccountStore()
	svc := newTestService(t, accounts, newFakeChannelStore(), &fakeFetcher{})

	admin := domain.NewAccount("alice", "alice@example.com")
	admin.IsAdmin = true
	require.NoError(t, accounts.Create(context.Background(), admin))
	require.NoError(t, accounts.Create(context.Background(), domain.NewAccount("bob", "bob@example.com")))

	dir, err := svc.UserDirectory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, dir.Staff)
	assert.Equal(t, []string{"bob"}, dir.Backers)
}

// --- channels and MOTD ---

func TestMOTDRoundTrip(t *testing.T) {
	channels := newFakeChannelStore()
	svc := newTestService(t, newFakeAccountStore(), channels, &fakeFetcher{})

	before := time.Now().UTC()
	set, err := svc.SetMOTD(context.Background(), "general", "hello")
	require.NoError(t, err)

	got, err := svc.MOTD(context.Background(), "general")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Message)
	assert.Equal(t, set.Message, got.Message)
	assert.False(t, got.Date.Before(before))
}

func TestMOTDNotFoundIsDistinctFromEmpty(t *testing.T) {
	channels := newFakeChannelStore()
	svc := newTestService(t, newFakeAccountStore(), channels, &fakeFetcher{})

	_, err := svc.MOTD(context.Background(), "general")
	assert.ErrorIs(t, err, domain.ErrMOTDNotFound)

	_, err = svc.SetMOTD(context.Background(), "general", "")
	require.NoError(t, err)

	got, err := svc.MOTD(context.Background(), "general")
	require.NoError(t, err)
	assert.Equal(t, "", got.Message)
}

func TestDeleteChannelClearsMOTD(t *testing.T) {
	channels := newFakeChannelStore()
	svc := newTestService(t, newFakeAccountStore(), channels, &fakeFetcher{})

	require.NoError(t, svc.CreateChannel(context.Background(), "general"))
	_, err := svc.SetMOTD(context.Background(), "general", "hello")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteChannel(context.Background(), "general"))

	exists, err := svc.ChannelExists(context.Background(), "general")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = svc.MOTD(context.Background(), "general")
	assert.ErrorIs(t, err, domain.ErrMOTDNotFound)
}

func TestSetMOTDBroadcasts(t *testing.T) {
	channels := newFakeChannelStore()
	svc := newTestService(t, newFakeAccountStore(), channels, &fakeFetcher{})

	hub := &fakeBroadcaster{}
	svc.SetHub(hub)

	_, err := svc.SetMOTD(context.Background(), "general", "hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"general"}, hub.updates)
}

func TestCreateChannelRejectsEmptyName(t *testing.T) {
	svc := newTestService(t, newFakeAccountStore(), newFakeChannelStore(), &fakeFetcher{})
	assert.ErrorIs(t, svc.CreateChannel(context.Background(), ""), domain.ErrInvalidRequest)
}

// --- starring ---

func TestStarChannelIdempotent(t *testing.T) {
	accounts := newFakeAccountStore()
	addAccount(t, accounts, "user@example.com", 5)
	svc := newTestService(t, accounts, newFakeChannelStore(), &fakeFetcher{})

	require.NoError(t, svc.StarChannel(context.Background(), "user@example.com", "general", true))
	require.NoError(t, svc.StarChannel(context.Background(), "user@example.com", "general", true))

	starred, err := svc.StarredChannels(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"general"}, starred)
}

func TestUnstarAbsentChannelIsNoop(t *testing.T) {
	accounts := newFakeAccountStore()
	addAccount(t, accounts, "user@example.com", 5)
	svc := newTestService(t, accounts, newFakeChannelStore(), &fakeFetcher{})

	require.NoError(t, svc.StarChannel(context.Background(), "user@example.com", "general", true))
	require.NoError(t, svc.StarChannel(context.Background(), "user@example.com", "dev", false))

	starred, err := svc.StarredChannels(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"general"}, starred)
}

func TestStarUnknownAccountIsNoop(t *testing.T) {
	accounts := newFakeAccountStore()
	svc := newTestService(t, accounts, newFakeChannelStore(), &fakeFetcher{})

	assert.NoError(t, svc.StarChannel(context.Background(), "nobody@example.com", "general", true))

	starred, err := svc.StarredChannels(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, starred)
}

func TestStarSurfacesStoreErrors(t *testing.T) {
	accounts := newFakeAccountStore()
	accounts.listErr = errors.New("boom")
	svc := newTestService(t, accounts, newFakeChannelStore(), &fakeFetcher{})

	_, err := svc.UserDirectory(context.Background())
	assert.Error(t, err)
}
