package remoteconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/launcher-backend/internal/config"
	"github.com/launcher-backend/internal/domain"
)

// gameConfigKey is the template parameter holding the per-game build
// list as a JSON string.
const gameConfigKey = "gameConfig"

// Client fetches the launcher's parameter template from the remote
// configuration service. Nothing is cached; every call hits the
// service.
type Client struct {
	url    string
	apiKey string
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a new remote config client
func NewClient(cfg *config.RemoteConfigConfig, logger *slog.Logger) *Client {
	return &Client{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// template mirrors the wire shape of the parameter template.
type template struct {
	Parameters map[string]struct {
		DefaultValue *struct {
			Value string `json:"value"`
		} `json:"defaultValue"`
	} `json:"parameters"`
}

// FetchRaw retrieves the current parameter template and flattens it to
// key -> default value. Parameters without a default resolve to nil.
func (c *Client) FetchRaw(ctx context.Context) (map[string]*string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building template request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching template: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching template: unexpected status %d", resp.StatusCode)
	}

	var tpl template
	if err := json.NewDecoder(resp.Body).Decode(&tpl); err != nil {
		return nil, fmt.Errorf("decoding template: %w", err)
	}

	params := make(map[string]*string, len(tpl.Parameters))
	for key, p := range tpl.Parameters {
		if p.DefaultValue == nil {
			params[key] = nil
			continue
		}
		value := p.DefaultValue.Value
		params[key] = &value
	}
	return params, nil
}

// GameConfig extracts the gameConfig parameter from the template and
// parses it. A missing key, a parameter without a value, or a shape
// violation is domain.ErrInvalidGameConfig.
func (c *Client) GameConfig(ctx context.Context) (*domain.GameConfig, error) {
	raw, err := c.FetchRaw(ctx)
	if err != nil {
		c.logger.Error("failed to fetch remote config", "error", err)
		return nil, err
	}

	value, ok := raw[gameConfigKey]
	if !ok || value == nil {
		return nil, domain.ErrInvalidGameConfig
	}
	return domain.ParseGameConfig([]byte(*value))
}
