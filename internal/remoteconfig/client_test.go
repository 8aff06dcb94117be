package remoteconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/launcher-backend/internal/config"
	"github.com/launcher-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url, apiKey string) *Client {
	t.Helper()
	return NewClient(&config.RemoteConfigConfig{
		URL:     url,
		APIKey:  apiKey,
		Timeout: 5 * time.Second,
	}, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
}

// templateBody builds a parameter template with gameConfig set to the
// given JSON string.
func templateBody(t *testing.T, gameConfig string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"parameters": map[string]interface{}{
			"gameConfig": map[string]interface{}{
				"defaultValue": map[string]string{"value": gameConfig},
			},
		},
	})
	require.NoError(t, err)
	return body
}

func TestFetchRawFlattensTemplate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"parameters":{
			"gameConfig":{"defaultValue":{"value":"{\"builds\":[]}"}},
			"motdRefresh":{"defaultValue":{"value":"30"}},
			"unset":{}
		}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "")

	params, err := client.FetchRaw(context.Background())
	require.NoError(t, err)
	require.Len(t, params, 3)
	require.NotNil(t, params["gameConfig"])
	assert.Equal(t, `{"builds":[]}`, *params["gameConfig"])
	require.NotNil(t, params["motdRefresh"])
	assert.Equal(t, "30", *params["motdRefresh"])
	assert.Nil(t, params["unset"])
}

func TestFetchRawSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"parameters":{}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "secret-key")

	_, err := client.FetchRaw(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-key", gotAuth)
}

func TestFetchRawNoTokenNoHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"parameters":{}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "")

	_, err := client.FetchRaw(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestFetchRawNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "")

	_, err := client.FetchRaw(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestGameConfigParsesBuilds(t *testing.T) {
	body := templateBody(t, `{"builds":[{"id":"A","requiredWaveAccess":3}]}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "")

	cfg, err := client.GameConfig(context.Background())
	require.NoError(t, err)
	require.Len(t, cfg.Builds, 1)
	assert.True(t, cfg.Builds[0].HasRequirement)
	assert.Equal(t, 3, cfg.Builds[0].RequiredWaveAccess)
}

func TestGameConfigMissingParameter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"parameters":{"other":{"defaultValue":{"value":"x"}}}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "")

	_, err := client.GameConfig(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidGameConfig)
}

func TestGameConfigParameterWithoutValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"parameters":{"gameConfig":{}}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "")

	_, err := client.GameConfig(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidGameConfig)
}

func TestGameConfigMalformedValue(t *testing.T) {
	body := templateBody(t, `not json at all`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "")

	_, err := client.GameConfig(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidGameConfig)
}

func TestGameConfigServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := newTestClient(t, srv.URL, "")

	_, err := client.GameConfig(context.Background())
	assert.Error(t, err)
}
