package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRoundTripsUnknownFields(t *testing.T) {
	raw := `{"id":"A","name":"Genesis Alpha","downloadUrl":"https://cdn.example.com/a.zip","requiredWaveAccess":3}`

	var build Build
	require.NoError(t, json.Unmarshal([]byte(raw), &build))
	assert.Equal(t, 3, build.RequiredWaveAccess)
	assert.True(t, build.HasRequirement)

	out, err := json.Marshal(build)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestBuildWithoutRequirement(t *testing.T) {
	var build Build
	require.NoError(t, json.Unmarshal([]byte(`{"id":"A"}`), &build))
	assert.False(t, build.HasRequirement)
	assert.Equal(t, 0, build.RequiredWaveAccess)
}

func TestParseGameConfig(t *testing.T) {
	cfg, err := ParseGameConfig([]byte(`{"builds":[{"id":"A","requiredWaveAccess":1},{"id":"B","requiredWaveAccess":5}]}`))
	require.NoError(t, err)
	require.Len(t, cfg.Builds, 2)
	assert.Equal(t, 1, cfg.Builds[0].RequiredWaveAccess)
	assert.Equal(t, 5, cfg.Builds[1].RequiredWaveAccess)
}

func TestParseGameConfigEmptyBuilds(t *testing.T) {
	cfg, err := ParseGameConfig([]byte(`{"builds":[]}`))
	require.NoError(t, err)
	assert.NotNil(t, cfg.Builds)
	assert.Empty(t, cfg.Builds)
}

func TestParseGameConfigShapeErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing builds", `{}`},
		{"builds null", `{"builds":null}`},
		{"builds not a sequence", `{"builds":{"id":"A"}}`},
		{"not json", `{builds`},
		{"scalar", `42`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGameConfig([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidGameConfig)
		})
	}
}

func TestAccessGrantJSONShape(t *testing.T) {
	cfg, err := ParseGameConfig([]byte(`{"builds":[{"id":"B","requiredWaveAccess":5}]}`))
	require.NoError(t, err)

	grant := AccessGrant{
		Email:         "user@example.com",
		WaveAccess:    3,
		AllowedBuilds: cfg.Builds,
	}
	out, err := json.Marshal(grant)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"email":"user@example.com","waveAccess":3,"allowedBuilds":[{"id":"B","requiredWaveAccess":5}]}`,
		string(out))
}

func TestAccessGrantEmptyBuildsIsArray(t *testing.T) {
	grant := AccessGrant{
		Email:         "user@example.com",
		WaveAccess:    5,
		AllowedBuilds: []Build{},
	}
	out, err := json.Marshal(grant)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"allowedBuilds":[]`)
}

func TestIsNotFoundError(t *testing.T) {
	assert.True(t, IsNotFoundError(ErrAccountNotFound))
	assert.True(t, IsNotFoundError(ErrChannelNotFound))
	assert.True(t, IsNotFoundError(ErrMOTDNotFound))
	assert.False(t, IsNotFoundError(ErrAccountExists))
	assert.False(t, IsNotFoundError(ErrInvalidGameConfig))
	assert.False(t, IsNotFoundError(nil))
}
