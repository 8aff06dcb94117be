package domain

import "encoding/json"

// Build is one distributable entry from the remote game config. The
// resolver only understands requiredWaveAccess; everything else is
// launcher metadata that must round-trip to the client untouched, so
// the original JSON object is kept verbatim.
type Build struct {
	// RequiredWaveAccess is the minimum tier needed to see this build.
	// A user qualifies when their wave is at or below this value.
	RequiredWaveAccess int

	// HasRequirement is false when the config entry carries no
	// requiredWaveAccess field. Such builds are never granted.
	HasRequirement bool

	// Raw is the original config object for this build.
	Raw json.RawMessage
}

// UnmarshalJSON keeps the raw object and extracts the wave requirement.
func (b *Build) UnmarshalJSON(data []byte) error {
	var aux struct {
		RequiredWaveAccess *int `json:"requiredWaveAccess"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	b.Raw = append(b.Raw[:0], data...)
	if aux.RequiredWaveAccess != nil {
		b.RequiredWaveAccess = *aux.RequiredWaveAccess
		b.HasRequirement = true
	} else {
		b.RequiredWaveAccess = 0
		b.HasRequirement = false
	}
	return nil
}

// MarshalJSON emits the original config object unmodified.
func (b Build) MarshalJSON() ([]byte, error) {
	if b.Raw != nil {
		return b.Raw, nil
	}
	return json.Marshal(map[string]int{"requiredWaveAccess": b.RequiredWaveAccess})
}

// GameConfig is the remotely sourced per-game build list.
type GameConfig struct {
	Builds []Build `json:"builds"`
}

// ParseGameConfig parses the gameConfig JSON payload and validates its
// shape: builds must be present and must be a sequence.
func ParseGameConfig(data []byte) (*GameConfig, error) {
	var cfg GameConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, ErrInvalidGameConfig
	}
	if cfg.Builds == nil {
		return nil, ErrInvalidGameConfig
	}
	return &cfg, nil
}

// AccessGrant is the result of a build-access resolution.
type AccessGrant struct {
	Email         string  `json:"email"`
	WaveAccess    int     `json:"waveAccess"`
	AllowedBuilds []Build `json:"allowedBuilds"`
}
