package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/Alexander-D-Karpov/ampstream/internal/config"
	"github.com/Alexander-D-Karpov/ampstream/pkg/types"
)

// ErrInvalidSettings is returned when a settings blob is not a JSON object.
var ErrInvalidSettings = errors.New("settings must be a JSON object")

// Preferences holds the saved volume and the opaque settings blob.
type Preferences struct {
	store         types.KeyValueStore
	defaultVolume float64
	logger        zerolog.Logger
}

func NewPreferences(store types.KeyValueStore, defaultVolume float64, logger zerolog.Logger) *Preferences {
	return &Preferences{
		store:         store,
		defaultVolume: ClampVolume(defaultVolume),
		logger:        logger,
	}
}

// ClampVolume limits v to [0, 1].
func ClampVolume(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Volume returns the saved volume, or the default when none is stored or
// the stored value is unreadable.
func (p *Preferences) Volume(ctx context.Context) float64 {
	raw, ok, err := p.store.Get(ctx, config.KeyVolume)
	if err != nil {
		p.logger.Warn().Err(err).Msg("failed to read volume")
		return p.defaultVolume
	}
	if !ok {
		return p.defaultVolume
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.logger.Warn().Err(err).Str("value", raw).Msg("ignoring stored volume")
		return p.defaultVolume
	}
	return ClampVolume(v)
}

func (p *Preferences) SetVolume(ctx context.Context, v float64) error {
	v = ClampVolume(v)
	if err := p.store.Set(ctx, config.KeyVolume, strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
		return fmt.Errorf("save volume: %w", err)
	}
	return nil
}

// Settings returns the stored settings object, or "{}".
func (p *Preferences) Settings(ctx context.Context) json.RawMessage {
	raw, ok, err := p.store.Get(ctx, config.KeySettings)
	if err != nil {
		p.logger.Warn().Err(err).Msg("failed to read settings")
		return json.RawMessage("{}")
	}
	if !ok || !gjson.Valid(raw) || !gjson.Parse(raw).IsObject() {
		return json.RawMessage("{}")
	}
	return json.RawMessage(raw)
}

// SaveSettings replaces the settings blob. Only JSON objects are accepted.
func (p *Preferences) SaveSettings(ctx context.Context, raw json.RawMessage) error {
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return ErrInvalidSettings
	}
	if err := p.store.Set(ctx, config.KeySettings, string(raw)); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
