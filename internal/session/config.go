package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/abhisek/adaptest/internal/irt"
	"github.com/abhisek/adaptest/internal/selector"
	"github.com/abhisek/adaptest/internal/store"
)

// Config holds the validated settings of one session.
type Config struct {
	MaxQuestions    int
	MaxTime         time.Duration // zero means no time limit
	SEThreshold     float64
	MinQuestions    int
	InitialAbility  float64
	SECeiling       float64
	SelectionMethod selector.Method
	TopicBalancing  bool
	ExposureControl bool
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxQuestions:    20,
		SEThreshold:     0.3,
		MinQuestions:    5,
		InitialAbility:  0,
		SECeiling:       1.0,
		SelectionMethod: selector.MaximumInformation,
		TopicBalancing:  true,
		ExposureControl: true,
	}
}

// ConfigPatch overrides selected Config fields. Nil fields keep the base
// value.
type ConfigPatch struct {
	MaxQuestions    *int     `json:"max_questions,omitempty" mapstructure:"max_questions"`
	MaxTimeSeconds  *int     `json:"max_time_seconds,omitempty" mapstructure:"max_time_seconds"`
	SEThreshold     *float64 `json:"standard_error_threshold,omitempty" mapstructure:"standard_error_threshold"`
	MinQuestions    *int     `json:"min_questions,omitempty" mapstructure:"min_questions"`
	InitialAbility  *float64 `json:"initial_ability,omitempty" mapstructure:"initial_ability"`
	SECeiling       *float64 `json:"standard_error_ceiling,omitempty" mapstructure:"standard_error_ceiling"`
	SelectionMethod *string  `json:"selection_method,omitempty" mapstructure:"selection_method"`
	TopicBalancing  *bool    `json:"topic_balancing,omitempty" mapstructure:"topic_balancing"`
	ExposureControl *bool    `json:"exposure_control,omitempty" mapstructure:"exposure_control"`
}

// ParseConfigPatch decodes a JSON object into a ConfigPatch. Unknown keys
// are rejected.
func ParseConfigPatch(data []byte) (ConfigPatch, error) {
	var p ConfigPatch
	if len(bytes.TrimSpace(data)) == 0 {
		return p, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return ConfigPatch{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return ConfigPatch{}, fmt.Errorf("%w: trailing data after config object", ErrInvalidConfig)
	}
	return p, nil
}

// Merge returns c with every non-nil field of p applied.
func (c Config) Merge(p ConfigPatch) Config {
	if p.MaxQuestions != nil {
		c.MaxQuestions = *p.MaxQuestions
	}
	if p.MaxTimeSeconds != nil {
		c.MaxTime = time.Duration(*p.MaxTimeSeconds) * time.Second
	}
	if p.SEThreshold != nil {
		c.SEThreshold = *p.SEThreshold
	}
	if p.MinQuestions != nil {
		c.MinQuestions = *p.MinQuestions
	}
	if p.InitialAbility != nil {
		c.InitialAbility = *p.InitialAbility
	}
	if p.SECeiling != nil {
		c.SECeiling = *p.SECeiling
	}
	if p.SelectionMethod != nil {
		c.SelectionMethod = selector.Method(*p.SelectionMethod)
	}
	if p.TopicBalancing != nil {
		c.TopicBalancing = *p.TopicBalancing
	}
	if p.ExposureControl != nil {
		c.ExposureControl = *p.ExposureControl
	}
	return c
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.MaxQuestions < 1:
		return fmt.Errorf("%w: max_questions must be at least 1, got %d", ErrInvalidConfig, c.MaxQuestions)
	case c.MaxTime < 0:
		return fmt.Errorf("%w: max_time_seconds must not be negative", ErrInvalidConfig)
	case c.SEThreshold <= 0:
		return fmt.Errorf("%w: standard_error_threshold must be positive, got %v", ErrInvalidConfig, c.SEThreshold)
	case c.MinQuestions < 0:
		return fmt.Errorf("%w: min_questions must not be negative, got %d", ErrInvalidConfig, c.MinQuestions)
	case c.InitialAbility < irt.MinTheta || c.InitialAbility > irt.MaxTheta:
		return fmt.Errorf("%w: initial_ability must be within [%v, %v], got %v",
			ErrInvalidConfig, irt.MinTheta, irt.MaxTheta, c.InitialAbility)
	case c.SECeiling <= 0:
		return fmt.Errorf("%w: standard_error_ceiling must be positive, got %v", ErrInvalidConfig, c.SECeiling)
	case !c.SelectionMethod.Valid():
		return fmt.Errorf("%w: unknown selection_method %q", ErrInvalidConfig, c.SelectionMethod)
	}
	return nil
}

func (c Config) stored() store.SessionConfig {
	return store.SessionConfig{
		MaxQuestions:    c.MaxQuestions,
		MaxTimeSeconds:  int(c.MaxTime / time.Second),
		SEThreshold:     c.SEThreshold,
		MinQuestions:    c.MinQuestions,
		InitialAbility:  c.InitialAbility,
		SECeiling:       c.SECeiling,
		SelectionMethod: string(c.SelectionMethod),
		TopicBalancing:  c.TopicBalancing,
		ExposureControl: c.ExposureControl,
	}
}

func configFromStored(sc store.SessionConfig) Config {
	return Config{
		MaxQuestions:    sc.MaxQuestions,
		MaxTime:         time.Duration(sc.MaxTimeSeconds) * time.Second,
		SEThreshold:     sc.SEThreshold,
		MinQuestions:    sc.MinQuestions,
		InitialAbility:  sc.InitialAbility,
		SECeiling:       sc.SECeiling,
		SelectionMethod: selector.Method(sc.SelectionMethod),
		TopicBalancing:  sc.TopicBalancing,
		ExposureControl: sc.ExposureControl,
	}
}
