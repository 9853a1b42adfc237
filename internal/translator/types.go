// Package translator wraps the machine translation services that provide
// candidate translations for tovis blocks.
package translator

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownService is returned by Build for a name with no factory.
var ErrUnknownService = errors.New("unknown translation service")

// ServiceConfig is the per-service section of the configuration file.
type ServiceConfig struct {
	Enabled     bool          `mapstructure:"enabled" json:"enabled"`
	Credentials string        `mapstructure:"credentials" json:"credentials"`
	APIKey      string        `mapstructure:"api_key" json:"api_key"`
	Email       string        `mapstructure:"email" json:"email"`
	Models      []string      `mapstructure:"models" json:"models"`
	BaseURL     string        `mapstructure:"base_url" json:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
}

// Request is one segment to translate. Glossary holds term renderings the
// service should prefer; services that cannot take hints ignore it.
type Request struct {
	Text       string
	SourceLang string
	TargetLang string
	Glossary   map[string][]string
	// Masked is the number of [Mn] markup tokens in Text. Services must
	// return them unchanged.
	Masked int
}

// Result is a translation produced by one service.
type Result struct {
	Service    string
	Text       string
	Confidence float64
	Model      string
	Latency    time.Duration
}

type Service interface {
	Name() string
	Translate(ctx context.Context, req Request) (*Result, error)
	IsAvailable(ctx context.Context) error
}
