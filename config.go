package blockbind

import (
	rawslog "log/slog"
	"os"

	"github.com/blockbind/blockbind.go/internal/rand"
	"github.com/blockbind/blockbind.go/pkg/constants"
	"github.com/blockbind/blockbind.go/pkg/logger"
	"github.com/blockbind/blockbind.go/pkg/logger/slog"
	"github.com/blockbind/blockbind.go/pkg/models"
)

// Environment variables read by NewConfig.
const (
	EnvLogLevel = "BLOCKBIND_LOG_LEVEL"
	EnvSession  = "BLOCKBIND_SESSION"
)

// Config holds the settings of a Binding.
// It is not absolutely necessary to create a Config using NewConfig,
// but zero fields are only defaulted by New, not validated.
type Config struct {
	Logger logger.Logger
	// Session tags this binding's writes so their echo can be told apart
	// from writes of other bindings on the same store. It must be unique
	// among the bindings attached to one store.
	Session string
	// MaxRetryRounds bounds how often a deferred event is retried within
	// one batch before its target is resynced.
	MaxRetryRounds int
	// NewID mints identifiers for split blocks and for inserted nodes that
	// come without one. Defaults to models.NewID.
	NewID func() models.ID
}

// NewConfig creates a Config with a fresh session token and a text logger
// on stderr. BLOCKBIND_LOG_LEVEL sets the log level and BLOCKBIND_SESSION
// overrides the session token.
func NewConfig() *Config {
	level := slog.ParseLevel(GetEnvOrDefault(EnvLogLevel, "info"))
	return &Config{
		Logger:         slog.New(rawslog.NewTextHandler(os.Stderr, &rawslog.HandlerOptions{Level: level})),
		Session:        GetEnvOrDefault(EnvSession, rand.NewSessionToken()),
		MaxRetryRounds: constants.DefaultMaxRetryRounds,
		NewID:          models.NewID,
	}
}

// withDefaults returns a copy of c with zero fields filled in.
func (c *Config) withDefaults() *Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.Logger == nil {
		out.Logger = logger.Nop{}
	}
	if out.Session == "" {
		out.Session = rand.NewSessionToken()
	}
	if out.MaxRetryRounds <= 0 {
		out.MaxRetryRounds = constants.DefaultMaxRetryRounds
	}
	if out.NewID == nil {
		out.NewID = models.NewID
	}
	return &out
}
