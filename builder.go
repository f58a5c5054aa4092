package tierauth

import (
	"time"

	"github.com/mlevaskis/tierauth/token"
)

// Builder defines a public type used by tierauth APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config

	store     TokenStore
	directory UserDirectory
	auditSink AuditSink
	clock     func() time.Time

	built bool
}

// New describes the new operation and its observable behavior.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithTokenStore describes the withtokenstore operation and its observable behavior.
func (b *Builder) WithTokenStore(store TokenStore) *Builder {
	b.store = store
	return b
}

// WithUserDirectory describes the withuserdirectory operation and its observable behavior.
func (b *Builder) WithUserDirectory(directory UserDirectory) *Builder {
	b.directory = directory
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the lifecycle's time source. Intended for tests that
// exercise the expiration tiers deterministically.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// Build validates the configuration and assembles a ready [Lifecycle].
// Configuration errors are fatal: no partially working lifecycle is returned.
func (b *Builder) Build() (*Lifecycle, error) {
	if b.built {
		return nil, ErrBuilderAlreadyUsed
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, ErrStoreNotConfigured
	}

	codec, err := token.NewCodec(token.Config{
		SigningMethod: token.SigningMethod(b.config.Token.SigningMethod),
		PrivateKey:    b.config.Token.PrivateKey,
		PublicKey:     b.config.Token.PublicKey,
	})
	if err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	l := &Lifecycle{
		config:    b.config,
		codec:     codec,
		store:     b.store,
		directory: b.directory,
		audit:     newAuditDispatcher(b.config.Audit, b.auditSink),
		metrics:   NewMetrics(b.config.Metrics),
		now:       clock,
	}

	b.built = true
	return l, nil
}
