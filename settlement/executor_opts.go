package settlement

import (
	"log/slog"

	"github.com/guardline-io/guardline/event"
	"github.com/guardline-io/guardline/keyvaluedb"
	"github.com/guardline-io/guardline/keyvaluedb/memorydb"
	"github.com/guardline-io/guardline/logger"
)

type (
	Options struct {
		store  keyvaluedb.KeyValueDB
		events event.Handler
		log    *slog.Logger
	}

	Option func(*Options)
)

func defaultOptions() *Options {
	return &Options{
		store:  memorydb.New(),
		events: event.NopHandler,
		log:    logger.NewNop(),
	}
}

// WithStore sets the db holding the per-account nonce rows.
func WithStore(store keyvaluedb.KeyValueDB) Option {
	return func(o *Options) {
		o.store = store
	}
}

// WithEventHandler sets the sink for settlement notifications.
func WithEventHandler(h event.Handler) Option {
	return func(o *Options) {
		o.events = h
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(o *Options) {
		o.log = log
	}
}
