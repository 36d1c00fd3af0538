package cache

import (
	"context"
	"strings"

	"github.com/trezcool/eduassist/core"
)

// Key addresses a cached value. Keys are opaque, array-like and
// composed of a namespace plus identifying parts,
// e.g. NewKey("progress", userID).
type Key []string

func NewKey(parts ...string) Key { return Key(parts) }

func (k Key) String() string { return strings.Join(k, ":") }

// Cache is a key/value store shared by all readers. Implementations
// must make Set visible to subsequent Gets immediately.
// It is injected everywhere (never a package singleton) so tests can
// substitute an in-memory fake.
type Cache interface {
	// Get returns the cached value and whether the key was present.
	Get(ctx context.Context, key Key) (interface{}, bool, error)
	Set(ctx context.Context, key Key, value interface{}) error
	Delete(ctx context.Context, key Key) error
}

// Notifier surfaces user-facing notifications for mutation outcomes.
// Messages are plain strings; anything richer belongs to the consumer.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) Success(string) {}
func (NopNotifier) Error(string) {}

// LogNotifier writes notifications to the app logger.
type LogNotifier struct {
	logger core.Logger
}

func NewLogNotifier(logger core.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Success(msg string) { n.logger.Info(msg) }
func (n *LogNotifier) Error(msg string) { n.logger.Error(msg) }
