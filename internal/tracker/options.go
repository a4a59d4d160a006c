package tracker

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vincentbai/getracker/internal/browser"
	"github.com/vincentbai/getracker/internal/dom"
	"github.com/vincentbai/getracker/internal/storage"
)

type options struct {
	httpClient *http.Client
	env        browser.Environment
	durable    storage.Store
	session    storage.Store
	document   *dom.Document
	logger     *slog.Logger
	registerer prometheus.Registerer
	now        func() time.Time
}

type Option func(*options)

// WithHTTPClient sets the client used for the tracker POST. The default has
// no timeout of its own.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithEnvironment sets where the current URL, referrer and user agent are
// read from.
func WithEnvironment(env browser.Environment) Option {
	return func(o *options) { o.env = env }
}

// WithDurableStore sets the scope UTM and click-id snapshots persist in.
// Defaults to an in-memory store.
func WithDurableStore(s storage.Store) Option {
	return func(o *options) { o.durable = s }
}

// WithSessionStore sets the scope holding the session id and landing page.
func WithSessionStore(s storage.Store) Option {
	return func(o *options) { o.session = s }
}

// WithDocument sets the document AutoCapture instruments.
func WithDocument(doc *dom.Document) Option {
	return func(o *options) { o.document = doc }
}

// WithLogger sets the debug logger. It is only used when Config.Debug is
// set; otherwise the client is silent.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the client's metrics with r instead of a private
// registry.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

func withClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}
