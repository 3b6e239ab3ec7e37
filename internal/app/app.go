// Package app assembles one storefront client: the REST client, the session
// store, the cart view-model and the view controllers on top of them.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront/internal/activity"
	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/credential"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/session"
	"github.com/joao-fontenele/storefront/internal/views"
)

const cartSyncTimeout = 10 * time.Second

type App struct {
	API     *api.Client
	Session *session.Store
	Cart    *cart.ViewModel

	Catalog  *views.Catalog
	CartView *views.CartView
	Checkout *views.Checkout
	Orders   *views.Orders
	Admin    *views.Admin
	Seller   *views.Seller

	logger  *slog.Logger
	closers []func() error
}

type options struct {
	confirmer  views.Confirmer
	creds      credential.Store
	httpClient *http.Client
	events     activity.EventWriter
}

type Option func(*options)

// WithConfirmer sets the prompt used before destructive actions.
func WithConfirmer(c views.Confirmer) Option {
	return func(o *options) { o.confirmer = c }
}

// WithCredentialStore overrides the configured credential backend.
func WithCredentialStore(s credential.Store) Option {
	return func(o *options) { o.creds = s }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithEventWriter publishes activity to w instead of the configured brokers.
func WithEventWriter(w activity.EventWriter) Option {
	return func(o *options) { o.events = w }
}

// New builds the client. The session is left unresolved until Start.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	o := options{confirmer: views.AlwaysConfirm}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{logger: logger}

	creds := o.creds
	if creds == nil {
		var err error
		creds, err = openCredentials(cfg.Credentials)
		if err != nil {
			return nil, err
		}
		if c, ok := creds.(interface{ Close() error }); ok {
			a.closers = append(a.closers, c.Close)
		}
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.API.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	a.API = api.NewClient(cfg.API.URL, api.WithHTTPClient(httpClient), api.WithLogger(logger))
	a.Session = session.NewStore(a.API, creds, logger)
	a.API.SetTokenSource(a.Session)
	a.API.OnUnauthorized(a.Session.ForceLogout)

	a.Cart = cart.NewViewModel(a.API, a.Session, logger)
	a.closers = append(a.closers, func() error { a.Cart.Close(); return nil })
	a.Session.Subscribe(a.syncCart)

	var recorder views.Recorder
	events := o.events
	if events == nil && len(cfg.Kafka.Brokers) > 0 {
		producer := messaging.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ActivityTopic)
		a.closers = append(a.closers, producer.Close)
		events = producer
	}
	if events != nil {
		pub := activity.NewPublisher(events, a.Session, logger)
		a.Session.Subscribe(pub.OnSession)
		a.Cart.Observe(pub.OnCart)
		// Closers run in reverse, so the publisher flushes before the producer closes.
		a.closers = append(a.closers, func() error { pub.Close(); return nil })
		recorder = pub
	}

	a.Catalog = views.NewCatalog(a.API, a.Session, a.Cart, logger)
	a.CartView = views.NewCartView(a.Session, a.Cart, o.confirmer)
	a.Checkout = views.NewCheckout(a.API, a.Session, a.Cart, recorder, logger)
	a.Orders = views.NewOrders(a.API, a.Session, o.confirmer, recorder)
	a.Admin = views.NewAdmin(a.API, a.Session, o.confirmer, recorder, logger)
	a.Seller = views.NewSeller(a.API, a.Session, o.confirmer, logger)

	return a, nil
}

// Start resolves the session from the stored credential. A failed refresh
// still leaves the session resolved as anonymous.
func (a *App) Start(ctx context.Context) error {
	if err := a.Session.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	return nil
}

// Close stops background work in reverse construction order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// syncCart keeps the cart owned by the current session.
func (a *App) syncCart(c session.Change) {
	switch c.Kind {
	case session.Cleared:
		a.Cart.Reset()
	case session.Established:
		ctx, cancel := context.WithTimeout(context.Background(), cartSyncTimeout)
		defer cancel()
		if err := a.Cart.Fetch(ctx); err != nil {
			a.logger.Warn("failed to load cart for new session", "error", err)
		}
	}
}

func openCredentials(cfg config.CredentialsConfig) (credential.Store, error) {
	switch cfg.Backend {
	case "memory":
		return credential.NewMemoryStore(""), nil
	case "sqlite":
		path, err := credentialPath(cfg.Path, "credentials.db")
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return credential.OpenSQLite(ctx, path, cfg.Profile)
	case "file", "":
		path, err := credentialPath(cfg.Path, "")
		if err != nil {
			return nil, err
		}
		return credential.NewFileStore(path), nil
	default:
		return nil, fmt.Errorf("unknown credential backend %q", cfg.Backend)
	}
}

func credentialPath(configured, name string) (string, error) {
	path := configured
	if path == "" {
		def, err := credential.DefaultPath()
		if err != nil {
			return "", fmt.Errorf("resolve credential path: %w", err)
		}
		path = def
		if name != "" {
			path = filepath.Join(filepath.Dir(def), name)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("create credential dir: %w", err)
	}
	return path, nil
}
