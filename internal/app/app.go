// Package app wires the connectors, registry, workflows and alert sink into
// one object owned by the server or CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/johnwards/pipemon/internal/alert"
	"github.com/johnwards/pipemon/internal/config"
	"github.com/johnwards/pipemon/internal/connector"
	"github.com/johnwards/pipemon/internal/connector/crm"
	"github.com/johnwards/pipemon/internal/connector/health"
	"github.com/johnwards/pipemon/internal/connector/usage"
	"github.com/johnwards/pipemon/internal/database"
	"github.com/johnwards/pipemon/internal/dcl"
	"github.com/johnwards/pipemon/internal/domain"
	"github.com/johnwards/pipemon/internal/schema"
	"github.com/johnwards/pipemon/internal/seed"
	"github.com/johnwards/pipemon/internal/workflow"
)

// ErrHealthStoreOffline is returned by seeding operations when the health
// store has no live session.
var ErrHealthStoreOffline = errors.New("health store not connected")

// App is the assembled monitor.
type App struct {
	Registry  *dcl.Registry
	Mapper    *schema.Mapper
	Pipeline  *workflow.PipelineHealth
	Integrity *workflow.CRMIntegrity
	Alerts    *alert.Sender

	CRM    *crm.Connector
	Health *health.Connector
	Usage  *usage.Connector
}

type options struct {
	crm    []crm.Option
	health []health.Option
	usage  []usage.Option
	alert  []alert.Option
	flow   []workflow.Option
	life   []connector.Option

	skipPopulate bool
}

// Option customizes construction, mostly for tests.
type Option func(*options)

// WithCRMOptions passes options to the CRM connector.
func WithCRMOptions(opts ...crm.Option) Option {
	return func(o *options) { o.crm = append(o.crm, opts...) }
}

// WithHealthOptions passes options to the health connector.
func WithHealthOptions(opts ...health.Option) Option {
	return func(o *options) { o.health = append(o.health, opts...) }
}

// WithUsageOptions passes options to the usage connector.
func WithUsageOptions(opts ...usage.Option) Option {
	return func(o *options) { o.usage = append(o.usage, opts...) }
}

// WithAlertOptions passes options to the alert sender.
func WithAlertOptions(opts ...alert.Option) Option {
	return func(o *options) { o.alert = append(o.alert, opts...) }
}

// WithoutUsagePopulation leaves the usage store as found instead of filling
// gaps from the CRM accounts at startup.
func WithoutUsagePopulation() Option {
	return func(o *options) { o.skipPopulate = true }
}

// WithClock sets the clock used by the workflows and connectors.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.flow = append(o.flow, workflow.WithClock(now))
		o.life = append(o.life, connector.WithClock(now))
	}
}

// New connects every source and registers it. A source that fails to connect
// is still registered with its handle so it can be reconnected later; its
// queries fail until then.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	life := append([]connector.Option{connector.WithHealthTTL(cfg.HealthTTL)}, o.life...)

	a := &App{
		Registry: dcl.NewRegistry(),
		Mapper:   schema.NewMapper(workflow.SourceCRM, workflow.SourceHealth, workflow.SourceUsage),
	}

	crmOpts := append([]crm.Option{crm.WithLifecycle(life...)}, o.crm...)
	_, md, c, err := crm.Factory(ctx, workflow.SourceCRM, crm.Credentials{
		Username:      cfg.Salesforce.Username,
		Password:      cfg.Salesforce.Password,
		SecurityToken: cfg.Salesforce.SecurityToken,
		Domain:        cfg.Salesforce.Domain,
		ClientID:      cfg.Salesforce.ClientID,
		ClientSecret:  cfg.Salesforce.ClientSecret,
		LoginURL:      cfg.Salesforce.LoginURL,
		APIVersion:    cfg.Salesforce.APIVersion,
	}, cfg.AllowMock, crmOpts...)
	a.CRM = c
	a.register(workflow.SourceCRM, c.Query, md, c, err)

	healthOpts := append([]health.Option{health.WithLifecycle(life...)}, o.health...)
	_, md, h, err := health.Factory(ctx, workflow.SourceHealth, health.Credentials{
		DatabaseURL: cfg.Health.DatabaseURL,
		AutoMigrate: cfg.Health.AutoMigrate,
	}, cfg.AllowMock, healthOpts...)
	a.Health = h
	a.register(workflow.SourceHealth, h.Query, md, h, err)

	usageOpts := []usage.Option{usage.WithLifecycle(life...)}
	if cfg.UsageSeed != 0 {
		usageOpts = append(usageOpts, usage.WithSeed(cfg.UsageSeed))
	}
	usageOpts = append(usageOpts, o.usage...)
	_, md, u, err := usage.Factory(ctx, workflow.SourceUsage, usage.Credentials{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	}, cfg.AllowMock, usageOpts...)
	a.Usage = u
	a.register(workflow.SourceUsage, u.Query, md, u, err)

	if cfg.SchemaMappings != "" {
		if err := a.loadMappings(cfg.SchemaMappings); err != nil {
			a.Close(ctx)
			return nil, err
		}
	}

	a.Pipeline = workflow.NewPipelineHealth(a.Registry, o.flow...)
	a.Integrity = workflow.NewCRMIntegrity(a.Registry, o.flow...)

	alertOpts := []alert.Option{alert.WithChannel(cfg.Slack.Channel), alert.WithRate(cfg.Slack.RatePerSecond)}
	a.Alerts = alert.New(cfg.Slack.WebhookURL, append(alertOpts, o.alert...)...)

	if o.skipPopulate {
		return a, nil
	}
	if n := a.PopulateUsage(ctx); n > 0 {
		slog.Info("populated usage data", "connector", workflow.SourceUsage, "accounts", n)
	}
	return a, nil
}

func (a *App) register(name string, q connector.QueryFunc, md connector.Metadata, h connector.Handle, err error) {
	if err != nil {
		slog.Error("connector registered without a live session", "connector", name, "error", err)
	}
	a.Registry.Register(name, q, md, h)
}

func (a *App) loadMappings(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open schema mappings: %w", err)
	}
	defer f.Close()
	n, err := a.Mapper.LoadMappings(f)
	if err != nil {
		return fmt.Errorf("load schema mappings %s: %w", path, err)
	}
	slog.Info("loaded schema mappings", "path", path, "mappings", n)
	return nil
}

// PopulateUsage synthesizes usage for every CRM account that has none and
// returns how many accounts were populated. CRM failures are logged.
func (a *App) PopulateUsage(ctx context.Context) int {
	accounts, err := a.CRM.Accounts(ctx)
	if err != nil {
		slog.Warn("could not list accounts for usage population", "connector", workflow.SourceCRM, "error", err)
		return 0
	}
	ids := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		ids = append(ids, acc.String(domain.FieldID))
	}
	return a.Usage.PopulateFromAccounts(ctx, ids)
}

// SeedHealth migrates and seeds the health store.
func (a *App) SeedHealth(ctx context.Context) error {
	db, err := a.healthDB()
	if err != nil {
		return err
	}
	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if err := seed.Seed(ctx, db); err != nil {
		return fmt.Errorf("seed data: %w", err)
	}
	return nil
}

// ResetHealth clears the health store and reseeds it.
func (a *App) ResetHealth(ctx context.Context) error {
	db, err := a.healthDB()
	if err != nil {
		return err
	}
	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if err := seed.Reset(ctx, db); err != nil {
		return fmt.Errorf("reset data: %w", err)
	}
	return nil
}

func (a *App) healthDB() (*database.DB, error) {
	db := a.Health.DB()
	if db == nil {
		return nil, ErrHealthStoreOffline
	}
	return db, nil
}

// UnmappedFields queries source and reports the fields its records carry
// that have no mapping for entity.
func (a *App) UnmappedFields(ctx context.Context, source, entity string) ([]string, error) {
	res, err := a.Registry.Query(ctx, source, connector.Query{})
	if err != nil {
		return nil, err
	}
	recs := res.Records
	if res.Kind == connector.KindKeyed {
		recs = make([]domain.Record, 0, len(res.Keyed))
		for id, r := range res.Keyed {
			rec := r.Clone()
			rec["account_id"] = id
			recs = append(recs, rec)
		}
	}
	return a.Mapper.UnmappedFields(recs, source, entity), nil
}

// Close releases every connector.
func (a *App) Close(ctx context.Context) {
	a.Registry.Close(ctx)
}
