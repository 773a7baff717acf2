// Package crm connects to the Salesforce REST API and serves opportunities
// and accounts as records keyed by Salesforce field names.
package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/johnwards/pipemon/internal/connector"
	"github.com/johnwards/pipemon/internal/domain"
)

const (
	// Type and Description are reported in the connector metadata.
	Type        = "Salesforce CRM"
	Description = "Salesforce - Opportunities, Accounts, Leads"

	DefaultDomain     = "test"
	DefaultAPIVersion = "v59.0"

	// OpenOpportunitiesQuery is used when a query carries no SOQL text.
	OpenOpportunitiesQuery = "SELECT Id, Name, AccountId, StageName, Amount, CloseDate, " +
		"Probability, Type, LeadSource, Account.Name " +
		"FROM Opportunity WHERE IsClosed = false ORDER BY CloseDate ASC LIMIT 100"

	accountsQuery = "SELECT Id, Name, Type, Industry, AnnualRevenue, NumberOfEmployees " +
		"FROM Account WHERE IsDeleted = false LIMIT 100"

	stageQuery = "SELECT Id, Name, AccountId, StageName, Amount, CloseDate " +
		"FROM Opportunity WHERE IsClosed = false"
)

// Credentials configure the OAuth2 username-password flow.
type Credentials struct {
	Username      string
	Password      string
	SecurityToken string
	Domain        string
	ClientID      string
	ClientSecret  string
	// LoginURL overrides the token endpoint derived from Domain.
	LoginURL   string
	APIVersion string
}

func (c Credentials) tokenURL() string {
	if c.LoginURL != "" {
		return strings.TrimRight(c.LoginURL, "/") + "/services/oauth2/token"
	}
	domain := c.Domain
	if domain == "" {
		domain = DefaultDomain
	}
	return fmt.Sprintf("https://%s.salesforce.com/services/oauth2/token", domain)
}

// APIError is a non-2xx response from the REST API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("salesforce api %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("salesforce api %d: %s", e.StatusCode, e.Message)
}

// Option configures a Connector.
type Option func(*Connector)

// WithHTTPClient sets the client used for the token exchange and API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Connector) { c.base = hc }
}

// WithLifecycle passes options to the underlying connector.Lifecycle.
func WithLifecycle(opts ...connector.Option) Option {
	return func(c *Connector) { c.lifecycleOpts = append(c.lifecycleOpts, opts...) }
}

// Connector is the Salesforce source.
type Connector struct {
	*connector.Lifecycle

	creds         Credentials
	base          *http.Client
	lifecycleOpts []connector.Option

	mu       sync.RWMutex
	client   *http.Client
	instance string
}

// New builds a disconnected Connector.
func New(name string, creds Credentials, allowMock bool, opts ...Option) *Connector {
	if creds.APIVersion == "" {
		creds.APIVersion = DefaultAPIVersion
	}
	c := &Connector{
		creds: creds,
		base:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Lifecycle = connector.NewLifecycle(name, allowMock, connector.Hooks{
		Credentials: c.checkCredentials,
		Open:        c.open,
		Probe:       c.probe,
		Release:     c.release,
	}, c.lifecycleOpts...)
	return c
}

// Factory builds and connects a Connector. The error is non-nil only when
// mock fallback is disabled and the connection could not be opened.
func Factory(ctx context.Context, name string, creds Credentials, allowMock bool, opts ...Option) (connector.QueryFunc, connector.Metadata, *Connector, error) {
	c := New(name, creds, allowMock, opts...)
	if err := c.Connect(ctx); err != nil {
		return nil, c.Metadata(), c, err
	}
	return c.Query, c.Metadata(), c, nil
}

// Metadata describes the connector with its current status.
func (c *Connector) Metadata() connector.Metadata {
	return c.Describe(Type, Description)
}

func (c *Connector) checkCredentials() error {
	return connector.RequireCredentials(c.Name(),
		connector.Credential{Name: "SALESFORCE_USERNAME", Value: c.creds.Username},
		connector.Credential{Name: "SALESFORCE_PASSWORD", Value: c.creds.Password},
		connector.Credential{Name: "SALESFORCE_CLIENT_ID", Value: c.creds.ClientID},
		connector.Credential{Name: "SALESFORCE_CLIENT_SECRET", Value: c.creds.ClientSecret},
	)
}

func (c *Connector) open(ctx context.Context) error {
	cfg := &oauth2.Config{
		ClientID:     c.creds.ClientID,
		ClientSecret: c.creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.creds.tokenURL(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.base)

	tok, err := cfg.PasswordCredentialsToken(ctx, c.creds.Username, c.creds.Password+c.creds.SecurityToken)
	if err != nil {
		return fmt.Errorf("password grant: %w", err)
	}
	instance, _ := tok.Extra("instance_url").(string)
	if instance == "" {
		return errors.New("token response missing instance_url")
	}

	c.mu.Lock()
	c.client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok))
	c.client.Timeout = c.base.Timeout
	c.instance = strings.TrimRight(instance, "/")
	c.mu.Unlock()
	return nil
}

func (c *Connector) release(context.Context) error {
	c.mu.Lock()
	c.client = nil
	c.instance = ""
	c.mu.Unlock()
	return nil
}

func (c *Connector) session() (*http.Client, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.client == nil {
		return nil, "", connector.ErrNotConnected
	}
	return c.client, c.instance, nil
}

func (c *Connector) probe(ctx context.Context) error {
	var limits map[string]any
	return c.get(ctx, c.dataPath("/limits"), &limits)
}

func (c *Connector) dataPath(p string) string {
	return "/services/data/" + c.creds.APIVersion + p
}

func (c *Connector) get(ctx context.Context, path string, out any) error {
	client, instance, err := c.session()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, instance+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}

	var errs []struct {
		Message   string `json:"message"`
		ErrorCode string `json:"errorCode"`
	}
	if json.Unmarshal(body, &errs) == nil && len(errs) > 0 {
		apiErr.Code = errs[0].ErrorCode
		apiErr.Message = errs[0].Message
	}
	return apiErr
}

type queryResponse struct {
	TotalSize      int              `json:"totalSize"`
	Done           bool             `json:"done"`
	NextRecordsURL string           `json:"nextRecordsUrl"`
	Records        []map[string]any `json:"records"`
}

// soql runs a query and follows nextRecordsUrl until the result set is
// exhausted.
func (c *Connector) soql(ctx context.Context, stmt string) ([]domain.Record, error) {
	path := c.dataPath("/query?q=" + url.QueryEscape(stmt))
	records := []domain.Record{}
	for path != "" {
		var page queryResponse
		if err := c.get(ctx, path, &page); err != nil {
			return nil, err
		}
		for _, raw := range page.Records {
			records = append(records, clean(raw))
		}
		path = ""
		if !page.Done {
			path = page.NextRecordsURL
		}
	}
	return records, nil
}

// clean drops Salesforce's attributes envelope and flattens the related
// Account name into AccountName.
func clean(raw map[string]any) domain.Record {
	rec := make(domain.Record, len(raw))
	for k, v := range raw {
		if k == "attributes" {
			continue
		}
		rec[k] = v
	}
	if acct, ok := rec["Account"]; ok {
		if m, ok := acct.(map[string]any); ok {
			name, _ := m["Name"].(string)
			rec[domain.FieldAccountName] = name
		}
		delete(rec, "Account")
	}
	return rec
}

// EscapeSOQL escapes a value for use inside a single-quoted SOQL literal.
func EscapeSOQL(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return r.Replace(s)
}

// Query runs q.Text as SOQL, or the open-opportunities query when empty. A
// non-empty AccountID narrows the default query to that account.
func (c *Connector) Query(ctx context.Context, q connector.Query) (connector.Result, error) {
	stmt := strings.TrimSpace(q.Text)
	if stmt == "" {
		stmt = OpenOpportunitiesQuery
		if q.AccountID != "" {
			stmt = strings.Replace(OpenOpportunitiesQuery, "WHERE IsClosed = false",
				"WHERE IsClosed = false AND AccountId = '"+EscapeSOQL(q.AccountID)+"'", 1)
		}
	}
	return c.run(ctx, stmt, func() []domain.Record {
		recs := MockOpportunities(c.Now())
		if q.AccountID == "" {
			return recs
		}
		return filter(recs, domain.FieldAccountID, q.AccountID)
	})
}

// Accounts returns up to 100 active accounts.
func (c *Connector) Accounts(ctx context.Context) ([]domain.Record, error) {
	res, err := c.run(ctx, accountsQuery, func() []domain.Record { return MockAccounts(c.Now()) })
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// OpportunitiesByStage returns open opportunities, optionally filtered to one
// stage.
func (c *Connector) OpportunitiesByStage(ctx context.Context, stage string) ([]domain.Record, error) {
	stmt := stageQuery
	if stage != "" {
		stmt += " AND StageName = '" + EscapeSOQL(stage) + "'"
	}
	res, err := c.run(ctx, stmt, func() []domain.Record {
		recs := MockOpportunities(c.Now())
		if stage == "" {
			return recs
		}
		return filter(recs, domain.FieldStageName, stage)
	})
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

func (c *Connector) run(ctx context.Context, stmt string, fixtures func() []domain.Record) (connector.Result, error) {
	return c.Run(ctx,
		func(ctx context.Context) (connector.Result, error) {
			recs, err := c.soql(ctx, stmt)
			if err != nil {
				return connector.Result{}, fmt.Errorf("salesforce query: %w", err)
			}
			return connector.RecordsResult(recs), nil
		},
		func() connector.Result { return connector.RecordsResult(fixtures()) },
	)
}

func filter(recs []domain.Record, field, value string) []domain.Record {
	out := []domain.Record{}
	for _, r := range recs {
		if r.String(field) == value {
			out = append(out, r)
		}
	}
	return out
}
