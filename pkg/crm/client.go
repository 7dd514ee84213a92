// Package crm reads customer records from the CRM's REST API.
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fescue/pkg/apperrors"
	"github.com/Ramsey-B/fescue/pkg/models"
	"github.com/Ramsey-B/fescue/pkg/tracing"
	"github.com/jmespath/go-jmespath"
)

const sourceName = "crm_api"

// maxPages stops a misbehaving cursor from paging forever.
const maxPages = 10000

// Config describes where the CRM lives and how to read its payloads.
// The *Path fields are JMESPath expressions evaluated against response bodies.
type Config struct {
	BaseURL        string
	APIKey         string
	PageSize       int
	RecordsPath    string
	NextCursorPath string
	Fields         FieldPaths
	HTTP           HTTPConfig
}

// FieldPaths locate the typed customer fields inside a record.
type FieldPaths struct {
	ID           string
	Name         string
	Email        string
	PhoneNumber  string
	StableHashID string
	UpdatedAt    string
}

func DefaultConfig() Config {
	return Config{
		PageSize:       500,
		RecordsPath:    "data",
		NextCursorPath: "meta.next_cursor",
		Fields: FieldPaths{
			ID:           "id",
			Name:         "name",
			Email:        "email",
			PhoneNumber:  "phone_number",
			StableHashID: "stable_hash_id",
			UpdatedAt:    "updated_at",
		},
		HTTP: DefaultHTTPConfig(),
	}
}

type compiledFields struct {
	id, name, email, phone, stableHash, updatedAt *jmespath.JMESPath
}

type Client struct {
	cfg        Config
	http       *httpClient
	logger     ectologger.Logger
	records    *jmespath.JMESPath
	nextCursor *jmespath.JMESPath
	fields     compiledFields
}

// NewClient compiles the configured expressions; an invalid expression is a configuration error.
func NewClient(cfg Config, logger ectologger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("crm base url is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultConfig().PageSize
	}

	c := &Client{
		cfg:    cfg,
		http:   newHTTPClient(cfg.HTTP, logger),
		logger: logger,
	}

	var err error
	compile := func(name, expression string) *jmespath.JMESPath {
		if err != nil || expression == "" {
			return nil
		}
		var compiled *jmespath.JMESPath
		compiled, err = jmespath.Compile(expression)
		if err != nil {
			err = fmt.Errorf("invalid %s expression %q: %w", name, expression, err)
		}
		return compiled
	}

	c.records = compile("records", cfg.RecordsPath)
	c.nextCursor = compile("next cursor", cfg.NextCursorPath)
	c.fields = compiledFields{
		id:         compile("id", cfg.Fields.ID),
		name:       compile("name", cfg.Fields.Name),
		email:      compile("email", cfg.Fields.Email),
		phone:      compile("phone number", cfg.Fields.PhoneNumber),
		stableHash: compile("stable hash id", cfg.Fields.StableHashID),
		updatedAt:  compile("updated at", cfg.Fields.UpdatedAt),
	}
	if err != nil {
		return nil, err
	}
	if c.fields.id == nil {
		return nil, fmt.Errorf("crm id field path is required")
	}

	return c, nil
}

// ListCustomers pages through every customer in the CRM.
func (c *Client) ListCustomers(ctx context.Context) ([]models.ExternalCustomer, error) {
	ctx, span := tracing.StartSpan(ctx, "crm.Client.ListCustomers")
	defer span.End()

	var customers []models.ExternalCustomer
	cursor := ""
	for page := 0; page < maxPages; page++ {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(c.cfg.PageSize))
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		body, err := c.getJSON(ctx, "/customers", query)
		if err != nil {
			return nil, apperrors.NewExternalFetchError(sourceName, err)
		}

		batch, err := c.extractCustomers(body)
		if err != nil {
			return nil, apperrors.NewExternalFetchError(sourceName, err)
		}
		customers = append(customers, batch...)

		cursor = c.searchString(c.nextCursor, body)
		if cursor == "" || len(batch) == 0 {
			break
		}
	}

	c.logger.WithContext(ctx).WithField("customers", len(customers)).Debug("Fetched CRM customers")
	return customers, nil
}

// CustomerExistsByID reports whether the CRM still has a customer with this id.
func (c *Client) CustomerExistsByID(ctx context.Context, id string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "crm.Client.CustomerExistsByID")
	defer span.End()

	resp, err := c.http.get(ctx, c.cfg.BaseURL+"/customers/"+url.PathEscape(id), c.headers())
	if err != nil {
		return false, apperrors.NewExternalFetchError(sourceName, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	default:
		return false, apperrors.NewExternalFetchError(sourceName, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}

// CustomerExistsByStableHash reports whether any CRM customer carries this stable hash id.
func (c *Client) CustomerExistsByStableHash(ctx context.Context, stableHashID string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "crm.Client.CustomerExistsByStableHash")
	defer span.End()

	query := url.Values{}
	query.Set("stable_hash_id", stableHashID)
	query.Set("limit", "1")

	body, err := c.getJSON(ctx, "/customers", query)
	if err != nil {
		return false, apperrors.NewExternalFetchError(sourceName, err)
	}

	customers, err := c.extractCustomers(body)
	if err != nil {
		return false, apperrors.NewExternalFetchError(sourceName, err)
	}

	for _, customer := range customers {
		if customer.StableHash() == stableHashID {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) headers() map[string]string {
	headers := map[string]string{"Accept": "application/json"}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}
	return headers
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values) (any, error) {
	target := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	resp, err := c.http.get(ctx, target, c.headers())
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	var body any
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return body, nil
}

func (c *Client) extractCustomers(body any) ([]models.ExternalCustomer, error) {
	raw := body
	if c.records != nil {
		var err error
		raw, err = c.records.Search(body)
		if err != nil {
			return nil, fmt.Errorf("failed to extract records: %w", err)
		}
	}
	if raw == nil {
		return nil, nil
	}

	records, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("records expression returned %T, expected a list", raw)
	}

	customers := make([]models.ExternalCustomer, 0, len(records))
	for _, item := range records {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}

		id := c.searchString(c.fields.id, record)
		if id == "" {
			continue
		}

		customer := models.ExternalCustomer{
			ID:           id,
			Name:         c.searchString(c.fields.name, record),
			Email:        optional(c.searchString(c.fields.email, record)),
			PhoneNumber:  optional(c.searchString(c.fields.phone, record)),
			StableHashID: optional(c.searchString(c.fields.stableHash, record)),
			Data:         record,
		}
		if updated := c.searchString(c.fields.updatedAt, record); updated != "" {
			if ts, err := time.Parse(time.RFC3339, updated); err == nil {
				customer.UpdatedAt = ts
			}
		}
		customers = append(customers, customer)
	}
	return customers, nil
}

func (c *Client) searchString(expression *jmespath.JMESPath, data any) string {
	if expression == nil {
		return ""
	}
	result, err := expression.Search(data)
	if err != nil || result == nil {
		return ""
	}
	switch v := result.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
