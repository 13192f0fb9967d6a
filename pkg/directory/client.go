// Package directory provides clients for the drug directory service used
// during medication analysis. The directory answers three questions: what is
// the canonical identity of a drug name, is there a known interaction between
// two canonical codes, and is there a known interaction between two drug
// names. Implementations agree on the collaborator contract in
// internal/domain: a miss is (nil, nil), an error means the collaborator
// itself failed and callers should degrade rather than abort.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/medsafety-mcp-server/internal/domain"
)

// Client queries a remote drug directory service over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	retryCount int
}

// NewClient creates a drug directory client from configuration.
func NewClient(config domain.DirectoryConfig) *Client {
	rps := config.RateLimit
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
		retryCount: config.RetryCount,
	}
}

type aliasResponse struct {
	Name          string `json:"name"`
	CanonicalName string `json:"canonicalName"`
	CanonicalCode string `json:"canonicalCode"`
}

type interactionResponse struct {
	DrugA          string   `json:"drugA"`
	DrugB          string   `json:"drugB"`
	Severity       string   `json:"severity"`
	Mechanism      string   `json:"mechanism"`
	Recommendation string   `json:"recommendation"`
	EvidenceLevel  string   `json:"evidenceLevel"`
	Citations      []string `json:"citations"`
}

// LookupAlias resolves a drug name to its canonical identity.
func (c *Client) LookupAlias(ctx context.Context, name string) (*domain.AliasRecord, error) {
	params := url.Values{"name": {name}}

	body, found, err := c.get(ctx, "/v1/aliases", params)
	if err != nil {
		return nil, fmt.Errorf("alias lookup for %q: %w", name, err)
	}
	if !found {
		return nil, nil
	}

	var resp aliasResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse alias response: %w", err)
	}
	if resp.CanonicalName == "" {
		return nil, fmt.Errorf("alias response for %q missing canonical name", name)
	}

	return &domain.AliasRecord{
		CanonicalName: resp.CanonicalName,
		CanonicalCode: resp.CanonicalCode,
	}, nil
}

// LookupInteraction queries the directory for an interaction between two
// canonical drug codes.
func (c *Client) LookupInteraction(ctx context.Context, codeA, codeB string) (*domain.InteractionRecord, error) {
	params := url.Values{"code_a": {codeA}, "code_b": {codeB}}

	body, found, err := c.get(ctx, "/v1/interactions", params)
	if err != nil {
		return nil, fmt.Errorf("interaction lookup for codes %s/%s: %w", codeA, codeB, err)
	}
	if !found {
		return nil, nil
	}

	return c.convertInteraction(body, domain.TierCache)
}

// LookupInteractionByName queries the directory for a curated interaction
// between two drug names.
func (c *Client) LookupInteractionByName(ctx context.Context, nameA, nameB string) (*domain.InteractionRecord, error) {
	params := url.Values{"name_a": {nameA}, "name_b": {nameB}}

	body, found, err := c.get(ctx, "/v1/interactions/by-name", params)
	if err != nil {
		return nil, fmt.Errorf("interaction lookup for names %s/%s: %w", nameA, nameB, err)
	}
	if !found {
		return nil, nil
	}

	return c.convertInteraction(body, domain.TierCurated)
}

// get performs a rate-limited GET against the directory, retrying transient
// failures. found is false when the directory answered 404, which callers
// report as a miss rather than an error.
func (c *Client) get(ctx context.Context, path string, params url.Values) (body []byte, found bool, err error) {
	if c.baseURL == "" {
		return nil, false, fmt.Errorf("directory base URL not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	fullURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	attempts := c.retryCount + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			case <-ctx.Done():
				return nil, false, ctx.Err()
			}
		}

		body, found, lastErr = c.doRequest(ctx, fullURL)
		if lastErr == nil {
			return body, found, nil
		}
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
	}

	return nil, false, lastErr
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, nil
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("drug directory returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read response: %w", err)
	}
	return body, true, nil
}

// convertInteraction maps a directory payload onto the domain record, stamping
// the tier of the lookup path that produced it.
func (c *Client) convertInteraction(body []byte, tier domain.SourceTier) (*domain.InteractionRecord, error) {
	var resp interactionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse interaction response: %w", err)
	}

	severity, err := domain.ParseSeverity(resp.Severity)
	if err != nil {
		return nil, fmt.Errorf("interaction response for %s/%s: %w", resp.DrugA, resp.DrugB, err)
	}

	record := &domain.InteractionRecord{
		DrugA:          resp.DrugA,
		DrugB:          resp.DrugB,
		Severity:       severity,
		Mechanism:      resp.Mechanism,
		Recommendation: resp.Recommendation,
		EvidenceLevel:  resp.EvidenceLevel,
		Citations:      resp.Citations,
		SourceTier:     tier,
	}
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("directory returned invalid interaction: %w", err)
	}
	return record, nil
}
