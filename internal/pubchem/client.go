// Package pubchem looks up compound structures in PubChem's PUG REST API and
// uses them to fill in missing spectrum annotations.
package pubchem

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the PUG REST base URL.
	BaseURL = "https://pubchem.ncbi.nlm.nih.gov/rest/pug"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// RateLimit is 5 requests per second per PubChem usage policy.
	RateLimit = 5.0

	// Properties requested for every compound.
	Properties = "InChI,InChIKey,IsomericSMILES,CanonicalSMILES,ExactMass,MolecularFormula"

	// Default search depths.
	DefaultNameSearchDepth    = 10
	DefaultFormulaSearchDepth = 25
)

// Client is a rate-limited HTTP client for PUG REST.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithRateLimit sets the request rate in requests per second.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// NewClient creates a new PubChem client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchByName returns up to depth compounds whose synonyms match name.
// No match is an empty result, not an error.
func (c *Client) SearchByName(ctx context.Context, name string, depth int) ([]Compound, error) {
	if depth <= 0 {
		depth = DefaultNameSearchDepth
	}
	path := "/compound/name/" + url.PathEscape(name) + "/property/" + Properties + "/JSON"
	compounds, err := c.properties(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	if len(compounds) > depth {
		compounds = compounds[:depth]
	}
	return compounds, nil
}

// SearchByFormula returns up to depth compounds with the molecular formula.
func (c *Client) SearchByFormula(ctx context.Context, formula string, depth int) ([]Compound, error) {
	if depth <= 0 {
		depth = DefaultFormulaSearchDepth
	}
	path := "/compound/fastformula/" + url.PathEscape(formula) + "/property/" + Properties + "/JSON"
	compounds, err := c.properties(ctx, path, url.Values{"MaxRecords": {strconv.Itoa(depth)}})
	if err != nil {
		return nil, err
	}
	if len(compounds) > depth {
		compounds = compounds[:depth]
	}
	return compounds, nil
}

func (c *Client) properties(ctx context.Context, path string, query url.Values) ([]Compound, error) {
	body, err := c.get(ctx, path, query)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var resp propertyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing property table: %v", ErrInvalidResponse, err)
	}
	return resp.PropertyTable.Properties, nil
}

// get performs a rate-limited GET request and returns the body of a 200 response.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrNetworkError, err)
	}
	if err := checkHTTPErrors(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkHTTPErrors returns an error if the status code indicates a problem.
func checkHTTPErrors(status int, body []byte) error {
	if status == http.StatusOK {
		return nil
	}

	var fault faultResponse
	_ = json.Unmarshal(body, &fault)
	code := fault.Fault.Code
	msg := fault.Fault.Message
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}

	if status == http.StatusTooManyRequests || (status == http.StatusServiceUnavailable && code == "PUGREST.ServerBusy") {
		return fmt.Errorf("%w: status %d", ErrRateLimited, status)
	}
	return &APIError{StatusCode: status, Code: code, Message: msg}
}
