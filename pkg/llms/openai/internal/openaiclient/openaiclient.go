package openaiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/agentic", "openai")

const (
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultChatModel = "gpt-5-mini"
	DefaultMaxTokens = 2 * 16384
)

// ErrEmptyResponse is returned when the API returns an empty response.
var ErrEmptyResponse = errors.New("empty response")

type ProviderType string

const (
	ProviderOpenAI     ProviderType = "OPENAI"
	ProviderAzure      ProviderType = "AZURE"
	ProviderSelfHosted ProviderType = "SELF_HOSTED"
)

// Client is a client for the OpenAI chat completions API and compatible
// endpoints (Azure OpenAI, vLLM, llama.cpp).
type Client struct {
	Model    string
	Provider ProviderType

	token        string
	baseURL      string
	organization string
	apiVersion   string
	httpClient   Doer
}

// Option is an option for the OpenAI client.
type Option func(*Client) error

// Doer performs a HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// New returns a new OpenAI client.
func New(provider ProviderType, model string, token string, baseURL string, organization string,
	apiVersion string, httpClient Doer,
	opts ...Option,
) (*Client, error) {
	c := &Client{
		Model:        model,
		token:        token,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		organization: organization,
		Provider:     provider,
		apiVersion:   apiVersion,
		httpClient:   httpClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// ModelsResponse is the response of the models listing endpoint.
type ModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ListModels returns the model identifiers available at the endpoint.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	u := c.buildURL("/models", c.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	c.setHeaders(req)

	r, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer func() { _ = r.Body.Close() }()

	if r.StatusCode != http.StatusOK {
		return nil, c.decodeError(r, u)
	}

	var resp ModelsResponse
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	ids := make([]string, 0, len(resp.Data))
	for _, m := range resp.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func IsAzure(apiType ProviderType) bool {
	return apiType == ProviderAzure
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.Provider == ProviderAzure {
		req.Header.Set("api-key", c.token)
	} else if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.organization != "" {
		req.Header.Set("OpenAI-Organization", c.organization)
	}
}

func (c *Client) buildURL(suffix string, model string) string {
	if IsAzure(c.Provider) {
		// azure example url:
		// /openai/deployments/{model}/chat/completions?api-version={api_version}
		return fmt.Sprintf("%s/openai/deployments/%s%s?api-version=%s",
			strings.TrimRight(c.baseURL, "/"), model, suffix, c.apiVersion,
		)
	}
	return fmt.Sprintf("%s%s", c.baseURL, suffix)
}

type errorMessage struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *Client) decodeError(r *http.Response, u string) error {
	msg := fmt.Sprintf("API returned unexpected status code: %d", r.StatusCode)
	if r.StatusCode == http.StatusNotFound {
		msg += ": url: " + u
	}
	var errResp errorMessage
	if err := json.NewDecoder(r.Body).Decode(&errResp); err != nil {
		return errors.New(msg)
	}
	return errors.Errorf("%s: %s", msg, errResp.Error.Message)
}
