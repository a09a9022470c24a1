package openai

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentic/pkg/llms/openai/internal/openaiclient"
)

const (
	tokenEnvVarName        = "OPENAI_API_KEY"      //nolint:gosec
	modelEnvVarName        = "OPENAI_MODEL"        //nolint:gosec
	baseURLEnvVarName      = "OPENAI_BASE_URL"     //nolint:gosec
	organizationEnvVarName = "OPENAI_ORGANIZATION" //nolint:gosec
)

// DefaultAPIVersion is used for Azure endpoints when none is configured.
const DefaultAPIVersion = "2024-06-01"

type ProviderType = openaiclient.ProviderType

const (
	ProviderOpenAI     = openaiclient.ProviderOpenAI
	ProviderAzure      = openaiclient.ProviderAzure
	ProviderSelfHosted = openaiclient.ProviderSelfHosted
)

type options struct {
	token        string
	model        string
	baseURL      string
	organization string
	provider     openaiclient.ProviderType
	httpClient   openaiclient.Doer

	// required when the provider is Azure
	apiVersion string
}

// Option is a functional option for the OpenAI client.
type Option func(*options)

// WithToken passes the OpenAI API token to the client. If not set, the token
// is read from the OPENAI_API_KEY environment variable.
func WithToken(token string) Option {
	return func(opts *options) {
		opts.token = token
	}
}

// WithModel passes the OpenAI model to the client. If not set, the model
// is read from the OPENAI_MODEL environment variable.
// Required when the provider is Azure.
func WithModel(model string) Option {
	return func(opts *options) {
		opts.model = model
	}
}

// WithBaseURL passes the OpenAI base url to the client. If not set, the base
// url is read from the OPENAI_BASE_URL environment variable. If still not set,
// the default value https://api.openai.com/v1 is used.
func WithBaseURL(baseURL string) Option {
	return func(opts *options) {
		opts.baseURL = baseURL
	}
}

// WithOrganization passes the OpenAI organization to the client. If not set,
// the organization is read from the OPENAI_ORGANIZATION environment variable.
func WithOrganization(organization string) Option {
	return func(opts *options) {
		opts.organization = organization
	}
}

// WithProvider passes the provider type to the client. If not set, the default
// value is ProviderOpenAI. Use ProviderSelfHosted for OpenAI-compatible
// endpoints such as vLLM or llama.cpp.
func WithProvider(provider ProviderType) Option {
	return func(opts *options) {
		opts.provider = provider
	}
}

// WithAPIVersion passes the api version to the client. If not set, the default
// value is DefaultAPIVersion.
func WithAPIVersion(apiVersion string) Option {
	return func(opts *options) {
		opts.apiVersion = apiVersion
	}
}

// WithHTTPClient allows setting a custom HTTP client. If not set, the default
// value is http.DefaultClient.
func WithHTTPClient(client openaiclient.Doer) Option {
	return func(opts *options) {
		opts.httpClient = client
	}
}

func newClient(opts ...Option) (*options, *openaiclient.Client, error) {
	options := &options{
		token:        os.Getenv(tokenEnvVarName),
		model:        os.Getenv(modelEnvVarName),
		baseURL:      os.Getenv(baseURLEnvVarName),
		organization: os.Getenv(organizationEnvVarName),
		provider:     openaiclient.ProviderOpenAI,
		apiVersion:   DefaultAPIVersion,
	}

	for _, opt := range opts {
		opt(options)
	}

	// Self-hosted endpoints often run without authentication.
	if options.token == "" &&
		options.provider != openaiclient.ProviderSelfHosted {
		return options, nil, errors.Errorf("missing the OpenAI API key, set it in the %s environment variable", tokenEnvVarName)
	}

	cli, err := openaiclient.New(options.provider, options.model, options.token, options.baseURL,
		options.organization, options.apiVersion, options.httpClient)
	return options, cli, err
}
