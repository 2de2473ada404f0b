// Package azclient builds the azcore HTTP pipelines used to reach Azure AI services
// and maps their failures onto collaborator errors.
package azclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/opensource-finance/harpia/internal/domain"
)

const (
	moduleName    = "harpia"
	moduleVersion = "v1.0.0"

	cognitiveServicesScope = "https://cognitiveservices.azure.com/.default"
)

// Options configures a pipeline.
type Options struct {
	// Endpoint is only used to decide whether plain HTTP is acceptable.
	Endpoint string

	// KeyHeader and Key authenticate with an API key.
	KeyHeader string
	Key       string

	// UseEntraID authenticates with the default Azure credential chain instead of a key.
	UseEntraID bool

	// Transport overrides the HTTP client, mainly for tests.
	Transport policy.Transporter
}

// Client sends requests for one collaborator through an azcore pipeline.
// Retries are disabled: a failed call is reported, not repeated.
type Client struct {
	collaborator string
	pipeline     runtime.Pipeline
}

// New creates a client for the named collaborator.
func New(collaborator string, opts Options) (*Client, error) {
	var auth policy.Policy
	switch {
	case opts.Key != "":
		cred := azcore.NewKeyCredential(opts.Key)
		auth = runtime.NewKeyCredentialPolicy(cred, opts.KeyHeader, &runtime.KeyCredentialPolicyOptions{
			InsecureAllowCredentialWithHTTP: strings.HasPrefix(opts.Endpoint, "http://"),
		})
	case opts.UseEntraID:
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", err)
		}
		auth = runtime.NewBearerTokenPolicy(cred, []string{cognitiveServicesScope}, nil)
	default:
		return nil, fmt.Errorf("%s: no credential configured", collaborator)
	}

	clientOpts := &policy.ClientOptions{
		Retry: policy.RetryOptions{MaxRetries: -1},
	}
	if opts.Transport != nil {
		clientOpts.Transport = opts.Transport
	}

	pl := runtime.NewPipeline(moduleName, moduleVersion, runtime.PipelineOptions{
		PerCall: []policy.Policy{auth},
	}, clientOpts)

	return &Client{collaborator: collaborator, pipeline: pl}, nil
}

// Do sends a request and returns the response when its status is one of expected.
// Any other outcome is returned as a *domain.CollaboratorError and the body is closed.
func (c *Client) Do(ctx context.Context, method, url string, body []byte, contentType string, expected ...int) (*http.Response, error) {
	req, err := runtime.NewRequest(ctx, method, url)
	if err != nil {
		return nil, domain.NewCollaboratorError(c.collaborator, domain.FailureBadData, "invalid request", err)
	}
	req.Raw().Header.Set("Accept", "application/json")
	if body != nil {
		if err := req.SetBody(streaming.NopCloser(bytes.NewReader(body)), contentType); err != nil {
			return nil, domain.NewCollaboratorError(c.collaborator, domain.FailureBadData, "invalid request body", err)
		}
	}

	resp, err := c.pipeline.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return nil, domain.TransportError(c.collaborator, err)
	}

	if !runtime.HasStatusCode(resp, expected...) {
		return nil, c.statusError(resp)
	}
	return resp, nil
}

// DecodeJSON decodes a response body and closes it.
func (c *Client) DecodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if err := runtime.UnmarshalAsJSON(resp, v); err != nil {
		return domain.NewCollaboratorError(c.collaborator, domain.FailureBadData, "malformed response", err)
	}
	return nil
}

func (c *Client) statusError(resp *http.Response) error {
	defer resp.Body.Close()
	respErr := runtime.NewResponseError(resp)

	var azErr *azcore.ResponseError
	if errors.As(respErr, &azErr) {
		msg := fmt.Sprintf("unexpected status %d", azErr.StatusCode)
		if azErr.ErrorCode != "" {
			msg = fmt.Sprintf("%s (%s)", msg, azErr.ErrorCode)
		}
		return domain.NewCollaboratorError(c.collaborator, domain.StatusCategory(azErr.StatusCode), msg, respErr)
	}
	return domain.NewCollaboratorError(c.collaborator, domain.StatusCategory(resp.StatusCode),
		fmt.Sprintf("unexpected status %d", resp.StatusCode), respErr)
}
