package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"matchcore/internal/config"
	"matchcore/internal/constants"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
)

// ComputeClient talks to the cloud compute API that hosts game servers.
type ComputeClient struct {
	baseURL  string
	apiKey   string
	provider string
	client   *fasthttp.Client
	logger   zerolog.Logger
}

type Instance struct {
	ID     string `json:"id"`
	IP     string `json:"ip"`
	Port   int    `json:"port"`
	Status string `json:"status"`
}

type createInstanceRequest struct {
	Name        string            `json:"name"`
	Region      string            `json:"region"`
	MachineType string            `json:"machineType"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// StatusError is a non-2xx answer from the compute API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("compute API error: %d %s", e.Code, e.Body)
}

// Temporary reports whether the call may succeed if repeated.
func (e *StatusError) Temporary() bool {
	return e.Code == fasthttp.StatusTooManyRequests || e.Code >= 500
}

func NewComputeClient(cfg *config.Config, logger zerolog.Logger) *ComputeClient {
	return newComputeClient(cfg.ComputeAPIURL, cfg.ComputeAPIKey, cfg.ComputeProvider, &fasthttp.Client{
		MaxConnsPerHost:     100,
		ReadTimeout:         constants.ExternalAPITimeout,
		WriteTimeout:        constants.ExternalAPITimeout,
		MaxIdleConnDuration: 1 * time.Minute,
	}, logger)
}

func newComputeClient(baseURL, apiKey, provider string, client *fasthttp.Client, logger zerolog.Logger) *ComputeClient {
	return &ComputeClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		provider: provider,
		client:   client,
		logger:   logger.With().Str("component", "compute").Logger(),
	}
}

func (c *ComputeClient) Provider() string {
	return c.provider
}

// Provision creates one game server instance named name in region.
func (c *ComputeClient) Provision(ctx context.Context, region, name string, labels map[string]string) (*Instance, error) {
	body, err := json.Marshal(createInstanceRequest{
		Name:        name,
		Region:      region,
		MachineType: "e2-standard-4",
		Labels:      labels,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode instance request: %w", err)
	}

	inst, err := doRequest[Instance](ctx, c, fasthttp.MethodPost, c.baseURL+"/instances", body)
	if err != nil {
		return nil, err
	}
	if inst.ID == "" {
		return nil, errors.New("compute API returned an instance without id")
	}
	if inst.Port == 0 {
		inst.Port = constants.GameServerPort
	}
	return inst, nil
}

// Stop halts an instance. Unknown or already stopped instances are not errors.
func (c *ComputeClient) Stop(ctx context.Context, instanceID string) error {
	_, err := doRequest[struct{}](ctx, c, fasthttp.MethodPost, c.instanceURL(instanceID)+"/stop", nil)
	return ignoreGone(err)
}

// Delete removes an instance. Unknown instances are not errors.
func (c *ComputeClient) Delete(ctx context.Context, instanceID string) error {
	_, err := doRequest[struct{}](ctx, c, fasthttp.MethodDelete, c.instanceURL(instanceID), nil)
	return ignoreGone(err)
}

func (c *ComputeClient) instanceURL(id string) string {
	return c.baseURL + "/instances/" + url.PathEscape(id)
}

func ignoreGone(err error) error {
	var se *StatusError
	if errors.As(err, &se) && (se.Code == fasthttp.StatusNotFound || se.Code == fasthttp.StatusConflict) {
		return nil
	}
	return err
}

func doRequest[T any](ctx context.Context, client *ComputeClient, method, uri string, body []byte) (*T, error) {
	var result T
	backoff := retry.WithMaxRetries(constants.ProviderRetryAttempts-1, retry.NewExponential(constants.ProviderRetryBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(uri)
		req.Header.SetMethod(method)
		req.Header.Set("Authorization", "Bearer "+client.apiKey)
		if body != nil {
			req.Header.SetContentType("application/json")
			req.SetBody(body)
		}

		deadline, ok := ctx.Deadline()
		if !ok {
			deadline = time.Now().Add(constants.ExternalAPITimeout)
		}
		if err := client.client.DoDeadline(req, resp, deadline); err != nil {
			client.logger.Warn().Err(err).Str("method", method).Str("url", uri).Msg("compute request failed")
			return retry.RetryableError(err)
		}

		code := resp.StatusCode()
		if code < 200 || code >= 300 {
			se := &StatusError{Code: code, Body: string(resp.Body())}
			if se.Temporary() {
				client.logger.Warn().Int("status", code).Str("url", uri).Msg("compute API unavailable")
				return retry.RetryableError(se)
			}
			return se
		}

		if len(resp.Body()) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Body(), &result); err != nil {
			return fmt.Errorf("failed to decode compute response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
