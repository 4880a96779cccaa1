// Package billing talks to the external billing gateway that creates
// billable profiles for paid plans.
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/onboardiq/onboardiq/internal/domain"
)

// Compile-time checks: both gateways implement domain.BillingGateway.
var (
	_ domain.BillingGateway = (*Client)(nil)
	_ domain.BillingGateway = Disabled{}
)

// Client provisions billing profiles over the gateway's HTTP API.
type Client struct {
	http *resty.Client
}

// NewClient creates a gateway client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second).
			SetRetryCount(2),
	}
}

type provisionRequest struct {
	TenantID string `json:"tenant_id"`
	Plan     string `json:"plan"`
}

type provisionResponse struct {
	BillingRef string `json:"billing_ref"`
}

// Provision creates a billable profile for the tenant and returns the
// gateway's reference for it.
func (c *Client) Provision(ctx context.Context, tenantID, plan string) (string, error) {
	var out provisionResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(provisionRequest{TenantID: tenantID, Plan: plan}).
		SetResult(&out).
		Post("/v1/profiles")
	if err != nil {
		return "", fmt.Errorf("calling billing gateway: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("billing gateway returned %s", resp.Status())
	}
	if out.BillingRef == "" {
		return "", fmt.Errorf("billing gateway returned no billing reference")
	}

	return out.BillingRef, nil
}

// Disabled is the gateway used when no billing endpoint is configured
// (development, or deployments that only offer the free plan). It hands
// out a placeholder reference so paid-plan onboarding can still proceed.
type Disabled struct{}

func (Disabled) Provision(_ context.Context, tenantID, _ string) (string, error) {
	return "billing-disabled-" + tenantID, nil
}
