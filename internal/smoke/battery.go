// Package smoke implements the post-deployment probe battery.
//
// The battery is a fixed, ordered list of independent HTTP checks against
// the deployed application. Each check declares which status codes it
// accepts; a few inspect the response further (health payload, content
// type, CORS headers, latency). Checks run sequentially and exactly once.
package smoke

import (
	"context"
	"net/http"
	"time"

	"github.com/jandubois/smokecheck/internal/probe"
)

const (
	// SimpleTimeout bounds plain GET/OPTIONS probes and the login probe.
	SimpleTimeout = 10 * time.Second

	// AgentTimeout bounds the chat and agent probes, which invoke an LLM.
	AgentTimeout = 30 * time.Second

	// ResponseTimeSamples is the number of sequential /health calls timed.
	ResponseTimeSamples = 5

	// ResponseTimeThreshold is the exclusive upper bound for the mean latency.
	ResponseTimeThreshold = 2000 * time.Millisecond
)

// Probe names, in battery order.
const (
	NameHealth         = "Health Endpoint"
	NameRoot           = "Root Endpoint"
	NameStaticFiles    = "Static Files"
	NameOpenAPIDocs    = "OpenAPI Docs"
	NameAuthentication = "Authentication Endpoint"
	NameChat           = "Chat Endpoint"
	NameAgent          = "Agent Endpoint"
	NameSalesDashboard = "Sales Dashboard"
	NameAnalytics      = "Analytics Dashboard"
	NameTimeSeries     = "Time Series Endpoint"
	NameAdmin          = "Admin Dashboard"
	NameDatabase       = "Database Connectivity"
	NameCORS           = "CORS Headers"
	NameResponseTime   = "Response Time"
)

type checkFunc func(ctx context.Context, c *Client, chk Check) (map[string]any, error)

// Check pairs a Spec with the logic that evaluates it.
type Check struct {
	Spec probe.Spec
	// Body is sent as JSON when non-nil.
	Body any
	run  checkFunc
}

// chatBody is the minimal payload accepted by the chat endpoints.
type chatBody struct {
	Message   string `json:"message"`
	AgentType string `json:"agent_type"`
}

// Battery returns the checks in execution order. Each call returns a new slice.
func Battery() []Check {
	return []Check{
		{
			Spec: probe.Spec{
				Name:        NameHealth,
				Description: "Health endpoint reports status healthy",
				Group:       probe.GroupCore,
				Method:      http.MethodGet,
				Path:        "/health",
				Timeout:     SimpleTimeout,
				Accept:      probe.CodeSet{http.StatusOK},
			},
			run: checkHealth,
		},
		{
			Spec: probe.Spec{
				Name:        NameRoot,
				Description: "Root page loads or redirects to login",
				Group:       probe.GroupCore,
				Method:      http.MethodGet,
				Path:        "/",
				Timeout:     SimpleTimeout,
				Accept:      probe.CodeSet{http.StatusOK, http.StatusTemporaryRedirect},
			},
			run: checkStatus,
		},
		{
			Spec: probe.Spec{
				Name:        NameStaticFiles,
				Description: "Login page is served as HTML",
				Group:       probe.GroupCore,
				Method:      http.MethodGet,
				Path:        "/login",
				Timeout:     SimpleTimeout,
				Accept:      probe.CodeSet{http.StatusOK},
			},
			run: checkHTML,
		},
		{
			Spec: probe.Spec{
				Name:        NameOpenAPIDocs,
				Description: "OpenAPI documentation is served",
				Group:       probe.GroupCore,
				Method:      http.MethodGet,
				Path:        "/docs",
				Timeout:     SimpleTimeout,
				Accept:      probe.CodeSet{http.StatusOK},
			},
			run: checkStatus,
		},
		{
			Spec: probe.Spec{
				Name:        NameAuthentication,
				Description: "Login endpoint exists and validates input",
				Group:       probe.GroupAuth,
				Method:      http.MethodPost,
				Path:        "/api/auth/login",
				Timeout:     SimpleTimeout,
				Accept:      probe.CodeSet{http.StatusUnprocessableEntity, http.StatusUnauthorized},
				AuthOnly:    true,
			},
			Body: struct{}{},
			run:  checkStatus,
		},
		{
			Spec: probe.Spec{
				Name:        NameChat,
				Description: "Orchestrator chat endpoint is reachable",
				Group:       probe.GroupAPI,
				Method:      http.MethodPost,
				Path:        "/api/chat",
				Timeout:     AgentTimeout,
				Accept:      probe.CodeSet{http.StatusOK, http.StatusUnauthorized, http.StatusUnprocessableEntity},
			},
			Body: chatBody{Message: "test", AgentType: "orchestrator"},
			run:  checkStatus,
		},
		{
			Spec: probe.Spec{
				Name:        NameAgent,
				Description: "Sales agent chat endpoint is reachable",
				Group:       probe.GroupAPI,
				Method:      http.MethodPost,
				Path:        "/api/agent/chat",
				Timeout:     AgentTimeout,
				Accept:      probe.CodeSet{http.StatusOK, http.StatusUnauthorized, http.StatusUnprocessableEntity},
			},
			Body: chatBody{Message: "test", AgentType: "sales"},
			run:  checkStatus,
		},
		{
			Spec: probe.Spec{
				Name:        NameSalesDashboard,
				Description: "Sales summary API is reachable",
				Group:       probe.GroupDashboard,
				Method:      http.MethodGet,
				Path:        "/api/sales/summary",
				Timeout:     SimpleTimeout,
				Accept:      probe.CodeSet{http.StatusOK, http.StatusUnauthorized, http.StatusForbidden},
			},
			run: checkStatus,
		},
		{
			Spec: probe.Spec{
				Name:        NameAnalytics,
				Description: "Analytics metrics API is reachable",
				Group:       probe.GroupDashboard,
				Method:      http.MethodGet,
				Path:        "/api/analytics/metrics",
				Timeout:     SimpleTimeout,
				Accept:      probe.CodeSet{http.StatusOK, http.StatusUnauthorized, http.StatusForbidden},
			},
			run: checkStatus,
		},
		{
			Spec: probe.Spec{
				Name:        NameTimeSeries,
				Description: "Analytics time series API is reachable",
				Group:       probe.GroupDashboard,
				Method:      http.MethodGet,
				Path:        "/api/analytics/timeseries",
				Timeout:     SimpleTimeout,
				Accept:      probe.CodeSet{http.StatusOK, http.StatusUnauthorized, http.StatusForbidden},
			},
			run: checkStatus,
		},
		{
			Spec: probe.Spec{
				Name:        NameAdmin,
				Description: "Admin page loads or redirects to login",
				Group:       probe.GroupDashboard,
				Method:      http.MethodGet,
				Path:        "/admin",
				Timeout:     SimpleTimeout,
				Accept:      probe.CodeSet{http.StatusOK, http.StatusFound, http.StatusTemporaryRedirect},
			},
			run: checkStatus,
		},
		{
			Spec: probe.Spec{
				Name:        NameDatabase,
				Description: "Database diagnostic endpoint responds",
				Group:       probe.GroupInfrastructure,
				Method:      http.MethodGet,
				Path:        "/api/diagnostic/db-test",
				Timeout:     SimpleTimeout,
				Accept:      probe.CodeSet{http.StatusOK, http.StatusUnauthorized, http.StatusServiceUnavailable},
			},
			run: checkDatabase,
		},
		{
			Spec: probe.Spec{
				Name:        NameCORS,
				Description: "Preflight response carries Access-Control-Allow-Origin",
				Group:       probe.GroupInfrastructure,
				Method:      http.MethodOptions,
				Path:        "/health",
				Timeout:     SimpleTimeout,
			},
			run: checkCORS,
		},
		{
			Spec: probe.Spec{
				Name:        NameResponseTime,
				Description: "Mean /health latency over 5 calls is below 2000ms",
				Group:       probe.GroupInfrastructure,
				Method:      http.MethodGet,
				Path:        "/health",
				Timeout:     SimpleTimeout,
			},
			run: checkResponseTime,
		},
	}
}

// Specs returns the battery in execution order.
func Specs() []probe.Spec {
	checks := Battery()
	specs := make([]probe.Spec, len(checks))
	for i, chk := range checks {
		specs[i] = chk.Spec
	}
	return specs
}
