package connector

import (
	"context"
	"time"

	"github.com/crimson-sun/auditpull/internal/connector/httpclient"
	"github.com/crimson-sun/auditpull/internal/model"
)

// Connector defines the interface all audit-log source connectors must implement.
type Connector interface {
	// Query fetches every record with effective time >= params.Since,
	// oldest first. Any error is terminal for the run; partial results are
	// never returned.
	Query(ctx context.Context, cfg ConnectorConfig, params QueryParams) ([]model.RawRecord, error)
}

// ConnectorConfig holds provider-specific connection settings.
type ConnectorConfig struct {
	Provider      string
	APIKey        string
	OrgID         string
	Endpoint      string
	Extra         map[string]string
	ClientOptions []httpclient.Option
}

// QueryParams defines the window and page size for a query.
type QueryParams struct {
	Since    time.Time
	PageSize int
	// Warn, when set, receives conditions the consumer should see that do
	// not fail the query, such as records that could not be reached.
	Warn func(message string)
}
