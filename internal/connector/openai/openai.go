// Package openai implements the connector for the OpenAI organization
// audit-log API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/gorilla/schema"

	"github.com/crimson-sun/auditpull/internal/connector"
	"github.com/crimson-sun/auditpull/internal/connector/dedup"
	"github.com/crimson-sun/auditpull/internal/connector/httpclient"
	"github.com/crimson-sun/auditpull/internal/model"
)

const (
	Provider        = "openai"
	defaultEndpoint = "https://api.openai.com"
	auditLogsPath   = "/v1/organization/audit_logs"

	// PageSize is the number of records requested per call.
	PageSize = 100
)

func init() {
	connector.Register(Provider, func() connector.Connector {
		return &Connector{}
	})
}

// Connector implements the connector.Connector interface for the audit-log API.
type Connector struct{}

type auditLogsQuery struct {
	Limit          int   `schema:"limit"`
	EffectiveAtGTE int64 `schema:"effective_at[gte]"`
}

// auditLogsResponse lists records newest first.
type auditLogsResponse struct {
	Data    []json.RawMessage `json:"data"`
	HasMore bool              `json:"has_more"`
}

var queryEncoder = schema.NewEncoder()

func (c *Connector) Query(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) ([]model.RawRecord, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai connector: missing API key")
	}

	baseURL := cfg.Endpoint
	if baseURL == "" {
		baseURL = defaultEndpoint
	}
	client := httpclient.New(baseURL, cfg.APIKey, cfg.ClientOptions...)

	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = PageSize
	}
	cursor := params.Since.Unix()
	if cursor < 0 {
		cursor = 0
	}

	var results []model.RawRecord
	seen := dedup.New()

	for page := 1; ; page++ {
		q := url.Values{}
		if err := queryEncoder.Encode(auditLogsQuery{Limit: pageSize, EffectiveAtGTE: cursor}, q); err != nil {
			return nil, fmt.Errorf("openai connector: encode query: %w", err)
		}

		var resp auditLogsResponse
		if err := client.GetJSON(ctx, auditLogsPath, q, &resp); err != nil {
			return nil, fmt.Errorf("openai connector: page %d: %w", page, err)
		}
		if len(resp.Data) == 0 {
			break
		}

		records, err := decodePage(resp.Data)
		if err != nil {
			return nil, fmt.Errorf("openai connector: page %d: %w", page, err)
		}

		// The inclusive cursor can return the boundary record again.
		fresh := seen.DeduplicateBatch(records)
		results = append(results, fresh...)
		added := len(fresh)

		slog.Debug("fetched page",
			"connector", Provider,
			"page", page,
			"cursor", cursor,
			"records", len(records),
			"new", added,
			"has_more", resp.HasMore)

		if !resp.HasMore {
			break
		}
		if added == 0 {
			// More than a page of records share the cursor second; the
			// inclusive cursor cannot move past them.
			slog.Warn("page repeated already-seen records, stopping pagination",
				"connector", Provider, "page", page, "cursor", cursor)
			if params.Warn != nil {
				params.Warn(fmt.Sprintf("pagination stalled at effective_at %d: more than %d records share that second, the rest were not fetched", cursor, pageSize))
			}
			break
		}

		last := records[len(records)-1]
		next, err := last.EffectiveAt()
		if err != nil {
			return nil, &httpclient.ProtocolError{
				Op:  "advance cursor",
				Err: fmt.Errorf("record %q: %w", last.ID(), err),
			}
		}
		cursor = next
	}

	return results, nil
}

// decodePage decodes a newest-first page and returns it oldest first.
func decodePage(data []json.RawMessage) ([]model.RawRecord, error) {
	records := make([]model.RawRecord, len(data))
	for i, item := range data {
		rec, err := model.DecodeRawRecord(item)
		if err != nil {
			return nil, &httpclient.ProtocolError{
				Op:  "decode record",
				Err: fmt.Errorf("item %d: %w", i, err),
			}
		}
		records[len(data)-1-i] = rec
	}
	return records, nil
}
