package upwork

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	fhttp "github.com/bogdanfinn/fhttp"
	"github.com/jimezsa/jobpilot/internal/auth"
	"github.com/jimezsa/jobpilot/internal/models"
	"github.com/jimezsa/jobpilot/internal/network"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const DefaultGraphQLURL = "https://api.upwork.com/graphql"

const probeQuery = `query { user { nid } }`

const searchQuery = `query marketplaceJobPostingsSearch(
  $marketPlaceJobFilter: MarketplaceJobPostingsSearchFilter,
  $searchType: MarketplaceJobPostingSearchType,
  $sortAttributes: [MarketplaceJobPostingSearchSortAttribute]
) {
  marketplaceJobPostingsSearch(
    marketPlaceJobFilter: $marketPlaceJobFilter,
    searchType: $searchType,
    sortAttributes: $sortAttributes
  ) {
    totalCount
    edges {
      node {
        id
        ciphertext
        title
        createdDateTime
        description
        durationLabel
        engagement
        experienceLevel
        category
        subcategory
        jobType
        hourlyBudget { min max }
        amount { value currencyCode }
        skills { name }
        client {
          companyName
          country { name }
          totalPostedJobs
          totalReviews
          totalFeedback
          paymentVerificationStatus
          createdDateTime
          totalSpent { currency displayValue }
        }
      }
    }
    pageInfo { endCursor hasNextPage }
  }
}`

// TokenSource is an authorized token source that also reports silent
// refreshes. *auth.Session implements it.
type TokenSource interface {
	oauth2.TokenSource
	TakeRefreshed() *oauth2.Token
}

// SearchResult is one page of raw postings plus a token refreshed while
// fetching it, if any.
type SearchResult struct {
	Records        []RawJob
	TotalCount     int
	NextPageToken  string
	RefreshedToken *oauth2.Token
}

type Option func(*Client)

func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// Client is the marketplace GraphQL client.
type Client struct {
	doer     network.Doer
	endpoint string
	tokens   TokenSource
	limiter  *rate.Limiter
	logger   zerolog.Logger
}

func NewClient(doer network.Doer, opts ...Option) *Client {
	c := &Client{
		doer:     doer,
		endpoint: DefaultGraphQLURL,
		limiter:  rate.NewLimiter(rate.Limit(2), 1),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authorized returns a copy of c that sends requests with tokens from ts.
func (c *Client) Authorized(ts TokenSource) *Client {
	cp := *c
	cp.tokens = ts
	return &cp
}

// Probe implements auth.Prober with a minimal user query.
func (c *Client) Probe(ctx context.Context, ts oauth2.TokenSource) error {
	var resp probeResponse
	if err := c.execute(ctx, ts, probeQuery, nil, &resp); err != nil {
		return err
	}
	if resp.Data.User == nil || resp.Data.User.NID == "" {
		return &ApiError{Err: errors.New("probe returned no user")}
	}
	c.logger.Debug().Str("user", resp.Data.User.NID).Msg("upwork token probe ok")
	return nil
}

// Search runs one recency-sorted, title-filtered page query.
func (c *Client) Search(ctx context.Context, params models.SearchParams) (*SearchResult, error) {
	if c.tokens == nil {
		return nil, &auth.ConfigurationError{Err: errors.New("search requires an authorized session")}
	}

	after := strings.TrimSpace(params.PageToken)
	if after == "" {
		after = "0"
	}
	vars := map[string]any{
		"marketPlaceJobFilter": map[string]any{
			"titleExpression_eq": params.Query,
			"pagination_eq": map[string]any{
				"first": params.Limit,
				"after": after,
			},
		},
		"searchType":     "JOBS_FEED",
		"sortAttributes": []map[string]string{{"field": "RECENCY"}},
	}

	c.logger.Info().Str("query", params.Query).Int("limit", params.Limit).Msg("fetching jobs from Upwork API")

	var resp searchResponse
	err := c.execute(ctx, c.tokens, searchQuery, vars, &resp)
	refreshed := c.tokens.TakeRefreshed()
	if err != nil {
		return nil, err
	}

	result := &SearchResult{RefreshedToken: refreshed}
	if search := resp.Data.MarketplaceJobPostingsSearch; search != nil {
		result.TotalCount = search.TotalCount
		if search.PageInfo.HasNextPage {
			result.NextPageToken = search.PageInfo.EndCursor
		}
		result.Records = make([]RawJob, 0, len(search.Edges))
		for _, edge := range search.Edges {
			result.Records = append(result.Records, edge.Node)
		}
	}

	if len(result.Records) == 0 {
		c.logger.Info().Str("query", params.Query).Msg("API call succeeded but no jobs matched the query")
		result.Records = []RawJob{}
		return result, nil
	}
	c.logger.Info().Int("count", len(result.Records)).Msg("fetched jobs from Upwork API")
	return result, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

func (c *Client) execute(ctx context.Context, ts oauth2.TokenSource, query string, vars map[string]any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	tok, err := ts.Token()
	if err != nil {
		return &auth.ConfigurationError{Err: fmt.Errorf("obtain access token: %w", err)}
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return err
	}

	req, err := fhttp.NewRequest(fhttp.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return &ApiError{Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ApiError{StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= 400 {
		return &ApiError{StatusCode: resp.StatusCode, Payload: string(payload)}
	}

	var envelope struct {
		Errors []graphQLError `json:"errors"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return &ApiError{StatusCode: resp.StatusCode, Payload: string(payload), Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(envelope.Errors) > 0 {
		return &ApiError{
			StatusCode: resp.StatusCode,
			Payload:    string(payload),
			Err:        fmt.Errorf("graphql: %s", envelope.Errors[0].Message),
		}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &ApiError{StatusCode: resp.StatusCode, Payload: string(payload), Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
