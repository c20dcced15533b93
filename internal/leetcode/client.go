package leetcode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/leetclash/backend/internal/domain"
)

// VerdictAccepted is the only status label that counts as a solve.
// The comparison is exact and case-sensitive, matching the upstream.
const VerdictAccepted = "Accepted"

// Submission is one entry of the judge's recent-submission feed.
// It is read-only input to the sync engine and is never persisted.
type Submission struct {
	TitleSlug string
	Status    string
	Timestamp time.Time
}

// Accepted reports whether this submission is a solve
func (s Submission) Accepted() bool {
	return s.Status == VerdictAccepted
}

// Profile is the public profile of a judge account
type Profile struct {
	Username string
	RealName string
	Ranking  int
}

// Question is a catalog entry resolved from the judge
type Question struct {
	Slug       string
	Title      string
	Difficulty string
	Topics     []string
}

// Client talks to the LeetCode GraphQL API. All fetches go through the
// retry wrapper; one HTTP call is bounded by the client timeout.
type Client struct {
	http    *http.Client
	baseURL string
	retry   RetryConfig
	logger  *zap.Logger
}

// Config holds judge client settings
type Config struct {
	BaseURL string
	Timeout time.Duration
	Retry   RetryConfig
}

// NewClient creates a judge API client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		retry:   cfg.Retry,
		logger:  logger,
	}
}

const recentSubmissionsQuery = `
query recentSubmissionList($username: String!, $limit: Int!) {
  recentSubmissionList(username: $username, limit: $limit) {
    titleSlug
    statusDisplay
    timestamp
  }
}`

const matchedUserQuery = `
query userPublicProfile($username: String!) {
  matchedUser(username: $username) {
    username
    profile {
      realName
      ranking
    }
  }
}`

const questionQuery = `
query questionDetail($titleSlug: String!) {
  question(titleSlug: $titleSlug) {
    titleSlug
    title
    difficulty
    topicTags {
      name
    }
  }
}`

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// FetchRecentSubmissions returns the judge's bounded recent-submission
// feed for one account, most-recent-first as sent by the upstream. The
// feed order is not trusted by callers; the sync engine re-sorts.
func (c *Client) FetchRecentSubmissions(ctx context.Context, username string, limit int) ([]Submission, error) {
	var payload struct {
		RecentSubmissionList []struct {
			TitleSlug     string `json:"titleSlug"`
			StatusDisplay string `json:"statusDisplay"`
			Timestamp     string `json:"timestamp"`
		} `json:"recentSubmissionList"`
	}

	err := Do(ctx, c.retry, c.logger, func(ctx context.Context) error {
		return c.query(ctx, recentSubmissionsQuery, map[string]any{
			"username": username,
			"limit":    limit,
		}, &payload)
	})
	if err != nil {
		if IsPermanent(err) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrFetchFailed, fmt.Sprintf("fetching submissions for %s: %v", username, err))
	}
	if payload.RecentSubmissionList == nil {
		return nil, domain.ErrAccountNotFound
	}

	subs := make([]Submission, 0, len(payload.RecentSubmissionList))
	for _, raw := range payload.RecentSubmissionList {
		// Timestamps arrive as decimal strings of unix seconds.
		// Entries that cannot be placed in time are dropped: they can
		// never be proven inside a contest window.
		secs, err := strconv.ParseInt(raw.Timestamp, 10, 64)
		if err != nil {
			c.logger.Warn("Dropping submission with bad timestamp",
				zap.String("username", username),
				zap.String("slug", raw.TitleSlug),
				zap.String("timestamp", raw.Timestamp),
			)
			continue
		}
		subs = append(subs, Submission{
			TitleSlug: raw.TitleSlug,
			Status:    raw.StatusDisplay,
			Timestamp: time.Unix(secs, 0).UTC(),
		})
	}
	return subs, nil
}

// FetchProfile resolves a judge account's public profile.
// A null matched user is a permanent account-not-found error.
func (c *Client) FetchProfile(ctx context.Context, username string) (*Profile, error) {
	var payload struct {
		MatchedUser *struct {
			Username string `json:"username"`
			Profile  struct {
				RealName string `json:"realName"`
				Ranking  int    `json:"ranking"`
			} `json:"profile"`
		} `json:"matchedUser"`
	}

	err := Do(ctx, c.retry, c.logger, func(ctx context.Context) error {
		return c.query(ctx, matchedUserQuery, map[string]any{"username": username}, &payload)
	})
	if err != nil {
		if IsPermanent(err) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrFetchFailed, fmt.Sprintf("fetching profile for %s: %v", username, err))
	}
	if payload.MatchedUser == nil {
		return nil, domain.ErrAccountNotFound
	}
	return &Profile{
		Username: payload.MatchedUser.Username,
		RealName: payload.MatchedUser.Profile.RealName,
		Ranking:  payload.MatchedUser.Profile.Ranking,
	}, nil
}

// FetchQuestion resolves a problem slug to its catalog entry
func (c *Client) FetchQuestion(ctx context.Context, slug string) (*Question, error) {
	var payload struct {
		Question *struct {
			TitleSlug  string `json:"titleSlug"`
			Title      string `json:"title"`
			Difficulty string `json:"difficulty"`
			TopicTags  []struct {
				Name string `json:"name"`
			} `json:"topicTags"`
		} `json:"question"`
	}

	err := Do(ctx, c.retry, c.logger, func(ctx context.Context) error {
		return c.query(ctx, questionQuery, map[string]any{"titleSlug": slug}, &payload)
	})
	if err != nil {
		if IsPermanent(err) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrFetchFailed, fmt.Sprintf("fetching question %s: %v", slug, err))
	}
	if payload.Question == nil {
		return nil, domain.ErrProblemNotFound
	}

	topics := make([]string, len(payload.Question.TopicTags))
	for i, t := range payload.Question.TopicTags {
		topics[i] = t.Name
	}
	return &Question{
		Slug:       payload.Question.TitleSlug,
		Title:      payload.Question.Title,
		Difficulty: payload.Question.Difficulty,
		Topics:     topics,
	}, nil
}

// query performs one GraphQL POST and decodes the data payload into out.
// HTTP 429 and 5xx responses come back as transient errors; malformed
// bodies are permanent.
func (c *Client) query(ctx context.Context, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return Permanent(fmt.Errorf("encoding request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", "https://leetcode.com")

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and connection failures are retryable.
		return Transient(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Transient(fmt.Errorf("upstream rate limited"))
	case resp.StatusCode >= 500:
		return Transient(fmt.Errorf("upstream unavailable: status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Transient(err)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Permanent(fmt.Errorf("malformed response: %w", err))
	}
	if len(envelope.Errors) > 0 {
		if envelope.Errors[0].Message == "That user does not exist." {
			return Permanent(domain.ErrAccountNotFound)
		}
		return Permanent(fmt.Errorf("graphql error: %s", envelope.Errors[0].Message))
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return Permanent(fmt.Errorf("malformed response: %w", err))
	}
	return nil
}
