package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

var (
	// ErrThrottled is returned when the platform rate-limits the call.
	ErrThrottled = errors.New("platform: rate limited")
	// ErrNotFound is returned when the platform does not know the subject.
	ErrNotFound = errors.New("platform: not found")
)

// APIError is a non-2xx response from the platform, as opposed to a
// transport failure. A 4xx "not permitted" and a timeout must be
// distinguishable for the scheduler's backoff decisions.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// Client performs outbound calls against the platform graph API:
// profile lookup, send-reply and create-scheduled-post.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client authenticated with a static bearer token.
func NewClient(baseURL, accessToken string) *Client {
	httpClient := oauth2.NewClient(context.Background(),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	httpClient.Timeout = 15 * time.Second
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

type profileResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// LookupProfile asks the platform who a subject ID belongs to. Used as
// the identity resolver's fallback path.
func (c *Client) LookupProfile(ctx context.Context, platform, subjectID string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=id,username,name&platform=%s",
		c.baseURL, url.PathEscape(subjectID), url.QueryEscape(platform))

	var profile profileResponse
	if err := c.getJSON(ctx, endpoint, &profile); err != nil {
		return "", err
	}
	if profile.Username != "" {
		return profile.Username, nil
	}
	if profile.Name != "" {
		return profile.Name, nil
	}
	return "", ErrNotFound
}

type sendReplyRequest struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
}

type sendReplyResponse struct {
	MessageID string `json:"message_id"`
}

// SendReply sends a direct reply to a platform subject and returns the
// platform-native ID of the sent message.
func (c *Client) SendReply(ctx context.Context, platform, recipientID, text string) (string, error) {
	var req sendReplyRequest
	req.Recipient.ID = recipientID
	req.Message.Text = text

	endpoint := fmt.Sprintf("%s/me/messages?platform=%s", c.baseURL, url.QueryEscape(platform))
	var resp sendReplyResponse
	if err := c.postJSON(ctx, endpoint, req, &resp); err != nil {
		return "", err
	}
	return resp.MessageID, nil
}

type createPostRequest struct {
	Text        string `json:"message"`
	MediaURL    string `json:"media_url,omitempty"`
	PublishTime int64  `json:"scheduled_publish_time,omitempty"`
}

type createPostResponse struct {
	ID string `json:"id"`
}

// CreateScheduledPost queues a post for publication on the platform.
func (c *Client) CreateScheduledPost(ctx context.Context, platform, username, text, mediaURL string, publishAt time.Time) (string, error) {
	req := createPostRequest{Text: text, MediaURL: mediaURL}
	if !publishAt.IsZero() {
		req.PublishTime = publishAt.Unix()
	}

	endpoint := fmt.Sprintf("%s/%s/scheduled_posts?platform=%s",
		c.baseURL, url.PathEscape(username), url.QueryEscape(platform))
	var resp createPostResponse
	if err := c.postJSON(ctx, endpoint, req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport-level failure: timeout, DNS, connection reset.
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrThrottled
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       apiErr.Error.Code,
			Message:    apiErr.Error.Message,
		}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
