package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/mhartwell/studioline-backend/pkg/config"
	"github.com/mhartwell/studioline-backend/pkg/errors"
	"github.com/mhartwell/studioline-backend/pkg/logger"
)

const sendPath = "/v3/mail/send"

// Message is a single outbound email.
type Message struct {
	From     string
	To       string
	Subject  string
	HTMLBody string
}

// Sender delivers transactional and campaign email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client talks to the Sendgrid v3 API.
type Client struct {
	http        *retryablehttp.Client
	baseURL     string
	apiKey      string
	defaultFrom string
}

// NewClient builds a Sendgrid client with retrying transport.
func NewClient(cfg config.MailConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = cfg.MaxRetries
	httpClient.RetryWaitMin = 500 * time.Millisecond
	httpClient.RetryWaitMax = 5 * time.Second
	httpClient.HTTPClient.Timeout = cfg.SendTimeout
	httpClient.Logger = nil

	return &Client{
		http:        httpClient,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		defaultFrom: cfg.DefaultFrom,
	}, nil
}

type sendgridAddress struct {
	Email string `json:"email"`
}

type sendgridPersonalization struct {
	To []sendgridAddress `json:"to"`
}

type sendgridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendgridPayload struct {
	Personalizations []sendgridPersonalization `json:"personalizations"`
	From             sendgridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendgridContent         `json:"content"`
}

// Send delivers one message, retrying transient transport failures.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New(errors.CodeValidation, "recipient email is required")
	}
	from := msg.From
	if from == "" {
		from = c.defaultFrom
	}
	if from == "" {
		return errors.New(errors.CodeValidation, "sender email is required")
	}

	payload := sendgridPayload{
		Personalizations: []sendgridPersonalization{{To: []sendgridAddress{{Email: msg.To}}}},
		From:             sendgridAddress{Email: from},
		Subject:          msg.Subject,
		Content:          []sendgridContent{{Type: "text/html", Value: msg.HTMLBody}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "encoding mail payload")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sendPath, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "building mail request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(errors.CodeDependency, err, "sending mail")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return errors.New(errors.CodeDependency, fmt.Sprintf("sendgrid returned %d", resp.StatusCode)).
			WithDetails(string(detail))
	}

	return nil
}
