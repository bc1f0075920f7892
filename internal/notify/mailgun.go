package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// DefaultMailgunURL задаёт адрес API Mailgun по умолчанию.
const DefaultMailgunURL = "https://api.mailgun.net"

// MailgunClient инкапсулирует HTTP-взаимодействие с Mailgun.
type MailgunClient struct {
	baseURL    string
	domain     string
	apiKey     string
	httpClient *http.Client
}

// NewMailgunClient создаёт клиент Mailgun для домена domain.
func NewMailgunClient(baseURL, domain, apiKey string) *MailgunClient {
	if baseURL == "" {
		baseURL = DefaultMailgunURL
	}

	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = 10 * time.Second

	return &MailgunClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		domain:     domain,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// Send отправляет письмо через Mailgun Messages API.
func (c *MailgunClient) Send(ctx context.Context, to, subject, html string) error {
	if c == nil || c.domain == "" || c.apiKey == "" {
		return fmt.Errorf("mailgun client not configured")
	}

	form := url.Values{}
	form.Set("from", fmt.Sprintf("WashWise Notifier <mailgun@%s>", c.domain))
	form.Set("to", to)
	form.Set("subject", subject)
	form.Set("html", html)

	endpoint := fmt.Sprintf("%s/v3/%s/messages", c.baseURL, c.domain)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status: %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}
