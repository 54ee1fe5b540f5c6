// Package twilio isolates all provider-specific request and response
// shapes behind a stable client interface.
package twilio

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/squareft/sms-gateway/internal/model"
	"github.com/squareft/sms-gateway/pkg/logger"
	"github.com/squareft/sms-gateway/pkg/prom"
	"github.com/valyala/fasthttp"
)

const apiVersion = "2010-04-01"

type Config struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string // defaults to https://api.twilio.com
	Timeout    time.Duration
	MaxConns   int
}

// Client talks to the Twilio Messages API. Construct one at boot and pass
// it into whatever needs to send; configuration comes from the caller,
// not ambient globals.
type Client struct {
	config Config
	http   *fasthttp.Client
	auth   string
}

func NewClient(config Config) (*Client, error) {
	if config.AccountSID == "" {
		return nil, fmt.Errorf("account SID is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.twilio.com"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxConns == 0 {
		config.MaxConns = 512
	}

	c := &Client{
		config: config,
		http: &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
		auth: "Basic " + base64.StdEncoding.EncodeToString([]byte(config.AccountSID+":"+config.AuthToken)),
	}

	logger.Info("Twilio client initialized", "account_sid", config.AccountSID, "timeout", config.Timeout)
	return c, nil
}

// From returns the configured default sender number.
func (c *Client) From() string {
	return c.config.From
}

// SendSMS performs one Messages.json create call. A rejected call returns
// a SendError carrying the provider's message; there is no retry.
func (c *Client) SendSMS(ctx context.Context, msg *model.OutboundMessage) (*model.DeliveryResult, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	from := msg.From
	if from == "" {
		from = c.config.From
	}

	form := url.Values{}
	form.Set("To", msg.To)
	form.Set("From", from)
	form.Set("Body", msg.Body)

	path := fmt.Sprintf("/%s/Accounts/%s/Messages.json", apiVersion, c.config.AccountSID)

	start := time.Now()
	status, body, err := c.doRequest(ctx, "POST", path, []byte(form.Encode()))
	prom.ObserveProviderDuration(time.Since(start).Seconds(), "send")

	if err != nil {
		return nil, &SendError{Message: err.Error()}
	}
	if status >= 400 {
		apiErr := parseAPIError(body)
		logger.Warn("Twilio rejected send", "to", msg.To, "status", status, "code", apiErr.Code, "message", apiErr.Message)
		return nil, &SendError{Code: apiErr.Code, Message: apiErr.Message, HTTPStatus: status}
	}

	var resource messageResource
	if err := json.Unmarshal(body, &resource); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	result := resource.toDeliveryResult()
	logger.Info("SMS handed to provider", "sid", result.ProviderMessageID, "to", result.To, "status", string(result.Status))
	return result, nil
}

// SendBulkSMS sends every message concurrently and waits for all outcomes.
// The result slice has the same length and order as the input; a failed
// entry keeps its index with a failed status, an empty provider id and the
// failure reason in ErrorMessage. One failure never aborts the siblings.
func (c *Client) SendBulkSMS(ctx context.Context, msgs []*model.OutboundMessage) []*model.DeliveryResult {
	results := make([]*model.DeliveryResult, len(msgs))

	var wg sync.WaitGroup
	for i, msg := range msgs {
		wg.Add(1)
		go func(i int, msg *model.OutboundMessage) {
			defer wg.Done()

			res, err := c.SendSMS(ctx, msg)
			if err != nil {
				from := msg.From
				if from == "" {
					from = c.config.From
				}
				results[i] = &model.DeliveryResult{
					Status:       model.DeliveryStatusFailed,
					To:           msg.To,
					From:         from,
					Body:         msg.Body,
					CreatedAt:    time.Now(),
					ErrorMessage: err.Error(),
				}
				return
			}
			results[i] = res
		}(i, msg)
	}
	wg.Wait()

	return results
}

// GetMessageStatus re-fetches the Message resource for a provider id.
func (c *Client) GetMessageStatus(ctx context.Context, id string) (*model.DeliveryResult, error) {
	path := fmt.Sprintf("/%s/Accounts/%s/Messages/%s.json", apiVersion, c.config.AccountSID, id)

	start := time.Now()
	status, body, err := c.doRequest(ctx, "GET", path, nil)
	prom.ObserveProviderDuration(time.Since(start).Seconds(), "status")

	if err != nil {
		return nil, &LookupError{MessageID: id, Message: err.Error()}
	}
	if status >= 400 {
		apiErr := parseAPIError(body)
		return nil, &LookupError{MessageID: id, Message: apiErr.Message, HTTPStatus: status}
	}

	var resource messageResource
	if err := json.Unmarshal(body, &resource); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return resource.toDeliveryResult(), nil
}

// GetAccountInfo fetches read-only account metadata.
func (c *Client) GetAccountInfo(ctx context.Context) (*model.AccountInfo, error) {
	path := fmt.Sprintf("/%s/Accounts/%s.json", apiVersion, c.config.AccountSID)

	start := time.Now()
	status, body, err := c.doRequest(ctx, "GET", path, nil)
	prom.ObserveProviderDuration(time.Since(start).Seconds(), "account")

	if err != nil {
		return nil, err
	}
	if status >= 400 {
		apiErr := parseAPIError(body)
		return nil, fmt.Errorf("twilio: account fetch failed: %s", apiErr.Message)
	}

	var resource accountResource
	if err := json.Unmarshal(body, &resource); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &model.AccountInfo{
		SID:          resource.SID,
		FriendlyName: resource.FriendlyName,
		Status:       resource.Status,
		Type:         resource.Type,
	}, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", c.auth)
	if body != nil {
		req.Header.SetContentType("application/x-www-form-urlencoded")
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}

	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())

	return resp.StatusCode(), out, nil
}

func parseAPIError(body []byte) apiError {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = string(body)
	}
	return apiErr
}
