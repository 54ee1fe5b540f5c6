package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/squareft/sms-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func startFakeTwilio(t *testing.T, handler fasthttp.RequestHandler) string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &fasthttp.Server{Handler: handler}
	go srv.Serve(ln) //nolint:errcheck
	t.Cleanup(func() {
		_ = srv.Shutdown()
	})

	return "http://" + ln.Addr().String()
}

func newTestClient(t *testing.T, baseURL string) *Client {
	c, err := NewClient(Config{
		AccountSID: "AC123",
		AuthToken:  "secret",
		From:       "+15551230000",
		BaseURL:    baseURL,
		Timeout:    2 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func messageJSON(sid, status, to string) string {
	return fmt.Sprintf(`{
		"sid": %q,
		"status": %q,
		"to": %q,
		"from": "+15551230000",
		"body": "hello",
		"date_created": "Mon, 02 Jan 2006 15:04:05 +0000",
		"date_sent": null,
		"error_code": null,
		"error_message": null
	}`, sid, status, to)
}

func TestNewClient(t *testing.T) {
	t.Run("requires account SID", func(t *testing.T) {
		_, err := NewClient(Config{})
		assert.Error(t, err)
	})

	t.Run("applies defaults", func(t *testing.T) {
		c, err := NewClient(Config{AccountSID: "AC123"})
		require.NoError(t, err)
		assert.Equal(t, "https://api.twilio.com", c.config.BaseURL)
		assert.Equal(t, 10*time.Second, c.config.Timeout)
	})
}

func TestClient_SendSMS(t *testing.T) {
	t.Run("successful send", func(t *testing.T) {
		var gotPath, gotAuth, gotBody string
		base := startFakeTwilio(t, func(ctx *fasthttp.RequestCtx) {
			gotPath = string(ctx.Path())
			gotAuth = string(ctx.Request.Header.Peek("Authorization"))
			gotBody = string(ctx.PostBody())
			ctx.SetStatusCode(201)
			ctx.SetBodyString(messageJSON("SM001", "queued", "+14155551234"))
		})

		c := newTestClient(t, base)
		res, err := c.SendSMS(context.Background(), &model.OutboundMessage{
			To:   "+14155551234",
			Body: "hello",
		})
		require.NoError(t, err)

		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", gotPath)
		assert.True(t, strings.HasPrefix(gotAuth, "Basic "))
		assert.Contains(t, gotBody, "To=%2B14155551234")
		assert.Contains(t, gotBody, "From=%2B15551230000")

		assert.Equal(t, "SM001", res.ProviderMessageID)
		assert.Equal(t, model.DeliveryStatusQueued, res.Status)
		assert.Equal(t, "+14155551234", res.To)
		assert.Nil(t, res.SentAt)
	})

	t.Run("explicit from overrides default", func(t *testing.T) {
		var gotBody string
		base := startFakeTwilio(t, func(ctx *fasthttp.RequestCtx) {
			gotBody = string(ctx.PostBody())
			ctx.SetStatusCode(201)
			ctx.SetBodyString(messageJSON("SM002", "queued", "+14155551234"))
		})

		c := newTestClient(t, base)
		_, err := c.SendSMS(context.Background(), &model.OutboundMessage{
			To:   "+14155551234",
			Body: "hello",
			From: "+15559990000",
		})
		require.NoError(t, err)
		assert.Contains(t, gotBody, "From=%2B15559990000")
	})

	t.Run("provider rejection wraps the provider message", func(t *testing.T) {
		base := startFakeTwilio(t, func(ctx *fasthttp.RequestCtx) {
			ctx.SetStatusCode(400)
			ctx.SetBodyString(`{"code": 21211, "message": "The 'To' number is not a valid phone number.", "status": 400}`)
		})

		c := newTestClient(t, base)
		_, err := c.SendSMS(context.Background(), &model.OutboundMessage{To: "bad", Body: "hello"})
		require.Error(t, err)

		var sendErr *SendError
		require.True(t, errors.As(err, &sendErr))
		assert.Equal(t, 21211, sendErr.Code)
		assert.Contains(t, sendErr.Message, "not a valid phone number")
	})

	t.Run("missing body rejected before any provider call", func(t *testing.T) {
		called := false
		base := startFakeTwilio(t, func(ctx *fasthttp.RequestCtx) {
			called = true
		})

		c := newTestClient(t, base)
		_, err := c.SendSMS(context.Background(), &model.OutboundMessage{To: "+14155551234"})
		assert.Error(t, err)
		assert.False(t, called)
	})
}

func TestClient_SendBulkSMS(t *testing.T) {
	t.Run("preserves order and length with mixed outcomes", func(t *testing.T) {
		base := startFakeTwilio(t, func(ctx *fasthttp.RequestCtx) {
			body := string(ctx.PostBody())
			if strings.Contains(body, "To=%2B15550000000") {
				ctx.SetStatusCode(400)
				ctx.SetBodyString(`{"code": 21610, "message": "recipient is blocked", "status": 400}`)
				return
			}
			to := "+14155551234"
			if strings.Contains(body, "To=%2B14155559999") {
				to = "+14155559999"
			}
			ctx.SetStatusCode(201)
			ctx.SetBodyString(messageJSON("SM-"+to, "queued", to))
		})

		c := newTestClient(t, base)
		msgs := []*model.OutboundMessage{
			{To: "+14155551234", Body: "a"},
			{To: "+15550000000", Body: "b"},
			{To: "+14155559999", Body: "c"},
		}

		results := c.SendBulkSMS(context.Background(), msgs)
		require.Len(t, results, len(msgs))

		assert.Equal(t, "+14155551234", results[0].To)
		assert.Equal(t, model.DeliveryStatusQueued, results[0].Status)

		// failed entry stays at the recipient's original index
		assert.Equal(t, "+15550000000", results[1].To)
		assert.Equal(t, model.DeliveryStatusFailed, results[1].Status)
		assert.Empty(t, results[1].ProviderMessageID)
		assert.Contains(t, results[1].ErrorMessage, "recipient is blocked")

		assert.Equal(t, "+14155559999", results[2].To)
		assert.Equal(t, model.DeliveryStatusQueued, results[2].Status)
	})

	t.Run("all failures still yield a full result set", func(t *testing.T) {
		base := startFakeTwilio(t, func(ctx *fasthttp.RequestCtx) {
			ctx.SetStatusCode(500)
			ctx.SetBodyString(`{"code": 20500, "message": "internal error", "status": 500}`)
		})

		c := newTestClient(t, base)
		msgs := []*model.OutboundMessage{
			{To: "+14155551111", Body: "a"},
			{To: "+14155552222", Body: "b"},
		}

		results := c.SendBulkSMS(context.Background(), msgs)
		require.Len(t, results, 2)
		for i, res := range results {
			assert.Equal(t, model.DeliveryStatusFailed, res.Status, "index %d", i)
			assert.Equal(t, msgs[i].To, res.To)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		c := newTestClient(t, "http://127.0.0.1:1")
		results := c.SendBulkSMS(context.Background(), nil)
		assert.Empty(t, results)
	})
}

func TestClient_GetMessageStatus(t *testing.T) {
	t.Run("fetches the message resource", func(t *testing.T) {
		var gotPath string
		base := startFakeTwilio(t, func(ctx *fasthttp.RequestCtx) {
			gotPath = string(ctx.Path())
			ctx.SetStatusCode(200)
			ctx.SetBodyString(`{
				"sid": "SM001",
				"status": "delivered",
				"to": "+14155551234",
				"from": "+15551230000",
				"body": "hello",
				"date_created": "Mon, 02 Jan 2006 15:04:05 +0000",
				"date_sent": "Mon, 02 Jan 2006 15:04:07 +0000",
				"error_code": null,
				"error_message": null
			}`)
		})

		c := newTestClient(t, base)
		res, err := c.GetMessageStatus(context.Background(), "SM001")
		require.NoError(t, err)

		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages/SM001.json", gotPath)
		assert.Equal(t, model.DeliveryStatusDelivered, res.Status)
		require.NotNil(t, res.SentAt)
	})

	t.Run("unknown id yields a lookup error", func(t *testing.T) {
		base := startFakeTwilio(t, func(ctx *fasthttp.RequestCtx) {
			ctx.SetStatusCode(404)
			ctx.SetBodyString(`{"code": 20404, "message": "The requested resource was not found", "status": 404}`)
		})

		c := newTestClient(t, base)
		_, err := c.GetMessageStatus(context.Background(), "SM-missing")

		var lookupErr *LookupError
		require.True(t, errors.As(err, &lookupErr))
		assert.Equal(t, "SM-missing", lookupErr.MessageID)
	})
}

func TestClient_GetAccountInfo(t *testing.T) {
	base := startFakeTwilio(t, func(ctx *fasthttp.RequestCtx) {
		assert.Equal(t, "/2010-04-01/Accounts/AC123.json", string(ctx.Path()))
		ctx.SetStatusCode(200)
		ctx.SetBodyString(`{"sid": "AC123", "friendly_name": "SquareFt", "status": "active", "type": "Full"}`)
	})

	c := newTestClient(t, base)
	info, err := c.GetAccountInfo(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "AC123", info.SID)
	assert.Equal(t, "SquareFt", info.FriendlyName)
	assert.Equal(t, "active", info.Status)
	assert.Equal(t, "Full", info.Type)
}

func TestMessageResource_ToDeliveryResult(t *testing.T) {
	sent := "Mon, 02 Jan 2006 15:04:07 +0000"
	code := 30003
	msg := "Unreachable destination handset"

	var resource messageResource
	require.NoError(t, json.Unmarshal([]byte(messageJSON("SM9", "failed", "+14155551234")), &resource))
	resource.DateSent = &sent
	resource.ErrorCode = &code
	resource.ErrorMessage = &msg

	res := resource.toDeliveryResult()
	assert.Equal(t, "30003", res.ErrorCode)
	assert.Equal(t, msg, res.ErrorMessage)
	require.NotNil(t, res.SentAt)
	assert.Equal(t, 2006, res.CreatedAt.Year())
}
