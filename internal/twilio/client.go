package twilio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/config"
	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/httpclient"
	apperrors "github.com/bdevz/ultravox-twilio-integration-sub000/pkg/errors"
)

const providerName = "twilio"

// Call is the subset of the vendor's call resource this service consumes.
type Call struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// Client places outbound calls through the telephony platform. Auth is HTTP
// Basic with the account SID and token; bodies are form-encoded.
type Client struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	http       *httpclient.Client
}

// NewClient builds the adapter on top of a resilient transport.
func NewClient(cfg config.TwilioConfig, transport *httpclient.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.FromNumber,
		http:       transport,
	}
}

// PlaceCall dials the destination number with TwiML that bridges the callee's
// audio to the given join URL.
func (c *Client) PlaceCall(ctx context.Context, to, joinURL string) (*Call, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", c.baseURL, c.accountSID)

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Twiml", bridgeTwiML(joinURL))

	var out Call
	err := c.http.Execute(ctx, httpclient.Request{
		Method:    http.MethodPost,
		URL:       endpoint,
		Form:      form,
		BasicAuth: &httpclient.BasicAuth{Username: c.accountSID, Password: c.authToken},
	}, &out)
	if err != nil {
		return nil, wrap(endpoint, err)
	}
	return &out, nil
}

// bridgeTwiML embeds the join URL verbatim. The vendor expects the raw
// WebSocket URL inside the Stream element; re-encoding it would corrupt the
// query parameters the AI platform signed into it.
func bridgeTwiML(joinURL string) string {
	return fmt.Sprintf(`<Response><Connect><Stream url="%s"/></Connect></Response>`, joinURL)
}

func wrap(endpoint string, err error) error {
	ext := &apperrors.ExternalServiceError{Provider: providerName, Endpoint: endpoint, Err: err}
	var ce *httpclient.Error
	if errors.As(err, &ce) {
		ext.Status = ce.Status
		ext.Detail = ce.Detail
	} else {
		ext.Detail = err.Error()
	}
	return ext
}
