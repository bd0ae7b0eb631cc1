// Package expo delivers push notifications through the Expo push API.
package expo

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	exposdk "github.com/oliveroneill/exponent-server-sdk-golang/sdk"

	auth "github.com/goliatone/go-app-auth"
)

// DefaultHost is the Expo API host
const DefaultHost = "https://exp.host"

// APIURL is the path of the push API on the host
const APIURL = "/--/api/v2"

// MaxBatchSize is the largest batch Expo accepts per request
const MaxBatchSize = 100

// Provider implements auth.PushProvider for Expo
type Provider struct {
	client *exposdk.PushClient
}

// New creates an Expo provider. An empty host uses DefaultHost and a nil
// client uses http.DefaultClient.
func New(host, accessToken string, client *http.Client) *Provider {
	if host == "" {
		host = DefaultHost
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Provider{
		client: exposdk.NewPushClient(&exposdk.ClientConfig{
			Host:        host,
			APIURL:      APIURL,
			AccessToken: accessToken,
			HTTPClient:  client,
		}),
	}
}

func (p *Provider) Name() string { return "expo" }

// Send publishes messages in batches of MaxBatchSize. Per-message errors are
// reported in the result; request level errors abort the send.
func (p *Provider) Send(ctx context.Context, messages []auth.PushMessage) (*auth.PushResult, error) {
	res := &auth.PushResult{MessageIDs: []string{}}

	for start := 0; start < len(messages); start += MaxBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+MaxBatchSize, len(messages))
		batch := messages[start:end]

		tickets, err := p.client.PublishMultiple(toExpo(batch))
		if err != nil {
			return nil, fmt.Errorf("expo publish: %w", err)
		}

		for i, m := range batch {
			if i >= len(tickets) {
				res.FailureCount++
				res.Failures = append(res.Failures, auth.PushFailure{To: m.To, Message: "missing ticket"})
				continue
			}

			ticket := tickets[i]
			if err := ticket.ValidateResponse(); err != nil {
				res.FailureCount++
				res.Failures = append(res.Failures, failure(m.To, &ticket, err))
				continue
			}
			res.SuccessCount++
			res.MessageIDs = append(res.MessageIDs, ticket.ID)
		}
	}

	return res, nil
}

func failure(to string, ticket *exposdk.PushResponse, err error) auth.PushFailure {
	out := auth.PushFailure{To: to, Message: ticket.Message}
	if out.Message == "" {
		out.Message = err.Error()
	}

	var gone *exposdk.DeviceNotRegisteredError
	if errors.As(err, &gone) {
		out.Code = auth.PushErrorDeviceNotRegistered
		return out
	}
	out.Code = ticket.Details["error"]
	return out
}

func toExpo(batch []auth.PushMessage) []exposdk.PushMessage {
	out := make([]exposdk.PushMessage, 0, len(batch))
	for _, m := range batch {
		msg := exposdk.PushMessage{
			To:    []exposdk.ExponentPushToken{exposdk.ExponentPushToken(m.To)},
			Title: m.Title,
			Body:  m.Body,
			Sound: "default",
		}
		if len(m.Data) > 0 {
			msg.Data = make(map[string]string, len(m.Data))
			for k, v := range m.Data {
				if s, ok := v.(string); ok {
					msg.Data[k] = s
					continue
				}
				msg.Data[k] = fmt.Sprint(v)
			}
		}
		out = append(out, msg)
	}
	return out
}

var _ auth.PushProvider = (*Provider)(nil)
