package auth

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// PushErrorDeviceNotRegistered is reported for tokens the provider no longer
// accepts.
const PushErrorDeviceNotRegistered = "DeviceNotRegistered"

// DefaultBroadcastPageSize is the number of devices loaded per broadcast page
const DefaultBroadcastPageSize = 500

// ErrNoPushToken is returned when a device cannot receive pushes
var ErrNoPushToken = goerrors.New("device has no active push token", goerrors.CategoryBadInput).
	WithTextCode("NO_PUSH_TOKEN").
	WithCode(goerrors.CodeBadRequest)

// PushMessage is one notification for one push token
type PushMessage struct {
	To    string         `json:"to"`
	Title string         `json:"title,omitempty"`
	Body  string         `json:"body,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// PushFailure describes a message the provider rejected
type PushFailure struct {
	To      string `json:"to"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// PushResult aggregates the outcome of a send
type PushResult struct {
	SuccessCount int           `json:"successCount"`
	FailureCount int           `json:"failureCount"`
	MessageIDs   []string      `json:"messageIds"`
	Failures     []PushFailure `json:"failures,omitempty"`
}

func (r *PushResult) merge(other *PushResult) {
	if other == nil {
		return
	}
	r.SuccessCount += other.SuccessCount
	r.FailureCount += other.FailureCount
	r.MessageIDs = append(r.MessageIDs, other.MessageIDs...)
	r.Failures = append(r.Failures, other.Failures...)
}

// PushProvider delivers push messages
type PushProvider interface {
	Name() string
	Send(ctx context.Context, messages []PushMessage) (*PushResult, error)
}

// LogPushProvider only logs messages. It is meant for development.
type LogPushProvider struct {
	logger Logger
}

// NewLogPushProvider creates a LogPushProvider
func NewLogPushProvider(logger Logger) *LogPushProvider {
	return &LogPushProvider{logger: resolveLogger(logger)}
}

func (p *LogPushProvider) Name() string { return "log" }

func (p *LogPushProvider) Send(_ context.Context, messages []PushMessage) (*PushResult, error) {
	res := &PushResult{MessageIDs: make([]string, 0, len(messages))}
	for _, m := range messages {
		id := uuid.NewString()
		p.logger.Info("push message", "to", m.To, "title", m.Title, "id", id)
		res.MessageIDs = append(res.MessageIDs, id)
		res.SuccessCount++
	}
	return res, nil
}

// NotificationService sends pushes to guest devices
type NotificationService struct {
	devices  GuestDevices
	provider PushProvider
	logger   Logger
	metrics  MetricsRecorder
	pageSize int
}

// NotificationOption customizes a NotificationService
type NotificationOption func(*NotificationService)

// WithNotificationMetrics sets the metrics recorder
func WithNotificationMetrics(m MetricsRecorder) NotificationOption {
	return func(s *NotificationService) {
		s.metrics = resolveMetrics(m)
	}
}

// WithBroadcastPageSize sets how many devices are loaded per page
func WithBroadcastPageSize(size int) NotificationOption {
	return func(s *NotificationService) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// NewNotificationService creates the service
func NewNotificationService(devices GuestDevices, provider PushProvider, logger Logger, opts ...NotificationOption) *NotificationService {
	s := &NotificationService{
		devices:  devices,
		provider: provider,
		logger:   resolveLogger(logger),
		metrics:  noopMetrics{},
		pageSize: DefaultBroadcastPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendToDevice pushes payload to a single guest device
func (s *NotificationService) SendToDevice(ctx context.Context, deviceID string, payload NotificationPayload) (*PushResult, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	device, err := s.devices.GetByDeviceID(ctx, strings.TrimSpace(deviceID))
	if err != nil {
		return nil, err
	}
	if !device.IsActive || !device.HasPushToken() {
		return nil, failWith(ErrNoPushToken, nil).WithMetadata(map[string]any{"deviceId": device.DeviceID})
	}

	return s.dispatch(ctx, s.messages([]*GuestDevice{device}, payload))
}

// SendToUser pushes payload to every active device linked to userID
func (s *NotificationService) SendToUser(ctx context.Context, userID string, payload NotificationPayload) (*PushResult, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	uid, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil {
		return nil, ErrRecordNotFound
	}

	devices, err := s.devices.ListByUser(ctx, uid)
	if err != nil {
		return nil, err
	}

	return s.dispatch(ctx, s.messages(devices, payload))
}

// Broadcast pushes payload to every active device holding a token.
func (s *NotificationService) Broadcast(ctx context.Context, payload NotificationPayload) (*PushResult, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	total := &PushResult{MessageIDs: []string{}}
	stale := []string{}

	for offset := 0; ; offset += s.pageSize {
		devices, err := s.devices.ListActiveWithToken(ctx, s.pageSize, offset)
		if err != nil {
			return nil, err
		}

		if msgs := s.messages(devices, payload); len(msgs) > 0 {
			res, err := s.provider.Send(ctx, msgs)
			if err != nil {
				return nil, err
			}
			s.metrics.RecordPush(s.provider.Name(), res.SuccessCount, res.FailureCount)
			total.merge(res)
			stale = append(stale, staleTokens(res)...)
		}

		if len(devices) < s.pageSize {
			break
		}
	}

	s.clearTokens(ctx, stale)
	return total, nil
}

func (s *NotificationService) messages(devices []*GuestDevice, payload NotificationPayload) []PushMessage {
	msgs := make([]PushMessage, 0, len(devices))
	for _, d := range devices {
		if !d.IsActive || !d.HasPushToken() {
			continue
		}
		msgs = append(msgs, PushMessage{
			To:    *d.PushToken,
			Title: payload.Title,
			Body:  payload.Body,
			Data:  payload.Data,
		})
	}
	return msgs
}

func (s *NotificationService) dispatch(ctx context.Context, msgs []PushMessage) (*PushResult, error) {
	if len(msgs) == 0 {
		return &PushResult{MessageIDs: []string{}}, nil
	}

	res, err := s.provider.Send(ctx, msgs)
	if err != nil {
		s.logger.Error("push dispatch failed", "provider", s.provider.Name(), "error", err)
		return nil, err
	}
	s.metrics.RecordPush(s.provider.Name(), res.SuccessCount, res.FailureCount)

	s.clearTokens(ctx, staleTokens(res))
	return res, nil
}

func (s *NotificationService) clearTokens(ctx context.Context, tokens []string) {
	for _, token := range tokens {
		if _, err := s.devices.ClearPushToken(ctx, token); err != nil {
			s.logger.Error("failed to clear unregistered push token", "error", err)
			continue
		}
		s.logger.Info("cleared unregistered push token")
	}
}

func staleTokens(res *PushResult) []string {
	out := []string{}
	for _, f := range res.Failures {
		if f.Code == PushErrorDeviceNotRegistered && f.To != "" {
			out = append(out, f.To)
		}
	}
	return out
}
