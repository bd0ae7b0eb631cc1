package auth_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-app-auth"
)

// fakeProvider reports every token listed in gone as unregistered.
type fakeProvider struct {
	mu    sync.Mutex
	gone  map[string]bool
	calls [][]auth.PushMessage
	err   error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Send(_ context.Context, messages []auth.PushMessage) (*auth.PushResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, messages)
	if p.err != nil {
		return nil, p.err
	}

	res := &auth.PushResult{MessageIDs: []string{}}
	for _, m := range messages {
		if p.gone[m.To] {
			res.FailureCount++
			res.Failures = append(res.Failures, auth.PushFailure{To: m.To, Code: auth.PushErrorDeviceNotRegistered})
			continue
		}
		res.SuccessCount++
		res.MessageIDs = append(res.MessageIDs, uuid.NewString())
	}
	return res, nil
}

func seedDevices(t *testing.T, devices auth.GuestDevices, n int, owner *uuid.UUID) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := devices.Create(context.Background(), &auth.GuestDevice{
			DeviceID:  fmt.Sprintf("device-%02d", i),
			PushToken: ptr(fmt.Sprintf("ExponentPushToken[%02d]", i)),
			IsActive:  true,
			UserID:    owner,
		})
		require.NoError(t, err)
	}
}

var hello = auth.NotificationPayload{Title: "Hello", Body: "World", Data: map[string]any{"k": "v"}}

func TestNotificationService_SendToDevice(t *testing.T) {
	ctx := context.Background()
	_, repos := newTestDB(t)
	seedDevices(t, repos.GuestDevices(), 1, nil)
	_, err := repos.GuestDevices().Create(ctx, &auth.GuestDevice{DeviceID: "silent", IsActive: true})
	require.NoError(t, err)

	provider := &fakeProvider{gone: map[string]bool{}}
	service := auth.NewNotificationService(repos.GuestDevices(), provider, nil)

	res, err := service.SendToDevice(ctx, "device-00", hello)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SuccessCount)
	require.Len(t, provider.calls, 1)
	assert.Equal(t, "ExponentPushToken[00]", provider.calls[0][0].To)
	assert.Equal(t, "v", provider.calls[0][0].Data["k"])

	_, err = service.SendToDevice(ctx, "silent", hello)
	assert.ErrorIs(t, err, auth.ErrNoPushToken)

	_, err = service.SendToDevice(ctx, "missing", hello)
	assert.True(t, auth.IsNotFound(err))

	_, err = service.SendToDevice(ctx, "device-00", auth.NotificationPayload{})
	assert.ErrorIs(t, err, auth.ErrInvalidInput)
}

func TestNotificationService_SendToUserClearsStaleTokens(t *testing.T) {
	ctx := context.Background()
	_, repos := newTestDB(t)
	owner := uuid.New()
	seedDevices(t, repos.GuestDevices(), 3, &owner)

	provider := &fakeProvider{gone: map[string]bool{"ExponentPushToken[01]": true}}
	service := auth.NewNotificationService(repos.GuestDevices(), provider, nil)

	res, err := service.SendToUser(ctx, owner.String(), hello)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 1, res.FailureCount)

	stale, err := repos.GuestDevices().GetByDeviceID(ctx, "device-01")
	require.NoError(t, err)
	assert.False(t, stale.HasPushToken())

	res, err = service.SendToUser(ctx, uuid.NewString(), hello)
	require.NoError(t, err)
	assert.Zero(t, res.SuccessCount)
	assert.Len(t, provider.calls, 1, "no devices means no provider call")

	_, err = service.SendToUser(ctx, "not-a-uuid", hello)
	assert.True(t, auth.IsNotFound(err))
}

func TestNotificationService_BroadcastPages(t *testing.T) {
	ctx := context.Background()
	_, repos := newTestDB(t)
	seedDevices(t, repos.GuestDevices(), 7, nil)

	reg := prometheus.NewRegistry()
	provider := &fakeProvider{gone: map[string]bool{"ExponentPushToken[03]": true}}
	service := auth.NewNotificationService(repos.GuestDevices(), provider, nil,
		auth.WithBroadcastPageSize(3),
		auth.WithNotificationMetrics(auth.NewCollector(reg)),
	)

	res, err := service.Broadcast(ctx, hello)
	require.NoError(t, err)
	assert.Equal(t, 6, res.SuccessCount)
	assert.Equal(t, 1, res.FailureCount)
	assert.Len(t, res.MessageIDs, 6)
	assert.Len(t, provider.calls, 3)

	stale, err := repos.GuestDevices().GetByDeviceID(ctx, "device-03")
	require.NoError(t, err)
	assert.False(t, stale.HasPushToken())

	assert.Equal(t, 6.0, pushTotal(t, reg, "success"))
	assert.Equal(t, 1.0, pushTotal(t, reg, "failure"))
}

func TestNotificationService_ProviderFailure(t *testing.T) {
	ctx := context.Background()
	_, repos := newTestDB(t)
	seedDevices(t, repos.GuestDevices(), 1, nil)

	boom := errors.New("provider unavailable")
	service := auth.NewNotificationService(repos.GuestDevices(), &fakeProvider{err: boom}, nil)

	_, err := service.SendToDevice(ctx, "device-00", hello)
	assert.ErrorIs(t, err, boom)

	_, err = service.Broadcast(ctx, hello)
	assert.ErrorIs(t, err, boom)
}

func TestLogPushProvider(t *testing.T) {
	logger, hook := newTestLogger()
	res, err := auth.NewLogPushProvider(logger).Send(context.Background(), []auth.PushMessage{{To: "a"}, {To: "b"}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Len(t, res.MessageIDs, 2)
	assert.Len(t, hook.AllEntries(), 2)
}

func pushTotal(t *testing.T, reg *prometheus.Registry, result string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	total := 0.0
	for _, mf := range families {
		if mf.GetName() != "push_messages_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" && l.GetValue() == result {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}
