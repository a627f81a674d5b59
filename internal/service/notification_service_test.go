package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taskminder-go-api/internal/dto"
	"github.com/noah-isme/taskminder-go-api/internal/scheduler"
)

func newNotificationFixture(t *testing.T, redisClient *redis.Client, settings dto.AppSettings) NotificationService {
	t.Helper()
	f := setupServiceFixture(t)
	svc := NewNotificationService(f.notifications, fixedSettings{settings: settings}, redisClient, "taskminder:test", nil, f.validate, testLogger())
	require.NoError(t, svc.RegisterChannel(DeadlineChannel()))
	return svc
}

func TestPublishRequiresRegisteredChannel(t *testing.T) {
	f := setupServiceFixture(t)
	svc := NewNotificationService(f.notifications, defaultSettings(), nil, "", nil, f.validate, testLogger())

	_, err := svc.Publish(context.Background(), dto.NotificationPublishRequest{
		ChannelID: scheduler.DeadlineChannelID,
		Title:     "Reminder: Essay",
		Body:      "Hurry up!",
	})
	require.ErrorIs(t, err, ErrChannelNotRegistered)
}

func TestPublishPersistsAndBroadcasts(t *testing.T) {
	svc := newNotificationFixture(t, nil, dto.DefaultAppSettings())

	stream, cleanup := svc.Subscribe()
	defer cleanup()

	published, err := svc.Publish(context.Background(), dto.NotificationPublishRequest{
		ChannelID: scheduler.DeadlineChannelID,
		TaskID:    4,
		Title:     "Reminder: <b>Essay</b>",
		Body:      "Hurry up! Only 5 minutes left until the deadline.",
		Metadata:  map[string]interface{}{"band": "within_hour"},
	})
	require.NoError(t, err)
	require.Equal(t, "Reminder: Essay", published.Title)
	require.True(t, published.Sound)
	require.True(t, published.Vibration)
	require.Equal(t, ImportanceHigh, published.Metadata["importance"])

	select {
	case received := <-stream:
		require.Equal(t, published.ID, received.ID)
	case <-time.After(time.Second):
		t.Fatal("notification not broadcast")
	}

	items, err := svc.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, uint(4), items[0].TaskID)

	read, err := svc.MarkRead(context.Background(), published.ID)
	require.NoError(t, err)
	require.True(t, read.Read)
}

func TestPublishSilentDropsSoundAndVibration(t *testing.T) {
	svc := newNotificationFixture(t, nil, dto.DefaultAppSettings())

	published, err := svc.Publish(context.Background(), dto.NotificationPublishRequest{
		ChannelID: scheduler.DeadlineChannelID,
		Title:     "Reminder: Lab",
		Body:      "Due tomorrow: 30 hours left.",
		Silent:    true,
	})
	require.NoError(t, err)
	require.True(t, published.Silent)
	require.False(t, published.Sound)
	require.False(t, published.Vibration)
}

func TestSendTestReportsOutcome(t *testing.T) {
	svc := newNotificationFixture(t, nil, dto.DefaultAppSettings())

	result := svc.SendTest(context.Background())
	require.True(t, result.Delivered)
	require.NotNil(t, result.Notification)
	require.Equal(t, scheduler.DeadlineChannelID, result.Notification.ChannelID)

	f := setupServiceFixture(t)
	unregistered := NewNotificationService(f.notifications, defaultSettings(), nil, "", nil, f.validate, testLogger())
	failed := unregistered.SendTest(context.Background())
	require.False(t, failed.Delivered)
	require.Contains(t, failed.Error, "not registered")
}

func TestNotificationsFanOutAcrossNodes(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	clientA := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer clientA.Close()
	clientB := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer clientB.Close()

	nodeA := newNotificationFixture(t, clientA, dto.DefaultAppSettings())
	nodeB := newNotificationFixture(t, clientB, dto.DefaultAppSettings())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	nodeB.Start(ctx)

	stream, cleanup := nodeB.Subscribe()
	defer cleanup()

	require.Eventually(t, func() bool {
		return len(server.PubSubChannels("")) > 0
	}, 2*time.Second, 10*time.Millisecond)

	_, err = nodeA.Publish(context.Background(), dto.NotificationPublishRequest{
		ChannelID: scheduler.DeadlineChannelID,
		Title:     "Reminder: Essay",
		Body:      "Only 2 hours left until the deadline.",
	})
	require.NoError(t, err)

	select {
	case received := <-stream:
		require.Equal(t, "Reminder: Essay", received.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("remote notification not received")
	}
}

func TestChannelsListsRegistered(t *testing.T) {
	svc := newNotificationFixture(t, nil, dto.DefaultAppSettings())

	channels := svc.Channels()
	require.Len(t, channels, 1)
	require.Equal(t, []int64{0, 500, 250, 500}, channels[0].VibrationPattern)
	require.Error(t, svc.RegisterChannel(NotificationChannel{}))
}
