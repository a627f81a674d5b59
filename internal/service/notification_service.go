package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/taskminder-go-api/internal/dto"
	"github.com/noah-isme/taskminder-go-api/internal/models"
	"github.com/noah-isme/taskminder-go-api/internal/observability"
	"github.com/noah-isme/taskminder-go-api/internal/repository"
	"github.com/noah-isme/taskminder-go-api/internal/scheduler"
)

const notificationBufferSize = 16

// ErrChannelNotRegistered indicates a publish on an unknown channel.
var ErrChannelNotRegistered = errors.New("notification channel not registered")

// ImportanceHigh marks channels whose notifications interrupt the user.
const ImportanceHigh = "high"

// NotificationChannel describes how notifications on a channel are presented.
type NotificationChannel struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	Importance       string  `json:"importance"`
	VibrationPattern []int64 `json:"vibration_pattern"`
	DefaultSound     bool    `json:"default_sound"`
}

// DeadlineChannel is the channel the delivery worker publishes reminders on.
func DeadlineChannel() NotificationChannel {
	return NotificationChannel{
		ID:               scheduler.DeadlineChannelID,
		Name:             "Deadline reminders",
		Description:      "Reminders sent ahead of task deadlines",
		Importance:       ImportanceHigh,
		VibrationPattern: []int64{0, 500, 250, 500},
		DefaultSound:     true,
	}
}

// NotificationService publishes and streams notifications via SSE.
type NotificationService interface {
	RegisterChannel(channel NotificationChannel) error
	Channels() []NotificationChannel
	Publish(ctx context.Context, req dto.NotificationPublishRequest) (dto.NotificationResponse, error)
	List(ctx context.Context, limit, offset int) ([]dto.NotificationResponse, error)
	MarkRead(ctx context.Context, id uint) (dto.NotificationResponse, error)
	Subscribe() (<-chan dto.NotificationResponse, func())
	SendTest(ctx context.Context) dto.TestNotificationResponse
	Start(ctx context.Context)
}

type notificationService struct {
	repo        repository.NotificationRepository
	settings    SettingsReader
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	broker      *notificationBroker
	nodeID      string

	channelsMu sync.RWMutex
	channels   map[string]NotificationChannel
}

type notificationEvent struct {
	Source       string                   `json:"source"`
	Notification dto.NotificationResponse `json:"notification"`
	SentAt       time.Time                `json:"sent_at"`
}

type notificationBroker struct {
	mu          sync.RWMutex
	subscribers map[chan dto.NotificationResponse]struct{}
}

// NewNotificationService constructs a notification service. Redis and NATS are
// optional fan-out transports between nodes.
func NewNotificationService(repo repository.NotificationRepository, settings SettingsReader, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) NotificationService {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":notifications"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".notifications"
	}

	return &notificationService{
		repo:        repo,
		settings:    settings,
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		validator:   validate,
		logger:      logger.With().Str("component", "notification_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/taskminder-go-api/internal/service/notification"),
		sanitizer:   bluemonday.StrictPolicy(),
		broker: &notificationBroker{
			subscribers: make(map[chan dto.NotificationResponse]struct{}),
		},
		nodeID:   uuid.NewString(),
		channels: make(map[string]NotificationChannel),
	}
}

// RegisterChannel adds or replaces a channel definition.
func (s *notificationService) RegisterChannel(channel NotificationChannel) error {
	if strings.TrimSpace(channel.ID) == "" {
		return errors.New("notification channel id is required")
	}
	if channel.Importance == "" {
		channel.Importance = ImportanceHigh
	}

	s.channelsMu.Lock()
	s.channels[channel.ID] = channel
	s.channelsMu.Unlock()

	s.logger.Info().Str("channel", channel.ID).Str("importance", channel.Importance).Msg("notification channel registered")
	return nil
}

func (s *notificationService) Channels() []NotificationChannel {
	s.channelsMu.RLock()
	defer s.channelsMu.RUnlock()

	out := make([]NotificationChannel, 0, len(s.channels))
	for _, channel := range s.channels {
		out = append(out, channel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *notificationService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *notificationService) Publish(ctx context.Context, req dto.NotificationPublishRequest) (dto.NotificationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.NotificationResponse{}, err
	}

	channel, ok := s.channel(req.ChannelID)
	if !ok {
		return dto.NotificationResponse{}, fmt.Errorf("%w: %s", ErrChannelNotRegistered, req.ChannelID)
	}

	title := strings.TrimSpace(s.sanitizer.Sanitize(req.Title))
	body := strings.TrimSpace(s.sanitizer.Sanitize(req.Body))
	if title == "" || body == "" {
		return dto.NotificationResponse{}, errors.New("notification content empty after sanitization")
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.publish", trace.WithAttributes(
		attribute.String("notification.channel", channel.ID),
		attribute.Int64("notification.task_id", int64(req.TaskID)),
	))
	defer span.End()

	sound := channel.DefaultSound
	if req.Sound != nil {
		sound = *req.Sound
	}
	vibration := len(channel.VibrationPattern) > 0
	if req.Vibration != nil {
		vibration = *req.Vibration && vibration
	}
	if req.Silent {
		sound, vibration = false, false
	}

	metadata := datatypes.JSONMap{"importance": channel.Importance}
	for key, value := range req.Metadata {
		metadata[key] = value
	}
	if vibration {
		metadata["vibration_pattern"] = channel.VibrationPattern
	}

	model := models.Notification{
		TaskID:    req.TaskID,
		TeacherID: req.TeacherID,
		ChannelID: channel.ID,
		Title:     title,
		Body:      body,
		Silent:    req.Silent,
		Sound:     sound,
		Vibration: vibration,
		Metadata:  metadata,
	}

	if err := s.repo.Create(spanCtx, &model); err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	response := dto.NewNotificationResponse(model)
	s.broker.broadcast(response)
	if err := s.publish(spanCtx, response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish notification to broker")
	}

	observability.NotificationsPublishedTotal().WithLabelValues(channel.ID).Inc()

	return response, nil
}

func (s *notificationService) List(ctx context.Context, limit, offset int) ([]dto.NotificationResponse, error) {
	notifications, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return dto.NewNotificationResponseSlice(notifications), nil
}

func (s *notificationService) MarkRead(ctx context.Context, id uint) (dto.NotificationResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "notifications.mark_read", trace.WithAttributes(
		attribute.Int64("notification.id", int64(id)),
	))
	defer span.End()

	notification, err := s.repo.MarkRead(spanCtx, id)
	if err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) Subscribe() (<-chan dto.NotificationResponse, func()) {
	channel := make(chan dto.NotificationResponse, notificationBufferSize)

	s.broker.subscribe(channel)
	observability.NotificationStreamClients().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(channel)
			observability.NotificationStreamClients().Dec()
		})
	}

	return channel, cleanup
}

// SendTest publishes a diagnostic notification on the deadline channel and
// reports the outcome instead of failing.
func (s *notificationService) SendTest(ctx context.Context) dto.TestNotificationResponse {
	settings := s.settings.Snapshot(ctx)
	sound := settings.NotificationSound
	vibration := settings.NotificationVibration

	response, err := s.Publish(ctx, dto.NotificationPublishRequest{
		ChannelID: scheduler.DeadlineChannelID,
		Title:     "Test notification",
		Body:      "Deadline reminders are working.",
		Sound:     &sound,
		Vibration: &vibration,
		Metadata:  map[string]interface{}{"test": true},
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("test notification failed")
		return dto.TestNotificationResponse{Delivered: false, Error: err.Error()}
	}
	return dto.TestNotificationResponse{Delivered: true, Notification: &response}
}

func (s *notificationService) channel(id string) (NotificationChannel, bool) {
	s.channelsMu.RLock()
	defer s.channelsMu.RUnlock()
	channel, ok := s.channels[id]
	return channel, ok
}

func (s *notificationService) publish(ctx context.Context, notification dto.NotificationResponse) error {
	event := notificationEvent{
		Source:       s.nodeID,
		Notification: notification,
		SentAt:       time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *notificationService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("notification redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *notificationService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats notifications subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain notification nats subscription")
		}
	}()
}

func (s *notificationService) handleEvent(payload []byte) {
	var event notificationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid notification event payload")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	s.broker.broadcast(event.Notification)
}

func (b *notificationBroker) subscribe(ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[ch] = struct{}{}
}

func (b *notificationBroker) unsubscribe(ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

func (b *notificationBroker) broadcast(notification dto.NotificationResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- notification:
		default:
		}
	}
}
