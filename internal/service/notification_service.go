package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"wallet-settlement/internal/core/domain"
	"wallet-settlement/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// webhookRetryIntervals are the waits between delivery attempts.
var webhookRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// fundsRequiredWindow bounds how often a merchant is told about the same
// underfunded order.
const fundsRequiredWindow = time.Hour

// Webhook headers.
const (
	HeaderWebhookTimestamp = "X-Webhook-Timestamp"
	HeaderWebhookSignature = "X-Webhook-Signature"
)

// WebhookPayload is the JSON body POSTed to the notification webhook.
type WebhookPayload struct {
	EventType  string         `json:"event_type"`
	ID         string         `json:"id"`
	MerchantID string         `json:"merchant_id"`
	Message    string         `json:"message"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Timestamp  int64          `json:"timestamp"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NotificationConfig holds webhook delivery settings. An empty WebhookURL
// disables delivery; notifications are still persisted.
type NotificationConfig struct {
	WebhookURL    string
	SigningSecret string
}

// notificationService implements ports.NotificationService.
type notificationService struct {
	repo           ports.NotificationRepository
	dedupe         ports.DedupeStore
	sigSvc         ports.SignatureService
	httpClient     HTTPClient
	cfg            NotificationConfig
	retryIntervals []time.Duration
	log            zerolog.Logger
	wg             sync.WaitGroup
}

// NewNotificationService creates a new notification service. repo and dedupe
// may be nil.
func NewNotificationService(
	repo ports.NotificationRepository,
	dedupe ports.DedupeStore,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	cfg NotificationConfig,
	log zerolog.Logger,
) ports.NotificationService {
	return &notificationService{
		repo:           repo,
		dedupe:         dedupe,
		sigSvc:         sigSvc,
		httpClient:     httpClient,
		cfg:            cfg,
		retryIntervals: webhookRetryIntervals,
		log:            log,
	}
}

// Notify persists and delivers a notification in the background. It never
// fails the caller.
func (s *notificationService) Notify(ctx context.Context, merchantID uuid.UUID, kind domain.NotificationKind, message string, metadata map[string]any) {
	if s.suppressed(ctx, merchantID, kind, metadata) {
		s.log.Debug().Str("merchant_id", merchantID.String()).Str("kind", string(kind)).Msg("notification: duplicate suppressed")
		return
	}

	n := &domain.Notification{
		ID:         uuid.New(),
		MerchantID: merchantID,
		Kind:       kind,
		Message:    message,
		Metadata:   metadata,
		CreatedAt:  time.Now().UTC(),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.repo != nil {
			if err := s.repo.Create(context.Background(), n); err != nil {
				s.log.Warn().Err(err).Str("notification_id", n.ID.String()).Msg("notification: failed to persist")
			}
		}
		if s.cfg.WebhookURL == "" {
			return
		}
		s.deliverWithRetries(n)
	}()
}

// Drain blocks until background persistence and delivery finish or ctx ends.
func (s *notificationService) Drain(ctx context.Context) error {
	return waitGroupDone(ctx, &s.wg)
}

// suppressed reports whether a FUNDS_REQUIRED notice for the same order was
// already sent inside the window. Dedupe failures let the notice through.
func (s *notificationService) suppressed(ctx context.Context, merchantID uuid.UUID, kind domain.NotificationKind, metadata map[string]any) bool {
	if s.dedupe == nil || kind != domain.NotificationFundsRequired {
		return false
	}
	orderID, ok := metadata["order_id"]
	if !ok {
		return false
	}
	key := fmt.Sprintf("%s:%s:%v", kind, merchantID, orderID)
	first, err := s.dedupe.FirstSeen(ctx, key, fundsRequiredWindow)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("notification: dedupe check failed")
		return false
	}
	return !first
}

// deliverWithRetries POSTs the signed payload, retrying on failure.
func (s *notificationService) deliverWithRetries(n *domain.Notification) {
	payload := WebhookPayload{
		EventType:  string(n.Kind),
		ID:         n.ID.String(),
		MerchantID: n.MerchantID.String(),
		Message:    n.Message,
		Metadata:   n.Metadata,
		Timestamp:  n.CreatedAt.Unix(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("notification_id", payload.ID).Msg("webhook: failed to marshal payload")
		return
	}
	signature := s.sigSvc.Sign(s.cfg.SigningSecret, webhookSigningString(payload.Timestamp, body))

	for attempt := 0; attempt <= len(s.retryIntervals); attempt++ {
		if attempt > 0 {
			time.Sleep(s.retryIntervals[attempt-1])
		}

		req, err := http.NewRequest(http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
		if err != nil {
			s.log.Error().Err(err).Str("notification_id", payload.ID).Msg("webhook: failed to create request")
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderWebhookTimestamp, strconv.FormatInt(payload.Timestamp, 10))
		req.Header.Set(HeaderWebhookSignature, signature)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.log.Warn().Err(err).Str("notification_id", payload.ID).Int("attempt", attempt+1).Msg("webhook: delivery failed")
			continue
		}
		if resp.Body != nil {
			resp.Body.Close()
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			s.log.Info().Str("notification_id", payload.ID).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("webhook: delivered successfully")
			return
		}

		s.log.Warn().Str("notification_id", payload.ID).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("webhook: non-2xx response, retrying")
	}

	s.log.Error().Str("notification_id", payload.ID).Msg("webhook: all retry attempts exhausted")
}
