package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"

	"github.com/krackn88/hybrid-dev-beta/pkg/types"
)

// Reason identifies why a webhook delivery was rejected
type Reason string

const (
	ReasonMissingSignature       Reason = "missing_signature"
	ReasonBadSignature           Reason = "bad_signature"
	ReasonMalformedPayload       Reason = "malformed_payload"
	ReasonSignatureNotConfigured Reason = "signature_not_configured"
)

// Rejection is returned by Accept for deliveries that must not trigger a run
type Rejection struct {
	Reason Reason
	Err    error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("webhook rejected (%s): %v", r.Reason, r.Err)
	}
	return fmt.Sprintf("webhook rejected (%s)", r.Reason)
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

// HTTPStatus maps the rejection to the response code sent to GitHub
func (r *Rejection) HTTPStatus() int {
	if r.Reason == ReasonMalformedPayload {
		return http.StatusBadRequest
	}
	return http.StatusForbidden
}

// deliveryWindow is how long delivery IDs are remembered for replay detection
const deliveryWindow = time.Hour

// Delivery describes a verified webhook request
type Delivery struct {
	ID        string
	EventType string
	Ref       string
	// Change is set only for a push to the managed branch
	Change *types.ChangeEvent
	// Duplicate is set when the delivery ID was already seen
	Duplicate bool
}

// WebhookSource turns signed GitHub deliveries into change events
type WebhookSource struct {
	secret   []byte
	insecure bool
	branch   string
	logger   *zap.Logger
	now      func() time.Time

	mu         sync.Mutex
	deliveries map[string]time.Time
}

// NewWebhookSource creates a WebhookSource for pushes to branch. With an empty
// secret every delivery is rejected unless insecure is set.
func NewWebhookSource(secret string, insecure bool, branch string, logger *zap.Logger) *WebhookSource {
	ws := &WebhookSource{
		secret:     []byte(secret),
		insecure:   insecure,
		branch:     branch,
		logger:     logger,
		now:        time.Now,
		deliveries: make(map[string]time.Time),
	}

	switch {
	case secret != "":
	case insecure:
		logger.Warn("webhook signature verification disabled, accepting unsigned deliveries")
	default:
		logger.Error("webhook secret not configured, all deliveries will be rejected")
	}

	return ws
}

// Accept verifies and decodes one delivery. A nil Change on the returned
// Delivery means the event was acknowledged but ignored.
func (ws *WebhookSource) Accept(body []byte, header http.Header) (*Delivery, error) {
	delivery := &Delivery{
		ID:        header.Get("X-GitHub-Delivery"),
		EventType: header.Get("X-GitHub-Event"),
	}

	if err := ws.verify(body, header.Get("X-Hub-Signature-256"), delivery.ID); err != nil {
		return nil, err
	}

	if len(body) == 0 {
		return nil, &Rejection{Reason: ReasonMalformedPayload, Err: errors.New("empty body")}
	}
	if !json.Valid(body) {
		return nil, &Rejection{Reason: ReasonMalformedPayload, Err: errors.New("invalid JSON")}
	}
	if delivery.EventType == "" {
		return nil, &Rejection{Reason: ReasonMalformedPayload, Err: errors.New("missing X-GitHub-Event header")}
	}

	if delivery.ID != "" && ws.seen(delivery.ID) {
		delivery.Duplicate = true
		return delivery, nil
	}

	if delivery.EventType != "push" {
		return delivery, nil
	}

	payload, err := github.ParseWebHook(delivery.EventType, body)
	if err != nil {
		ws.forget(delivery.ID)
		return nil, &Rejection{Reason: ReasonMalformedPayload, Err: err}
	}
	push, ok := payload.(*github.PushEvent)
	if !ok {
		ws.forget(delivery.ID)
		return nil, &Rejection{Reason: ReasonMalformedPayload, Err: fmt.Errorf("unexpected payload type %T", payload)}
	}

	delivery.Ref = push.GetRef()
	if delivery.Ref != "refs/heads/"+ws.branch || push.GetDeleted() || push.GetAfter() == "" {
		return delivery, nil
	}

	delivery.Change = &types.ChangeEvent{
		CommitSHA:  push.GetAfter(),
		DetectedAt: ws.now(),
		Source:     types.SourceWebhook,
		DeliveryID: delivery.ID,
	}

	return delivery, nil
}

func (ws *WebhookSource) verify(body []byte, signature, deliveryID string) error {
	if len(ws.secret) == 0 {
		if !ws.insecure {
			return &Rejection{Reason: ReasonSignatureNotConfigured}
		}
		ws.logger.Warn("accepting unsigned webhook delivery", zap.String("delivery_id", deliveryID))
		return nil
	}
	if signature == "" {
		return &Rejection{Reason: ReasonMissingSignature}
	}
	if !VerifySignature(ws.secret, body, signature) {
		return &Rejection{Reason: ReasonBadSignature}
	}
	return nil
}

// seen records id and reports whether it was already recorded within the window
func (ws *WebhookSource) seen(id string) bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	now := ws.now()
	for known, at := range ws.deliveries {
		if now.Sub(at) > deliveryWindow {
			delete(ws.deliveries, known)
		}
	}

	if _, ok := ws.deliveries[id]; ok {
		return true
	}
	ws.deliveries[id] = now
	return false
}

// forget drops id so a redelivery of a rejected payload is evaluated again
func (ws *WebhookSource) forget(id string) {
	if id == "" {
		return
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	delete(ws.deliveries, id)
}
