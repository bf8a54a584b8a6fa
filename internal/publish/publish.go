// Package publish pushes committed snapshots and topology changes to
// consumers: WebSocket clients through the in-process event bus, and
// optionally a NATS subject.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sectorwatch/sectorwatch/internal/models"
)

// ErrPublish wraps every delivery failure.
var ErrPublish = errors.New("publish failed")

// Message types on the wire.
const (
	TypeStatusSnapshot  = "status-snapshot"
	TypeTopologyChanged = "topology-changed"
)

// Publisher delivers snapshots and topology changes. Implementations must
// not block the caller on slow consumers.
type Publisher interface {
	PublishSnapshot(ctx context.Context, snap *models.Snapshot) error
	PublishTopologyChange(ctx context.Context, links []models.Link) error
}

// Message is the JSON envelope shared by every transport.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

func encode(msgType string, data interface{}) ([]byte, error) {
	b, err := json.Marshal(Message{Type: msgType, Data: data, Timestamp: time.Now().UTC()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s message: %w", msgType, err)
	}
	return b, nil
}

// Fanout calls every publisher and joins their errors.
type Fanout struct {
	publishers []Publisher
}

var _ Publisher = (*Fanout)(nil)

// NewFanout ignores nil publishers.
func NewFanout(publishers ...Publisher) *Fanout {
	f := &Fanout{}
	for _, p := range publishers {
		if p != nil {
			f.publishers = append(f.publishers, p)
		}
	}
	return f
}

// Len returns the number of wrapped publishers.
func (f *Fanout) Len() int {
	return len(f.publishers)
}

func (f *Fanout) PublishSnapshot(ctx context.Context, snap *models.Snapshot) error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.PublishSnapshot(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return joinPublishErrors(errs)
}

func (f *Fanout) PublishTopologyChange(ctx context.Context, links []models.Link) error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.PublishTopologyChange(ctx, links); err != nil {
			errs = append(errs, err)
		}
	}
	return joinPublishErrors(errs)
}

func joinPublishErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPublish, errors.Join(errs...))
}
