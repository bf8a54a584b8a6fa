package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sectorwatch/sectorwatch/internal/config"
	"github.com/sectorwatch/sectorwatch/internal/models"
)

// NATSPublisher publishes the JSON envelopes to core NATS subjects.
type NATSPublisher struct {
	nc              *nats.Conn
	statusSubject   string
	topologySubject string
	logger          *slog.Logger
}

var _ Publisher = (*NATSPublisher)(nil)

// ConnectNATS dials the configured server and returns a publisher.
func ConnectNATS(cfg config.NATSConfig, logger *slog.Logger) (*NATSPublisher, error) {
	logger = logger.With("component", "nats")

	opts := []nats.Option{
		nats.Name("sectorwatch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Error("nats error", "error", err)
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("connected to nats", "url", nc.ConnectedUrl())

	return NewNATSPublisher(nc, cfg.StatusSubject, cfg.TopologySubject, logger), nil
}

func NewNATSPublisher(nc *nats.Conn, statusSubject, topologySubject string, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{
		nc:              nc,
		statusSubject:   statusSubject,
		topologySubject: topologySubject,
		logger:          logger,
	}
}

func (p *NATSPublisher) PublishSnapshot(ctx context.Context, snap *models.Snapshot) error {
	return p.publish(ctx, p.statusSubject, TypeStatusSnapshot, snap)
}

func (p *NATSPublisher) PublishTopologyChange(ctx context.Context, links []models.Link) error {
	if links == nil {
		links = []models.Link{}
	}
	return p.publish(ctx, p.topologySubject, TypeTopologyChanged, links)
}

func (p *NATSPublisher) publish(ctx context.Context, subject, msgType string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := encode(msgType, data)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	p.logger.Debug("published", "subject", subject, "type", msgType, "bytes", len(payload))
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
