package publishers

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"activ-subscriber/src/interfaces"
	"activ-subscriber/src/logger"
	"activ-subscriber/src/models"

	"github.com/nats-io/nats.go"
)

// Message kinds, used as the second subject token
const (
	KindRefresh = "refresh"
	KindUpdate  = "update"
)

var _ interfaces.IPublisher = (*NATSPublisher)(nil)

// -----------------------------------------------------------------------------

// NATSPublisher forwards every refresh and update to NATS, on the subject
// <prefix>.<kind>.<symbol>. It implements interfaces.IPublisher.
type NATSPublisher struct {
	name   string
	config *models.MNATSConfig
	logger *logger.Logger

	useJetStream bool

	mu sync.RWMutex

	nc         *nats.Conn             // NATS core connection
	js         nats.JetStreamContext  // JetStream context (if enabled)
	serializer interfaces.ISerializer // serialize message before sending

	connected atomic.Bool
}

// -----------------------------------------------------------------------------

// NewNATSPublisher creates a new NATS publisher instance
func NewNATSPublisher(config *models.MNATSConfig, logger *logger.Logger, serializer interfaces.ISerializer) *NATSPublisher {
	return &NATSPublisher{
		name:       config.ClientID,
		config:     config,
		logger:     logger,
		serializer: serializer,
	}
}

// -----------------------------------------------------------------------------

// OnRefresh publishes a refresh message
func (np *NATSPublisher) OnRefresh(msg *models.MRefreshMessage) {
	if msg == nil {
		return
	}
	np.publishMessage(KindRefresh, msg.Symbol, msg)
}

// -----------------------------------------------------------------------------

// OnUpdate publishes an update message
func (np *NATSPublisher) OnUpdate(msg *models.MUpdateMessage) {
	if msg == nil {
		return
	}
	np.publishMessage(KindUpdate, msg.Symbol, msg)
}

// -----------------------------------------------------------------------------

func (np *NATSPublisher) publishMessage(kind string, symbol string, msg interface{}) {
	subject := fmt.Sprintf("%s.%s", kind, symbol)

	data, err := np.serializer.Marshal(msg)
	if err != nil {
		np.logger.Error("%s : failed to serialize %s for %s: %v", np.name, kind, symbol, err)
		return
	}

	if np.useJetStream {
		err = np.PublishJetStream(subject, data)
	} else {
		err = np.Publish(subject, data)
	}
	if err != nil {
		np.logger.Error("%s : failed to publish %s for %s to NATS subject %s: %v",
			np.name, kind, symbol, np.getSubject(subject), err)
	}
}

// -----------------------------------------------------------------------------

// Publish sends raw data to a NATS core subject.
func (np *NATSPublisher) Publish(subject string, data []byte) error {
	if !np.IsConnected() {
		return fmt.Errorf("nats client not connected")
	}

	np.mu.RLock()
	nc := np.nc
	np.mu.RUnlock()

	// fire-and-forget; use PublishJetStream for persistence
	msg := nats.NewMsg(np.getSubject(subject))
	msg.Data = data
	msg.Header.Set("Content-Type", np.serializer.Name())
	return nc.PublishMsg(msg)
}

// -----------------------------------------------------------------------------

// PublishJetStream sends raw data using JetStream.
func (np *NATSPublisher) PublishJetStream(subject string, data []byte) error {
	if !np.IsConnected() {
		return fmt.Errorf("nats client not connected")
	}

	np.mu.RLock()
	js := np.js
	np.mu.RUnlock()
	if js == nil {
		return fmt.Errorf("jetstream is not initialized or enabled")
	}

	fullSubject := np.getSubject(subject)
	msg := nats.NewMsg(fullSubject)
	msg.Data = data
	msg.Header.Set("Content-Type", np.serializer.Name())

	if _, err := js.PublishMsg(msg); err != nil {
		np.logger.Error("%s : jetstream publish failed for %s: %v", np.name, fullSubject, err)
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Connect establishes connection to NATS server and sets up JetStream context if configured.
func (np *NATSPublisher) Connect() error {
	np.mu.Lock()
	defer np.mu.Unlock()

	if np.nc != nil && np.nc.IsConnected() {
		return nil
	}
	if len(np.config.Servers) == 0 {
		return fmt.Errorf("no NATS servers configured")
	}

	opts := []nats.Option{
		nats.Name(np.config.ClientID),
		nats.Timeout(np.config.ConnectTimeout),
		nats.ReconnectWait(np.config.ReconnectWait),
		nats.MaxReconnects(np.config.MaxReconnects),
		nats.FlusherTimeout(np.config.FlushTimeout),

		// Connection Event Handlers
		nats.ClosedHandler(func(nc *nats.Conn) {
			np.logger.Warning("%s : NATS connection closed", np.name)
			np.connected.Store(false)
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			np.logger.Warning("%s : NATS disconnected, attempting reconnect: %v", np.name, err)
			np.connected.Store(false)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			np.logger.Info("%s : NATS successfully reconnected to %s", np.name, nc.ConnectedUrl())
			np.connected.Store(true)
		}),
	}

	nc, err := nats.Connect(strings.Join(np.config.Servers, ","), opts...)
	if err != nil {
		return fmt.Errorf("nats connection failed: %w", err)
	}
	np.nc = nc
	np.connected.Store(true)
	np.logger.Info("%s : successfully connected to NATS at %s", np.name, nc.ConnectedUrl())

	if np.config.JetStream == nil || !np.config.JetStream.Enabled {
		np.useJetStream = false
		np.logger.Info("%s : publisher using NATS Core (fire-and-forget), JetStream is disabled in config", np.name)
		return nil
	}

	np.useJetStream = true
	np.js, err = nc.JetStream()
	if err != nil {
		np.logger.Error("%s : failed to create JetStream context: %v", np.name, err)
		return fmt.Errorf("jetstream context creation failed: %w", err)
	}
	np.logger.Info("%s : JetStream context initialized", np.name)

	// publishing fails later if the stream really is missing
	if err := np.ensureStreamExists(); err != nil {
		np.logger.Warning("%s : failed to ensure stream exists: %v (continuing anyway)", np.name, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// ensureStreamExists creates the JetStream stream described by the configuration when missing
func (np *NATSPublisher) ensureStreamExists() error {
	if np.js == nil || np.config.JetStream == nil {
		return fmt.Errorf("jetstream not initialized")
	}

	streamConfig, err := np.streamConfig()
	if err != nil {
		return err
	}

	if stream, err := np.js.StreamInfo(streamConfig.Name); err == nil {
		np.logger.Info("%s : JetStream stream '%s' already exists with %d subjects",
			np.name, streamConfig.Name, len(stream.Config.Subjects))
		return nil
	}

	np.logger.Info("%s : creating JetStream stream '%s'", np.name, streamConfig.Name)
	if _, err := np.js.AddStream(streamConfig); err != nil {
		return fmt.Errorf("failed to create stream '%s': %w", streamConfig.Name, err)
	}

	np.logger.Info("%s : successfully created JetStream stream '%s' with subjects: %v",
		np.name, streamConfig.Name, streamConfig.Subjects)
	return nil
}

// -----------------------------------------------------------------------------

func (np *NATSPublisher) streamConfig() (*nats.StreamConfig, error) {
	js := np.config.JetStream
	if js.StreamName == "" {
		return nil, fmt.Errorf("stream name not configured")
	}

	subjects := js.Subjects
	if len(subjects) == 0 {
		subjects = []string{np.getSubject(">")}
	}
	maxAge := js.MaxAge
	if maxAge == 0 {
		maxAge = 24 * time.Hour
	}
	replicas := js.Replicas
	if replicas <= 0 {
		replicas = 1
	}

	return &nats.StreamConfig{
		Name:       js.StreamName,
		Subjects:   subjects,
		Retention:  nats.LimitsPolicy,
		Storage:    nats.FileStorage,
		Replicas:   replicas,
		MaxAge:     maxAge,
		MaxMsgs:    js.MaxMsgs,
		MaxBytes:   js.MaxBytes,
		MaxMsgSize: int32(js.MaxMsgSize),
		Discard:    nats.DiscardOld,
	}, nil
}

// -----------------------------------------------------------------------------

// Disconnect drains pending messages and closes the NATS connection
func (np *NATSPublisher) Disconnect() error {
	np.mu.Lock()
	defer np.mu.Unlock()

	if np.nc == nil || np.nc.IsClosed() {
		return nil
	}

	if err := np.nc.FlushTimeout(np.flushTimeout()); err != nil {
		np.logger.Warning("%s : flush before close failed: %v", np.name, err)
	}
	np.nc.Close()
	np.connected.Store(false)
	np.logger.Info("%s : NATS connection closed successfully", np.name)
	return nil
}

// -----------------------------------------------------------------------------

// IsConnected returns connection status
func (np *NATSPublisher) IsConnected() bool {
	return np.connected.Load()
}

// -----------------------------------------------------------------------------

// GetName returns client identifier
func (np *NATSPublisher) GetName() string {
	return np.name
}

// -----------------------------------------------------------------------------

func (np *NATSPublisher) flushTimeout() time.Duration {
	if np.config.FlushTimeout > 0 {
		return np.config.FlushTimeout
	}
	return time.Second
}

// -----------------------------------------------------------------------------

// getSubject prepends the configured subject prefix if it exists.
func (np *NATSPublisher) getSubject(subject string) string {
	if np.config.SubjectPrefix != "" {
		return fmt.Sprintf("%s.%s", np.config.SubjectPrefix, subject)
	}
	return subject
}
