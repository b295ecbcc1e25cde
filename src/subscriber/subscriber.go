package subscriber

import (
	"context"
	"fmt"
	"sync"
	"time"

	"activ-subscriber/src/config"
	"activ-subscriber/src/factories"
	"activ-subscriber/src/handlers"
	"activ-subscriber/src/health"
	"activ-subscriber/src/interfaces"
	"activ-subscriber/src/logger"
	"activ-subscriber/src/models"
	"activ-subscriber/src/storage"
)

const (
	waitTick        = time.Second
	shutdownTimeout = 5 * time.Second
)

// -----------------------------------------------------------------------------

// Subscriber wires one session, its handlers and the optional sinks
// (NATS publisher, sqlite recorder, gRPC health service) together.
type Subscriber struct {
	Name    string
	Config  *config.Config
	Logger  *logger.Logger
	Factory *factories.SessionFactory

	// NewSession creates the session; it defaults to Factory.CreateSession
	NewSession func(handler interfaces.ISessionHandler) (interfaces.ISession, error)

	Session   interfaces.ISession
	Publisher interfaces.IPublisher
	Recorder  interfaces.IRecorder
	Health    *health.GRPCService
	Handle    int64

	mu       sync.Mutex
	stopOnce sync.Once
	stopErr  error
}

// -----------------------------------------------------------------------------

// NewSubscriber creates a new Subscriber instance
func NewSubscriber(config *config.Config, logger *logger.Logger) *Subscriber {
	factory := factories.NewSessionFactory(config, logger)
	return &Subscriber{
		Name:       "Subscriber",
		Config:     config,
		Logger:     logger,
		Factory:    factory,
		NewSession: factory.CreateSession,
	}
}

// -----------------------------------------------------------------------------

// Start brings up the sinks, connects the session and subscribes the configured symbol
func (s *Subscriber) Start(ctx context.Context) error {
	s.Logger.Info("%s : starting", s.Name)

	// 1. Health service first so the NOT_SERVING state is observable during login
	if s.Config.Health.Enabled {
		svc, err := health.NewGRPCService(&s.Config.Health, s.Logger)
		if err != nil {
			return fmt.Errorf("failed to create health service: %w", err)
		}
		if err := svc.Start(); err != nil {
			return fmt.Errorf("failed to start health service: %w", err)
		}
		s.setHealth(svc)
	}

	// 2. Sinks - fail fast if the publisher is unavailable
	sinks, err := s.startSinks()
	if err != nil {
		return err
	}

	// 3. Handlers and session
	sessionHandler := handlers.NewSessionHandler(s.Logger, s.onStateChange)
	subscriptionHandler := handlers.NewSubscriptionHandler(s.Logger, sinks...)

	sess, err := s.NewSession(sessionHandler)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	s.mu.Lock()
	s.Session = sess
	s.mu.Unlock()

	s.Logger.Info("%s : connecting session %s", s.Name, sess.GetID())
	if err := sess.Connect(ctx, s.Config.Session.ConnectTimeout); err != nil {
		return fmt.Errorf("failed to connect session: %w", err)
	}

	s.recordDictionary(sess.Metadata())

	// 4. Subscription
	symbol := s.Config.Subscription.Symbol
	handle, err := sess.Subscribe(symbol, subscriptionHandler, s.Config.SubscribeOptions())
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", symbol, err)
	}
	s.mu.Lock()
	s.Handle = handle
	s.mu.Unlock()

	s.Logger.Info("%s : subscribed to %s with handle %d", s.Name, symbol, handle)
	return nil
}

// -----------------------------------------------------------------------------

// Wait blocks until ctx is cancelled, waking up once per second
func (s *Subscriber) Wait(ctx context.Context) {
	ticker := time.NewTicker(waitTick)
	defer ticker.Stop()

	reported := false
	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("%s : wait loop interrupted", s.Name)
			return
		case <-ticker.C:
			sess := s.currentSession()
			if sess == nil {
				continue
			}
			// report a lost session once, keep waiting for the interrupt
			if !sess.IsConnected() && !reported {
				s.Logger.Warning("%s : session %s is no longer connected", s.Name, sess.GetID())
				reported = true
			} else if sess.IsConnected() {
				reported = false
			}
		}
	}
}

// -----------------------------------------------------------------------------

// Stop disconnects the session exactly once, then closes the sinks.
// Later calls return the result of the first one.
func (s *Subscriber) Stop() error {
	s.stopOnce.Do(func() {
		s.Logger.Info("%s : stopping", s.Name)

		if sess := s.currentSession(); sess != nil {
			if err := sess.Disconnect(); err != nil {
				s.Logger.Error("%s : failed to disconnect session: %v", s.Name, err)
				s.stopErr = fmt.Errorf("failed to disconnect session: %w", err)
			}
		}

		if s.Publisher != nil {
			if err := s.Publisher.Disconnect(); err != nil {
				s.Logger.Error("%s : failed to disconnect publisher: %v", s.Name, err)
			}
		}

		if s.Recorder != nil {
			if err := s.Recorder.Close(); err != nil {
				s.Logger.Error("%s : failed to close recorder: %v", s.Name, err)
			}
		}

		if svc := s.healthService(); svc != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := svc.Stop(ctx); err != nil {
				s.Logger.Error("%s : failed to stop health service: %v", s.Name, err)
			}
		}

		s.Logger.Info("%s : stopped", s.Name)
	})
	return s.stopErr
}

// -----------------------------------------------------------------------------
// PRIVATE METHODS
// -----------------------------------------------------------------------------

func (s *Subscriber) startSinks() ([]interfaces.IMessageSink, error) {
	var sinks []interfaces.IMessageSink

	if s.Config.NATS.Enabled {
		publisher, err := s.Factory.CreatePublisher()
		if err != nil {
			return nil, err
		}
		s.Logger.Info("%s : connecting to publisher", s.Name)
		if err := publisher.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to publisher: %w", err)
		}
		s.Publisher = publisher
		sinks = append(sinks, publisher)
	}

	if s.Config.Recorder.Enabled {
		recorder := s.Factory.CreateRecorder()
		if err := recorder.Initialize(); err != nil {
			return nil, fmt.Errorf("failed to open recorder: %w", err)
		}
		s.Recorder = recorder
		sinks = append(sinks, recorder)
	}

	return sinks, nil
}

// -----------------------------------------------------------------------------

// recordDictionary stores the field dictionary so a replay can name the fields
func (s *Subscriber) recordDictionary(metadata *models.MMetadata) {
	if s.Recorder == nil || metadata == nil || len(metadata.FieldNames) == 0 {
		return
	}
	frame := &models.MFrame{
		Type:       models.FrameDictionary,
		Symbol:     storage.DictionaryTopic,
		Dictionary: metadata.FieldNames,
	}
	if err := s.Recorder.Record(frame); err != nil {
		s.Logger.Warning("%s : failed to record dictionary: %v", s.Name, err)
	}
}

// -----------------------------------------------------------------------------

func (s *Subscriber) onStateChange(connected bool) {
	if svc := s.healthService(); svc != nil {
		svc.SetConnected(connected)
	}
}

// -----------------------------------------------------------------------------

func (s *Subscriber) currentSession() interfaces.ISession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Session
}

func (s *Subscriber) healthService() *health.GRPCService {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Health
}

func (s *Subscriber) setHealth(svc *health.GRPCService) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Health = svc
}
