package factories

import (
	"fmt"

	"activ-subscriber/src/config"
	"activ-subscriber/src/interfaces"
	"activ-subscriber/src/logger"
	"activ-subscriber/src/publishers"
	"activ-subscriber/src/serializers"
	"activ-subscriber/src/session"
	"activ-subscriber/src/storage"
)

// -----------------------------------------------------------------------------

// SessionFactory builds the session and its optional sinks from configuration
type SessionFactory struct {
	Name   string
	Config *config.Config
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

// NewSessionFactory creates a new SessionFactory instance
func NewSessionFactory(config *config.Config, logger *logger.Logger) *SessionFactory {
	return &SessionFactory{
		Name:   "SessionFactory",
		Config: config,
		Logger: logger,
	}
}

// -----------------------------------------------------------------------------

// CreateSession creates a session on the configured transport. The session
// parameters are built here and handed over once.
func (sf *SessionFactory) CreateSession(handler interfaces.ISessionHandler) (interfaces.ISession, error) {
	newSession, err := session.NewSession(
		&sf.Config.Session,
		sf.Config.SessionEndpoint(),
		sf.Config.SessionParameters(),
		handler,
		sf.Logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s session: %w", sf.Config.Session.Transport, err)
	}

	sf.Logger.Info("%s : successfully created session %s of type %s",
		sf.Name,
		newSession.GetID(),
		sf.Config.Session.Transport,
	)
	return newSession, nil
}

// -----------------------------------------------------------------------------

// CreatePublisher creates the NATS publisher with the configured serializer
func (sf *SessionFactory) CreatePublisher() (interfaces.IPublisher, error) {
	serializer, err := serializers.New(sf.Config.NATS.Serializer)
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	sf.Logger.Info("%s : publisher %s uses %s payloads", sf.Name, sf.Config.NATS.ClientID, serializer.Name())
	return publishers.NewNATSPublisher(&sf.Config.NATS, sf.Logger, serializer), nil
}

// -----------------------------------------------------------------------------

// CreateRecorder creates the sqlite recorder; it still has to be initialized
func (sf *SessionFactory) CreateRecorder() interfaces.IRecorder {
	return storage.NewSQLiteRecorder(sf.Config.Recorder.DBPath, sf.Logger)
}
