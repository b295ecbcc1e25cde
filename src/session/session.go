package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"activ-subscriber/src/interfaces"
	"activ-subscriber/src/logger"
	"activ-subscriber/src/models"
	"activ-subscriber/src/serializers"
	"activ-subscriber/src/transports"

	"github.com/google/uuid"
)

// DefaultConnectTimeout bounds Connect when the caller passes no timeout
const DefaultConnectTimeout = 5 * time.Second

// -----------------------------------------------------------------------------

type subscription struct {
	handle  int64
	symbol  string
	opts    models.MSubscribeOptions
	handler interfaces.ISubscriptionHandler
}

// -----------------------------------------------------------------------------

// Session implements interfaces.ISession on top of a registered transport.
// It also receives the transport events (interfaces.IConnectionEvents).
type Session struct {
	Name       string
	ID         string
	Logger     *logger.Logger
	Config     *models.MSessionConfig
	Params     models.MSessionParameters
	Handler    interfaces.ISessionHandler
	Serializer interfaces.ISerializer

	transport     interfaces.IConnectionClient
	mu            sync.RWMutex
	subscriptions map[int64]*subscription
	nextHandle    int64
	metadata      *models.MMetadata
	connected     bool
	closed        bool
	cancel        context.CancelFunc
	loginCh       chan *models.MFrame
	dictCh        chan struct{}
	done          chan struct{}
	closeOnce     sync.Once
}

// -----------------------------------------------------------------------------

// NewSession creates a session whose transport is looked up by
// config.Transport. Params are consumed once, by the login frame.
func NewSession(config *models.MSessionConfig, endpoint string, params models.MSessionParameters, handler interfaces.ISessionHandler, log *logger.Logger) (*Session, error) {
	if config == nil {
		return nil, fmt.Errorf("session config cannot be nil")
	}
	if handler == nil {
		return nil, fmt.Errorf("session handler cannot be nil")
	}

	id := uuid.NewString()
	s := &Session{
		Name:          "Session",
		ID:            id,
		Logger:        log.Named(fmt.Sprintf("session-%s", id[:8])),
		Config:        config,
		Params:        params,
		Handler:       handler,
		Serializer:    serializers.NewJSONSerializer(),
		subscriptions: make(map[int64]*subscription),
		metadata:      &models.MMetadata{FieldNames: map[models.MFieldID]string{}},
		loginCh:       make(chan *models.MFrame, 1),
		dictCh:        make(chan struct{}, 1),
		done:          make(chan struct{}),
	}

	constructor, err := transports.GetConstructor(config.Transport)
	if err != nil {
		return nil, &SessionError{Op: "create", SessionID: id, Err: err}
	}
	transport, err := constructor(config, endpoint, s.Logger, s)
	if err != nil {
		return nil, &SessionError{Op: "create", SessionID: id, Err: err}
	}
	s.transport = transport

	s.Logger.Info("%s : created %s session for host %s on %s", s.Name, transport.GetType(), params.String(models.FIDHost), transport.GetEndpoint())
	return s, nil
}

// -----------------------------------------------------------------------------
// ISession IMPLEMENTATION
// -----------------------------------------------------------------------------

// GetID returns the unique id of this session instance
func (s *Session) GetID() string {
	return s.ID
}

// -----------------------------------------------------------------------------

// Connect opens the transport, logs in and, when enabled, downloads the field
// dictionary. The whole sequence is bounded by timeout.
func (s *Session) Connect(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return &SessionError{Op: "connect", SessionID: s.ID, Err: ErrClosed}
	}
	if s.connected {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	// the transport outlives the caller's ctx; it stops on Disconnect
	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	deadline := time.AfterFunc(timeout, cancel)

	fail := func(err error) error {
		deadline.Stop()
		cancel()
		_ = s.transport.Disconnect()
		s.Logger.Error("%s : connect failed: %v", s.Name, err)
		return &SessionError{Op: "connect", SessionID: s.ID, Err: err}
	}

	if err := s.transport.Connect(sessCtx); err != nil {
		if sessCtx.Err() != nil && ctx.Err() == nil {
			return fail(fmt.Errorf("%w: %v", ErrLoginTimeout, err))
		}
		return fail(err)
	}

	// drop stale signals left by an earlier attempt
	select {
	case <-s.loginCh:
	default:
	}
	select {
	case <-s.dictCh:
	default:
	}

	if err := s.send(&models.MFrame{Type: models.FrameLogin, Parameters: s.Params.Wire()}); err != nil {
		return fail(fmt.Errorf("failed to send login: %w", err))
	}

	var reply *models.MFrame
	select {
	case reply = <-s.loginCh:
	case <-ctx.Done():
		return fail(ctx.Err())
	case <-sessCtx.Done():
		return fail(ErrLoginTimeout)
	}
	if reply.Type == models.FrameLoginReject {
		return fail(fmt.Errorf("%w: %s", ErrLoginRejected, reply.Message))
	}

	if s.Params.Bool(models.FIDEnableDictionaryDownload) {
		if err := s.send(&models.MFrame{Type: models.FrameDictionaryRequest}); err != nil {
			return fail(fmt.Errorf("failed to request dictionary: %w", err))
		}
		select {
		case <-s.dictCh:
		case <-ctx.Done():
			return fail(ctx.Err())
		case <-sessCtx.Done():
			return fail(fmt.Errorf("timed out waiting for dictionary"))
		}
	}

	if !deadline.Stop() {
		return fail(ErrLoginTimeout)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return &SessionError{Op: "connect", SessionID: s.ID, Err: ErrClosed}
	}
	s.connected = true
	s.cancel = cancel
	s.mu.Unlock()

	s.Logger.Info("%s : logged in on %s", s.Name, s.transport.GetEndpoint())
	s.Handler.OnConnected(s)
	return nil
}

// -----------------------------------------------------------------------------

// Subscribe registers handler for symbol and returns the subscription handle
func (s *Session) Subscribe(symbol string, handler interfaces.ISubscriptionHandler, opts models.MSubscribeOptions) (int64, error) {
	if symbol == "" {
		return 0, &SessionError{Op: "subscribe", SessionID: s.ID, Err: fmt.Errorf("symbol cannot be empty")}
	}
	if handler == nil {
		return 0, &SessionError{Op: "subscribe", SessionID: s.ID, Err: fmt.Errorf("subscription handler cannot be nil")}
	}
	if opts.SymbologyID == "" {
		opts.SymbologyID = models.SymbologyNative
	}
	if opts.DataSourceID == "" {
		opts.DataSourceID = models.DataSourceActiv
	}

	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return 0, &SessionError{Op: "subscribe", SessionID: s.ID, Err: ErrNotConnected}
	}
	sub := &subscription{
		handle:  atomic.AddInt64(&s.nextHandle, 1),
		symbol:  symbol,
		opts:    opts,
		handler: handler,
	}
	// registered before sending so early frames find their handler
	s.subscriptions[sub.handle] = sub
	s.mu.Unlock()

	if err := s.send(subscribeFrame(sub)); err != nil {
		s.mu.Lock()
		delete(s.subscriptions, sub.handle)
		s.mu.Unlock()
		return 0, &SessionError{Op: "subscribe", SessionID: s.ID, Err: err}
	}

	s.Logger.Info("%s : subscribed to %s (handle %d)", s.Name, symbol, sub.handle)
	return sub.handle, nil
}

// -----------------------------------------------------------------------------

// Run blocks until ctx is done or the session is disconnected
func (s *Session) Run(ctx context.Context) error {
	s.mu.RLock()
	connected := s.connected
	closed := s.closed
	s.mu.RUnlock()

	if !connected && !closed {
		return &SessionError{Op: "run", SessionID: s.ID, Err: ErrNotConnected}
	}

	select {
	case <-ctx.Done():
	case <-s.done:
	}
	return nil
}

// -----------------------------------------------------------------------------

// Disconnect logs out and releases the transport. Only the first call has an effect.
func (s *Session) Disconnect() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.shutdown(true)
	})
	return err
}

// -----------------------------------------------------------------------------

// IsConnected returns true between login ack and disconnect
func (s *Session) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// -----------------------------------------------------------------------------

// Metadata returns the field dictionary received at login
func (s *Session) Metadata() *models.MMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metadata
}

// -----------------------------------------------------------------------------

// GetStatus returns a snapshot of the session state
func (s *Session) GetStatus() *models.MSessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		symbols = append(symbols, sub.symbol)
	}
	sort.Strings(symbols)

	return &models.MSessionStatus{
		SessionID:     s.ID,
		Connected:     s.connected,
		Host:          s.Params.String(models.FIDHost),
		TransportType: s.transport.GetType(),
		Endpoint:      s.transport.GetEndpoint(),
		Symbols:       symbols,
	}
}

// -----------------------------------------------------------------------------
// IConnectionEvents IMPLEMENTATION
// -----------------------------------------------------------------------------

// OnRawData decodes one frame and dispatches it
func (s *Session) OnRawData(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.Logger.ErrorWithStack("%s : panic while dispatching frame: %v", s.Name, r)
		}
	}()

	frame, err := decodeFrame(s.Serializer, data)
	if err != nil {
		s.Logger.Error("%s : %v (raw: %s)", s.Name, err, string(data))
		s.Handler.OnError(s, &SessionError{Op: "decode", SessionID: s.ID, Err: err})
		return
	}
	if frame == nil {
		return
	}

	switch frame.Type {
	case models.FrameLoginAck, models.FrameLoginReject:
		// a reject outside Connect answers the re-login after a reconnect
		if frame.Type == models.FrameLoginReject && s.IsConnected() {
			s.onLoginRevoked(frame.Message)
			return
		}
		select {
		case s.loginCh <- frame:
		default:
		}

	case models.FrameDictionary:
		s.mu.Lock()
		s.metadata = &models.MMetadata{FieldNames: frame.Dictionary}
		s.mu.Unlock()
		s.Logger.Debug("%s : dictionary received with %d fields", s.Name, len(frame.Dictionary))
		select {
		case s.dictCh <- struct{}{}:
		default:
		}

	case models.FrameLog:
		s.Handler.OnLog(s, frame.LogType, frame.Message)

	case models.FrameError:
		s.Handler.OnError(s, &SessionError{Op: "gateway", SessionID: s.ID, Err: errors.New(frame.Message)})

	default:
		s.dispatch(frame)
	}
}

// -----------------------------------------------------------------------------

// OnTransportError forwards transport failures to the session handler
func (s *Session) OnTransportError(err error) {
	s.Handler.OnError(s, &SessionError{Op: "transport", SessionID: s.ID, Err: err})
}

// -----------------------------------------------------------------------------

// OnReconnected logs in again and replays the subscribe requests. It does not
// wait for the acks: it runs on the transport's receive loop.
func (s *Session) OnReconnected() {
	if !s.IsConnected() {
		return
	}

	s.Logger.Info("%s : transport reconnected, logging in again", s.Name)
	if err := s.send(&models.MFrame{Type: models.FrameLogin, Parameters: s.Params.Wire()}); err != nil {
		s.OnTransportError(fmt.Errorf("failed to log in after reconnect: %w", err))
		return
	}
	if s.Params.Bool(models.FIDEnableDictionaryDownload) {
		if err := s.send(&models.MFrame{Type: models.FrameDictionaryRequest}); err != nil {
			s.OnTransportError(fmt.Errorf("failed to request dictionary after reconnect: %w", err))
		}
	}

	s.mu.RLock()
	subs := make([]*subscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		subs = append(subs, sub)
	}
	s.mu.RUnlock()
	sort.Slice(subs, func(i, j int) bool { return subs[i].handle < subs[j].handle })

	for _, sub := range subs {
		if err := s.send(subscribeFrame(sub)); err != nil {
			s.OnTransportError(fmt.Errorf("failed to resubscribe %s: %w", sub.symbol, err))
		}
	}
}

// -----------------------------------------------------------------------------

// OnClosed releases the session after the transport gave up
func (s *Session) OnClosed() {
	s.closeOnce.Do(func() {
		s.Logger.Warning("%s : transport closed, session lost", s.Name)
		_ = s.shutdown(false)
	})
}

// -----------------------------------------------------------------------------
// PRIVATE METHODS
// -----------------------------------------------------------------------------

// onLoginRevoked reports a rejected re-login and releases the session
func (s *Session) onLoginRevoked(reason string) {
	s.Logger.Error("%s : login rejected after reconnect: %s", s.Name, reason)
	s.Handler.OnError(s, &SessionError{Op: "login", SessionID: s.ID, Err: fmt.Errorf("%w: %s", ErrLoginRejected, reason)})
	s.closeOnce.Do(func() {
		_ = s.shutdown(false)
	})
}

// -----------------------------------------------------------------------------

func (s *Session) dispatch(frame *models.MFrame) {
	s.mu.RLock()
	sub, ok := s.subscriptions[frame.Handle]
	metadata := s.metadata
	s.mu.RUnlock()

	if !ok {
		s.Logger.Warning("%s : dropping %s frame for unknown handle %d", s.Name, frame.Type, frame.Handle)
		return
	}

	ctx := &models.MSubscriptionContext{Handle: sub.handle, Metadata: metadata}
	switch frame.Type {
	case models.FrameRefresh:
		sub.handler.OnRefresh(frame.Refresh, ctx)
	case models.FrameUpdate:
		sub.handler.OnUpdate(frame.Update, ctx)
	case models.FrameSubscriptionStatus:
		sub.handler.OnSubscriptionStatus(frame.SubscriptionStatus, ctx)
	case models.FrameTopicStatus:
		sub.handler.OnTopicStatus(frame.TopicStatus, ctx)
	}
}

// -----------------------------------------------------------------------------

func (s *Session) shutdown(logout bool) error {
	s.mu.Lock()
	wasConnected := s.connected
	s.connected = false
	s.closed = true
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if logout && wasConnected {
		if err := s.send(&models.MFrame{Type: models.FrameLogout}); err != nil {
			s.Logger.Warning("%s : failed to send logout: %v", s.Name, err)
		}
	}

	err := s.transport.Disconnect()
	if cancel != nil {
		cancel()
	}
	close(s.done)

	if wasConnected {
		s.Logger.Info("%s : disconnected", s.Name)
		s.Handler.OnDisconnected(s)
	}

	if err != nil {
		return &SessionError{Op: "disconnect", SessionID: s.ID, Err: err}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *Session) send(frame *models.MFrame) error {
	data, err := s.Serializer.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to encode %s frame: %w", frame.Type, err)
	}
	return s.transport.SendMessage(data)
}

// -----------------------------------------------------------------------------

func subscribeFrame(sub *subscription) *models.MFrame {
	return &models.MFrame{
		Type:         models.FrameSubscribe,
		Handle:       sub.handle,
		Symbol:       sub.symbol,
		SymbologyID:  sub.opts.SymbologyID,
		DataSourceID: sub.opts.DataSourceID,
	}
}
