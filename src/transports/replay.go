package transports

import (
	"context"
	"fmt"
	"sync"
	"time"

	"activ-subscriber/src/interfaces"
	"activ-subscriber/src/logger"
	"activ-subscriber/src/models"
	"activ-subscriber/src/serializers"
	"activ-subscriber/src/storage"
)

// -----------------------------------------------------------------------------

func init() {
	if err := Register("replay", NewReplayTransport); err != nil {
		fmt.Printf("Error registering replay transport: %v\n", err)
	}
}

// -----------------------------------------------------------------------------

// ReplayClient plays a sqlite recording back as if it came from the gateway.
// It answers the frames the session sends and streams the recorded refreshes
// and updates of every subscribed symbol.
type ReplayClient struct {
	name       string
	path       string
	interval   time.Duration
	logger     *logger.Logger
	events     interfaces.IConnectionEvents
	recorder   interfaces.IRecorder
	serializer interfaces.ISerializer
	isRunning  bool
	mu         sync.RWMutex
	outbound   chan []byte
	done       chan struct{}
	ctx        context.Context
	players    sync.WaitGroup
}

// -----------------------------------------------------------------------------

// NewReplayTransport matches interfaces.IConnectionConstructor. The endpoint is
// ignored in favour of config.ReplayPath when the latter is set.
func NewReplayTransport(config *models.MSessionConfig, endpoint string, logger *logger.Logger, events interfaces.IConnectionEvents) (interfaces.IConnectionClient, error) {
	path := endpoint
	var interval time.Duration
	buffer := 1000
	if config != nil {
		if config.ReplayPath != "" {
			path = config.ReplayPath
		}
		interval = config.ReplayInterval
		if config.MessageBuffer > 0 {
			buffer = config.MessageBuffer
		}
	}
	if path == "" {
		return nil, fmt.Errorf("replay path cannot be empty")
	}

	return &ReplayClient{
		name:       "replay",
		path:       path,
		interval:   interval,
		logger:     logger,
		events:     events,
		recorder:   storage.NewSQLiteRecorder(path, logger),
		serializer: serializers.NewJSONSerializer(),
		outbound:   make(chan []byte, buffer),
		done:       make(chan struct{}),
	}, nil
}

// -----------------------------------------------------------------------------

// Connect opens the recording and starts the delivery loop
func (r *ReplayClient) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRunning {
		return nil
	}

	if err := r.recorder.Initialize(); err != nil {
		return fmt.Errorf("failed to open replay %s: %w", r.path, err)
	}

	r.ctx = ctx
	r.done = make(chan struct{})
	r.isRunning = true

	go r.deliver(ctx, r.done)

	r.logger.Info("%s : replaying %s", r.name, r.path)
	return nil
}

// -----------------------------------------------------------------------------

// Disconnect stops the playback and closes the recording
func (r *ReplayClient) Disconnect() error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	close(r.done)
	r.mu.Unlock()

	r.players.Wait()

	if err := r.recorder.Close(); err != nil {
		return fmt.Errorf("failed to close replay %s: %w", r.path, err)
	}
	r.logger.Info("%s : replay of %s stopped", r.name, r.path)
	return nil
}

// -----------------------------------------------------------------------------

func (r *ReplayClient) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isRunning
}

func (r *ReplayClient) GetName() string {
	return r.name
}

func (r *ReplayClient) GetType() string {
	return "replay"
}

func (r *ReplayClient) GetEndpoint() string {
	return r.path
}

// -----------------------------------------------------------------------------

// SendMessage interprets a frame sent by the session and queues the answer
func (r *ReplayClient) SendMessage(data []byte) error {
	frame := &models.MFrame{}
	if err := r.serializer.Unmarshal(data, frame); err != nil {
		return fmt.Errorf("invalid frame: %w", err)
	}

	r.mu.RLock()
	running := r.isRunning
	ctx := r.ctx
	done := r.done
	if running && frame.Type == models.FrameSubscribe {
		r.players.Add(1)
	}
	r.mu.RUnlock()

	if !running {
		return fmt.Errorf("replay is not running")
	}

	switch frame.Type {
	case models.FrameLogin:
		r.enqueue(done, &models.MFrame{Type: models.FrameLoginAck})

	case models.FrameDictionaryRequest:
		r.enqueue(done, &models.MFrame{Type: models.FrameDictionary, Dictionary: r.dictionary(ctx)})

	case models.FrameSubscribe:
		go r.play(ctx, done, frame)

	case models.FrameLogout:

	default:
		r.logger.Warning("%s : ignoring frame of type %s", r.name, frame.Type)
	}
	return nil
}

// -----------------------------------------------------------------------------

// play streams the recorded frames of one subscription
func (r *ReplayClient) play(ctx context.Context, done chan struct{}, req *models.MFrame) {
	defer r.players.Done()

	r.enqueue(done, &models.MFrame{
		Type:   models.FrameSubscriptionStatus,
		Handle: req.Handle,
		SubscriptionStatus: &models.MSubscriptionStatusMessage{
			DataSourceID: req.DataSourceID,
			SymbologyID:  req.SymbologyID,
			Request:      models.RequestSubscribe,
			State:        models.SubscriptionStateSuccess,
		},
	})

	frames, err := r.recorder.Frames(ctx, req.Symbol)
	if err != nil {
		r.logger.Error("%s : failed to load frames for %s: %v", r.name, req.Symbol, err)
		r.enqueue(done, &models.MFrame{Type: models.FrameError, Message: err.Error()})
		return
	}

	r.enqueue(done, &models.MFrame{
		Type:   models.FrameTopicStatus,
		Handle: req.Handle,
		TopicStatus: &models.MTopicStatusMessage{
			Symbol:                 req.Symbol,
			DataSourceID:           req.DataSourceID,
			SymbologyID:            req.SymbologyID,
			TopicSubscriptionState: models.TopicStateRefreshed,
		},
	})

	if len(frames) == 0 {
		r.enqueue(done, &models.MFrame{
			Type:    models.FrameLog,
			LogType: "warning",
			Message: fmt.Sprintf("no recorded frames for %s", req.Symbol),
		})
		return
	}

	r.logger.Info("%s : replaying %d frames for %s", r.name, len(frames), req.Symbol)

	for _, frame := range frames {
		frame.Handle = req.Handle
		if !r.enqueue(done, frame) {
			return
		}
		if r.interval <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-time.After(r.interval):
		}
	}
}

// -----------------------------------------------------------------------------

// dictionary returns the last recorded field dictionary, or an empty one
func (r *ReplayClient) dictionary(ctx context.Context) map[models.MFieldID]string {
	frames, err := r.recorder.Frames(ctx, storage.DictionaryTopic)
	if err != nil {
		r.logger.Warning("%s : failed to load dictionary: %v", r.name, err)
	}
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Type == models.FrameDictionary && frames[i].Dictionary != nil {
			return frames[i].Dictionary
		}
	}
	return map[models.MFieldID]string{}
}

// -----------------------------------------------------------------------------

func (r *ReplayClient) enqueue(done chan struct{}, frame *models.MFrame) bool {
	data, err := r.serializer.Marshal(frame)
	if err != nil {
		r.logger.Error("%s : failed to encode %s frame: %v", r.name, frame.Type, err)
		return false
	}
	select {
	case r.outbound <- data:
		return true
	case <-done:
		return false
	}
}

// -----------------------------------------------------------------------------

// deliver hands queued frames to the events sink, one at a time
func (r *ReplayClient) deliver(ctx context.Context, done chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case data := <-r.outbound:
			r.events.OnRawData(data)
		}
	}
}
