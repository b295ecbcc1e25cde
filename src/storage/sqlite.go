package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"activ-subscriber/src/interfaces"
	"activ-subscriber/src/logger"
	"activ-subscriber/src/models"
	"activ-subscriber/src/serializers"

	_ "modernc.org/sqlite"
)

// DictionaryTopic is the symbol column value dictionary frames are stored under
const DictionaryTopic = "__dictionary__"

// -----------------------------------------------------------------------------

// SQLiteRecorder stores received frames in a sqlite file; the replay
// transport reads them back.
type SQLiteRecorder struct {
	Name       string
	DBPath     string
	DB         *sql.DB
	Logger     *logger.Logger
	Serializer interfaces.ISerializer
	mu         sync.Mutex
}

// -----------------------------------------------------------------------------

// NewSQLiteRecorder creates a recorder; Initialize must be called before use
func NewSQLiteRecorder(dbPath string, log *logger.Logger) *SQLiteRecorder {
	return &SQLiteRecorder{
		Name:       "SQLiteRecorder",
		DBPath:     dbPath,
		Logger:     log,
		Serializer: serializers.NewJSONSerializer(),
	}
}

// -----------------------------------------------------------------------------

// Initialize opens the database and creates the frames table if missing
func (r *SQLiteRecorder) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.DB != nil {
		return nil
	}

	db, err := sql.Open("sqlite", r.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open recording %s: %w", r.DBPath, err)
	}
	// single writer keeps sqlite out of SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to open recording %s: %w", r.DBPath, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		r.Logger.Warning("%s : failed to set WAL mode: %v", r.Name, err)
	}

	query := `
		CREATE TABLE IF NOT EXISTS frames (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			frame_type TEXT NOT NULL,
			recorded_at INTEGER NOT NULL,
			payload TEXT NOT NULL
		);
	`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return fmt.Errorf("failed to create frames table: %w", err)
	}
	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_frames_symbol ON frames (symbol, id)"); err != nil {
		db.Close()
		return fmt.Errorf("failed to create frames index: %w", err)
	}

	r.DB = db
	r.Logger.Info("%s : recording opened at %s", r.Name, r.DBPath)
	return nil
}

// -----------------------------------------------------------------------------

// Record stores one frame
func (r *SQLiteRecorder) Record(frame *models.MFrame) error {
	if frame == nil {
		return fmt.Errorf("cannot record nil frame")
	}

	r.mu.Lock()
	db := r.DB
	r.mu.Unlock()
	if db == nil {
		return fmt.Errorf("recorder not initialized")
	}

	payload, err := r.Serializer.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to serialize frame: %w", err)
	}

	_, err = db.Exec(
		"INSERT INTO frames (symbol, frame_type, recorded_at, payload) VALUES (?, ?, ?, ?)",
		frame.Symbol, string(frame.Type), time.Now().UnixMilli(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert frame: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// OnRefresh records a refresh message
func (r *SQLiteRecorder) OnRefresh(msg *models.MRefreshMessage) {
	if msg == nil {
		return
	}
	if err := r.Record(&models.MFrame{Type: models.FrameRefresh, Symbol: msg.Symbol, Refresh: msg}); err != nil {
		r.Logger.Error("%s : failed to record refresh for %s: %v", r.Name, msg.Symbol, err)
	}
}

// -----------------------------------------------------------------------------

// OnUpdate records an update message
func (r *SQLiteRecorder) OnUpdate(msg *models.MUpdateMessage) {
	if msg == nil {
		return
	}
	if err := r.Record(&models.MFrame{Type: models.FrameUpdate, Symbol: msg.Symbol, Update: msg}); err != nil {
		r.Logger.Error("%s : failed to record update for %s: %v", r.Name, msg.Symbol, err)
	}
}

// -----------------------------------------------------------------------------

// Frames returns the recorded frames of symbol in arrival order
func (r *SQLiteRecorder) Frames(ctx context.Context, symbol string) ([]*models.MFrame, error) {
	r.mu.Lock()
	db := r.DB
	r.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("recorder not initialized")
	}

	rows, err := db.QueryContext(ctx, "SELECT payload FROM frames WHERE symbol = ? ORDER BY id", symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames for %s: %w", symbol, err)
	}
	defer rows.Close()

	var frames []*models.MFrame
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		frame := &models.MFrame{}
		if err := r.Serializer.Unmarshal([]byte(payload), frame); err != nil {
			r.Logger.Warning("%s : skipping unreadable frame for %s: %v", r.Name, symbol, err)
			continue
		}
		frames = append(frames, frame)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read frames for %s: %w", symbol, err)
	}
	return frames, nil
}

// -----------------------------------------------------------------------------

// Close releases the database
func (r *SQLiteRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.DB == nil {
		return nil
	}
	err := r.DB.Close()
	r.DB = nil
	return err
}
