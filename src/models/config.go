package models

import "time"

// -----------------------------------------------------------------------------

// MConfig is the root of the YAML configuration
type MConfig struct {
	Name         string              `yaml:"name"`
	LogLevel     string              `yaml:"log_level"`
	Log          MLogConfig          `yaml:"log"`
	Session      MSessionConfig      `yaml:"session"`
	Subscription MSubscriptionConfig `yaml:"subscription"`
	NATS         MNATSConfig         `yaml:"nats"`
	Recorder     MRecorderConfig     `yaml:"recorder"`
	Health       MHealthConfig       `yaml:"health"`
}

// -----------------------------------------------------------------------------

type MLogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// -----------------------------------------------------------------------------

// MSessionConfig holds the gateway connection parameters
type MSessionConfig struct {
	Host                     string        `yaml:"host"`
	UserID                   string        `yaml:"user_id"`
	Password                 string        `yaml:"password"`
	EnableCtrlHandler        bool          `yaml:"enable_ctrl_handler"`
	EnableDictionaryDownload bool          `yaml:"enable_dictionary_download"`
	ConnectTimeout           time.Duration `yaml:"connect_timeout"`
	Transport                string        `yaml:"transport"` // "websocket" or "replay"
	Endpoint                 string        `yaml:"endpoint"`  // defaults to wss://<host>/session
	ReplayPath               string        `yaml:"replay_path"`
	ReplayInterval           time.Duration `yaml:"replay_interval"`
	ReconnectAttempts        int           `yaml:"reconnect_attempts"`
	MessageBuffer            int           `yaml:"message_buffer"`
}

// -----------------------------------------------------------------------------

type MSubscriptionConfig struct {
	Symbol       string       `yaml:"symbol"`
	SymbologyID  SymbologyID  `yaml:"symbology_id"`
	DataSourceID DataSourceID `yaml:"data_source_id"`
}

// -----------------------------------------------------------------------------

// MNATSConfig configures the optional message bus publisher
type MNATSConfig struct {
	Enabled        bool              `yaml:"enabled"`
	ClientID       string            `yaml:"client_id"`
	Servers        []string          `yaml:"servers"`
	SubjectPrefix  string            `yaml:"subject_prefix"`
	Serializer     string            `yaml:"serializer"` // "json", "proto" or "gob"
	ConnectTimeout time.Duration     `yaml:"connect_timeout"`
	ReconnectWait  time.Duration     `yaml:"reconnect_wait"`
	MaxReconnects  int               `yaml:"max_reconnects"`
	FlushTimeout   time.Duration     `yaml:"flush_timeout"`
	JetStream      *MJetStreamConfig `yaml:"jetstream"`
}

type MJetStreamConfig struct {
	Enabled    bool          `yaml:"enabled"`
	StreamName string        `yaml:"stream_name"`
	Subjects   []string      `yaml:"subjects"`
	Replicas   int           `yaml:"replicas"`
	MaxAge     time.Duration `yaml:"max_age"`
	MaxMsgs    int64         `yaml:"max_msgs"`
	MaxBytes   int64         `yaml:"max_bytes"`
	MaxMsgSize int           `yaml:"max_msg_size"`
}

// -----------------------------------------------------------------------------

// MRecorderConfig enables recording of received frames into sqlite
type MRecorderConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// -----------------------------------------------------------------------------

type MHealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}
