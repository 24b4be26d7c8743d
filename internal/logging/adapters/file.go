package adapters

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"browserctl/internal/logging/types"
)

// FileAdapter implements the LogAdapter interface for file output, with
// rotation delegated to lumberjack so this package doesn't hand-roll
// rename/compress/cleanup bookkeeping.
type FileAdapter struct {
	name   string
	config FileConfig
	writer *lumberjack.Logger
	mu     sync.Mutex
}

// FileConfig represents configuration for the file adapter
type FileConfig struct {
	FilePath    string      `yaml:"file_path"`   // path to log file
	Format      string      `yaml:"format"`      // json or text
	MaxSize     int64       `yaml:"max_size"`    // rotation size in bytes, rounded down to whole MB (min 1); 0 = 100 MB
	MaxAge      time.Duration `yaml:"max_age"`   // max age of a backup before deletion
	MaxBackups  int         `yaml:"max_backups"` // max number of backup files to keep
	Compress    bool        `yaml:"compress"`    // gzip rotated files
	CreateDirs  bool        `yaml:"create_dirs"` // create parent directories if they don't exist
	FileMode    os.FileMode `yaml:"file_mode"`   // file permissions
	BufferSize  int         `yaml:"buffer_size"` // retained for compatibility; unbuffered writes go straight to lumberjack
	SyncOnWrite bool        `yaml:"sync_on_write"`
}

// NewFileAdapter creates a new file adapter backed by a lumberjack.Logger.
func NewFileAdapter(name string, config FileConfig) (*FileAdapter, error) {
	if config.FileMode == 0 {
		config.FileMode = 0644
	}
	if config.MaxBackups == 0 {
		config.MaxBackups = 10
	}
	if config.Format == "" {
		config.Format = "json"
	}
	if config.FilePath == "" {
		return nil, fmt.Errorf("file_path is required for file adapter")
	}

	if config.CreateDirs {
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directories: %w", err)
		}
	}

	maxSizeMB := 100
	if config.MaxSize > 0 {
		maxSizeMB = int(config.MaxSize / (1024 * 1024))
		if maxSizeMB == 0 {
			maxSizeMB = 1
		}
	}

	return &FileAdapter{
		name:   name,
		config: config,
		writer: &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    maxSizeMB,
			MaxAge:     int(config.MaxAge / (24 * time.Hour)),
			MaxBackups: config.MaxBackups,
			Compress:   config.Compress,
		},
	}, nil
}

// Write writes a log entry to the file, rotating via lumberjack as needed.
func (a *FileAdapter) Write(entry *types.LogEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var output string
	var err error

	switch strings.ToLower(a.config.Format) {
	case "text":
		output, err = a.formatText(entry)
	default:
		output, err = a.formatJSON(entry)
	}
	if err != nil {
		return fmt.Errorf("failed to format log entry: %w", err)
	}

	if _, err := a.writer.Write([]byte(output + "\n")); err != nil {
		return fmt.Errorf("failed to write to log file: %w", err)
	}

	return nil
}

// Close closes the underlying lumberjack writer.
func (a *FileAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.writer.Close()
}

// Health reports an error when the log file exists but cannot be stat'ed;
// a missing file counts as healthy. Writability is not checked.
func (a *FileAdapter) Health() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := os.Stat(a.config.FilePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("log file is not accessible: %w", err)
	}
	return nil
}

// Name returns the name of the adapter
func (a *FileAdapter) Name() string {
	return a.name
}

func (a *FileAdapter) formatJSON(entry *types.LogEntry) (string, error) {
	logData := map[string]interface{}{
		"level":   entry.Level.String(),
		"message": entry.Message,
		"time":    entry.Timestamp.Format(time.RFC3339),
	}

	for k, v := range entry.Fields {
		logData[k] = v
	}

	data, err := json.Marshal(logData)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (a *FileAdapter) formatText(entry *types.LogEntry) (string, error) {
	timestamp := entry.Timestamp.Format("2006-01-02T15:04:05.000Z07:00")
	level := strings.ToUpper(entry.Level.String())

	output := fmt.Sprintf("%s [%s] %s", timestamp, level, entry.Message)

	if len(entry.Fields) > 0 {
		var fields []string
		for k, v := range entry.Fields {
			fields = append(fields, fmt.Sprintf("%s=%v", k, v))
		}
		output += " " + strings.Join(fields, " ")
	}

	return output, nil
}
