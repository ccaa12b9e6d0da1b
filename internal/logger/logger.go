// Package logger provides a thread-safe in-memory logger for status messages.
// Every message is mirrored to the standard log package; the ring of recent
// messages backs the /ws/status feed.
package logger

import (
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Message represents a single log message
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	Component string    `json:"component,omitempty"`
	Text      string    `json:"text"`
	Level     string    `json:"level"` // info, warning, error
}

// Logger manages in-memory log messages
type Logger struct {
	mu       sync.RWMutex
	messages []Message
	maxSize  int
	mirror   bool
	updates  chan struct{}
}

// New creates a new logger with specified max message count
func New(maxSize int) *Logger {
	if maxSize <= 0 {
		maxSize = 200
	}
	return &Logger{
		messages: make([]Message, 0, maxSize),
		maxSize:  maxSize,
		mirror:   true,
		updates:  make(chan struct{}, 1),
	}
}

// SetMirror controls whether messages are also written to the standard logger.
func (l *Logger) SetMirror(on bool) {
	l.mu.Lock()
	l.mirror = on
	l.mu.Unlock()
}

// Updates receives a value whenever a message is added.
func (l *Logger) Updates() <-chan struct{} {
	return l.updates
}

// Log adds a new message to the logger
func (l *Logger) Log(level, component, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := Message{
		Timestamp: time.Now(),
		Component: component,
		Text:      text,
		Level:     level,
	}

	l.messages = append(l.messages, msg)

	// Keep only the last maxSize messages
	if len(l.messages) > l.maxSize {
		l.messages = l.messages[len(l.messages)-l.maxSize:]
	}

	if l.mirror {
		if component != "" {
			log.Printf("%s: [%s] %s", levelPrefix(level), component, text)
		} else {
			log.Printf("%s: %s", levelPrefix(level), text)
		}
	}

	select {
	case l.updates <- struct{}{}:
	default:
	}
}

// Info logs an info-level message
func (l *Logger) Info(text string) {
	l.Log(LevelInfo, "", text)
}

// Warning logs a warning-level message
func (l *Logger) Warning(text string) {
	l.Log(LevelWarning, "", text)
}

// Error logs an error-level message
func (l *Logger) Error(text string) {
	l.Log(LevelError, "", text)
}

// Component returns a view of l that tags every message with name.
func (l *Logger) Component(name string) *Component {
	return &Component{logger: l, name: name}
}

// Component is a Logger bound to a component name.
type Component struct {
	logger *Logger
	name   string
}

func (c *Component) Infof(format string, args ...any) {
	c.logger.Log(LevelInfo, c.name, fmt.Sprintf(format, args...))
}

func (c *Component) Warningf(format string, args ...any) {
	c.logger.Log(LevelWarning, c.name, fmt.Sprintf(format, args...))
}

func (c *Component) Errorf(format string, args ...any) {
	c.logger.Log(LevelError, c.name, fmt.Sprintf(format, args...))
}

// GetRecent returns the most recent n messages (newest first)
func (l *Logger) GetRecent(n int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n > len(l.messages) || n < 0 {
		n = len(l.messages)
	}

	// Return in reverse order (newest first)
	result := make([]Message, n)
	for i := 0; i < n; i++ {
		result[i] = l.messages[len(l.messages)-1-i]
	}

	return result
}

// GetAll returns all messages (newest first)
func (l *Logger) GetAll() []Message {
	return l.GetRecent(-1)
}

func levelPrefix(level string) string {
	switch level {
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}
