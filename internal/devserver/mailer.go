package devserver

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Mailer delivers a code to an address.
type Mailer interface {
	SendCode(ctx context.Context, email, code string) error
}

// LogMailer prints codes to the log instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger.Named("mailer")}
}

func (m *LogMailer) SendCode(_ context.Context, email, code string) error {
	m.logger.Info("one-time code", zap.String("email", email), zap.String("code", code))
	return nil
}

// MemoryMailer remembers the last code per address. Tests use it to read codes back.
type MemoryMailer struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func NewMemoryMailer() *MemoryMailer {
	return &MemoryMailer{codes: make(map[string]string)}
}

func (m *MemoryMailer) SendCode(_ context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.codes[email] = code
	return nil
}

// LastCode returns the most recent code sent to email.
func (m *MemoryMailer) LastCode(email string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.codes[email]
	return code, ok
}

// FailWith makes every later SendCode return err. nil restores delivery.
func (m *MemoryMailer) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}
