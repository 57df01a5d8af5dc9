package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/domain"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/store"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/store/drivers/sqlite"
	"github.com/aussiebroadwan/vouchercheck/pkg/cryptox"
	"github.com/aussiebroadwan/vouchercheck/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	cryptox.SetPepper("test-pepper")

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedUser(t *testing.T, st store.Store, email, role string, authenticated bool) domain.User {
	t.Helper()
	now := time.Now().UTC()
	u := domain.User{
		ID:            idx.New().String(),
		Email:         email,
		Role:          role,
		Authenticated: authenticated,
		PasswordHash:  "unused",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}

func validPayload() domain.Payload {
	return domain.Payload{
		Name:   "Ada Lovelace",
		Email:  "ada@example.com",
		Phone:  "0400 000 000",
		Code:   "VOUCH-1234",
		Amount: 50,
	}
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []domain.Event
}

func (e *recordingEmitter) Emit(_ context.Context, ev domain.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *recordingEmitter) snapshot() []domain.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Event(nil), e.events...)
}

type sentMail struct {
	To       string
	Template string
	Data     map[string]any
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) SendMail(_ context.Context, to, template string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Template: template, Data: data})
	return nil
}

func (m *recordingMailer) snapshot() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

// frameConn is a realtime.Conn that keeps decoded frames.
type frameConn struct {
	mu     sync.Mutex
	frames []frame
	closed bool
}

type frame struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func (c *frameConn) Send(b []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	var f frame
	if err := json.Unmarshal(b, &f); err != nil {
		return false
	}
	c.frames = append(c.frames, f)
	return true
}

func (c *frameConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *frameConn) ofKind(kind string) []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []frame
	for _, f := range c.frames {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}
