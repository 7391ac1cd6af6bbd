package mail

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSender_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:    "enabled without smtp host",
			config:  Config{Enabled: true, FromAddress: "test@example.com"},
			wantErr: "SMTP host is required",
		},
		{
			name:    "enabled without from address",
			config:  Config{Enabled: true, SMTPHost: "smtp.example.com"},
			wantErr: "from address is required",
		},
		{
			name:   "disabled - no validation",
			config: Config{Enabled: false},
		},
		{
			name:   "valid config",
			config: Config{Enabled: true, SMTPHost: "smtp.example.com", FromAddress: "test@example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := NewSender(tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, sender)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, sender)
			}
		})
	}
}

func TestNewSender_Defaults(t *testing.T) {
	sender, err := NewSender(Config{
		Enabled:      true,
		SMTPHost:     "smtp.example.com",
		FromAddress:  "test@example.com",
		SMTPUser:     "user",
		SMTPPassword: "pass",
	})
	require.NoError(t, err)

	assert.Equal(t, 587, sender.config.SMTPPort)
	assert.Equal(t, 3, sender.config.MaxRetries)
	assert.NotNil(t, sender.auth)
}

func TestExtractEmail(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "user@example.com", expected: "user@example.com"},
		{input: "Test User <user@example.com>", expected: "user@example.com"},
		{input: "<user@example.com>", expected: "user@example.com"},
		{input: "invalid<", expected: "invalid<"},
		{input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractEmail(tt.input))
		})
	}
}

func TestSender_BuildMessage(t *testing.T) {
	sender := &Sender{config: Config{FromAddress: "Suanfamama <noreply@example.com>"}}

	msg := string(sender.buildMessage(Message{To: "a@b.co", Subject: "Hi", Body: "Body text"}))

	assert.Contains(t, msg, "From: Suanfamama <noreply@example.com>\r\n")
	assert.Contains(t, msg, "To: a@b.co\r\n")
	assert.Contains(t, msg, "Subject: Hi\r\n")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=\"utf-8\"\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nBody text"))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{name: "nil error", err: nil},
		{name: "421 service unavailable", err: errors.New("421 Service not available"), retryable: true},
		{name: "451 local error", err: errors.New("451 Local error in processing"), retryable: true},
		{name: "550 mailbox not found", err: errors.New("550 Mailbox not found")},
		{name: "535 auth failed", err: errors.New("535 Authentication failed")},
		{name: "timeout error", err: &timeoutError{}, retryable: true},
		{
			name:      "network operation error",
			err:       &net.OpError{Op: "dial", Err: errors.New("connection refused")},
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

type timeoutError struct{}

func (e *timeoutError) Error() string   { return "timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }

func TestSender_SendDisabled(t *testing.T) {
	sender, err := NewSender(Config{})
	require.NoError(t, err)
	require.NoError(t, sender.Send(context.Background(), Message{To: "a@b.co"}))
}

func TestSender_SendUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	sender, err := NewSender(Config{
		Enabled:     true,
		SMTPHost:    "127.0.0.1",
		SMTPPort:    addr.Port,
		FromAddress: "noreply@example.com",
	})
	require.NoError(t, err)
	sender.backoff = func() retry.Backoff {
		return retry.WithMaxRetries(1, retry.NewConstant(time.Millisecond))
	}

	err = sender.Send(context.Background(), Message{To: "a@b.co", Subject: "s", Body: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial smtp")
}

func TestSender_Send(t *testing.T) {
	srv := newFakeSMTP(t)

	sender, err := NewSender(Config{
		Enabled:     true,
		SMTPHost:    "127.0.0.1",
		SMTPPort:    srv.port,
		FromAddress: "Suanfamama <noreply@example.com>",
	})
	require.NoError(t, err)

	err = sender.Send(context.Background(), Message{To: "a@b.co", Subject: "Hello", Body: "Reset link"})
	require.NoError(t, err)

	from, rcpt, data := srv.received()
	assert.Equal(t, "MAIL FROM:<noreply@example.com>", from)
	assert.Equal(t, "RCPT TO:<a@b.co>", rcpt)
	assert.Contains(t, data, "Subject: Hello")
	assert.Contains(t, data, "Reset link")
}

// fakeSMTP accepts one plain SMTP session.
type fakeSMTP struct {
	port int

	mu   sync.Mutex
	done chan struct{}
	from string
	rcpt string
	data strings.Builder
}

func newFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	s := &fakeSMTP{port: ln.Addr().(*net.TCPAddr).Port, done: make(chan struct{})}
	go s.serve(ln)
	return s
}

func (s *fakeSMTP) serve(ln net.Listener) {
	defer close(s.done)

	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	r := bufio.NewReader(conn)
	reply := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }

	reply("220 localhost ESMTP")
	inData := false
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")

		s.mu.Lock()
		if inData {
			if line == "." {
				inData = false
				s.mu.Unlock()
				reply("250 OK")
				continue
			}
			s.data.WriteString(line + "\n")
			s.mu.Unlock()
			continue
		}
		s.mu.Unlock()

		switch {
		case strings.HasPrefix(line, "EHLO"), strings.HasPrefix(line, "HELO"):
			reply("250 localhost")
		case strings.HasPrefix(line, "MAIL FROM"):
			s.mu.Lock()
			s.from = line
			s.mu.Unlock()
			reply("250 OK")
		case strings.HasPrefix(line, "RCPT TO"):
			s.mu.Lock()
			s.rcpt = line
			s.mu.Unlock()
			reply("250 OK")
		case line == "DATA":
			s.mu.Lock()
			inData = true
			s.mu.Unlock()
			reply("354 End data with <CR><LF>.<CR><LF>")
		case line == "QUIT":
			reply("221 Bye")
			return
		default:
			reply("250 OK")
		}
	}
}

func (s *fakeSMTP) received() (from, rcpt, data string) {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.from, s.rcpt, s.data.String()
}
