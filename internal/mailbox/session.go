// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mailbox provides per-account IMAP sessions. A session is a
// scoped resource: dial, authenticate, select INBOX, fetch unseen
// messages, and always close, on every exit path. Fetching reads the
// body without peek, so the server consumes the UNSEEN flag as a side
// effect.
package mailbox

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/codeautomation/mailwatch/internal/config"
	"github.com/codeautomation/mailwatch/internal/models"
)

// Account holds the credentials for one project manager's mailbox.
// Password is empty when the dialer is configured for OAUTHBEARER.
type Account struct {
	Address  string
	Password string
}

// ConnError marks a recoverable connection or authentication failure for
// a single account. The scheduler skips the account and moves on.
type ConnError struct {
	Account string
	Err     error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("mailbox %s: %v", e.Account, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// Session is an open, authenticated IMAP connection with INBOX selected.
type Session interface {
	// FetchUnseen returns all unseen messages and marks them seen.
	FetchUnseen(ctx context.Context) ([]models.IncomingMessage, error)
	// Close logs out and releases the connection.
	Close() error
}

// Dialer opens mailbox sessions.
type Dialer interface {
	Dial(ctx context.Context, account Account) (Session, error)
}

// Client dials IMAP sessions with shared host settings and optional
// OAUTHBEARER client credentials.
type Client struct {
	cfg    config.IMAPConfig
	tokens *clientcredentials.Config // nil when password auth is used
}

// NewClient creates a mailbox client from the shared IMAP settings.
func NewClient(cfg config.IMAPConfig) *Client {
	c := &Client{cfg: cfg}
	if cfg.OAuth.Enabled() {
		creds := &clientcredentials.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			TokenURL:     cfg.OAuth.TokenURL,
		}
		if cfg.OAuth.Scope != "" {
			creds.Scopes = []string{cfg.OAuth.Scope}
		}
		c.tokens = creds
	}
	return c
}

// Dial connects, authenticates, and selects INBOX for one account.
// All failures are reported as *ConnError so callers can treat them as
// recoverable per-account conditions.
func (c *Client) Dial(ctx context.Context, account Account) (Session, error) {
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)

	conn, err := tls.DialWithDialer(
		&net.Dialer{Timeout: c.cfg.DialTimeout},
		"tcp", addr,
		&tls.Config{ServerName: c.cfg.Host},
	)
	if err != nil {
		return nil, &ConnError{Account: account.Address, Err: fmt.Errorf("dial %s: %w", addr, err)}
	}

	client := imapclient.New(conn, nil)

	// Bound the greeting + authentication exchange.
	_ = conn.SetDeadline(time.Now().Add(c.cfg.AuthTimeout))

	if err := c.authenticate(ctx, client, account); err != nil {
		_ = client.Close()
		return nil, &ConnError{Account: account.Address, Err: err}
	}

	_ = conn.SetDeadline(time.Time{})

	// From here on the caller's context is the only bound on the
	// connection: cancellation forces pending reads to fail instead of
	// blocking a tick forever on a silent server.
	stop := cancelWatch(ctx, conn)
	defer stop()

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		_ = client.Close()
		return nil, &ConnError{Account: account.Address, Err: fmt.Errorf("select INBOX: %w", err)}
	}

	return &session{client: client, conn: conn, account: account.Address}, nil
}

// cancelWatch arms a watchdog that fails all pending I/O on conn when
// ctx is cancelled or times out. The returned stop disarms it.
func cancelWatch(ctx context.Context, conn net.Conn) (stop func() bool) {
	return context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
}

func (c *Client) authenticate(ctx context.Context, client *imapclient.Client, account Account) error {
	if c.tokens != nil {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("obtain OAuth token: %w", err)
		}
		saslClient := sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
			Username: account.Address,
			Token:    tok.AccessToken,
			Host:     c.cfg.Host,
			Port:     c.cfg.Port,
		})
		if err := client.Authenticate(saslClient); err != nil {
			return fmt.Errorf("OAUTHBEARER auth for %s: %w", account.Address, err)
		}
		return nil
	}

	if err := client.Login(account.Address, account.Password).Wait(); err != nil {
		return fmt.Errorf("login for %s: %w", account.Address, err)
	}
	return nil
}

// closeTimeout bounds the logout exchange so a dead server cannot
// block shutdown.
const closeTimeout = 10 * time.Second

// session wraps an authenticated imapclient connection.
type session struct {
	client  *imapclient.Client
	conn    net.Conn
	account string
}

// FetchUnseen searches for UNSEEN messages and fetches envelope plus text
// body. The body fetch is non-peek, so the server marks each message seen.
// Context cancellation unblocks any in-flight exchange.
func (s *session) FetchUnseen(ctx context.Context) ([]models.IncomingMessage, error) {
	stop := cancelWatch(ctx, s.conn)
	defer stop()

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}

	searchData, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search UNSEEN: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	uidSet := imap.UIDSetNum(uids...)

	bodySection := &imap.FetchItemBodySection{} // non-peek: consumes UNSEEN
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := s.client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	var messages []models.IncomingMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		messages = append(messages, messageFromBuffer(s.account, buf, bodySection))
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("fetch unseen: %w", err)
	}

	return messages, nil
}

// Close logs out and closes the underlying connection. The exchange
// runs under its own deadline.
func (s *session) Close() error {
	_ = s.conn.SetDeadline(time.Now().Add(closeTimeout))
	if err := s.client.Logout().Wait(); err != nil {
		_ = s.client.Close()
		return fmt.Errorf("logout %s: %w", s.account, err)
	}
	return s.client.Close()
}

// messageFromBuffer converts a fetched message into an IncomingMessage.
func messageFromBuffer(account string, buf *imapclient.FetchMessageBuffer, section *imap.FetchItemBodySection) models.IncomingMessage {
	msg := models.IncomingMessage{}

	if buf.Envelope != nil {
		msg.MessageID = buf.Envelope.MessageID
		msg.Subject = buf.Envelope.Subject
		msg.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			addr := netmail.Address{Name: from.Name, Address: from.Addr()}
			msg.From = addr.String()
		}
	}

	if raw := buf.FindBodySection(section); raw != nil {
		msg.Body = extractTextBody(raw)
	}

	if msg.MessageID == "" {
		msg.MessageID = syntheticMessageID(account, msg)
	}

	return msg
}

// extractTextBody parses a raw RFC 2822 message and returns the
// text/plain part, falling back to the raw bytes when parsing fails.
func extractTextBody(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw)
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := header.ContentType()
		if !strings.HasPrefix(contentType, "text/plain") {
			continue
		}

		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		return string(body)
	}

	return ""
}

// syntheticMessageID builds a deterministic dedup key for messages that
// arrive without a Message-ID header. Determinism matters: a retried
// fetch of the same message must produce the same key.
func syntheticMessageID(account string, msg models.IncomingMessage) string {
	sum := sha256.Sum256([]byte(
		account + "\x00" + msg.From + "\x00" + msg.Subject + "\x00" + msg.Date.UTC().Format(time.RFC3339),
	))
	return fmt.Sprintf("<synthetic-%x@mailwatch>", sum[:16])
}
