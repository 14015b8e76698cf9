// Package mail implements a connector over an IMAP mailbox. Each instance
// owns one IMAP session and walks it through a small state machine:
// credential lookup, dial, LOGIN, SELECT, then UID SEARCH and per-message
// peek FETCH on every query.
package mail

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/nhle/omninexus/internal/connector"
	"github.com/nhle/omninexus/internal/credential"
	"github.com/nhle/omninexus/internal/logger"
	"github.com/nhle/omninexus/internal/model"
)

// TypeName is the registry name of the IMAP connector.
const TypeName = "imap"

const (
	keyServer     = "server"
	keyPort       = "port"
	keyUsername   = "username"
	keyUseSSL     = "use_ssl"
	keyMailbox    = "mailbox"
	keyFetchCount = "fetch_count"

	defaultMailbox     = "INBOX"
	defaultFetchCount  = 10
	defaultDialTimeout = 30 * time.Second
)

// forbiddenKeys must never appear in configuration; secrets live in the
// credential store only.
var forbiddenKeys = []string{"password", "secret", "pass", "app_password"}

// Schema describes the accepted configuration keys. use_ssl precedes port
// so the port default can depend on it.
var Schema = connector.Schema{
	{
		Name:        keyServer,
		Type:        connector.TypeString,
		Required:    true,
		Description: "IMAP server hostname.",
	},
	{
		Name:        keyUseSSL,
		Type:        connector.TypeBoolean,
		Default:     true,
		Description: "Connect over implicit TLS.",
	},
	{
		Name: keyPort,
		Type: connector.TypeInteger,
		DefaultFunc: func(cfg model.ConnectorConfig) any {
			if cfg.Bool(keyUseSSL) {
				return 993
			}
			return 143
		},
		Check:       connector.IntRange(1, 65535),
		Description: "IMAP server port (993 with SSL, 143 without).",
	},
	{
		Name:        keyUsername,
		Type:        connector.TypeString,
		Required:    true,
		Description: "Account username. The secret is read from the credential store.",
	},
	{
		Name:        keyMailbox,
		Type:        connector.TypeString,
		Default:     defaultMailbox,
		Description: "Mailbox to read from.",
	},
	{
		Name:        keyFetchCount,
		Type:        connector.TypeInteger,
		Default:     defaultFetchCount,
		Check:       connector.IntRange(1, math.MaxInt32),
		Description: "Number of most recent messages to fetch per query.",
	},
}

// SecretSource resolves account secrets.
type SecretSource interface {
	Secret(service, username string) (string, error)
}

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the logger for session diagnostics.
func WithLogger(l *logger.Logger) Option {
	return func(c *Connector) {
		c.log = logger.OrDiscard(l)
	}
}

// WithDialTimeout bounds the TCP/TLS dial and session teardown.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Connector) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

func withClientFactory(f clientFactory) Option {
	return func(c *Connector) {
		if f != nil {
			c.dial = f
		}
	}
}

// Connector reads recent messages from one IMAP mailbox.
type Connector struct {
	id          string
	cfg         model.ConnectorConfig
	secrets     SecretSource
	log         *logger.Logger
	dialTimeout time.Duration
	dial        clientFactory

	state        State
	client       imapClient
	readOnly     bool
	messageCount uint32
	uidValidity  uint32
	lastErr      error
}

// New validates cfg and returns a disconnected connector.
func New(id string, cfg model.ConnectorConfig, secrets SecretSource, opts ...Option) (*Connector, error) {
	c := &Connector{
		id:          id,
		cfg:         cfg,
		secrets:     secrets,
		log:         logger.Discard(),
		dialTimeout: defaultDialTimeout,
		dial:        dialIMAP,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.ValidateConfig(); err != nil {
		return nil, err
	}
	return c, nil
}

// Constructor adapts New to the registry's constructor signature.
func Constructor(secrets SecretSource, opts ...Option) connector.Constructor {
	return func(id string, cfg model.ConnectorConfig) (connector.Connector, error) {
		c, err := New(id, cfg, secrets, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func (c *Connector) ID() string                        { return c.id }
func (c *Connector) Type() string                      { return TypeName }
func (c *Connector) GetConfigSchema() connector.Schema { return Schema }
func (c *Connector) LastError() error                  { return c.lastErr }

// State returns the current session state.
func (c *Connector) State() State { return c.state }

// MessageCount returns the message count reported by the last SELECT.
func (c *Connector) MessageCount() int { return int(c.messageCount) }

func (c *Connector) server() string   { return c.cfg.String(keyServer) }
func (c *Connector) username() string { return c.cfg.String(keyUsername) }
func (c *Connector) mailbox() string  { return c.cfg.String(keyMailbox) }

// ValidateConfig rejects embedded secrets and applies the schema.
func (c *Connector) ValidateConfig() error {
	for _, k := range forbiddenKeys {
		if _, ok := c.cfg[k]; ok {
			return connector.NewError(connector.KindConfiguration, c.id, "validate",
				fmt.Errorf("configuration key %q is not allowed: store the secret with the credential store", k))
		}
	}
	return Schema.Apply(c.id, c.cfg)
}

// GetMetadata returns non-secret facts about the instance.
func (c *Connector) GetMetadata() map[string]any {
	meta := map[string]any{
		"connector_id":  c.id,
		"type":          TypeName,
		"status":        c.state.String(),
		"server":        c.server(),
		"port":          c.cfg.Int(keyPort),
		"username":      c.username(),
		"use_ssl":       c.cfg.Bool(keyUseSSL),
		"mailbox":       c.mailbox(),
		"fetch_count":   c.cfg.Int(keyFetchCount),
		"message_count": int(c.messageCount),
		"read_only":     c.readOnly,
	}
	if c.lastErr != nil {
		meta["last_error"] = c.lastErr.Error()
	}
	return meta
}

// Connect resolves the account secret, dials, logs in and selects the
// mailbox. It returns true immediately when a mailbox is already selected.
func (c *Connector) Connect(ctx context.Context) bool {
	if c.state == StateMailboxSelected && c.client != nil {
		return true
	}
	if c.client != nil {
		c.Disconnect()
	}

	if err := c.connect(ctx); err != nil {
		c.lastErr = err
		return false
	}
	c.lastErr = nil
	return true
}

func (c *Connector) connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return connector.NewError(connector.KindTransport, c.id, "connect", err)
	}

	secret, err := c.resolveSecret()
	if err != nil {
		c.log.Error("mail %s: %v", c.id, err)
		return err
	}

	c.state = StateConnecting
	timeout := c.dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	client, err := c.dial(c.server(), c.cfg.Int(keyPort), c.cfg.Bool(keyUseSSL), timeout)
	if err != nil {
		return c.fail(connector.NewError(connector.KindTransport, c.id, "dial", err), err)
	}
	c.client = client

	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	if err := client.Login(c.username(), secret).Wait(); err != nil {
		kind := connector.KindTransport
		if isServerRejection(err) {
			kind = connector.KindCredential
		}
		return c.fail(connector.NewError(kind, c.id, "login",
			fmt.Errorf("authentication failed for %s: %w", c.username(), c.ctxErr(ctx, err))), err)
	}
	c.state = StateLoggedIn
	c.log.Debug("mail %s: logged in to %s as %s", c.id, c.server(), c.username())

	data, err := c.selectMailbox()
	if err != nil {
		kind := connector.KindTransport
		if isServerRejection(err) {
			kind = connector.KindProtocol
		}
		return c.fail(connector.NewError(kind, c.id, "select",
			fmt.Errorf("selecting %s: %w", c.mailbox(), c.ctxErr(ctx, err))), err)
	}

	if err := ctx.Err(); err != nil {
		return c.fail(connector.NewError(connector.KindTransport, c.id, "select", err), err)
	}

	c.state = StateMailboxSelected
	c.messageCount = data.NumMessages
	c.uidValidity = data.UIDValidity
	c.log.Info("mail %s: selected %s (%d messages, read-only=%t)",
		c.id, c.mailbox(), c.messageCount, c.readOnly)
	return nil
}

func (c *Connector) resolveSecret() (string, error) {
	if c.secrets == nil {
		return "", connector.NewError(connector.KindCredential, c.id, "resolve secret",
			errors.New("no credential store configured"))
	}
	service := credential.MailService(c.server())
	secret, err := c.secrets.Secret(service, c.username())
	if err != nil {
		return "", connector.NewError(connector.KindCredential, c.id, "resolve secret", err)
	}
	if secret == "" {
		return "", connector.NewError(connector.KindCredential, c.id, "resolve secret",
			fmt.Errorf("%w for %s@%s", credential.ErrSecretNotFound, c.username(), service))
	}
	return secret, nil
}

// selectMailbox tries EXAMINE first so fetching never alters flags, and
// falls back to a read-write SELECT once if the server refuses it.
func (c *Connector) selectMailbox() (*imap.SelectData, error) {
	data, err := c.client.Select(c.mailbox(), &imap.SelectOptions{ReadOnly: true}).Wait()
	if err == nil {
		c.readOnly = true
		return data, nil
	}
	if !isServerRejection(err) {
		return nil, err
	}

	c.log.Warn("mail %s: read-only select of %s rejected (%v), retrying read-write", c.id, c.mailbox(), err)
	data, err = c.client.Select(c.mailbox(), nil).Wait()
	if err != nil {
		return nil, err
	}
	c.readOnly = false
	return data, nil
}

// Disconnect closes the mailbox, logs out and closes the socket. Each step
// is attempted even if an earlier one failed, and state is always reset.
func (c *Connector) Disconnect() {
	if c.client == nil {
		c.reset()
		return
	}
	c.teardown(c.state, true)
}

// teardown ends a session that had reached prev. A graceful teardown sends
// CLOSE or UNSELECT and LOGOUT as prev allows; otherwise only the socket is
// closed.
func (c *Connector) teardown(prev State, graceful bool) {
	client := c.client

	// Bound the exchange so an unresponsive server cannot block teardown.
	timer := time.AfterFunc(c.dialTimeout, func() { _ = client.Close() })
	defer timer.Stop()

	if graceful && prev == StateMailboxSelected {
		// CLOSE on a read-only mailbox never expunges; UNSELECT avoids the
		// implicit expunge on a read-write one.
		closeMailbox := client.Unselect
		if c.readOnly {
			closeMailbox = client.UnselectAndExpunge
		}
		if err := closeMailbox().Wait(); err != nil {
			c.log.Warn("mail %s: closing mailbox: %v", c.id, err)
		}
	}
	if graceful && (prev == StateMailboxSelected || prev == StateLoggedIn) {
		if err := client.Logout().Wait(); err != nil {
			c.log.Warn("mail %s: logout: %v", c.id, err)
		}
	}
	if err := client.Close(); err != nil {
		c.log.Debug("mail %s: closing connection: %v", c.id, err)
	}

	c.reset()
}

func (c *Connector) reset() {
	c.client = nil
	c.state = StateDisconnected
	c.readOnly = false
}

// fail passes through StateConnectionFailed back to StateDisconnected. The
// session is ended gracefully only when cause is a server reply, meaning
// the connection itself is still healthy.
func (c *Connector) fail(err error, cause error) error {
	c.log.Error("mail %s: %v", c.id, err)
	prev := c.state
	c.state = StateConnectionFailed
	if c.client == nil {
		c.reset()
		return err
	}
	c.teardown(prev, isServerRejection(cause))
	return err
}

// ctxErr prefers the context error when cancellation closed the socket.
func (c *Connector) ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w (%v)", ctxErr, err)
	}
	return err
}

// QueryData fetches the last fetch_count messages (or params.Limit when
// set) in ascending UID order. It reconnects once if needed. A message the
// server refuses or that cannot be parsed is skipped; any other failure
// ends the session and returns an empty result.
func (c *Connector) QueryData(ctx context.Context, params connector.QueryParams) (connector.Result, error) {
	if c.state != StateMailboxSelected || c.client == nil {
		c.log.Info("mail %s: not connected, reconnecting", c.id)
		if !c.Connect(ctx) {
			return connector.EmptyResult(), c.lastErr
		}
	}

	res, err := c.query(ctx, params)
	if err != nil {
		c.lastErr = err
		return connector.EmptyResult(), err
	}
	c.lastErr = nil
	return res, nil
}

func (c *Connector) query(ctx context.Context, params connector.QueryParams) (connector.Result, error) {
	res := connector.EmptyResult()
	client := c.client

	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer func() {
		// Cancellation closed the socket; drop the session it belonged to.
		if !stop() && c.client == client {
			c.teardown(c.state, false)
		}
	}()

	searchData, err := client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return res, c.sessionError(ctx, "search", err)
	}
	uids := searchData.AllUIDs()
	c.messageCount = uint32(len(uids))
	if len(uids) == 0 {
		c.log.Info("mail %s: mailbox %s is empty", c.id, c.mailbox())
		return res, nil
	}

	n := c.cfg.Int(keyFetchCount)
	if params.Limit > 0 {
		n = params.Limit
	}
	if len(uids) > n {
		uids = uids[len(uids)-n:]
	}

	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			return res, c.sessionError(ctx, "fetch", err)
		}

		res.Processed++
		body, err := c.fetchBody(uid)
		if err != nil {
			if isServerRejection(err) {
				c.log.Warn("mail %s: skipping UID %d: fetch rejected: %v", c.id, uid, err)
				res.Skipped++
				continue
			}
			return connector.EmptyResult(), c.sessionError(ctx, "fetch", err)
		}
		if body == nil {
			c.log.Warn("mail %s: skipping UID %d: no body returned", c.id, uid)
			res.Skipped++
			continue
		}

		rec, err := c.buildRecord(uid, body)
		if err != nil {
			c.log.Warn("mail %s: skipping UID %d: %v", c.id, uid, err)
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, rec)
	}

	c.log.Debug("mail %s: fetched %d of %d messages (%d skipped)",
		c.id, len(res.Records), res.Processed, res.Skipped)
	return res, nil
}

// sessionError classifies a mid-query failure and drops the session.
func (c *Connector) sessionError(ctx context.Context, op string, err error) error {
	kind := connector.KindTransport
	if isServerRejection(err) {
		kind = connector.KindProtocol
	}
	return c.fail(connector.NewError(kind, c.id, op, c.ctxErr(ctx, err)), err)
}

// fetchBody returns the full message for uid without setting \Seen.
func (c *Connector) fetchBody(uid imap.UID) ([]byte, error) {
	section := &imap.FetchItemBodySection{Peek: true}
	bufs, err := c.client.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, err
	}
	for _, buf := range bufs {
		if buf.UID != 0 && buf.UID != uid {
			continue
		}
		if body := buf.FindBodySection(section); body != nil {
			return body, nil
		}
	}
	return nil, nil
}

func (c *Connector) buildRecord(uid imap.UID, raw []byte) (model.Record, error) {
	msg, err := parseMessage(raw)
	if err != nil {
		return model.Record{}, connector.NewError(connector.KindParse, c.id, "parse", err)
	}

	rec := model.NewRecord(c.id, c.sourceURI(uid))
	rec.Metadata["type"] = "message/rfc822"
	rec.Metadata["uid"] = uint32(uid)
	rec.Metadata["uid_validity"] = c.uidValidity
	rec.Metadata["mailbox"] = c.mailbox()
	rec.Metadata["server"] = c.server()
	rec.Metadata["size_bytes"] = len(raw)
	rec.Metadata["message_id"] = msg.MessageID
	rec.Metadata["date"] = msg.Date
	rec.Metadata["content_source"] = msg.ContentSource
	if msg.Charset != "" {
		rec.Metadata["charset"] = msg.Charset
	}

	rec.Payload[model.PayloadContent] = msg.Content
	rec.Payload["subject"] = msg.Subject
	rec.Payload["from"] = msg.From
	rec.Payload["to"] = msg.To
	rec.Payload["cc"] = msg.Cc
	return rec, nil
}

// sourceURI locates a message as imap://user@server/mailbox;UID=n.
func (c *Connector) sourceURI(uid imap.UID) string {
	u := url.URL{
		Scheme: "imap",
		User:   url.User(c.username()),
		Host:   strings.ToLower(c.server()),
		Path:   "/" + c.mailbox() + ";UID=" + strconv.FormatUint(uint64(uid), 10),
	}
	return u.String()
}
