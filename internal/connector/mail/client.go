package mail

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// imapClient is the subset of *imapclient.Client the connector drives.
type imapClient interface {
	Login(username, password string) commandWaiter
	Select(mailbox string, options *imap.SelectOptions) selectWaiter
	UIDSearch(criteria *imap.SearchCriteria, options *imap.SearchOptions) searchWaiter
	Fetch(numSet imap.NumSet, options *imap.FetchOptions) fetchWaiter
	Unselect() commandWaiter
	UnselectAndExpunge() commandWaiter
	Logout() commandWaiter
	Close() error
}

type commandWaiter interface{ Wait() error }
type selectWaiter interface {
	Wait() (*imap.SelectData, error)
}
type searchWaiter interface {
	Wait() (*imap.SearchData, error)
}
type fetchWaiter interface {
	Collect() ([]*imapclient.FetchMessageBuffer, error)
	Close() error
}

// clientFactory opens the transport for one session.
type clientFactory func(server string, port int, useTLS bool, timeout time.Duration) (imapClient, error)

func dialIMAP(server string, port int, useTLS bool, timeout time.Duration) (imapClient, error) {
	addr := net.JoinHostPort(server, strconv.Itoa(port))
	opts := &imapclient.Options{Dialer: &net.Dialer{Timeout: timeout}}

	var (
		client *imapclient.Client
		err    error
	)
	if useTLS {
		client, err = imapclient.DialTLS(addr, opts)
	} else {
		client, err = imapclient.DialInsecure(addr, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}
	return &imapClientWrapper{Client: client}, nil
}

type imapClientWrapper struct{ *imapclient.Client }

func (w *imapClientWrapper) Login(username, password string) commandWaiter {
	return w.Client.Login(username, password)
}
func (w *imapClientWrapper) Select(mailbox string, options *imap.SelectOptions) selectWaiter {
	return w.Client.Select(mailbox, options)
}
func (w *imapClientWrapper) UIDSearch(criteria *imap.SearchCriteria, options *imap.SearchOptions) searchWaiter {
	return w.Client.UIDSearch(criteria, options)
}
func (w *imapClientWrapper) Fetch(numSet imap.NumSet, options *imap.FetchOptions) fetchWaiter {
	return w.Client.Fetch(numSet, options)
}
func (w *imapClientWrapper) Unselect() commandWaiter           { return w.Client.Unselect() }
func (w *imapClientWrapper) UnselectAndExpunge() commandWaiter { return w.Client.UnselectAndExpunge() }
func (w *imapClientWrapper) Logout() commandWaiter             { return w.Client.Logout() }

// isServerRejection reports whether err is a tagged NO or BAD reply, as
// opposed to an I/O failure. After a rejection the session is still usable.
func isServerRejection(err error) bool {
	var imapErr *imap.Error
	return errors.As(err, &imapErr)
}
