package mail

import (
	"errors"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// fakeClient models one IMAP session over an in-memory mailbox.
type fakeClient struct {
	uids        []imap.UID
	bodies      map[imap.UID][]byte
	uidValidity uint32

	loginErr   error
	selectErrs []error
	searchErr  error
	fetchErrs  map[imap.UID]error
	logoutErr  error

	calls       []string
	fetchOpts   []*imap.FetchOptions
	fetchedUIDs []imap.UID
	closed      bool
}

func newMailbox(n int, body func(uid imap.UID) []byte) *fakeClient {
	c := &fakeClient{bodies: map[imap.UID][]byte{}, fetchErrs: map[imap.UID]error{}, uidValidity: 42}
	for i := 1; i <= n; i++ {
		uid := imap.UID(i)
		c.uids = append(c.uids, uid)
		c.bodies[uid] = body(uid)
	}
	return c
}

func (c *fakeClient) Login(_, _ string) commandWaiter {
	c.calls = append(c.calls, "LOGIN")
	return fakeCommand{err: c.loginErr}
}

func (c *fakeClient) Select(_ string, options *imap.SelectOptions) selectWaiter {
	if options != nil && options.ReadOnly {
		c.calls = append(c.calls, "EXAMINE")
	} else {
		c.calls = append(c.calls, "SELECT")
	}
	var err error
	if len(c.selectErrs) > 0 {
		err, c.selectErrs = c.selectErrs[0], c.selectErrs[1:]
	}
	if err != nil {
		return fakeSelect{err: err}
	}
	return fakeSelect{data: &imap.SelectData{NumMessages: uint32(len(c.uids)), UIDValidity: c.uidValidity}}
}

func (c *fakeClient) UIDSearch(_ *imap.SearchCriteria, _ *imap.SearchOptions) searchWaiter {
	c.calls = append(c.calls, "SEARCH")
	if c.searchErr != nil {
		return fakeSearch{err: c.searchErr}
	}
	return fakeSearch{data: &imap.SearchData{All: imap.UIDSetNum(c.uids...)}}
}

func (c *fakeClient) Fetch(numSet imap.NumSet, options *imap.FetchOptions) fetchWaiter {
	c.calls = append(c.calls, "FETCH")
	c.fetchOpts = append(c.fetchOpts, options)

	set, ok := numSet.(imap.UIDSet)
	if !ok {
		return &fakeFetch{err: errors.New("expected a UID set")}
	}
	uids, _ := set.Nums()

	var bufs []*imapclient.FetchMessageBuffer
	for _, uid := range uids {
		c.fetchedUIDs = append(c.fetchedUIDs, uid)
		if err := c.fetchErrs[uid]; err != nil {
			return &fakeFetch{err: err}
		}
		body, ok := c.bodies[uid]
		if !ok || body == nil {
			continue
		}
		bufs = append(bufs, &imapclient.FetchMessageBuffer{
			UID: uid,
			BodySection: []imapclient.FetchBodySectionBuffer{{
				Section: options.BodySection[0],
				Bytes:   append([]byte(nil), body...),
			}},
		})
	}
	return &fakeFetch{bufs: bufs}
}

func (c *fakeClient) Unselect() commandWaiter {
	c.calls = append(c.calls, "UNSELECT")
	return fakeCommand{}
}

func (c *fakeClient) UnselectAndExpunge() commandWaiter {
	c.calls = append(c.calls, "CLOSE")
	return fakeCommand{}
}

func (c *fakeClient) Logout() commandWaiter {
	c.calls = append(c.calls, "LOGOUT")
	return fakeCommand{err: c.logoutErr}
}

func (c *fakeClient) Close() error {
	c.closed = true
	return nil
}

type fakeCommand struct{ err error }

func (c fakeCommand) Wait() error { return c.err }

type fakeSelect struct {
	data *imap.SelectData
	err  error
}

func (s fakeSelect) Wait() (*imap.SelectData, error) { return s.data, s.err }

type fakeSearch struct {
	data *imap.SearchData
	err  error
}

func (s fakeSearch) Wait() (*imap.SearchData, error) { return s.data, s.err }

type fakeFetch struct {
	bufs []*imapclient.FetchMessageBuffer
	err  error
}

func (f *fakeFetch) Collect() ([]*imapclient.FetchMessageBuffer, error) { return f.bufs, f.err }
func (f *fakeFetch) Close() error                                       { return f.err }

// factoryFor returns a client factory handing out client and counting dials.
func factoryFor(client *fakeClient, dials *int) clientFactory {
	return func(string, int, bool, time.Duration) (imapClient, error) {
		*dials++
		return client, nil
	}
}
