// Package imap implements the driver contract over IMAP, authenticating with OAUTHBEARER.
//
// IMAP has no threads: every message is a thread whose ID is "<mailbox>:<uid>". Folders map to
// mailboxes, STARRED and UNREAD map to the \Flagged and \Seen system flags, and any other label is
// stored as a keyword.
package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
	"github.com/sirupsen/logrus"

	"github.com/inboxkit/courier/driver"
)

const maxBatchSize = 500

// DefaultFolders maps folder labels to the mailbox names commonly used by providers.
var DefaultFolders = map[driver.LabelID]string{
	driver.LabelInbox:   "INBOX",
	driver.LabelArchive: "Archive",
	driver.LabelTrash:   "Trash",
	driver.LabelSpam:    "Junk",
}

// Config holds the server to connect to and its folder layout.
type Config struct {
	Addr      string
	TLSConfig *tls.Config

	// Folders overrides DefaultFolders.
	Folders map[driver.LabelID]string
}

// Driver talks to an IMAP server on behalf of one account.
// A connection is opened for every operation and closed when it completes.
type Driver struct {
	cfg     Config
	folders map[driver.LabelID]string
	creds   driver.Credentials
}

// New returns a driver for the given account. It does not connect.
func New(cfg Config, creds driver.Credentials) (*Driver, error) {
	if !creds.Valid() {
		return nil, fmt.Errorf("missing tokens: %w", driver.ErrUnauthorized)
	}

	if creds.Username == "" {
		return nil, fmt.Errorf("missing username: %w", driver.ErrUnauthorized)
	}

	folders := cfg.Folders
	if folders == nil {
		folders = DefaultFolders
	}

	return &Driver{cfg: cfg, folders: folders, creds: creds}, nil
}

func (d *Driver) Get(ctx context.Context, id driver.ThreadID) (driver.Thread, error) {
	ref, err := parseThreadID(id)
	if err != nil {
		return driver.Thread{}, err
	}

	var thread driver.Thread

	if err := d.withClient(ctx, func(c *client.Client) error {
		if _, err := c.Select(ref.mailbox, true); err != nil {
			return wrapError(fmt.Sprintf("select %v", ref.mailbox), err)
		}

		ch := make(chan *goimap.Message, 1)

		if err := c.UidFetch(seqSet(ref.uid), []goimap.FetchItem{goimap.FetchEnvelope, goimap.FetchFlags, goimap.FetchUid}, ch); err != nil {
			return wrapError(fmt.Sprintf("fetch %v", id), err)
		}

		var found bool

		for msg := range ch {
			if msg.Uid != ref.uid {
				continue
			}

			found = true
			thread = d.toThread(ref, msg)
		}

		if !found {
			return fmt.Errorf("message %v: %w", id, driver.ErrNotFound)
		}

		return nil
	}); err != nil {
		return driver.Thread{}, err
	}

	return thread, nil
}

func (d *Driver) MarkAsRead(ctx context.Context, id driver.ThreadID) error {
	return d.BatchModify(ctx, []driver.ThreadID{id}, driver.Changes{Remove: []driver.LabelID{driver.LabelUnread}})
}

func (d *Driver) Count(ctx context.Context) (driver.Counts, error) {
	counts := make(driver.Counts)

	if err := d.withClient(ctx, func(c *client.Client) error {
		for label, mailbox := range d.folders {
			status, err := c.Status(mailbox, []goimap.StatusItem{goimap.StatusMessages, goimap.StatusUnseen})
			if err != nil {
				logrus.WithError(err).WithField("mailbox", mailbox).Debug("Skipping mailbox without status")
				continue
			}

			counts[label] = driver.Count{Total: int(status.Messages), Unread: int(status.Unseen)}
		}

		return nil
	}); err != nil {
		return nil, err
	}

	return counts, nil
}

func (d *Driver) Label(ctx context.Context, id driver.ThreadID, labelID driver.LabelID, add bool) error {
	if add {
		return d.BatchModify(ctx, []driver.ThreadID{id}, driver.Changes{Add: []driver.LabelID{labelID}})
	}

	return d.BatchModify(ctx, []driver.ThreadID{id}, driver.Changes{Remove: []driver.LabelID{labelID}})
}

func (d *Driver) Move(ctx context.Context, ids []driver.ThreadID, destination driver.LabelID) error {
	dest, ok := d.folders[destination]
	if !ok {
		return fmt.Errorf("cannot move to %v: %w", destination, driver.ErrPermanent)
	}

	groups, err := groupByMailbox(ids, maxBatchSize)
	if err != nil {
		return err
	}

	return d.withClient(ctx, func(c *client.Client) error {
		for mailbox, uids := range groups {
			if mailbox == dest {
				continue
			}

			if _, err := c.Select(mailbox, false); err != nil {
				return wrapError(fmt.Sprintf("select %v", mailbox), err)
			}

			if err := c.UidMove(seqSet(uids...), dest); err != nil {
				return wrapError(fmt.Sprintf("move to %v", dest), err)
			}
		}

		return nil
	})
}

func (d *Driver) BatchModify(ctx context.Context, ids []driver.ThreadID, changes driver.Changes) error {
	groups, err := groupByMailbox(ids, maxBatchSize)
	if err != nil {
		return err
	}

	addFlags, removeFlags := toFlagChanges(changes)

	return d.withClient(ctx, func(c *client.Client) error {
		for mailbox, uids := range groups {
			if _, err := c.Select(mailbox, false); err != nil {
				return wrapError(fmt.Sprintf("select %v", mailbox), err)
			}

			if err := store(c, uids, goimap.AddFlags, addFlags); err != nil {
				return err
			}

			if err := store(c, uids, goimap.RemoveFlags, removeFlags); err != nil {
				return err
			}
		}

		return nil
	})
}

func (d *Driver) MaxBatchSize() int {
	return maxBatchSize
}

// withClient connects, authenticates, runs fn and logs out.
// The connection is terminated if ctx is done before fn returns.
func (d *Driver) withClient(ctx context.Context, fn func(*client.Client) error) error {
	c, err := d.dial()
	if err != nil {
		return wrapError(fmt.Sprintf("dial %v", d.cfg.Addr), err)
	}

	doneCh := make(chan struct{})
	defer close(doneCh)

	go func() {
		select {
		case <-ctx.Done():
			if err := c.Terminate(); err != nil {
				logrus.WithError(err).Debug("Failed to terminate IMAP connection")
			}

		case <-doneCh:
		}
	}()

	defer func() {
		if err := c.Logout(); err != nil {
			logrus.WithError(err).Debug("Failed to log out of IMAP server")
		}
	}()

	auth := sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
		Username: d.creds.Username,
		Token:    d.creds.AccessToken,
	})

	if err := c.Authenticate(auth); err != nil {
		return fmt.Errorf("authenticate %v: %w: %w", d.creds.Username, driver.ErrUnauthorized, err)
	}

	if err := fn(c); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", driver.ErrTransient, ctxErr)
		}

		return err
	}

	return nil
}

func (d *Driver) dial() (*client.Client, error) {
	if d.cfg.TLSConfig != nil {
		return client.DialTLS(d.cfg.Addr, d.cfg.TLSConfig)
	}

	return client.Dial(d.cfg.Addr)
}

func (d *Driver) toThread(ref threadRef, msg *goimap.Message) driver.Thread {
	thread := driver.Thread{
		ID:     ref.id(),
		Labels: fromFlags(msg.Flags),
	}

	for label, mailbox := range d.folders {
		if mailbox == ref.mailbox && label != driver.LabelArchive {
			thread.Labels = append(thread.Labels, label)
		}
	}

	message := driver.Message{ID: string(ref.id()), Labels: thread.Labels}

	if env := msg.Envelope; env != nil {
		message.Subject = env.Subject
		message.Date = env.Date

		if len(env.From) > 0 {
			message.From = env.From[0].Address()
		}
	}

	thread.Subject = message.Subject
	thread.Messages = []driver.Message{message}

	return thread
}

func store(c *client.Client, uids []uint32, op goimap.FlagsOp, flags []interface{}) error {
	if len(flags) == 0 {
		return nil
	}

	ch := make(chan *goimap.Message, len(uids))

	if err := c.UidStore(seqSet(uids...), goimap.FormatFlagsOp(op, false), flags, ch); err != nil {
		return wrapError("store flags", err)
	}

	seen := make(map[uint32]struct{}, len(uids))

	for msg := range ch {
		seen[msg.Uid] = struct{}{}
	}

	for _, uid := range uids {
		if _, ok := seen[uid]; !ok {
			return fmt.Errorf("uid %v: %w", uid, driver.ErrNotFound)
		}
	}

	return nil
}

func wrapError(op string, err error) error {
	var imapErr *goimap.ErrStatusResp
	if errors.As(err, &imapErr) {
		return fmt.Errorf("%v: %w: %w", op, driver.ErrPermanent, err)
	}

	return fmt.Errorf("%v: %w: %w", op, driver.Kind(err), err)
}

func seqSet(uids ...uint32) *goimap.SeqSet {
	set := new(goimap.SeqSet)

	set.AddNum(uids...)

	return set
}

type threadRef struct {
	mailbox string
	uid     uint32
}

func (ref threadRef) id() driver.ThreadID {
	return driver.ThreadID(ref.mailbox + ":" + strconv.FormatUint(uint64(ref.uid), 10))
}

func parseThreadID(id driver.ThreadID) (threadRef, error) {
	idx := strings.LastIndex(string(id), ":")
	if idx <= 0 {
		return threadRef{}, fmt.Errorf("malformed id %q: %w", id, driver.ErrNotFound)
	}

	uid, err := strconv.ParseUint(string(id)[idx+1:], 10, 32)
	if err != nil || uid == 0 {
		return threadRef{}, fmt.Errorf("malformed id %q: %w", id, driver.ErrNotFound)
	}

	return threadRef{mailbox: string(id)[:idx], uid: uint32(uid)}, nil
}

func groupByMailbox(ids []driver.ThreadID, max int) (map[string][]uint32, error) {
	if len(ids) > max {
		return nil, fmt.Errorf("%v ids: %w", len(ids), driver.ErrBatchTooLarge)
	}

	groups := make(map[string][]uint32)

	for _, id := range ids {
		ref, err := parseThreadID(id)
		if err != nil {
			return nil, err
		}

		groups[ref.mailbox] = append(groups[ref.mailbox], ref.uid)
	}

	return groups, nil
}
