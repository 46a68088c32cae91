// Package gmail implements the driver contract over the Gmail REST API.
package gmail

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bradenaw/juniper/parallel"
	"github.com/bradenaw/juniper/sets"
	"github.com/bradenaw/juniper/xslices"
	"golang.org/x/exp/slices"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/inboxkit/courier/driver"
)

const (
	userID = "me"

	// maxBatchSize bounds the number of threads modified by one batched call.
	maxBatchSize = 100

	// parallelism is the number of concurrent requests issued by batched calls.
	parallelism = 4
)

var metadataHeaders = []string{"Subject", "From", "Date"}

// Config holds the OAuth client and endpoint used to reach the API.
type Config struct {
	ClientID     string
	ClientSecret string

	// Endpoint overrides the API base URL.
	Endpoint string

	// TokenURL overrides the OAuth token endpoint.
	TokenURL string

	// HTTPClient is used for both API and token refresh requests.
	HTTPClient *http.Client
}

// Driver talks to Gmail on behalf of one account.
type Driver struct {
	svc *gmail.Service
}

// New returns a driver authenticated with the given tokens.
// The access token is used until the API rejects it, after which the refresh token is exchanged
// and the rejected request is retried once. No request is made during construction.
func New(ctx context.Context, cfg Config, creds driver.Credentials) (*Driver, error) {
	if !creds.Valid() {
		return nil, fmt.Errorf("missing tokens: %w", driver.ErrUnauthorized)
	}

	endpoint := google.Endpoint

	if cfg.TokenURL != "" {
		endpoint = oauth2.Endpoint{TokenURL: cfg.TokenURL, AuthStyle: oauth2.AuthStyleInParams}
	}

	transport := newTokenTransport(&oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       []string{gmail.GmailModifyScope},
	}, cfg.HTTPClient, &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
	})

	opts := []option.ClientOption{
		option.WithHTTPClient(&http.Client{Transport: transport}),
	}

	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	return &Driver{svc: svc}, nil
}

func (d *Driver) Get(ctx context.Context, id driver.ThreadID) (driver.Thread, error) {
	res, err := d.svc.Users.Threads.Get(userID, string(id)).
		Format("metadata").
		MetadataHeaders(metadataHeaders...).
		Context(ctx).
		Do()
	if err != nil {
		return driver.Thread{}, wrapError(fmt.Sprintf("get thread %v", id), err)
	}

	return toThread(res), nil
}

func (d *Driver) MarkAsRead(ctx context.Context, id driver.ThreadID) error {
	return d.modify(ctx, id, driver.Changes{Remove: []driver.LabelID{driver.LabelUnread}})
}

func (d *Driver) Count(ctx context.Context) (driver.Counts, error) {
	list, err := d.svc.Users.Labels.List(userID).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("list labels", err)
	}

	labels := xslices.Filter(list.Labels, func(label *gmail.Label) bool {
		return label.Type == "user" || driver.IsFolder(driver.LabelID(label.Id)) || isCountedSystemLabel(label.Id)
	})

	res := make([]driver.Count, len(labels))

	if err := parallel.DoContext(ctx, parallelism, len(labels), func(ctx context.Context, idx int) error {
		label, err := d.svc.Users.Labels.Get(userID, labels[idx].Id).Context(ctx).Do()
		if err != nil {
			return wrapError(fmt.Sprintf("get label %v", labels[idx].Id), err)
		}

		res[idx] = driver.Count{Total: int(label.ThreadsTotal), Unread: int(label.ThreadsUnread)}

		return nil
	}); err != nil {
		return nil, err
	}

	counts := make(driver.Counts, len(labels))

	for idx, label := range labels {
		counts[driver.LabelID(label.Id)] = res[idx]
	}

	return counts, nil
}

func (d *Driver) Label(ctx context.Context, id driver.ThreadID, labelID driver.LabelID, add bool) error {
	if add {
		return d.modify(ctx, id, driver.Changes{Add: []driver.LabelID{labelID}})
	}

	return d.modify(ctx, id, driver.Changes{Remove: []driver.LabelID{labelID}})
}

func (d *Driver) Move(ctx context.Context, ids []driver.ThreadID, destination driver.LabelID) error {
	if !driver.IsFolder(destination) {
		return fmt.Errorf("cannot move to %v: %w", destination, driver.ErrPermanent)
	}

	if destination == driver.LabelTrash {
		return d.each(ctx, ids, func(ctx context.Context, id driver.ThreadID) error {
			if _, err := d.svc.Users.Threads.Trash(userID, string(id)).Context(ctx).Do(); err != nil {
				return wrapError(fmt.Sprintf("trash thread %v", id), err)
			}

			return nil
		})
	}

	changes := driver.Changes{
		Remove: xslices.Filter(driver.FolderLabels, func(label driver.LabelID) bool { return label != destination }),
	}

	if destination != driver.LabelArchive {
		changes.Add = []driver.LabelID{destination}
	}

	return d.BatchModify(ctx, ids, changes)
}

func (d *Driver) BatchModify(ctx context.Context, ids []driver.ThreadID, changes driver.Changes) error {
	return d.each(ctx, ids, func(ctx context.Context, id driver.ThreadID) error {
		return d.modify(ctx, id, changes)
	})
}

func (d *Driver) MaxBatchSize() int {
	return maxBatchSize
}

func (d *Driver) each(ctx context.Context, ids []driver.ThreadID, fn func(context.Context, driver.ThreadID) error) error {
	if len(ids) > maxBatchSize {
		return fmt.Errorf("%v ids: %w", len(ids), driver.ErrBatchTooLarge)
	}

	return parallel.DoContext(ctx, parallelism, len(ids), func(ctx context.Context, idx int) error {
		return fn(ctx, ids[idx])
	})
}

func (d *Driver) modify(ctx context.Context, id driver.ThreadID, changes driver.Changes) error {
	if changes.IsEmpty() {
		return nil
	}

	req := &gmail.ModifyThreadRequest{
		AddLabelIds:    toStrings(changes.Add),
		RemoveLabelIds: toStrings(changes.Remove),
	}

	if _, err := d.svc.Users.Threads.Modify(userID, string(id), req).Context(ctx).Do(); err != nil {
		return wrapError(fmt.Sprintf("modify thread %v", id), err)
	}

	return nil
}

func toThread(res *gmail.Thread) driver.Thread {
	labels := make(sets.Map[driver.LabelID])

	thread := driver.Thread{
		ID:      driver.ThreadID(res.Id),
		Snippet: res.Snippet,
	}

	for _, msg := range res.Messages {
		message := driver.Message{
			ID:     msg.Id,
			Date:   time.UnixMilli(msg.InternalDate),
			Labels: toLabelIDs(msg.LabelIds),
		}

		if msg.Payload != nil {
			for _, header := range msg.Payload.Headers {
				switch strings.ToLower(header.Name) {
				case "subject":
					message.Subject = header.Value

				case "from":
					message.From = header.Value
				}
			}
		}

		for _, label := range message.Labels {
			labels.Add(label)
		}

		thread.Messages = append(thread.Messages, message)
	}

	if len(thread.Messages) > 0 {
		thread.Subject = thread.Messages[0].Subject
	}

	for label := range labels {
		thread.Labels = append(thread.Labels, label)
	}

	slices.Sort(thread.Labels)

	return thread
}

func isCountedSystemLabel(id string) bool {
	switch driver.LabelID(id) {
	case driver.LabelStarred, driver.LabelImportant, driver.LabelUnread, driver.LabelSent, driver.LabelDraft:
		return true

	default:
		return false
	}
}

func toStrings(labels []driver.LabelID) []string {
	return xslices.Map(labels, func(label driver.LabelID) string { return string(label) })
}

func toLabelIDs(labels []string) []driver.LabelID {
	return xslices.Map(labels, func(label string) driver.LabelID { return driver.LabelID(label) })
}
