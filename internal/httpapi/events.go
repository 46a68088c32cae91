package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/inboxkit/courier/driver"
	"github.com/inboxkit/courier/events"
	"github.com/inboxkit/courier/internal/ticker"
	"github.com/inboxkit/courier/logging"
)

// eventMessage is the wire form of a notification.
type eventMessage struct {
	Kind      string            `json:"kind"`
	ActionID  string            `json:"actionId,omitempty"`
	Type      string            `json:"type,omitempty"`
	ThreadIDs []driver.ThreadID `json:"threadIds"`
	Reason    string            `json:"reason,omitempty"`
	Reconnect bool              `json:"reconnect,omitempty"`
	Cause     string            `json:"cause,omitempty"`
	Counts    driver.Counts     `json:"counts,omitempty"`
}

// handleEvents streams the notifications of the user over a websocket until either side goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, userID string) {
	// Watch before the handshake completes so that no event is missed by a client that acts right after.
	eventCh := s.coordinator.AddWatcherFunc(func(event events.Event) bool {
		_, ok := toMessage(userID, event)
		return ok
	})
	defer s.coordinator.RemoveWatcher(eventCh)

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("Failed to accept event stream")
		return
	}

	defer conn.CloseNow() //nolint:errcheck

	ctx, cancel := context.WithCancel(conn.CloseRead(r.Context()))
	defer cancel()

	log := logrus.WithField(logging.UserIDKey, userID)

	log.Debug("Event stream opened")

	countsCh := make(chan driver.Counts)

	if interval := s.config().CountsInterval; interval > 0 {
		tickDone := make(chan struct{})

		go func() {
			defer close(tickDone)

			ticker.New(interval).Run(ctx, func(time.Time) {
				counts, err := s.coordinator.RefreshCounts(ctx, userID)
				if err != nil {
					log.WithError(err).Debug("Failed to refresh counts")
					return
				}

				select {
				case countsCh <- counts:
				case <-ctx.Done():
				}
			})
		}()

		defer func() { cancel(); <-tickDone }()
	}

	for {
		select {
		case counts := <-countsCh:
			if err := wsjson.Write(ctx, conn, eventMessage{Kind: "counts", ThreadIDs: []driver.ThreadID{}, Counts: counts}); err != nil {
				log.WithError(err).Debug("Failed to write counts")
				return
			}

		case <-ctx.Done():
			log.Debug("Event stream closed")
			return

		case event, ok := <-eventCh:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "shutting down")
				return
			}

			msg, ok := toMessage(userID, event)
			if !ok {
				continue
			}

			if err := wsjson.Write(ctx, conn, msg); err != nil {
				log.WithError(err).Debug("Failed to write event")
				return
			}
		}
	}
}

// toMessage converts the event if it concerns the user.
func toMessage(userID string, event events.Event) (eventMessage, bool) {
	var (
		msg   eventMessage
		owner string
	)

	switch event := event.(type) {
	case events.ActionLoading:
		msg, owner = fromAction("loading", event.Action), event.UserID

	case events.ActionSucceeded:
		msg, owner = fromAction("succeeded", event.Action), event.UserID

	case events.ActionFailed:
		msg, owner = fromAction("failed", event.Action), event.UserID
		msg.Reason = event.Reason
		msg.Reconnect = event.Reconnect

	case events.ActionUndone:
		msg, owner = fromAction("undone", event.Action), event.UserID
		msg.Cause = string(event.Cause)

	case events.ThreadsBusy:
		msg, owner = eventMessage{Kind: "busy", ThreadIDs: event.ThreadIDs}, event.UserID

	case events.ThreadsIdle:
		msg, owner = eventMessage{Kind: "idle", ThreadIDs: event.ThreadIDs}, event.UserID

	default:
		return eventMessage{}, false
	}

	return msg, owner == userID
}

func fromAction(kind string, action events.Action) eventMessage {
	return eventMessage{
		Kind:      kind,
		ActionID:  action.ActionID,
		Type:      action.Type,
		ThreadIDs: action.ThreadIDs,
	}
}
