package api

import (
	"context"
	"strings"
	"time"

	"github.com/nerrad567/edgelink-core/internal/component"
	"github.com/nerrad567/edgelink-core/internal/infrastructure/logging"
)

// ChannelSource reads live channel values. *component.Registry satisfies it.
type ChannelSource interface {
	ChannelValue(addr component.ChannelAddress) (any, bool)
	ComponentChannels(id string) ([]*component.Channel, bool)
}

type currentDataMessage struct {
	CurrentData map[string]any `json:"currentData"`
}

// sessionCheck reports an error once a connection's session is no longer
// accepted.
type sessionCheck func(ctx context.Context, c *Conn) error

// subscriptionWorker periodically pushes the values of a connection's
// subscribed channels, sending only those that changed since the last
// successful push. The session is checked before every push.
type subscriptionWorker struct {
	conn     *Conn
	hub      *Hub
	source   ChannelSource
	check    sessionCheck
	interval time.Duration
	logger   *logging.Logger

	// last holds the values most recently handed to the send buffer.
	last map[string]any
}

func newSubscriptionWorker(conn *Conn, hub *Hub, source ChannelSource, check sessionCheck, interval time.Duration, logger *logging.Logger) *subscriptionWorker {
	return &subscriptionWorker{
		conn:     conn,
		hub:      hub,
		source:   source,
		check:    check,
		interval: interval,
		logger:   logger,
		last:     make(map[string]any),
	}
}

// run ticks until ctx is cancelled, the connection leaves the hub or its
// session is rejected. The session is checked after the values are read
// and before anything is queued, so a rejected session closes the
// connection instead of receiving data.
func (w *subscriptionWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !w.hub.Contains(w.conn) {
				return
			}
			current, changed := w.delta()
			if !w.sessionValid(ctx) {
				return
			}
			w.push(current, changed)
		}
	}
}

// sessionValid re-checks the session. On rejection it unregisters the
// connection, which closes the send buffer and lets writePump send the
// close frame. Unregister joins this worker, so it runs on its own
// goroutine.
func (w *subscriptionWorker) sessionValid(ctx context.Context) bool {
	if w.check == nil {
		return true
	}
	err := w.check(ctx, w.conn)
	if err == nil {
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	w.logger.Warn("session no longer valid, closing connection", "user", w.conn.Username(), "error", err)
	go w.hub.Unregister(w.conn)
	return false
}

// tick computes and pushes one delta. It reports whether a frame was queued.
func (w *subscriptionWorker) tick() bool {
	return w.push(w.delta())
}

// delta reads the subscribed values and the entries that changed since
// the last push.
func (w *subscriptionWorker) delta() (current, changed map[string]any) {
	current = w.collect(w.conn.Subscriptions())
	return current, diffValues(w.last, current)
}

// push queues changed and records it as sent.
func (w *subscriptionWorker) push(current, changed map[string]any) bool {
	if len(changed) == 0 {
		return false
	}

	if !w.conn.sendMessage(currentDataMessage{CurrentData: changed}) {
		w.logger.Warn("unable to push current data", "user", w.conn.Username(), "channels", len(changed))
		return false
	}

	for tag := range changed {
		if v, ok := current[tag]; ok {
			w.last[tag] = v
		} else {
			delete(w.last, tag)
		}
	}
	return true
}

// collect resolves every subscribed tag. A tag without "/" is a component
// id and expands to all of its channels. Unresolvable tags are absent.
func (w *subscriptionWorker) collect(tags []string) map[string]any {
	values := make(map[string]any)
	for _, tag := range tags {
		if !strings.Contains(tag, "/") {
			channels, ok := w.source.ComponentChannels(tag)
			if !ok {
				continue
			}
			for _, ch := range channels {
				values[ch.Address().String()] = ch.Value()
			}
			continue
		}

		addr, err := component.ParseChannelAddress(tag)
		if err != nil {
			continue
		}
		if v, ok := w.source.ChannelValue(addr); ok {
			values[tag] = v
		}
	}
	return values
}

// diffValues returns the entries of current that are new or differ from
// last, plus a nil entry for every tag of last that is no longer present.
func diffValues(last, current map[string]any) map[string]any {
	changed := make(map[string]any)
	for tag, v := range current {
		prev, seen := last[tag]
		if !seen || !component.ValuesEqual(prev, v) {
			changed[tag] = v
		}
	}
	for tag := range last {
		if _, ok := current[tag]; !ok {
			changed[tag] = nil
		}
	}
	return changed
}
