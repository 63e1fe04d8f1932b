package api

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/nerrad567/edgelink-core/internal/component"
	"github.com/nerrad567/edgelink-core/internal/edge"
	"github.com/nerrad567/edgelink-core/internal/infrastructure/logging"
)

// EdgeLookup resolves the edge a session is bound to.
// *edge.Registry satisfies it.
type EdgeLookup interface {
	GetEdgeOrError(ctx context.Context, id string) (*edge.Edge, error)
}

// Timedata stores timestamped measurements.
// *influxdb.Client satisfies it.
type Timedata interface {
	WriteTimestampedData(edgeID string, data map[string]map[string]any) error
}

// Channels an edge reports that update its cached metadata.
const (
	addressSoc     = "ess0/Soc"
	addressIPv4    = "system0/PrimaryIpAddress"
	addressVersion = "_meta/Version"
)

// activityChannels are the channel ids whose presence marks the edge as
// recently active.
var activityChannels = map[string]bool{
	"ActivePower":   true,
	"ActivePowerL1": true,
	"ActivePowerL2": true,
	"ActivePowerL3": true,
	"Soc":           true,
}

// notificationRouter applies notifications sent by edges.
type notificationRouter struct {
	edges    EdgeLookup
	timedata Timedata
	logger   *logging.Logger
}

// route dispatches n for the edge bound to c's session.
func (r *notificationRouter) route(ctx context.Context, c *Conn, n notification) error {
	s := c.Session()
	if !s.IsEdge() {
		return fmt.Errorf("%w: user %s sent %s", ErrNotEdgeSession, c.Username(), n.method())
	}

	// Measurements are stored even when the edge cannot be resolved.
	if td, ok := n.(timestampedData); ok {
		r.writeTimedata(s.EdgeID, td)
	}

	e, err := r.edges.GetEdgeOrError(ctx, s.EdgeID)
	if err != nil {
		return fmt.Errorf("resolving edge %s: %w", s.EdgeID, err)
	}

	switch n := n.(type) {
	case edgeConfiguration:
		e.SetConfig(n.config)
		r.logger.Info("edge configuration updated", "edge_id", e.ID())
	case timestampedData:
		r.handleTimestampedData(e, n)
	case unknownNotification:
		r.logger.Warn("unknown notification", "edge_id", e.ID(), "method", n.name)
	default:
		r.logger.Warn("unhandled notification type", "edge_id", e.ID(), "method", n.method())
	}
	return nil
}

func (r *notificationRouter) writeTimedata(edgeID string, n timestampedData) {
	if r.timedata == nil {
		return
	}
	if err := r.timedata.WriteTimestampedData(edgeID, n.data); err != nil {
		r.logger.Error("writing timestamped data", "edge_id", edgeID, "error", err)
	}
}

func (r *notificationRouter) handleTimestampedData(e *edge.Edge, n timestampedData) {
	active := false
	// Oldest bucket first so the newest value wins.
	for _, ts := range slices.Sorted(maps.Keys(n.data)) {
		for address, value := range n.data[ts] {
			if activityChannels[channelID(address)] {
				active = true
			}
			r.applyChannel(e, address, value)
		}
	}
	if active {
		e.SetLastUpdateTimestamp()
	}
}

// applyChannel updates the edge's cached metadata from a reserved channel.
func (r *notificationRouter) applyChannel(e *edge.Edge, address string, value any) {
	switch address {
	case addressSoc:
		soc, ok := parseSoc(value)
		if !ok {
			r.logger.Warn("unparseable state of charge", "edge_id", e.ID(), "value", value)
			return
		}
		e.SetSoc(soc)
	case addressIPv4:
		if ip, ok := scalarString(value); ok {
			e.SetIPv4(ip)
		} else if value != nil {
			r.logger.Warn("unparseable IPv4 address", "edge_id", e.ID(), "value", value)
		}
	case addressVersion:
		if v, ok := scalarString(value); ok {
			e.SetVersion(v)
		} else if value != nil {
			r.logger.Warn("unparseable version", "edge_id", e.ID(), "value", value)
		}
	}
}

// scalarString renders a string, number or bool as text. A version sent
// as 2018.8 becomes "2018.8".
func scalarString(v any) (string, bool) {
	n, err := component.NormalizeValue(v)
	if err != nil {
		return "", false
	}
	switch x := n.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

// channelID returns the part of address after the last "/".
func channelID(address string) string {
	if i := strings.LastIndexByte(address, '/'); i >= 0 {
		return address[i+1:]
	}
	return address
}

// parseSoc rounds a numeric or numeric-string value to a whole percentage.
func parseSoc(v any) (int, bool) {
	n, err := component.NormalizeValue(v)
	if err != nil {
		return 0, false
	}
	var f float64
	switch x := n.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(math.Round(f)), true
}
