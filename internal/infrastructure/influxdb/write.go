package influxdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const (
	// measurementData holds every channel value an edge reports.
	measurementData = "data"

	// tagEdge identifies the reporting edge.
	tagEdge = "edge"
)

// WriteTimestampedData forwards one timestampedData payload
// (timestamp → channel address → value) for edgeID. Each timestamp bucket
// becomes a point whose fields are keyed by channel address.
//
// Buckets with an unparseable timestamp are skipped and reported in the
// returned error; the remaining buckets are still written.
func (c *Client) WriteTimestampedData(edgeID string, data map[string]map[string]any) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	points, err := BuildPoints(edgeID, data)
	for _, p := range points {
		c.writeAPI.WritePoint(p)
	}
	return err
}

// BuildPoints converts a timestampedData payload into write points, ordered
// by timestamp. Null and structured values are omitted since InfluxDB fields
// must be scalars; a bucket left with no fields produces no point.
func BuildPoints(edgeID string, data map[string]map[string]any) ([]*write.Point, error) {
	var errs []error
	points := make([]*write.Point, 0, len(data))

	for stamp, channels := range data {
		ts, err := ParseTimestamp(stamp)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		fields := make(map[string]any, len(channels))
		for addr, v := range channels {
			if fv, ok := fieldValue(v); ok {
				fields[addr] = fv
			}
		}
		if len(fields) == 0 {
			continue
		}

		points = append(points, write.NewPoint(measurementData, map[string]string{tagEdge: edgeID}, fields, ts))
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Time().Before(points[j].Time()) })
	return points, errors.Join(errs...)
}

// ParseTimestamp accepts epoch milliseconds or RFC 3339.
func ParseTimestamp(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
}

func fieldValue(v any) (any, bool) {
	switch x := v.(type) {
	case float64, float32, int, int64, int32, uint64, uint32, bool, string:
		return x, true
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f, true
		}
		return x.String(), true
	default:
		return nil, false
	}
}
