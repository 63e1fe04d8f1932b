package influxdb

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"1760000000000", time.UnixMilli(1760000000000).UTC(), false},
		{"2026-03-01T09:00:00Z", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), false},
		{"2026-03-01T10:00:00.5+01:00", time.Date(2026, 3, 1, 9, 0, 0, 500_000_000, time.UTC), false},
		{"yesterday", time.Time{}, true},
		{"", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimestamp(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrBadTimestamp) {
					t.Errorf("error = %v, want ErrBadTimestamp", err)
				}
				return
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildPoints(t *testing.T) {
	data := map[string]map[string]any{
		"1760000001000": {
			"ess0/Soc":           json.Number("43"),
			"meter0/ActivePower": 1900.0,
		},
		"1760000000000": {
			"ess0/Soc":                 42.0,
			"system0/PrimaryIpAddress": "10.0.0.5",
			"ess0/Nested":              map[string]any{"a": 1},
			"ess0/Missing":             nil,
		},
	}

	points, err := BuildPoints("edge0", data)
	if err != nil {
		t.Fatalf("BuildPoints() error = %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("len(points) = %d, want 2", len(points))
	}

	first := points[0]
	if first.Name() != measurementData {
		t.Errorf("Name() = %q, want %q", first.Name(), measurementData)
	}
	if !first.Time().Equal(time.UnixMilli(1760000000000)) {
		t.Errorf("points not ordered by time: first = %v", first.Time())
	}

	tags := first.TagList()
	if len(tags) != 1 || tags[0].Key != tagEdge || tags[0].Value != "edge0" {
		t.Errorf("TagList() = %+v, want edge=edge0", tags)
	}

	fields := map[string]any{}
	for _, f := range first.FieldList() {
		fields[f.Key] = f.Value
	}
	if len(fields) != 2 {
		t.Errorf("fields = %v, want only the two scalar channels", fields)
	}
	if fields["ess0/Soc"] != 42.0 {
		t.Errorf("ess0/Soc = %v, want 42", fields["ess0/Soc"])
	}
	if fields["system0/PrimaryIpAddress"] != "10.0.0.5" {
		t.Errorf("system0/PrimaryIpAddress = %v, want 10.0.0.5", fields["system0/PrimaryIpAddress"])
	}

	second := map[string]any{}
	for _, f := range points[1].FieldList() {
		second[f.Key] = f.Value
	}
	if second["ess0/Soc"] != 43.0 {
		t.Errorf("json.Number field = %v (%T), want float64 43", second["ess0/Soc"], second["ess0/Soc"])
	}
}

func TestBuildPoints_BadTimestampSkipped(t *testing.T) {
	data := map[string]map[string]any{
		"not-a-time":    {"ess0/Soc": 1.0},
		"1760000000000": {"ess0/Soc": 2.0},
	}

	points, err := BuildPoints("edge0", data)
	if !errors.Is(err, ErrBadTimestamp) {
		t.Errorf("BuildPoints() error = %v, want ErrBadTimestamp", err)
	}
	if len(points) != 1 {
		t.Errorf("len(points) = %d, want 1", len(points))
	}
}

func TestBuildPoints_EmptyBucket(t *testing.T) {
	points, err := BuildPoints("edge0", map[string]map[string]any{
		"1760000000000": {"ess0/Missing": nil},
	})
	if err != nil {
		t.Fatalf("BuildPoints() error = %v", err)
	}
	if len(points) != 0 {
		t.Errorf("len(points) = %d, want 0", len(points))
	}
}
