package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(value string) time.Time {
	ts, _ := time.Parse("2006-01-02", value)
	return ts
}

func TestWindowValidate(t *testing.T) {
	tests := []struct {
		name    string
		window  Window
		wantErr bool
	}{
		{
			name:   "valid range",
			window: Window{Start: day("2024-03-01"), End: day("2024-03-08")},
		},
		{
			name:   "empty range",
			window: Window{Start: day("2024-03-01"), End: day("2024-03-01")},
		},
		{
			name:    "inverted range",
			window:  Window{Start: day("2024-03-08"), End: day("2024-03-01")},
			wantErr: true,
		},
		{
			name: "filter mixing plants and resources",
			window: Window{
				Start:  day("2024-03-01"),
				End:    day("2024-03-08"),
				Filter: Filter{Plants: []string{"Kozienice"}, Resources: []string{"KOZ11S02"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.window.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestWindowKeyIsStable(t *testing.T) {
	a := Window{
		Start:  day("2024-03-01"),
		End:    day("2024-03-08"),
		Filter: Filter{Resources: []string{"B", "A"}},
	}
	b := Window{
		Start:  day("2024-03-01"),
		End:    day("2024-03-08"),
		Filter: Filter{Resources: []string{"A", "B"}},
	}

	// Filter order must not change the key.
	assert.Equal(t, a.Key(1000), b.Key(1000))
	assert.NotEqual(t, a.Key(1000), a.Key(2000))

	unfiltered := Window{Start: day("2024-03-01"), End: day("2024-03-08")}
	assert.NotEqual(t, a.Key(1000), unfiltered.Key(1000))
	assert.Contains(t, unfiltered.Key(1000), "all")
}

func TestTimestampUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "api dtime format",
			input: `"2024-03-01 10:00:00"`,
			want:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "rfc3339 fallback",
			input: `"2024-03-01T10:00:00Z"`,
			want:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "empty string is zero",
			input: `""`,
		},
		{
			name:    "garbage rejected",
			input:   `"01/03/2024"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			err := json.Unmarshal([]byte(tt.input), &ts)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, ts.Equal(tt.want), "got %s", ts.Time)
		})
	}
}

func TestRecordDecodesAPIPayload(t *testing.T) {
	raw := `{"business_date":"2024-03-01","dtime":"2024-03-01 11:00:00","dtime_utc":"2024-03-01 10:00:00","resource_code":"KOZ11S02","power_plant":"Kozienice","operating_mode":"W","gen_mw":410.5,"cap_mw":500}`

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	assert.Equal(t, time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), rec.Timestamp())
}

func TestRecordTimestampFallsBackToUTC(t *testing.T) {
	rec := Record{DtimeUTC: Timestamp{Time: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}}
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), rec.Timestamp())
}

func TestWindowIsEmpty(t *testing.T) {
	assert.True(t, Window{Start: day("2024-03-01"), End: day("2024-03-01")}.IsEmpty())
	assert.False(t, Window{Start: day("2024-03-01"), End: day("2024-03-02")}.IsEmpty())
}
