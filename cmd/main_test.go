package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwatch/psefetch/internal/config"
)

func TestWatchMode(t *testing.T) {
	tests := []struct {
		name    string
		flags   cliFlags
		enabled bool
		want    bool
	}{
		{name: "neither", want: false},
		{name: "flag", flags: cliFlags{watch: true}, want: true},
		{name: "config", enabled: true, want: true},
		{name: "both", flags: cliFlags{watch: true}, enabled: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Scheduler.Enabled = tt.enabled
			assert.Equal(t, tt.want, watchMode(&tt.flags, cfg))
		})
	}
}

func TestWindowFromFlags(t *testing.T) {
	window, err := windowFromFlags(&cliFlags{start: "2024-03-01", end: "2024-03-07"})
	require.NoError(t, err)

	// The end date is inclusive, so the window runs to the next midnight.
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), window.Start)
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), window.End)
}

func TestWindowFromFlagsRejectsMissingDates(t *testing.T) {
	_, err := windowFromFlags(&cliFlags{start: "2024-03-01"})
	require.Error(t, err)
}

func TestSplitCSV(t *testing.T) {
	assert.Nil(t, splitCSV(""))
	assert.Equal(t, []string{"KOZ11S02", "BEL 2-03"}, splitCSV("KOZ11S02, BEL 2-03,"))
}
