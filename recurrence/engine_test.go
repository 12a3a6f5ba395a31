package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRecurrence(t *testing.T, allDay bool, lines ...string) Recurrence {
	t.Helper()
	rec, err := ParseRecurrence(lines, allDay)
	require.NoError(t, err)
	return rec.MustGet()
}

func TestEngine_HasOccurrence(t *testing.T) {
	engine := NewEngineWithConfig(DisabledCacheConfig)
	defer engine.Close()

	// Daily meeting from 9 AM starting Monday Jan 1, 2024
	masterStart := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	seoul := time.FixedZone("KST", 9*60*60)
	allDayStart := time.Date(2024, 1, 1, 0, 0, 0, 0, seoul)

	tests := []struct {
		name       string
		dtstart    time.Time
		allDay     bool
		recurrence Recurrence
		occurrence time.Time
		expected   bool
	}{
		{
			name:       "first occurrence",
			dtstart:    masterStart,
			recurrence: mustRecurrence(t, false, "RRULE:FREQ=DAILY;COUNT=5"),
			occurrence: masterStart,
			expected:   true,
		},
		{
			name:       "within count",
			dtstart:    masterStart,
			recurrence: mustRecurrence(t, false, "RRULE:FREQ=DAILY;COUNT=5"),
			occurrence: time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC),
			expected:   true,
		},
		{
			name:       "past count",
			dtstart:    masterStart,
			recurrence: mustRecurrence(t, false, "RRULE:FREQ=DAILY;COUNT=5"),
			occurrence: time.Date(2024, 1, 6, 9, 0, 0, 0, time.UTC),
			expected:   false,
		},
		{
			name:       "wrong time of day",
			dtstart:    masterStart,
			recurrence: mustRecurrence(t, false, "RRULE:FREQ=DAILY"),
			occurrence: time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC),
			expected:   false,
		},
		{
			name:       "same instant in another zone",
			dtstart:    masterStart,
			recurrence: mustRecurrence(t, false, "RRULE:FREQ=DAILY"),
			occurrence: time.Date(2024, 1, 3, 18, 0, 0, 0, seoul),
			expected:   true,
		},
		{
			name:       "weekly byday hit",
			dtstart:    masterStart,
			recurrence: mustRecurrence(t, false, "RRULE:FREQ=WEEKLY;BYDAY=MO,WE"),
			occurrence: time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC),
			expected:   true,
		},
		{
			name:       "weekly byday miss",
			dtstart:    masterStart,
			recurrence: mustRecurrence(t, false, "RRULE:FREQ=WEEKLY;BYDAY=MO,WE"),
			occurrence: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC),
			expected:   false,
		},
		{
			name:       "last friday of the month",
			dtstart:    time.Date(2024, 1, 26, 9, 0, 0, 0, time.UTC),
			recurrence: mustRecurrence(t, false, "RRULE:FREQ=MONTHLY;BYDAY=-1FR"),
			occurrence: time.Date(2024, 2, 23, 9, 0, 0, 0, time.UTC),
			expected:   true,
		},
		{
			name:       "not the last friday",
			dtstart:    time.Date(2024, 1, 26, 9, 0, 0, 0, time.UTC),
			recurrence: mustRecurrence(t, false, "RRULE:FREQ=MONTHLY;BYDAY=-1FR"),
			occurrence: time.Date(2024, 2, 16, 9, 0, 0, 0, time.UTC),
			expected:   false,
		},
		{
			name:       "timed until inclusive",
			dtstart:    masterStart,
			recurrence: mustRecurrence(t, false, "RRULE:FREQ=DAILY;UNTIL=20240104T090000Z"),
			occurrence: time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC),
			expected:   true,
		},
		{
			name:       "zero count",
			dtstart:    masterStart,
			recurrence: mustRecurrence(t, false, "RRULE:FREQ=DAILY;COUNT=0"),
			occurrence: masterStart,
			expected:   false,
		},
		{
			name:       "all-day until covers the whole local day",
			dtstart:    allDayStart,
			allDay:     true,
			recurrence: mustRecurrence(t, true, "RRULE:FREQ=DAILY;UNTIL=20240105"),
			occurrence: time.Date(2024, 1, 5, 0, 0, 0, 0, seoul),
			expected:   true,
		},
		{
			name:       "all-day after until",
			dtstart:    allDayStart,
			allDay:     true,
			recurrence: mustRecurrence(t, true, "RRULE:FREQ=DAILY;UNTIL=20240105"),
			occurrence: time.Date(2024, 1, 6, 0, 0, 0, 0, seoul),
			expected:   false,
		},
		{
			name:       "all-day exdate",
			dtstart:    allDayStart,
			allDay:     true,
			recurrence: mustRecurrence(t, true, "RRULE:FREQ=DAILY", "EXDATE;VALUE=DATE:20240103"),
			occurrence: time.Date(2024, 1, 3, 0, 0, 0, 0, seoul),
			expected:   false,
		},
		{
			name:       "all-day rdate outside rule",
			dtstart:    allDayStart,
			allDay:     true,
			recurrence: mustRecurrence(t, true, "RRULE:FREQ=WEEKLY;COUNT=2", "RDATE;VALUE=DATE:20240110"),
			occurrence: time.Date(2024, 1, 10, 0, 0, 0, 0, seoul),
			expected:   true,
		},
		{
			name:       "all-day rdate also excluded",
			dtstart:    allDayStart,
			allDay:     true,
			recurrence: mustRecurrence(t, true, "RRULE:FREQ=WEEKLY;COUNT=2", "RDATE;VALUE=DATE:20240110", "EXDATE;VALUE=DATE:20240110"),
			occurrence: time.Date(2024, 1, 10, 0, 0, 0, 0, seoul),
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := engine.HasOccurrence(tt.dtstart, tt.allDay, tt.recurrence, tt.occurrence)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, found)
		})
	}
}

func TestEngine_InvalidFrequency(t *testing.T) {
	engine := NewEngineWithConfig(DisabledCacheConfig)

	_, err := engine.HasOccurrence(time.Now(), false, Recurrence{Rule: Rule{Interval: 1}}, time.Now())
	assert.True(t, IsType(err, ErrMalformedRule))
}

func TestEngine_UsesCache(t *testing.T) {
	engine := NewEngine()
	defer engine.Close()

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	rec := mustRecurrence(t, false, "RRULE:FREQ=DAILY;COUNT=3")

	for i := 0; i < 3; i++ {
		found, err := engine.HasOccurrence(start, false, rec, start.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.True(t, found)
	}
	assert.Equal(t, 1, engine.CacheStats().TotalEntries)

	found, err := engine.HasOccurrence(start, false, rec, start.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 2, engine.CacheStats().TotalEntries)
}

func TestEngine_DisabledCacheStats(t *testing.T) {
	engine := NewEngineWithConfig(DisabledCacheConfig)
	assert.Equal(t, CacheStats{}, engine.CacheStats())
	engine.Close()
}

func TestEngine_HighTrafficConfig(t *testing.T) {
	engine := NewEngineWithConfig(HighTrafficConfig)
	defer engine.Close()

	stats := engine.CacheStats()
	assert.Equal(t, 5000, stats.MaxEntries)
	assert.Equal(t, 30*time.Minute, stats.TTL)
}

func TestEngineConfigPreset(t *testing.T) {
	for name, want := range map[string]EngineConfig{
		PresetDefault:     DefaultEngineConfig,
		PresetHighTraffic: HighTrafficConfig,
		PresetDisabled:    DisabledCacheConfig,
	} {
		t.Run(name, func(t *testing.T) {
			got, ok := EngineConfigPreset(name)
			require.True(t, ok)
			assert.Equal(t, want, got)
		})
	}

	_, ok := EngineConfigPreset("turbo")
	assert.False(t, ok)
}
