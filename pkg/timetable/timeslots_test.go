package timetable

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basicConfig() LevelConfig {
	return LevelConfig{
		SchoolID:      "school-1",
		AcademicLevel: LevelBasic,
		StartTime:     "08:00",
		EndTime:       "13:00",
		BlockDuration: 45,
		Breaks: []BreakConfig{
			{AfterBlock: 2, Duration: 15, Name: "Recreo"},
			{AfterBlock: 4, Duration: 45, Name: "Almuerzo"},
		},
	}
}

func TestBuildDaySlotsBasicLayout(t *testing.T) {
	slots, err := BuildDaySlots(basicConfig())
	require.NoError(t, err)

	type row struct {
		kind  SlotKind
		start string
		end   string
		label string
	}
	expected := []row{
		{SlotBlock, "08:00", "08:45", "1"},
		{SlotBlock, "08:45", "09:30", "2"},
		{SlotBreak, "09:30", "09:45", "Recreo"},
		{SlotBlock, "09:45", "10:30", "3"},
		{SlotBlock, "10:30", "11:15", "4"},
		{SlotBreak, "11:15", "12:00", "Almuerzo"},
		{SlotBlock, "12:00", "12:45", "5"},
	}
	require.Len(t, slots, len(expected))
	for i, want := range expected {
		got := slots[i]
		assert.Equal(t, want.kind, got.Kind, "slot %d kind", i)
		assert.Equal(t, want.start, got.Start.String(), "slot %d start", i)
		assert.Equal(t, want.end, got.End.String(), "slot %d end", i)
		if got.Kind == SlotBreak {
			assert.Equal(t, want.label, got.BreakName)
		} else {
			assert.Equal(t, want.label, strconv.Itoa(got.BlockNumber))
		}
	}
}

func TestBuildDaySlotsContiguous(t *testing.T) {
	configs := []LevelConfig{
		basicConfig(),
		DefaultLevelConfig(LevelMiddle),
		{StartTime: "08:00", EndTime: "10:30", BlockDuration: 45},
		{
			StartTime:     "08:00",
			EndTime:       "17:00",
			BlockDuration: 45,
			Breaks: []BreakConfig{
				{AfterBlock: 2, Duration: 15, Name: "Recreo"},
				{AfterBlock: 4, Duration: 15, Name: "Recreo"},
				{AfterBlock: 6, Duration: 45, Name: "Almuerzo"},
			},
		},
	}
	for _, cfg := range configs {
		slots, err := BuildDaySlots(cfg)
		require.NoError(t, err)
		require.NotEmpty(t, slots)
		assert.Equal(t, MustParseClock(cfg.StartTime), slots[0].Start)
		for i := 1; i < len(slots); i++ {
			assert.Equal(t, slots[i-1].End, slots[i].Start, "gap between slot %d and %d", i-1, i)
		}
		assert.LessOrEqual(t, int(slots[len(slots)-1].End), int(MustParseClock(cfg.EndTime)))

		breaks := 0
		for i, slot := range slots {
			if slot.Kind != SlotBreak {
				continue
			}
			require.Greater(t, i, 0)
			assert.Equal(t, cfg.Breaks[breaks].AfterBlock, slots[i-1].BlockNumber)
			breaks++
		}
		assert.Equal(t, len(cfg.Breaks), breaks)
	}
}

func TestBuildDaySlotsNoBreaks(t *testing.T) {
	slots, err := BuildDaySlots(LevelConfig{StartTime: "08:00", EndTime: "10:30", BlockDuration: 45})
	require.NoError(t, err)
	assert.Len(t, slots, 3)
	assert.Len(t, TeachingBlocks(slots), 3)
	assert.Equal(t, "10:15", slots[2].End.String())
}

func TestMiddleDefaultBlocksAreNinetyMinutes(t *testing.T) {
	slots, err := BuildDaySlots(DefaultLevelConfig(LevelMiddle))
	require.NoError(t, err)
	blocks := TeachingBlocks(slots)
	require.NotEmpty(t, blocks)
	for _, b := range blocks {
		assert.Equal(t, 90, b.Interval().Minutes())
	}
	assert.Len(t, slots, len(blocks)+2)
}

func TestBuildDaySlotsKeepsBreakAfterLastBlock(t *testing.T) {
	cfg := LevelConfig{
		StartTime:     "08:00",
		EndTime:       "09:15",
		BlockDuration: 60,
		Breaks:        []BreakConfig{{AfterBlock: 1, Duration: 15, Name: "Recreo"}},
	}
	slots, err := BuildDaySlots(cfg)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, SlotBlock, slots[0].Kind)
	assert.Equal(t, "09:00", slots[0].End.String())
	assert.Equal(t, SlotBreak, slots[1].Kind)
	assert.Equal(t, "09:00", slots[1].Start.String())
	assert.Equal(t, "09:15", slots[1].End.String())

	cfg.EndTime = "09:10"
	err = ValidateLevelConfig(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBreakOutOfRange)
}

func TestValidateLevelConfigRejections(t *testing.T) {
	cases := map[string]struct {
		mutate func(*LevelConfig)
		want   error
	}{
		"block not multiple of 15":  {func(c *LevelConfig) { c.BlockDuration = 40 }, ErrBlockDuration},
		"break not multiple of 15":  {func(c *LevelConfig) { c.Breaks[0].Duration = 20 }, ErrBreakDuration},
		"duplicate afterBlock":      {func(c *LevelConfig) { c.Breaks[1].AfterBlock = 2 }, ErrDuplicateBreak},
		"unordered breaks":          {func(c *LevelConfig) { c.Breaks[0].AfterBlock, c.Breaks[1].AfterBlock = 4, 2 }, ErrBreakOrder},
		"break after missing block": {func(c *LevelConfig) { c.Breaks[1].AfterBlock = 9 }, ErrBreakOutOfRange},
		"end before start":          {func(c *LevelConfig) { c.EndTime = "07:00" }, ErrEmptyRange},
		"malformed time":            {func(c *LevelConfig) { c.StartTime = "8am" }, ErrInvalidLevelConfig},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := basicConfig()
			tc.mutate(&cfg)
			err := ValidateLevelConfig(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, ErrInvalidLevelConfig)

			_, buildErr := BuildDaySlots(cfg)
			assert.Error(t, buildErr)
		})
	}
}

func TestBuildWeekSlotsReplicatesDays(t *testing.T) {
	week, err := BuildWeekSlots(basicConfig(), nil)
	require.NoError(t, err)
	require.Len(t, week, len(Weekdays))
	monday := week[Monday]
	for _, day := range Weekdays {
		assert.Equal(t, monday, week[day])
	}

	week, err = BuildWeekSlots(basicConfig(), []Weekday{Monday, Wednesday})
	require.NoError(t, err)
	assert.Len(t, week, 2)
}

func TestDefaultLevelConfigIsIndependentCopy(t *testing.T) {
	cfg := DefaultLevelConfig(LevelBasic)
	cfg.Breaks[0].Name = "changed"
	assert.Equal(t, "Recreo", DefaultLevelConfig(LevelBasic).Breaks[0].Name)
	assert.NoError(t, ValidateLevelConfig(DefaultLevelConfig(LevelBasic)))
	assert.NoError(t, ValidateLevelConfig(DefaultLevelConfig(LevelMiddle)))
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:05")
	require.NoError(t, err)
	assert.Equal(t, Clock(545), c)
	assert.Equal(t, "09:05", c.String())

	for _, raw := range []string{"", "9", "24:00", "10:60", "aa:bb", "10:5"} {
		_, err := ParseClock(raw)
		assert.ErrorIs(t, err, ErrInvalidClock, raw)
	}
}
