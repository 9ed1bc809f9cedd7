package timetable

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Configuration errors reported by ValidateLevelConfig.
var (
	ErrInvalidLevelConfig = errors.New("invalid schedule level configuration")
	ErrEmptyRange         = errors.New("end time must be after start time")
	ErrBlockDuration      = fmt.Errorf("block duration must be a multiple of %d minutes", GridUnit)
	ErrBreakDuration      = fmt.Errorf("break duration must be a multiple of %d minutes", GridUnit)
	ErrBreakOrder         = errors.New("breaks must be ordered by afterBlock ascending")
	ErrDuplicateBreak     = errors.New("more than one break targets the same block")
	ErrBreakOutOfRange    = errors.New("break is placed after a block that does not exist or does not fit")
)

var configValidator = validator.New()

var defaultLevelConfigs = map[AcademicLevel]LevelConfig{
	LevelBasic: {
		AcademicLevel: LevelBasic,
		StartTime:     "08:00",
		EndTime:       "13:00",
		BlockDuration: 45,
		Breaks: []BreakConfig{
			{AfterBlock: 2, Duration: 15, Name: "Recreo"},
			{AfterBlock: 4, Duration: 45, Name: "Almuerzo"},
		},
	},
	LevelMiddle: {
		AcademicLevel: LevelMiddle,
		StartTime:     "08:00",
		EndTime:       "14:00",
		BlockDuration: 90,
		Breaks: []BreakConfig{
			{AfterBlock: 2, Duration: 15, Name: "Recreo"},
			{AfterBlock: 3, Duration: 45, Name: "Almuerzo"},
		},
	},
}

// DefaultLevelConfig returns the grid used when a school has not stored one for the level.
func DefaultLevelConfig(level AcademicLevel) LevelConfig {
	cfg, ok := defaultLevelConfigs[level]
	if !ok {
		cfg = defaultLevelConfigs[LevelMiddle]
		cfg.AcademicLevel = level
	}
	cfg.Breaks = append([]BreakConfig(nil), cfg.Breaks...)
	return cfg
}

// ValidateLevelConfig rejects grids that cannot be laid out without ambiguity.
func ValidateLevelConfig(cfg LevelConfig) error {
	if err := configValidator.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLevelConfig, err)
	}
	start, err := ParseClock(cfg.StartTime)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLevelConfig, err)
	}
	end, err := ParseClock(cfg.EndTime)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLevelConfig, err)
	}
	if end <= start {
		return fmt.Errorf("%w: %w", ErrInvalidLevelConfig, ErrEmptyRange)
	}
	if cfg.BlockDuration%GridUnit != 0 {
		return fmt.Errorf("%w: %w", ErrInvalidLevelConfig, ErrBlockDuration)
	}

	previous := 0
	for _, br := range cfg.Breaks {
		if br.Duration%GridUnit != 0 {
			return fmt.Errorf("%w: %w (%s)", ErrInvalidLevelConfig, ErrBreakDuration, br.Name)
		}
		switch {
		case br.AfterBlock == previous:
			return fmt.Errorf("%w: %w (afterBlock %d)", ErrInvalidLevelConfig, ErrDuplicateBreak, br.AfterBlock)
		case br.AfterBlock < previous:
			return fmt.Errorf("%w: %w", ErrInvalidLevelConfig, ErrBreakOrder)
		}
		previous = br.AfterBlock
	}

	slots := layoutDay(start, end, cfg.BlockDuration, cfg.Breaks)
	placed := make(map[int]bool, len(cfg.Breaks))
	for i, slot := range slots {
		if slot.Kind == SlotBreak && i > 0 {
			placed[slots[i-1].BlockNumber] = true
		}
	}
	for _, br := range cfg.Breaks {
		if !placed[br.AfterBlock] {
			return fmt.Errorf("%w: %w (%s after block %d)", ErrInvalidLevelConfig, ErrBreakOutOfRange, br.Name, br.AfterBlock)
		}
	}
	return nil
}

// BuildDaySlots expands a level configuration into the ordered, gap-free slots of one day.
func BuildDaySlots(cfg LevelConfig) ([]TimeSlot, error) {
	if err := ValidateLevelConfig(cfg); err != nil {
		return nil, err
	}
	start := MustParseClock(cfg.StartTime)
	end := MustParseClock(cfg.EndTime)
	return layoutDay(start, end, cfg.BlockDuration, cfg.Breaks), nil
}

// BuildWeekSlots replicates the day grid for every requested day; nil days means Monday–Friday.
func BuildWeekSlots(cfg LevelConfig, days []Weekday) (map[Weekday][]TimeSlot, error) {
	daySlots, err := BuildDaySlots(cfg)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		days = Weekdays
	}
	week := make(map[Weekday][]TimeSlot, len(days))
	for _, day := range days {
		week[day] = append([]TimeSlot(nil), daySlots...)
	}
	return week, nil
}

// TeachingBlocks keeps only assignable slots.
func TeachingBlocks(slots []TimeSlot) []TimeSlot {
	blocks := make([]TimeSlot, 0, len(slots))
	for _, slot := range slots {
		if slot.Kind == SlotBlock {
			blocks = append(blocks, slot)
		}
	}
	return blocks
}

// layoutDay assumes breaks were validated: ascending and unique by AfterBlock.
func layoutDay(start, end Clock, blockDuration int, breaks []BreakConfig) []TimeSlot {
	breakAfter := make(map[int]BreakConfig, len(breaks))
	for _, br := range breaks {
		breakAfter[br.AfterBlock] = br
	}

	var slots []TimeSlot
	cursor := start
	number := 0
	for cursor.Add(blockDuration) <= end {
		number++
		slots = append(slots, TimeSlot{
			Kind:            SlotBlock,
			Start:           cursor,
			End:             cursor.Add(blockDuration),
			DurationMinutes: blockDuration,
			BlockNumber:     number,
		})
		cursor = cursor.Add(blockDuration)

		br, ok := breakAfter[number]
		if !ok || cursor.Add(br.Duration) > end {
			continue
		}
		slots = append(slots, TimeSlot{
			Kind:            SlotBreak,
			Start:           cursor,
			End:             cursor.Add(br.Duration),
			DurationMinutes: br.Duration,
			BreakName:       br.Name,
		})
		cursor = cursor.Add(br.Duration)
	}
	return slots
}
