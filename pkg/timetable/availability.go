package timetable

import "context"

// AvailabilityChecker is the authoritative answer to "may this teacher take this slot".
// Implementations may perform I/O; the generator calls them at most once per distinct slot per run.
type AvailabilityChecker interface {
	Check(ctx context.Context, teacherID string, day Weekday, start, end Clock) (bool, error)
}

// CheckerFunc adapts a function to AvailabilityChecker.
type CheckerFunc func(ctx context.Context, teacherID string, day Weekday, start, end Clock) (bool, error)

// Check implements AvailabilityChecker.
func (f CheckerFunc) Check(ctx context.Context, teacherID string, day Weekday, start, end Clock) (bool, error) {
	return f(ctx, teacherID, day, start, end)
}

// SnapshotChecker answers from the availability carried on teacher snapshots.
type SnapshotChecker struct {
	availability map[string][]TeacherAvailability
}

// NewSnapshotChecker indexes the teachers' availability by id.
func NewSnapshotChecker(teachers []Teacher) *SnapshotChecker {
	index := make(map[string][]TeacherAvailability, len(teachers))
	for _, t := range teachers {
		index[t.ID] = t.Availability
	}
	return &SnapshotChecker{availability: index}
}

// Check implements AvailabilityChecker. Unknown teachers are never available.
func (s *SnapshotChecker) Check(_ context.Context, teacherID string, day Weekday, start, end Clock) (bool, error) {
	availability, ok := s.availability[teacherID]
	if !ok {
		return false, nil
	}
	return availableDuring(availability, day, Interval{Start: start, End: end}), nil
}

type validationKey struct {
	teacherID string
	day       Weekday
	start     Clock
	end       Clock
}

// AvailabilityValidator memoizes an AvailabilityChecker for the lifetime of one generation run.
// It is not safe for concurrent use.
type AvailabilityValidator struct {
	checker  AvailabilityChecker
	cache    map[validationKey]bool
	failures map[string]error
	order    []string
	hits     int
	misses   int
}

// NewAvailabilityValidator wraps checker with an empty cache.
func NewAvailabilityValidator(checker AvailabilityChecker) *AvailabilityValidator {
	return &AvailabilityValidator{
		checker:  checker,
		cache:    make(map[validationKey]bool),
		failures: make(map[string]error),
	}
}

// IsValid returns the cached verdict for the tuple, consulting the checker on first use.
// A checker error counts as invalid and is remembered per teacher.
func (v *AvailabilityValidator) IsValid(ctx context.Context, teacherID string, day Weekday, start, end Clock) bool {
	key := validationKey{teacherID: teacherID, day: day, start: start, end: end}
	if valid, ok := v.cache[key]; ok {
		v.hits++
		return valid
	}
	v.misses++

	valid, err := v.checker.Check(ctx, teacherID, day, start, end)
	if err != nil {
		if _, seen := v.failures[teacherID]; !seen {
			v.failures[teacherID] = err
			v.order = append(v.order, teacherID)
		}
		valid = false
	}
	v.cache[key] = valid
	return valid
}

// Hits is the number of lookups answered from the cache.
func (v *AvailabilityValidator) Hits() int { return v.hits }

// Misses is the number of authoritative checks performed.
func (v *AvailabilityValidator) Misses() int { return v.misses }

// Failures returns the first checker error per teacher, in the order they occurred.
func (v *AvailabilityValidator) Failures() ([]string, map[string]error) {
	return v.order, v.failures
}
