package timetable

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd Clock) bool {
	return aStart < bEnd && bStart < aEnd
}

// TeacherDoubleBooked returns the ids of other blocks that put the candidate's teacher in two places at once.
func TeacherDoubleBooked(candidate Block, all []Block) []string {
	if candidate.TeacherID == "" {
		return nil
	}
	return clashing(candidate, all, func(b Block) bool { return b.TeacherID == candidate.TeacherID })
}

// ClassroomConflict returns the ids of other blocks occupying the candidate's classroom at the same time.
// Blocks without a classroom never conflict.
func ClassroomConflict(candidate Block, all []Block) []string {
	if candidate.Classroom == "" {
		return nil
	}
	return clashing(candidate, all, func(b Block) bool { return b.Classroom == candidate.Classroom })
}

// CourseOverlap returns the ids of other blocks of the same course running at the same time.
func CourseOverlap(candidate Block, all []Block) []string {
	return clashing(candidate, all, func(b Block) bool { return b.CourseID == candidate.CourseID })
}

// TeacherUnavailable reports whether none of the teacher's intervals for the candidate's day overlap it.
func TeacherUnavailable(candidate Block, availability []TeacherAvailability) bool {
	return !availableDuring(availability, candidate.Day, candidate.Interval())
}

// DetectConflicts runs every detector for the candidate. teacher may be nil when the availability
// snapshot is unknown, in which case the availability check is skipped.
func DetectConflicts(candidate Block, all []Block, teacher *Teacher) []Conflict {
	conflicts := make([]Conflict, 0)

	if ids := TeacherDoubleBooked(candidate, all); len(ids) > 0 {
		conflicts = append(conflicts, Conflict{
			Kind:             ConflictTeacherDoubleBooking,
			Message:          "teacher is already assigned to another block at this time",
			BlockID:          candidate.ID,
			AffectedBlockIDs: ids,
			Severity:         SeverityError,
		})
	}

	if teacher != nil && TeacherUnavailable(candidate, teacher.Availability) {
		conflicts = append(conflicts, Conflict{
			Kind:     ConflictTeacherUnavailable,
			Message:  "teacher is not available at this time",
			BlockID:  candidate.ID,
			Severity: SeverityWarning,
		})
	}

	if ids := ClassroomConflict(candidate, all); len(ids) > 0 {
		conflicts = append(conflicts, Conflict{
			Kind:             ConflictClassroom,
			Message:          "classroom is already occupied at this time",
			BlockID:          candidate.ID,
			AffectedBlockIDs: ids,
			Severity:         SeverityError,
		})
	}

	return conflicts
}

func clashing(candidate Block, all []Block, sameResource func(Block) bool) []string {
	var ids []string
	for _, b := range all {
		if b.ID == candidate.ID || b.Day != candidate.Day || !sameResource(b) {
			continue
		}
		if Overlaps(b.Start, b.End, candidate.Start, candidate.End) {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

func availableDuring(availability []TeacherAvailability, day Weekday, slot Interval) bool {
	for _, av := range availability {
		if av.Day != day {
			continue
		}
		for _, window := range av.TimeSlots {
			if Overlaps(window.Start, window.End, slot.Start, slot.End) {
				return true
			}
		}
	}
	return false
}
