package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clockRange(start, end string) (Clock, Clock) {
	return MustParseClock(start), MustParseClock(end)
}

func block(id, course, teacher string, day Weekday, start, end string) Block {
	s, e := clockRange(start, end)
	return Block{ID: id, CourseID: course, TeacherID: teacher, Day: day, Start: s, End: e, SubjectID: "math"}
}

func TestOverlapsHalfOpenAndSymmetric(t *testing.T) {
	cases := []struct {
		a, b [2]string
		want bool
	}{
		{[2]string{"08:00", "09:00"}, [2]string{"08:30", "09:30"}, true},
		{[2]string{"08:00", "09:00"}, [2]string{"09:00", "10:00"}, false},
		{[2]string{"08:00", "12:00"}, [2]string{"09:00", "10:00"}, true},
		{[2]string{"08:00", "09:00"}, [2]string{"10:00", "11:00"}, false},
		{[2]string{"08:00", "09:00"}, [2]string{"08:00", "09:00"}, true},
	}
	for _, tc := range cases {
		as, ae := clockRange(tc.a[0], tc.a[1])
		bs, be := clockRange(tc.b[0], tc.b[1])
		assert.Equal(t, tc.want, Overlaps(as, ae, bs, be), "%v vs %v", tc.a, tc.b)
		assert.Equal(t, Overlaps(as, ae, bs, be), Overlaps(bs, be, as, ae), "symmetry %v vs %v", tc.a, tc.b)
	}
}

func TestTeacherDoubleBooked(t *testing.T) {
	candidate := block("new", "course-a", "teacher-1", Monday, "09:00", "10:00")
	all := []Block{
		candidate,
		block("b1", "course-b", "teacher-1", Monday, "09:30", "10:30"),
		block("b2", "course-c", "teacher-1", Monday, "10:00", "11:00"),
		block("b3", "course-d", "teacher-1", Tuesday, "09:00", "10:00"),
		block("b4", "course-e", "teacher-2", Monday, "09:00", "10:00"),
	}
	assert.Equal(t, []string{"b1"}, TeacherDoubleBooked(candidate, all))
}

func TestClassroomConflictOnlyWhenClassroomSet(t *testing.T) {
	candidate := block("new", "course-a", "teacher-1", Monday, "09:00", "10:00")
	other := block("b1", "course-b", "teacher-2", Monday, "09:00", "10:00")
	other.Classroom = "101"

	assert.Empty(t, ClassroomConflict(candidate, []Block{other}))

	candidate.Classroom = "101"
	assert.Equal(t, []string{"b1"}, ClassroomConflict(candidate, []Block{other}))

	candidate.Classroom = "102"
	assert.Empty(t, ClassroomConflict(candidate, []Block{other}))
}

func TestTeacherUnavailableTouchingWindow(t *testing.T) {
	availability := []TeacherAvailability{{
		Day:       Monday,
		TimeSlots: []Interval{{Start: MustParseClock("09:00"), End: MustParseClock("10:00")}},
	}}

	assert.True(t, TeacherUnavailable(block("c", "course", "t", Monday, "10:00", "11:00"), availability))
	assert.False(t, TeacherUnavailable(block("c", "course", "t", Monday, "09:30", "10:30"), availability))
	assert.True(t, TeacherUnavailable(block("c", "course", "t", Tuesday, "09:00", "10:00"), availability))
	assert.True(t, TeacherUnavailable(block("c", "course", "t", Monday, "09:00", "10:00"), nil))
}

func TestDetectConflictsSeverities(t *testing.T) {
	candidate := block("new", "course-a", "teacher-1", Monday, "09:00", "10:00")
	candidate.Classroom = "lab"
	busy := block("b1", "course-b", "teacher-1", Monday, "09:00", "10:00")
	busy.Classroom = "lab"
	teacher := &Teacher{ID: "teacher-1", Availability: []TeacherAvailability{{
		Day:       Tuesday,
		TimeSlots: []Interval{{Start: MustParseClock("08:00"), End: MustParseClock("12:00")}},
	}}}

	conflicts := DetectConflicts(candidate, []Block{busy}, teacher)
	require.Len(t, conflicts, 3)

	byKind := make(map[ConflictKind]Conflict)
	for _, c := range conflicts {
		assert.Equal(t, "new", c.BlockID)
		byKind[c.Kind] = c
	}
	assert.Equal(t, SeverityError, byKind[ConflictTeacherDoubleBooking].Severity)
	assert.Equal(t, []string{"b1"}, byKind[ConflictTeacherDoubleBooking].AffectedBlockIDs)
	assert.Equal(t, SeverityWarning, byKind[ConflictTeacherUnavailable].Severity)
	assert.Equal(t, SeverityError, byKind[ConflictClassroom].Severity)
}

func TestDetectConflictsCleanBlock(t *testing.T) {
	candidate := block("new", "course-a", "teacher-1", Monday, "09:00", "10:00")
	teacher := &Teacher{ID: "teacher-1", Availability: []TeacherAvailability{{
		Day:       Monday,
		TimeSlots: []Interval{{Start: MustParseClock("08:00"), End: MustParseClock("12:00")}},
	}}}
	existing := []Block{candidate, block("b1", "course-b", "teacher-1", Monday, "10:00", "11:00")}

	conflicts := DetectConflicts(candidate, existing, teacher)
	assert.Empty(t, conflicts)
	assert.NotNil(t, conflicts)
}

func TestProjectionsCarryCounterpart(t *testing.T) {
	blocks := []Block{block("b1", "course-a", "teacher-1", Monday, "08:00", "08:45")}

	courseView := ProjectForCourse(blocks)
	require.Len(t, courseView, 1)
	assert.Equal(t, ForCourse{TeacherID: "teacher-1"}, courseView[0].Role)

	teacherView := ProjectForTeacher(blocks)
	require.Len(t, teacherView, 1)
	assert.Equal(t, ForTeacher{CourseID: "course-a"}, teacherView[0].Role)

	payload, err := teacherView[0].MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"b1","day":"MONDAY","startTime":"08:00","endTime":"08:45","subjectId":"math","color":"","mode":"teacher","courseId":"course-a"}`, string(payload))
}
