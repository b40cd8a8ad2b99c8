package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalOverlapsHalfOpen(t *testing.T) {
	base := Interval{Start: NewTimeOfDay(10, 0), End: NewTimeOfDay(11, 0)}

	cases := []struct {
		name  string
		other Interval
		want  bool
	}{
		{"identical", base, true},
		{"partial start", Interval{Start: NewTimeOfDay(9, 30), End: NewTimeOfDay(10, 30)}, true},
		{"partial end", Interval{Start: NewTimeOfDay(10, 30), End: NewTimeOfDay(11, 30)}, true},
		{"contained", Interval{Start: NewTimeOfDay(10, 15), End: NewTimeOfDay(10, 45)}, true},
		{"containing", Interval{Start: NewTimeOfDay(9, 0), End: NewTimeOfDay(12, 0)}, true},
		{"back to back after", Interval{Start: NewTimeOfDay(11, 0), End: NewTimeOfDay(12, 0)}, false},
		{"back to back before", Interval{Start: NewTimeOfDay(9, 0), End: NewTimeOfDay(10, 0)}, false},
		{"disjoint", Interval{Start: NewTimeOfDay(14, 0), End: NewTimeOfDay(15, 0)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, base.Overlaps(tc.other))
			assert.Equal(t, tc.want, tc.other.Overlaps(base))
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:45")
	require.NoError(t, err)
	assert.Equal(t, 9, tod.Hour())
	assert.Equal(t, 45, tod.Minute())

	tod, err = ParseTimeOfDay("17:30:00")
	require.NoError(t, err)
	assert.Equal(t, "17:30", tod.String())

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)
}

func TestTimeOfDayScan(t *testing.T) {
	var tod TimeOfDay
	require.NoError(t, tod.Scan([]byte("08:15:00")))
	assert.Equal(t, NewTimeOfDay(8, 15), tod)

	require.NoError(t, tod.Scan(time.Date(0, 1, 1, 13, 5, 0, 0, time.UTC)))
	assert.Equal(t, NewTimeOfDay(13, 5), tod)

	assert.Error(t, tod.Scan(42))
}

func TestDateScanAndCompare(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2099, 1, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2099-01-10", d.String())

	require.NoError(t, d.Scan("2099-01-11T00:00:00Z"))
	assert.Equal(t, Date{Year: 2099, Month: time.January, Day: 11}, d)

	earlier, err := ParseDate("2098-12-31")
	require.NoError(t, err)
	assert.True(t, earlier.Before(d))
	assert.False(t, d.Before(earlier))
	assert.False(t, d.Before(d))
}

func TestDateAtUsesLocation(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)
	d := Date{Year: 2099, Month: time.January, Day: 10}
	at := d.At(NewTimeOfDay(10, 0), loc)
	assert.Equal(t, time.Date(2099, 1, 10, 7, 0, 0, 0, time.UTC), at.UTC())
}

func TestLessonJSONShape(t *testing.T) {
	lesson := Lesson{
		ID:        "l-1",
		Date:      Date{Year: 2099, Month: time.January, Day: 10},
		StartTime: NewTimeOfDay(10, 0),
		EndTime:   NewTimeOfDay(11, 0),
		Status:    LessonStatusPending,
	}
	raw, err := json.Marshal(lesson)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "2099-01-10", decoded["date"])
	assert.Equal(t, "10:00", decoded["start_time"])
	assert.Equal(t, "11:00", decoded["end_time"])
	assert.NotContains(t, decoded, "description")
}

func TestLessonConflictErrorNamesWindow(t *testing.T) {
	err := NewLessonConflictError(LessonConflict{
		Date:      Date{Year: 2099, Month: time.January, Day: 10},
		StartTime: NewTimeOfDay(10, 0),
		EndTime:   NewTimeOfDay(11, 0),
		Dimension: ConflictDimensionStudent,
	})
	assert.Equal(t, "student already has a lesson on 2099-01-10 from 10:00 to 11:00", err.Error())
}

func TestActorVariants(t *testing.T) {
	tutor := TutorActor{ID: "tutor", ManagedStudentIDs: []string{"s1", "s2"}}
	assert.True(t, tutor.Manages("s2"))
	assert.False(t, tutor.Manages("s3"))
	assert.Equal(t, RoleTutor, tutor.ActorRole())

	assert.Equal(t, RoleAdmin, AdminActor{ID: "a"}.ActorRole())
	assert.Equal(t, RoleSuperAdmin, AdminActor{ID: "a", Role: RoleSuperAdmin}.ActorRole())
}
