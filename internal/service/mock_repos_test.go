package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lesson-scheduler-api/internal/models"
	"github.com/noah-isme/lesson-scheduler-api/internal/repository"
	appErrors "github.com/noah-isme/lesson-scheduler-api/pkg/errors"
)

// memoryStore backs every lesson store interface. Transactions run
// concurrently; only LockSchedule serialises them, through per-key mutexes
// held until commit or rollback. Rollback replays the transaction's undo log.
type memoryStore struct {
	mu sync.Mutex

	lessons     map[string]models.Lesson
	history     []models.LessonHistory
	enrollments map[string]bool
	keyLocks    map[string]*sync.Mutex

	seq        int
	historySeq int
	calls      []string
	lockErr    error
	beginErr   error
	historyErr error

	// skipLocks turns LockSchedule into a no-op.
	skipLocks bool
	// afterConflictQuery runs between the overlap read and the caller's write.
	afterConflictQuery func()
}

type memoryTx struct {
	sqlx.ExtContext
	store *memoryStore
	once  sync.Once

	held map[string]*sync.Mutex
	undo []func()
}

func (t *memoryTx) Commit() error {
	t.once.Do(func() { t.store.finish(t, true) })
	return nil
}

func (t *memoryTx) Rollback() error {
	t.once.Do(func() { t.store.finish(t, false) })
	return nil
}

// onRollback registers an undo step; callers hold store.mu.
func onRollback(q sqlx.ExtContext, fn func()) {
	if tx, ok := q.(*memoryTx); ok {
		tx.undo = append(tx.undo, fn)
	}
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		lessons:     map[string]models.Lesson{},
		enrollments: map[string]bool{},
		keyLocks:    map[string]*sync.Mutex{},
	}
}

func enrollmentKey(studentID, subjectID, teacherID string) string {
	return studentID + "|" + subjectID + "|" + teacherID
}

func (m *memoryStore) enroll(studentID, subjectID, teacherID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrollments[enrollmentKey(studentID, subjectID, teacherID)] = true
}

func (m *memoryStore) put(lesson models.Lesson) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lessons[lesson.ID] = lesson
}

func (m *memoryStore) lesson(id string) (models.Lesson, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lessons[id]
	return l, ok
}

func (m *memoryStore) historyFor(lessonID string) []models.LessonHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LessonHistory
	for _, h := range m.history {
		if h.LessonID == lessonID {
			out = append(out, h)
		}
	}
	return out
}

func (m *memoryStore) activeLessons() []models.Lesson {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Lesson
	for _, l := range m.lessons {
		if l.Status != models.LessonStatusCancelled {
			out = append(out, l)
		}
	}
	return out
}

func (m *memoryStore) called(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c == name {
			count++
		}
	}
	return count
}

func (m *memoryStore) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *memoryStore) track(name string) {
	m.calls = append(m.calls, name)
}

func (m *memoryStore) BeginLessonTx(ctx context.Context) (repository.Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	m.track("begin")
	return &memoryTx{store: m, held: map[string]*sync.Mutex{}}, nil
}

func (m *memoryStore) finish(tx *memoryTx, commit bool) {
	m.mu.Lock()
	if commit {
		m.track("commit")
	} else {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		m.track("rollback")
	}
	tx.undo = nil
	m.mu.Unlock()

	for key, lock := range tx.held {
		lock.Unlock()
		delete(tx.held, key)
	}
}

func (m *memoryStore) LockSchedule(ctx context.Context, q sqlx.ExtContext, teacherID, studentID string, date models.Date) error {
	m.mu.Lock()
	m.track("lock")
	if m.lockErr != nil || m.skipLocks {
		err := m.lockErr
		m.mu.Unlock()
		return err
	}
	tx, ok := q.(*memoryTx)
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("lock schedule outside a transaction")
	}
	keys := repository.ScheduleLockKeys(teacherID, studentID, date)
	locks := make([]*sync.Mutex, len(keys))
	for i, key := range keys {
		lock, exists := m.keyLocks[key]
		if !exists {
			lock = &sync.Mutex{}
			m.keyLocks[key] = lock
		}
		locks[i] = lock
	}
	m.mu.Unlock()

	// keys arrive sorted, so concurrent transactions acquire in the same order
	for i, key := range keys {
		if _, held := tx.held[key]; held {
			continue
		}
		locks[i].Lock()
		tx.held[key] = locks[i]
	}
	return nil
}

func (m *memoryStore) GetByID(ctx context.Context, q sqlx.ExtContext, id string) (*models.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lessons[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &l, nil
}

func (m *memoryStore) GetByIDForUpdate(ctx context.Context, q sqlx.ExtContext, id string) (*models.Lesson, error) {
	return m.GetByID(ctx, q, id)
}

func (m *memoryStore) Insert(ctx context.Context, q sqlx.ExtContext, lesson *models.Lesson) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if lesson.ID == "" {
		lesson.ID = fmt.Sprintf("lesson-%d", m.seq)
	}
	now := time.Now().UTC()
	lesson.CreatedAt = now
	lesson.UpdatedAt = now
	m.lessons[lesson.ID] = *lesson
	id := lesson.ID
	onRollback(q, func() { delete(m.lessons, id) })
	m.track("insert")
	return nil
}

func (m *memoryStore) Update(ctx context.Context, q sqlx.ExtContext, lesson *models.Lesson) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	previous, ok := m.lessons[lesson.ID]
	if !ok {
		return fmt.Errorf("update lesson %s: no rows affected", lesson.ID)
	}
	lesson.UpdatedAt = time.Now().UTC()
	m.lessons[lesson.ID] = *lesson
	onRollback(q, func() { m.lessons[previous.ID] = previous })
	m.track("update")
	return nil
}

func (m *memoryStore) QueryByTeacherOrStudentAndDate(ctx context.Context, q sqlx.ExtContext, teacherID, studentID string, date models.Date, excludeID string) ([]models.Lesson, error) {
	m.mu.Lock()
	m.track("conflict_query")
	var out []models.Lesson
	for _, l := range m.lessons {
		if l.Date != date || l.Status == models.LessonStatusCancelled || l.ID == excludeID {
			continue
		}
		if l.TeacherID == teacherID || l.StudentID == studentID {
			out = append(out, l)
		}
	}
	hook := m.afterConflictQuery
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	// give racing goroutines a chance to interleave between read and write
	runtime.Gosched()
	return out, nil
}

func (m *memoryStore) HasActiveEnrollment(ctx context.Context, q sqlx.ExtContext, studentID, subjectID, teacherID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("enrollment")
	return m.enrollments[enrollmentKey(studentID, subjectID, teacherID)], nil
}

func (m *memoryStore) filtered(filter models.LessonFilter) []models.Lesson {
	var out []models.Lesson
	for _, l := range m.lessons {
		if filter.TeacherID != "" && l.TeacherID != filter.TeacherID {
			continue
		}
		if filter.StudentID != "" && l.StudentID != filter.StudentID {
			continue
		}
		if filter.StudentIDs != nil && !contains(filter.StudentIDs, l.StudentID) {
			continue
		}
		if filter.SubjectID != "" && l.SubjectID != filter.SubjectID {
			continue
		}
		if filter.DateFrom != nil && l.Date.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && filter.DateTo.Before(l.Date) {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *memoryStore) QueryFiltered(ctx context.Context, q sqlx.ExtContext, filter models.LessonFilter) ([]models.Lesson, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("query_filtered")
	all := m.filtered(filter)
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	start := (page - 1) * size
	if start >= len(all) {
		return []models.Lesson{}, len(all), nil
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (m *memoryStore) CountByStatus(ctx context.Context, q sqlx.ExtContext, filter models.LessonFilter) ([]models.LessonStatusCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("count_by_status")
	counts := map[models.LessonStatus]int{}
	for _, l := range m.filtered(filter) {
		counts[l.Status]++
	}
	var out []models.LessonStatusCount
	for status, count := range counts {
		out = append(out, models.LessonStatusCount{Status: status, Count: count})
	}
	return out, nil
}

func (m *memoryStore) Append(ctx context.Context, q sqlx.ExtContext, entry *models.LessonHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.historyErr != nil {
		return m.historyErr
	}
	m.historySeq++
	entry.ID = fmt.Sprintf("history-%d", m.historySeq)
	m.history = append(m.history, *entry)
	id := entry.ID
	onRollback(q, func() {
		for i, h := range m.history {
			if h.ID == id {
				m.history = append(m.history[:i], m.history[i+1:]...)
				return
			}
		}
	})
	m.track("history")
	return nil
}

func (m *memoryStore) ListByLesson(ctx context.Context, lessonID string) ([]models.LessonHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LessonHistory
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].LessonID == lessonID {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.LessonEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event models.LessonEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) published() []models.LessonEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.LessonEvent(nil), p.events...)
}

type recordingInvalidator struct {
	mu       sync.Mutex
	patterns []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, pattern string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
	return nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	gets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *memoryCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
