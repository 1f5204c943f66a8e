package service

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"imhere/backend/internal/model"
	"imhere/backend/internal/repository"
	pkgerrors "imhere/backend/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// memStore 内存版存储，各 mock Repository 共享同一份数据
// ═══════════════════════════════════════════════════════════

type memStore struct {
	nextID      uint
	users       map[uint]*model.User
	courses     map[uint]*model.Course
	teachings   []model.Teaching
	enrollments []model.Enrollment
	tas         []model.TAAssignment
	sessions    map[uint]*model.Session
	records     []model.AttendanceRecord

	// fail 非 nil 时所有读写都返回该错误，用于模拟存储故障
	fail error
	// locked 记录 GetByIDForUpdate 被调用的课程
	locked []uint
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[uint]*model.User),
		courses:  make(map[uint]*model.Course),
		sessions: make(map[uint]*model.Session),
	}
}

func (m *memStore) id() uint {
	m.nextID++
	return m.nextID
}

func (m *memStore) repository() *repository.Repository {
	return &repository.Repository{
		User:             &mockUserRepo{m},
		Course:           &mockCourseRepo{m},
		Teaching:         &mockTeachingRepo{m},
		Enrollment:       &mockEnrollmentRepo{m},
		TAAssignment:     &mockTAAssignmentRepo{m},
		Session:          &mockSessionRepo{m},
		AttendanceRecord: &mockRecordRepo{m},
	}
}

// ── 测试数据构造 ──

func (m *memStore) addUser(email string, uni string, teacher bool) *model.User {
	u := &model.User{UserID: m.id(), Email: email, DisplayName: email, Teacher: teacher}
	u.Version = 1
	if uni != "" {
		v := uni
		u.UNI = &v
	}
	m.users[u.UserID] = u
	return u
}

func (m *memStore) addCourse(name string) *model.Course {
	c := &model.Course{CourseID: m.id(), Name: name}
	m.courses[c.CourseID] = c
	return c
}

func (m *memStore) addSession(courseID uint, openedAt time.Time, closedAt *time.Time, secret int) *model.Session {
	s := &model.Session{SessionID: m.id(), CourseID: courseID, OpenedAt: openedAt, ClosedAt: closedAt, Secret: secret}
	m.sessions[s.SessionID] = s
	return s
}

func (m *memStore) enroll(courseID, userID uint) {
	m.enrollments = append(m.enrollments, model.Enrollment{EnrollmentID: m.id(), CourseID: courseID, StudentID: userID})
}

func (m *memStore) assignTA(courseID, userID uint) {
	m.tas = append(m.tas, model.TAAssignment{TAAssignmentID: m.id(), CourseID: courseID, TAID: userID})
}

func (m *memStore) addRecord(sessionID, courseID, userID uint) {
	m.records = append(m.records, model.AttendanceRecord{RecordID: m.id(), SessionID: sessionID, CourseID: courseID, UserID: userID})
}

func (m *memStore) countRecords(courseID, userID uint) int {
	n := 0
	for _, r := range m.records {
		if r.CourseID == courseID && r.UserID == userID {
			n++
		}
	}
	return n
}

// ── Mock UserRepository ──

type mockUserRepo struct{ m *memStore }

func (r *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if r.m.fail != nil {
		return r.m.fail
	}
	for _, u := range r.m.users {
		if u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	user.UserID = r.m.id()
	user.Version = 1
	cp := *user
	r.m.users[user.UserID] = &cp
	return nil
}

func (r *mockUserRepo) GetByID(_ context.Context, id uint) (*model.User, error) {
	if r.m.fail != nil {
		return nil, r.m.fail
	}
	if u, ok := r.m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockUserRepo) GetByUNI(_ context.Context, uni string) (*model.User, error) {
	if r.m.fail != nil {
		return nil, r.m.fail
	}
	for _, u := range r.m.users {
		if u.UNI != nil && *u.UNI == uni {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if r.m.fail != nil {
		return nil, r.m.fail
	}
	for _, u := range r.m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockUserRepo) ListByIDs(_ context.Context, ids []uint) ([]model.User, error) {
	if r.m.fail != nil {
		return nil, r.m.fail
	}
	var result []model.User
	for _, id := range ids {
		if u, ok := r.m.users[id]; ok {
			result = append(result, *u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

func (r *mockUserRepo) Update(_ context.Context, user *model.User) error {
	if r.m.fail != nil {
		return r.m.fail
	}
	stored, ok := r.m.users[user.UserID]
	if !ok || stored.Version != user.Version {
		return pkgerrors.ErrOptimisticLock
	}
	if user.UNI != nil {
		for _, u := range r.m.users {
			if u.UserID != user.UserID && u.UNI != nil && *u.UNI == *user.UNI {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	user.Version++
	cp := *user
	r.m.users[user.UserID] = &cp
	return nil
}

// ── Mock CourseRepository ──

type mockCourseRepo struct{ m *memStore }

func (r *mockCourseRepo) Create(_ context.Context, course *model.Course) error {
	if r.m.fail != nil {
		return r.m.fail
	}
	course.CourseID = r.m.id()
	cp := *course
	r.m.courses[course.CourseID] = &cp
	return nil
}

func (r *mockCourseRepo) GetByID(_ context.Context, id uint) (*model.Course, error) {
	if r.m.fail != nil {
		return nil, r.m.fail
	}
	if c, ok := r.m.courses[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockCourseRepo) GetByIDForUpdate(ctx context.Context, id uint) (*model.Course, error) {
	r.m.locked = append(r.m.locked, id)
	return r.GetByID(ctx, id)
}

func (r *mockCourseRepo) ListByIDs(_ context.Context, ids []uint) ([]model.Course, error) {
	if r.m.fail != nil {
		return nil, r.m.fail
	}
	var result []model.Course
	for _, id := range ids {
		if c, ok := r.m.courses[id]; ok {
			result = append(result, *c)
		}
	}
	return result, nil
}

func (r *mockCourseRepo) Delete(_ context.Context, id uint) error {
	if r.m.fail != nil {
		return r.m.fail
	}
	delete(r.m.courses, id)
	return nil
}

// ── Mock TeachingRepository ──

type mockTeachingRepo struct{ m *memStore }

func (r *mockTeachingRepo) Create(_ context.Context, t *model.Teaching) error {
	if r.m.fail != nil {
		return r.m.fail
	}
	for _, e := range r.m.teachings {
		if e.CourseID == t.CourseID && e.TeacherID == t.TeacherID {
			return gorm.ErrDuplicatedKey
		}
	}
	t.TeachingID = r.m.id()
	r.m.teachings = append(r.m.teachings, *t)
	return nil
}

func (r *mockTeachingRepo) Exists(_ context.Context, courseID, teacherID uint) (bool, error) {
	if r.m.fail != nil {
		return false, r.m.fail
	}
	for _, e := range r.m.teachings {
		if e.CourseID == courseID && e.TeacherID == teacherID {
			return true, nil
		}
	}
	return false, nil
}

func (r *mockTeachingRepo) ListCourseIDsByTeacher(_ context.Context, teacherID uint) ([]uint, error) {
	if r.m.fail != nil {
		return nil, r.m.fail
	}
	var ids []uint
	for _, e := range r.m.teachings {
		if e.TeacherID == teacherID {
			ids = append(ids, e.CourseID)
		}
	}
	return ids, nil
}

func (r *mockTeachingRepo) DeleteByCourse(_ context.Context, courseID uint) error {
	if r.m.fail != nil {
		return r.m.fail
	}
	kept := r.m.teachings[:0]
	for _, e := range r.m.teachings {
		if e.CourseID != courseID {
			kept = append(kept, e)
		}
	}
	r.m.teachings = kept
	return nil
}

// ── Mock EnrollmentRepository ──

type mockEnrollmentRepo struct{ m *memStore }

func (r *mockEnrollmentRepo) Create(_ context.Context, e *model.Enrollment) error {
	if r.m.fail != nil {
		return r.m.fail
	}
	for _, x := range r.m.enrollments {
		if x.CourseID == e.CourseID && x.StudentID == e.StudentID {
			return gorm.ErrDuplicatedKey
		}
	}
	e.EnrollmentID = r.m.id()
	r.m.enrollments = append(r.m.enrollments, *e)
	return nil
}

func (r *mockEnrollmentRepo) Exists(_ context.Context, courseID, studentID uint) (bool, error) {
	if r.m.fail != nil {
		return false, r.m.fail
	}
	for _, x := range r.m.enrollments {
		if x.CourseID == courseID && x.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (r *mockEnrollmentRepo) Delete(_ context.Context, courseID, studentID uint) error {
	if r.m.fail != nil {
		return r.m.fail
	}
	kept := r.m.enrollments[:0]
	for _, x := range r.m.enrollments {
		if !(x.CourseID == courseID && x.StudentID == studentID) {
			kept = append(kept, x)
		}
	}
	r.m.enrollments = kept
	return nil
}

func (r *mockEnrollmentRepo) ListStudentIDs(_ context.Context, courseID uint) ([]uint, error) {
	if r.m.fail != nil {
		return nil, r.m.fail
	}
	var ids []uint
	for _, x := range r.m.enrollments {
		if x.CourseID == courseID {
			ids = append(ids, x.StudentID)
		}
	}
	return ids, nil
}

func (r *mockEnrollmentRepo) ListCourseIDsByStudent(_ context.Context, studentID uint) ([]uint, error) {
	if r.m.fail != nil {
		return nil, r.m.fail
	}
	var ids []uint
	for _, x := range r.m.enrollments {
		if x.StudentID == studentID {
			ids = append(ids, x.CourseID)
		}
	}
	return ids, nil
}

func (r *mockEnrollmentRepo) CountByCourse(ctx context.Context, courseID uint) (int64, error) {
	ids, err := r.ListStudentIDs(ctx, courseID)
	return int64(len(ids)), err
}

func (r *mockEnrollmentRepo) DeleteByCourse(_ context.Context, courseID uint) error {
	if r.m.fail != nil {
		return r.m.fail
	}
	kept := r.m.enrollments[:0]
	for _, x := range r.m.enrollments {
		if x.CourseID != courseID {
			kept = append(kept, x)
		}
	}
	r.m.enrollments = kept
	return nil
}

// ── Mock TAAssignmentRepository ──

type mockTAAssignmentRepo struct{ m *memStore }

func (r *mockTAAssignmentRepo) Create(_ context.Context, a *model.TAAssignment) error {
	if r.m.fail != nil {
		return r.m.fail
	}
	for _, x := range r.m.tas {
		if x.CourseID == a.CourseID && x.TAID == a.TAID {
			return gorm.ErrDuplicatedKey
		}
	}
	a.TAAssignmentID = r.m.id()
	r.m.tas = append(r.m.tas, *a)
	return nil
}

func (r *mockTAAssignmentRepo) Exists(_ context.Context, courseID, taID uint) (bool, error) {
	if r.m.fail != nil {
		return false, r.m.fail
	}
	for _, x := range r.m.tas {
		if x.CourseID == courseID && x.TAID == taID {
			return true, nil
		}
	}
	return false, nil
}

func (r *mockTAAssignmentRepo) Delete(_ context.Context, courseID, taID uint) error {
	if r.m.fail != nil {
		return r.m.fail
	}
	kept := r.m.tas[:0]
	for _, x := range r.m.tas {
		if !(x.CourseID == courseID && x.TAID == taID) {
			kept = append(kept, x)
		}
	}
	r.m.tas = kept
	return nil
}

func (r *mockTAAssignmentRepo) ListTAIDs(_ context.Context, courseID uint) ([]uint, error) {
	if r.m.fail != nil {
		return nil, r.m.fail
	}
	var ids []uint
	for _, x := range r.m.tas {
		if x.CourseID == courseID {
			ids = append(ids, x.TAID)
		}
	}
	return ids, nil
}

func (r *mockTAAssignmentRepo) ListCourseIDsByTA(_ context.Context, taID uint) ([]uint, error) {
	if r.m.fail != nil {
		return nil, r.m.fail
	}
	var ids []uint
	for _, x := range r.m.tas {
		if x.TAID == taID {
			ids = append(ids, x.CourseID)
		}
	}
	return ids, nil
}

func (r *mockTAAssignmentRepo) CountByCourse(ctx context.Context, courseID uint) (int64, error) {
	ids, err := r.ListTAIDs(ctx, courseID)
	return int64(len(ids)), err
}

func (r *mockTAAssignmentRepo) DeleteByCourse(_ context.Context, courseID uint) error {
	if r.m.fail != nil {
		return r.m.fail
	}
	kept := r.m.tas[:0]
	for _, x := range r.m.tas {
		if x.CourseID != courseID {
			kept = append(kept, x)
		}
	}
	r.m.tas = kept
	return nil
}

// ── Mock SessionRepository ──

type mockSessionRepo struct{ m *memStore }

func (r *mockSessionRepo) Create(_ context.Context, s *model.Session) error {
	if r.m.fail != nil {
		return r.m.fail
	}
	s.SessionID = r.m.id()
	cp := *s
	r.m.sessions[s.SessionID] = &cp
	return nil
}

func (r *mockSessionRepo) GetByID(_ context.Context, id uint) (*model.Session, error) {
	if r.m.fail != nil {
		return nil, r.m.fail
	}
	if s, ok := r.m.sessions[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockSessionRepo) GetOpen(_ context.Context, courseID uint) (*model.Session, error) {
	if r.m.fail != nil {
		return nil, r.m.fail
	}
	for _, s := range r.m.sessions {
		if s.CourseID == courseID && s.ClosedAt == nil {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockSessionRepo) Close(_ context.Context, sessionID uint, closedAt time.Time) error {
	if r.m.fail != nil {
		return r.m.fail
	}
	if s, ok := r.m.sessions[sessionID]; ok && s.ClosedAt == nil {
		t := closedAt
		s.ClosedAt = &t
	}
	return nil
}

func (r *mockSessionRepo) CountByCourse(_ context.Context, courseID uint) (int64, error) {
	if r.m.fail != nil {
		return 0, r.m.fail
	}
	var n int64
	for _, s := range r.m.sessions {
		if s.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

// ListByCourse 按 map 遍历顺序返回，排序由 Service 负责
func (r *mockSessionRepo) ListByCourse(_ context.Context, courseID uint) ([]model.Session, error) {
	if r.m.fail != nil {
		return nil, r.m.fail
	}
	var result []model.Session
	for _, s := range r.m.sessions {
		if s.CourseID == courseID {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (r *mockSessionRepo) DeleteByCourse(_ context.Context, courseID uint) error {
	if r.m.fail != nil {
		return r.m.fail
	}
	for id, s := range r.m.sessions {
		if s.CourseID == courseID {
			delete(r.m.sessions, id)
		}
	}
	return nil
}

// ── Mock AttendanceRecordRepository ──

type mockRecordRepo struct{ m *memStore }

func (r *mockRecordRepo) Create(_ context.Context, rec *model.AttendanceRecord) error {
	if r.m.fail != nil {
		return r.m.fail
	}
	for _, x := range r.m.records {
		if x.SessionID == rec.SessionID && x.UserID == rec.UserID {
			return gorm.ErrDuplicatedKey
		}
	}
	rec.RecordID = r.m.id()
	r.m.records = append(r.m.records, *rec)
	return nil
}

func (r *mockRecordRepo) Exists(_ context.Context, sessionID, userID uint) (bool, error) {
	if r.m.fail != nil {
		return false, r.m.fail
	}
	for _, x := range r.m.records {
		if x.SessionID == sessionID && x.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *mockRecordRepo) ListByCourse(_ context.Context, courseID uint, userID *uint) ([]model.AttendanceRecord, error) {
	if r.m.fail != nil {
		return nil, r.m.fail
	}
	var result []model.AttendanceRecord
	for _, x := range r.m.records {
		if x.CourseID != courseID {
			continue
		}
		if userID != nil && x.UserID != *userID {
			continue
		}
		result = append(result, x)
	}
	return result, nil
}

func (r *mockRecordRepo) Delete(_ context.Context, sessionID, userID uint) error {
	return r.deleteWhere(func(x model.AttendanceRecord) bool {
		return x.SessionID == sessionID && x.UserID == userID
	})
}

func (r *mockRecordRepo) DeleteByCourseAndUser(_ context.Context, courseID, userID uint) error {
	return r.deleteWhere(func(x model.AttendanceRecord) bool {
		return x.CourseID == courseID && x.UserID == userID
	})
}

func (r *mockRecordRepo) DeleteByCourse(_ context.Context, courseID uint) error {
	return r.deleteWhere(func(x model.AttendanceRecord) bool { return x.CourseID == courseID })
}

func (r *mockRecordRepo) deleteWhere(match func(model.AttendanceRecord) bool) error {
	if r.m.fail != nil {
		return r.m.fail
	}
	kept := r.m.records[:0]
	for _, x := range r.m.records {
		if !match(x) {
			kept = append(kept, x)
		}
	}
	r.m.records = kept
	return nil
}

// ── Mock SignInLimiter ──

type mockLimiter struct {
	max      int
	failures map[[2]uint]int
	err      error
}

func newMockLimiter(max int) *mockLimiter {
	return &mockLimiter{max: max, failures: make(map[[2]uint]int)}
}

func (l *mockLimiter) Blocked(_ context.Context, courseID, userID uint) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	return l.failures[[2]uint{courseID, userID}] >= l.max, nil
}

func (l *mockLimiter) RecordFailure(_ context.Context, courseID, userID uint) error {
	if l.err != nil {
		return l.err
	}
	l.failures[[2]uint{courseID, userID}]++
	return nil
}

func (l *mockLimiter) Reset(_ context.Context, courseID, userID uint) error {
	delete(l.failures, [2]uint{courseID, userID})
	return nil
}
