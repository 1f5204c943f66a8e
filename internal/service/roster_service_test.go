package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func setupTestRosterService() (RosterService, *memStore) {
	store := newMemStore()
	return NewRosterService(store.repository(), zap.NewNop()), store
}

// ── AddStudent / AddTA 测试 ──

func TestRosterService_AddStudent(t *testing.T) {
	svc, store := setupTestRosterService()
	course := store.addCourse("课程")
	student := store.addUser("s@test.com", "ab1234", false)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := svc.AddStudent(ctx, course.CourseID, student.UserID); err != nil {
			t.Fatalf("第 %d 次 AddStudent 应成功: %v", i+1, err)
		}
	}
	if len(store.enrollments) != 1 {
		t.Errorf("重复添加不应产生多条选课，实际 %d", len(store.enrollments))
	}
	has, _ := svc.HasStudent(ctx, course.CourseID, student.UserID)
	if !has {
		t.Error("添加后应立即可见")
	}
	if len(store.locked) == 0 || store.locked[0] != course.CourseID {
		t.Error("写操作应锁定课程行")
	}
}

func TestRosterService_AddStudent_NotAStudent(t *testing.T) {
	svc, store := setupTestRosterService()
	course := store.addCourse("课程")
	u := store.addUser("n@test.com", "", false)

	if err := svc.AddStudent(context.Background(), course.CourseID, u.UserID); !errors.Is(err, ErrNotAStudent) {
		t.Errorf("期望 ErrNotAStudent，实际: %v", err)
	}
}

func TestRosterService_AddStudent_CourseNotFound(t *testing.T) {
	svc, store := setupTestRosterService()
	u := store.addUser("s@test.com", "ab1234", false)

	if err := svc.AddStudent(context.Background(), 777, u.UserID); !errors.Is(err, ErrCourseNotFound) {
		t.Errorf("期望 ErrCourseNotFound，实际: %v", err)
	}
}

func TestRosterService_StudentAndTARelationsIndependent(t *testing.T) {
	svc, store := setupTestRosterService()
	course := store.addCourse("课程")
	u := store.addUser("s@test.com", "ab1234", false)
	ctx := context.Background()

	check := func(wantStudent, wantTA bool) {
		t.Helper()
		hs, _ := svc.HasStudent(ctx, course.CourseID, u.UserID)
		ht, _ := svc.HasTA(ctx, course.CourseID, u.UserID)
		if hs != wantStudent || ht != wantTA {
			t.Errorf("期望 student=%v ta=%v，实际 student=%v ta=%v", wantStudent, wantTA, hs, ht)
		}
	}

	check(false, false)
	svc.AddTA(ctx, course.CourseID, u.UserID)
	check(false, true)
	svc.AddStudent(ctx, course.CourseID, u.UserID)
	check(true, true)
	svc.RemoveTA(ctx, course.CourseID, u.UserID)
	check(true, false)
	svc.RemoveStudent(ctx, course.CourseID, u.UserID)
	check(false, false)
}

// ── Remove 级联测试 ──

func TestRosterService_RemoveStudent_CascadeDependsOnTA(t *testing.T) {
	svc, store := setupTestRosterService()
	course := store.addCourse("课程")
	plain := store.addUser("plain@test.com", "pl0001", false)
	both := store.addUser("both@test.com", "bo0001", false)
	sess := store.addSession(course.CourseID, time.Now(), nil, 1234)
	for _, u := range []uint{plain.UserID, both.UserID} {
		store.enroll(course.CourseID, u)
		store.addRecord(sess.SessionID, course.CourseID, u)
	}
	store.assignTA(course.CourseID, both.UserID)
	ctx := context.Background()

	if err := svc.RemoveStudent(ctx, course.CourseID, plain.UserID); err != nil {
		t.Fatalf("RemoveStudent 应成功: %v", err)
	}
	if store.countRecords(course.CourseID, plain.UserID) != 0 {
		t.Error("非助教学生退课后记录应被删除")
	}

	if err := svc.RemoveStudent(ctx, course.CourseID, both.UserID); err != nil {
		t.Fatalf("RemoveStudent 应成功: %v", err)
	}
	if store.countRecords(course.CourseID, both.UserID) != 1 {
		t.Error("兼任助教的学生退课后记录应保留")
	}
}

func TestRosterService_RemoveTA_CascadeDependsOnEnrollment(t *testing.T) {
	svc, store := setupTestRosterService()
	course := store.addCourse("课程")
	taOnly := store.addUser("ta@test.com", "", false)
	both := store.addUser("both@test.com", "bo0001", false)
	sess := store.addSession(course.CourseID, time.Now(), nil, 1234)
	for _, u := range []uint{taOnly.UserID, both.UserID} {
		store.assignTA(course.CourseID, u)
		store.addRecord(sess.SessionID, course.CourseID, u)
	}
	store.enroll(course.CourseID, both.UserID)
	ctx := context.Background()

	svc.RemoveTA(ctx, course.CourseID, taOnly.UserID)
	if store.countRecords(course.CourseID, taOnly.UserID) != 0 {
		t.Error("仅为助教的用户被撤销后记录应被删除")
	}

	svc.RemoveTA(ctx, course.CourseID, both.UserID)
	if store.countRecords(course.CourseID, both.UserID) != 1 {
		t.Error("仍选修课程的用户被撤销助教后记录应保留")
	}
}

func TestRosterService_RemoveStudent_NotEnrolledIsNoop(t *testing.T) {
	svc, store := setupTestRosterService()
	course := store.addCourse("课程")
	u := store.addUser("s@test.com", "ab1234", false)
	sess := store.addSession(course.CourseID, time.Now(), nil, 1234)
	store.assignTA(course.CourseID, u.UserID)
	store.addRecord(sess.SessionID, course.CourseID, u.UserID)

	if err := svc.RemoveStudent(context.Background(), course.CourseID, u.UserID); err != nil {
		t.Fatalf("未选课时 RemoveStudent 应为空操作: %v", err)
	}
	if store.countRecords(course.CourseID, u.UserID) != 1 {
		t.Error("空操作不应删除记录")
	}
}

// ── 批量添加测试 ──

func TestParseUNIList(t *testing.T) {
	entries := ParseUNIList("ab1234\r\n\n  cd5678  \n\n")
	if len(entries) != 2 {
		t.Fatalf("期望 2 条，实际 %d", len(entries))
	}
	if entries[0].UNI != "ab1234" || entries[0].Line != 1 {
		t.Errorf("第一条不符: %+v", entries[0])
	}
	if entries[1].UNI != "cd5678" || entries[1].Line != 3 {
		t.Errorf("第二条不符: %+v", entries[1])
	}
}

func TestRosterService_AddStudentsByUNIs_PartialFailure(t *testing.T) {
	svc, store := setupTestRosterService()
	course := store.addCourse("课程")
	store.addUser("a@test.com", "ab1234", false)
	store.addUser("c@test.com", "cd5678", false)

	resp, err := svc.AddStudentsByUNIs(context.Background(), course.CourseID, ParseUNIList("ab1234\nzz9999\ncd5678\n"))
	if err != nil {
		t.Fatalf("AddStudentsByUNIs 应成功: %v", err)
	}
	if resp.Total != 3 || resp.Success != 2 || resp.Failed != 1 {
		t.Errorf("统计不符: %+v", resp)
	}
	if len(resp.Errors) != 1 || resp.Errors[0].UNI != "zz9999" || resp.Errors[0].Line != 2 {
		t.Errorf("错误详情不符: %+v", resp.Errors)
	}
	if len(store.enrollments) != 2 {
		t.Errorf("期望 2 条选课，实际 %d", len(store.enrollments))
	}
}

func TestRosterService_AddTAsByUNIs(t *testing.T) {
	svc, store := setupTestRosterService()
	course := store.addCourse("课程")
	store.addUser("a@test.com", "ab1234", false)

	resp, err := svc.AddTAsByUNIs(context.Background(), course.CourseID, ParseUNIList("ab1234"))
	if err != nil {
		t.Fatalf("AddTAsByUNIs 应成功: %v", err)
	}
	if resp.Success != 1 || len(store.tas) != 1 {
		t.Errorf("期望添加 1 名助教，实际 %+v", resp)
	}
}

func TestRosterService_AddStudentsByUNIs_Empty(t *testing.T) {
	svc, store := setupTestRosterService()
	course := store.addCourse("课程")

	if _, err := svc.AddStudentsByUNIs(context.Background(), course.CourseID, ParseUNIList("\n \n")); !errors.Is(err, ErrRosterEmpty) {
		t.Errorf("期望 ErrRosterEmpty，实际: %v", err)
	}
}

// ── ParseRosterFile 测试 ──

func buildRosterXLSX(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cellName, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cellName, &row); err != nil {
			t.Fatalf("写入测试行失败: %v", err)
		}
	}
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		t.Fatalf("生成测试文件失败: %v", err)
	}
	return buf
}

func TestRosterService_ParseRosterFile_WithHeader(t *testing.T) {
	svc, _ := setupTestRosterService()
	buf := buildRosterXLSX(t, [][]interface{}{
		{"姓名", "UNI"},
		{"张三", "ab1234"},
		{"李四", ""},
		{"王五", " cd5678 "},
	})

	entries, err := svc.ParseRosterFile(buf)
	if err != nil {
		t.Fatalf("ParseRosterFile 应成功: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("期望 2 条，实际 %d", len(entries))
	}
	if entries[0].UNI != "ab1234" || entries[0].Line != 2 {
		t.Errorf("第一条不符: %+v", entries[0])
	}
	if entries[1].UNI != "cd5678" || entries[1].Line != 4 {
		t.Errorf("第二条不符: %+v", entries[1])
	}
}

func TestRosterService_ParseRosterFile_NoHeader(t *testing.T) {
	svc, _ := setupTestRosterService()
	buf := buildRosterXLSX(t, [][]interface{}{{"ab1234"}, {"cd5678"}})

	entries, err := svc.ParseRosterFile(buf)
	if err != nil {
		t.Fatalf("ParseRosterFile 应成功: %v", err)
	}
	if len(entries) != 2 || entries[0].Line != 1 {
		t.Errorf("无表头时应从第一行读取第一列，实际 %+v", entries)
	}
}

func TestRosterService_ParseRosterFile_Invalid(t *testing.T) {
	svc, _ := setupTestRosterService()

	if _, err := svc.ParseRosterFile(bytes.NewReader([]byte("not an xlsx"))); !errors.Is(err, ErrRosterFileFormat) {
		t.Errorf("期望 ErrRosterFileFormat，实际: %v", err)
	}
}

// ── 名单查询 ──

func TestRosterService_ListStudentsAndTAs(t *testing.T) {
	svc, store := setupTestRosterService()
	course := store.addCourse("课程")
	s := store.addUser("s@test.com", "ab1234", false)
	ta := store.addUser("ta@test.com", "", false)
	store.enroll(course.CourseID, s.UserID)
	store.assignTA(course.CourseID, ta.UserID)
	ctx := context.Background()

	students, err := svc.ListStudents(ctx, course.CourseID)
	if err != nil || len(students) != 1 || students[0].UNI != "ab1234" {
		t.Errorf("ListStudents 不符: %+v, err=%v", students, err)
	}
	tas, err := svc.ListTAs(ctx, course.CourseID)
	if err != nil || len(tas) != 1 || tas[0].ID != ta.UserID {
		t.Errorf("ListTAs 不符: %+v, err=%v", tas, err)
	}
}
