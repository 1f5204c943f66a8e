package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"imhere/backend/internal/model"
	"imhere/backend/internal/repository"
	pkgerrors "imhere/backend/pkg/errors"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoSessions   = pkgerrors.New(pkgerrors.KindDomainConflict, "该课程尚未开放过考勤")
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

// ExportService 导出业务接口
//
// 导出内容以内存缓冲返回，由 Handler 设置下载响应头后写出。
type ExportService interface {
	// ExportAttendance 导出出勤表 (.xlsx)：每行一名学生，每列一次考勤
	ExportAttendance(ctx context.Context, courseID uint) (*bytes.Buffer, string, error)
	// ExportSessionsICS 导出考勤窗口日历 (.ics)，每个窗口一个事件
	ExportSessionsICS(ctx context.Context, courseID uint) ([]byte, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger, now: time.Now}
}

// ═══════════════════════════════════════════════════════════
// ExportAttendance — 出勤表
// ═══════════════════════════════════════════════════════════
//
// | UNI | 姓名 | 邮箱 | 第1次 (01-02 10:00) | ... | 出勤次数 |

func (s *exportService) ExportAttendance(ctx context.Context, courseID uint) (*bytes.Buffer, string, error) {
	course, sessions, err := s.loadCourseSessions(ctx, courseID)
	if err != nil {
		return nil, "", err
	}

	ids, err := s.repo.Enrollment.ListStudentIDs(ctx, courseID)
	if err != nil {
		return nil, "", err
	}
	students, err := s.repo.User.ListByIDs(ctx, ids)
	if err != nil {
		return nil, "", err
	}
	records, err := s.repo.AttendanceRecord.ListByCourse(ctx, courseID, nil)
	if err != nil {
		return nil, "", err
	}

	attended := make(map[string]bool, len(records))
	for _, r := range records {
		attended[recordKey(r.SessionID, r.UserID)] = true
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "出勤表"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	lastCol := colName(3 + len(sessions))
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s 出勤表", course.Name))
	f.MergeCell(sheetName, "A1", cell(lastCol, 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	f.SetColWidth(sheetName, "A", "A", 12)
	f.SetColWidth(sheetName, "B", "B", 18)
	f.SetColWidth(sheetName, "C", "C", 28)

	row := 2
	f.SetCellValue(sheetName, cell("A", row), "UNI")
	f.SetCellValue(sheetName, cell("B", row), "姓名")
	f.SetCellValue(sheetName, cell("C", row), "邮箱")
	for i, sess := range sessions {
		f.SetCellValue(sheetName, cell(colName(3+i), row),
			fmt.Sprintf("第%d次 (%s)", i+1, sess.OpenedAt.Format("01-02 15:04")))
	}
	f.SetCellValue(sheetName, cell(lastCol, row), "出勤次数")
	f.SetCellStyle(sheetName, cell("A", row), cell(lastCol, row), headerStyle)

	for _, st := range students {
		row++
		f.SetCellValue(sheetName, cell("A", row), st.UNIValue())
		f.SetCellValue(sheetName, cell("B", row), st.DisplayName)
		f.SetCellValue(sheetName, cell("C", row), st.Email)

		count := 0
		for i, sess := range sessions {
			mark := "-"
			if attended[recordKey(sess.SessionID, st.UserID)] {
				mark = "✓"
				count++
			}
			f.SetCellValue(sheetName, cell(colName(3+i), row), mark)
		}
		f.SetCellValue(sheetName, cell(lastCol, row), count)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Uint("course_id", courseID), zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	return buf, fmt.Sprintf("出勤表_%s.xlsx", course.Name), nil
}

// ═══════════════════════════════════════════════════════════
// ExportSessionsICS — 考勤窗口日历
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportSessionsICS(ctx context.Context, courseID uint) ([]byte, string, error) {
	course, sessions, err := s.loadCourseSessions(ctx, courseID)
	if err != nil {
		return nil, "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//imhere//attendance//CN")
	cal.SetXWRCalName(course.Name + " 考勤")

	now := s.now().UTC()
	for i, sess := range sessions {
		// 同一窗口多次导出保持相同 UID，日历客户端据此去重
		uid := uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("imhere:session:%d", sess.SessionID)))
		event := cal.AddEvent(uid.String())
		event.SetDtStampTime(now)
		event.SetStartAt(sess.OpenedAt.UTC())

		end := now
		status := "进行中"
		if sess.ClosedAt != nil {
			end = sess.ClosedAt.UTC()
			status = "已结束"
		}
		event.SetEndAt(end)
		event.SetSummary(fmt.Sprintf("%s 第%d次考勤", course.Name, i+1))
		event.SetDescription(fmt.Sprintf("考勤窗口 #%d（%s）", sess.SessionID, status))
	}

	return []byte(cal.Serialize()), fmt.Sprintf("考勤日历_%s.ics", course.Name), nil
}

// ── 内部辅助 ──

func (s *exportService) loadCourseSessions(ctx context.Context, courseID uint) (*model.Course, []model.Session, error) {
	course, err := getCourse(ctx, s.repo, courseID)
	if err != nil {
		return nil, nil, err
	}
	sessions, err := s.repo.Session.ListByCourse(ctx, courseID)
	if err != nil {
		s.logger.Error("查询考勤窗口失败", zap.Uint("course_id", courseID), zap.Error(err))
		return nil, nil, err
	}
	if len(sessions) == 0 {
		return nil, nil, ErrExportNoSessions
	}
	sortSessions(sessions)
	return course, sessions, nil
}

func recordKey(sessionID, userID uint) string {
	return fmt.Sprintf("%d:%d", sessionID, userID)
}

// colName 0 起的列序号转为 Excel 列名
func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
