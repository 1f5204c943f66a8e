package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"imhere/backend/internal/dto"
	"imhere/backend/internal/model"
	"imhere/backend/internal/repository"
	pkgerrors "imhere/backend/pkg/errors"
)

// ── 名单模块业务错误 ──

const maxRosterEntries = 1000

var (
	ErrRosterEmpty      = pkgerrors.New(pkgerrors.KindValidation, "名单中没有有效的 UNI")
	ErrRosterTooLarge   = pkgerrors.New(pkgerrors.KindValidation, fmt.Sprintf("名单条目超过上限 %d", maxRosterEntries))
	ErrRosterFileFormat = pkgerrors.New(pkgerrors.KindValidation, "无法解析名单文件")
)

// RosterEntry 批量名单中的一条 UNI 及其来源行号
type RosterEntry struct {
	Line int
	UNI  string
}

// RosterService 选课与助教名单业务接口
type RosterService interface {
	AddStudent(ctx context.Context, courseID, userID uint) error
	RemoveStudent(ctx context.Context, courseID, userID uint) error
	AddTA(ctx context.Context, courseID, userID uint) error
	RemoveTA(ctx context.Context, courseID, userID uint) error
	HasStudent(ctx context.Context, courseID, userID uint) (bool, error)
	HasTA(ctx context.Context, courseID, userID uint) (bool, error)
	ListStudents(ctx context.Context, courseID uint) ([]dto.RosterMemberResponse, error)
	ListTAs(ctx context.Context, courseID uint) ([]dto.RosterMemberResponse, error)
	// AddStudentsByUNIs 逐条添加，单条失败记入结果而不中断整批
	AddStudentsByUNIs(ctx context.Context, courseID uint, entries []RosterEntry) (*dto.RosterImportResponse, error)
	AddTAsByUNIs(ctx context.Context, courseID uint, entries []RosterEntry) (*dto.RosterImportResponse, error)
	ParseRosterFile(reader io.Reader) ([]RosterEntry, error)
}

type rosterService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewRosterService 创建 RosterService 实例
func NewRosterService(repo *repository.Repository, logger *zap.Logger) RosterService {
	return &rosterService{repo: repo, logger: logger}
}

// ────────────────────── AddStudent ──────────────────────

func (s *rosterService) AddStudent(ctx context.Context, courseID, userID uint) error {
	return s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := lockCourse(ctx, tx, courseID); err != nil {
			return err
		}
		user, err := getUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !user.IsStudent() {
			return ErrNotAStudent
		}

		enrolled, err := tx.Enrollment.Exists(ctx, courseID, userID)
		if err != nil || enrolled {
			return err
		}
		err = tx.Enrollment.Create(ctx, &model.Enrollment{CourseID: courseID, StudentID: userID})
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	})
}

// ────────────────────── RemoveStudent ──────────────────────

// RemoveStudent 退课；若该用户不是本课程助教，同时删除其签到记录
func (s *rosterService) RemoveStudent(ctx context.Context, courseID, userID uint) error {
	return s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := lockCourse(ctx, tx, courseID); err != nil {
			return err
		}
		enrolled, err := tx.Enrollment.Exists(ctx, courseID, userID)
		if err != nil || !enrolled {
			return err
		}
		if err := tx.Enrollment.Delete(ctx, courseID, userID); err != nil {
			return err
		}

		isTA, err := tx.TAAssignment.Exists(ctx, courseID, userID)
		if err != nil || isTA {
			return err
		}
		return tx.AttendanceRecord.DeleteByCourseAndUser(ctx, courseID, userID)
	})
}

// ────────────────────── AddTA ──────────────────────

func (s *rosterService) AddTA(ctx context.Context, courseID, userID uint) error {
	return s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := lockCourse(ctx, tx, courseID); err != nil {
			return err
		}
		if _, err := getUser(ctx, tx, userID); err != nil {
			return err
		}

		assigned, err := tx.TAAssignment.Exists(ctx, courseID, userID)
		if err != nil || assigned {
			return err
		}
		err = tx.TAAssignment.Create(ctx, &model.TAAssignment{CourseID: courseID, TAID: userID})
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	})
}

// ────────────────────── RemoveTA ──────────────────────

// RemoveTA 撤销助教；若该用户仍选修本课程，保留其签到记录
func (s *rosterService) RemoveTA(ctx context.Context, courseID, userID uint) error {
	return s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := lockCourse(ctx, tx, courseID); err != nil {
			return err
		}
		assigned, err := tx.TAAssignment.Exists(ctx, courseID, userID)
		if err != nil || !assigned {
			return err
		}
		if err := tx.TAAssignment.Delete(ctx, courseID, userID); err != nil {
			return err
		}

		enrolled, err := tx.Enrollment.Exists(ctx, courseID, userID)
		if err != nil || enrolled {
			return err
		}
		return tx.AttendanceRecord.DeleteByCourseAndUser(ctx, courseID, userID)
	})
}

// ────────────────────── 名单查询 ──────────────────────

func (s *rosterService) HasStudent(ctx context.Context, courseID, userID uint) (bool, error) {
	return s.repo.Enrollment.Exists(ctx, courseID, userID)
}

func (s *rosterService) HasTA(ctx context.Context, courseID, userID uint) (bool, error) {
	return s.repo.TAAssignment.Exists(ctx, courseID, userID)
}

func (s *rosterService) ListStudents(ctx context.Context, courseID uint) ([]dto.RosterMemberResponse, error) {
	ids, err := s.repo.Enrollment.ListStudentIDs(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return s.members(ctx, ids)
}

func (s *rosterService) ListTAs(ctx context.Context, courseID uint) ([]dto.RosterMemberResponse, error) {
	ids, err := s.repo.TAAssignment.ListTAIDs(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return s.members(ctx, ids)
}

func (s *rosterService) members(ctx context.Context, ids []uint) ([]dto.RosterMemberResponse, error) {
	users, err := s.repo.User.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("查询名单用户失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.RosterMemberResponse, 0, len(users))
	for i := range users {
		result = append(result, toRosterMember(&users[i]))
	}
	return result, nil
}

// ────────────────────── 批量添加 ──────────────────────

func (s *rosterService) AddStudentsByUNIs(ctx context.Context, courseID uint, entries []RosterEntry) (*dto.RosterImportResponse, error) {
	return s.addByUNIs(ctx, courseID, entries, s.AddStudent)
}

func (s *rosterService) AddTAsByUNIs(ctx context.Context, courseID uint, entries []RosterEntry) (*dto.RosterImportResponse, error) {
	return s.addByUNIs(ctx, courseID, entries, s.AddTA)
}

func (s *rosterService) addByUNIs(
	ctx context.Context,
	courseID uint,
	entries []RosterEntry,
	add func(ctx context.Context, courseID, userID uint) error,
) (*dto.RosterImportResponse, error) {
	if len(entries) == 0 {
		return nil, ErrRosterEmpty
	}
	if len(entries) > maxRosterEntries {
		return nil, ErrRosterTooLarge
	}
	if _, err := getCourse(ctx, s.repo, courseID); err != nil {
		return nil, err
	}

	resp := &dto.RosterImportResponse{Total: len(entries)}
	fail := func(e RosterEntry, reason string) {
		resp.Failed++
		resp.Errors = append(resp.Errors, dto.RosterImportError{Line: e.Line, UNI: e.UNI, Reason: reason})
	}

	for _, e := range entries {
		user, err := s.repo.User.GetByUNI(ctx, e.UNI)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				fail(e, "未找到该 UNI 对应的学生")
				continue
			}
			s.logger.Error("按 UNI 查询用户失败", zap.String("uni", e.UNI), zap.Error(err))
			return nil, err
		}

		if err := add(ctx, courseID, user.UserID); err != nil {
			if pkgerrors.KindOf(err) == pkgerrors.KindInternal {
				s.logger.Error("批量添加名单失败", zap.Uint("course_id", courseID), zap.String("uni", e.UNI), zap.Error(err))
				return nil, err
			}
			fail(e, err.Error())
			continue
		}
		resp.Success++
	}

	s.logger.Info("批量添加名单完成",
		zap.Uint("course_id", courseID),
		zap.Int("total", resp.Total),
		zap.Int("success", resp.Success),
		zap.Int("failed", resp.Failed),
	)
	return resp, nil
}

// ParseUNIList 将换行分隔的 UNI 文本拆分为条目，忽略空行
func ParseUNIList(text string) []RosterEntry {
	var entries []RosterEntry
	for i, line := range strings.Split(text, "\n") {
		uni := strings.TrimSpace(line)
		if uni == "" {
			continue
		}
		entries = append(entries, RosterEntry{Line: i + 1, UNI: uni})
	}
	return entries
}

// ────────────────────── ParseRosterFile ──────────────────────

// ParseRosterFile 读取 Excel 名单第一个工作表的 UNI 列
// 表头含 "UNI" 时读取该列，否则视为无表头并读取第一列。
func (s *rosterService) ParseRosterFile(reader io.Reader) ([]RosterEntry, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		s.logger.Warn("名单文件解析失败", zap.Error(err))
		return nil, ErrRosterFileFormat
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		s.logger.Warn("读取名单工作表失败", zap.Error(err))
		return nil, ErrRosterFileFormat
	}

	col, start := 0, 0
	if len(rows) > 0 {
		if idx := uniColumn(rows[0]); idx >= 0 {
			col, start = idx, 1
		}
	}

	var entries []RosterEntry
	for i := start; i < len(rows); i++ {
		if col >= len(rows[i]) {
			continue
		}
		uni := strings.TrimSpace(rows[i][col])
		if uni == "" {
			continue
		}
		entries = append(entries, RosterEntry{Line: i + 1, UNI: uni})
	}

	if len(entries) == 0 {
		return nil, ErrRosterEmpty
	}
	if len(entries) > maxRosterEntries {
		return nil, ErrRosterTooLarge
	}
	return entries, nil
}

func uniColumn(header []string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), "uni") {
			return i
		}
	}
	return -1
}

func toRosterMember(u *model.User) dto.RosterMemberResponse {
	return dto.RosterMemberResponse{
		ID:          u.UserID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		UNI:         u.UNIValue(),
	}
}
