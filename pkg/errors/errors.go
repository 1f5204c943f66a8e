package errors

import stderrors "errors"

// Kind 业务错误分类，决定 API 层映射的 HTTP 状态码
type Kind int

const (
	KindInternal         Kind = iota // 未分类（基础设施故障等）
	KindNotFound                     // 实体不存在，调用方不得继续
	KindValidation                   // 输入缺失或不合法，调用方可修正
	KindPermissionDenied             // 角色关系前置条件不满足
	KindStateConflict                // 与当前状态冲突（如重复签到）
	KindDomainConflict               // 领域状态不允许该操作（如无开放考勤窗口）
)

// String 返回分类名称，用于日志
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindPermissionDenied:
		return "permission_denied"
	case KindStateConflict:
		return "state_conflict"
	case KindDomainConflict:
		return "domain_conflict"
	default:
		return "internal"
	}
}

// Error 带分类的业务错误
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// New 创建带分类的业务错误，一般用于包级哨兵错误
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// KindOf 提取错误分类；非业务错误返回 KindInternal
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind 判断错误链中是否存在指定分类的业务错误
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = New(KindStateConflict, "数据已被其他操作修改，请刷新后重试")
