package rbac

import "slices"

// 权限常量
const (
	// 普通操作权限
	PermissionReadRun   = "runs:read"
	PermissionSubmitRun = "runs:submit"

	// 敏感操作权限
	PermissionDecideRun    = "runs:decide"
	PermissionCancelRun    = "runs:cancel"
	PermissionReplayOutbox = "outbox:replay"
)

// 角色常量
const (
	RoleViewer   = "viewer"
	RoleReviewer = "reviewer"
	RoleAdmin    = "admin"
)

// 角色权限映射
var rolePermissions = map[string][]string{
	RoleViewer: {
		PermissionReadRun,
	},
	RoleReviewer: {
		PermissionReadRun,
		PermissionSubmitRun,
		PermissionDecideRun,
		PermissionCancelRun,
	},
	RoleAdmin: {
		PermissionReadRun,
		PermissionSubmitRun,
		PermissionDecideRun,
		PermissionCancelRun,
		PermissionReplayOutbox,
	},
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role, permission string) bool {
	permissions, ok := rolePermissions[role]
	if !ok {
		return false
	}
	return slices.Contains(permissions, permission)
}

// CheckPermission 检查角色是否有指定权限（返回错误而不是布尔值，便于处理）
func CheckPermission(reviewer, role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			Reviewer:   reviewer,
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	Reviewer   string
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}

// ValidateReviewer 验证 payload 中的 reviewer 是否与 token 中的一致
func ValidateReviewer(tokenReviewer, payloadReviewer string) error {
	if payloadReviewer != "" && payloadReviewer != tokenReviewer {
		return &ReviewerMismatchError{
			TokenReviewer:   tokenReviewer,
			PayloadReviewer: payloadReviewer,
		}
	}
	return nil
}

// ReviewerMismatchError 表示 reviewer 不匹配的错误
type ReviewerMismatchError struct {
	TokenReviewer   string
	PayloadReviewer string
}

func (e *ReviewerMismatchError) Error() string {
	return "reviewer in payload does not match token"
}
