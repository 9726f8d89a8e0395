package dto

// ── 用户模块 DTO ──

// CreateUserRequest 管理员创建用户请求
type CreateUserRequest struct {
	Name          string `json:"name"             binding:"required,min=2,max=100"`
	Email         string `json:"email"            binding:"required,email"`
	Role          string `json:"role"             binding:"required,oneof=ADMIN IPT_MEMBER CONTRACTOR VIEWER"`
	MilJobTitleID *int   `json:"mil_job_title_id" binding:"omitempty,min=1"`
	BranchID      *int   `json:"branch_id"        binding:"omitempty,min=1"`
}

// CreateUserResponse 创建用户响应（含一次性临时密码）
type CreateUserResponse struct {
	User         UserResponse `json:"user"`
	TempPassword string       `json:"temp_password"`
}

// UpdateUserRequest 更新用户信息请求（字段均可选）
type UpdateUserRequest struct {
	Name          *string `json:"name"             binding:"omitempty,min=2,max=100"`
	Email         *string `json:"email"            binding:"omitempty,email"`
	Role          *string `json:"role"             binding:"omitempty,oneof=ADMIN IPT_MEMBER CONTRACTOR VIEWER"`
	MilJobTitleID *int    `json:"mil_job_title_id" binding:"omitempty,min=1"`
	BranchID      *int    `json:"branch_id"        binding:"omitempty,min=1"`
}

// UserListRequest 用户列表查询参数
type UserListRequest struct {
	PaginationRequest
	Role    string `form:"role"    binding:"omitempty,oneof=ADMIN IPT_MEMBER CONTRACTOR VIEWER"`
	Keyword string `form:"keyword" binding:"omitempty,max=50"`
}

// ResetPasswordResponse 重置密码响应
type ResetPasswordResponse struct {
	TempPassword string `json:"temp_password"`
}
