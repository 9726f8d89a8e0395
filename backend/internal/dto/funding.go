package dto

import "github.com/shopspring/decimal"

// ── 批准拨款模块 DTO ──

// 拨款矩阵展示模式
const (
	FundingModeEmpty     = "empty"
	FundingModePopulated = "populated"
)

// FundingCell 矩阵单元格（年份 × 拨款类型）
type FundingCell struct {
	FiscalYear    int             `json:"fiscal_year"     binding:"min=0,max=9999"`
	FundingTypeID int             `json:"funding_type_id" binding:"required,min=1"`
	Amount        decimal.Decimal `json:"amount"`
}

// FundingTypeResponse 拨款类型
type FundingTypeResponse struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// FundingMatrixResponse 拨款矩阵：行为使用中的拨款类型，列为使用中的财年
type FundingMatrixResponse struct {
	ProjectID    int64                 `json:"project_id"`
	Mode         string                `json:"mode"`
	FiscalYears  []int                 `json:"fiscal_years"`
	FundingTypes []FundingTypeResponse `json:"funding_types"`
	Cells        []FundingCell         `json:"cells"`
	Total        decimal.Decimal       `json:"total"`
}

// AddFiscalYearRequest 新增财年列
type AddFiscalYearRequest struct {
	FiscalYear int `json:"fiscal_year" binding:"min=0,max=9999"`
}

// AddFundingTypeRequest 新增拨款类型行
type AddFundingTypeRequest struct {
	FundingTypeID int `json:"funding_type_id" binding:"required,min=1"`
}

// AddFirstCellRequest 空矩阵时的首个单元格
type AddFirstCellRequest struct {
	FiscalYear    int             `json:"fiscal_year"     binding:"min=0,max=9999"`
	FundingTypeID int             `json:"funding_type_id" binding:"required,min=1"`
	Amount        decimal.Decimal `json:"amount"`
}

// UpdateCellsRequest 批量更新修改过的单元格
type UpdateCellsRequest struct {
	Cells []FundingCell `json:"cells" binding:"required,min=1,max=500,dive"`
}
