package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FundingType 拨款类型查找表 — 对应 funding_types
type FundingType struct {
	FundingTypeID int    `gorm:"primaryKey;autoIncrement"          json:"funding_type_id"`
	FundingType   string `gorm:"type:varchar(50);not null;unique"  json:"funding_type"`
}

func (FundingType) TableName() string { return "funding_types" }

// ApprovedFunding 批准拨款单元格 — 对应 approved_funding
// (project_id, fiscal_year, funding_type_id) 唯一
type ApprovedFunding struct {
	ApprovedFundingID int64           `gorm:"primaryKey;autoIncrement"           json:"approved_funding_id"`
	ProjectID         int64           `gorm:"not null"                           json:"project_id"`
	FiscalYear        int             `gorm:"not null"                           json:"fiscal_year"`
	FundingTypeID     int             `gorm:"not null"                           json:"funding_type_id"`
	ApprovedAmount    decimal.Decimal `gorm:"type:numeric(14,2);not null"        json:"approved_amount"`
	UpdatedAt         time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// 关联
	FundingType *FundingType `gorm:"foreignKey:FundingTypeID;references:FundingTypeID" json:"funding_type,omitempty"`
}

func (ApprovedFunding) TableName() string { return "approved_funding" }
