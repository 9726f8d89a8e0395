package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"contract-tracker/backend/internal/dto"
	"contract-tracker/backend/internal/model"
	"contract-tracker/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoMilestones = errors.New("该项目暂无里程碑")
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

const icsProductID = "-//contract-tracker//schedule export//ZH"

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportScheduleXLSX 导出项目进度表为 Excel，每个里程碑一行
	ExportScheduleXLSX(ctx context.Context, projectID int64) (*bytes.Buffer, string, error)
	// ExportScheduleICS 导出项目进度表为 iCalendar，每个里程碑一个全天 VEVENT
	ExportScheduleICS(ctx context.Context, projectID int64) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportScheduleXLSX — 导出进度表为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 单个 Sheet "进度表"
//   - 第 1 行：项目名称标题（合并单元格）
//   - 第 2 行表头：ID | 任务 | 预计开始 | 预计结束 | 实际开始 | 实际结束 | 前驱
//   - 之后每个里程碑一行，未发生的实际日期留空

func (s *exportService) ExportScheduleXLSX(ctx context.Context, projectID int64) (*bytes.Buffer, string, error) {
	project, milestones, err := s.loadSchedule(ctx, projectID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "进度表"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{"ID", "任务", "预计开始", "预计结束", "实际开始", "实际结束", "前驱"}
	widths := []float64{8, 36, 12, 12, 12, 12, 18}
	for i, w := range widths {
		f.SetColWidth(sheetName, colName(i), colName(i), w)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s 进度表", project.ProjectName))
	f.MergeCell(sheetName, "A1", cell(colName(len(headers)-1), 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	row := 2
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), row), h)
	}
	f.SetCellStyle(sheetName, cell("A", row), cell(colName(len(headers)-1), row), headerStyle)

	// 数据行
	row = 3
	for i := range milestones {
		m := &milestones[i]
		f.SetCellValue(sheetName, cell("A", row), m.MilestoneID)
		f.SetCellValue(sheetName, cell("B", row), m.TaskName)
		f.SetCellValue(sheetName, cell("C", row), m.ProjectedStart.Format(dto.DateLayout))
		f.SetCellValue(sheetName, cell("D", row), m.ProjectedEnd.Format(dto.DateLayout))
		f.SetCellValue(sheetName, cell("E", row), formatOptionalDate(m.ActualStart))
		f.SetCellValue(sheetName, cell("F", row), formatOptionalDate(m.ActualEnd))
		f.SetCellValue(sheetName, cell("G", row), PredecessorLabel(m.Predecessors))
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("进度表_%s.xlsx", project.ProjectName)
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// ExportScheduleICS — 导出进度表为 iCalendar
// ═══════════════════════════════════════════════════════════
//
// 每个里程碑按预计日期生成全天事件（DTEND 为结束日次日），
// 实际日期与前驱写入 DESCRIPTION

func (s *exportService) ExportScheduleICS(ctx context.Context, projectID int64) (*bytes.Buffer, string, error) {
	project, milestones, err := s.loadSchedule(ctx, projectID)
	if err != nil {
		return nil, "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)

	stamp := time.Now().UTC()
	for i := range milestones {
		m := &milestones[i]
		event := cal.AddEvent(fmt.Sprintf("milestone-%d-%d@contract-tracker", project.ProjectID, m.MilestoneID))
		event.SetDtStampTime(stamp)
		event.SetSummary(fmt.Sprintf("[%s] %s", project.ProjectName, m.TaskName))
		event.SetAllDayStartAt(m.ProjectedStart)
		event.SetAllDayEndAt(m.ProjectedEnd.AddDate(0, 0, 1))
		event.SetDescription(milestoneDescription(m))
	}

	buf := bytes.NewBufferString(cal.Serialize())
	filename := fmt.Sprintf("schedule_%d.ics", project.ProjectID)
	return buf, filename, nil
}

// ── 辅助函数 ──

func (s *exportService) loadSchedule(ctx context.Context, projectID int64) (*model.Project, []model.Milestone, error) {
	project, err := s.repo.Project.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrProjectNotFound
		}
		s.logger.Error("查询项目失败", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, nil, err
	}

	milestones, err := s.repo.Milestone.ListByProject(ctx, projectID)
	if err != nil {
		s.logger.Error("查询里程碑失败", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, nil, err
	}
	if len(milestones) == 0 {
		return nil, nil, ErrExportNoMilestones
	}
	return project, milestones, nil
}

func milestoneDescription(m *model.Milestone) string {
	var b strings.Builder
	fmt.Fprintf(&b, "预计：%s ~ %s", m.ProjectedStart.Format(dto.DateLayout), m.ProjectedEnd.Format(dto.DateLayout))
	if m.ActualStart != nil || m.ActualEnd != nil {
		fmt.Fprintf(&b, "\n实际：%s ~ %s", formatOptionalDate(m.ActualStart), formatOptionalDate(m.ActualEnd))
	}
	if len(m.Predecessors) > 0 {
		fmt.Fprintf(&b, "\n前驱：%s", PredecessorLabel(m.Predecessors))
	}
	return b.String()
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dto.DateLayout)
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
