// Package export renders justification reports.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/entity"
)

// SheetNames configures the worksheet titles of the report
type SheetNames struct {
	Summary  string
	Tasks    string
	Comments string
	Audit    string
}

// DefaultSheetNames returns the default worksheet titles
func DefaultSheetNames() SheetNames {
	return SheetNames{
		Summary:  "Summary",
		Tasks:    "Approvals",
		Comments: "Comments",
		Audit:    "Audit Trail",
	}
}

// ExcelExporter writes one justification as an XLSX workbook
type ExcelExporter struct {
	sheets SheetNames
	logger *zap.Logger
}

// NewExcelExporter creates an exporter. Empty sheet names fall back to the defaults.
func NewExcelExporter(sheets SheetNames, logger *zap.Logger) *ExcelExporter {
	def := DefaultSheetNames()
	if sheets.Summary == "" {
		sheets.Summary = def.Summary
	}
	if sheets.Tasks == "" {
		sheets.Tasks = def.Tasks
	}
	if sheets.Comments == "" {
		sheets.Comments = def.Comments
	}
	if sheets.Audit == "" {
		sheets.Audit = def.Audit
	}
	return &ExcelExporter{sheets: sheets, logger: logger}
}

// ContentType implements port.Exporter
func (e *ExcelExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// FileExtension implements port.Exporter
func (e *ExcelExporter) FileExtension() string { return ".xlsx" }

// Export implements port.Exporter
func (e *ExcelExporter) Export(ctx context.Context, detail *entity.JustificationDetail, w io.Writer) error {
	if detail == nil || detail.Justification == nil {
		return fmt.Errorf("nothing to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", e.sheets.Summary); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{e.sheets.Tasks, e.sheets.Comments, e.sheets.Audit} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %q: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := e.writeSummary(f, header, detail.Justification); err != nil {
		return err
	}
	if err := e.writeTable(f, header, e.sheets.Tasks, taskRows(detail.Tasks),
		"Step", "Approver", "Status", "Acted By", "Decision Comment", "More Info Requested", "Updated At"); err != nil {
		return err
	}
	if err := e.writeTable(f, header, e.sheets.Comments, commentRows(detail.Comments),
		"Created At", "Author", "Internal", "Message"); err != nil {
		return err
	}
	if err := e.writeTable(f, header, e.sheets.Audit, auditRows(detail.Audit),
		"Timestamp", "Action", "Actor", "Details"); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Justification exported",
		zap.String("justification_id", detail.Justification.ID.String()),
		zap.Int("tasks", len(detail.Tasks)),
		zap.Int("audit_entries", len(detail.Audit)))
	return nil
}

func (e *ExcelExporter) writeSummary(f *excelize.File, header int, j *entity.Justification) error {
	cost := ""
	if j.CostEstimate != nil {
		cost = fmt.Sprintf("%.2f", *j.CostEstimate)
	}
	rows := [][]any{
		{"ID", j.ID.String()},
		{"Title", j.Title},
		{"Type", j.TypeCode},
		{"Department", j.Department},
		{"Cost Centre", j.CostCentre},
		{"Requester", j.RequesterEmail},
		{"Urgency", j.Urgency},
		{"Status", string(j.Status)},
		{"Cost Estimate", cost},
		{"Required Date", j.RequiredDate},
		{"Description", j.Description},
		{"Business Impact", j.BusinessImpact},
		{"Alternatives", j.Alternatives},
		{"Created At", formatTime(j.CreatedAt)},
		{"Updated At", formatTime(j.UpdatedAt)},
	}

	keys := make([]string, 0, len(j.DynamicValues))
	for k := range j.DynamicValues {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rows = append(rows, []any{k, fmt.Sprint(j.DynamicValues[k])})
	}
	for _, a := range j.Attachments {
		rows = append(rows, []any{"Attachment", a.Name + " " + a.URL})
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(e.sheets.Summary, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}
	if err := f.SetCellStyle(e.sheets.Summary, "A1", fmt.Sprintf("A%d", len(rows)), header); err != nil {
		return fmt.Errorf("failed to style summary: %w", err)
	}
	return f.SetColWidth(e.sheets.Summary, "B", "B", 60)
}

func (e *ExcelExporter) writeTable(f *excelize.File, header int, sheet string, rows [][]any, columns ...string) error {
	head := make([]any, len(columns))
	for i, c := range columns {
		head[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(sheet, "A1", last, header); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func taskRows(tasks []*entity.ApprovalTask) [][]any {
	rows := make([][]any, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []any{
			t.StepIndex + 1,
			t.ApproverEmail,
			string(t.Status),
			t.ActedBy,
			t.DecisionComment,
			t.MoreInfoReason,
			formatTime(t.UpdatedAt),
		})
	}
	return rows
}

func commentRows(comments []*entity.Comment) [][]any {
	rows := make([][]any, 0, len(comments))
	for _, c := range comments {
		internal := "no"
		if c.IsInternal {
			internal = "yes"
		}
		rows = append(rows, []any{formatTime(c.CreatedAt), c.AuthorEmail, internal, c.Message})
	}
	return rows
}

func auditRows(entries []*entity.AuditLog) [][]any {
	rows := make([][]any, 0, len(entries))
	for _, a := range entries {
		details := ""
		if len(a.Details) > 0 {
			if data, err := json.Marshal(a.Details); err == nil {
				details = string(data)
			}
		}
		rows = append(rows, []any{formatTime(a.Timestamp), a.Action, a.ActorEmail, details})
	}
	return rows
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

var _ port.Exporter = (*ExcelExporter)(nil)
