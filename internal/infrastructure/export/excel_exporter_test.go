package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/justifi/internal/domain/entity"
)

func sampleDetail() *entity.JustificationDetail {
	created := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	cost := 12500.0
	return &entity.JustificationDetail{
		Justification: &entity.Justification{
			ID:             "01HZY",
			Title:          "GPU servers",
			TypeCode:       "CAPEX",
			Department:     "Eng",
			RequesterEmail: "req@example.com",
			Status:         entity.JustificationApproved,
			CostEstimate:   &cost,
			DynamicValues:  map[string]any{"vendor": "acme"},
			CreatedAt:      created,
			UpdatedAt:      created,
		},
		Tasks: []*entity.ApprovalTask{
			{ID: "t1", StepIndex: 0, ApproverEmail: "lead@example.com", Status: entity.TaskApproved, ActedBy: "lead@example.com", DecisionComment: "ok"},
			{ID: "t2", StepIndex: 1, ApproverEmail: "cfo@example.com", Status: entity.TaskApproved},
		},
		Comments: []*entity.Comment{
			{ID: "c1", AuthorEmail: "cfo@example.com", Message: "fine", IsInternal: true, CreatedAt: created},
		},
		Audit: []*entity.AuditLog{
			{ID: "a1", Action: entity.ActionCreate, ActorEmail: "req@example.com", Details: map[string]any{"approver_count": 2}, Timestamp: created},
		},
	}
}

func TestExcelExporter_Export(t *testing.T) {
	e := NewExcelExporter(SheetNames{}, zap.NewNop())
	assert.Equal(t, ".xlsx", e.FileExtension())

	var buf bytes.Buffer
	require.NoError(t, e.Export(context.Background(), sampleDetail(), &buf))

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Approvals", "Comments", "Audit Trail"}, f.GetSheetList())

	title, err := f.GetCellValue("Summary", "B2")
	require.NoError(t, err)
	assert.Equal(t, "GPU servers", title)

	cost, err := f.GetCellValue("Summary", "B9")
	require.NoError(t, err)
	assert.Equal(t, "12500.00", cost)

	rows, err := f.GetRows("Approvals")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Approver", rows[0][1])
	assert.Equal(t, "lead@example.com", rows[1][1])
	assert.Equal(t, "Approved", rows[2][2])

	comments, err := f.GetRows("Comments")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "yes", comments[1][2])

	audit, err := f.GetRows("Audit Trail")
	require.NoError(t, err)
	require.Len(t, audit, 2)
	assert.Equal(t, "CREATE", audit[1][1])
	assert.Contains(t, audit[1][3], "approver_count")
}

func TestExcelExporter_CustomSheetNames(t *testing.T) {
	e := NewExcelExporter(SheetNames{Summary: "Overview", Audit: "History"}, zap.NewNop())

	var buf bytes.Buffer
	require.NoError(t, e.Export(context.Background(), sampleDetail(), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Overview", "Approvals", "Comments", "History"}, f.GetSheetList())
}

func TestExcelExporter_RejectsEmptyDetail(t *testing.T) {
	e := NewExcelExporter(DefaultSheetNames(), zap.NewNop())
	assert.Error(t, e.Export(context.Background(), &entity.JustificationDetail{}, &bytes.Buffer{}))
}
