package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldassign/core/assignment"
	"github.com/kilianp07/fieldassign/core/model"
)

func sampleResult() assignment.BatchResult {
	d := 12.3456
	return assignment.BatchResult{
		BatchID: "b1",
		Success: true,
		Assignments: []assignment.Assignment{{
			Call:       model.Call{ID: "c1", Number: "CALL-1", Priority: model.PriorityUrgent, BankID: "bank"},
			Engineer:   assignment.ScoredEngineer{Engineer: model.Engineer{ID: "e1"}, Total: 81.237},
			Reason:     "proximity, workload",
			DistanceKM: &d,
			AssignedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
			Committed:  true,
		}},
		Unassigned: []assignment.UnassignedCall{{
			Call:   model.Call{ID: "c2", Number: "CALL-2", Priority: model.PriorityLow, BankID: "bank"},
			Reason: assignment.ReasonNoStock,
			Detail: "no stock in bank",
		}},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResult()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"c1", "CALL-1", "urgent", "bank", "assigned", "e1", "81.24", "12.35", "proximity, workload", "true", "2024-05-01T09:00:00Z"}, rows[1])
	assert.Equal(t, []string{"c2", "CALL-2", "low", "bank", "no_stock", "", "", "", "no stock in bank", "false", ""}, rows[2])
}

func TestWrite_Formats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sampleResult()))
	var decoded struct {
		BatchID    string `json:"batch_id"`
		Unassigned []struct {
			Reason string `json:"reason"`
		} `json:"unassigned"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "b1", decoded.BatchID)
	assert.Equal(t, "no_stock", decoded.Unassigned[0].Reason)

	buf.Reset()
	require.NoError(t, Write(&buf, FormatCSV, sampleResult()))
	assert.Contains(t, buf.String(), "call_id,call_number")

	assert.Error(t, Write(&buf, "xml", sampleResult()))
}
