// Package export writes batch results for spreadsheets and downstream tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kilianp07/fieldassign/core/assignment"
)

// Formats accepted by Write.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

var csvHeader = []string{
	"call_id", "call_number", "priority", "bank_id", "outcome",
	"engineer_id", "score", "distance_km", "reason", "committed", "assigned_at",
}

// Write encodes res in the named format.
func Write(w io.Writer, format string, res assignment.BatchResult) error {
	switch format {
	case "", FormatJSON:
		return WriteJSON(w, res)
	case FormatCSV:
		return WriteCSV(w, res)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteJSON writes the batch result as indented JSON.
func WriteJSON(w io.Writer, res assignment.BatchResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// WriteCSV writes one row per call: assignments first in decision order,
// then unassigned calls.
func WriteCSV(w io.Writer, res assignment.BatchResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, a := range res.Assignments {
		assignedAt := ""
		if !a.AssignedAt.IsZero() {
			assignedAt = a.AssignedAt.UTC().Format(time.RFC3339)
		}
		rec := []string{
			a.Call.ID,
			a.Call.Number,
			a.Call.Priority.String(),
			a.Call.BankID,
			"assigned",
			a.Engineer.Engineer.ID,
			formatFloat(a.Engineer.Total),
			formatDistance(a.DistanceKM),
			a.Reason,
			strconv.FormatBool(a.Committed),
			assignedAt,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	for _, u := range res.Unassigned {
		rec := []string{
			u.Call.ID,
			u.Call.Number,
			u.Call.Priority.String(),
			u.Call.BankID,
			string(u.Reason),
			"",
			"",
			"",
			u.Detail,
			"false",
			"",
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func formatDistance(d *float64) string {
	if d == nil {
		return ""
	}
	return formatFloat(*d)
}
