package mockdesk

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/calvinalkan/tk-desk/internal/batch"
	"github.com/calvinalkan/tk-desk/internal/ticket"
)

//nolint:gochecknoglobals // package-level constant
var csvHeader = []string{
	"id", "ticket_number", "title", "status", "priority", "category",
	"assignee", "tags", "due_date", "created_at", "updated_at",
}

// ExportName is the file name of an export produced at now.
func ExportName(format string, now time.Time) string {
	return fmt.Sprintf("tickets_batch_%s.%s", now.Format(time.DateOnly), format)
}

func encodeExport(tickets []ticket.Ticket, format string, now time.Time) (batch.Blob, error) {
	var (
		data        []byte
		contentType string
		err         error
	)

	switch format {
	case batch.FormatCSV:
		data, err = encodeCSV(tickets)
		contentType = "text/csv"
	case batch.FormatJSON:
		data, err = json.MarshalIndent(tickets, "", "  ")
		contentType = "application/json"
	default:
		return batch.Blob{}, fmt.Errorf("export: unsupported format %q", format)
	}

	if err != nil {
		return batch.Blob{}, fmt.Errorf("export %s: %w", format, err)
	}

	return batch.Blob{Name: ExportName(format, now), ContentType: contentType, Data: data}, nil
}

func encodeCSV(tickets []ticket.Ticket) ([]byte, error) {
	var buf bytes.Buffer

	w := csv.NewWriter(&buf)

	err := w.Write(csvHeader)
	if err != nil {
		return nil, err
	}

	for _, t := range tickets {
		due := ""
		if t.DueDate != nil {
			due = t.DueDate.Format(time.RFC3339)
		}

		err = w.Write([]string{
			strconv.FormatInt(t.ID, 10),
			t.TicketNumber,
			t.Title,
			t.Status,
			t.Priority,
			t.Category,
			t.AssigneeName,
			strings.Join(t.Tags, ";"),
			due,
			t.CreatedAt.Format(time.RFC3339),
			t.UpdatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return nil, err
		}
	}

	w.Flush()

	return buf.Bytes(), w.Error()
}
