package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strconv"
)

// WriteCSV renders events to CSV with a fixed header order.
func WriteCSV(events []Event) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"id", "type", "module_name", "user_id", "timestamp", "severity", "details", "success", "error_message"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, event := range events {
		details := ""
		if len(event.Details) > 0 {
			raw, err := json.Marshal(event.Details)
			if err != nil {
				return nil, err
			}
			details = string(raw)
		}
		record := []string{
			event.ID.String(),
			string(event.Type),
			event.ModuleName,
			event.UserID,
			event.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
			string(event.Severity),
			details,
			strconv.FormatBool(event.Success),
			event.ErrorMessage,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
