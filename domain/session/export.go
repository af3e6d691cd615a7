package session

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/soocke/load-curtain-go/domain/load"
)

var csvHeader = []string{
	"event_id",
	"load_type",
	"contributors",
	"started_at",
	"ended_at",
	"raw_ms",
	"corrected_ms",
}

// WriteCSV writes the event log in tabular form.
func (s *Session) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, ev := range s.events {
		rec := []string{
			ev.ID.String(),
			string(ev.Type),
			joinTypes(ev.Contributors),
			ev.Start.Format(time.RFC3339Nano),
			ev.End.Format(time.RFC3339Nano),
			fmt.Sprintf("%.3f", durMS(ev.RawDuration)),
			fmt.Sprintf("%.3f", durMS(ev.CorrectedDuration)),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// exportDoc is the JSON export shape: session info followed by the event log.
type exportDoc struct {
	SessionID      string       `json:"sessionId"`
	StartedAt      time.Time    `json:"startedAt"`
	EndedAt        time.Time    `json:"endedAt,omitzero"`
	LoadCount      int          `json:"loadCount"`
	MajorLoadCount int          `json:"majorLoadCount"`
	TotalRemovedMS float64      `json:"totalRemovedMs"`
	Loads          []load.Event `json:"loads"`
}

// WriteJSON writes the session and its event log as an indented JSON document.
func (s *Session) WriteJSON(w io.Writer) error {
	doc := exportDoc{
		SessionID:      s.ID.String(),
		StartedAt:      s.StartedAt,
		EndedAt:        s.EndedAt,
		LoadCount:      s.Count(),
		MajorLoadCount: s.MajorCount(),
		TotalRemovedMS: durMS(s.totalRemoved),
		Loads:          s.Events(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// RenderTable returns a human-readable rendering of the event log.
func (s *Session) RenderTable() string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Type", "Contributors", "Start", "End", "Raw (ms)", "Corrected (ms)"})
	for i, ev := range s.events {
		t.AppendRow(table.Row{
			i + 1,
			string(ev.Type),
			joinTypes(ev.Contributors),
			ev.Start.Format("15:04:05.000"),
			ev.End.Format("15:04:05.000"),
			fmt.Sprintf("%.1f", durMS(ev.RawDuration)),
			fmt.Sprintf("%.1f", durMS(ev.CorrectedDuration)),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total removed", "", fmt.Sprintf("%.1f", durMS(s.totalRemoved))})
	return t.Render()
}

func joinTypes(types []load.Type) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, "+")
}

func durMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
