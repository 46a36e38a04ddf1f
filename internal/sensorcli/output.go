package sensorcli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	service "github.com/okian/sensorboard/internal/app"
	"github.com/okian/sensorboard/internal/domain/model"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func checkFormat(f string) error {
	switch f {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("%w: format must be table, json or yaml", ErrUsage)
}

func writeReadings(w io.Writer, format string, readings []model.Reading) error {
	switch format {
	case formatJSON:
		return writeJSON(w, readings)
	case formatYAML:
		return writeYAML(w, readings)
	}

	if len(readings) == 0 {
		_, err := fmt.Fprintln(w, "No readings found.")
		return err
	}
	fmt.Fprintf(w, "Found %d readings:\n", len(readings))
	table := newTable(w)
	table.SetHeader([]string{"ID", "Value", "Mode", "Timestamp"})
	for _, r := range readings {
		table.Append([]string{
			fmt.Sprint(r.ID),
			formatValue(r.Value),
			formatMode(r.Mode),
			r.Timestamp.Format(time.RFC3339),
		})
	}
	table.Render()
	return nil
}

func writeStats(w io.Writer, format string, st service.Stats) error {
	switch format {
	case formatJSON:
		return writeJSON(w, st)
	case formatYAML:
		return writeYAML(w, st)
	}
	table := newTable(w)
	table.SetHeader([]string{"Statistic", "Value"})
	table.AppendBulk(statsRows(st))
	table.Render()
	return nil
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML renders v with its JSON field names: the value is encoded as
// JSON first and re-read as a generic YAML document.
func writeYAML(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
