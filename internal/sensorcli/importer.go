package sensorcli

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/relvacode/iso8601"

	"github.com/okian/sensorboard/internal/domain/model"
	"github.com/okian/sensorboard/pkg/logger"
)

// ErrBadCSV reports a file the importer cannot read at all.
var ErrBadCSV = errors.New("invalid csv")

// ImportResult counts the outcome of an import.
type ImportResult struct {
	Added   int
	Skipped int
}

// Ingester stores one reading. *service.Service satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, r model.Reading) (model.Reading, error)
}

func (c *CLI) importCSV(ctx context.Context, args []string) error {
	fs := c.flagSet("import")
	rest, err := parseInterleaved(fs, args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("%w: import takes exactly one file", ErrUsage)
	}
	path := rest[0]

	f, err := os.Open(path) //nolint:gosec // operator supplied path
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	svc, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := c.ImportReadings(ctx, svc, f, "csv:"+filepath.Base(path))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "Import complete: %d readings added, %d skipped.\n", res.Added, res.Skipped)
	return nil
}

// ImportReadings reads CSV rows from r and ingests each one. The header
// must name a value column; mode and timestamp columns are optional.
// Invalid rows are reported and skipped. An unparsable timestamp falls
// back to the current time with a warning.
func (c *CLI) ImportReadings(ctx context.Context, dst Ingester, r io.Reader, source string) (ImportResult, error) {
	c.defaults()
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return ImportResult{}, fmt.Errorf("%w: file is empty", ErrBadCSV)
	}
	if err != nil {
		return ImportResult{}, fmt.Errorf("%w: %w", ErrBadCSV, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["value"]; !ok {
		return ImportResult{}, fmt.Errorf("%w: CSV file must contain 'value' column", ErrBadCSV)
	}

	var res ImportResult
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Fprintf(c.Err, "Skipping line %d: %v\n", line, err)
			res.Skipped++
			continue
		}

		reading, err := c.parseRow(rec, cols, line)
		if err != nil {
			fmt.Fprintf(c.Err, "Skipping line %d: %v\n", line, err)
			res.Skipped++
			continue
		}
		reading.Source = source
		if _, err := dst.Ingest(ctx, reading); err != nil {
			if errors.Is(err, model.ErrValidation) {
				fmt.Fprintf(c.Err, "Skipping line %d: %v\n", line, err)
				res.Skipped++
				continue
			}
			return res, err
		}
		res.Added++
	}
	c.Logger.Info(ctx, "csv import finished",
		logger.String("source", source),
		logger.Int("added", res.Added),
		logger.Int("skipped", res.Skipped))
	return res, nil
}

func (c *CLI) parseRow(rec []string, cols map[string]int, line int) (model.Reading, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var (
		r   model.Reading
		err error
	)
	if r.Value, err = model.ParseValue(field("value")); err != nil {
		return model.Reading{}, err
	}
	if r.Mode, err = model.ParseMode(field("mode")); err != nil {
		return model.Reading{}, err
	}
	r.Timestamp = c.Now().UTC()
	if ts := field("timestamp"); ts != "" {
		t, err := iso8601.ParseString(ts)
		if err != nil {
			fmt.Fprintf(c.Err, "Warning: invalid timestamp %q on line %d, using current time.\n", ts, line)
		} else {
			r.Timestamp = t.UTC()
		}
	}
	return r, nil
}
