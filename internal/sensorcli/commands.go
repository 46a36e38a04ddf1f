package sensorcli

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/relvacode/iso8601"

	service "github.com/okian/sensorboard/internal/app"
	"github.com/okian/sensorboard/internal/auth"
	"github.com/okian/sensorboard/internal/domain/model"
	"github.com/okian/sensorboard/internal/domain/window"
	"github.com/okian/sensorboard/pkg/logger"
)

// Source recorded for readings added by hand.
const sourceCLI = "cli"

const defaultListLimit = 20

func (c *CLI) add(ctx context.Context, args []string) error {
	fs := c.flagSet("add")
	mode := fs.String("m", "", "mode value (0 or 1)")
	ts := fs.String("t", "", "timestamp in ISO 8601 format (default: now)")
	rest, err := parseInterleaved(fs, args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("%w: add takes exactly one value", ErrUsage)
	}

	r := model.Reading{Source: sourceCLI}
	if r.Value, err = model.ParseValue(rest[0]); err != nil {
		return err
	}
	if r.Mode, err = model.ParseMode(*mode); err != nil {
		return err
	}
	if *ts != "" {
		t, err := iso8601.ParseString(*ts)
		if err != nil {
			return fmt.Errorf("%w: invalid timestamp %q, use ISO 8601 (YYYY-MM-DDTHH:MM:SS)", model.ErrValidation, *ts)
		}
		r.Timestamp = t.UTC()
	} else {
		r.Timestamp = c.Now().UTC()
	}

	svc, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	stored, err := svc.Ingest(ctx, r)
	if err != nil {
		return err
	}
	c.Logger.Info(ctx, "reading added", logger.Int64("id", stored.ID))
	fmt.Fprintf(c.Out, "Reading added successfully (ID: %d):\n", stored.ID)
	fmt.Fprintf(c.Out, "  Value: %s\n", formatValue(stored.Value))
	fmt.Fprintf(c.Out, "  Mode: %s\n", formatMode(stored.Mode))
	fmt.Fprintf(c.Out, "  Timestamp: %s\n", stored.Timestamp.Format(time.RFC3339))
	return nil
}

func (c *CLI) list(ctx context.Context, args []string) error {
	fs := c.flagSet("list")
	days := fs.Int("days", 0, "only show readings from the last N days")
	mode := fs.String("m", "", "filter by mode (0 or 1)")
	limit := fs.Int("limit", defaultListLimit, "maximum number of readings to display (0 for all)")
	order := fs.String("sort", "newest", "sort order: newest or oldest")
	format := fs.String("format", formatTable, "output format: table, json or yaml")
	if _, err := parseInterleaved(fs, args); err != nil {
		return err
	}

	if *days < 0 || *limit < 0 {
		return fmt.Errorf("%w: days and limit must not be negative", ErrUsage)
	}
	if *order != "newest" && *order != "oldest" {
		return fmt.Errorf("%w: sort must be newest or oldest", ErrUsage)
	}
	if err := checkFormat(*format); err != nil {
		return err
	}
	spec := window.Spec{}
	var err error
	if spec.Mode, err = model.ParseMode(*mode); err != nil {
		return err
	}
	if *days > 0 {
		now := c.Now().UTC()
		spec.Range = window.Range{Start: now.AddDate(0, 0, -*days)}
	}

	svc, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	readings, err := svc.Query(ctx, spec)
	if err != nil {
		return err
	}
	if *order == "newest" {
		slices.Reverse(readings)
	}
	if *limit > 0 && len(readings) > *limit {
		readings = readings[:*limit]
	}
	return writeReadings(c.Out, *format, readings)
}

func (c *CLI) stats(ctx context.Context, args []string) error {
	fs := c.flagSet("stats")
	name := fs.String("window", string(window.Day), "window: hour, day, week or month")
	format := fs.String("format", formatTable, "output format: table, json or yaml")
	if _, err := parseInterleaved(fs, args); err != nil {
		return err
	}
	w, err := window.Parse(*name)
	if err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}

	svc, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	st, err := svc.Stats(ctx, w)
	if err != nil {
		return err
	}
	return writeStats(c.Out, *format, st)
}

func (c *CLI) hashPassword(_ context.Context, args []string) error {
	fs := c.flagSet("hash-password")
	password := fs.String("password", "", "password to hash (prompted when omitted)")
	if _, err := parseInterleaved(fs, args); err != nil {
		return err
	}
	secret := *password
	if secret == "" {
		var err error
		if secret, err = c.Prompt("Password: "); err != nil {
			return err
		}
	}
	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("%w: password must not be empty", ErrUsage)
	}
	h, err := auth.HashSecret(secret)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.Out, h)
	return nil
}

// statsRows flattens service.Stats for table output.
func statsRows(st service.Stats) [][]string {
	s := st.Summary
	rows := [][]string{
		{"Window", string(st.Window)},
		{"Readings", fmt.Sprint(s.Count)},
		{"Latest", formatLatest(st.Latest)},
		{"Daily average", formatOptional(st.DailyAverage, "%.2f")},
		{"Trend", formatOptional(st.TrendPercent, "%+.1f%%")},
		{"Mean", formatOptional(s.Mean, "%.2f")},
		{"Min", formatOptional(s.Min, "%.2f")},
		{"Max", formatOptional(s.Max, "%.2f")},
		{"P50", formatOptional(s.P50, "%.2f")},
		{"P95", formatOptional(s.P95, "%.2f")},
		{"Slope per hour", formatOptional(s.Slope, "%+.3f")},
	}
	keys := make([]string, 0, len(s.ByMode))
	for k := range s.ByMode {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		rows = append(rows, []string{"Mode " + k, fmt.Sprint(s.ByMode[k])})
	}
	return rows
}

func formatLatest(r *model.Reading) string {
	if r == nil {
		return "n/a"
	}
	return fmt.Sprintf("%s at %s", formatValue(r.Value), r.Timestamp.Format(time.RFC3339))
}

func formatOptional(v *float64, format string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *v)
}

func formatValue(v float64) string { return fmt.Sprintf("%.2f", v) }

func formatMode(m *model.Mode) string {
	if m == nil {
		return "N/A"
	}
	return fmt.Sprint(int(*m))
}
