package repository

import (
	"strconv"
	"strings"
	"time"

	"github.com/okian/sensorboard/internal/domain/model"
)

// Both SQL drivers share one schema shape and positional $n placeholders.
const (
	readingColumns = "id, value, mode, ts"
	insertReading  = "INSERT INTO readings (value, mode, ts, source) VALUES ($1, $2, $3, $4) RETURNING id"
	selectLatest   = "SELECT " + readingColumns + " FROM readings ORDER BY ts DESC, id DESC LIMIT 1"
)

// sqlQuery accumulates a WHERE clause and its arguments.
type sqlQuery struct {
	conds []string
	args  []any
}

func (q *sqlQuery) add(cond string, arg any) {
	q.args = append(q.args, arg)
	q.conds = append(q.conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(q.args))))
}

func (q *sqlQuery) where() string {
	if len(q.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.conds, " AND ")
}

func filterQuery(f Filter) *sqlQuery {
	q := &sqlQuery{}
	if !f.From.IsZero() {
		q.add("ts >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		if f.ToExclusive {
			q.add("ts < ?", f.To.UTC())
		} else {
			q.add("ts <= ?", f.To.UTC())
		}
	}
	if f.Mode != nil {
		q.add("mode = ?", int16(*f.Mode))
	}
	return q
}

// buildList renders the SELECT for f.
func buildList(f Filter) (string, []any) {
	q := filterQuery(f)
	var b strings.Builder
	b.WriteString("SELECT " + readingColumns + " FROM readings")
	b.WriteString(q.where())
	if f.Desc {
		b.WriteString(" ORDER BY ts DESC, id DESC")
	} else {
		b.WriteString(" ORDER BY ts ASC, id ASC")
	}
	if f.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		b.WriteString(" OFFSET " + strconv.Itoa(f.Offset))
	}
	return b.String(), q.args
}

// buildCount renders the COUNT(*) for f.
func buildCount(f Filter) (string, []any) {
	q := filterQuery(f)
	return "SELECT COUNT(*) FROM readings" + q.where(), q.args
}

// modeArg converts an optional mode to a nullable SQL argument.
func modeArg(m *model.Mode) any {
	if m == nil {
		return nil
	}
	return int16(*m)
}

// modeFromNull converts a scanned nullable mode back.
func modeFromNull(valid bool, v int64) *model.Mode {
	if !valid {
		return nil
	}
	return model.Mode(v).Ptr()
}

// stamp fills a missing timestamp and normalizes to UTC at microsecond
// precision, which is what both databases keep.
func stamp(r model.Reading, now func() time.Time) model.Reading {
	if r.Timestamp.IsZero() {
		r.Timestamp = now()
	}
	r.Timestamp = r.Timestamp.UTC().Truncate(time.Microsecond)
	return r
}
