package store

import (
	"context"
	"database/sql/driver"
	"regexp"
	"strings"
	"time"

	"github.com/ngrok/sqlmw"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	tableLabel  = "table"
	verbLabel   = "verb"
	resultLabel = "result"

	tableOther = "other"
	verbTx     = "transaction"
)

var (
	verbRegex  = regexp.MustCompile(`^\s*(\w+)`)
	tableRegex = regexp.MustCompile(`(?i)\b(?:from|into|update)\s+"?(\w+)"?`)

	// tables reported by name, everything else is folded into "other"
	knownTables = map[string]bool{
		"uploads":      true,
		"analyses":     true,
		"audit_events": true,
		"river_job":    true,
	}

	dbQueryLatency *prometheus.HistogramVec
	dbQueryTotal   *prometheus.CounterVec
)

func init() {
	dbQueryLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "db_query_duration_milliseconds",
		Help:      "Time spent on a database statement per table and verb",
		Subsystem: "retina_dashboard",
		Buckets:   []float64{5, 25, 100, 300, 1000, 5000},
	},
		[]string{tableLabel, verbLabel},
	)
	dbQueryTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "db_query_total",
		Help:      "Number of database statements per table, verb and result",
		Subsystem: "retina_dashboard",
	},
		[]string{tableLabel, verbLabel, resultLabel},
	)

	prometheus.MustRegister(dbQueryLatency)
	prometheus.MustRegister(dbQueryTotal)
}

// classify returns the table and verb of a statement, e.g. ("uploads", "update") for the
// conditional update that moves an upload to processing.
func classify(query string) (table, verb string) {
	verb = "unknown"
	if m := verbRegex.FindStringSubmatch(query); m != nil {
		verb = strings.ToLower(m[1])
	}

	table = tableOther
	if m := tableRegex.FindStringSubmatch(query); m != nil {
		if name := strings.ToLower(m[1]); knownTables[name] {
			table = name
		}
	}
	return table, verb
}

type metricInterceptor struct {
	sqlmw.NullInterceptor
}

func (mi *metricInterceptor) ConnExecContext(ctx context.Context, conn driver.ExecerContext, query string, args []driver.NamedValue) (driver.Result, error) {
	start := time.Now()
	result, err := conn.ExecContext(ctx, query, args)

	table, verb := classify(query)
	mi.measure(table, verb, start, err)
	return result, err
}

func (mi *metricInterceptor) ConnQueryContext(ctx context.Context, conn driver.QueryerContext, query string, args []driver.NamedValue) (context.Context, driver.Rows, error) {
	start := time.Now()
	rows, err := conn.QueryContext(ctx, query, args)

	table, verb := classify(query)
	mi.measure(table, verb, start, err)
	return ctx, rows, err
}

func (mi *metricInterceptor) ConnBeginTx(ctx context.Context, conn driver.ConnBeginTx, opts driver.TxOptions) (context.Context, driver.Tx, error) {
	start := time.Now()
	tx, err := conn.BeginTx(ctx, opts)

	mi.measure(tableOther, verbTx+"-begin", start, err)
	return ctx, tx, err
}

func (mi *metricInterceptor) TxCommit(ctx context.Context, conn driver.Tx) error {
	start := time.Now()
	err := conn.Commit()

	mi.measure(tableOther, verbTx+"-commit", start, err)
	return err
}

func (mi *metricInterceptor) TxRollback(ctx context.Context, conn driver.Tx) error {
	start := time.Now()
	err := conn.Rollback()

	mi.measure(tableOther, verbTx+"-rollback", start, err)
	return err
}

func (mi *metricInterceptor) measure(table, verb string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	dbQueryTotal.With(prometheus.Labels{
		tableLabel:  table,
		verbLabel:   verb,
		resultLabel: result,
	}).Inc()

	dbQueryLatency.With(prometheus.Labels{
		tableLabel: table,
		verbLabel:  verb,
	}).Observe(float64(time.Since(start).Milliseconds()))
}
