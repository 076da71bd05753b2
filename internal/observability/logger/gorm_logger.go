package logger

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// RedactedValue replaces a bound value that must not reach the logs.
const RedactedValue = "[redacted]"

// Invoice tables keep their bound values in query logs so a failed write can
// be traced to an invoice or line. Money columns are still masked. Every other
// table (users, sessions, customers, payment events) logs placeholders only.
var (
	invoiceTables = map[string]bool{
		"invoices":                true,
		"invoice_items":           true,
		"recurring_invoices":      true,
		"recurring_invoice_items": true,
	}
	amountColumns = map[string]bool{
		"amount": true,
	}
)

var (
	tablePattern       = regexp.MustCompile(`(?i)\b(?:FROM|INTO|UPDATE|JOIN)\s+[` + "`" + `"]?([\w.]+)`)
	insertPattern      = regexp.MustCompile(`(?is)^\s*INSERT\s+INTO\s+\S+\s*\(([^)]*)\)\s*VALUES`)
	placeholderPattern = regexp.MustCompile(`\?|\$\d+`)
	comparedPattern    = regexp.MustCompile(`([\w.` + "`" + `"]+)\s*(?:=|<>|!=|>=|<=|<|>)\s*$`)
)

// GormLoggerConfig configures the GORM zap logger.
type GormLoggerConfig struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration
}

// DefaultGormLoggerConfig logs failed and slow statements.
func DefaultGormLoggerConfig() GormLoggerConfig {
	return GormLoggerConfig{
		Level:         gormlogger.Warn,
		SlowThreshold: 200 * time.Millisecond,
	}
}

// GormLogger bridges GORM statement logs into zap as `gorm.query` entries.
type GormLogger struct {
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func NewGormLogger(cfg GormLoggerConfig) *GormLogger {
	return &GormLogger{level: cfg.Level, slowThreshold: cfg.SlowThreshold}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	copy := *l
	copy.level = level
	return &copy
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		FromContext(ctx).Info(msg, zap.String("component", "gorm"), zap.Any("data", data))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		FromContext(ctx).Warn(msg, zap.String("component", "gorm"), zap.Any("data", data))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		FromContext(ctx).Error(msg, zap.String("component", "gorm"), zap.Any("data", data))
	}
}

// Trace logs failed statements as errors and slow ones as warnings. A missing
// row is an expected lookup outcome (404) and is never logged.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound) && l.level >= gormlogger.Error:
		l.logQuery(ctx, fc, elapsed, err, zap.ErrorLevel)
	case l.slowThreshold != 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		l.logQuery(ctx, fc, elapsed, nil, zap.WarnLevel)
	case l.level >= gormlogger.Info:
		l.logQuery(ctx, fc, elapsed, nil, zap.DebugLevel)
	}
}

// ParamsFilter decides which bound values GORM may inline into the logged SQL.
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, params ...interface{}) (string, []interface{}) {
	if !invoiceTables[tableFromSQL(sql)] {
		return sql, nil
	}
	columns := bindColumns(sql, len(params))
	out := make([]interface{}, len(params))
	for i, param := range params {
		if amountColumns[columns[i]] {
			out[i] = RedactedValue
			continue
		}
		out[i] = param
	}
	return sql, out
}

func (l *GormLogger) logQuery(ctx context.Context, fc func() (string, int64), elapsed time.Duration, err error, level zapcore.Level) {
	sql, rows := fc()
	fields := []zap.Field{
		zap.String("component", "gorm"),
		zap.String("sql", strings.TrimSpace(sql)),
		zap.String("operation", operationFromSQL(sql)),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if table := tableFromSQL(sql); table != "" {
		fields = append(fields, zap.String("table", table))
		if invoiceTables[table] {
			fields = append(fields, zap.Bool("invoice_data", true))
		}
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	log := FromContext(ctx)
	switch level {
	case zap.ErrorLevel:
		log.Error("gorm.query", fields...)
	case zap.WarnLevel:
		log.Warn("gorm.query", fields...)
	default:
		log.Debug("gorm.query", fields...)
	}
}

func operationFromSQL(sql string) string {
	for _, token := range strings.Fields(strings.ToUpper(sql)) {
		token = strings.Trim(token, "();")
		switch token {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			return token
		case "WITH":
			continue
		}
	}
	return "UNKNOWN"
}

// tableFromSQL returns the first table a statement reads or writes, unquoted
// and without schema.
func tableFromSQL(sql string) string {
	match := tablePattern.FindStringSubmatch(sql)
	if match == nil {
		return ""
	}
	return unqualify(match[1])
}

// bindColumns names the column each of the n bound values is written to or
// compared against. Unknown positions stay empty.
func bindColumns(sql string, n int) []string {
	columns := make([]string, n)
	if n == 0 {
		return columns
	}

	if match := insertPattern.FindStringSubmatch(sql); match != nil {
		names := strings.Split(match[1], ",")
		for i := range columns {
			columns[i] = unqualify(names[i%len(names)])
		}
		return columns
	}

	next := 0
	for _, loc := range placeholderPattern.FindAllStringIndex(sql, -1) {
		index := next
		if sql[loc[0]] == '$' {
			parsed, err := strconv.Atoi(sql[loc[0]+1 : loc[1]])
			if err != nil {
				continue
			}
			index = parsed - 1
		} else {
			next++
		}
		if index < 0 || index >= n {
			continue
		}
		if match := comparedPattern.FindStringSubmatch(sql[:loc[0]]); match != nil {
			columns[index] = unqualify(match[1])
		}
	}
	return columns
}

func unqualify(name string) string {
	name = strings.Trim(strings.TrimSpace(name), "`\"")
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		name = strings.Trim(name[idx+1:], "`\"")
	}
	return strings.ToLower(name)
}

var _ gormlogger.Interface = (*GormLogger)(nil)
var _ gorm.ParamsFilter = (*GormLogger)(nil)
