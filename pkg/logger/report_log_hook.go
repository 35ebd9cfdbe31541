package logger

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

const (
	// FieldReportID is the field key for report ID in log entries
	FieldReportID = "report_id"
	// FieldProjectID is the field key for project ID in log entries
	FieldProjectID = "project_id"
	// FieldUserID is the field key for user ID in log entries
	FieldUserID = "user_id"

	// bufferSize is the size of the log buffer before flushing to storage
	bufferSize = 100
	// flushInterval is the interval for periodic buffer flushing
	flushInterval = 5 * time.Second
)

// ReportLogEntry is one captured log line of a report generation.
// The logger package keeps its own type so it does not depend on the data model.
type ReportLogEntry struct {
	Time     time.Time
	ReportID uint
	Level    string
	Message  string
	Caller   string
	Fields   map[string]interface{}
}

// ReportLogWriter persists batches of captured report log entries.
type ReportLogWriter interface {
	WriteReportLogs(entries []ReportLogEntry) error
}

// ReportLogHook captures logs containing a report_id field
// and writes them to storage in batches.
type ReportLogHook struct {
	writer ReportLogWriter

	buffer []ReportLogEntry
	mu     sync.Mutex

	// in-flight writes, so Close can wait for them
	writes sync.WaitGroup

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewReportLogHook creates a new ReportLogHook with the given writer.
func NewReportLogHook(writer ReportLogWriter) *ReportLogHook {
	hook := &ReportLogHook{
		writer: writer,
		buffer: make([]ReportLogEntry, 0, bufferSize),
		stopCh: make(chan struct{}),
	}

	hook.wg.Add(1)
	go hook.backgroundFlush()

	return hook
}

// reportLogCore wraps a zapcore.Core to intercept logs and capture report entries.
type reportLogCore struct {
	zapcore.Core
	hook   *ReportLogHook
	fields []zapcore.Field
}

// WrapCore wraps a zapcore.Core with the hook.
func (h *ReportLogHook) WrapCore(core zapcore.Core) zapcore.Core {
	return &reportLogCore{
		Core: core,
		hook: h,
	}
}

// With creates a new Core with additional fields.
func (c *reportLogCore) With(fields []zapcore.Field) zapcore.Core {
	newFields := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	newFields = append(newFields, c.fields...)
	newFields = append(newFields, fields...)

	return &reportLogCore{
		Core:   c.Core.With(fields),
		hook:   c.hook,
		fields: newFields,
	}
}

// Check determines whether the supplied Entry should be logged.
func (c *reportLogCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

// Write writes to the wrapped core, then captures the entry if it carries a report id.
func (c *reportLogCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if err := c.Core.Write(entry, fields); err != nil {
		return err
	}

	allFields := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	allFields = append(allFields, c.fields...)
	allFields = append(allFields, fields...)

	reportID, ok := extractReportID(allFields)
	if !ok {
		return nil
	}

	caller := ""
	if entry.Caller.Defined {
		caller = entry.Caller.TrimmedPath()
	}

	c.hook.addToBuffer(ReportLogEntry{
		Time:     entry.Time,
		ReportID: reportID,
		Level:    entry.Level.String(),
		Message:  entry.Message,
		Caller:   caller,
		Fields:   serializeFields(allFields),
	})

	return nil
}

// Sync flushes any buffered logs.
func (c *reportLogCore) Sync() error {
	c.hook.Flush()
	return c.Core.Sync()
}

func (h *ReportLogHook) addToBuffer(entry ReportLogEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buffer = append(h.buffer, entry)
	if len(h.buffer) >= bufferSize {
		h.flushLocked()
	}
}

// Flush writes all buffered logs to storage.
func (h *ReportLogHook) Flush() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.flushLocked()
}

// flushLocked hands the buffer to the writer; must be called with lock held.
func (h *ReportLogHook) flushLocked() {
	if len(h.buffer) == 0 {
		return
	}

	entries := h.buffer
	h.buffer = make([]ReportLogEntry, 0, bufferSize)

	h.writes.Add(1)
	go func(entries []ReportLogEntry) {
		defer h.writes.Done()
		if err := h.writer.WriteReportLogs(entries); err != nil {
			// stderr, not the logger: logging here would recurse into the hook
			fmt.Fprintf(os.Stderr, "Failed to write report logs: %v\n", err)
		}
	}(entries)
}

func (h *ReportLogHook) backgroundFlush() {
	defer h.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.Flush()
		case <-h.stopCh:
			h.Flush()
			return
		}
	}
}

// Close stops the background flushing and waits for pending writes.
func (h *ReportLogHook) Close() {
	close(h.stopCh)
	h.wg.Wait()
	h.writes.Wait()
}

// extractReportID finds the report id among the fields.
func extractReportID(fields []zapcore.Field) (uint, bool) {
	for _, field := range fields {
		if field.Key != FieldReportID {
			continue
		}
		switch field.Type {
		case zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type,
			zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type:
			if field.Integer > 0 {
				return uint(field.Integer), true
			}
		case zapcore.StringType:
			if id, err := strconv.ParseUint(field.String, 10, 64); err == nil && id > 0 {
				return uint(id), true
			}
		}
	}
	return 0, false
}

// serializeFields converts the fields to a plain map for storage.
func serializeFields(fields []zapcore.Field) map[string]interface{} {
	data := make(map[string]interface{})
	for _, field := range fields {
		if field.Key == FieldReportID {
			continue
		}

		switch field.Type {
		case zapcore.StringType:
			data[field.Key] = field.String
		case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type:
			data[field.Key] = field.Integer
		case zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
			data[field.Key] = uint64(field.Integer)
		case zapcore.BoolType:
			data[field.Key] = field.Integer == 1
		case zapcore.DurationType:
			data[field.Key] = time.Duration(field.Integer).String()
		case zapcore.ErrorType:
			if err, ok := field.Interface.(error); ok && err != nil {
				data[field.Key] = err.Error()
			}
		default:
			if field.Interface != nil {
				data[field.Key] = fmt.Sprint(field.Interface)
			}
		}
	}
	return data
}
