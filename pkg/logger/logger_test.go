package logger

import (
	"io"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func resetGlobal() {
	globalLogger = nil
	once = sync.Once{}
}

func TestInit(t *testing.T) {
	resetGlobal()

	cfg := Config{Level: "info", Format: "json"}
	if err := Init(cfg); err != nil {
		t.Fatalf("Init() error = %v, want nil", err)
	}
	if err := Init(cfg); err != nil {
		t.Errorf("Init() second call error = %v, want nil", err)
	}
}

func TestInit_TextFormat(t *testing.T) {
	resetGlobal()

	if err := Init(Config{Level: "debug", Format: "text"}); err != nil {
		t.Fatalf("Init() with text format error = %v, want nil", err)
	}
	Info("text entry", zap.Uint(FieldReportID, 3), zap.String("stage", "Design"))
}

func TestInit_InvalidLevel(t *testing.T) {
	resetGlobal()

	if err := Init(Config{Level: "invalid-level", Format: "json"}); err != nil {
		t.Fatalf("Init() with invalid level should default to info, got error = %v", err)
	}
}

func TestInit_WithFile(t *testing.T) {
	resetGlobal()

	cfg := Config{
		Level:      "info",
		Format:     "text",
		File:       filepath.Join(t.TempDir(), "logs", "stagereport.log"),
		MaxSize:    10,
		MaxAge:     7,
		MaxBackups: 5,
	}
	if err := Init(cfg); err != nil {
		t.Fatalf("Init() with file error = %v, want nil", err)
	}
	Info("written to file")
}

func TestGet_Uninitialized(t *testing.T) {
	resetGlobal()

	if Get() == nil {
		t.Error("Get() returned nil logger")
	}
	if err := Sync(); err != nil {
		t.Errorf("Sync() with uninitialized logger error = %v, want nil", err)
	}
}

func TestHelpers(t *testing.T) {
	resetGlobal()
	Init(Config{Level: "debug", Format: "json"})

	if WithReport(5) == nil {
		t.Error("helper returned nil logger")
	}

	Debug("debug message", zap.String("key", "value"))
	Info("info message", zap.String("key", "value"))
	Warn("warn message", zap.String("key", "value"))
	Error("error message", zap.String("key", "value"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantError bool
	}{
		{"valid debug", "debug", false},
		{"valid warn", "warn", false},
		{"invalid level", "invalid", true},
		{"empty level", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseLevel(tt.level)
			if (err != nil) != tt.wantError {
				t.Errorf("parseLevel(%q) error = %v, wantError = %v", tt.level, err, tt.wantError)
			}
		})
	}
}

type captureWriter struct {
	mu      sync.Mutex
	entries []ReportLogEntry
}

func (w *captureWriter) WriteReportLogs(entries []ReportLogEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, entries...)
	return nil
}

func TestReportLogHook_CapturesTaggedEntries(t *testing.T) {
	writer := &captureWriter{}
	hook := NewReportLogHook(writer)

	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	base := zapcore.NewCore(encoder, zapcore.AddSync(io.Discard), zapcore.DebugLevel)
	l := zap.New(hook.WrapCore(base))

	l.With(zap.Uint(FieldReportID, 7)).Info("rendering", zap.Int("stages", 3))
	l.Info("untagged entry")
	l.Warn("string id", zap.String(FieldReportID, "9"))
	l.Info("zero id", zap.Uint(FieldReportID, 0))

	hook.Close()

	writer.mu.Lock()
	defer writer.mu.Unlock()
	if len(writer.entries) != 2 {
		t.Fatalf("captured %d entries, want 2", len(writer.entries))
	}

	first := writer.entries[0]
	if first.ReportID != 7 || first.Message != "rendering" || first.Level != "info" {
		t.Errorf("unexpected first entry: %+v", first)
	}
	if first.Fields["stages"] != int64(3) {
		t.Errorf("stages field = %v, want 3", first.Fields["stages"])
	}
	if _, ok := first.Fields[FieldReportID]; ok {
		t.Error("report_id should not be duplicated in fields")
	}

	if writer.entries[1].ReportID != 9 || writer.entries[1].Level != "warn" {
		t.Errorf("unexpected second entry: %+v", writer.entries[1])
	}
}
