// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	logger.Info("run finished", RunIDKey, "r1", DurationKey, 42)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["msg"] != "run finished" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
	if entry[RunIDKey] != "r1" {
		t.Errorf("missing run_id field: %v", entry)
	}
}

func TestNewTextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "debug", Format: FormatText, Output: &buf})

	logger.Debug("selecting adapter", AdapterIDKey, "null")

	out := buf.String()
	if !strings.Contains(out, "selecting adapter") || !strings.Contains(out, "adapter_id=null") {
		t.Errorf("unexpected text output: %q", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "warn", Format: FormatJSON, Output: &buf})

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level: %q", buf.String())
	}
	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Error("warn should pass at warn level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("NEXUS_ROUTER_DEBUG", "")
	t.Setenv("NEXUS_ROUTER_LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "text")
	cfg := FromEnv()
	if cfg.Level != "warn" || cfg.Format != FormatText {
		t.Errorf("unexpected config: %+v", cfg)
	}

	t.Setenv("NEXUS_ROUTER_DEBUG", "1")
	cfg = FromEnv()
	if cfg.Level != "debug" || !cfg.AddSource {
		t.Errorf("debug env should force debug+source: %+v", cfg)
	}
}

func TestWithHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	WithRunID(WithComponent(logger, "router"), "r9").Info("x")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["component"] != "router" || entry[RunIDKey] != "r9" {
		t.Errorf("missing fields: %v", entry)
	}
}
