// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"disabled", zerolog.Disabled},
		{"WARN", zerolog.WarnLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewTestLoggerWritesJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewTestLogger(&buf)
	logger.Info().Str("component", "test").Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"component":"test"`) {
		t.Errorf("expected structured field in output, got %q", out)
	}
	if !strings.Contains(out, `"message":"hello"`) {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestSlogHandlerForwardsToZerolog(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	defer SetLogger(zerolog.Nop())

	slogger := slog.New(NewSlogHandler())
	slogger.Info("service started", slog.String("service", "http"), slog.Int("port", 8080))

	out := buf.String()
	if !strings.Contains(out, `"service":"http"`) {
		t.Errorf("expected string attr in output, got %q", out)
	}
	if !strings.Contains(out, `"port":8080`) {
		t.Errorf("expected int attr in output, got %q", out)
	}
	if !strings.Contains(out, `"message":"service started"`) {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestSlogHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	defer SetLogger(zerolog.Nop())

	slogger := slog.New(NewSlogHandler()).WithGroup("supervisor")
	slogger.Warn("restarting", slog.String("service", "sweeper"))

	if !strings.Contains(buf.String(), `"supervisor.service":"sweeper"`) {
		t.Errorf("expected group-prefixed key, got %q", buf.String())
	}
}

func TestSlogHandlerNestedGroupsOutermostFirst(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	defer SetLogger(zerolog.Nop())

	slogger := slog.New(NewSlogHandler()).WithGroup("supervisor").WithGroup("api")
	slogger.Warn("restarting", slog.String("service", "http"))

	if !strings.Contains(buf.String(), `"supervisor.api.service":"http"`) {
		t.Errorf("expected outermost-first key, got %q", buf.String())
	}
}

func TestSlogHandlerInlineGroupAttr(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	defer SetLogger(zerolog.Nop())

	slogger := slog.New(NewSlogHandler()).WithGroup("tree")
	slogger.Info("event", slog.Group("child", slog.String("name", "sweeper")))

	if !strings.Contains(buf.String(), `"tree.child.name":"sweeper"`) {
		t.Errorf("expected nested group key tree.child.name, got %q", buf.String())
	}
}
