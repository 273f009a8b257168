package main

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestBuildLogger(t *testing.T) {
	dev := buildLogger(true)
	defer dev.Sync()
	if !dev.Core().Enabled(zapcore.DebugLevel) {
		t.Error("Expected development logger to enable debug output")
	}

	prod := buildLogger(false)
	defer prod.Sync()
	if prod.Core().Enabled(zapcore.DebugLevel) {
		t.Error("Expected production logger to suppress debug output")
	}
	if !prod.Core().Enabled(zapcore.InfoLevel) {
		t.Error("Expected production logger to emit info output")
	}
}
