package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tinytelemetry/hubtrail/internal/seqstore"
)

func seedStore(t *testing.T, dir string, payloads ...string) {
	t.Helper()
	store, err := seqstore.Open(dir)
	if err != nil {
		t.Fatalf("seqstore.Open: %v", err)
	}
	defer store.Close()
	for _, p := range payloads {
		if _, err := store.Append([]byte(p)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
}

func TestExportImportCommands(t *testing.T) {
	srcDir := t.TempDir()
	seedStore(t, srcDir, "a", "b")

	exportPath := filepath.Join(t.TempDir(), "events.txt")
	var stderr bytes.Buffer
	if err := runExport(appConfig{DataDir: srcDir}, []string{exportPath}, nil, &stderr); err != nil {
		t.Fatalf("runExport: %v", err)
	}
	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(data) != "1:a\n2:b\n" {
		t.Fatalf("export = %q, want %q", data, "1:a\n2:b\n")
	}
	if !strings.Contains(stderr.String(), "exported 2 records") {
		t.Fatalf("stderr = %q", stderr.String())
	}

	dstDir := t.TempDir()
	seedStore(t, dstDir, "x")
	stderr.Reset()
	if err := runImport(appConfig{}, []string{"--data-dir", dstDir, exportPath}, nil, &stderr); err != nil {
		t.Fatalf("runImport: %v", err)
	}
	if !strings.Contains(stderr.String(), "imported 2 records") || !strings.Contains(stderr.String(), "seq 2..3") {
		t.Fatalf("stderr = %q", stderr.String())
	}

	var stdout bytes.Buffer
	if err := runExport(appConfig{DataDir: dstDir}, []string{"-"}, &stdout, &stderr); err != nil {
		t.Fatalf("runExport stdout: %v", err)
	}
	if stdout.String() != "1:x\n2:a\n3:b\n" {
		t.Fatalf("re-export = %q", stdout.String())
	}
}

func TestImportFromStdinBase64(t *testing.T) {
	dir := t.TempDir()
	var stderr bytes.Buffer
	in := strings.NewReader("1:aGVsbG8=\n2:d29ybGQ=\n")
	if err := runImport(appConfig{DataDir: dir}, []string{"--encoding", "base64", "-"}, in, &stderr); err != nil {
		t.Fatalf("runImport: %v", err)
	}

	var stdout bytes.Buffer
	if err := runExport(appConfig{DataDir: dir}, []string{"-"}, &stdout, &stderr); err != nil {
		t.Fatalf("runExport: %v", err)
	}
	if stdout.String() != "1:hello\n2:world\n" {
		t.Fatalf("export = %q", stdout.String())
	}
}

func TestExportUnframeableSuggestsBase64(t *testing.T) {
	dir := t.TempDir()
	seedStore(t, dir, "ok", "battery\n10")

	var stdout, stderr bytes.Buffer
	err := runExport(appConfig{DataDir: dir}, []string{"-"}, &stdout, &stderr)
	if err == nil {
		t.Fatal("raw export of a payload with a newline succeeded")
	}
	if !strings.Contains(err.Error(), "seq 2") || !strings.Contains(err.Error(), "--encoding base64") {
		t.Fatalf("error = %q, want seq 2 and a base64 hint", err)
	}

	stdout.Reset()
	if err := runExport(appConfig{DataDir: dir}, []string{"--encoding", "base64", "-"}, &stdout, &stderr); err != nil {
		t.Fatalf("base64 export: %v", err)
	}
	if stdout.String() != "1:b2s=\n2:YmF0dGVyeQoxMA==\n" {
		t.Fatalf("base64 export = %q", stdout.String())
	}
}

func TestExchangeCommandErrors(t *testing.T) {
	dir := t.TempDir()
	var stderr bytes.Buffer

	tests := []struct {
		name string
		run  func() error
		want string
	}{
		{"export missing file", func() error { return runExport(appConfig{DataDir: dir}, nil, nil, &stderr) }, "exactly one FILE"},
		{"export bad encoding", func() error {
			return runExport(appConfig{DataDir: dir}, []string{"--encoding", "hex", "-"}, nil, &stderr)
		}, "unknown encoding"},
		{"import json", func() error {
			return runImport(appConfig{DataDir: dir}, []string{"--encoding", "json", "-"}, nil, &stderr)
		}, "export-only"},
		{"import missing file", func() error {
			return runImport(appConfig{DataDir: dir}, []string{filepath.Join(dir, "nope.txt")}, nil, &stderr)
		}, "no such file"},
		{"export ephemeral", func() error {
			return runExport(appConfig{Ephemeral: true}, []string{"-"}, nil, &stderr)
		}, "ephemeral"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want substring %q", err, tt.want)
			}
		})
	}
}
