package eula

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/schaermu/mcmod/internal/errkind"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestPrompter(autoAgree bool, answer string, interactive bool) (*Prompter, *bytes.Buffer) {
	var out bytes.Buffer
	p := NewPrompter(autoAgree, testLogger())
	p.In = strings.NewReader(answer)
	p.Out = &out
	p.Interactive = func() bool { return interactive }
	return p, &out
}

func readEULA(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("expected %s: %v", FileName, err)
	}
	return string(data)
}

func TestEnsure(t *testing.T) {
	tests := []struct {
		name        string
		existing    string
		autoAgree   bool
		answer      string
		interactive bool
		wantErr     bool
		wantPrompt  bool
	}{
		{name: "already agreed", existing: "#By changing the setting below\neula=true\n"},
		{name: "already agreed with padding", existing: "  eula=true  \r\n"},
		{name: "auto agree", existing: "eula=false\n", autoAgree: true},
		{name: "user agrees", answer: "y\n", interactive: true, wantPrompt: true},
		{name: "user agrees uppercase", answer: " Y \n", interactive: true, wantPrompt: true},
		{name: "user declines", answer: "n\n", interactive: true, wantPrompt: true, wantErr: true},
		{name: "empty answer declines", answer: "", interactive: true, wantPrompt: true, wantErr: true},
		{name: "no terminal", answer: "y\n", interactive: false, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.existing != "" {
				if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tt.existing), 0644); err != nil {
					t.Fatal(err)
				}
			}

			p, out := newTestPrompter(tt.autoAgree, tt.answer, tt.interactive)
			err := p.Ensure(dir)

			if prompted := strings.Contains(out.String(), "(y/N)"); prompted != tt.wantPrompt {
				t.Errorf("prompted = %v, want %v", prompted, tt.wantPrompt)
			}

			if tt.wantErr {
				if !errkind.Is(err, errkind.Cancelled) {
					t.Fatalf("expected Cancelled, got %v", err)
				}
				if tt.existing == "" {
					if _, err := os.Stat(filepath.Join(dir, FileName)); !os.IsNotExist(err) {
						t.Error("eula.txt must not be written when declined")
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("Ensure failed: %v", err)
			}
			if tt.existing == "" || tt.autoAgree {
				if got := readEULA(t, dir); got != "eula=true" {
					t.Errorf("expected eula=true, got %q", got)
				}
			}
		})
	}
}

func TestAgreed_MissingRunDir(t *testing.T) {
	ok, err := Agreed(filepath.Join(t.TempDir(), "missing"))
	if err != nil || ok {
		t.Errorf("expected not agreed without error, got %v, %v", ok, err)
	}
}
