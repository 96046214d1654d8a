package commands

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fly-io/update-agent/internal/config"
	"github.com/fly-io/update-agent/pkg/apply"
	"github.com/fly-io/update-agent/pkg/artifact"
	"github.com/fly-io/update-agent/pkg/integrity"
	"github.com/fly-io/update-agent/pkg/reboot"
	"github.com/fly-io/update-agent/pkg/security"
)

func TestBuildArtifact(t *testing.T) {
	tests := []struct {
		name    string
		values  []string
		size    int
		corrupt bool
		want    []byte
		wantErr bool
		verify  bool
	}{
		{name: "good fixture", values: []string{"10", "20", "30"}, want: []byte{10, 20, 30, 60}, verify: true},
		{name: "bad fixture", values: []string{"10", "20", "30"}, corrupt: true, want: []byte{10, 20, 30, 61}},
		{name: "wraps modulo 256", values: []string{"200", "100"}, want: []byte{200, 100, 44}, verify: true},
		{name: "generated", size: 300, verify: true},
		{name: "out of range", values: []string{"256"}, wantErr: true},
		{name: "not a number", values: []string{"x"}, wantErr: true},
		{name: "both forms", values: []string{"1"}, size: 4, wantErr: true},
		{name: "nothing", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildArtifact(tt.values, tt.size, tt.corrupt)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != nil && !bytes.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if tt.size > 0 && len(got) != tt.size+1 {
				t.Errorf("len = %d, want %d", len(got), tt.size+1)
			}
			if integrity.NewSum8().Verify(got) != tt.verify {
				t.Errorf("Verify = %v, want %v", !tt.verify, tt.verify)
			}
		})
	}
}

func TestNewHandler(t *testing.T) {
	var buf bytes.Buffer

	h, err := newHandler(&buf, "debug", "json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	slog.New(h).Debug("state_idle", "attempt_id", "a1")
	if !strings.Contains(buf.String(), `"msg":"state_idle"`) {
		t.Errorf("json output = %q", buf.String())
	}

	h, err = newHandler(&buf, "warn", "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}

	if _, err := newHandler(&buf, "loud", "text"); err == nil {
		t.Error("expected error for bad level")
	}
	if _, err := newHandler(&buf, "info", "xml"); err == nil {
		t.Error("expected error for bad format")
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a", "b", "history.db")

	if err := ensureDirectories("", target); err != nil {
		t.Fatalf("ensureDirectories failed: %v", err)
	}
	if info, err := os.Stat(filepath.Dir(target)); err != nil || !info.IsDir() {
		t.Errorf("parent directory not created: %v", err)
	}
}

func TestCollaboratorsFromConfig(t *testing.T) {
	validator := security.NewValidator(1024)

	cfg := &config.Config{ArtifactSource: config.SourceFile, ApplyBackend: config.BackendDelay}
	src, err := newSource(context.Background(), cfg, validator)
	if err != nil {
		t.Fatalf("newSource failed: %v", err)
	}
	if _, ok := src.(*artifact.FileSource); !ok {
		t.Errorf("source = %T, want *artifact.FileSource", src)
	}

	backend, err := newBackend(cfg)
	if err != nil {
		t.Fatalf("newBackend failed: %v", err)
	}
	if _, ok := backend.(apply.DelayBackend); !ok {
		t.Errorf("backend = %T, want apply.DelayBackend", backend)
	}

	cfg.ApplyBackend = config.BackendFile
	cfg.ApplyTarget = filepath.Join(t.TempDir(), "slots", "slot.bin")
	backend, err = newBackend(cfg)
	if err != nil {
		t.Fatalf("newBackend failed: %v", err)
	}
	if fb, ok := backend.(apply.FileBackend); !ok || fb.Target != cfg.ApplyTarget {
		t.Errorf("backend = %#v", backend)
	}

	if _, ok := newRebooter(cfg).(reboot.LogOnly); !ok {
		t.Error("empty reboot command should log only")
	}
	cfg.RebootCommand = "systemctl reboot"
	if rc, ok := newRebooter(cfg).(reboot.Command); !ok || rc.Name != "systemctl" {
		t.Errorf("rebooter = %#v", newRebooter(cfg))
	}
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	printBanner(&buf, "update_artifact_good.bin")

	for _, want := range []string{"update_artifact_good.bin", "--start-update", "--verify", "--apply", "--reboot"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("banner missing %q", want)
		}
	}
}
