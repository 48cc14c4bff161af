package app

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	logx "shakethefrog/pkg/logx"
)

func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "script.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestLoadLocal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	missing := filepath.Join(dir, "nope.yaml")
	if _, err := LoadLocal(missing, false, logx.Nop()); err == nil {
		t.Fatalf("required missing config accepted")
	}
	local, err := LoadLocal(missing, true, logx.Nop())
	if err != nil {
		t.Fatalf("LoadLocal optional: %v", err)
	}
	if local.Skins.Default().ID != "frog" {
		t.Fatalf("default skin = %q, want frog", local.Skins.Default().ID)
	}

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("play:\n  skin: toad\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadLocal(path, true, logx.Nop()); err == nil || !strings.Contains(err.Error(), "play.skin") {
		t.Fatalf("LoadLocal err = %v, want play.skin", err)
	}
}

func TestSimulate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, dir, `
seed: 7
steps:
  - { at: 0ms, input: key }
  - { at: 2s, input: click }
until: 4s
`)

	var text bytes.Buffer
	if err := Simulate("", true, script, "text", &text); err != nil {
		t.Fatalf("Simulate text: %v", err)
	}
	if !strings.Contains(text.String(), "start") {
		t.Fatalf("text timeline missing start:\n%s", text.String())
	}

	var out bytes.Buffer
	if err := Simulate("", true, script, "json", &out); err != nil {
		t.Fatalf("Simulate json: %v", err)
	}
	var tl struct {
		Summary struct {
			Starts int `json:"starts"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(out.Bytes(), &tl); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if tl.Summary.Starts != 2 {
		t.Fatalf("starts = %d, want 2", tl.Summary.Starts)
	}

	if err := Simulate("", true, script, "xml", &out); err == nil {
		t.Fatalf("unknown format accepted")
	}
}
