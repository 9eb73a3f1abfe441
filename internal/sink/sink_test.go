package sink

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/retarget/internal/geom"
	"github.com/ayusman/retarget/internal/retarget"
	"github.com/ayusman/retarget/internal/rig"
)

// writeSink creates a sink directory holding a manifest and a shell script.
func writeSink(t *testing.T, root string, manifest Manifest, script string) string {
	t.Helper()

	dir := filepath.Join(root, manifest.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create sink dir: %v", err)
	}
	data, err := json.Marshal(manifest)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	if script != "" {
		if err := os.WriteFile(filepath.Join(dir, manifest.Executable), []byte(script), 0755); err != nil {
			t.Fatalf("failed to write script: %v", err)
		}
	}
	return dir
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}
}

const echoScript = `#!/bin/sh
INPUT=$(cat)
echo "{\"success\":true,\"data\":$INPUT}"
`

func TestExecutor_Execute_ReadsStdin(t *testing.T) {
	skipOnWindows(t)

	root := t.TempDir()
	manifest := Manifest{Name: "echo", Version: "1.0.0", Executable: "echo.sh"}
	dir := writeSink(t, root, manifest, echoScript)

	s := &Sink{
		Manifest:   manifest,
		Path:       dir,
		Executable: filepath.Join(dir, "echo.sh"),
		Bones:      rig.PrefixedBoneMap("mixamorig:"),
	}

	rot := retarget.IdentityRotations()
	rot[retarget.LeftUpperArm] = geom.AxisAngle(geom.Forward, 0.3)
	req := NewRequest(s, "session-1", 7, rot, geom.Vec3{Y: 1})

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), s, req)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	var received Request
	if err := json.Unmarshal(resp.Data, &received); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}
	if received.Session != "session-1" || received.Sequence != 7 {
		t.Errorf("expected session-1/7, got %s/%d", received.Session, received.Sequence)
	}
	if received.Root != [3]float64{0, 1, 0} {
		t.Errorf("expected root (0,1,0), got %v", received.Root)
	}
	arm, ok := received.Rotations["mixamorig:LeftUpperArm"]
	if !ok {
		t.Fatalf("expected prefixed bone names, got %v", received.Rotations)
	}
	want := wireRotation(rot[retarget.LeftUpperArm])
	if arm != want {
		t.Errorf("expected %v, got %v", want, arm)
	}
}

func TestExecutor_Failures(t *testing.T) {
	skipOnWindows(t)

	tests := []struct {
		name    string
		script  string
		timeout time.Duration
		want    string
	}{
		{"timeout", "#!/bin/sh\nsleep 10\necho '{\"success\":true}'\n", 100 * time.Millisecond, "timed out"},
		{"exit status", "#!/bin/sh\necho boom >&2\nexit 3\n", 5 * time.Second, "boom"},
		{"bad json", "#!/bin/sh\necho not-json\n", 5 * time.Second, "parse"},
		{"rejected", "#!/bin/sh\necho '{\"success\":false,\"error\":\"rig offline\"}'\n", 5 * time.Second, "rig offline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manifest := Manifest{Name: "failing", Executable: "run.sh"}
			dir := writeSink(t, t.TempDir(), manifest, tt.script)
			s := &Sink{Manifest: manifest, Path: dir, Executable: filepath.Join(dir, "run.sh"), Bones: rig.CanonicalBoneMap()}

			_, err := NewExecutor(tt.timeout).Execute(context.Background(), s, &Request{})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestManager_Discover(t *testing.T) {
	root := t.TempDir()
	writeSink(t, root, Manifest{Name: "b-prefixed", Executable: "run", BonePrefix: "mixamorig:"}, "")
	writeSink(t, root, Manifest{Name: "a-mapped", Executable: "run", BoneMap: map[string]string{"pelvis": "Hips"}}, "")
	writeSink(t, root, Manifest{Name: "bad-map", Executable: "run", BoneMap: map[string]string{"x": "Tail"}}, "")

	// Directories without a manifest and stray files are ignored.
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "README"), []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(root, NewExecutor(time.Second))
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	sinks := m.List()
	if len(sinks) != 2 {
		t.Fatalf("expected 2 sinks, got %d", len(sinks))
	}
	if sinks[0].Manifest.Name != "a-mapped" {
		t.Errorf("expected sorted list, got %q first", sinks[0].Manifest.Name)
	}
	if b, ok := sinks[0].Bones.Lookup("pelvis"); !ok || b != retarget.Hips {
		t.Errorf("expected pelvis to map to Hips, got %v %v", b, ok)
	}
	if name, _ := sinks[1].Bones.Name(retarget.Chest); name != "mixamorig:Chest" {
		t.Errorf("expected mixamorig:Chest, got %q", name)
	}

	if _, err := m.Get("nope"); !errors.Is(err, ErrSinkNotFound) {
		t.Errorf("expected ErrSinkNotFound, got %v", err)
	}
}

func TestManager_Discover_MissingDir(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "absent"), NewExecutor(time.Second))
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() failed on missing dir: %v", err)
	}
	if len(m.List()) != 0 {
		t.Error("expected no sinks")
	}
}

func TestManager_Send(t *testing.T) {
	skipOnWindows(t)

	root := t.TempDir()
	okDir := writeSink(t, root, Manifest{Name: "ok", Executable: "ok.sh"},
		"#!/bin/sh\ncat > last.json\necho '{\"success\":true}'\n")
	writeSink(t, root, Manifest{Name: "broken", Executable: "broken.sh"}, "#!/bin/sh\nexit 1\n")

	m := NewManager(root, NewExecutor(5*time.Second))
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	err := m.Send(context.Background(), "s", 1, retarget.IdentityRotations(), geom.Vec3{})
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Errorf("expected error naming the broken sink, got %v", err)
	}

	// The healthy sink still received the frame.
	data, err := os.ReadFile(filepath.Join(okDir, "last.json"))
	if err != nil {
		t.Fatalf("ok sink did not run: %v", err)
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		t.Fatalf("bad request: %v", err)
	}
	if len(req.Rotations) != len(retarget.SolvedBones) {
		t.Errorf("expected %d rotations, got %d", len(retarget.SolvedBones), len(req.Rotations))
	}
	if len(req.Unmapped) != 0 {
		t.Errorf("expected no unmapped bones, got %v", req.Unmapped)
	}
}

func TestNewRequest_Unmapped(t *testing.T) {
	bones, err := rig.NewBoneMap(map[string]string{"pelvis": "Hips"})
	if err != nil {
		t.Fatal(err)
	}
	s := &Sink{Manifest: Manifest{Name: "partial"}, Bones: bones}

	req := NewRequest(s, "s", 1, retarget.IdentityRotations(), geom.Vec3{})
	if len(req.Rotations) != 1 {
		t.Errorf("expected 1 rotation, got %d", len(req.Rotations))
	}
	if len(req.Unmapped) != len(retarget.SolvedBones)-1 {
		t.Errorf("expected %d unmapped, got %d", len(retarget.SolvedBones)-1, len(req.Unmapped))
	}
}
