package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/san-kum/e3deploy/internal/dynamo"
)

func testSamples() []Sample {
	return []Sample{
		{Time: 0, Torque: []float64{1.5, -2}, JointVel: []float64{0.1, 0.2}},
		{Time: 0.02, Torque: []float64{1.25, -1}, JointVel: []float64{0.3, -0.4}},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	meta := RunMetadata{
		Config:     "e3.yaml",
		Dt:         0.002,
		Decimation: 10,
		Joints:     []string{"hip", "knee"},
		Metrics:    map[string]float64{"tracking_error": 0.12},
	}
	runID, err := st.Save(meta, testSamples())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if _, err := uuid.Parse(runID); err != nil {
		t.Errorf("expected uuid run id, got %q", runID)
	}

	loaded, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Config != "e3.yaml" {
		t.Errorf("expected config 'e3.yaml', got '%s'", loaded.Config)
	}
	if loaded.Samples != 2 {
		t.Errorf("expected 2 samples, got %d", loaded.Samples)
	}
	if loaded.Metrics["tracking_error"] != 0.12 {
		t.Errorf("expected tracking_error 0.12, got %f", loaded.Metrics["tracking_error"])
	}

	samples, err := st.LoadSamples(runID)
	if err != nil {
		t.Fatalf("load samples failed: %v", err)
	}
	if diff := cmp.Diff(testSamples(), samples); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreList(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "runs"))

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list on missing dir failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	older := RunMetadata{ID: "older", Timestamp: time.Now().Add(-time.Hour)}
	newer := RunMetadata{ID: "newer", Timestamp: time.Now()}
	for _, m := range []RunMetadata{older, newer} {
		if _, err := st.Save(m, nil); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}
	if err := os.MkdirAll(filepath.Join(st.Dir(), "junk"), 0755); err != nil {
		t.Fatal(err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "newer" {
		t.Errorf("expected newest run first, got %s", runs[0].ID)
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	runID, err := st.Save(RunMetadata{Joints: []string{"a", "b"}}, testSamples())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runDir := filepath.Join(tmpDir, runID)
	for _, name := range []string{"metadata.json", "samples.csv"} {
		if _, err := os.Stat(filepath.Join(runDir, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}

	data, err := os.ReadFile(filepath.Join(runDir, "samples.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("time,tau0,tau1,dq0,dq1\n")) {
		t.Errorf("unexpected header: %q", bytes.SplitN(data, []byte("\n"), 2)[0])
	}
}

func TestStoreMissingRun(t *testing.T) {
	st := New(t.TempDir())
	if _, err := st.Load("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := st.LoadSamples("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestExportJSON(t *testing.T) {
	st := New(t.TempDir())
	runID, err := st.Save(RunMetadata{Joints: []string{"a", "b"}}, testSamples())
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := st.ExportJSON(&buf, runID); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatal(err)
	}
	if data.Meta.ID != runID || len(data.Times) != 2 || data.Torques[1][0] != 1.25 {
		t.Errorf("unexpected export: %+v", data)
	}
}

func TestRecorderWindow(t *testing.T) {
	r := NewRecorder(0.05)
	for i := 0; i < 10; i++ {
		r.OnTick(dynamo.Tick{Time: 1 + float64(i)*0.02, Torque: []float64{float64(i)}, JointVel: []float64{0}})
	}

	if got := len(r.Samples()); got != 3 {
		t.Errorf("expected 3 samples in a 0.05s window, got %d", got)
	}
	if r.Samples()[0].Time != 0 {
		t.Errorf("sample times should be relative to the window start")
	}
	if !r.Full(1.2) {
		t.Error("window should be full")
	}

	r.Restart()
	if len(r.Samples()) != 0 || r.Full(1.2) {
		t.Error("restart should open a fresh window")
	}
}

func TestRecorderDisabled(t *testing.T) {
	r := NewRecorder(0)
	r.OnTick(dynamo.Tick{Time: 0, Torque: []float64{1}})
	if r.Enabled() || len(r.Samples()) != 0 {
		t.Error("zero window should record nothing")
	}
}
