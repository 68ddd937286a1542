package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/san-kum/odesim/internal/config"
)

func testMeta() RunMetadata {
	return RunMetadata{
		System:      "decay",
		Integrator:  "rk4",
		Timestamp:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		T1:          1,
		Steps:       100,
		Evaluations: 401,
		Metrics:     map[string]float64{"mean_step": 0.01},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	meta := testMeta()
	meta.Sensitivity = &Sensitivity{
		StateJacobian:      [][]float64{{0.5}},
		ParameterJacobians: map[string][]float64{"k": {-0.25}},
	}
	times := []float64{0, 0.5, 1}
	states := [][]float64{{1}, {0.6065306597126334}, {0.36787944117144233}}

	runID, err := st.Save(meta, config.GetPreset("decay", "unit"), times, states)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID != "decay_1767323045" {
		t.Errorf("unexpected run id %q", runID)
	}

	loaded, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.System != "decay" || loaded.Evaluations != 401 || loaded.ID != runID {
		t.Errorf("unexpected metadata %+v", loaded)
	}
	if loaded.Metrics["mean_step"] != 0.01 {
		t.Errorf("expected mean_step 0.01, got %f", loaded.Metrics["mean_step"])
	}
	if loaded.Sensitivity == nil || loaded.Sensitivity.ParameterJacobians["k"][0] != -0.25 {
		t.Errorf("sensitivity lost: %+v", loaded.Sensitivity)
	}

	gotTimes, gotStates, err := st.LoadStates(runID)
	if err != nil {
		t.Fatalf("load states failed: %v", err)
	}
	if len(gotTimes) != 3 || len(gotStates) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(gotStates))
	}
	// full precision round trip
	if gotStates[2][0] != states[2][0] || gotTimes[1] != 0.5 {
		t.Errorf("precision lost: %v %v", gotTimes, gotStates)
	}

	cfg, err := st.LoadConfig(runID)
	if err != nil {
		t.Fatalf("load config failed: %v", err)
	}
	if cfg.System != "decay" {
		t.Errorf("expected system decay, got %s", cfg.System)
	}
}

func TestStoreUniqueIDs(t *testing.T) {
	st := New(t.TempDir())
	first, err := st.Save(testMeta(), nil, []float64{0}, [][]float64{{1}})
	if err != nil {
		t.Fatal(err)
	}
	second, err := st.Save(testMeta(), nil, []float64{0}, [][]float64{{1}})
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Errorf("duplicate run id %q", first)
	}
	if second != first+"_1" {
		t.Errorf("unexpected second id %q", second)
	}
}

func TestStoreList(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	older := testMeta()
	newer := testMeta()
	newer.System = "lorenz"
	newer.Timestamp = older.Timestamp.Add(time.Hour)
	for _, m := range []RunMetadata{newer, older} {
		if _, err := st.Save(m, nil, []float64{0}, [][]float64{{1}}); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "stray.txt"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].System != "decay" || runs[1].System != "lorenz" {
		t.Errorf("runs not ordered by time: %s, %s", runs[0].System, runs[1].System)
	}
}

func TestStoreErrors(t *testing.T) {
	st := New(t.TempDir())

	if _, err := st.Load("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if _, _, err := st.LoadStates("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := st.Save(testMeta(), nil, []float64{0, 1}, [][]float64{{1}}); err == nil {
		t.Error("expected error for mismatched rows")
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	runID, err := st.Save(testMeta(), config.DefaultConfig(), []float64{0}, [][]float64{{1}})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runDir := filepath.Join(tmpDir, runID)
	for _, name := range []string{"metadata.json", "states.csv", "config.yaml"} {
		if _, err := os.Stat(filepath.Join(runDir, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}
}

func TestExport(t *testing.T) {
	st := New(t.TempDir())
	runID, err := st.Save(testMeta(), nil, []float64{0, 1}, [][]float64{{1, 2}, {3, 4}})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := st.Export(&buf, runID); err != nil {
		t.Fatal(err)
	}

	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatal(err)
	}
	if data.ID != runID || data.System != "decay" {
		t.Errorf("unexpected metadata %+v", data.RunMetadata)
	}
	if len(data.States) != 2 || data.States[1][1] != 4 {
		t.Errorf("unexpected states %v", data.States)
	}

	path := filepath.Join(t.TempDir(), "out.json")
	if err := ExportJSONFile(path, data.RunMetadata, data.Times, data.States); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error(err)
	}
}
