package output_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/torosent/checkfire/internal/output"
)

func TestWriteReportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.json")
	r := sampleReport()

	if err := output.WriteReportFile(path, r); err != nil {
		t.Fatalf("WriteReportFile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if decoded["run_id"] != r.RunID {
		t.Fatalf("run_id = %v", decoded["run_id"])
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind: %v", err)
	}
}

func TestWriteReportFileConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.json")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := sampleReport()
			r.RunID = output.NewRunID()
			errs <- output.WriteReportFile(path, r)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("WriteReportFile() error = %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("interleaved writes produced invalid JSON: %v", err)
	}
}

func TestWriteReportFileEmptyPath(t *testing.T) {
	if err := output.WriteReportFile("", sampleReport()); err == nil {
		t.Fatal("expected error for empty path")
	}
}
