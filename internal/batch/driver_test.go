package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/voxlab/cv-transcriber/internal/dataset"
)

// fakeASR answers like the transcription service: the transcription echoes
// the uploaded file name so tests can match rows to results.
func fakeASR(t *testing.T, failFor string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		if header.Filename == failFor {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"detail": "ASR failed: decode error"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"transcription": "text for " + header.Filename,
			"duration":      "3.20",
		})
	}))
}

func writeAudioFiles(t *testing.T, names ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, n := range names {
		p := filepath.Join(root, n)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("fake audio"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func tableFromCSV(t *testing.T, csv string) *dataset.Table {
	t.Helper()
	table, err := dataset.Read(strings.NewReader(csv))
	if err != nil {
		t.Fatal(err)
	}
	return table
}

func TestRunAppendsColumnsInOrder(t *testing.T) {
	srv := fakeASR(t, "")
	defer srv.Close()

	root := writeAudioFiles(t, "a.mp3", "b.mp3", "c.mp3")
	table := tableFromCSV(t, "filename,text\na.mp3,one\nb.mp3,two\nc.mp3,three\n")

	driver := NewDriver(NewClient(srv.URL, time.Minute), root, 3)
	m, err := driver.Run(context.Background(), table, "test")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(table.Rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(table.Rows))
	}
	for i, want := range []string{"a.mp3", "b.mp3", "c.mp3"} {
		got, _ := table.Get(i, "generated_text")
		if got != "text for "+want {
			t.Errorf("Row %d: expected transcript for %s, got %q", i, want, got)
		}
		if d, _ := table.Get(i, "duration"); d != "3.20" {
			t.Errorf("Row %d: expected duration '3.20', got %q", i, d)
		}
	}
	if m.Transcribed != 3 {
		t.Errorf("Expected 3 transcribed, got %d", m.Transcribed)
	}
}

func TestRunMissingFileGetsEmptyResult(t *testing.T) {
	srv := fakeASR(t, "")
	defer srv.Close()

	// Ten rows; row index 3 references a file that does not exist.
	names := make([]string, 0, 9)
	var csv strings.Builder
	csv.WriteString("filename,text\n")
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("clip-%d.mp3", i)
		if i != 3 {
			names = append(names, name)
		}
		fmt.Fprintf(&csv, "%s,row %d\n", name, i)
	}
	root := writeAudioFiles(t, names...)
	table := tableFromCSV(t, csv.String())

	driver := NewDriver(NewClient(srv.URL, time.Minute), root, 4)
	m, err := driver.Run(context.Background(), table, "test")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(table.Rows) != 10 {
		t.Fatalf("Expected 10 rows, got %d", len(table.Rows))
	}
	for i := 0; i < 10; i++ {
		text, _ := table.Get(i, "generated_text")
		duration, _ := table.Get(i, "duration")
		orig, _ := table.Get(i, "text")
		if orig != fmt.Sprintf("row %d", i) {
			t.Errorf("Row %d: original column disturbed: %q", i, orig)
		}
		if i == 3 {
			if text != "" || duration != "0.0" {
				t.Errorf("Row 3: expected empty result, got %q / %q", text, duration)
			}
			continue
		}
		if text == "" || duration != "3.20" {
			t.Errorf("Row %d: expected a transcript, got %q / %q", i, text, duration)
		}
	}
	if m.SkippedRows != 1 {
		t.Errorf("Expected 1 skipped row, got %d", m.SkippedRows)
	}
}

func TestRunServerErrorDoesNotAbortBatch(t *testing.T) {
	srv := fakeASR(t, "b.mp3")
	defer srv.Close()

	root := writeAudioFiles(t, "a.mp3", "b.mp3", "c.mp3")
	table := tableFromCSV(t, "filename\na.mp3\nb.mp3\nc.mp3\n")

	driver := NewDriver(NewClient(srv.URL, time.Minute), root, 1)
	m, err := driver.Run(context.Background(), table, "test")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if text, _ := table.Get(1, "generated_text"); text != "" {
		t.Errorf("Expected empty transcript for failed row, got %q", text)
	}
	if d, _ := table.Get(1, "duration"); d != "0.0" {
		t.Errorf("Expected duration '0.0' for failed row, got %q", d)
	}
	if text, _ := table.Get(2, "generated_text"); text != "text for c.mp3" {
		t.Errorf("Row after the failure should still transcribe, got %q", text)
	}
	if m.FailedRows != 1 {
		t.Errorf("Expected 1 failed row, got %d", m.FailedRows)
	}
	if m.Transcribed != 2 {
		t.Errorf("Expected 2 transcribed, got %d", m.Transcribed)
	}
}

func TestRunMissingReferenceColumn(t *testing.T) {
	srv := fakeASR(t, "")
	defer srv.Close()

	table := tableFromCSV(t, "text\nno reference here\n")
	driver := NewDriver(NewClient(srv.URL, time.Minute), t.TempDir(), 1)
	m, err := driver.Run(context.Background(), table, "test")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if text, _ := table.Get(0, "generated_text"); text != "" {
		t.Errorf("Expected empty transcript, got %q", text)
	}
	if m.SkippedRows != 1 {
		t.Errorf("Expected 1 skipped row, got %d", m.SkippedRows)
	}
}

func TestRunOverwritesOnRerun(t *testing.T) {
	srv := fakeASR(t, "")
	defer srv.Close()

	root := writeAudioFiles(t, "a.mp3")
	table := tableFromCSV(t, "filename\na.mp3\n")

	driver := NewDriver(NewClient(srv.URL, time.Minute), root, 1)
	for run := 0; run < 2; run++ {
		if _, err := driver.Run(context.Background(), table, "test"); err != nil {
			t.Fatalf("Run %d failed: %v", run, err)
		}
	}

	if got := len(table.Columns); got != 3 {
		t.Errorf("Expected 3 columns after two runs, got %d (%v)", got, table.Columns)
	}
}
