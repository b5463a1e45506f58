package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/seatsync/seatsync/internal/config"
	"github.com/seatsync/seatsync/internal/models"
	"github.com/seatsync/seatsync/internal/seats"
)

// captureStdout swaps os.Stdout for a pipe while f runs. Tests using it
// must not run in parallel.
func captureStdout(t *testing.T, f func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	done := make(chan []byte)
	go func() {
		var buf bytes.Buffer
		io.Copy(&buf, r) //nolint:errcheck // test pipe
		done <- buf.Bytes()
	}()

	f()
	w.Close()
	out := <-done
	r.Close()
	return string(out)
}

func tableLines(out string) []string {
	return strings.Split(strings.TrimRight(out, "\n"), "\n")
}

func TestFormatJSON_SeatView(t *testing.T) {
	view := seats.SeatView{SeatNumber: "A1", Status: seats.StatusMine, Owner: models.ID("u1"), Pending: true}

	got := captureStdout(t, func() { formatJSON(view) })

	var out seats.SeatView
	if err := json.Unmarshal([]byte(got), &out); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, got)
	}
	if out.SeatNumber != "A1" || out.Status != seats.StatusMine || !out.Pending {
		t.Errorf("round trip lost fields: %+v", out)
	}
	if !strings.Contains(got, "\n  ") {
		t.Errorf("expected indented JSON, got: %s", got)
	}
}

func TestFormatTable(t *testing.T) {
	headers := []string{"SEAT", "STATUS", "OWNER"}
	rows := [][]string{
		{"A1", "locked-by-me", "user-42"},
		{"B12", "booked", "Someone Else Entirely"},
	}

	lines := tableLines(captureStdout(t, func() { formatTable(headers, rows) }))
	if len(lines) != 4 {
		t.Fatalf("expected header, separator and 2 rows, got %d:\n%s", len(lines), strings.Join(lines, "\n"))
	}
	for _, h := range headers {
		if !strings.Contains(lines[0], h) {
			t.Errorf("header line missing %q: %s", h, lines[0])
		}
	}
	if strings.Trim(lines[1], "- ") != "" {
		t.Errorf("separator has unexpected characters: %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "A1 ") || !strings.Contains(lines[3], "Someone Else Entirely") {
		t.Errorf("rows not rendered:\n%s\n%s", lines[2], lines[3])
	}
	if strings.Index(lines[2], "locked-by-me") != strings.Index(lines[3], "booked") {
		t.Errorf("STATUS column not aligned:\n%s\n%s", lines[2], lines[3])
	}
}

func TestFormatTable_EmptyStillPrintsHeader(t *testing.T) {
	lines := tableLines(captureStdout(t, func() { formatTable([]string{"ID", "URL"}, nil) }))
	if len(lines) != 2 || !strings.Contains(lines[0], "URL") {
		t.Fatalf("expected header and separator, got %q", lines)
	}
}

func TestFormatTable_RuneWidths(t *testing.T) {
	rows := [][]string{{"Amélie"}, {"Heat"}}
	lines := tableLines(captureStdout(t, func() { formatTable([]string{"TITLE"}, rows) }))
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if utf8.RuneCountInString(lines[2]) != utf8.RuneCountInString(lines[3]) {
		t.Errorf("rows not aligned by rune width:\n%q\n%q", lines[2], lines[3])
	}
}

func TestOutput(t *testing.T) {
	orig := flagFmt
	defer func() { flagFmt = orig }()

	v := map[string]int{"delivered": 2, "remaining": 1}
	for _, format := range []string{"json", "table"} {
		flagFmt = format
		got := captureStdout(t, func() { output(v, "1") })
		var out map[string]int
		if err := json.Unmarshal([]byte(got), &out); err != nil {
			t.Fatalf("%s: expected JSON: %v\n%s", format, err, got)
		}
		if out["delivered"] != 2 {
			t.Errorf("%s: delivered = %d", format, out["delivered"])
		}
	}

	flagFmt = "quiet"
	if got := strings.TrimSpace(captureStdout(t, func() { output(v, "1") })); got != "1" {
		t.Errorf("quiet output = %q, want 1", got)
	}
}

func TestClip(t *testing.T) {
	if got := clip("seat  just\ntaken"); got != "seat just taken" {
		t.Errorf("clip collapsed whitespace = %q", got)
	}
	got := clip(strings.Repeat("x", maxCell+10))
	if utf8.RuneCountInString(got) != maxCell || !strings.HasSuffix(got, "...") {
		t.Errorf("clipped cell = %q (%d runes)", got, utf8.RuneCountInString(got))
	}
}

func TestTimeCells(t *testing.T) {
	if clockTime(time.Time{}) != "-" || stamp(time.Time{}) != "-" {
		t.Error("zero times should render as -")
	}
	ts := time.Date(2026, 3, 14, 18, 30, 5, 0, time.Local)
	if got := clockTime(ts); got != "18:30:05" {
		t.Errorf("clockTime = %q", got)
	}
	if got := stamp(ts); got != "2026-03-14 18:30:05" {
		t.Errorf("stamp = %q", got)
	}
}

func TestVersionString(t *testing.T) {
	origCommit, origDate := commit, buildDate
	defer func() { commit, buildDate = origCommit, origDate }()

	commit, buildDate = "", ""
	if s := versionString(); !strings.HasSuffix(s, "-dev") || !strings.Contains(s, config.Version) {
		t.Errorf("dev build string = %q", s)
	}

	commit, buildDate = "abc1234", "2026-01-01"
	s := versionString()
	if !strings.Contains(s, "abc1234") || !strings.Contains(s, "2026-01-01") || strings.HasSuffix(s, "-dev") {
		t.Errorf("release build string = %q", s)
	}
}
