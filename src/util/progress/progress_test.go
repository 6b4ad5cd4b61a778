package progress

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestReader_ReportsTotal(t *testing.T) {
	var out bytes.Buffer
	r := NewReader(strings.NewReader(strings.Repeat("x", 2048)), 2048, "d1.dash", &out)
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2048 || r.BytesRead() != 2048 {
		t.Fatalf("read %d bytes, counted %d", n, r.BytesRead())
	}
	s := out.String()
	if !strings.Contains(s, "[d1.dash] 100.0% (2.0 kB/2.0 kB)") {
		t.Fatalf("missing final progress line: %q", s)
	}
	if !strings.HasSuffix(s, "\n") {
		t.Fatalf("final line must end with a newline: %q", s)
	}
}

func TestReader_UnknownTotal(t *testing.T) {
	var out bytes.Buffer
	r := NewReader(strings.NewReader("abc"), -1, "m1.smodel", &out)
	if _, err := io.Copy(io.Discard, r); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "[m1.smodel] 3 B") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestReader_NilOutput(t *testing.T) {
	r := NewReader(strings.NewReader("abc"), 3, "x", nil)
	if _, err := io.Copy(io.Discard, r); err != nil {
		t.Fatal(err)
	}
	if r.BytesRead() != 3 {
		t.Fatalf("counted %d bytes", r.BytesRead())
	}
}
