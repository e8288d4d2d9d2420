package cmdutils

import (
	"bytes"
	"testing"
)

func TestPrintResponse(t *testing.T) {
	var buf bytes.Buffer
	PrintResponse(&buf, "")
	if buf.Len() != 0 {
		t.Fatalf("empty answer printed %q", buf.String())
	}
	PrintResponse(&buf, "hello")
	if got, want := buf.String(), "\n"+Logo+" core\nhello\n\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPrintNotice(t *testing.T) {
	var buf bytes.Buffer
	PrintNotice(&buf, "Using %s", "shell()")
	if got := buf.String(); got != "  ↳ Using shell()\n" {
		t.Errorf("got %q", got)
	}
}
