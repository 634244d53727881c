package e2e_tests

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"cobolc/pkg/compiler"
	"cobolc/pkg/vm"
)

// syncBuffer lets the test read what the program has displayed so far
// while the program is still running.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(out *syncBuffer, text string) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), text) {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func TestInteractiveProgram(t *testing.T) {
	source := strings.Join([]string{
		"       IDENTIFICATION DIVISION.",
		"       PROGRAM-ID. ECHOD.",
		"       DATA DIVISION.",
		"       WORKING-STORAGE SECTION.",
		"       01 CMD PIC X(10).",
		"       01 SEEN PIC 9(3) VALUE 0.",
		"       PROCEDURE DIVISION.",
		"       MAIN.",
		"           DISPLAY 'READY'.",
		"           ACCEPT CMD.",
		"           PERFORM HANDLE-CMD UNTIL CMD = 'QUIT'.",
		"           DISPLAY 'SEEN ' SEEN.",
		"           STOP RUN.",
		"       HANDLE-CMD.",
		"           ADD 1 TO SEEN.",
		"           DISPLAY 'GOT ' CMD.",
		"           ACCEPT CMD.",
	}, "\n") + "\n"

	res, err := compiler.Compile(source, compiler.Options{})
	if err != nil {
		t.Fatalf("Compilation failed: %v", err)
	}

	in, feed := io.Pipe()
	out := &syncBuffer{}
	m := vm.New(res.Module, vm.WithInput(in), vm.WithOutput(out))

	done := make(chan error, 1)
	go func() { done <- m.Run() }()

	if !waitFor(out, "READY") {
		feed.Close()
		t.Fatalf("Program never became ready. Output:\n%s", out.String())
	}

	// The program must wait for each line before answering it.
	if _, err := io.WriteString(feed, "HELLO\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !waitFor(out, "GOT HELLO") {
		feed.Close()
		t.Fatalf("Timeout waiting for the first answer. Output:\n%s", out.String())
	}
	if strings.Contains(out.String(), "SEEN") {
		t.Errorf("Program finished before QUIT. Output:\n%s", out.String())
	}

	if _, err := io.WriteString(feed, "WORLD\nQUIT\n"); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		feed.Close()
		t.Fatalf("Program did not stop. Output:\n%s", out.String())
	}

	want := "READY\nGOT HELLO     \nGOT WORLD     \nSEEN 2  \n"
	if got := out.String(); got != want {
		t.Errorf("Expected output %q, got %q", want, got)
	}
}
