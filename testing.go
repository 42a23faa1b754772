package walredo

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ondracky/walredo/internal/constants"
	"github.com/ondracky/walredo/internal/logging"
)

// SetRedoTimeoutForTesting overrides the external process handle's redo
// deadline for the duration of a test, restoring it on cleanup.
func SetRedoTimeoutForTesting(t *testing.T, d time.Duration) {
	t.Helper()
	prev := redoTimeout
	redoTimeout = d
	t.Cleanup(func() { redoTimeout = prev })
}

// FakeConfigProvider implements interfaces.ConfigProvider against a
// temporary directory, for tests that need a ConfigProvider but never
// actually launch initdb or postgres.
type FakeConfigProvider struct {
	Root string
}

// NewFakeConfigProvider returns a FakeConfigProvider rooted at t.TempDir().
func NewFakeConfigProvider(t *testing.T) *FakeConfigProvider {
	t.Helper()
	return &FakeConfigProvider{Root: t.TempDir()}
}

func (f *FakeConfigProvider) TenantPath(tenantID string) string {
	return filepath.Join(f.Root, "tenants", tenantID)
}

func (f *FakeConfigProvider) PgBinDir() string {
	return filepath.Join(f.Root, "pg", "bin")
}

func (f *FakeConfigProvider) PgLibDir() string {
	return filepath.Join(f.Root, "pg", "lib")
}

// FakeChild is a goroutine-driven stand-in for a `postgres --wal-redo`
// child, wired to an ExternalProcessHandle through ordinary pipes. It reads
// framed messages off what the handle sees as its stdin pipe and replies
// however the supplied behavior function decides.
type FakeChild struct {
	Handle *ExternalProcessHandle
	done   chan struct{}
}

// FakeChildBehavior receives the fully-assembled request buffer the handle
// wrote (B, optional P, zero or more A, then G) and returns the page to
// answer with. A behavior that wants to simulate a hung child should select
// on stop and return nil once it fires, so test cleanup can still join the
// goroutine after the assertion under test has already observed a timeout.
type FakeChildBehavior func(request []byte, stop <-chan struct{}) (response []byte)

// NewFakeChild wires an ExternalProcessHandle to a goroutine that reads the
// full request off the handle's write side and invokes behavior to decide
// how to respond.
func NewFakeChild(t *testing.T, behavior FakeChildBehavior) *FakeChild {
	t.Helper()

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}

	handle := newExternalProcessHandleForTesting(stdinW, stdoutR, stderrR, logging.NewLogger(logging.DefaultConfig()))
	for _, fd := range []*os.File{stdinW, stdoutR, stderrR} {
		if err := unix.SetNonblock(int(fd.Fd()), true); err != nil {
			t.Fatalf("set nonblock: %v", err)
		}
	}

	fc := &FakeChild{Handle: handle, done: make(chan struct{})}
	stop := make(chan struct{})

	go func() {
		defer close(fc.done)

		// A real postgres --wal-redo child keeps stderr open across a
		// GetPage; close it only once the test is done with this child so
		// the handle's stderr-priority hangup check never races a
		// still-pending stdout read on the success path.
		defer func() {
			<-stop
			stderrW.Close()
		}()

		defer stdinR.Close()
		defer stdoutW.Close()

		request := readFramedRequest(stdinR)
		page := behavior(request, stop)
		if page != nil {
			stdoutW.Write(page)
		}
	}()

	t.Cleanup(func() {
		close(stop)
		<-fc.done
	})

	return fc
}

// readFramedRequest blocks until it has read one full B..G message sequence
// off r, by tracking the codec's own framing.
func readFramedRequest(r io.Reader) []byte {
	var buf []byte
	header := make([]byte, 5)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			return buf
		}
		length := binary.BigEndian.Uint32(header[1:5])
		payload := make([]byte, int(length)-4)
		if len(payload) > 0 {
			if _, err := io.ReadFull(r, payload); err != nil {
				return buf
			}
		}
		buf = append(buf, header...)
		buf = append(buf, payload...)
		if header[0] == 'G' {
			return buf
		}
	}
}

// EchoBaseImageBehavior is a FakeChildBehavior that replies with whatever
// base image was pushed via 'P', matching scenario 6 of the package's
// external-process tests: a child that echoes the pushed page back.
func EchoBaseImageBehavior(request []byte, _ <-chan struct{}) []byte {
	off := 0
	for off < len(request) {
		tag := request[off]
		length := binary.BigEndian.Uint32(request[off+1 : off+5])
		payload := request[off+5 : off+1+int(length)]
		if tag == 'P' {
			return payload[bufferTagWireSize:]
		}
		off += 1 + int(length)
	}
	return make([]byte, constants.PageSize)
}

// ShortWriteThenCloseBehavior simulates a child that writes fewer than a
// full page and then closes its stdout, exercising the handle's broken-pipe
// path.
func ShortWriteThenCloseBehavior(n int) FakeChildBehavior {
	return func(request []byte, _ <-chan struct{}) []byte {
		return make([]byte, n)
	}
}

// NeverRespondBehavior simulates a hung child: it never writes a response,
// exercising the handle's timeout path. It blocks until the test's cleanup
// signals stop, so the fake child's goroutine still exits cleanly.
func NeverRespondBehavior(request []byte, stop <-chan struct{}) []byte {
	<-stop
	return nil
}
