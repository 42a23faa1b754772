package walredo

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ondracky/walredo/internal/constants"
	"github.com/ondracky/walredo/internal/interfaces"
	"github.com/ondracky/walredo/internal/logging"
	"github.com/ondracky/walredo/internal/pagepool"
)

// redoTimeout is the deadline for a single redo transaction. It is a
// variable rather than a direct use of constants.RedoTimeout so tests can
// shrink it to exercise the timeout path without a real 20-second wait.
var redoTimeout = constants.RedoTimeout

type processState int

const (
	processIdle processState = iota
	processInTransaction
	processFailed
)

// ExternalProcessHandle owns a running `postgres --wal-redo` child and its
// three piped standard streams. A handle is single-use past its first
// failure: Failed is terminal and implies the caller kills and discards it.
type ExternalProcessHandle struct {
	child  *exec.Cmd
	stdin  *os.File
	stdout *os.File
	stderr *os.File
	state  processState
	logger *logging.Logger
}

// LaunchExternalProcess runs initdb against a fresh per-tenant data
// directory, configures it for wal-redo mode, and spawns the redo child with
// non-blocking piped standard streams.
func LaunchExternalProcess(cfg interfaces.ConfigProvider, tenantID, extensionName string, logger *logging.Logger) (*ExternalProcessHandle, error) {
	datadir := cfg.TenantPath(tenantID) + "/wal-redo-datadir"

	if err := os.RemoveAll(datadir); err != nil {
		return nil, WrapIOError("LaunchExternalProcess", err)
	}

	env := []string{
		"LD_LIBRARY_PATH=" + cfg.PgLibDir(),
		"DYLD_LIBRARY_PATH=" + cfg.PgLibDir(),
	}

	initdb := exec.Command(cfg.PgBinDir()+"/initdb", "-D", datadir, "-N")
	initdb.Env = env
	if out, err := initdb.CombinedOutput(); err != nil {
		return nil, NewError("LaunchExternalProcess", KindIO, fmt.Sprintf("initdb failed: %v: %s", err, out))
	}

	conf := fmt.Sprintf("\nshared_buffers=128kB\nfsync=off\nshared_preload_libraries=%s\n%s.wal_redo=on\n", extensionName, extensionName)
	f, err := os.OpenFile(datadir+"/postgresql.conf", os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, WrapIOError("LaunchExternalProcess", err)
	}
	if _, err := f.WriteString(conf); err != nil {
		f.Close()
		return nil, WrapIOError("LaunchExternalProcess", err)
	}
	if err := f.Close(); err != nil {
		return nil, WrapIOError("LaunchExternalProcess", err)
	}

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, WrapIOError("LaunchExternalProcess", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, WrapIOError("LaunchExternalProcess", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		return nil, WrapIOError("LaunchExternalProcess", err)
	}

	child := exec.Command(cfg.PgBinDir()+"/postgres", "--wal-redo")
	child.Env = append(env, "PGDATA="+datadir)
	child.Stdin = stdinR
	child.Stdout = stdoutW
	child.Stderr = stderrW

	if err := child.Start(); err != nil {
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return nil, WrapIOError("LaunchExternalProcess", err)
	}

	stdinR.Close()
	stdoutW.Close()
	stderrW.Close()

	for _, fd := range []*os.File{stdinW, stdoutR, stderrR} {
		if err := unix.SetNonblock(int(fd.Fd()), true); err != nil {
			child.Process.Kill()
			return nil, WrapIOError("LaunchExternalProcess", err)
		}
	}

	return &ExternalProcessHandle{
		child:  child,
		stdin:  stdinW,
		stdout: stdoutR,
		stderr: stderrR,
		state:  processIdle,
		logger: logger.WithTenant(tenantID),
	}, nil
}

// ApplyWALRecords drives one complete redo transaction through the child
// over its non-blocking pipes and returns the redone page.
func (h *ExternalProcessHandle) ApplyWALRecords(tag BufferTag, baseImg []byte, records []RedoRecord) ([]byte, error) {
	if h.state != processIdle {
		return nil, NewError("ApplyWALRecords", KindInvalidState, "external process handle is not idle")
	}
	h.state = processInTransaction

	writeBuf := BuildApplyWALRecordsMessage(tag, baseImg, records)
	writeCursor := 0

	readBuf := pagepool.Get()
	readCursor := 0

	// Blind write: an idle child's stdin is virtually always writable.
	if n, err := unix.Write(int(h.stdin.Fd()), writeBuf); err == nil {
		writeCursor += n
	}

	deadline := time.Now().Add(redoTimeout)

	for readCursor < constants.PageSize {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			pagepool.Put(readBuf)
			h.state = processFailed
			return nil, newSubError("ApplyWALRecords", "timeout", "WAL redo timed out")
		}

		fds := []unix.PollFd{
			{Fd: int32(h.stdout.Fd()), Events: unix.POLLIN},
			{Fd: int32(h.stderr.Fd()), Events: unix.POLLIN},
			{Fd: int32(h.stdin.Fd()), Events: 0},
		}
		if writeCursor < len(writeBuf) {
			fds[2].Events = unix.POLLOUT
		}

		n, err := unix.Poll(fds, int(remaining.Milliseconds())+1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			pagepool.Put(readBuf)
			h.state = processFailed
			return nil, WrapIOError("ApplyWALRecords", err)
		}
		if n == 0 {
			pagepool.Put(readBuf)
			h.state = processFailed
			return nil, newSubError("ApplyWALRecords", "timeout", "WAL redo timed out")
		}

		if fds[1].Revents&(unix.POLLIN|unix.POLLHUP) != 0 {
			drained, hungUp, derr := h.drainStderr()
			if derr != nil {
				pagepool.Put(readBuf)
				h.state = processFailed
				return nil, WrapIOError("ApplyWALRecords", derr)
			}
			if hungUp && drained == 0 {
				pagepool.Put(readBuf)
				h.state = processFailed
				return nil, newSubError("ApplyWALRecords", "broken_pipe", "wal redo stderr closed")
			}
			continue
		}

		if fds[2].Events == unix.POLLOUT && fds[2].Revents&unix.POLLHUP != 0 {
			pagepool.Put(readBuf)
			h.state = processFailed
			return nil, newSubError("ApplyWALRecords", "broken_pipe", "wal redo stdin closed")
		}
		if fds[2].Events == unix.POLLOUT && fds[2].Revents&unix.POLLOUT != 0 {
			wn, werr := unix.Write(int(h.stdin.Fd()), writeBuf[writeCursor:])
			if werr != nil && werr != unix.EAGAIN {
				pagepool.Put(readBuf)
				h.state = processFailed
				return nil, WrapIOError("ApplyWALRecords", werr)
			}
			if wn > 0 {
				writeCursor += wn
			}
		}

		if fds[0].Revents&unix.POLLIN != 0 {
			rn, rerr := unix.Read(int(h.stdout.Fd()), readBuf[readCursor:])
			if rerr != nil && rerr != unix.EAGAIN {
				pagepool.Put(readBuf)
				h.state = processFailed
				return nil, WrapIOError("ApplyWALRecords", rerr)
			}
			if rn > 0 {
				readCursor += rn
			}
		} else if fds[0].Revents&unix.POLLHUP != 0 {
			pagepool.Put(readBuf)
			h.state = processFailed
			return nil, newSubError("ApplyWALRecords", "broken_pipe", "wal redo stdout closed")
		}
	}

	h.state = processIdle
	result := make([]byte, constants.PageSize)
	copy(result, readBuf)
	pagepool.Put(readBuf)
	return result, nil
}

func (h *ExternalProcessHandle) drainStderr() (int, bool, error) {
	buf := make([]byte, constants.StderrDrainChunkSize)
	n, err := unix.Read(int(h.stderr.Fd()), buf)
	if n > 0 {
		h.logger.Errorf("wal redo stderr: %s", string(buf[:n]))
	}
	if err != nil {
		if err == unix.EAGAIN {
			return n, false, nil
		}
		return n, false, err
	}
	if n == 0 {
		return 0, true, nil
	}
	return n, false, nil
}

// Kill terminates the child, awaits its exit status, and closes the pipes.
// The handle must not be used again afterward.
func (h *ExternalProcessHandle) Kill() {
	if h.child != nil {
		if h.child.Process != nil {
			h.child.Process.Kill()
		}
		err := h.child.Wait()
		h.logger.Infof("wal redo child exited: %v", err)
	}
	h.stdin.Close()
	h.stdout.Close()
	h.stderr.Close()
	h.state = processFailed
}

// newExternalProcessHandleForTesting wires a handle directly to a set of
// pipes without spawning a real child, for driving the I/O loop against a
// goroutine-simulated process in tests.
func newExternalProcessHandleForTesting(stdin, stdout, stderr *os.File, logger *logging.Logger) *ExternalProcessHandle {
	return &ExternalProcessHandle{
		child:  nil,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		state:  processIdle,
		logger: logger,
	}
}
