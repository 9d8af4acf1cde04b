package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

// fakeConn reads what the test writes into the pipe and records what the
// board sends.
type fakeConn struct {
	*io.PipeReader
	mu  sync.Mutex
	out bytes.Buffer
}

func (f *fakeConn) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out.Write(p)
}

func (f *fakeConn) take() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := append([]byte(nil), f.out.Bytes()...)
	f.out.Reset()
	return b
}

func newConnectedBoard(t *testing.T) (*Board, *fakeConn, *io.PipeWriter) {
	t.Helper()
	pr, pw := io.Pipe()
	conn := &fakeConn{PipeReader: pr}
	b := NewBoard(conn)
	t.Cleanup(func() { _ = b.Close() })

	go pw.Write([]byte{reportVersion, 2, 5})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := b.Connect(ctx); err != nil {
		t.Fatalf("Connect: %s", err)
	}
	if got := conn.take(); !bytes.Equal(got, []byte{reportVersion}) {
		t.Fatalf("handshake sent % X, want F9", got)
	}
	return b, conn, pw
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBoardConnect(t *testing.T) {
	b, _, _ := newConnectedBoard(t)
	if v := b.Version(); v != "2.5" {
		t.Fatalf("Version() = %q, want 2.5", v)
	}
}

func TestBoardFirmwareReport(t *testing.T) {
	pr, pw := io.Pipe()
	b := NewBoard(&fakeConn{PipeReader: pr})
	defer b.Close()

	// F0 79 02 05 'K' 00 'M' 00 F7
	go pw.Write([]byte{startSysex, reportFirmware, 2, 5, 'K', 0, 'M', 0, endSysex})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := b.Connect(ctx); err != nil {
		t.Fatalf("Connect: %s", err)
	}
	if b.Firmware() != "KM" || b.Version() != "2.5" {
		t.Fatalf("firmware %q version %q", b.Firmware(), b.Version())
	}
}

func TestBoardConnectTimeout(t *testing.T) {
	pr, _ := io.Pipe()
	b := NewBoard(&fakeConn{PipeReader: pr})
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := b.Connect(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Connect = %v, want deadline exceeded", err)
	}
}

func TestBoardConnectClosed(t *testing.T) {
	pr, pw := io.Pipe()
	b := NewBoard(&fakeConn{PipeReader: pr})
	defer b.Close()
	pw.Close()

	if err := b.Connect(context.Background()); err == nil {
		t.Fatal("Connect on a closed stream succeeded")
	}
}

func TestBoardDigitalWrite(t *testing.T) {
	b, conn, _ := newConnectedBoard(t)

	b.DigitalWrite(8, true)
	b.DigitalWrite(10, true)
	b.DigitalWrite(8, false)
	b.DigitalWrite(7, true)

	want := []byte{
		0x91, 0x01, 0x00,
		0x91, 0x05, 0x00,
		0x91, 0x04, 0x00,
		0x90, 0x00, 0x01, // bit 7 travels in the msb byte
	}
	if got := conn.take(); !bytes.Equal(got, want) {
		t.Fatalf("wrote % X\nwant  % X", got, want)
	}
}

func TestBoardPinModeEnablesReportingOnce(t *testing.T) {
	b, conn, _ := newConnectedBoard(t)

	b.SetPinMode(3, PinInput)
	b.SetPinMode(5, PinInput)
	b.SetPinMode(8, PinOutput)

	want := []byte{
		setPinMode, 3, 0x00, reportDigital | 0, 1,
		setPinMode, 5, 0x00,
		setPinMode, 8, 0x01,
	}
	if got := conn.take(); !bytes.Equal(got, want) {
		t.Fatalf("wrote % X\nwant  % X", got, want)
	}
}

func TestBoardDigitalRead(t *testing.T) {
	b, _, pw := newConnectedBoard(t)

	// port 0 = 0b1000_0101
	if _, err := pw.Write([]byte{digitalMessage | 0, 0x05, 0x01}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "port 0 report", func() bool { return b.DigitalRead(7) })

	for pin, want := range map[Pin]bool{0: true, 1: false, 2: true, 3: false, 7: true, 8: false} {
		if got := b.DigitalRead(pin); got != want {
			t.Errorf("DigitalRead(%d) = %v, want %v", pin, got, want)
		}
	}
}

func TestBoardSkipsUnrelatedTraffic(t *testing.T) {
	b, _, pw := newConnectedBoard(t)

	// analog report, a stray data byte, a string sysex, then pin 9 high
	stream := []byte{
		analogMessage | 2, 0x10, 0x02,
		0x42,
		startSysex, 0x71, 'h', 0, endSysex,
		digitalMessage | 1, 0x02, 0x00,
	}
	if _, err := pw.Write(stream); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "port 1 report", func() bool { return b.DigitalRead(9) })
	if b.DigitalRead(8) {
		t.Fatal("pin 8 reported high")
	}
}

func TestScanOverFirmata(t *testing.T) {
	b, conn, pw := newConnectedBoard(t)
	cfg := DefaultConfig()
	rec := NewRecordingSink(0)

	e, err := NewEngine(cfg, NewShiftRegister(b, cfg), NewRowBank(b, cfg.RowPins), rec)
	if err != nil {
		t.Fatal(err)
	}
	conn.take()

	// the board reports row 2 held; every column sees it
	if _, err := pw.Write([]byte{digitalMessage | 0, 0x04, 0x00}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "row report", func() bool { return b.DigitalRead(2) })

	e.ScanCycle()
	events := rec.Events()
	if len(events) != cfg.Cols {
		t.Fatalf("got %d events, want one per column", len(events))
	}
	for col, ev := range events {
		if want := on(uint8(24 + col*8 + 2)); ev != want {
			t.Fatalf("column %d: %v, want %v", col, ev, want)
		}
	}
	// 8 columns: latch low, 16 bits of data+clock up+clock down, latch high
	if got, want := len(conn.take()), cfg.Cols*(2+16*3)*3; got != want {
		t.Fatalf("board traffic %d bytes, want %d", got, want)
	}
}
