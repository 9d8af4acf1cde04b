package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
)

// Firmata command bytes, from Firmata.h.
const (
	digitalMessage byte = 0x90 // Digital port data, low nibble is the port.
	analogMessage  byte = 0xE0 // Analog pin data, low nibble is the pin.
	reportDigital  byte = 0xD0 // Enable digital input reporting by port.
	setPinMode     byte = 0xF4 // Set the pin mode.
	reportVersion  byte = 0xF9 // Report protocol version.
	startSysex     byte = 0xF0
	endSysex       byte = 0xF7

	reportFirmware byte = 0x79 // Sysex: name and version of the sketch.

	firmataPorts = 16
)

func pinToPort(p Pin) byte {
	return byte(p>>3) & 0x0F
}

// Board is a Firmata client. Row levels arrive asynchronously as port
// reports and are cached; DigitalRead returns the last report.
type Board struct {
	rw  io.ReadWriter
	buf *bufio.Reader

	mu        sync.Mutex
	outPorts  [firmataPorts]byte
	inPorts   [firmataPorts]byte
	reporting [firmataPorts]bool
	maj, min  byte
	firmware  string

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
}

// NewBoard starts the message loop on rw. Call Connect before using pins.
func NewBoard(rw io.ReadWriter) *Board {
	b := &Board{
		rw:    rw,
		buf:   bufio.NewReader(rw),
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
	go b.run()
	return b
}

// Connect asks for the protocol version and waits for the reply. Boards that
// reset on open announce themselves unprompted; either way counts.
func (b *Board) Connect(ctx context.Context) error {
	if _, err := b.rw.Write([]byte{reportVersion}); err != nil {
		return fmt.Errorf("firmata: version query: %w", err)
	}
	select {
	case <-b.ready:
		logger.Info("firmata: board ready", "version", b.Version(), "firmware", b.Firmware())
		return nil
	case <-b.done:
		return fmt.Errorf("firmata: connection closed before version report")
	case <-ctx.Done():
		return fmt.Errorf("firmata: waiting for board: %w", ctx.Err())
	}
}

// Version returns the Firmata protocol version.
func (b *Board) Version() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fmt.Sprintf("%d.%d", b.maj, b.min)
}

// Firmware returns the sketch name, if the board reported one.
func (b *Board) Firmware() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.firmware
}

// Close closes the transport if it can be closed.
func (b *Board) Close() error {
	if c, ok := b.rw.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (b *Board) SetPinMode(p Pin, mode PinMode) {
	b.write([]byte{setPinMode, byte(p), byte(mode)})
	if mode != PinInput {
		return
	}
	port := pinToPort(p)
	b.mu.Lock()
	already := b.reporting[port]
	b.reporting[port] = true
	b.mu.Unlock()
	if !already {
		b.write([]byte{reportDigital | port, 1})
	}
}

// DigitalWrite updates the cached port value and writes the whole port.
func (b *Board) DigitalWrite(p Pin, high bool) {
	port := pinToPort(p)
	bit := byte(1) << (p & 0x07)

	b.mu.Lock()
	if high {
		b.outPorts[port] |= bit
	} else {
		b.outPorts[port] &^= bit
	}
	val := b.outPorts[port]
	b.mu.Unlock()

	b.write([]byte{digitalMessage | port, val & 0x7F, (val >> 7) & 0x7F})
}

func (b *Board) DigitalRead(p Pin) bool {
	port := pinToPort(p)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inPorts[port]&(1<<(p&0x07)) != 0
}

func (b *Board) write(msg []byte) {
	if _, err := b.rw.Write(msg); err != nil {
		logger.Error("firmata: write error", "err", err, "cmd", fmt.Sprintf("%#x", msg[0]))
	}
}

// -- Message loop -- //

func (b *Board) run() {
	defer close(b.done)
	for {
		header, err := b.buf.ReadByte()
		if err != nil {
			if err != io.EOF {
				logger.Warn("firmata: read loop stopped", "err", err)
			}
			return
		}

		switch {
		case header == startSysex:
			data, err := b.buf.ReadBytes(endSysex)
			if err != nil {
				logger.Warn("firmata: reading sysex data", "err", err)
				continue
			}
			b.handleSysex(data[:len(data)-1])

		case header == reportVersion:
			maj, min, err := b.readPair()
			if err != nil {
				continue
			}
			b.mu.Lock()
			b.maj, b.min = maj, min
			b.mu.Unlock()
			b.readyOnce.Do(func() { close(b.ready) })

		case header&0xF0 == digitalMessage:
			lsb, msb, err := b.readPair()
			if err != nil {
				continue
			}
			b.mu.Lock()
			b.inPorts[header&0x0F] = lsb | msb<<7
			b.mu.Unlock()

		case header&0xF0 == analogMessage:
			// not used by the scanner
			_, _, _ = b.readPair()

		default:
			logger.Debug("firmata: skipping byte", "byte", fmt.Sprintf("%#x", header))
		}
	}
}

func (b *Board) readPair() (byte, byte, error) {
	lsb, err := b.buf.ReadByte()
	if err != nil {
		logger.Warn("firmata: reading message lsb", "err", err)
		return 0, 0, err
	}
	msb, err := b.buf.ReadByte()
	if err != nil {
		logger.Warn("firmata: reading message msb", "err", err)
		return 0, 0, err
	}
	return lsb, msb, nil
}

func (b *Board) handleSysex(data []byte) {
	if len(data) < 3 || data[0] != reportFirmware {
		return
	}
	// name is sent as 7-bit pairs
	var name []byte
	for i := 3; i+1 < len(data); i += 2 {
		name = append(name, data[i]|data[i+1]<<7)
	}
	b.mu.Lock()
	b.maj, b.min = data[1], data[2]
	b.firmware = string(name)
	b.mu.Unlock()
	b.readyOnce.Do(func() { close(b.ready) })
}
