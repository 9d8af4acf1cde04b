package main

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

// SerialPort wraps a go.bug.st/serial port.
type SerialPort struct {
	name string
	port serial.Port
}

// OpenSerial opens the named serial device at the given baud rate.
func OpenSerial(name string, baud int) (*SerialPort, error) {
	mode := &serial.Mode{BaudRate: baud}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", name, err)
	}
	logger.Info("serial: port opened", "device", name, "baud", baud)
	return &SerialPort{name: name, port: p}, nil
}

func (s *SerialPort) Read(p []byte) (int, error)  { return s.port.Read(p) }
func (s *SerialPort) Write(p []byte) (int, error) { return s.port.Write(p) }

// Close closes the underlying serial port.
func (s *SerialPort) Close() error {
	logger.Info("serial: closing port", "device", s.name)
	return s.port.Close()
}

// SerialSink writes bare 3-byte MIDI messages to a byte stream. The status
// byte carries no channel on this path.
type SerialSink struct {
	w io.Writer
}

func NewSerialSink(w io.Writer) *SerialSink {
	return &SerialSink{w: w}
}

func (s *SerialSink) Send(ev Event) {
	data := message(ev, 0).Bytes()
	if _, err := s.w.Write(data); err != nil {
		logger.Error("serial: write error", "err", err, "event", ev.String())
		return
	}
	logger.Debug("serial: message sent", "bytes", fmt.Sprintf("% X", data))
}
