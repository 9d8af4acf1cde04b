package main

import (
	"bufio"
	"fmt"
	"io"
)

// PacketPort carries USB MIDI event packets.
type PacketPort interface {
	WritePacket(p Packet) error
	Flush() error
}

// USBSink encodes events as USB MIDI packets and flushes after each one.
type USBSink struct {
	port  PacketPort
	cable uint8
}

func NewUSBSink(port PacketPort, cable uint8) *USBSink {
	return &USBSink{port: port, cable: cable}
}

func (u *USBSink) Send(ev Event) {
	pkt := EncodePacket(ev, u.cable)
	if err := u.port.WritePacket(pkt); err != nil {
		logger.Debug("usb: packet dropped", "err", err, "event", ev.String())
		return
	}
	if err := u.port.Flush(); err != nil {
		logger.Warn("usb: flush failed", "err", err)
		return
	}
	logger.Debug("usb: packet sent", "packet", fmt.Sprintf("% X", pkt[:]))
}

// StreamPort writes raw 4-byte packets to a byte stream, e.g. a USB gadget
// endpoint.
type StreamPort struct {
	w *bufio.Writer
}

func NewStreamPort(w io.Writer) *StreamPort {
	return &StreamPort{w: bufio.NewWriter(w)}
}

func (s *StreamPort) WritePacket(p Packet) error {
	_, err := s.w.Write(p[:])
	return err
}

func (s *StreamPort) Flush() error { return s.w.Flush() }
