package main

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// USB MIDI code index numbers for the events we send.
const (
	CINNoteOff = 0x08
	CINNoteOn  = 0x09
)

// Packet is a USB MIDI class event packet:
//
//	[cable<<4 | CIN][status|channel][pitch][velocity]
type Packet [4]byte

// message builds the gomidi message for ev on the given channel. Note Off
// keeps its velocity rather than collapsing to a zero-velocity Note On.
func message(ev Event, channel uint8) midi.Message {
	if ev.Kind == NoteOn {
		return midi.NoteOn(channel, ev.Pitch, ev.Velocity)
	}
	return midi.NoteOffVelocity(channel, ev.Pitch, ev.Velocity)
}

// EncodePacket builds the packet for ev on the given virtual cable.
func EncodePacket(ev Event, cable uint8) Packet {
	msg := message(ev, ev.Channel)
	cin := byte(CINNoteOn)
	if ev.Kind == NoteOff {
		cin = CINNoteOff
	}
	return Packet{(cable&0x0F)<<4 | cin, msg[0], msg[1], msg[2]}
}

// Message strips the USB header and returns the plain MIDI bytes. It fails if
// the header does not match the status byte.
func (p Packet) Message() (midi.Message, error) {
	cin := p[0] & 0x0F
	if cin != p[1]>>4 {
		return nil, fmt.Errorf("packet: CIN %#x does not match status %#x", cin, p[1])
	}
	return midi.Message{p[1], p[2], p[3]}, nil
}
