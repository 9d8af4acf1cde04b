package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// EXCLUDED_PATTERNS: virtual/system ports that are never auto-connected.
var EXCLUDED_PATTERNS = []string{"Midi Through", "Through Port", "Dummy"}

const midiRescanInterval = 1000 * time.Millisecond

var errNotConnected = errors.New("midi: no output connected")

// outLister is the part of a gomidi driver the watcher needs.
type outLister interface {
	Outs() ([]drivers.Out, error)
}

// -------------------- OutWatcher --------------------

// OutWatcher keeps a connection to the MIDI output port whose name matches
// pattern and implements PacketPort on it. It handles hot-plug (port appears)
// and hot-unplug (port disappears); packets written while disconnected are
// dropped.
type OutWatcher struct {
	mu           sync.Mutex
	drv          outLister
	pattern      string
	outPort      drivers.Out
	send         func(midi.Message) error
	connected    bool
	selectedName string
	lastRescanAt time.Time
	now          func() time.Time
}

func NewOutWatcher(drv outLister, pattern string) *OutWatcher {
	return &OutWatcher{drv: drv, pattern: pattern, now: time.Now}
}

// Connected reports the selected port name, if any.
func (w *OutWatcher) Connected() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectedName, w.connected
}

// Close drops the active connection.
func (w *OutWatcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeConn()
}

// Tick should be called regularly from the scan loop. It rescans at most once
// per midiRescanInterval.
func (w *OutWatcher) Tick() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if !w.lastRescanAt.IsZero() && now.Sub(w.lastRescanAt) < midiRescanInterval {
		return
	}
	w.lastRescanAt = now

	outs := w.listOutputs()

	if w.connected {
		for _, o := range outs {
			if o.String() == w.selectedName {
				return
			}
		}
		logger.Warn("midi: output disappeared", "device", w.selectedName)
		w.closeConn()
		w.lastRescanAt = time.Time{} // rescan immediately next tick
		return
	}

	for _, o := range outs {
		if containsCI(o.String(), w.pattern) {
			if err := w.open(o); err != nil {
				logger.Error("midi: connect failed", "device", o.String(), "err", err)
			}
			return
		}
	}
}

// WritePacket sends the MIDI part of p to the connected port.
func (w *OutWatcher) WritePacket(p Packet) error {
	msg, err := p.Message()
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected {
		return errNotConnected
	}
	if err := w.send(msg); err != nil {
		logger.Warn("midi: send failed, dropping output", "device", w.selectedName, "err", err)
		w.closeConn()
		w.lastRescanAt = time.Time{}
		return err
	}
	return nil
}

// Flush is a no-op; the driver sends immediately.
func (w *OutWatcher) Flush() error { return nil }

// -------------------- internal --------------------

func (w *OutWatcher) listOutputs() []drivers.Out {
	outs, err := w.drv.Outs()
	if err != nil {
		logger.Error("midi: list outputs failed", "err", err)
		return nil
	}
	var kept []drivers.Out
	var names []string
	for _, o := range outs {
		if excluded(o.String()) {
			logger.Debug("midi: output excluded", "device", o.String())
			continue
		}
		kept = append(kept, o)
		names = append(names, o.String())
	}
	logger.Debug("midi: outputs found", "count", len(kept), "devices", strings.Join(names, ", "))
	return kept
}

func (w *OutWatcher) open(o drivers.Out) error {
	send, err := midi.SendTo(o)
	if err != nil {
		return fmt.Errorf("open %q: %w", o.String(), err)
	}
	w.outPort = o
	w.send = send
	w.connected = true
	w.selectedName = o.String()
	logger.Info("midi: output connected", "device", w.selectedName)
	return nil
}

func (w *OutWatcher) closeConn() {
	if w.outPort != nil {
		_ = w.outPort.Close()
		w.outPort = nil
	}
	w.send = nil
	w.connected = false
	w.selectedName = ""
}

// -------------------- Monitor --------------------

// Monitor opens the first input port matching pattern and logs every note
// it receives. Call the returned stop function to detach.
func Monitor(ins []drivers.In, pattern string) (stop func(), err error) {
	var found drivers.In
	for _, in := range ins {
		if !excluded(in.String()) && containsCI(in.String(), pattern) {
			found = in
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("midi: no input matching %q", pattern)
	}
	name := found.String()
	if err := found.Open(); err != nil {
		return nil, fmt.Errorf("open %q: %w", name, err)
	}

	stopFn, err := midi.ListenTo(found, func(msg midi.Message, _ int32) {
		var ch, key, vel uint8
		if msg.GetNoteStart(&ch, &key, &vel) {
			logger.Info("monitor: note on", "device", name, "ch", ch, "pitch", pitchName(int(key)), "key", key, "vel", vel)
		} else if msg.GetNoteEnd(&ch, &key) {
			logger.Info("monitor: note off", "device", name, "ch", ch, "pitch", pitchName(int(key)), "key", key)
		} else {
			logger.Debug("monitor: unhandled message", "msg", msg.String())
		}
	}, midi.HandleError(func(listenErr error) {
		logger.Warn("monitor: listener error", "device", name, "err", listenErr)
	}))
	if err != nil {
		_ = found.Close()
		return nil, fmt.Errorf("listen %q: %w", name, err)
	}
	logger.Info("monitor: listening", "device", name)
	return func() {
		stopFn()
		_ = found.Close()
	}, nil
}

// -------------------- utility --------------------

func excluded(name string) bool {
	for _, pat := range EXCLUDED_PATTERNS {
		if containsCI(name, pat) {
			return true
		}
	}
	return false
}

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
