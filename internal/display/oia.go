package display

import "sync"

// InhibitReason says why keyboard input is currently refused.
type InhibitReason int

const (
	InhibitNone InhibitReason = iota
	InhibitSystemWait
	InhibitCommCheck
	InhibitProgCheck
	InhibitMachineCheck
	InhibitOther
)

func (r InhibitReason) String() string {
	switch r {
	case InhibitNone:
		return "none"
	case InhibitSystemWait:
		return "system-wait"
	case InhibitCommCheck:
		return "comm-check"
	case InhibitProgCheck:
		return "prog-check"
	case InhibitMachineCheck:
		return "machine-check"
	default:
		return "other"
	}
}

// OIA is the operator information area: session-visible status bits the
// controller mutates and collaborators read.
type OIA struct {
	mu             sync.Mutex
	keyboardLocked bool
	insertMode     bool
	messageWaiting bool
	inhibit        InhibitReason
}

func (o *OIA) SetKeyboardLocked(locked bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.keyboardLocked = locked
}

func (o *OIA) KeyboardLocked() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.keyboardLocked
}

func (o *OIA) SetInsertMode(on bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.insertMode = on
}

func (o *OIA) InsertMode() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.insertMode
}

func (o *OIA) SetMessageWaiting(on bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messageWaiting = on
}

func (o *OIA) MessageWaiting() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.messageWaiting
}

func (o *OIA) SetInputInhibited(reason InhibitReason) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inhibit = reason
	o.keyboardLocked = reason != InhibitNone
}

func (o *OIA) InputInhibited() InhibitReason {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inhibit
}
