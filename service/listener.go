package service

import (
	"sync"

	"github.com/beka-birhanu/mazesync/game/maze"
	"github.com/google/uuid"
)

const defaultListenerBuffer = 64

// UpdateKind tells listeners what changed.
type UpdateKind string

const (
	UpdateReady      UpdateKind = "ready"
	UpdateSeed       UpdateKind = "seed"
	UpdatePlayer     UpdateKind = "player"
	UpdatePlayerLeft UpdateKind = "player_left"
)

// Update is a change pushed to session listeners.
type Update struct {
	Kind     UpdateKind    `json:"kind"`
	Seed     maze.Seed     `json:"seed,omitempty"`
	PlayerID uuid.UUID     `json:"playerId"`
	Position maze.Position `json:"position"`
}

// Listener receives session updates through a buffered channel. When the
// buffer is full the oldest pending update is dropped.
type Listener struct {
	updates   chan Update
	done      chan struct{}
	closeOnce sync.Once
	hub       *hub
}

// Updates returns the channel to receive updates from.
func (l *Listener) Updates() <-chan Update {
	return l.updates
}

// Done closes when the listener is closed.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Close detaches the listener. Safe to call multiple times.
func (l *Listener) Close() {
	l.closeOnce.Do(func() {
		l.hub.remove(l)
		close(l.done)
	})
}

func (l *Listener) send(u Update) {
	select {
	case l.updates <- u:
		return
	default:
	}

	// Buffer full: drop the oldest and retry once.
	select {
	case <-l.updates:
	default:
	}
	select {
	case l.updates <- u:
	default:
	}
}

// hub fans updates out to every attached listener.
type hub struct {
	buffer    int
	listeners map[*Listener]struct{}
	sync.RWMutex
}

func newHub(buffer int) *hub {
	if buffer < 1 {
		buffer = defaultListenerBuffer
	}
	return &hub{
		buffer:    buffer,
		listeners: make(map[*Listener]struct{}),
	}
}

func (h *hub) add() *Listener {
	l := &Listener{
		updates: make(chan Update, h.buffer),
		done:    make(chan struct{}),
		hub:     h,
	}
	h.Lock()
	h.listeners[l] = struct{}{}
	h.Unlock()
	return l
}

func (h *hub) remove(l *Listener) {
	h.Lock()
	delete(h.listeners, l)
	h.Unlock()
}

func (h *hub) publish(u Update) {
	h.RLock()
	defer h.RUnlock()
	for l := range h.listeners {
		l.send(u)
	}
}

func (h *hub) count() int {
	h.RLock()
	defer h.RUnlock()
	return len(h.listeners)
}
