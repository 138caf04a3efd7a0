// Package selection keeps the currently selected district, mouza and base
// layer, and notifies observers synchronously whenever one of them is set.
//
// Selecting a district clears the mouza in the same update: observers get a
// single Event carrying both changes and never see the new district paired
// with the old mouza.
//
// Observers run on the goroutine that called Set, in subscription order, with
// no lock held. An observer may call Set again; that nested Set delivers its
// own Event to every observer before the outer Set resumes with its
// remaining observers.
//
// Reads are safe from any goroutine. Sets from several goroutines must go
// through an Applier: a Set releases the state lock before its observers
// run, so two unrelated goroutines calling Set at once could reach an
// observer in the opposite order to their Seq.
package selection

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"mouzamap.org/internal/clock"
)

// Slot names one of the three selection slots.
type Slot int

const (
	SlotDistrict Slot = iota
	SlotMouza
	SlotLayer
)

func (s Slot) String() string {
	switch s {
	case SlotDistrict:
		return "district"
	case SlotMouza:
		return "mouza"
	case SlotLayer:
		return "layer"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the slot by name.
func (s Slot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Value is a slot value. The zero Value is "none".
type Value struct {
	Name string
	Set  bool
}

// None is the empty selection.
var None = Value{}

// Of returns a Value selecting name. An empty name is None.
func Of(name string) Value {
	if name == "" {
		return None
	}
	return Value{Name: name, Set: true}
}

// MarshalJSON encodes a set Value as its name and None as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Set {
		return []byte("null"), nil
	}
	return json.Marshal(v.Name)
}

// UnmarshalJSON accepts a string or null.
func (v *Value) UnmarshalJSON(b []byte) error {
	var name *string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	if name == nil {
		*v = None
		return nil
	}
	*v = Of(*name)
	return nil
}

// State is a consistent snapshot of all three slots.
type State struct {
	District Value `json:"district"`
	Mouza    Value `json:"mouza"`
	Layer    Value `json:"layer"`
}

// Get returns the value held in slot.
func (s State) Get(slot Slot) Value {
	switch slot {
	case SlotDistrict:
		return s.District
	case SlotMouza:
		return s.Mouza
	case SlotLayer:
		return s.Layer
	default:
		return None
	}
}

// Event describes one published update.
type Event struct {
	Seq     uint64    `json:"seq"`
	Changed []Slot    `json:"changed"`
	State   State     `json:"state"`
	At      time.Time `json:"at"`
}

// Touches reports whether the event updated slot.
func (e Event) Touches(slot Slot) bool {
	for _, s := range e.Changed {
		if s == slot {
			return true
		}
	}
	return false
}

// Observer receives events.
type Observer func(Event)

type subscription struct {
	observer Observer
	active   atomic.Bool
}

// Bus holds the selection state. Create one per session with NewBus and
// share it by reference; the zero value is not usable.
type Bus struct {
	mu    sync.Mutex
	state State
	seq   uint64
	subs  []*subscription
	clock clock.Clock
}

// NewBus creates a Bus with every slot set to None. A nil clock uses the
// system clock.
func NewBus(c clock.Clock) *Bus {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Bus{clock: c}
}

// Get returns the current value of slot.
func (b *Bus) Get(slot Slot) Value {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Get(slot)
}

// Snapshot returns the current state of all slots.
func (b *Bus) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Seq returns the sequence number of the last published event.
func (b *Bus) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// Current returns the state together with the Seq of the event that
// produced it.
func (b *Bus) Current() (State, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state, b.seq
}

// SetDistrict publishes a district selection. A set value also clears the
// mouza within the same event.
func (b *Bus) SetDistrict(v Value) {
	b.publish(func(s *State) []Slot {
		s.District = v
		if v.Set {
			s.Mouza = None
			return []Slot{SlotDistrict, SlotMouza}
		}
		return []Slot{SlotDistrict}
	})
}

// SetMouza publishes a mouza selection.
func (b *Bus) SetMouza(v Value) {
	b.publish(func(s *State) []Slot {
		s.Mouza = v
		return []Slot{SlotMouza}
	})
}

// SetLayer publishes a base layer selection.
func (b *Bus) SetLayer(v Value) {
	b.publish(func(s *State) []Slot {
		s.Layer = v
		return []Slot{SlotLayer}
	})
}

// Set publishes v into slot.
func (b *Bus) Set(slot Slot, v Value) {
	switch slot {
	case SlotDistrict:
		b.SetDistrict(v)
	case SlotMouza:
		b.SetMouza(v)
	case SlotLayer:
		b.SetLayer(v)
	}
}

// Subscribe registers o and returns a function that removes it. The returned
// function is idempotent and may be called from inside an observer.
func (b *Bus) Subscribe(o Observer) (unsubscribe func()) {
	sub := &subscription{observer: o}
	sub.active.Store(true)

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s == sub {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					break
				}
			}
		})
	}
}

// Subscribers returns the number of registered observers.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bus) publish(apply func(*State) []Slot) {
	b.mu.Lock()
	changed := apply(&b.state)
	b.seq++
	ev := Event{
		Seq:     b.seq,
		Changed: changed,
		State:   b.state,
		At:      b.clock.Now(),
	}
	subs := make([]*subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, sub := range subs {
		// Unsubscribed after this event was published but before delivery.
		if !sub.active.Load() {
			continue
		}
		sub.observer(ev)
	}
}

// ClearDistrict sets the district slot to None. The mouza is kept.
func (b *Bus) ClearDistrict() { b.SetDistrict(None) }

// ClearMouza sets the mouza slot to None.
func (b *Bus) ClearMouza() { b.SetMouza(None) }

// ClearLayer sets the layer slot to None.
func (b *Bus) ClearLayer() { b.SetLayer(None) }
