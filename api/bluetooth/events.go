package bluetooth

import (
	"github.com/darkhz/blueapplet/api/errorkinds"
	"github.com/darkhz/blueapplet/api/eventbus"
)

// EventID represents a unique event ID.
type EventID byte

// The different types of event IDs.
const (
	EventNone EventID = iota // The zero value for this type.
	EventError
	EventPlugin
	EventSerialPort
	EventPluginDialog
	EventRecentConnection
)

// EventAction describes an action that is associated with an event.
type EventAction string

// The different types of event actions.
const (
	EventActionNone    EventAction = "none"
	EventActionUpdated EventAction = "updated"
	EventActionAdded   EventAction = "added"
	EventActionRemoved EventAction = "removed"
)

var eventNames = map[EventID]string{
	EventNone:             "",
	EventError:            "error_event",
	EventPlugin:           "plugin_event",
	EventSerialPort:       "serial_port_event",
	EventPluginDialog:     "plugin_dialog_event",
	EventRecentConnection: "recent_connection_event",
}

// String returns the name of the event ID.
func (e EventID) String() string {
	return eventNames[e]
}

// Value returns the event ID.
func (e EventID) Value() uint {
	return uint(e)
}

// String returns the name of the event action.
func (e EventAction) String() string {
	return string(e)
}

// PluginEventData holds the name of a plugin that was loaded (added) or unloaded (removed).
type PluginEventData struct {
	Name string `json:"name,omitempty"`
}

// SerialPortData holds a serial tunnel that was opened (added) or closed (removed).
type SerialPortData struct {
	ServiceInfo

	Port int `json:"port"`
}

// PluginDialogData describes a request to show the plugin dialog.
type PluginDialogData struct{}

// RecentConnectionData holds a connection attempt recorded by the recent connections tracker.
type RecentConnectionData struct {
	Target
}

// Event represents a general event.
type Event[T any] struct {
	// ID holds the event ID.
	ID EventID `json:"event_id,omitempty"`

	// Action holds the corresponding action associated with this event.
	Action EventAction `json:"event_action,omitempty"`

	// Data holds the actual event data.
	Data T `json:"event_data,omitempty"`
}

// subscriberCapacity is the number of events a subscriber may lag behind
// before further events are dropped.
const subscriberCapacity = 16

// EventGroup publishes and subscribes to the events of a single event ID.
type EventGroup[T any] struct {
	ID EventID
}

// Subscriber describes a subscription to an event group.
type Subscriber[T any] struct {
	C    chan Event[T]
	Done chan struct{}

	Unsubscribe eventbus.UnsubFunc
}

// PublishAdded publishes an event with the 'added' action.
func (e EventGroup[T]) PublishAdded(data T) {
	eventbus.Publish(e.ID, Event[T]{e.ID, EventActionAdded, data})
}

// PublishRemoved publishes an event with the 'removed' action.
func (e EventGroup[T]) PublishRemoved(data T) {
	eventbus.Publish(e.ID, Event[T]{e.ID, EventActionRemoved, data})
}

// Subscribe subscribes to an event group. The returned boolean reports
// whether the subscriber can actually receive events.
func (e EventGroup[T]) Subscribe() (*Subscriber[T], bool) {
	id := eventbus.Subscribe(e.ID)

	sub := Subscriber[T]{
		C:           make(chan Event[T], subscriberCapacity),
		Done:        make(chan struct{}, 1),
		Unsubscribe: id.Unsubscribe,
	}

	if !id.IsActive() {
		close(sub.C)
		return &sub, false
	}

	go func() {
		for data := range id.C {
			ev, ok := data.(Event[T])
			if !ok {
				continue
			}

			select {
			case sub.C <- ev:
			default:
			}
		}

		select {
		case sub.Done <- struct{}{}:
		default:
		}

		close(sub.C)
	}()

	return &sub, true
}

// ErrorEvents returns an event interface to subscribe to error events.
func ErrorEvents() EventGroup[errorkinds.GenericError] {
	return EventGroup[errorkinds.GenericError]{ID: EventError}
}

// PluginEvents returns an event interface to subscribe to plugin events.
func PluginEvents() EventGroup[PluginEventData] {
	return EventGroup[PluginEventData]{ID: EventPlugin}
}

// SerialPortEvents returns an event interface to subscribe to serial port events.
func SerialPortEvents() EventGroup[SerialPortData] {
	return EventGroup[SerialPortData]{ID: EventSerialPort}
}

// PluginDialogEvents returns an event interface to subscribe to plugin dialog requests.
func PluginDialogEvents() EventGroup[PluginDialogData] {
	return EventGroup[PluginDialogData]{ID: EventPluginDialog}
}

// RecentConnectionEvents returns an event interface to subscribe to recent connection events.
func RecentConnectionEvents() EventGroup[RecentConnectionData] {
	return EventGroup[RecentConnectionData]{ID: EventRecentConnection}
}
