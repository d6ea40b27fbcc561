package notify

import (
	"fmt"
	"sync"
	"time"

	"Decibel/logger"

	"github.com/godbus/dbus/v5"
)

const (
	dbusDest      = "org.freedesktop.Notifications"
	dbusPath      = dbus.ObjectPath("/org/freedesktop/Notifications")
	dbusInterface = "org.freedesktop.Notifications"

	defaultIcon = "dialog-information"
)

// Notification is one desktop popup.
type Notification struct {
	ReplacesID uint32 // 0 creates a new popup
	Summary    string
	Body       string
	Timeout    time.Duration
	// Actions lists key/label pairs.
	Actions []string
}

// Action is an action the user invoked on a notification.
type Action struct {
	ID  uint32
	Key string
}

// Notifier shows desktop notifications.
type Notifier interface {
	Notify(n Notification) (uint32, error)
	CloseNotification(id uint32) error
	SupportsActions() bool
	ActionInvoked() <-chan Action
	Close() error
}

// DBusNotifier talks to the org.freedesktop.Notifications service on the session bus.
type DBusNotifier struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	appName string
	actions bool

	signals chan *dbus.Signal
	invoked chan Action
	once    sync.Once
	done    chan struct{}
}

// NewDBusNotifier connects to the session bus.
func NewDBusNotifier(appName string) (*DBusNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the session bus: %w", err)
	}

	n := &DBusNotifier{
		conn:    conn,
		obj:     conn.Object(dbusDest, dbusPath),
		appName: appName,
		signals: make(chan *dbus.Signal, 16),
		invoked: make(chan Action, 4),
		done:    make(chan struct{}),
	}

	var caps []string
	if err := n.obj.Call(dbusInterface+".GetCapabilities", 0).Store(&caps); err != nil {
		conn.Close()
		return nil, fmt.Errorf("notification service unavailable: %w", err)
	}
	for _, c := range caps {
		if c == "actions" {
			n.actions = true
		}
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(dbusInterface),
		dbus.WithMatchMember("ActionInvoked"),
	); err != nil {
		logger.Warn("failed to subscribe to notification actions", logger.ErrorField(err))
	}
	conn.Signal(n.signals)
	go n.listen()

	return n, nil
}

func (n *DBusNotifier) listen() {
	defer close(n.invoked)
	for {
		select {
		case <-n.done:
			return
		case sig, ok := <-n.signals:
			if !ok {
				return
			}
			if sig.Name != dbusInterface+".ActionInvoked" || len(sig.Body) != 2 {
				continue
			}
			id, _ := sig.Body[0].(uint32)
			key, _ := sig.Body[1].(string)
			select {
			case n.invoked <- Action{ID: id, Key: key}:
			case <-n.done:
				return
			}
		}
	}
}

func (n *DBusNotifier) Notify(notif Notification) (uint32, error) {
	actions := notif.Actions
	if !n.actions {
		actions = nil
	}
	if actions == nil {
		actions = []string{}
	}
	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(0)),
	}

	var id uint32
	err := n.obj.Call(dbusInterface+".Notify", 0,
		n.appName,
		notif.ReplacesID,
		defaultIcon,
		notif.Summary,
		notif.Body,
		actions,
		hints,
		int32(notif.Timeout/time.Millisecond),
	).Store(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to show notification: %w", err)
	}
	return id, nil
}

func (n *DBusNotifier) CloseNotification(id uint32) error {
	if err := n.obj.Call(dbusInterface+".CloseNotification", 0, id).Err; err != nil {
		return fmt.Errorf("failed to close notification %d: %w", id, err)
	}
	return nil
}

func (n *DBusNotifier) SupportsActions() bool {
	return n.actions
}

func (n *DBusNotifier) ActionInvoked() <-chan Action {
	return n.invoked
}

func (n *DBusNotifier) Close() error {
	var err error
	n.once.Do(func() {
		close(n.done)
		n.conn.RemoveSignal(n.signals)
		err = n.conn.Close()
	})
	return err
}
