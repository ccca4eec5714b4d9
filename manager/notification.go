// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package manager

import (
	"strings"

	"github.com/siemens/netprobe/types"
)

// Kind of a scan notification.
type Kind string

// Scan notification kinds.
const (
	KindQueued    Kind = "queued"
	KindStarted   Kind = "started"
	KindProgress  Kind = "progress"
	KindDone      Kind = "done"
	KindError     Kind = "error"
	KindCancelled Kind = "cancelled"
)

// Notification informs subscribers about a scan.
type Notification struct {
	Kind   Kind
	ScanID string
	Data   interface{} // event payload suitable for JSON encoding.
}

// ref is the payload of notifications without further details.
type ref struct {
	ScanID string `json:"scan_id"`
}

func notificationOf(ev types.Event) Notification {
	return Notification{
		Kind:   Kind(ev.Kind()),
		ScanID: ev.Scan(),
		Data:   ev,
	}
}

// Subscribe to the notifications of all scans. The returned cancel function
// ends the subscription and closes the channel. Notifications are dropped for
// subscribers not keeping up.
func (m *Manager) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, subscriberBuffer)
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
	}
}

func (m *Manager) publish(n Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

func targetsOf(summary *types.Summary) string {
	return strings.Join(summary.Options.Targets, ",")
}
