// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package job

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event announces one archived shot on the monitor's websocket feed.
type Event struct {
	Shot    int `json:"shot"`
	Signals int `json:"signals"`
	Errors  int `json:"errors"`
}

// Monitor serves read-only progress over HTTP: a JSON status snapshot
// and a websocket feed of completed shots. It never mutates the run.
type Monitor struct {
	Status *Status
	Log    *zap.Logger

	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[chan Event]bool
}

func NewMonitor(status *Status, log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{
		Status: status,
		Log:    log,
		subs:   make(map[chan Event]bool),
	}
}

// Publish fans an event out to every connected subscriber. Slow
// subscribers drop events rather than stall the job.
func (m *Monitor) Publish(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sub := range m.subs {
		select {
		case sub <- ev:
		default:
		}
	}
}

func (m *Monitor) subscribe() chan Event {
	sub := make(chan Event, 16)
	m.mu.Lock()
	m.subs[sub] = true
	m.mu.Unlock()
	return sub
}

func (m *Monitor) unsubscribe(sub chan Event) {
	m.mu.Lock()
	delete(m.subs, sub)
	m.mu.Unlock()
}

func (m *Monitor) statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(m.Status.Snapshot()); err != nil {
		m.Log.Warn("failed to write status", zap.Error(err))
	}
}

func (m *Monitor) eventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := m.subscribe()
	defer m.unsubscribe(sub)

	// the read pump is how a client hanging up is noticed; without it
	// the handler would sit on an idle subscription forever
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-sub:
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func (m *Monitor) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/status", m.statusHandler).Methods(http.MethodGet)
	router.HandleFunc("/events", m.eventsHandler)
	return router
}

// Serve blocks on the monitor's HTTP server. Run it in its own
// goroutine next to the job.
func (m *Monitor) Serve(addr string) error {
	m.Log.Info("monitor listening", zap.String("addr", addr))
	return (&http.Server{Addr: addr, Handler: m.Router()}).ListenAndServe()
}
