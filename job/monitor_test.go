// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package job

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countSubs(m *Monitor) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func TestMonitorClientDisconnect(t *testing.T) {
	m := NewMonitor(&Status{}, nil)
	srv := httptest.NewServer(m.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return countSubs(m) == 1 },
		time.Second, 10*time.Millisecond)

	m.Publish(Event{Shot: 5, Signals: 2})
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, 5, ev.Shot)

	// the handler notices the hangup and drops the subscription
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return countSubs(m) == 0 },
		time.Second, 10*time.Millisecond)

	// publishing with nobody listening must not block or panic
	m.Publish(Event{Shot: 6})
}
