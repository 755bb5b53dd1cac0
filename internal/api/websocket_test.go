package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-thermostat/internal/auth"
	"github.com/nerrad567/gray-logic-thermostat/internal/climate"
)

func newBareClient(hub *Hub, channels ...string) *WSClient {
	c := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	for _, ch := range channels {
		c.subscriptions[ch] = struct{}{}
	}
	return c
}

func readQueued(t *testing.T, c *WSClient) WSMessage {
	t.Helper()
	select {
	case data := <-c.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decoding queued message: %v", err)
		}
		return msg
	default:
		t.Fatal("no message queued")
		return WSMessage{}
	}
}

func TestHub_PublishReachesSubscribersOnly(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())
	sub := newBareClient(hub, ChannelClimateState)
	other := newBareClient(hub, "something.else")
	hub.Register(sub)
	hub.Register(other)

	if err := hub.Publish(context.Background(), climate.Snapshot{ThermostatID: "lounge", HVACMode: climate.HVACModeHeat}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	msg := readQueued(t, sub)
	if msg.Type != WSTypeEvent || msg.EventType != ChannelClimateState {
		t.Errorf("message = %+v", msg)
	}
	if len(other.send) != 0 {
		t.Error("unsubscribed client received the event")
	}

	last, ok := hub.Last()
	if !ok || last.ThermostatID != "lounge" {
		t.Errorf("Last() = %+v, %v", last, ok)
	}
}

func TestHub_SubscribeReplaysLastSnapshot(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())
	_ = hub.Publish(context.Background(), climate.Snapshot{ThermostatID: "lounge"}) //nolint:errcheck // never fails

	c := newBareClient(hub)
	hub.Register(c)
	c.handleMessage([]byte(`{"type":"subscribe","id":"1","payload":{"channels":["climate.state_changed"]}}`))

	if msg := readQueued(t, c); msg.Type != WSTypeResponse || msg.ID != "1" {
		t.Errorf("first message = %+v, want subscribe response", msg)
	}
	if msg := readQueued(t, c); msg.EventType != ChannelClimateState {
		t.Errorf("second message = %+v, want replayed snapshot", msg)
	}
}

func TestWSClient_Messages(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())

	tests := []struct {
		name     string
		in       string
		wantType string
	}{
		{"ping", `{"type":"ping","id":"p"}`, WSTypePong},
		{"bad json", `{`, WSTypeError},
		{"unknown type", `{"type":"dance"}`, WSTypeError},
		{"bad subscribe payload", `{"type":"subscribe","payload":{"channels":"x"}}`, WSTypeError},
		{"unsubscribe", `{"type":"unsubscribe","payload":{"channels":["climate.state_changed"]}}`, WSTypeResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newBareClient(hub, ChannelClimateState)
			c.handleMessage([]byte(tt.in))
			if msg := readQueued(t, c); msg.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", msg.Type, tt.wantType)
			}
		})
	}
}

func TestHub_UnregisterClosesOnce(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())
	c := newBareClient(hub, ChannelClimateState)
	hub.Register(c)

	hub.Unregister(c)
	hub.Unregister(c)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
	if _, open := <-c.send; open {
		t.Error("send channel should be closed")
	}

	// Broadcasting to a closed client must not panic.
	c.trySend([]byte("x"))
}

func TestTicketStore(t *testing.T) {
	now := time.Date(2026, 1, 15, 7, 0, 0, 0, time.UTC)
	ts := newTicketStore()
	ts.now = func() time.Time { return now }

	ticket := ts.issue("tester", auth.RoleViewer)
	entry, ok := ts.consume(ticket)
	if !ok || entry.subject != "tester" || entry.role != auth.RoleViewer {
		t.Fatalf("consume() = %+v, %v", entry, ok)
	}
	if _, ok := ts.consume(ticket); ok {
		t.Error("ticket should be single-use")
	}

	expired := ts.issue("tester", auth.RoleAdmin)
	now = now.Add(ticketTTL)
	if _, ok := ts.consume(expired); ok {
		t.Error("expired ticket accepted")
	}

	ts.issue("a", auth.RoleViewer)
	ts.issue("b", auth.RoleViewer)
	now = now.Add(ticketTTL + time.Second)
	ts.cleanExpired()
	if n := ts.len(); n != 0 {
		t.Errorf("len() = %d after cleanExpired, want 0", n)
	}
}

func TestWebSocket_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	rec := env.do(t, http.MethodPost, "/api/v1/auth/ws-ticket", token(t, auth.RoleViewer), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ws-ticket status = %d", rec.Code)
	}
	var ticket struct {
		Ticket    string `json:"ticket"`
		ExpiresIn int    `json:"expires_in"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ticket); err != nil || ticket.Ticket == "" {
		t.Fatalf("ticket body = %s, err %v", rec.Body.String(), err)
	}

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?ticket=" + ticket.Ticket
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()

	read := func() WSMessage {
		t.Helper()
		//nolint:errcheck // test deadline
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		return msg
	}

	if err := conn.WriteJSON(WSMessage{Type: WSTypeSubscribe, ID: "s1", Payload: WSSubscribePayload{Channels: []string{ChannelClimateState}}}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := read(); msg.Type != WSTypeResponse {
		t.Fatalf("first message = %+v, want response", msg)
	}
	if msg := read(); msg.EventType != ChannelClimateState {
		t.Fatalf("second message = %+v, want current snapshot", msg)
	}

	if rec := env.do(t, http.MethodPut, "/api/v1/thermostat/temperature", token(t, auth.RoleAdmin), `{"temperature":19}`); rec.Code != http.StatusOK {
		t.Fatalf("set temperature status = %d", rec.Code)
	}
	msg := read()
	payload, _ := msg.Payload.(map[string]any) //nolint:errcheck // checked below
	if msg.EventType != ChannelClimateState || payload["target_temperature"] != 19.0 {
		t.Errorf("event = %+v, want target 19", msg)
	}

	// The ticket was consumed by the upgrade.
	if rec := env.do(t, http.MethodGet, "/api/v1/ws?ticket="+ticket.Ticket, "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("reused ticket status = %d, want 401", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/ws", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing ticket status = %d, want 401", rec.Code)
	}
}
