package network

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestPair(t *testing.T, codec Codec, cfg WSConfig) (*WSConn, *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	serverSide := make(chan *WSConn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serverSide <- NewWSConn("c1", conn, codec, cfg)
	}))
	t.Cleanup(srv.Close)

	client, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { client.Close() })

	select {
	case conn := <-serverSide:
		t.Cleanup(func() { conn.Close() })
		return conn, client
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for server side connection")
		return nil, nil
	}
}

func TestWSConnDeliversQueuedMessages(t *testing.T) {
	conn, client := newTestPair(t, JSONCodec, WSConfig{})

	if err := conn.Send(MsgGameEnd, GameEnd{Winner: 1}); err != nil {
		t.Fatalf("send: %v", err)
	}

	_ = client.SetReadDeadline(time.Now().Add(time.Second))
	frameType, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if frameType != websocket.TextMessage {
		t.Fatalf("expected text frame, got %d", frameType)
	}
	env, err := JSONCodec.DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	end, err := DecodePayload[GameEnd](JSONCodec, env)
	if err != nil || env.Type != MsgGameEnd || end.Winner != 1 {
		t.Fatalf("unexpected frame %s (err=%v)", data, err)
	}
}

func TestWSConnReadsClientFrames(t *testing.T) {
	conn, client := newTestPair(t, MsgpackCodec, WSConfig{})

	frame, err := MsgpackCodec.Encode(MsgIdentify, IdentifyRequest{PlayerID: "alice", Password: "pw"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := client.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	env, err := conn.ReadEnvelope()
	if err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	req, err := DecodePayload[IdentifyRequest](conn.Codec(), env)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != MsgIdentify || req.PlayerID != "alice" || req.Password != "pw" {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestWSConnSendAfterCloseFails(t *testing.T) {
	conn, _ := newTestPair(t, JSONCodec, WSConfig{})

	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}
	if err := conn.Send(MsgGameEnd, GameEnd{}); err != ErrConnClosed {
		t.Fatalf("expected ErrConnClosed, got %v", err)
	}
}
