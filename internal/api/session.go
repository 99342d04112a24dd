package api

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// frame is the wire envelope in both directions.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encodeFrame(event string, data any) ([]byte, bool) {
	payload, err := json.Marshal(map[string]any{
		"event": event,
		"data":  data,
	})
	if err != nil {
		log.Printf("⚠️ Frame encode failed for %s: %v", event, err)
		return nil, false
	}
	return payload, true
}

const (
	sessionSendBuffer = 256
	writeWait         = 10 * time.Second
	pollQueueMax      = 512
	pollWait          = 25 * time.Second
	pollIdleTimeout   = 60 * time.Second
)

// wsSession is one WebSocket client. Writes go through a buffered channel
// and a single writer goroutine, so per-room broadcast order is preserved
// and a slow client only ever costs itself dropped frames.
type wsSession struct {
	conn *websocket.Conn
	ip   string
	send chan []byte
	once sync.Once
	done chan struct{}
}

func newWSSession(conn *websocket.Conn, ip string) *wsSession {
	return &wsSession{
		conn: conn,
		ip:   ip,
		send: make(chan []byte, sessionSendBuffer),
		done: make(chan struct{}),
	}
}

// Send enqueues one frame. Never blocks; full buffer drops the frame.
func (s *wsSession) Send(event string, data any) {
	payload, ok := encodeFrame(event, data)
	if !ok {
		return
	}
	select {
	case s.send <- payload:
	case <-s.done:
	default:
		// Backpressure: slow consumer loses frames, not the room.
	}
}

func (s *wsSession) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *wsSession) writePump() {
	for {
		select {
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// pollSession is the long-polling fallback: an addressable outbound queue
// the client drains with GET requests and feeds with POSTs.
type pollSession struct {
	id string
	ip string

	mu       sync.Mutex
	queue    [][]byte
	notify   chan struct{}
	lastSeen time.Time
	closed   bool
}

func newPollSession(id, ip string, now time.Time) *pollSession {
	return &pollSession{
		id:       id,
		ip:       ip,
		notify:   make(chan struct{}, 1),
		lastSeen: now,
	}
}

// Send queues one frame for the next drain. The oldest frame is dropped
// when the queue is full.
func (s *pollSession) Send(event string, data any) {
	payload, ok := encodeFrame(event, data)
	if !ok {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.queue) >= pollQueueMax {
		s.queue = s.queue[1:]
	}
	s.queue = append(s.queue, payload)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// drain waits up to pollWait for frames, then hands over whatever queued.
func (s *pollSession) drain() [][]byte {
	deadline := time.NewTimer(pollWait)
	defer deadline.Stop()

	for {
		s.mu.Lock()
		if len(s.queue) > 0 || s.closed {
			out := s.queue
			s.queue = nil
			s.mu.Unlock()
			return out
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-deadline.C:
			return nil
		}
	}
}

func (s *pollSession) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *pollSession) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen.Before(cutoff)
}

func (s *pollSession) close() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}
