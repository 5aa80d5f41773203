package engine

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

func jsonMarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// StreamName identifies one of the four independent logical streams
// described in spec.md §4.10.
type StreamName string

const (
	StreamMessages StreamName = "messages"
	StreamTask     StreamName = "task"
	StreamNode     StreamName = "node"
	StreamTool     StreamName = "tool"
)

// subjectPrefix is the NATS subject namespace events are published under;
// an external console/UI subscriber (spec.md §1, out of scope here) attaches
// to `devteam.events.*` on the same NATS connection.
const subjectPrefix = "devteam.events"

func subject(stream StreamName) string {
	return fmt.Sprintf("%s.%s", subjectPrefix, stream)
}

// Event is the wire shape for every stream, per spec.md §6 "Event schema".
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	NodeName  string    `json:"node_name,omitempty"`
	Payload   any       `json:"payload"`
}

// MessageEvent payloads carry free-form agent prose.
type MessageEvent struct {
	Role NodeName `json:"role"`
	Text string   `json:"text"`
}

// TaskEvent payloads carry task lifecycle transitions.
type TaskEvent struct {
	Kind            string `json:"kind"` // started | completed | failed | milestone_advanced
	TaskDescription string `json:"task_description,omitempty"`
	MilestoneIndex  int    `json:"milestone_index"`
}

// NodeEvent payloads carry outermost node lifecycle transitions. Nested
// invocations (subagent, LLM, tool calls) never emit node events, per
// spec.md §4.10.
type NodeEvent struct {
	Kind       string        `json:"kind"` // start | end | error
	Node       NodeName      `json:"node"`
	DurationMS int64         `json:"duration_ms,omitempty"`
	Err        string        `json:"error,omitempty"`
}

// ToolEvent payloads carry tool invocation lifecycle, reserved for future
// UIs per spec.md §4.10.
type ToolEvent struct {
	Kind string `json:"kind"` // start | end
	Tool string `json:"tool"`
	Err  string `json:"error,omitempty"`
}

// Subscriber is a typed callback registered against one stream. Dispatch is
// synchronous and ordered per stream (spec.md §4.10); a subscriber that
// needs async work must maintain its own queue rather than blocking here.
type Subscriber func(Event)

// Transport is the narrow publish surface the dispatcher needs from NATS,
// so tests can substitute an in-memory fake without a running nats-server.
type Transport interface {
	Publish(subject string, data []byte) error
}

// natsTransport adapts *nats.Conn to Transport.
type natsTransport struct {
	conn *nats.Conn
}

// NewNATSTransport wraps an established NATS connection.
func NewNATSTransport(conn *nats.Conn) Transport {
	return &natsTransport{conn: conn}
}

func (t *natsTransport) Publish(subject string, data []byte) error {
	return t.conn.Publish(subject, data)
}

// memoryTransport is a no-op Transport for engine runs with no external
// subscribers (e.g. the CLI's default mode, tests). It satisfies Transport
// without requiring an embedded nats-server.
type memoryTransport struct{}

func (memoryTransport) Publish(string, []byte) error { return nil }

// NewMemoryTransport returns a Transport that discards published bytes;
// in-process Subscribers still fire since dispatch to them doesn't go
// through Transport at all (see StreamDispatcher.Emit).
func NewMemoryTransport() Transport { return memoryTransport{} }

// StreamDispatcher fans out events to in-process Subscribers and,
// independently, publishes the same event to a NATS subject so an
// out-of-process console/UI can attach without coupling to graph internals
// (spec.md §1 "Out of scope: the console/UI rendering layer").
type StreamDispatcher struct {
	mu          sync.Mutex
	subscribers map[StreamName][]Subscriber
	transport   Transport
	marshal     func(Event) ([]byte, error)
}

// NewStreamDispatcher constructs a dispatcher over the given transport.
func NewStreamDispatcher(transport Transport) *StreamDispatcher {
	if transport == nil {
		transport = NewMemoryTransport()
	}
	return &StreamDispatcher{
		subscribers: make(map[StreamName][]Subscriber),
		transport:   transport,
		marshal:     jsonMarshalEvent,
	}
}

// Subscribe registers a callback on a stream. Order of registration is the
// order of invocation for events on that stream.
func (d *StreamDispatcher) Subscribe(stream StreamName, sub Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers[stream] = append(d.subscribers[stream], sub)
}

// Emit dispatches event to stream's subscribers in registration order, then
// publishes to the transport. Dispatch is synchronous: Emit does not return
// until every subscriber has been called, per spec.md §4.10's ordering
// guarantee.
func (d *StreamDispatcher) Emit(stream StreamName, event Event) {
	d.mu.Lock()
	subs := append([]Subscriber(nil), d.subscribers[stream]...)
	transport := d.transport
	d.mu.Unlock()

	for _, sub := range subs {
		sub(event)
	}

	if data, err := d.marshal(event); err == nil {
		_ = transport.Publish(subject(stream), data)
	}
}

// EmitMessage is a convenience wrapper for the messages stream.
func (d *StreamDispatcher) EmitMessage(now time.Time, role NodeName, text string) {
	d.Emit(StreamMessages, Event{
		Type:      "message",
		Timestamp: now,
		Payload:   MessageEvent{Role: role, Text: text},
	})
}

// EmitTask is a convenience wrapper for the task stream.
func (d *StreamDispatcher) EmitTask(now time.Time, kind, taskDescription string, milestoneIndex int) {
	d.Emit(StreamTask, Event{
		Type:      "task",
		Timestamp: now,
		Payload:   TaskEvent{Kind: kind, TaskDescription: taskDescription, MilestoneIndex: milestoneIndex},
	})
}

// EmitNode is a convenience wrapper for the node stream.
func (d *StreamDispatcher) EmitNode(now time.Time, kind string, node NodeName, durationMS int64, err error) {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	d.Emit(StreamNode, Event{
		Type:      "node",
		Timestamp: now,
		NodeName:  string(node),
		Payload:   NodeEvent{Kind: kind, Node: node, DurationMS: durationMS, Err: errStr},
	})
}

// EmitTool is a convenience wrapper for the tool stream.
func (d *StreamDispatcher) EmitTool(now time.Time, kind, tool string, err error) {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	d.Emit(StreamTool, Event{
		Type:      "tool",
		Timestamp: now,
		Payload:   ToolEvent{Kind: kind, Tool: tool, Err: errStr},
	})
}
