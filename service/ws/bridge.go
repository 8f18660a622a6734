package ws

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/DoraeChat/DoraeChat-BE-sub000/logger"
)

// Bridge mirrors local fan-out to the other gateway processes. A nil
// Bridge on the Manager means single-node operation.
type Bridge interface {
	PublishRoom(roomID string, frame []byte) error
	PublishAll(frame []byte) error
	Close()
}

// Envelope is what travels between nodes: the already-encoded client
// frame plus enough routing for the receiver to replay it locally. Node
// lets the origin skip its own broadcast.
type Envelope struct {
	Node  string          `json:"node"`
	Room  string          `json:"room,omitempty"`
	Frame json.RawMessage `json:"frame"`
}

const (
	subjectRoomPrefix = "realtime.room."
	subjectAll        = "realtime.all"

	// push subjects used by out-of-process producers (API servers,
	// workers); handlers deliver local-only so each node covers its own
	// connections and no republish loop can form.
	subjectEmitUser = "realtime.emit.user."
	subjectEmitConv = "realtime.emit.conversation."
	subjectEmitAll  = "realtime.emit.all"
)

// NATSBridge fans frames out between gateway nodes over core NATS.
type NATSBridge struct {
	nc   *nats.Conn
	node string
	mgr  *Manager
	subs []*nats.Subscription
}

// NewNATSBridge connects, subscribes to the inter-node and push subjects
// and attaches itself to the manager, taking its node id from it.
func NewNATSBridge(url string, mgr *Manager) (*NATSBridge, error) {
	node := mgr.Node()
	nc, err := nats.Connect(url,
		nats.Name("realtime-"+node),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, errors.Wrap(err, "nats connect")
	}

	b := &NATSBridge{nc: nc, node: node, mgr: mgr}
	if err := b.subscribe(); err != nil {
		nc.Close()
		return nil, err
	}
	mgr.SetBridge(b)
	logger.Infof("[bridge] connected to %s as node %s", url, node)
	return b, nil
}

func (b *NATSBridge) subscribe() error {
	type sub struct {
		subject string
		handler nats.MsgHandler
	}
	for _, s := range []sub{
		{subjectRoomPrefix + ">", b.onRoom},
		{subjectAll, b.onAll},
		{subjectEmitUser + "*", b.onEmitScoped(subjectEmitUser)},
		{subjectEmitConv + "*", b.onEmitScoped(subjectEmitConv)},
		{subjectEmitAll, b.onEmitAll},
	} {
		sb, err := b.nc.Subscribe(s.subject, s.handler)
		if err != nil {
			return errors.Wrapf(err, "subscribe %s", s.subject)
		}
		b.subs = append(b.subs, sb)
	}
	return nil
}

func (b *NATSBridge) PublishRoom(roomID string, frame []byte) error {
	env := Envelope{Node: b.node, Room: roomID, Frame: frame}
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal envelope")
	}
	return b.nc.Publish(subjectRoomPrefix+roomID, data)
}

func (b *NATSBridge) PublishAll(frame []byte) error {
	env := Envelope{Node: b.node, Frame: frame}
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal envelope")
	}
	return b.nc.Publish(subjectAll, data)
}

func (b *NATSBridge) Close() {
	for _, s := range b.subs {
		_ = s.Unsubscribe()
	}
	b.nc.Close()
}

func (b *NATSBridge) onRoom(msg *nats.Msg) {
	var env Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		logger.Warnf("[bridge] bad envelope on %s: %v", msg.Subject, err)
		return
	}
	if env.Node == b.node || env.Room == "" {
		return
	}
	b.mgr.deliverLocal(env.Room, env.Frame, "")
}

func (b *NATSBridge) onAll(msg *nats.Msg) {
	var env Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		logger.Warnf("[bridge] bad envelope on %s: %v", msg.Subject, err)
		return
	}
	if env.Node == b.node {
		return
	}
	b.mgr.deliverAllLocal(env.Frame)
}

// onEmitScoped handles pushes addressed to a user or conversation room.
// The room id is the subject suffix and the payload is a bare frame, so
// producers do not need to know the envelope format.
func (b *NATSBridge) onEmitScoped(prefix string) nats.MsgHandler {
	return func(msg *nats.Msg) {
		room := msg.Subject[len(prefix):]
		if room == "" {
			return
		}
		b.mgr.deliverLocal(room, msg.Data, "")
	}
}

func (b *NATSBridge) onEmitAll(msg *nats.Msg) {
	b.mgr.deliverAllLocal(msg.Data)
}
