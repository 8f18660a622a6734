package ws

import (
	"context"
	"encoding/json"

	"github.com/DoraeChat/DoraeChat-BE-sub000/logger"
	"github.com/DoraeChat/DoraeChat-BE-sub000/module/chat"
)

// handlerFunc processes one inbound frame. reply is a one-shot channel:
// callback-style handlers send at most one value on it, and the dispatcher
// turns that value into a single ack frame back to the sender.
type handlerFunc func(ctx context.Context, c *Client, f Frame, reply chan<- any)

// Router is the single entry point for client frames: it validates
// payloads, dispatches by event name and guarantees that nothing a client
// sends can crash the connection or the process.
type Router struct {
	mgr       *Manager
	pres      Presence
	lastView  chat.LastViewStore
	jwtSecret []byte
	handlers  map[string]handlerFunc
}

func NewRouter(mgr *Manager, pres Presence, lastView chat.LastViewStore, jwtSecret []byte) *Router {
	r := &Router{
		mgr:       mgr,
		pres:      pres,
		lastView:  lastView,
		jwtSecret: jwtSecret,
		handlers:  make(map[string]handlerFunc),
	}
	r.register()
	return r
}

func (r *Router) register() {
	r.handlers[EventIdentityJoin] = r.handleIdentityJoin
	r.handlers[EventJoinConversations] = r.handleJoinConversations
	r.handlers[EventJoinConversation] = r.handleJoinConversation
	r.handlers[EventLeaveConversation] = r.handleLeaveConversation
	r.handlers[EventTyping] = r.handleTyping
	r.handlers[EventNotTyping] = r.handleTyping
	r.handlers[EventGetUserOnline] = r.handleGetUserOnline
	r.handlers[EventCallUser] = r.handleCallUser
	r.handlers[EventReceiveSignal] = r.handleReceiveSignal
	r.handlers[EventSubscribeCallAudio] = r.handleSubscribeCallAudio
	r.handlers[EventSubscribeCallVideo] = r.handleSubscribeCallVideo
	r.handlers[EventRejectCall] = r.handleCallControl
	r.handlers[EventEndCall] = r.handleCallControl
	r.handlers[EventConversationLastView] = r.handleLastView

	for _, ev := range []string{
		EventAcceptFriend, EventSendFriendInvite, EventDeletedFriendInvite,
		EventDeletedInviteWasSend, EventDeletedFriend,
	} {
		r.handlers[ev] = r.handleFriendRelay
	}
}

// Dispatch routes one raw frame. Malformed JSON, unknown events and
// handler panics are all contained here.
func (r *Router) Dispatch(ctx context.Context, c *Client, raw []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorf("[ws] handler panic conn=%s: %v", c.ConnID, rec)
		}
	}()

	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		logger.Debug("[ws] unparsable frame dropped")
		return
	}
	h, ok := r.handlers[f.Event]
	if !ok {
		logger.Debug("[ws] no handler for event " + f.Event)
		return
	}

	reply := make(chan any, 1)
	h(ctx, c, f, reply)

	select {
	case v := <-reply:
		r.sendAck(c, f.AckID, v)
	default:
	}
}

func (r *Router) sendAck(c *Client, ackID int64, v any) {
	frame, err := encodeAck(ackID, v)
	if err != nil {
		logger.Warnf("[ws] encode ack: %v", err)
		return
	}
	if !enqueue(c, frame) {
		logger.Warnf("[ws] slow client, ack dropped conn=%s", c.ConnID)
	}
}

// ---- handlers ----

func (r *Router) handleIdentityJoin(ctx context.Context, c *Client, f Frame, _ chan<- any) {
	var p identityJoinPayload
	if json.Unmarshal(f.Data, &p) != nil || !p.validate() {
		return
	}
	if len(r.jwtSecret) > 0 && !VerifyBindToken(r.jwtSecret, p.Token, p.UserID) {
		logger.Warnf("[ws] bind token rejected conn=%s user=%s", c.ConnID, p.UserID)
		return
	}
	r.mgr.BindIdentity(ctx, c.ConnID, p.UserID)
}

func (r *Router) handleJoinConversations(_ context.Context, c *Client, f Frame, _ chan<- any) {
	var ids []string
	if json.Unmarshal(f.Data, &ids) != nil {
		return
	}
	r.mgr.JoinRooms(c.ConnID, ids)
}

func (r *Router) handleJoinConversation(_ context.Context, c *Client, f Frame, _ chan<- any) {
	var p conversationPayload
	if json.Unmarshal(f.Data, &p) != nil || !p.validate() {
		return
	}
	r.mgr.JoinRoom(c.ConnID, p.ConversationID)
}

func (r *Router) handleLeaveConversation(_ context.Context, c *Client, f Frame, _ chan<- any) {
	var p conversationPayload
	if json.Unmarshal(f.Data, &p) != nil || !p.validate() {
		return
	}
	r.mgr.LeaveRoom(c.ConnID, p.ConversationID)
}

// typing and not-typing relay the payload verbatim to the conversation
// room, never back to the sender.
func (r *Router) handleTyping(_ context.Context, c *Client, f Frame, _ chan<- any) {
	var p typingPayload
	if json.Unmarshal(f.Data, &p) != nil || !p.validate() {
		return
	}
	r.mgr.Fanout(p.ConversationID, f.Event, f.Data, c.ConnID)
}

// get-user-online is callback-style: the reply channel always gets exactly
// one snapshot, the offline default when the payload is malformed.
func (r *Router) handleGetUserOnline(ctx context.Context, _ *Client, f Frame, reply chan<- any) {
	var p userPayload
	if json.Unmarshal(f.Data, &p) != nil || !p.validate() {
		reply <- r.pres.QueryOnline(ctx, "")
		return
	}
	reply <- r.pres.QueryOnline(ctx, p.UserID)
}

func (r *Router) handleFriendRelay(_ context.Context, _ *Client, f Frame, _ chan<- any) {
	var p userPayload
	if json.Unmarshal(f.Data, &p) != nil || !p.validate() {
		return
	}
	r.mgr.EmitToUser(p.UserID, f.Event, f.Data)
}

func (r *Router) handleLastView(ctx context.Context, c *Client, f Frame, _ chan<- any) {
	var p lastViewPayload
	if json.Unmarshal(f.Data, &p) != nil || !p.validate() || c.UserID == "" {
		return
	}
	at, err := r.lastView.UpdateLastView(ctx, p.ConversationID, p.ChannelID, c.UserID)
	if err != nil {
		logger.Warnf("[ws] last view conv=%s user=%s: %v", p.ConversationID, c.UserID, err)
		return
	}
	r.mgr.Fanout(p.ConversationID, EventUserLastView, lastViewBroadcast{
		ConversationID: p.ConversationID,
		ChannelID:      p.ChannelID,
		UserID:         c.UserID,
		LastView:       at.UnixMilli(),
	}, c.ConnID)
}
