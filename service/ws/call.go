package ws

import (
	"context"
	"encoding/json"
)

// CallRoomID names the ephemeral room that holds the connections of one
// running call. It is separate from the conversation room so that joining
// a call never implies subscription to chat traffic and vice versa.
func CallRoomID(conversationID string) string {
	return "call:" + conversationID
}

// call-user invites the rest of the conversation: everyone in the
// conversation room except the caller receives the offer as a
// receive-signal frame.
func (r *Router) handleCallUser(_ context.Context, c *Client, f Frame, _ chan<- any) {
	var p callUserPayload
	if json.Unmarshal(f.Data, &p) != nil || !p.validate() {
		return
	}
	r.mgr.Fanout(p.ConversationID, EventReceiveSignal, f.Data, c.ConnID)
}

// receive-signal is point to point: offers, answers and ICE candidates
// travel only to the addressed peer. A departed target drops silently.
func (r *Router) handleReceiveSignal(_ context.Context, c *Client, f Frame, _ chan<- any) {
	var p signalPayload
	if json.Unmarshal(f.Data, &p) != nil || !p.validate() {
		return
	}
	r.mgr.EmitToUser(p.To, EventReceiveSignal, f.Data)
}

// Audio calls announce membership to the joiner always, and to the rest of
// the call room only when the joiner is not the first participant. The
// first joiner is the initiator and owns the offer side of every pairing.
func (r *Router) handleSubscribeCallAudio(_ context.Context, c *Client, f Frame, _ chan<- any) {
	var p subscribeCallPayload
	if json.Unmarshal(f.Data, &p) != nil || !p.validate() || c.UserID == "" {
		return
	}
	room := CallRoomID(p.ConversationID)
	first := r.mgr.JoinRoomReportFirst(c.ConnID, room)

	ann := callAnnouncement{
		ConversationID: p.ConversationID,
		UserID:         c.UserID,
		PeerID:         p.PeerID,
		IsInitiator:    first,
	}
	r.mgr.SendToConn(c.ConnID, EventJoinedCallAudio, ann)
	if !first {
		r.mgr.Fanout(room, EventUserJoinedCallAudio, ann, c.ConnID)
	}
}

// Video calls announce to the joiner and to the room unconditionally; the
// room-side announcement is what triggers renegotiation on every peer.
func (r *Router) handleSubscribeCallVideo(_ context.Context, c *Client, f Frame, _ chan<- any) {
	var p subscribeCallPayload
	if json.Unmarshal(f.Data, &p) != nil || !p.validate() || c.UserID == "" {
		return
	}
	room := CallRoomID(p.ConversationID)
	first := r.mgr.JoinRoomReportFirst(c.ConnID, room)

	ann := callAnnouncement{
		ConversationID: p.ConversationID,
		UserID:         c.UserID,
		PeerID:         p.PeerID,
		IsInitiator:    first,
	}
	r.mgr.SendToConn(c.ConnID, EventJoinedCallVideo, ann)
	r.mgr.Fanout(room, EventUserJoinedCallVideo, ann, c.ConnID)
}

// reject-call and end-call are terminal: they broadcast to the whole call
// room except the sender, and the sender leaves the room.
func (r *Router) handleCallControl(_ context.Context, c *Client, f Frame, _ chan<- any) {
	var p callControlPayload
	if json.Unmarshal(f.Data, &p) != nil || !p.validate() {
		return
	}
	room := CallRoomID(p.ConversationID)
	r.mgr.Fanout(room, f.Event, f.Data, c.ConnID)
	r.mgr.LeaveRoom(c.ConnID, room)
}
