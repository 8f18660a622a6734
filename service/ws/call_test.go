package ws

import (
	"context"
	"encoding/json"
	"testing"
)

func joinBound(t *testing.T, fx *routerFixture, connID, userID string, rooms ...string) *Client {
	t.Helper()
	c := newTestClient(t, fx.mgr, connID)
	fx.mgr.BindIdentity(context.Background(), connID, userID)
	for _, r := range rooms {
		fx.mgr.JoinRoom(connID, r)
	}
	// drop the binding noise so tests see only call traffic
	for len(c.Send) > 0 {
		<-c.Send
	}
	return c
}

func decodeAnnouncement(t *testing.T, f Frame) callAnnouncement {
	t.Helper()
	var ann callAnnouncement
	if err := json.Unmarshal(f.Data, &ann); err != nil {
		t.Fatalf("decode announcement: %v", err)
	}
	return ann
}

func TestAudioCallFirstJoinerIsInitiator(t *testing.T) {
	fx := newRouterFixture(t, nil)
	a := joinBound(t, fx, "a", "u-1")

	fx.dispatch(t, a, EventSubscribeCallAudio, 0,
		subscribeCallPayload{ConversationID: "conv-1", UserID: "u-1", PeerID: "peer-1"})

	f := recvFrame(t, a)
	if f.Event != EventJoinedCallAudio {
		t.Fatalf("event = %q, want %q", f.Event, EventJoinedCallAudio)
	}
	if ann := decodeAnnouncement(t, f); !ann.IsInitiator {
		t.Fatal("first joiner not flagged initiator")
	}
	// no one else to tell yet
	mustBeEmpty(t, a)
	if !fx.mgr.InRoom("a", CallRoomID("conv-1")) {
		t.Fatal("joiner missing from call room")
	}
}

func TestAudioCallSecondJoinerAnnouncedToRoom(t *testing.T) {
	fx := newRouterFixture(t, nil)
	a := joinBound(t, fx, "a", "u-1")
	b := joinBound(t, fx, "b", "u-2")

	fx.dispatch(t, a, EventSubscribeCallAudio, 0,
		subscribeCallPayload{ConversationID: "conv-1", UserID: "u-1", PeerID: "peer-1"})
	recvFrame(t, a) // a's own join announcement

	fx.dispatch(t, b, EventSubscribeCallAudio, 0,
		subscribeCallPayload{ConversationID: "conv-1", UserID: "u-2", PeerID: "peer-2"})

	self := recvFrame(t, b)
	if ann := decodeAnnouncement(t, self); ann.IsInitiator {
		t.Fatal("second joiner flagged initiator")
	}

	roomSide := recvFrame(t, a)
	if roomSide.Event != EventUserJoinedCallAudio {
		t.Fatalf("event = %q, want %q", roomSide.Event, EventUserJoinedCallAudio)
	}
	if ann := decodeAnnouncement(t, roomSide); ann.UserID != "u-2" || ann.PeerID != "peer-2" {
		t.Fatalf("announcement = %+v", ann)
	}
	mustBeEmpty(t, b)
}

func TestVideoCallAnnouncesEveryJoinToRoom(t *testing.T) {
	fx := newRouterFixture(t, nil)
	a := joinBound(t, fx, "a", "u-1")
	b := joinBound(t, fx, "b", "u-2")

	fx.dispatch(t, a, EventSubscribeCallVideo, 0,
		subscribeCallPayload{ConversationID: "conv-1", UserID: "u-1", PeerID: "peer-1"})
	self := recvFrame(t, a)
	if self.Event != EventJoinedCallVideo {
		t.Fatalf("event = %q, want %q", self.Event, EventJoinedCallVideo)
	}
	// first joiner: room-side announcement goes out but nobody is there
	mustBeEmpty(t, a)

	fx.dispatch(t, b, EventSubscribeCallVideo, 0,
		subscribeCallPayload{ConversationID: "conv-1", UserID: "u-2", PeerID: "peer-2"})
	recvFrame(t, b) // b's own announcement

	roomSide := recvFrame(t, a)
	if roomSide.Event != EventUserJoinedCallVideo {
		t.Fatalf("event = %q, want %q", roomSide.Event, EventUserJoinedCallVideo)
	}
}

func TestCallUserInvitesConversationRoom(t *testing.T) {
	fx := newRouterFixture(t, nil)
	a := joinBound(t, fx, "a", "u-1", "conv-1")
	b := joinBound(t, fx, "b", "u-2", "conv-1")

	fx.dispatch(t, a, EventCallUser, 0, callUserPayload{
		From:           "u-1",
		Signal:         json.RawMessage(`{"type":"offer"}`),
		ConversationID: "conv-1",
	})

	f := recvFrame(t, b)
	if f.Event != EventReceiveSignal {
		t.Fatalf("event = %q, want %q", f.Event, EventReceiveSignal)
	}
	mustBeEmpty(t, a)
}

func TestReceiveSignalTargetsOnlyAddressedPeer(t *testing.T) {
	fx := newRouterFixture(t, nil)
	a := joinBound(t, fx, "a", "u-1", "conv-1")
	b := joinBound(t, fx, "b", "u-2", "conv-1")
	c := joinBound(t, fx, "c", "u-3", "conv-1")

	fx.dispatch(t, a, EventReceiveSignal, 0, signalPayload{
		To:             "u-2",
		From:           "u-1",
		Signal:         json.RawMessage(`{"type":"answer"}`),
		ConversationID: "conv-1",
	})

	if f := recvFrame(t, b); f.Event != EventReceiveSignal {
		t.Fatalf("event = %q, want %q", f.Event, EventReceiveSignal)
	}
	mustBeEmpty(t, a)
	mustBeEmpty(t, c)
}

func TestReceiveSignalToDepartedPeerDropsSilently(t *testing.T) {
	fx := newRouterFixture(t, nil)
	a := joinBound(t, fx, "a", "u-1", "conv-1")

	fx.dispatch(t, a, EventReceiveSignal, 0, signalPayload{
		To:             "u-gone",
		From:           "u-1",
		Signal:         json.RawMessage(`{"candidate":"x"}`),
		ConversationID: "conv-1",
	})
	mustBeEmpty(t, a)
}

func TestEndCallBroadcastsAndLeavesRoom(t *testing.T) {
	fx := newRouterFixture(t, nil)
	a := joinBound(t, fx, "a", "u-1")
	b := joinBound(t, fx, "b", "u-2")
	room := CallRoomID("conv-1")
	fx.mgr.JoinRoom("a", room)
	fx.mgr.JoinRoom("b", room)

	fx.dispatch(t, a, EventEndCall, 0, callControlPayload{ConversationID: "conv-1", UserID: "u-1"})

	if f := recvFrame(t, b); f.Event != EventEndCall {
		t.Fatalf("event = %q, want %q", f.Event, EventEndCall)
	}
	mustBeEmpty(t, a)
	if fx.mgr.InRoom("a", room) {
		t.Fatal("sender still in call room after end-call")
	}
	if !fx.mgr.InRoom("b", room) {
		t.Fatal("peer evicted by someone else's end-call")
	}
}

func TestRejectCallBroadcastsToCallRoom(t *testing.T) {
	fx := newRouterFixture(t, nil)
	a := joinBound(t, fx, "a", "u-1")
	b := joinBound(t, fx, "b", "u-2")
	room := CallRoomID("conv-1")
	fx.mgr.JoinRoom("a", room)
	fx.mgr.JoinRoom("b", room)

	fx.dispatch(t, b, EventRejectCall, 0, callControlPayload{ConversationID: "conv-1", UserID: "u-2"})

	if f := recvFrame(t, a); f.Event != EventRejectCall {
		t.Fatalf("event = %q, want %q", f.Event, EventRejectCall)
	}
	mustBeEmpty(t, b)
}

func TestUnboundConnectionCannotJoinCall(t *testing.T) {
	fx := newRouterFixture(t, nil)
	c := newTestClient(t, fx.mgr, "a")

	fx.dispatch(t, c, EventSubscribeCallAudio, 0,
		subscribeCallPayload{ConversationID: "conv-1", UserID: "u-1", PeerID: "peer-1"})

	mustBeEmpty(t, c)
	if fx.mgr.RoomSize(CallRoomID("conv-1")) != 0 {
		t.Fatal("unbound connection entered the call room")
	}
}
