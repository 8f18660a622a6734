package ws

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/DoraeChat/DoraeChat-BE-sub000/service/presence"
)

// presenceRecorder captures presence transitions instead of touching redis.
type presenceRecorder struct {
	mu        sync.Mutex
	online    []string
	offline   []string
	snapshots map[string]presence.Snapshot
}

func newPresenceRecorder() *presenceRecorder {
	return &presenceRecorder{snapshots: make(map[string]presence.Snapshot)}
}

func (p *presenceRecorder) MarkOnline(_ context.Context, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = append(p.online, userID)
}

func (p *presenceRecorder) MarkOffline(_ context.Context, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offline = append(p.offline, userID)
}

func (p *presenceRecorder) QueryOnline(_ context.Context, userID string) presence.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshots[userID]
}

func (p *presenceRecorder) offlineCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.offline)
}

func newTestClient(t *testing.T, mgr *Manager, connID string) *Client {
	t.Helper()
	c := NewClient(connID, nil)
	mgr.Register(c)
	return c
}

// recvFrame pops one queued frame without blocking; fails when none is queued.
func recvFrame(t *testing.T, c *Client) Frame {
	t.Helper()
	select {
	case raw := <-c.Send:
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("undecodable frame: %v", err)
		}
		return f
	default:
		t.Fatalf("no frame queued on conn %s", c.ConnID)
		return Frame{}
	}
}

func mustBeEmpty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected frame on conn %s: %s", c.ConnID, raw)
	default:
	}
}

func TestFanoutDeliversToRoomExceptSender(t *testing.T) {
	mgr := NewManager("n1", newPresenceRecorder())
	a := newTestClient(t, mgr, "a")
	b := newTestClient(t, mgr, "b")
	c := newTestClient(t, mgr, "c")
	mgr.JoinRooms("a", []string{"conv-1"})
	mgr.JoinRoom("b", "conv-1")

	mgr.Fanout("conv-1", EventTyping, map[string]string{"userId": "u-a"}, "a")

	f := recvFrame(t, b)
	if f.Event != EventTyping {
		t.Fatalf("event = %q, want %q", f.Event, EventTyping)
	}
	mustBeEmpty(t, a)
	mustBeEmpty(t, c)
}

func TestLeaveRoomStopsDelivery(t *testing.T) {
	mgr := NewManager("n1", newPresenceRecorder())
	a := newTestClient(t, mgr, "a")
	mgr.JoinRoom("a", "conv-1")
	mgr.LeaveRoom("a", "conv-1")

	mgr.Fanout("conv-1", EventTyping, nil, "")
	mustBeEmpty(t, a)
	if mgr.InRoom("a", "conv-1") {
		t.Fatal("conn still in room after leave")
	}
}

func TestBindIdentityJoinsPersonalRoom(t *testing.T) {
	rec := newPresenceRecorder()
	mgr := NewManager("n1", rec)
	a := newTestClient(t, mgr, "a")

	mgr.BindIdentity(context.Background(), "a", "u-1")
	mgr.EmitToUser("u-1", EventAcceptFriend, map[string]string{"userId": "u-2"})

	f := recvFrame(t, a)
	if f.Event != EventAcceptFriend {
		t.Fatalf("event = %q, want %q", f.Event, EventAcceptFriend)
	}
	if len(rec.online) != 1 || rec.online[0] != "u-1" {
		t.Fatalf("online marks = %v, want [u-1]", rec.online)
	}
}

func TestBindIdentityRebindIsIdempotent(t *testing.T) {
	mgr := NewManager("n1", newPresenceRecorder())
	newTestClient(t, mgr, "a")

	mgr.BindIdentity(context.Background(), "a", "u-1")
	mgr.BindIdentity(context.Background(), "a", "u-1")

	if n := mgr.RoomSize("u-1"); n != 1 {
		t.Fatalf("personal room size = %d, want 1", n)
	}
}

func TestEmitToUserReachesEveryDevice(t *testing.T) {
	mgr := NewManager("n1", newPresenceRecorder())
	a := newTestClient(t, mgr, "a")
	b := newTestClient(t, mgr, "b")
	mgr.BindIdentity(context.Background(), "a", "u-1")
	mgr.BindIdentity(context.Background(), "b", "u-1")

	mgr.EmitToUser("u-1", EventDeletedFriend, map[string]string{"userId": "u-9"})

	recvFrame(t, a)
	recvFrame(t, b)
}

func TestOfflineOnlyWhenLastConnectionCloses(t *testing.T) {
	rec := newPresenceRecorder()
	mgr := NewManager("n1", rec)
	newTestClient(t, mgr, "a")
	newTestClient(t, mgr, "b")
	mgr.BindIdentity(context.Background(), "a", "u-1")
	mgr.BindIdentity(context.Background(), "b", "u-1")

	mgr.OnDisconnect(context.Background(), "a")
	if n := rec.offlineCount(); n != 0 {
		t.Fatalf("offline marks after first disconnect = %d, want 0", n)
	}

	mgr.OnDisconnect(context.Background(), "b")
	if n := rec.offlineCount(); n != 1 {
		t.Fatalf("offline marks after last disconnect = %d, want 1", n)
	}
}

func TestDisconnectRemovesFromAllRooms(t *testing.T) {
	mgr := NewManager("n1", newPresenceRecorder())
	a := newTestClient(t, mgr, "a")
	b := newTestClient(t, mgr, "b")
	mgr.JoinRooms("a", []string{"conv-1", "conv-2"})
	mgr.JoinRoom("b", "conv-1")

	mgr.OnDisconnect(context.Background(), "a")

	mgr.Fanout("conv-1", EventTyping, nil, "")
	mgr.Fanout("conv-2", EventTyping, nil, "")
	recvFrame(t, b)
	mustBeEmpty(t, a)
	if mgr.RoomSize("conv-2") != 0 {
		t.Fatal("room kept the disconnected conn")
	}
}

func TestEmptyIdentifiersAreNoOps(t *testing.T) {
	mgr := NewManager("n1", newPresenceRecorder())
	newTestClient(t, mgr, "a")

	mgr.JoinRoom("a", "")
	mgr.JoinRoom("", "conv-1")
	mgr.BindIdentity(context.Background(), "a", "")
	mgr.LeaveRoom("a", "never-joined")

	if mgr.RoomSize("conv-1") != 0 || mgr.RoomSize("") != 0 {
		t.Fatal("empty ids created room state")
	}
}

func TestJoinRoomReportFirstExactlyOneUnderConcurrency(t *testing.T) {
	mgr := NewManager("n1", newPresenceRecorder())
	const joiners = 16

	ids := make([]string, joiners)
	for i := range ids {
		ids[i] = string(rune('a' + i))
		newTestClient(t, mgr, ids[i])
	}

	var wg sync.WaitGroup
	var firsts int32
	for _, id := range ids {
		wg.Add(1)
		go func(connID string) {
			defer wg.Done()
			if mgr.JoinRoomReportFirst(connID, "call:conv-1") {
				atomic.AddInt32(&firsts, 1)
			}
		}(id)
	}
	wg.Wait()

	if firsts != 1 {
		t.Fatalf("initiators = %d, want exactly 1", firsts)
	}
	if n := mgr.RoomSize("call:conv-1"); n != joiners {
		t.Fatalf("room size = %d, want %d", n, joiners)
	}
}

func TestJoinRoomReportFirstUnknownConnIsNoOp(t *testing.T) {
	mgr := NewManager("n1", newPresenceRecorder())
	if mgr.JoinRoomReportFirst("ghost", "call:conv-1") {
		t.Fatal("unknown connection reported as initiator")
	}
	if mgr.RoomSize("call:conv-1") != 0 {
		t.Fatal("unknown connection created room state")
	}
}

func TestSlowClientDropsFrameWithoutBlocking(t *testing.T) {
	mgr := NewManager("n1", newPresenceRecorder())
	a := newTestClient(t, mgr, "a")
	mgr.JoinRoom("a", "conv-1")

	for i := 0; i < sendQueueSize+10; i++ {
		mgr.Fanout("conv-1", EventTyping, nil, "")
	}
	if len(a.Send) != sendQueueSize {
		t.Fatalf("queue length = %d, want %d", len(a.Send), sendQueueSize)
	}
}
