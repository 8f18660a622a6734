package ws

import "encoding/json"

// Client-originated events. Names are the wire contract with the frontend.
const (
	EventIdentityJoin         = "identity-join"
	EventJoinConversations    = "join-conversations"
	EventJoinConversation     = "join-conversation"
	EventLeaveConversation    = "leave-conversation"
	EventTyping               = "typing"
	EventNotTyping            = "not-typing"
	EventGetUserOnline        = "get-user-online"
	EventCallUser             = "call-user"
	EventReceiveSignal        = "receive-signal"
	EventSubscribeCallAudio   = "subscribe-call-audio"
	EventSubscribeCallVideo   = "subscribe-call-video"
	EventRejectCall           = "reject-call"
	EventEndCall              = "end-call"
	EventConversationLastView = "conversation-last-view"
	EventAcceptFriend         = "accept-friend"
	EventSendFriendInvite     = "send-friend-invite"
	EventDeletedFriendInvite  = "deleted-friend-invite"
	EventDeletedInviteWasSend = "deleted-invite-was-send"
	EventDeletedFriend        = "deleted-friend"
)

// Server-originated events.
const (
	EventAck                 = "ack"
	EventUserLastView        = "user-last-view"
	EventJoinedCallAudio     = "joined-call-audio"
	EventJoinedCallVideo     = "joined-call-video"
	EventUserJoinedCallAudio = "user-joined-call-audio"
	EventUserJoinedCallVideo = "user-joined-call-video"
)

// Frame is the JSON wire envelope: {"event": ..., "ackId": ..., "data": ...}.
// AckID is set by clients on callback-style events and echoed on the ack.
type Frame struct {
	Event string          `json:"event"`
	AckID int64           `json:"ackId,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeFrame builds the wire bytes for one event. data may be any JSON-
// marshalable value or an already-encoded json.RawMessage passed through.
func EncodeFrame(event string, data any) ([]byte, error) {
	raw, err := toRaw(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

func encodeAck(ackID int64, data any) ([]byte, error) {
	raw, err := toRaw(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: EventAck, AckID: ackID, Data: raw})
}

func toRaw(data any) (json.RawMessage, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// ---- typed payloads ----
//
// Every handler decodes its event into one of these and checks required
// fields before acting; a failed decode or validation is a silent no-op
// for fire-and-forget events.

type identityJoinPayload struct {
	UserID string `json:"userId"`
	Token  string `json:"token,omitempty"`
}

func (p *identityJoinPayload) validate() bool { return p.UserID != "" }

type conversationPayload struct {
	ConversationID string `json:"conversationId"`
}

func (p *conversationPayload) validate() bool { return p.ConversationID != "" }

type typingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

func (p *typingPayload) validate() bool { return p.ConversationID != "" && p.UserID != "" }

type userPayload struct {
	UserID string `json:"userId"`
}

func (p *userPayload) validate() bool { return p.UserID != "" }

type callUserPayload struct {
	From           string          `json:"from"`
	Signal         json.RawMessage `json:"signal"`
	ConversationID string          `json:"conversationId"`
}

func (p *callUserPayload) validate() bool {
	return p.From != "" && len(p.Signal) > 0 && p.ConversationID != ""
}

type signalPayload struct {
	To             string          `json:"to"`
	From           string          `json:"from"`
	Signal         json.RawMessage `json:"signal"`
	ConversationID string          `json:"conversationId"`
}

func (p *signalPayload) validate() bool {
	return p.To != "" && p.From != "" && len(p.Signal) > 0 && p.ConversationID != ""
}

type subscribeCallPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	PeerID         string `json:"peerId"`
}

func (p *subscribeCallPayload) validate() bool {
	return p.ConversationID != "" && p.UserID != "" && p.PeerID != ""
}

type callControlPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

func (p *callControlPayload) validate() bool { return p.ConversationID != "" && p.UserID != "" }

type lastViewPayload struct {
	ConversationID string `json:"conversationId"`
	ChannelID      string `json:"channelId,omitempty"`
}

func (p *lastViewPayload) validate() bool { return p.ConversationID != "" }

// callAnnouncement is pushed on call-room joins: to the joiner itself with
// its initiator flag, and to the existing members about the joiner.
type callAnnouncement struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	PeerID         string `json:"peerId"`
	IsInitiator    bool   `json:"isInitiator"`
}

// lastViewBroadcast is the user-last-view fan-out payload.
type lastViewBroadcast struct {
	ConversationID string `json:"conversationId"`
	ChannelID      string `json:"channelId,omitempty"`
	UserID         string `json:"userId"`
	LastView       int64  `json:"lastView"` // unix ms
}
