package proto

import (
	"time"

	"github.com/google/uuid"
)

// Endpoint is one side of an envelope's from/to pair. Mud "*"
// addresses the whole network.
type Endpoint struct {
	Mud     string
	User    string
	Channel string
}

// Metadata carries delivery options.
type Metadata struct {
	Priority int
	TTL      int
	Encoding string
	Language string
}

// DefaultMetadata matches the protocol defaults.
func DefaultMetadata() Metadata {
	return Metadata{Priority: 5, TTL: 300, Encoding: "utf-8", Language: "en"}
}

// Envelope is an outbound wire message under construction.
type Envelope struct {
	ID        string
	Kind      Kind
	Timestamp time.Time
	From      Endpoint
	To        Endpoint
	Metadata  Metadata
	Payload   *Object
}

// New builds an envelope of the given kind with a fresh unique id,
// a UTC timestamp, and default metadata.
func New(kind Kind, from, to Endpoint, payload *Object) *Envelope {
	return &Envelope{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		From:      from,
		To:        to,
		Metadata:  DefaultMetadata(),
		Payload:   payload,
	}
}

func endpointObject(e Endpoint) *Object {
	o := NewObject().Str("mud", e.Mud)
	if e.User != "" {
		o.Str("user", e.User)
	}
	if e.Channel != "" {
		o.Str("channel", e.Channel)
	}
	return o
}

// Encode renders the envelope as one JSON document.
func (e *Envelope) Encode() []byte {
	payload := e.Payload
	if payload == nil {
		payload = NewObject()
	}
	doc := NewObject().
		Str("version", Version).
		Str("id", e.ID).
		Str("timestamp", e.Timestamp.UTC().Format(time.RFC3339)).
		Str("type", string(e.Kind)).
		Obj("from", endpointObject(e.From)).
		Obj("to", endpointObject(e.To)).
		Obj("payload", payload).
		Obj("metadata", NewObject().
			Int("priority", int64(e.Metadata.Priority)).
			Int("ttl", int64(e.Metadata.TTL)).
			Str("encoding", e.Metadata.Encoding).
			Str("language", e.Metadata.Language))
	return doc.JSON()
}

// UserInfo describes a user in who and finger payloads.
type UserInfo struct {
	Username    string
	DisplayName string
	Level       int
	IdleSeconds int
	Location    string
	Race        string
	Class       string
	Guild       string
	LastLogin   string
	Plan        string
	Email       string
}

func (u UserInfo) object() *Object {
	o := NewObject().Str("username", u.Username)
	if u.DisplayName != "" {
		o.Str("displayName", u.DisplayName)
	}
	if u.Level > 0 {
		o.Int("level", int64(u.Level))
	}
	o.Int("idle", int64(u.IdleSeconds))
	if u.Location != "" {
		o.Str("location", u.Location)
	}
	if u.Race != "" {
		o.Str("race", u.Race)
	}
	if u.Class != "" {
		o.Str("class", u.Class)
	}
	if u.Guild != "" {
		o.Str("guild", u.Guild)
	}
	if u.LastLogin != "" {
		o.Str("lastLogin", u.LastLogin)
	}
	if u.Plan != "" {
		o.Str("plan", u.Plan)
	}
	if u.Email != "" {
		o.Str("email", u.Email)
	}
	return o
}

// UserInfoFromDoc reads one who/finger user object.
func UserInfoFromDoc(raw []byte) UserInfo {
	var u UserInfo
	u.Username, _ = GetString(raw, "username")
	u.DisplayName, _ = GetString(raw, "displayName")
	if lvl, ok := GetInt(raw, "level"); ok {
		u.Level = int(lvl)
	}
	if idle, ok := GetInt(raw, "idle"); ok {
		u.IdleSeconds = int(idle)
	}
	u.Location, _ = GetString(raw, "location")
	u.Race, _ = GetString(raw, "race")
	u.Class, _ = GetString(raw, "class")
	u.Guild, _ = GetString(raw, "guild")
	u.LastLogin, _ = GetString(raw, "lastLogin")
	u.Plan, _ = GetString(raw, "plan")
	u.Email, _ = GetString(raw, "email")
	return u
}

// NewTell builds a directed private message.
func NewTell(from, to Endpoint, message string) *Envelope {
	return New(KindTell, from, to, NewObject().Str("message", message))
}

// NewEmote builds a broadcast emote addressed to one MUD.
func NewEmote(from Endpoint, toMud, action string) *Envelope {
	return New(KindEmote, from, Endpoint{Mud: toMud}, NewObject().Str("action", action))
}

// NewEmoteTo builds a directed emote.
func NewEmoteTo(from, to Endpoint, action string) *Envelope {
	return New(KindEmoteTo, from, to, NewObject().Str("action", action).Str("target", to.User))
}

// NewChannelMessage builds a channel envelope. action is one of
// ActionJoin, ActionLeave, ActionMessage.
func NewChannelMessage(from Endpoint, channel, action, message string) *Envelope {
	payload := NewObject().Str("channel", channel).Str("action", action)
	if message != "" {
		payload.Str("message", message)
	}
	return New(KindChannel, from, Endpoint{Mud: "*", Channel: channel}, payload)
}

// NewWhoRequest asks a MUD for its online list.
func NewWhoRequest(from Endpoint, mud string) *Envelope {
	return New(KindWho, from, Endpoint{Mud: mud}, NewObject().Bool("request", true))
}

// NewWhoResponse answers a who request. echoID correlates the
// response to the request envelope.
func NewWhoResponse(from, to Endpoint, users []UserInfo, echoID string) *Envelope {
	items := make([]*Object, 0, len(users))
	for _, u := range users {
		items = append(items, u.object())
	}
	e := New(KindWho, from, to, NewObject().Objects("users", items))
	e.ID = echoID
	return e
}

// NewFingerRequest asks for one user's profile.
func NewFingerRequest(from Endpoint, mud, user string) *Envelope {
	return New(KindFinger, from, Endpoint{Mud: mud, User: user},
		NewObject().Str("user", user).Bool("request", true))
}

// NewFingerResponse answers a finger request.
func NewFingerResponse(from, to Endpoint, info UserInfo, echoID string) *Envelope {
	e := New(KindFinger, from, to,
		NewObject().Str("user", info.Username).Obj("info", info.object()))
	e.ID = echoID
	return e
}

// NewLocateRequest broadcasts a search for a user.
func NewLocateRequest(from Endpoint, user string) *Envelope {
	return New(KindLocate, from, Endpoint{Mud: "*"},
		NewObject().Str("user", user).Bool("request", true))
}

// NewLocateResponse answers a locate request; sent only when the
// named user is online locally.
func NewLocateResponse(from, to Endpoint, user, location string, echoID string) *Envelope {
	e := New(KindLocate, from, to, NewObject().
		Str("user", user).
		Obj("location", NewObject().Str("mud", from.Mud).Str("room", location).Bool("online", true)))
	e.ID = echoID
	return e
}

// NewPresence builds an unsolicited status update.
func NewPresence(from Endpoint, status, activity, location string) *Envelope {
	payload := NewObject().Str("status", status)
	if activity != "" {
		payload.Str("activity", activity)
	}
	if location != "" {
		payload.Str("location", location)
	}
	return New(KindPresence, from, Endpoint{Mud: "*"}, payload)
}

// NewAuth builds the first envelope after the upgrade completes.
func NewAuth(mudName, token string) *Envelope {
	return New(KindAuth, Endpoint{Mud: mudName}, Endpoint{Mud: "Gateway"},
		NewObject().Str("mudName", mudName).Str("token", token))
}

// NewPing builds a heartbeat probe carrying a millisecond timestamp.
func NewPing(from Endpoint, timestampMillis int64) *Envelope {
	return New(KindPing, from, Endpoint{Mud: "Gateway"},
		NewObject().Int("timestamp", timestampMillis))
}

// NewPong echoes a ping's timestamp back to its sender.
func NewPong(from, to Endpoint, echoTimestamp int64) *Envelope {
	return New(KindPong, from, to, NewObject().Int("timestamp", echoTimestamp))
}

// NewError builds an error envelope.
func NewError(from, to Endpoint, code int, message string) *Envelope {
	return New(KindError, from, to,
		NewObject().Int("code", int64(code)).Str("message", message))
}
