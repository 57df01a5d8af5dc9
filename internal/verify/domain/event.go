package domain

type EventKind string

const (
	EventRequestCreated       EventKind = "request_created"
	EventRequestStatusChanged EventKind = "request_status_changed"
	EventPresenceCountChanged EventKind = "presence_count_changed"
)

type targetKind int

const (
	targetAdmins targetKind = iota
	targetAdminsAndUser
	targetEveryone
)

// Target selects which live connections receive an event.
type Target struct {
	kind   targetKind
	userID string
}

// TargetAdmins matches every connection identified with the admin role.
func TargetAdmins() Target { return Target{kind: targetAdmins} }

// TargetAdminsAndUser matches admins and any connection identified as
// userID. An empty userID degrades to TargetAdmins.
func TargetAdminsAndUser(userID string) Target {
	if userID == "" {
		return TargetAdmins()
	}
	return Target{kind: targetAdminsAndUser, userID: userID}
}

// TargetEveryone matches every connection, identified or not.
func TargetEveryone() Target { return Target{kind: targetEveryone} }

// Matches evaluates the target against a connection's identity; nil means
// the connection never identified.
func (t Target) Matches(id *Identity) bool {
	if t.kind == targetEveryone {
		return true
	}
	if id == nil {
		return false
	}
	if id.IsAdmin() {
		return true
	}
	return t.kind == targetAdminsAndUser && id.UserID == t.userID
}

func (t Target) String() string {
	switch t.kind {
	case targetAdmins:
		return "admins"
	case targetAdminsAndUser:
		return "admins+" + t.userID
	default:
		return "everyone"
	}
}

// Event is one transition (or presence change) to fan out. Payload is a
// VerificationRequest snapshot or, for presence, the live connection count.
type Event struct {
	Kind    EventKind
	Payload any
	Target  Target
}

// RequestCreated is targeted at admins plus the owner, if any.
func RequestCreated(r VerificationRequest) Event {
	return Event{Kind: EventRequestCreated, Payload: r, Target: TargetAdminsAndUser(r.OwnerUserID)}
}

// RequestStatusChanged is targeted at admins plus the owner, if any.
func RequestStatusChanged(r VerificationRequest) Event {
	return Event{Kind: EventRequestStatusChanged, Payload: r, Target: TargetAdminsAndUser(r.OwnerUserID)}
}

// PresenceCountChanged is broadcast to everyone.
func PresenceCountChanged(n int) Event {
	return Event{Kind: EventPresenceCountChanged, Payload: n, Target: TargetEveryone()}
}
