package identity

// Turn roles as stored in conversation history.
const (
	RoleCaller    = "caller"
	RoleAssistant = "assistant"
)

// Turn is one message exchanged in either direction.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Record is the per-identity state kept for one caller key. IDs are
// assigned once at first contact and survive resets; the caller key is
// whatever opaque string the transport handed us (a shared network
// origin maps to a single record, which is an accepted limitation).
type Record struct {
	ID          int64  `json:"id"`
	CallerKey   string `json:"caller_key"`
	DisplayName string `json:"display_name,omitempty"`
	History     []Turn `json:"history"`
}

// NameKnown reports whether a display name has been captured.
func (r *Record) NameKnown() bool {
	return r != nil && r.DisplayName != ""
}

// Clone returns a deep copy safe to use outside the store lock.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	cp.History = make([]Turn, len(r.History))
	copy(cp.History, r.History)
	return &cp
}
