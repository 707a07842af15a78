package window

import (
	"fmt"
	"strings"
	"testing"

	"github.com/crimsonworks/felix/pkg/identity"
)

func TestBuildContext_NewIdentity(t *testing.T) {
	b := NewBuilder(8)
	rec := &identity.Record{ID: 1, CallerKey: "10.0.0.1"}

	msgs := b.BuildContext(rec, "hello")
	if len(msgs) != 2 {
		t.Fatalf("expected persona + inbound, got %d messages", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != Persona {
		t.Fatalf("expected persona system message first, got %+v", msgs[0])
	}
	if msgs[1].Role != "user" || msgs[1].Content != "hello" {
		t.Fatalf("expected inbound message last, got %+v", msgs[1])
	}
}

func TestBuildContext_KnownNameIncludesIdentityFact(t *testing.T) {
	b := NewBuilder(8)
	rec := &identity.Record{ID: 7, CallerKey: "10.0.0.1", DisplayName: "Alice"}

	msgs := b.BuildContext(rec, "hello")
	if len(msgs) != 3 {
		t.Fatalf("expected persona + fact + inbound, got %d messages", len(msgs))
	}
	fact := msgs[1]
	if fact.Role != "system" {
		t.Fatalf("expected system identity fact, got role %q", fact.Role)
	}
	if !strings.Contains(fact.Content, "Alice") || !strings.Contains(fact.Content, "7") {
		t.Fatalf("identity fact should name the caller and id, got %q", fact.Content)
	}
}

func TestBuildContext_RecallIsBounded(t *testing.T) {
	b := NewBuilder(4)
	rec := &identity.Record{ID: 1, CallerKey: "k", DisplayName: "Bob"}
	for i := 0; i < 10; i++ {
		role := identity.RoleCaller
		if i%2 == 1 {
			role = identity.RoleAssistant
		}
		rec.History = append(rec.History, identity.Turn{Role: role, Text: fmt.Sprintf("t%d", i)})
	}

	msgs := b.BuildContext(rec, "next")
	// persona + fact + 4 recalled + inbound
	if len(msgs) != 7 {
		t.Fatalf("expected 7 messages, got %d", len(msgs))
	}
	if msgs[2].Content != "t6" {
		t.Fatalf("expected recall to start at t6, got %q", msgs[2].Content)
	}
	if msgs[5].Content != "t9" {
		t.Fatalf("expected recall to end at t9, got %q", msgs[5].Content)
	}
}

func TestBuildContext_RoleMapping(t *testing.T) {
	b := NewBuilder(8)
	rec := &identity.Record{
		ID: 1, CallerKey: "k", DisplayName: "Bob",
		History: []identity.Turn{
			{Role: identity.RoleCaller, Text: "hi"},
			{Role: identity.RoleAssistant, Text: "hey!"},
		},
	}

	msgs := b.BuildContext(rec, "next")
	if msgs[2].Role != "user" {
		t.Fatalf("caller turn should map to user, got %q", msgs[2].Role)
	}
	if msgs[3].Role != "assistant" {
		t.Fatalf("assistant turn should map to assistant, got %q", msgs[3].Role)
	}
}

func TestNewBuilder_DefaultsRecall(t *testing.T) {
	b := NewBuilder(0)
	if b.recallTurns != DefaultRecallTurns {
		t.Fatalf("expected default recall %d, got %d", DefaultRecallTurns, b.recallTurns)
	}
}
