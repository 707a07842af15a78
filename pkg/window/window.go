// Package window turns a caller's identity record into the ordered
// message context handed to the completion provider.
package window

import (
	"fmt"

	"github.com/crimsonworks/felix/pkg/identity"
	"github.com/crimsonworks/felix/pkg/providers"
)

// Persona is the fixed system preamble. It is not part of history and
// is never persisted.
const Persona = "You are Felix, a friendly, emoji-using assistant who replies cutely."

// DefaultRecallTurns is how many of the most recent history turns are
// replayed into the context.
const DefaultRecallTurns = 8

// Builder assembles completion contexts from identity records.
type Builder struct {
	recallTurns int
}

// NewBuilder returns a Builder replaying the last recallTurns history
// turns. Non-positive values fall back to DefaultRecallTurns.
func NewBuilder(recallTurns int) *Builder {
	if recallTurns <= 0 {
		recallTurns = DefaultRecallTurns
	}
	return &Builder{recallTurns: recallTurns}
}

// BuildContext produces the ordered sequence {persona, identity fact,
// recent history, inbound message}. The identity fact is included only
// when the caller's name is known.
func (b *Builder) BuildContext(rec *identity.Record, inbound string) []providers.Message {
	msgs := make([]providers.Message, 0, b.recallTurns+3)
	msgs = append(msgs, providers.Message{Role: "system", Content: Persona})

	if rec != nil && rec.NameKnown() {
		msgs = append(msgs, providers.Message{
			Role:    "system",
			Content: fmt.Sprintf("You are talking to %s (user #%d). Address them by name.", rec.DisplayName, rec.ID),
		})
	}

	if rec != nil {
		history := rec.History
		if len(history) > b.recallTurns {
			history = history[len(history)-b.recallTurns:]
		}
		for _, turn := range history {
			role := "user"
			if turn.Role == identity.RoleAssistant {
				role = "assistant"
			}
			msgs = append(msgs, providers.Message{Role: role, Content: turn.Text})
		}
	}

	msgs = append(msgs, providers.Message{Role: "user", Content: inbound})
	return msgs
}
