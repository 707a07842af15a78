// Package router implements the ordered command-dispatch state machine
// that inspects each inbound message before it can reach the
// completion service. Rules are evaluated top to bottom; the first
// match wins and short-circuits the rest.
package router

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"

	"github.com/crimsonworks/felix/pkg/identity"
)

// Status classifies a reply for the client, which suppresses optional
// presentation (speech) on error.
type Status string

const (
	StatusSuccess Status = "success"
	StatusInfo    Status = "info"
	StatusError   Status = "error"
)

// Reply is the structured response for a routed message.
type Reply struct {
	Text   string `json:"reply"`
	Status Status `json:"status"`
}

// ResetToken is the fixed reset command. It is matched by containment
// so clients can embed it in a carrier message, and it outranks every
// other rule, name capture included.
const ResetToken = "CrimsonResetConfigData"

const (
	resetReply     = "Memory reset. Please tell me your name again. (^_^)"
	namePromptText = "Hey! I don't know your name yet. Please tell me by saying 'My name is ...' (^_^)"
	gameNotFound   = "⚠️ I don't know that game. Say 'play game' to see what I can launch!"
)

// games is the fixed launch catalog callers are taught to ask for.
var games = []string{
	"Pet Simulator X", "Brookhaven", "Blox Fruits", "Doors",
	"Murder Mystery 2", "Adopt Me!", "Shindo Life", "Arsenal",
	"Jailbreak", "Tower of Hell", "Bee Swarm Simulator", "Evade",
	"BedWars", "Combat Warriors", "Natural Disaster Survival",
	"Anime Adventures", "Piggy", "Build A Boat", "Survive the Killer",
	"Nico's Nextbots",
}

var jokes = []string{
	"Why was the computer cold? Because it left its Windows open! 😹",
	"Why did the computer sneeze? It had a virus! 🤧",
	"Why don't robots ever panic? They have nerves of steel! 🤖",
}

// namePatterns extract a single alphabetic token from the accepted
// phrasings. Multi-word or empty extractions do not match and fall
// through to later rules.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^my name is\s+([a-z]+)[.!?]*$`),
	regexp.MustCompile(`^i'm\s+([a-z]+)[.!?]*$`),
	regexp.MustCompile(`^i am\s+([a-z]+)[.!?]*$`),
	regexp.MustCompile(`^this is\s+([a-z]+)[.!?]*$`),
}

// Router dispatches messages against the identity store. A message no
// rule claims falls through to the completion gateway.
type Router struct {
	store *identity.Store
}

func New(store *identity.Store) *Router {
	return &Router{store: store}
}

type rule struct {
	name   string
	handle func(r *Router, rec *identity.Record, raw, lower string) (Reply, bool)
}

// rules in priority order. Reset must stay first so it remains
// reachable mid-conversation, even inside a name-capture phrase.
var rules = []rule{
	{"reset", (*Router).handleReset},
	{"name-capture", (*Router).handleNameCapture},
	{"name-gate", (*Router).handleNameGate},
	{"help", (*Router).handleHelp},
	{"play-game", (*Router).handlePlayGame},
	{"launch", (*Router).handleLaunch},
	{"musicplay", (*Router).handleMusicPlay},
	{"joke", (*Router).handleJoke},
	{"what-is-my-name", (*Router).handleWhatIsMyName},
}

// RuleNames exposes the evaluation order.
func RuleNames() []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.name
	}
	return names
}

// Route runs the message through the rule chain. The second return is
// false when no rule matched and the message should be forwarded to
// the completion gateway.
func (r *Router) Route(rec *identity.Record, message string) (Reply, bool) {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, ru := range rules {
		if reply, ok := ru.handle(r, rec, message, lower); ok {
			return reply, true
		}
	}
	return Reply{}, false
}

func (r *Router) handleReset(rec *identity.Record, raw, lower string) (Reply, bool) {
	if !strings.Contains(lower, strings.ToLower(ResetToken)) {
		return Reply{}, false
	}
	r.store.Reset(rec.CallerKey)
	return Reply{Text: resetReply, Status: StatusInfo}, true
}

func (r *Router) handleNameCapture(rec *identity.Record, raw, lower string) (Reply, bool) {
	name := extractName(lower)
	if name == "" {
		return Reply{}, false
	}
	assigned, current := r.store.SetName(rec.CallerKey, name)
	if assigned {
		return Reply{
			Text:   fmt.Sprintf("Oh, nice to meet you, %s! (^_^) You're user #%d.", current, rec.ID),
			Status: StatusSuccess,
		}, true
	}
	return Reply{
		Text:   fmt.Sprintf("I already know you as %s! (^_^)", current),
		Status: StatusInfo,
	}, true
}

func (r *Router) handleNameGate(rec *identity.Record, raw, lower string) (Reply, bool) {
	if rec.NameKnown() {
		return Reply{}, false
	}
	return Reply{Text: namePromptText, Status: StatusInfo}, true
}

func (r *Router) handleHelp(rec *identity.Record, raw, lower string) (Reply, bool) {
	if lower != "help" {
		return Reply{}, false
	}
	var b strings.Builder
	b.WriteString("🔍 Felix Commands:\n")
	b.WriteString("play game - list the games I can launch\n")
	b.WriteString("play(<game>) or launch <game> - launch a Roblox game\n")
	b.WriteString("musicplay <song> - play music on YouTube Music\n")
	b.WriteString("joke - hear a joke\n")
	b.WriteString("what is my name - check what I remember\n")
	b.WriteString(ResetToken + " - make me forget you\n")
	b.WriteString("anything else - just chat with me! (^_^)")
	return Reply{Text: b.String(), Status: StatusInfo}, true
}

func (r *Router) handlePlayGame(rec *identity.Record, raw, lower string) (Reply, bool) {
	if lower != "play game" && lower != "playgame" {
		return Reply{}, false
	}
	var b strings.Builder
	b.WriteString("🎮 Available Games:\n")
	for _, g := range games {
		b.WriteString("- " + g + "\n")
	}
	b.WriteString("Say play(<game name>) to launch one!")
	return Reply{Text: b.String(), Status: StatusInfo}, true
}

func (r *Router) handleLaunch(rec *identity.Record, raw, lower string) (Reply, bool) {
	var query string
	switch {
	case strings.HasPrefix(lower, "play(") && strings.HasSuffix(lower, ")"):
		query = strings.TrimSpace(lower[len("play(") : len(lower)-1])
	case strings.HasPrefix(lower, "launch "):
		query = strings.TrimSpace(lower[len("launch "):])
	default:
		return Reply{}, false
	}
	if query == "" {
		return Reply{Text: gameNotFound, Status: StatusInfo}, true
	}
	game, ok := findGame(query)
	if !ok {
		return Reply{Text: gameNotFound, Status: StatusInfo}, true
	}
	return Reply{
		Text:   fmt.Sprintf("Launching %s on Roblox! 🎮 %s", game, launchURL(game)),
		Status: StatusSuccess,
	}, true
}

func (r *Router) handleMusicPlay(rec *identity.Record, raw, lower string) (Reply, bool) {
	if !strings.HasPrefix(lower, "musicplay") {
		return Reply{}, false
	}
	// Slice the trimmed original text so the song keeps its casing.
	song := strings.TrimSpace(strings.TrimSpace(raw)[len("musicplay"):])
	if song == "" {
		return Reply{Text: "🎵 Which song? Say musicplay <song name>!", Status: StatusInfo}, true
	}
	return Reply{
		Text:   fmt.Sprintf("Playing %s on YouTube Music! 🎵 %s", song, musicURL(song)),
		Status: StatusSuccess,
	}, true
}

func (r *Router) handleJoke(rec *identity.Record, raw, lower string) (Reply, bool) {
	if !strings.Contains(lower, "joke") {
		return Reply{}, false
	}
	return Reply{Text: jokes[rand.Intn(len(jokes))], Status: StatusSuccess}, true
}

func (r *Router) handleWhatIsMyName(rec *identity.Record, raw, lower string) (Reply, bool) {
	if !strings.Contains(lower, "what is my name") {
		return Reply{}, false
	}
	// Name gate already fired for unknown names, so DisplayName is set.
	return Reply{Text: fmt.Sprintf("You're %s!", rec.DisplayName), Status: StatusSuccess}, true
}

// extractName returns the title-cased candidate name, or "" when the
// text matches no phrasing or extracts anything but one alphabetic
// token.
func extractName(lower string) string {
	for _, p := range namePatterns {
		if m := p.FindStringSubmatch(lower); m != nil {
			return titleCase(m[1])
		}
	}
	return ""
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func findGame(query string) (string, bool) {
	for _, g := range games {
		if strings.Contains(strings.ToLower(g), query) {
			return g, true
		}
	}
	return "", false
}

func launchURL(game string) string {
	return "https://www.roblox.com/games/search?Keyword=" + strings.ReplaceAll(game, " ", "%20")
}

func musicURL(song string) string {
	return "https://music.youtube.com/search?q=" + strings.ReplaceAll(song, " ", "+")
}
