// Package commitmsg derives a conventional commit message from a change
// set. The subject line is policy-checked (length, capitalization,
// imperative mood) before a message is produced; callers must supply a
// corrected subject when validation rejects it.
package commitmsg

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrInvalidSubject indicates the subject violates the commit policy.
var ErrInvalidSubject = errors.New("invalid commit subject")

// MaxSubjectLength is the conventional subject line limit.
const MaxSubjectLength = 72

// Strictness selects how hard the imperative-mood heuristic bites.
type Strictness string

const (
	// StrictnessStrict applies the mood heuristic with no exceptions.
	StrictnessStrict Strictness = "strict"

	// StrictnessLenient allows common imperative verbs the suffix
	// heuristic would wrongly reject ("Address", "Pass", ...).
	StrictnessLenient Strictness = "lenient"

	// StrictnessOff skips the mood heuristic; length, capitalization and
	// trailing-period rules still apply.
	StrictnessOff Strictness = "off"
)

// Valid reports whether s is a known strictness level.
func (s Strictness) Valid() bool {
	switch s {
	case StrictnessStrict, StrictnessLenient, StrictnessOff:
		return true
	}
	return false
}

// Change is the input slice of a change set the generator needs.
type Change struct {
	Kind     string
	Scope    string
	Subject  string
	Breaking bool

	// Aspects are the hunk aspect labels touched by the change, in
	// report order.
	Aspects []string
}

// Message is a structured conventional commit message.
type Message struct {
	Type    string `json:"type"`
	Scope   string `json:"scope,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body,omitempty"`
	Footer  string `json:"footer,omitempty"`
}

// Format renders the message in conventional commit form.
func (m *Message) Format() string {
	var sb strings.Builder

	sb.WriteString(m.Type)
	if m.Scope != "" {
		sb.WriteString("(" + m.Scope + ")")
	}
	sb.WriteString(": " + m.Subject)

	if m.Body != "" {
		sb.WriteString("\n\n" + m.Body)
	}
	if m.Footer != "" {
		sb.WriteString("\n\n" + m.Footer)
	}
	return sb.String()
}

// Generator validates subjects and builds messages.
type Generator struct {
	strictness Strictness
}

// NewGenerator creates a generator. Empty strictness means lenient.
func NewGenerator(strictness Strictness) (*Generator, error) {
	if strictness == "" {
		strictness = StrictnessLenient
	}
	if !strictness.Valid() {
		return nil, fmt.Errorf("unknown strictness %q", strictness)
	}
	return &Generator{strictness: strictness}, nil
}

// Generate derives the message for a change. The type is taken directly
// from the change kind; generation is rejected with ErrInvalidSubject
// when the subject violates policy.
func (g *Generator) Generate(ch Change) (*Message, error) {
	if ch.Kind == "" {
		return nil, errors.New("change kind is required")
	}
	if err := g.ValidateSubject(ch.Subject); err != nil {
		return nil, err
	}

	// The change-set vocabulary says "feature"; the rendered type follows
	// the conventional-commit spelling.
	typ := ch.Kind
	if typ == "feature" {
		typ = "feat"
	}

	msg := &Message{
		Type:    typ,
		Scope:   ch.Scope,
		Subject: ch.Subject,
	}

	if len(ch.Aspects) > 0 {
		var sb strings.Builder
		sb.WriteString("Aspects touched:\n")
		seen := make(map[string]bool)
		for _, a := range ch.Aspects {
			if a == "" || seen[a] {
				continue
			}
			seen[a] = true
			sb.WriteString("\n- " + a)
		}
		msg.Body = sb.String()
	}

	if ch.Breaking {
		msg.Footer = "BREAKING CHANGE: " + ch.Subject
	}

	return msg, nil
}

// imperativeExceptions are verbs the "-ed"/"-s" suffix heuristic would
// wrongly flag. Applied under lenient strictness only.
var imperativeExceptions = map[string]bool{
	"address":  true,
	"bypass":   true,
	"compress": true,
	"embed":    true,
	"feed":     true,
	"focus":    true,
	"pass":     true,
	"process":  true,
	"suppress": true,
}

// ValidateSubject checks the commit subject policy: at most 72
// characters, capitalized first letter, no trailing period, and a
// lightweight imperative-mood heuristic on the first word.
func (g *Generator) ValidateSubject(subject string) error {
	if strings.TrimSpace(subject) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSubject)
	}
	if n := utf8.RuneCountInString(subject); n > MaxSubjectLength {
		return fmt.Errorf("%w: %d characters exceeds limit of %d", ErrInvalidSubject, n, MaxSubjectLength)
	}

	first, _ := utf8.DecodeRuneInString(subject)
	if !unicode.IsUpper(first) {
		return fmt.Errorf("%w: must start with a capital letter", ErrInvalidSubject)
	}
	if strings.HasSuffix(subject, ".") {
		return fmt.Errorf("%w: must not end with a period", ErrInvalidSubject)
	}

	if g.strictness == StrictnessOff {
		return nil
	}

	word := strings.ToLower(strings.Fields(subject)[0])
	if g.strictness == StrictnessLenient && imperativeExceptions[word] {
		return nil
	}
	if strings.HasSuffix(word, "ed") {
		return fmt.Errorf("%w: first word %q looks past tense, use imperative mood", ErrInvalidSubject, word)
	}
	if strings.HasSuffix(word, "s") {
		return fmt.Errorf("%w: first word %q looks indicative, use imperative mood", ErrInvalidSubject, word)
	}
	return nil
}
