// Package render builds the user-visible previews, results and errors for
// moderation commands. Messages are platform neutral; the discord adapter
// turns them into embeds.
package render

import (
	"fmt"
	"strings"
	"time"
)

// Tone selects the accent colour of a rendered message
type Tone int

const (
	ToneNeutral Tone = iota
	ToneInfo
	ToneSuccess
	ToneWarning
	ToneDanger
)

// Field is a labelled value shown under the message body
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Message is a rendered result
type Message struct {
	Title     string
	Body      string
	Tone      Tone
	Fields    []Field
	Footer    string
	Ephemeral bool
}

// ActionStyle controls how an interactive action is drawn
type ActionStyle int

const (
	StylePrimary ActionStyle = iota
	StyleSecondary
	StyleSuccess
	StyleDanger
)

// Action is a clickable control attached to a message
type Action struct {
	ID       string
	Label    string
	Style    ActionStyle
	Disabled bool
}

// Target describes who or what an action applies to
type Target struct {
	ID   string
	Name string
}

func (t Target) String() string {
	if t.Name == "" {
		return fmt.Sprintf("<@%s>", t.ID)
	}
	return fmt.Sprintf("%s (<@%s>)", t.Name, t.ID)
}

// Preview renders the confirmation prompt for a destructive action
func Preview(title string, target Target, reason string, extra ...Field) Message {
	fields := []Field{{Name: "Target", Value: target.String(), Inline: true}}
	fields = append(fields, Field{Name: "Reason", Value: reasonOrDefault(reason), Inline: true})
	fields = append(fields, extra...)
	return Message{
		Title:     title,
		Body:      "Please confirm this action.",
		Tone:      ToneWarning,
		Fields:    fields,
		Ephemeral: true,
	}
}

// Cancelled renders the neutral result of a cancelled prompt
func Cancelled() Message {
	return Message{
		Title:     "Cancelled",
		Body:      "No action was taken.",
		Tone:      ToneNeutral,
		Ephemeral: true,
	}
}

// Expired renders the notice shown once the confirmation window closes
func Expired(window time.Duration) Message {
	return Message{
		Title:     "Prompt expired",
		Body:      fmt.Sprintf("No response within %s. No action was taken.", window),
		Tone:      ToneNeutral,
		Ephemeral: true,
	}
}

// Denied renders a validation or authorization refusal
func Denied(reason string) Message {
	return Message{
		Title:     "Not allowed",
		Body:      reason,
		Tone:      ToneDanger,
		Ephemeral: true,
	}
}

// Invalid renders a rejected input
func Invalid(reason string) Message {
	return Message{
		Title:     "Invalid input",
		Body:      reason,
		Tone:      ToneDanger,
		Ephemeral: true,
	}
}

// Failure renders the generic notice for a platform or store error.
// Error details stay in the logs.
func Failure(verb string) Message {
	return Message{
		Title:     "Action failed",
		Body:      fmt.Sprintf("Something went wrong while trying to %s. Check my permissions and try again.", verb),
		Tone:      ToneDanger,
		Ephemeral: true,
	}
}

// PartialFailure renders the notice for a durable-store write that failed
// after the platform action already took effect
func PartialFailure(done, failed string) Message {
	return Message{
		Title:     "Action partially completed",
		Body:      fmt.Sprintf("%s, but %s failed. The platform action was not rolled back.", done, failed),
		Tone:      ToneWarning,
		Ephemeral: true,
	}
}

// Success renders the summary of a completed action
func Success(title, body string, fields ...Field) Message {
	return Message{
		Title:  title,
		Body:   body,
		Tone:   ToneSuccess,
		Fields: fields,
	}
}

// Info renders a read-only listing
func Info(title, body string, fields ...Field) Message {
	return Message{
		Title:     title,
		Body:      body,
		Tone:      ToneInfo,
		Fields:    fields,
		Ephemeral: true,
	}
}

func reasonOrDefault(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return "No reason provided"
	}
	return reason
}

// Reason returns the reason text recorded with a platform action
func Reason(reason string) string {
	return reasonOrDefault(reason)
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// Timestamp formats t as a relative platform timestamp
func Timestamp(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}
