package auditlog

import (
	"fmt"
	"time"

	"gavel/internal/render"
)

// maxContent bounds quoted message content in log entries
const maxContent = 1000

// MessageDeleted describes a removed message. Content and author are empty
// when the message was not cached.
type MessageDeleted struct {
	ChannelID string
	MessageID string
	AuthorID  string
	Author    string
	Content   string
}

// Render builds the log entry
func (e MessageDeleted) Render() render.Message {
	fields := []render.Field{
		{Name: "Channel", Value: fmt.Sprintf("<#%s>", e.ChannelID), Inline: true},
	}
	if e.AuthorID != "" {
		fields = append(fields, render.Field{Name: "Author", Value: render.Target{ID: e.AuthorID, Name: e.Author}.String(), Inline: true})
	}
	content := e.Content
	if content == "" {
		content = "*content unavailable*"
	}
	fields = append(fields, render.Field{Name: "Content", Value: render.Truncate(content, maxContent)})
	return render.Message{
		Title:  "Message deleted",
		Tone:   render.ToneDanger,
		Fields: fields,
		Footer: "Message ID: " + e.MessageID,
	}
}

// MessageEdited describes an edited message
type MessageEdited struct {
	ChannelID string
	MessageID string
	AuthorID  string
	Author    string
	Before    string
	After     string
}

// Render builds the log entry
func (e MessageEdited) Render() render.Message {
	before := e.Before
	if before == "" {
		before = "*content unavailable*"
	}
	return render.Message{
		Title: "Message edited",
		Tone:  render.ToneWarning,
		Fields: []render.Field{
			{Name: "Channel", Value: fmt.Sprintf("<#%s>", e.ChannelID), Inline: true},
			{Name: "Author", Value: render.Target{ID: e.AuthorID, Name: e.Author}.String(), Inline: true},
			{Name: "Before", Value: render.Truncate(before, maxContent)},
			{Name: "After", Value: render.Truncate(e.After, maxContent)},
		},
		Footer: "Message ID: " + e.MessageID,
	}
}

// BulkDeleted describes a batched delete observed on the platform
type BulkDeleted struct {
	ChannelID string
	Count     int
}

// Render builds the log entry
func (e BulkDeleted) Render() render.Message {
	return render.Message{
		Title: "Messages bulk deleted",
		Body:  fmt.Sprintf("%d messages were removed from <#%s>.", e.Count, e.ChannelID),
		Tone:  render.ToneDanger,
	}
}

// MemberEvent describes a member joining, leaving, or being (un)banned
type MemberEvent struct {
	Category  Category
	UserID    string
	Username  string
	Bot       bool
	CreatedAt time.Time
}

// Render builds the log entry
func (e MemberEvent) Render() render.Message {
	var title string
	tone := render.ToneInfo
	switch e.Category {
	case CategoryMemberJoin:
		title, tone = "Member joined", render.ToneSuccess
	case CategoryMemberLeave:
		title = "Member left"
	case CategoryBan:
		title, tone = "Member banned", render.ToneDanger
	case CategoryUnban:
		title = "Member unbanned"
	default:
		title = "Member update"
	}

	fields := []render.Field{{Name: "User", Value: render.Target{ID: e.UserID, Name: e.Username}.String(), Inline: true}}
	if !e.CreatedAt.IsZero() {
		fields = append(fields, render.Field{Name: "Account created", Value: render.Timestamp(e.CreatedAt), Inline: true})
	}
	if e.Bot {
		fields = append(fields, render.Field{Name: "Bot", Value: "yes", Inline: true})
	}
	return render.Message{
		Title:  title,
		Tone:   tone,
		Fields: fields,
		Footer: "User ID: " + e.UserID,
	}
}

// StructureChange is what happened to a channel or role
type StructureChange string

const (
	Created StructureChange = "created"
	Updated StructureChange = "updated"
	Deleted StructureChange = "deleted"
)

// StructureEvent describes a channel or role being created, updated or
// deleted. Name is empty when the platform did not send it.
type StructureEvent struct {
	Category Category
	Change   StructureChange
	ID       string
	Name     string
}

// Render builds the log entry
func (e StructureEvent) Render() render.Message {
	noun, mention := "Channel", fmt.Sprintf("<#%s>", e.ID)
	if e.Category == CategoryRole {
		noun, mention = "Role", fmt.Sprintf("<@&%s>", e.ID)
	}

	tone := render.ToneWarning
	switch e.Change {
	case Created:
		tone = render.ToneSuccess
	case Deleted:
		tone = render.ToneDanger
	}

	var fields []render.Field
	if e.Name != "" {
		fields = append(fields, render.Field{Name: "Name", Value: e.Name, Inline: true})
	}
	if e.Change != Deleted {
		fields = append(fields, render.Field{Name: noun, Value: mention, Inline: true})
	}
	return render.Message{
		Title:  fmt.Sprintf("%s %s", noun, e.Change),
		Tone:   tone,
		Fields: fields,
		Footer: noun + " ID: " + e.ID,
	}
}
