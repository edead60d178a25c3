package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gavel/internal/moderation"
	"gavel/internal/purge"
)

// maxListed caps the entries shown in one listing
const maxListed = 15

// PurgeSummary renders the result of a purge or clear
func PurgeSummary(out purge.Outcome) Message {
	switch {
	case len(out.Errors) > 0 && out.Deleted == 0:
		msg := Failure("delete messages")
		msg.Fields = purgeErrorFields(out)
		return msg
	case out.NothingEligible():
		return Info("Nothing to delete",
			fmt.Sprintf("%d matching messages are older than 14 days and cannot be bulk deleted.", out.Skipped))
	case out.Deleted == 0:
		return Info("Nothing to delete", "No messages matched.")
	}

	body := fmt.Sprintf("Deleted %d messages across %d channels.", out.Deleted, out.ChannelsAffected)
	if out.ChannelsAffected == 1 {
		body = fmt.Sprintf("Deleted %d messages.", out.Deleted)
	}
	var fields []Field
	if out.Skipped > 0 {
		fields = append(fields, Field{Name: "Too old", Value: strconv.Itoa(out.Skipped), Inline: true})
	}
	if out.LimitedChannels > 0 {
		fields = append(fields, Field{Name: "Channels at limit", Value: strconv.Itoa(out.LimitedChannels), Inline: true})
	}
	fields = append(fields, purgeErrorFields(out)...)

	msg := Success("Messages deleted", body, fields...)
	msg.Ephemeral = true
	if len(out.Errors) > 0 {
		msg.Tone = ToneWarning
	}
	return msg
}

func purgeErrorFields(out purge.Outcome) []Field {
	if len(out.Errors) == 0 {
		return nil
	}
	ids := make([]string, 0, len(out.Errors))
	for id := range out.Errors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	lines := make([]string, 0, min(len(ids), maxListed))
	for i, id := range ids {
		if i == maxListed {
			lines = append(lines, fmt.Sprintf("…and %d more", len(ids)-maxListed))
			break
		}
		lines = append(lines, fmt.Sprintf("<#%s>", id))
	}
	return []Field{{Name: "Failed channels", Value: strings.Join(lines, "\n")}}
}

// pageBounds clamps page to [1, pages] and returns the slice bounds of
// that page for n entries
func pageBounds(n, page int) (start, end, clamped, pages int) {
	pages = max(1, (n+maxListed-1)/maxListed)
	clamped = min(max(page, 1), pages)
	start = (clamped - 1) * maxListed
	end = min(start+maxListed, n)
	return start, end, clamped, pages
}

func pageFooter(page, pages int) string {
	if pages <= 1 {
		return ""
	}
	return fmt.Sprintf("Page %d of %d", page, pages)
}

// Warnings renders one page of a member's warning history, newest first.
// Out of range pages are clamped.
func Warnings(target Target, warnings []moderation.Warning, page int) Message {
	if len(warnings) == 0 {
		return Info("Warnings", fmt.Sprintf("%s has no warnings.", target))
	}
	start, end, page, pages := pageBounds(len(warnings), page)
	fields := make([]Field, 0, end-start)
	for _, w := range warnings[start:end] {
		fields = append(fields, Field{
			Name:  fmt.Sprintf("#%d · %s", w.ID, Timestamp(w.CreatedAt)),
			Value: fmt.Sprintf("%s\nby <@%s>", Truncate(w.Reason, 200), w.ModeratorID),
		})
	}
	msg := Info("Warnings", fmt.Sprintf("%s has %d warnings.", target, len(warnings)), fields...)
	msg.Footer = pageFooter(page, pages)
	return msg
}

// Notes renders one page of the staff notes kept on a member
func Notes(target Target, notes []moderation.Note, page int) Message {
	if len(notes) == 0 {
		return Info("Notes", fmt.Sprintf("%s has no notes.", target))
	}
	start, end, page, pages := pageBounds(len(notes), page)
	fields := make([]Field, 0, end-start)
	for _, n := range notes[start:end] {
		fields = append(fields, Field{
			Name:  fmt.Sprintf("#%d · %s", n.ID, Timestamp(n.CreatedAt)),
			Value: fmt.Sprintf("%s\nby <@%s>", Truncate(n.Content, 200), n.AuthorID),
		})
	}
	msg := Info("Notes", fmt.Sprintf("%s has %d notes.", target, len(notes)), fields...)
	msg.Footer = pageFooter(page, pages)
	return msg
}

// AuditLog renders recent moderation actions
func AuditLog(entries []moderation.AuditEntry) Message {
	if len(entries) == 0 {
		return Info("Moderation log", "No moderation actions recorded.")
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		line := fmt.Sprintf("%s **%s** by <@%s>", Timestamp(e.Timestamp), e.Action, e.ActorID)
		if e.TargetID != "" {
			line += fmt.Sprintf(" on <@%s>", e.TargetID)
		}
		if e.Reason != "" {
			line += ": " + Truncate(e.Reason, 80)
		}
		lines = append(lines, line)
	}
	return Info("Moderation log", Truncate(strings.Join(lines, "\n"), 4000))
}

// ModerationEntry renders one audit entry for the moderation log channel
func ModerationEntry(e moderation.AuditEntry) Message {
	fields := []Field{{Name: "Moderator", Value: fmt.Sprintf("<@%s>", e.ActorID), Inline: true}}
	if e.TargetID != "" {
		fields = append(fields, Field{Name: "Target", Value: fmt.Sprintf("<@%s>", e.TargetID), Inline: true})
	}
	fields = append(fields, Field{Name: "Reason", Value: reasonOrDefault(e.Reason)})

	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, Field{Name: k, Value: e.Details[k], Inline: true})
	}

	return Message{
		Title:  "Moderation: " + string(e.Action),
		Tone:   ToneWarning,
		Fields: fields,
		Footer: Timestamp(e.Timestamp),
	}
}
