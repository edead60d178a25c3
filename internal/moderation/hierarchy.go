package moderation

import (
	"fmt"
	"time"
)

// Member is a guild member as seen by the validator. Position is the
// effective role position: the highest role the member holds, with the
// guild owner ranked above every role.
type Member struct {
	ID       string
	Username string
	Position int
	RoleIDs  []string
	Bot      bool
	// Nick is the guild nickname, empty when none is set
	Nick     string
}

// Action names a member-targeted moderation action. The verb is used to
// build denial messages ("You cannot ban yourself.").
type Action struct {
	Name string
	Verb string
}

var (
	ActionBan    = Action{Name: "ban", Verb: "ban"}
	ActionKick   = Action{Name: "kick", Verb: "kick"}
	ActionMute   = Action{Name: "mute", Verb: "mute"}
	ActionUnmute = Action{Name: "unmute", Verb: "unmute"}
	ActionWarn   = Action{Name: "warn", Verb: "warn"}
	ActionNote   = Action{Name: "note", Verb: "add a note to"}
)

// ActionContext is built once per invocation and never mutated.
// Target is nil for actions that don't resolve to a current member.
type ActionContext struct {
	Actor       Member
	Target      *Member
	Self        Member
	RequestedAt time.Time
}

// DenyReason classifies why the validator refused an action
type DenyReason int

const (
	Allowed DenyReason = iota
	DenySelfIncapable
	DenyTargetIsActor
	DenyTargetIsSelf
	DenyTargetOutranks
	DenyTargetOutranksSelf
)

func (r DenyReason) String() string {
	switch r {
	case Allowed:
		return "allowed"
	case DenySelfIncapable:
		return "self_incapable"
	case DenyTargetIsActor:
		return "target_is_actor"
	case DenyTargetIsSelf:
		return "target_is_self"
	case DenyTargetOutranks:
		return "target_outranks"
	case DenyTargetOutranksSelf:
		return "target_outranks_self"
	default:
		return "unknown"
	}
}

// Verdict is the validator's answer. Message is human readable and empty
// when the action is authorized.
type Verdict struct {
	Reason  DenyReason
	Message string
}

// Authorized reports whether the action may proceed
func (v Verdict) Authorized() bool {
	return v.Reason == Allowed
}

// Validate checks the role hierarchy for a member-targeted action.
// It has no side effects and touches no shared state.
func Validate(ac ActionContext, action Action, selfCapable bool) Verdict {
	if !selfCapable {
		return Verdict{
			Reason:  DenySelfIncapable,
			Message: fmt.Sprintf("I don't have permission to %s members in this server.", action.Verb),
		}
	}

	target := ac.Target
	if target == nil {
		return Verdict{Reason: Allowed}
	}

	if target.ID == ac.Actor.ID {
		return Verdict{
			Reason:  DenyTargetIsActor,
			Message: fmt.Sprintf("You cannot %s yourself.", action.Verb),
		}
	}

	if target.ID == ac.Self.ID {
		return Verdict{
			Reason:  DenyTargetIsSelf,
			Message: fmt.Sprintf("I cannot %s myself.", action.Verb),
		}
	}

	if target.Position >= ac.Actor.Position {
		return Verdict{
			Reason:  DenyTargetOutranks,
			Message: fmt.Sprintf("You cannot %s %s: their highest role is equal to or above yours.", action.Verb, displayName(*target)),
		}
	}

	return Verdict{Reason: Allowed}
}

// ValidateRename checks a nickname change. Unlike other actions, members
// may rename themselves, and the system must itself outrank the target
// because the platform refuses otherwise.
func ValidateRename(ac ActionContext, selfCapable bool) Verdict {
	if !selfCapable {
		return Verdict{
			Reason:  DenySelfIncapable,
			Message: "I don't have permission to manage nicknames in this server.",
		}
	}

	target := ac.Target
	if target == nil {
		return Verdict{Reason: Allowed}
	}

	if target.ID == ac.Self.ID {
		return Verdict{
			Reason:  DenyTargetIsSelf,
			Message: "I cannot change my own nickname with this command.",
		}
	}

	if target.Position >= ac.Self.Position {
		return Verdict{
			Reason:  DenyTargetOutranksSelf,
			Message: fmt.Sprintf("I cannot rename %s: their highest role is equal to or above mine.", displayName(*target)),
		}
	}

	if target.ID != ac.Actor.ID && target.Position >= ac.Actor.Position {
		return Verdict{
			Reason:  DenyTargetOutranks,
			Message: fmt.Sprintf("You cannot rename %s: their highest role is equal to or above yours.", displayName(*target)),
		}
	}

	return Verdict{Reason: Allowed}
}

func displayName(m Member) string {
	if m.Username != "" {
		return m.Username
	}
	return m.ID
}
