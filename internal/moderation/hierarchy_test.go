package moderation

import (
	"strconv"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func actionContext(actorPos, targetPos int) ActionContext {
	return ActionContext{
		Actor:       Member{ID: "actor", Username: "alice", Position: actorPos},
		Target:      &Member{ID: "target", Username: "bob", Position: targetPos},
		Self:        Member{ID: "self", Username: "gavel", Position: 100, Bot: true},
		RequestedAt: time.Now(),
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		ac          ActionContext
		selfCapable bool
		want        DenyReason
		contains    string
	}{
		{
			name:        "lower target is authorized",
			ac:          actionContext(5, 3),
			selfCapable: true,
			want:        Allowed,
		},
		{
			name:        "missing platform permission",
			ac:          actionContext(5, 3),
			selfCapable: false,
			want:        DenySelfIncapable,
			contains:    "permission to ban",
		},
		{
			name: "actor targets itself",
			ac: func() ActionContext {
				ac := actionContext(5, 3)
				ac.Target = &Member{ID: "actor", Position: 5}
				return ac
			}(),
			selfCapable: true,
			want:        DenyTargetIsActor,
			contains:    "cannot ban yourself",
		},
		{
			name: "target is the bot",
			ac: func() ActionContext {
				ac := actionContext(5, 3)
				ac.Target = &Member{ID: "self", Position: 1}
				return ac
			}(),
			selfCapable: true,
			want:        DenyTargetIsSelf,
			contains:    "cannot ban myself",
		},
		{
			name:        "equal rank is denied",
			ac:          actionContext(4, 4),
			selfCapable: true,
			want:        DenyTargetOutranks,
			contains:    "bob",
		},
		{
			name:        "higher target is denied",
			ac:          actionContext(2, 9),
			selfCapable: true,
			want:        DenyTargetOutranks,
		},
		{
			name:        "no target only checks capability",
			ac:          ActionContext{Actor: Member{ID: "actor"}, Self: Member{ID: "self"}},
			selfCapable: true,
			want:        Allowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Validate(tt.ac, ActionBan, tt.selfCapable)
			assert.Equal(t, tt.want, v.Reason, v.Message)
			assert.Equal(t, tt.want == Allowed, v.Authorized())
			if tt.contains != "" {
				assert.Contains(t, v.Message, tt.contains)
			}
			if tt.want == Allowed {
				assert.Empty(t, v.Message)
			}
		})
	}
}

func TestValidate_VerbInMessage(t *testing.T) {
	ac := actionContext(5, 3)
	ac.Target = &Member{ID: "actor"}
	assert.Equal(t, "You cannot add a note to yourself.", Validate(ac, ActionNote, true).Message)
}

func TestValidate_HierarchyProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("target at or above actor is always denied", prop.ForAll(
		func(actorPos, delta int) bool {
			v := Validate(actionContext(actorPos, actorPos+delta), ActionKick, true)
			return !v.Authorized() && v.Reason == DenyTargetOutranks
		},
		gen.IntRange(-1000, 1000),
		gen.IntRange(0, 1000),
	))

	properties.Property("strictly lower target with capability is authorized", prop.ForAll(
		func(actorPos, delta int) bool {
			return Validate(actionContext(actorPos, actorPos-delta), ActionKick, true).Authorized()
		},
		gen.IntRange(-1000, 1000),
		gen.IntRange(1, 1000),
	))

	properties.Property("self and actor are never valid targets", prop.ForAll(
		func(pos int, useSelf bool) bool {
			ac := actionContext(1000, pos)
			id := "actor"
			if useSelf {
				id = "self"
			}
			ac.Target = &Member{ID: id, Position: pos}
			return !Validate(ac, ActionMute, true).Authorized()
		},
		gen.IntRange(-1000, 999),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestDenyReason_String(t *testing.T) {
	for i, want := range []string{"allowed", "self_incapable", "target_is_actor", "target_is_self", "target_outranks", "target_outranks_self"} {
		assert.Equal(t, want, DenyReason(i).String(), strconv.Itoa(i))
	}
	assert.Equal(t, "unknown", DenyReason(42).String())
}

func TestValidateRename(t *testing.T) {
	tests := []struct {
		name        string
		ac          ActionContext
		selfCapable bool
		want        DenyReason
		contains    string
	}{
		{
			name:        "lower target is authorized",
			ac:          actionContext(5, 3),
			selfCapable: true,
			want:        Allowed,
		},
		{
			name:        "missing platform permission",
			ac:          actionContext(5, 3),
			selfCapable: false,
			want:        DenySelfIncapable,
			contains:    "manage nicknames",
		},
		{
			name: "members may rename themselves",
			ac: func() ActionContext {
				ac := actionContext(5, 3)
				ac.Target = &Member{ID: "actor", Position: 5}
				return ac
			}(),
			selfCapable: true,
			want:        Allowed,
		},
		{
			name: "target is the bot",
			ac: func() ActionContext {
				ac := actionContext(5, 3)
				ac.Target = &Member{ID: "self", Position: 1}
				return ac
			}(),
			selfCapable: true,
			want:        DenyTargetIsSelf,
			contains:    "my own nickname",
		},
		{
			name: "target at the bot's position",
			ac: func() ActionContext {
				ac := actionContext(500, 100)
				return ac
			}(),
			selfCapable: true,
			want:        DenyTargetOutranksSelf,
			contains:    "above mine",
		},
		{
			name: "actor outranking the bot cannot rename themselves past it",
			ac: func() ActionContext {
				ac := actionContext(500, 0)
				ac.Target = &Member{ID: "actor", Username: "alice", Position: 500}
				return ac
			}(),
			selfCapable: true,
			want:        DenyTargetOutranksSelf,
		},
		{
			name:        "equal target",
			ac:          actionContext(5, 5),
			selfCapable: true,
			want:        DenyTargetOutranks,
			contains:    "You cannot rename bob",
		},
		{
			name: "user not in the guild",
			ac: func() ActionContext {
				ac := actionContext(5, 3)
				ac.Target = nil
				return ac
			}(),
			selfCapable: true,
			want:        Allowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ValidateRename(tt.ac, tt.selfCapable)
			assert.Equal(t, tt.want, v.Reason)
			assert.Equal(t, tt.want == Allowed, v.Authorized())
			if tt.contains != "" {
				assert.Contains(t, v.Message, tt.contains)
			}
		})
	}
}
