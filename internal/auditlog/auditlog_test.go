package auditlog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"gavel/internal/render"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu       sync.Mutex
	channels map[string]string
	err      error
}

func (m *memStore) key(guildID string, c Category) string { return guildID + "/" + string(c) }

func (m *memStore) SetLogChannel(ctx context.Context, guildID string, c Category, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[m.key(guildID, c)] = channelID
	return nil
}

func (m *memStore) ClearLogChannel(ctx context.Context, guildID string, c Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channels, m.key(guildID, c))
	return nil
}

func (m *memStore) GetLogChannel(ctx context.Context, guildID string, c Category) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channels[m.key(guildID, c)], m.err
}

func (m *memStore) ListLogChannels(ctx context.Context, guildID string) (map[Category]string, error) {
	return nil, nil
}

type sent struct {
	channelID string
	msg       render.Message
}

type fakeSender struct {
	sent []sent
	err  error
}

func (f *fakeSender) Send(ctx context.Context, channelID string, msg render.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{channelID, msg})
	return nil
}

func TestRoute(t *testing.T) {
	ctx := context.Background()
	store := &memStore{channels: map[string]string{}}
	require.NoError(t, store.SetLogChannel(ctx, "g1", CategoryBan, "logs"))
	sender := &fakeSender{}
	r := NewRouter(store, sender)

	t.Run("configured category is delivered publicly", func(t *testing.T) {
		msg := render.Message{Title: "x", Ephemeral: true}
		delivered, err := r.Route(ctx, "g1", CategoryBan, msg)
		require.NoError(t, err)
		assert.True(t, delivered)
		require.Len(t, sender.sent, 1)
		assert.Equal(t, "logs", sender.sent[0].channelID)
		assert.False(t, sender.sent[0].msg.Ephemeral)
	})

	t.Run("unconfigured category is dropped", func(t *testing.T) {
		delivered, err := r.Route(ctx, "g1", CategoryMemberJoin, render.Message{})
		require.NoError(t, err)
		assert.False(t, delivered)
		assert.Len(t, sender.sent, 1)
	})

	t.Run("send failure is returned", func(t *testing.T) {
		sender.err = errors.New("missing access")
		defer func() { sender.err = nil }()
		_, err := r.Route(ctx, "g1", CategoryBan, render.Message{})
		assert.ErrorContains(t, err, "missing access")

		// Dispatch swallows it
		r.Dispatch(ctx, "g1", CategoryBan, render.Message{})
	})

	t.Run("lookup failure is returned", func(t *testing.T) {
		store.err = errors.New("db closed")
		defer func() { store.err = nil }()
		_, err := r.Route(ctx, "g1", CategoryBan, render.Message{})
		assert.ErrorContains(t, err, "lookup log channel")
	})
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Message_Delete ")
	require.NoError(t, err)
	assert.Equal(t, CategoryMessageDelete, c)

	_, err = ParseCategory("voice")
	assert.ErrorIs(t, err, ErrUnknownCategory)
	assert.Len(t, AllCategories(), 10)
}

func TestRenderEvents(t *testing.T) {
	deleted := MessageDeleted{ChannelID: "c1", MessageID: "m1", AuthorID: "u1", Author: "bob", Content: strings.Repeat("a", 1500)}.Render()
	assert.Equal(t, "Message deleted", deleted.Title)
	assert.Len(t, deleted.Fields, 3)
	assert.Equal(t, 1000, len([]rune(deleted.Fields[2].Value)))
	assert.Equal(t, "Message ID: m1", deleted.Footer)

	uncached := MessageDeleted{ChannelID: "c1", MessageID: "m2"}.Render()
	assert.Len(t, uncached.Fields, 2)
	assert.Equal(t, "*content unavailable*", uncached.Fields[1].Value)

	edited := MessageEdited{ChannelID: "c1", AuthorID: "u1", After: "new"}.Render()
	assert.Equal(t, "*content unavailable*", edited.Fields[2].Value)
	assert.Equal(t, "new", edited.Fields[3].Value)

	bulk := BulkDeleted{ChannelID: "c1", Count: 42}.Render()
	assert.Contains(t, bulk.Body, "42 messages")

	join := MemberEvent{Category: CategoryMemberJoin, UserID: "u1", Username: "bob", Bot: true, CreatedAt: time.Unix(1700000000, 0)}.Render()
	assert.Equal(t, "Member joined", join.Title)
	assert.Equal(t, render.ToneSuccess, join.Tone)
	assert.Len(t, join.Fields, 3)
	assert.Equal(t, "<t:1700000000:R>", join.Fields[1].Value)

	ban := MemberEvent{Category: CategoryBan, UserID: "u1"}.Render()
	assert.Equal(t, "Member banned", ban.Title)
	assert.Equal(t, "<@u1>", ban.Fields[0].Value)
}

func TestRenderStructureEvents(t *testing.T) {
	created := StructureEvent{Category: CategoryChannel, Change: Created, ID: "c1", Name: "general"}.Render()
	assert.Equal(t, "Channel created", created.Title)
	assert.Equal(t, render.ToneSuccess, created.Tone)
	require.Len(t, created.Fields, 2)
	assert.Equal(t, "<#c1>", created.Fields[1].Value)
	assert.Equal(t, "Channel ID: c1", created.Footer)

	updated := StructureEvent{Category: CategoryRole, Change: Updated, ID: "r1", Name: "mods"}.Render()
	assert.Equal(t, "Role updated", updated.Title)
	assert.Equal(t, render.ToneWarning, updated.Tone)
	assert.Equal(t, "<@&r1>", updated.Fields[1].Value)

	// A deleted role can no longer be mentioned and arrives without a name
	deleted := StructureEvent{Category: CategoryRole, Change: Deleted, ID: "r1"}.Render()
	assert.Equal(t, "Role deleted", deleted.Title)
	assert.Equal(t, render.ToneDanger, deleted.Tone)
	assert.Empty(t, deleted.Fields)
	assert.Equal(t, "Role ID: r1", deleted.Footer)
}
