package commands

import (
	"context"
	"errors"
	"sync"
	"time"

	"gavel/internal/auditlog"
	"gavel/internal/confirm"
	"gavel/internal/moderation"
	"gavel/internal/purge"
	"gavel/internal/render"
)

var (
	testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	botMember   = moderation.Member{ID: "1", Username: "gavel", Position: 10, Bot: true}
	modMember   = moderation.Member{ID: "10", Username: "mod", Position: 5}
	lowMember   = moderation.Member{ID: "20", Username: "alice", Position: 3}
	equalMember = moderation.Member{ID: "30", Username: "bob", Position: 5}
)

// fakePlatform answers with sensible defaults and records mutations.
// Function fields override individual calls.
type fakePlatform struct {
	mu      sync.Mutex
	members map[string]*moderation.Member
	cannot  Capability
	calls   []string
	dms     []string

	BanFunc      func(userID string) error
	KickFunc     func(userID string) error
	TimeoutFunc  func(userID string, until time.Time) error
	DMFunc       func(userID string) error
	ResolveFunc  func(userID string) (*moderation.Member, error)
	ChannelsFunc func() ([]string, error)
	NickFunc     func(userID, nick string) error
}

func newFakePlatform(members ...moderation.Member) *fakePlatform {
	p := &fakePlatform{members: make(map[string]*moderation.Member)}
	for _, m := range append(members, botMember) {
		p.members[m.ID] = &m
	}
	return p
}

func (p *fakePlatform) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

func (p *fakePlatform) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakePlatform) Self(ctx context.Context, guildID string) (moderation.Member, error) {
	return botMember, nil
}

func (p *fakePlatform) SelfCan(ctx context.Context, guildID string, capability Capability) (bool, error) {
	return p.cannot&capability == 0, nil
}

func (p *fakePlatform) ResolveMember(ctx context.Context, guildID, userID string) (*moderation.Member, error) {
	if p.ResolveFunc != nil {
		return p.ResolveFunc(userID)
	}
	return p.members[userID], nil
}

func (p *fakePlatform) Ban(ctx context.Context, guildID, userID, reason string, deleteDays int) error {
	p.record("ban:" + userID + ":" + reason)
	if p.BanFunc != nil {
		return p.BanFunc(userID)
	}
	return nil
}

func (p *fakePlatform) Unban(ctx context.Context, guildID, userID, reason string) error {
	p.record("unban:" + userID)
	return nil
}

func (p *fakePlatform) Kick(ctx context.Context, guildID, userID, reason string) error {
	p.record("kick:" + userID)
	if p.KickFunc != nil {
		return p.KickFunc(userID)
	}
	return nil
}

func (p *fakePlatform) Timeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error {
	p.record("timeout:" + userID)
	if p.TimeoutFunc != nil {
		return p.TimeoutFunc(userID, until)
	}
	return nil
}

func (p *fakePlatform) RemoveTimeout(ctx context.Context, guildID, userID, reason string) error {
	p.record("untimeout:" + userID)
	return nil
}

func (p *fakePlatform) ModeratableChannels(ctx context.Context, guildID string) ([]string, error) {
	if p.ChannelsFunc != nil {
		return p.ChannelsFunc()
	}
	return []string{"c1"}, nil
}

func (p *fakePlatform) DirectMessage(ctx context.Context, userID string, msg render.Message) error {
	p.mu.Lock()
	p.dms = append(p.dms, userID)
	p.mu.Unlock()
	if p.DMFunc != nil {
		return p.DMFunc(userID)
	}
	return nil
}

func (p *fakePlatform) SetNickname(ctx context.Context, guildID, userID, nick, reason string) error {
	p.record("nick:" + userID + ":" + nick)
	if p.NickFunc != nil {
		return p.NickFunc(userID, nick)
	}
	return nil
}

func (p *fakePlatform) Latency(ctx context.Context) (Latency, error) {
	return Latency{Gateway: 42 * time.Millisecond, REST: 120 * time.Millisecond}, nil
}

// fakeGateway answers the prompt with a scripted click as soon as the
// preview is shown
type fakeGateway struct {
	mu      sync.Mutex
	click   string
	actor   string
	events  chan confirm.Event
	replies []render.Message
	actions [][]render.Action
	edits   []render.Message
	// shown holds replies and edits in the order they were sent
	shown []render.Message
}

func (g *fakeGateway) Reply(ctx context.Context, msg render.Message, actions []render.Action) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.replies = append(g.replies, msg)
	g.shown = append(g.shown, msg)
	g.actions = append(g.actions, actions)
	if len(actions) == 2 && g.click != "" {
		id := actions[0].ID
		if g.click == "cancel" {
			id = actions[1].ID
		}
		g.events <- confirm.Event{ActorID: g.actor, ActionID: id}
	}
	return nil
}

func (g *fakeGateway) EditReply(ctx context.Context, msg render.Message, actions []render.Action) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edits = append(g.edits, msg)
	g.shown = append(g.shown, msg)
	return nil
}

func (g *fakeGateway) OnUserAction(ctx context.Context, sub confirm.Subscription) (<-chan confirm.Event, func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = make(chan confirm.Event, 1)
	return g.events, func() {}, nil
}

// last returns the message the user ends up seeing
func (g *fakeGateway) last() render.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.shown) == 0 {
		return render.Message{}
	}
	return g.shown[len(g.shown)-1]
}

func (g *fakeGateway) prompted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, a := range g.actions {
		if len(a) == 2 {
			return true
		}
	}
	return false
}

type memRecords struct {
	mu       sync.Mutex
	warnings []moderation.Warning
	notes    []moderation.Note
	nextID   int64
	err      error
}

func (s *memRecords) CreateWarning(ctx context.Context, w moderation.Warning) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.nextID++
	w.ID = s.nextID
	s.warnings = append(s.warnings, w)
	return w.ID, nil
}

func (s *memRecords) ListWarnings(ctx context.Context, guildID, userID string) ([]moderation.Warning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []moderation.Warning
	for _, w := range s.warnings {
		if w.GuildID == guildID && w.UserID == userID {
			out = append(out, w)
		}
	}
	return out, s.err
}

func (s *memRecords) DeleteWarning(ctx context.Context, guildID string, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.warnings {
		if w.GuildID == guildID && w.ID == id {
			s.warnings = append(s.warnings[:i], s.warnings[i+1:]...)
			return 1, nil
		}
	}
	return 0, s.err
}

func (s *memRecords) ClearWarnings(ctx context.Context, guildID, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []moderation.Warning
	var n int64
	for _, w := range s.warnings {
		if w.GuildID == guildID && w.UserID == userID {
			n++
			continue
		}
		kept = append(kept, w)
	}
	s.warnings = kept
	return n, s.err
}

func (s *memRecords) CreateNote(ctx context.Context, n moderation.Note) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.nextID++
	n.ID = s.nextID
	s.notes = append(s.notes, n)
	return n.ID, nil
}

func (s *memRecords) ListNotes(ctx context.Context, guildID, userID string) ([]moderation.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []moderation.Note
	for _, n := range s.notes {
		if n.GuildID == guildID && n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, s.err
}

func (s *memRecords) DeleteNote(ctx context.Context, guildID string, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.notes {
		if n.GuildID == guildID && n.ID == id {
			s.notes = append(s.notes[:i], s.notes[i+1:]...)
			return 1, nil
		}
	}
	return 0, s.err
}

func (s *memRecords) ClearNotes(ctx context.Context, guildID, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []moderation.Note
	var n int64
	for _, note := range s.notes {
		if note.GuildID == guildID && note.UserID == userID {
			n++
			continue
		}
		kept = append(kept, note)
	}
	s.notes = kept
	return n, s.err
}

type memAudit struct {
	mu      sync.Mutex
	entries []moderation.AuditEntry
	err     error
}

func (a *memAudit) LogAction(ctx context.Context, entry moderation.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, entry)
	return nil
}

func (a *memAudit) ListAuditLog(ctx context.Context, guildID string, limit int) ([]moderation.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []moderation.AuditEntry
	for i := len(a.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if a.entries[i].GuildID == guildID {
			out = append(out, a.entries[i])
		}
	}
	return out, nil
}

type dispatched struct {
	category auditlog.Category
	msg      render.Message
}

type fakeActivity struct {
	mu   sync.Mutex
	sent []dispatched
}

func (f *fakeActivity) Dispatch(ctx context.Context, guildID string, category auditlog.Category, msg render.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, dispatched{category, msg})
}

type memLogConfig struct {
	channels map[auditlog.Category]string
}

func (m *memLogConfig) SetLogChannel(ctx context.Context, guildID string, c auditlog.Category, channelID string) error {
	m.channels[c] = channelID
	return nil
}

func (m *memLogConfig) ClearLogChannel(ctx context.Context, guildID string, c auditlog.Category) error {
	delete(m.channels, c)
	return nil
}

func (m *memLogConfig) GetLogChannel(ctx context.Context, guildID string, c auditlog.Category) (string, error) {
	return m.channels[c], nil
}

func (m *memLogConfig) ListLogChannels(ctx context.Context, guildID string) (map[auditlog.Category]string, error) {
	return m.channels, nil
}

// history is a single-page channel history for purge-backed commands
type history struct {
	mu       sync.Mutex
	messages map[string][]purge.Message
	deleted  map[string][]string
	failing  map[string]error
}

func (h *history) FetchPage(ctx context.Context, channelID, before string, limit int) ([]purge.Message, error) {
	if err := h.failing[channelID]; err != nil {
		return nil, err
	}
	if before != "" {
		return nil, nil
	}
	msgs := h.messages[channelID]
	return msgs[:min(limit, len(msgs))], nil
}

func (h *history) BatchDelete(ctx context.Context, channelID string, ids []string) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted[channelID] = append(h.deleted[channelID], ids...)
	return len(ids), nil
}

var errBoom = errors.New("boom")

type harness struct {
	handler  *Handler
	platform *fakePlatform
	gateway  *fakeGateway
	records  *memRecords
	audit    *memAudit
	activity *fakeActivity
	history  *history
	fire     chan time.Time
}

func newHarness(members ...moderation.Member) *harness {
	hs := &harness{
		platform: newFakePlatform(members...),
		gateway:  &fakeGateway{click: "confirm", actor: modMember.ID},
		records:  &memRecords{},
		audit:    &memAudit{},
		activity: &fakeActivity{},
		history:  &history{messages: map[string][]purge.Message{}, deleted: map[string][]string{}, failing: map[string]error{}},
		fire:     make(chan time.Time, 1),
	}

	prompt := confirm.NewPrompt(confirm.WithTimer(func(time.Duration) (<-chan time.Time, func() bool) {
		return hs.fire, func() bool { return true }
	}))
	engine := purge.NewEngine(hs.history, purge.WithClock(func() time.Time { return testNow }))

	hs.handler = NewHandler(hs.platform, prompt, engine)
	hs.handler.SetRecords(hs.records, hs.audit)
	hs.handler.SetActivityLog(hs.activity, &memLogConfig{channels: map[auditlog.Category]string{}})
	hs.handler.SetClock(func() time.Time { return testNow })
	return hs
}

func (hs *harness) run(command string, opts Options) (*Invocation, error) {
	inv := &Invocation{
		Command:   command,
		GuildID:   "g1",
		ChannelID: "c1",
		Actor:     modMember,
		ActorCaps: CapBan | CapKick | CapModerate | CapManageMessages | CapManageGuild | CapManageNicknames,
		Options:   opts,
		Reply:     hs.gateway,
	}
	err := hs.handler.Handle(context.Background(), inv)
	return inv, err
}
