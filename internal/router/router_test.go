package router_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"linkherd/internal/config"
	"linkherd/internal/links"
	"linkherd/internal/platform/platformtest"
	"linkherd/internal/rooms"
	"linkherd/internal/router"
)

type fakeSched struct {
	delays []time.Duration
	fns    []func()
}

func (s *fakeSched) After(d time.Duration, fn func()) {
	s.delays = append(s.delays, d)
	s.fns = append(s.fns, fn)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.RoutingConfig {
	return config.RoutingConfig{
		PrivateMarker:     "private",
		RedirectNoticeTTL: 10 * time.Second,
		EmptyNoticeTTL:    15 * time.Second,
	}
}

// newTestRouter wires a Router against the fake platform with all guild g1
// destination rooms resolved.
func newTestRouter(t *testing.T, fake *platformtest.Fake) (*router.Router, *rooms.Registry, *fakeSched) {
	t.Helper()
	log := testLogger()
	reg := rooms.New(log, fake, nil)
	if err := reg.EnsureAll("g1"); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	sched := &fakeSched{}
	rel := router.NewRelocator(log, fake, reg, nil)
	not := router.NewNotifier(log, fake, sched)
	return router.New(log, fake, reg, rel, not, testConfig()), reg, sched
}

func destination(t *testing.T, reg *rooms.Registry, cat links.Category) *discordgo.Channel {
	t.Helper()
	ch, err := reg.Ensure("g1", cat)
	if err != nil {
		t.Fatalf("Ensure(%v): %v", cat, err)
	}
	return ch
}

func userMessage(id, channelID, content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        id,
		ChannelID: channelID,
		GuildID:   "g1",
		Content:   content,
		Author:    &discordgo.User{ID: "u1", Username: "alice"},
		Timestamp: time.Now().UTC(),
	}
}

func TestRouteMixedCategories(t *testing.T) {
	t.Parallel()

	fake := platformtest.New("bot")
	general := fake.AddTextChannel("500", "g1", "general")
	r, reg, sched := newTestRouter(t, fake)
	videoDest := destination(t, reg, links.Video)
	storeDest := destination(t, reg, links.Store)

	msg := fake.SeedMessage(userMessage("m1", general.ID,
		"check this out https://youtu.be/abc123 and https://store.steampowered.com/app/999"))
	r.HandleMessage(context.Background(), msg)

	var embedSends, noticeSends []platformtest.SentMessage
	for _, s := range fake.Sent {
		if len(s.Data.Embeds) > 0 {
			embedSends = append(embedSends, s)
		} else {
			noticeSends = append(noticeSends, s)
		}
	}

	if len(embedSends) != 2 {
		t.Fatalf("expected 2 summary records, got %d", len(embedSends))
	}
	if embedSends[0].ChannelID != videoDest.ID || embedSends[1].ChannelID != storeDest.ID {
		t.Errorf("summaries went to %s and %s, want %s and %s",
			embedSends[0].ChannelID, embedSends[1].ChannelID, videoDest.ID, storeDest.ID)
	}

	if len(fake.Deleted) != 1 || fake.Deleted[0].MessageID != "m1" {
		t.Errorf("expected original m1 deleted, got %v", fake.Deleted)
	}

	if len(noticeSends) != 1 {
		t.Fatalf("expected 1 consolidated notice, got %d", len(noticeSends))
	}
	notice := noticeSends[0]
	if notice.ChannelID != general.ID {
		t.Errorf("notice posted in %s, want %s", notice.ChannelID, general.ID)
	}
	for _, want := range []string{videoDest.ID, storeDest.ID, "<@u1>"} {
		if !strings.Contains(notice.Data.Content, want) {
			t.Errorf("notice %q missing %q", notice.Data.Content, want)
		}
	}

	if len(sched.delays) != 1 || sched.delays[0] != 10*time.Second {
		t.Errorf("expected one 10s self-deletion, got %v", sched.delays)
	}
	sched.fns[0]()
	if fake.Deleted[len(fake.Deleted)-1].MessageID != notice.Message.ID {
		t.Error("scheduled cleanup did not delete the notice")
	}
}

func TestRouteOrderingSendsBeforeDelete(t *testing.T) {
	t.Parallel()

	fake := platformtest.New("bot")
	general := fake.AddTextChannel("500", "g1", "general")
	r, _, _ := newTestRouter(t, fake)

	msg := fake.SeedMessage(userMessage("m1", general.ID, "https://youtu.be/abc123"))
	r.HandleMessage(context.Background(), msg)

	if len(fake.Sent) == 0 || len(fake.Deleted) == 0 {
		t.Fatal("expected both a send and a delete")
	}
	// The summary message was assigned its ID before the delete was recorded,
	// so content cannot be lost between the two.
	if fake.Sent[0].Message == nil {
		t.Error("summary send did not complete before delete")
	}
}

func TestRouteNoLinksIsNoOp(t *testing.T) {
	t.Parallel()

	fake := platformtest.New("bot")
	general := fake.AddTextChannel("500", "g1", "general")
	r, _, _ := newTestRouter(t, fake)

	msg := fake.SeedMessage(userMessage("m1", general.ID, "just chatting, no links"))
	r.HandleMessage(context.Background(), msg)

	if len(fake.Sent) != 0 || len(fake.Deleted) != 0 {
		t.Errorf("expected no-op, got sends=%d deletes=%d", len(fake.Sent), len(fake.Deleted))
	}
}

func TestRelocateSkipsLinksAlreadyHome(t *testing.T) {
	t.Parallel()

	fake := platformtest.New("bot")
	log := testLogger()
	reg := rooms.New(log, fake, nil)
	if err := reg.EnsureAll("g1"); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	videoDest := destination(t, reg, links.Video)
	rel := router.NewRelocator(log, fake, reg, nil)

	msg := userMessage("m1", videoDest.ID, "https://youtu.be/abc123")
	moved := rel.Relocate(context.Background(), msg, time.Time{}, false)

	if len(moved) != 0 {
		t.Errorf("expected zero relocations for link already in its room, got %v", moved)
	}
	if len(fake.Sent) != 0 || len(fake.Deleted) != 0 {
		t.Errorf("expected zero sends and deletes, got sends=%d deletes=%d", len(fake.Sent), len(fake.Deleted))
	}
}

func TestRoutePartialFailureKeepsOriginalOnTotalFailure(t *testing.T) {
	t.Parallel()

	fake := platformtest.New("bot")
	general := fake.AddTextChannel("500", "g1", "general")
	r, reg, _ := newTestRouter(t, fake)
	videoDest := destination(t, reg, links.Video)

	// Every summary send fails; only notice-free paths remain.
	fake.SendErr = func(channelID string) error {
		if channelID == videoDest.ID {
			return context.DeadlineExceeded
		}
		return nil
	}

	msg := fake.SeedMessage(userMessage("m1", general.ID, "https://youtu.be/abc123"))
	r.HandleMessage(context.Background(), msg)

	if len(fake.Deleted) != 0 {
		t.Errorf("original must survive when zero relocations succeeded, got deletes %v", fake.Deleted)
	}
}

func TestDestinationInterception(t *testing.T) {
	t.Parallel()

	fake := platformtest.New("bot")
	r, reg, sched := newTestRouter(t, fake)
	videoDest := destination(t, reg, links.Video)

	// An existing summary record anchors the discussion thread.
	fake.SeedMessage(&discordgo.Message{
		ID:        "s1",
		ChannelID: videoDest.ID,
		Author:    fake.User,
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "🎬 Videos",
			Description: "https://youtu.be/abc123\n\nShared by **alice**",
		}},
		Timestamp: time.Now().UTC(),
	})

	msg := fake.SeedMessage(userMessage("m1", videoDest.ID, "nice clip!"))
	r.HandleMessage(context.Background(), msg)

	if len(fake.Deleted) == 0 || fake.Deleted[0].MessageID != "m1" {
		t.Fatalf("expected original deleted first, got %v", fake.Deleted)
	}

	// Thread anchored to the summary record shares its ID on this platform.
	var repost, notice *platformtest.SentMessage
	for i := range fake.Sent {
		s := &fake.Sent[i]
		switch s.ChannelID {
		case "s1":
			repost = s
		case videoDest.ID:
			notice = s
		}
	}
	if repost == nil {
		t.Fatal("captured content was not reposted into the thread")
	}
	if !strings.Contains(repost.Data.Content, "alice") || !strings.Contains(repost.Data.Content, "nice clip!") {
		t.Errorf("repost %q should carry author and content", repost.Data.Content)
	}
	if notice == nil {
		t.Fatal("redirect notice missing")
	}
	if !strings.Contains(notice.Data.Content, "<#s1>") {
		t.Errorf("notice %q should point at the thread", notice.Data.Content)
	}
	if len(sched.delays) != 1 || sched.delays[0] != 10*time.Second {
		t.Errorf("redirect notice should self-delete after 10s, got %v", sched.delays)
	}
}

func TestDestinationInterceptionNothingToDiscuss(t *testing.T) {
	t.Parallel()

	fake := platformtest.New("bot")
	r, reg, sched := newTestRouter(t, fake)
	videoDest := destination(t, reg, links.Video)

	msg := fake.SeedMessage(userMessage("m1", videoDest.ID, "hello?"))
	r.HandleMessage(context.Background(), msg)

	if len(fake.Deleted) == 0 || fake.Deleted[0].MessageID != "m1" {
		t.Fatalf("expected original deleted, got %v", fake.Deleted)
	}
	if len(fake.Sent) != 1 {
		t.Fatalf("expected only the empty-room notice, got %d sends", len(fake.Sent))
	}
	if len(sched.delays) != 1 || sched.delays[0] != 15*time.Second {
		t.Errorf("empty-room notice should self-delete after 15s, got %v", sched.delays)
	}
}

func TestPrivateRoomBlocksLinks(t *testing.T) {
	t.Parallel()

	fake := platformtest.New("bot")
	priv := fake.AddTextChannel("600", "g1", "team-private")
	r, _, _ := newTestRouter(t, fake)

	msg := fake.SeedMessage(userMessage("m1", priv.ID, "look https://youtu.be/abc123"))
	r.HandleMessage(context.Background(), msg)

	if len(fake.Deleted) != 1 || fake.Deleted[0].MessageID != "m1" {
		t.Fatalf("expected link message deleted, got %v", fake.Deleted)
	}
	for _, s := range fake.Sent {
		if len(s.Data.Embeds) > 0 {
			t.Error("no relocation may happen out of a private room")
		}
	}
	if len(fake.Sent) != 1 || !strings.Contains(fake.Sent[0].Data.Content, "not allowed") {
		t.Errorf("expected a no-links warning, got %v", fake.Sent)
	}

	// Plain text in a private room stays untouched.
	fake.Sent, fake.Deleted = nil, nil
	plain := fake.SeedMessage(userMessage("m2", priv.ID, "no links here"))
	r.HandleMessage(context.Background(), plain)
	if len(fake.Sent) != 0 || len(fake.Deleted) != 0 {
		t.Errorf("plain private message should be untouched, sends=%d deletes=%d", len(fake.Sent), len(fake.Deleted))
	}
}

func TestHandleMessageIgnores(t *testing.T) {
	t.Parallel()

	fake := platformtest.New("bot")
	general := fake.AddTextChannel("500", "g1", "general")
	r, reg, _ := newTestRouter(t, fake)
	videoDest := destination(t, reg, links.Video)

	thread := fake.AddChannel(&discordgo.Channel{
		ID:       "t1",
		GuildID:  "g1",
		ParentID: videoDest.ID,
		Type:     discordgo.ChannelTypeGuildPublicThread,
	})

	tests := []struct {
		name string
		msg  *discordgo.Message
	}{
		{"self-authored", &discordgo.Message{ID: "m1", ChannelID: general.ID, GuildID: "g1", Author: fake.User, Content: "https://youtu.be/x"}},
		{"direct message", &discordgo.Message{ID: "m2", ChannelID: general.ID, Author: &discordgo.User{ID: "u1"}, Content: "https://youtu.be/x"}},
		{"inside thread", userMessage("m3", thread.ID, "https://youtu.be/x")},
		{"nil author", &discordgo.Message{ID: "m4", ChannelID: general.ID, GuildID: "g1", Content: "https://youtu.be/x"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r.HandleMessage(context.Background(), tc.msg)
			if len(fake.Sent) != 0 || len(fake.Deleted) != 0 {
				t.Errorf("message should be ignored, sends=%d deletes=%d", len(fake.Sent), len(fake.Deleted))
			}
		})
	}
}
