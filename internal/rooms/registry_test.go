package rooms_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/bwmarrin/discordgo"

	"linkherd/internal/links"
	"linkherd/internal/platform/platformtest"
	"linkherd/internal/rooms"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnsureResolutionOrder(t *testing.T) {
	t.Parallel()

	t.Run("configured channel wins", func(t *testing.T) {
		t.Parallel()
		fake := platformtest.New("bot")
		pinned := fake.AddTextChannel("42", "g1", "whatever-name")
		reg := rooms.New(testLogger(), fake, map[string]string{"video": "42"})

		ch, err := reg.Ensure("g1", links.Video)
		if err != nil {
			t.Fatalf("Ensure: %v", err)
		}
		if ch.ID != pinned.ID {
			t.Errorf("resolved %q, want pinned channel %q", ch.ID, pinned.ID)
		}
		if len(fake.Created) != 0 {
			t.Errorf("unexpected channel creation: %v", fake.Created)
		}
	})

	t.Run("stale configured id falls back to name search", func(t *testing.T) {
		t.Parallel()
		fake := platformtest.New("bot")
		existing := fake.AddTextChannel("7", "g1", links.Video.Def().RoomName)
		reg := rooms.New(testLogger(), fake, map[string]string{"video": "gone"})

		ch, err := reg.Ensure("g1", links.Video)
		if err != nil {
			t.Fatalf("Ensure: %v", err)
		}
		if ch.ID != existing.ID {
			t.Errorf("resolved %q, want existing channel %q", ch.ID, existing.ID)
		}
	})

	t.Run("creates channel when nothing matches", func(t *testing.T) {
		t.Parallel()
		fake := platformtest.New("bot")
		reg := rooms.New(testLogger(), fake, nil)

		ch, err := reg.Ensure("g1", links.Store)
		if err != nil {
			t.Fatalf("Ensure: %v", err)
		}
		if len(fake.Created) != 1 {
			t.Fatalf("expected 1 created channel, got %d", len(fake.Created))
		}
		def := links.Store.Def()
		if ch.Name != def.RoomName || ch.Topic != def.Topic {
			t.Errorf("created channel %q topic %q, want %q topic %q", ch.Name, ch.Topic, def.RoomName, def.Topic)
		}
	})
}

func TestEnsureIdempotent(t *testing.T) {
	t.Parallel()

	fake := platformtest.New("bot")
	reg := rooms.New(testLogger(), fake, nil)

	first, err := reg.Ensure("g1", links.General)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	second, err := reg.Ensure("g1", links.General)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if first != second {
		t.Errorf("expected cached handle on second call")
	}
	if len(fake.Created) != 1 {
		t.Errorf("expected exactly 1 creation, got %d", len(fake.Created))
	}
	// Per-guild bindings stay independent.
	other, err := reg.Ensure("g2", links.General)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if other == first {
		t.Error("binding leaked across guilds")
	}
}

func TestAccessPolicy(t *testing.T) {
	t.Parallel()

	t.Run("overwrites applied for role and self", func(t *testing.T) {
		t.Parallel()
		fake := platformtest.New("bot")
		reg := rooms.New(testLogger(), fake, nil)

		ch, err := reg.Ensure("g1", links.Video)
		if err != nil {
			t.Fatalf("Ensure: %v", err)
		}
		if len(fake.Permissions) != 2 {
			t.Fatalf("expected 2 permission calls, got %d", len(fake.Permissions))
		}

		role := fake.Permissions[0]
		if role.ChannelID != ch.ID || role.TargetID != "g1" || role.TargetType != discordgo.PermissionOverwriteTypeRole {
			t.Errorf("unexpected role overwrite: %+v", role)
		}
		if role.Deny&discordgo.PermissionSendMessages == 0 {
			t.Error("default role should be denied top-level posting")
		}
		if role.Allow&discordgo.PermissionSendMessagesInThreads == 0 {
			t.Error("default role should keep thread posting")
		}

		self := fake.Permissions[1]
		if self.TargetID != "bot" || self.TargetType != discordgo.PermissionOverwriteTypeMember {
			t.Errorf("unexpected self overwrite: %+v", self)
		}
		if self.Allow&discordgo.PermissionSendMessages == 0 {
			t.Error("self should keep top-level posting")
		}
	})

	t.Run("policy failure is non-fatal", func(t *testing.T) {
		t.Parallel()
		fake := platformtest.New("bot")
		fake.PermissionErr = errors.New("missing permissions")
		reg := rooms.New(testLogger(), fake, nil)

		ch, err := reg.Ensure("g1", links.Video)
		if err != nil {
			t.Fatalf("Ensure should succeed despite policy failure: %v", err)
		}
		if !reg.IsDestination(ch.ID) {
			t.Error("room should still be registered as a destination")
		}
	})
}

func TestIsDestination(t *testing.T) {
	t.Parallel()

	fake := platformtest.New("bot")
	reg := rooms.New(testLogger(), fake, nil)

	if reg.IsDestination("anything") {
		t.Error("no destinations should exist before Ensure")
	}
	ch, err := reg.Ensure("g1", links.Video)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if !reg.IsDestination(ch.ID) {
		t.Error("resolved room not recognized as destination")
	}
	if reg.IsDestination("other") {
		t.Error("unrelated channel recognized as destination")
	}
}
