package seed_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/crypto/bcrypt"

	"alquimist/internal/core"
	"alquimist/internal/seed"
	"alquimist/pkg/domain"
)

func TestLoad(t *testing.T) {
	ds, err := seed.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ds.Laboratories) != 2 || len(ds.Users) != 4 || len(ds.Activities) != 5 {
		t.Fatalf("unexpected dataset sizes: %d labs, %d users, %d activities", len(ds.Laboratories), len(ds.Users), len(ds.Activities))
	}
	for _, u := range ds.Users {
		if u.Password == "" {
			t.Fatalf("user %s has no password", u.ID)
		}
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine(), core.WithBcryptCost(bcrypt.MinCost))
	ds, err := seed.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	applied, err := seed.Apply(ctx, svc, ds)
	if err != nil || !applied {
		t.Fatalf("first apply: applied=%v err=%v", applied, err)
	}
	applied, err = seed.Apply(ctx, svc, ds)
	if err != nil || applied {
		t.Fatalf("second apply should be skipped: applied=%v err=%v", applied, err)
	}

	labs, _ := svc.ListLaboratories(ctx)
	if len(labs) != len(ds.Laboratories) {
		t.Fatalf("expected %d labs, got %d", len(ds.Laboratories), len(labs))
	}
	profile, _, err := svc.Authenticate(ctx, core.LoginInput{Email: &ds.Users[0].Email, Password: &ds.Users[0].Password})
	if err != nil {
		t.Fatalf("seeded password should authenticate: %v", err)
	}
	if diff := cmp.Diff(domain.PermissionsForRole(ds.Users[0].Role), profile.Permissions); diff != "" {
		t.Fatalf("permissions mismatch (-want +got):\n%s", diff)
	}

	page, _ := svc.ListActivities(ctx, core.ActivityFilter{})
	// The login above is the newest entry; the seeded ones follow newest first.
	if page.Total != len(ds.Activities)+1 || page.Items[1].ID != ds.Activities[0].ID {
		t.Fatalf("unexpected activity order %+v", page.Items)
	}
	for i := 2; i < len(page.Items); i++ {
		if page.Items[i].Timestamp.After(page.Items[i-1].Timestamp) {
			t.Fatalf("activities not newest first at %d", i)
		}
	}
}

func TestChatSnapshot(t *testing.T) {
	ds, err := seed.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	snap := ds.ChatSnapshot(now)

	if len(snap.Channels) != 2 || len(snap.Messages) != 1 || len(snap.Users) != len(ds.Users) {
		t.Fatalf("unexpected snapshot sizes %d/%d/%d", len(snap.Channels), len(snap.Messages), len(snap.Users))
	}
	general := snap.Channels[0]
	if general.ID != domain.ChannelGeneralID || general.LastMessage == nil || general.LastMessage.ID != "msg1" {
		t.Fatalf("general channel should carry the welcome message, got %+v", general)
	}
	if snap.Channels[1].LastMessage != nil {
		t.Fatalf("inter-lab channel has no messages yet")
	}
	if !snap.Messages[0].Timestamp.Equal(now) || !snap.Users[0].LastSeen.Equal(now) {
		t.Fatalf("snapshot should be stamped with now")
	}
}
