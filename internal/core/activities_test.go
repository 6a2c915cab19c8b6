package core_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"alquimist/internal/core"
	"alquimist/internal/infra/persistence/memory"
	"alquimist/pkg/domain"
)

func activityInput(i int, category domain.ActivityCategory) core.ActivityInput {
	return core.ActivityInput{
		UserID:      ptr("admin-1"),
		UserName:    ptr("Dr. Ana García"),
		UserRole:    ptr(domain.RoleAdmin),
		Action:      ptr(fmt.Sprintf("action-%d", i)),
		Description: ptr("descripción"),
		Category:    ptr(category),
	}
}

func TestActivityPagination(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	for i := range 5 {
		if _, _, err := svc.RecordActivity(ctx, activityInput(i, domain.CategoryInventory)); err != nil {
			t.Fatalf("record activity: %v", err)
		}
	}

	page, err := svc.ListActivities(ctx, core.ActivityFilter{Limit: 2})
	if err != nil {
		t.Fatalf("list activities: %v", err)
	}
	if len(page.Items) != 2 || page.Total != 5 || !page.HasMore {
		t.Fatalf("unexpected first page %+v", page)
	}
	page, _ = svc.ListActivities(ctx, core.ActivityFilter{Limit: 2, Offset: 4})
	if len(page.Items) != 1 || page.HasMore {
		t.Fatalf("unexpected last page %+v", page)
	}
	page, _ = svc.ListActivities(ctx, core.ActivityFilter{Offset: 10})
	if len(page.Items) != 0 || page.Items == nil || page.Limit != core.DefaultActivityLimit {
		t.Fatalf("unexpected out-of-range page %+v", page)
	}
	page, _ = svc.ListActivities(ctx, core.ActivityFilter{Category: domain.CategoryAuthentication})
	if page.Total != 0 {
		t.Fatalf("expected category filter to exclude all, got %d", page.Total)
	}
}

func TestActivityRetentionBound(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	for i := range 1050 {
		if _, _, err := svc.RecordActivity(ctx, activityInput(i, domain.CategoryAssignment)); err != nil {
			t.Fatalf("record activity %d: %v", i, err)
		}
	}
	page, _ := svc.ListActivities(ctx, core.ActivityFilter{Limit: 2000})
	if page.Total != memory.MaxActivities {
		t.Fatalf("expected %d activities, got %d", memory.MaxActivities, page.Total)
	}
	seen := make(map[string]bool, page.Total)
	for _, a := range page.Items {
		seen[a.Action] = true
	}
	if seen["action-49"] || !seen["action-50"] || !seen["action-1049"] {
		t.Fatalf("expected the 1000 most recent activities to survive")
	}
}

func TestPurgeActivities(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := now.Add(-40 * 24 * time.Hour)
	store := memory.NewStore(core.NewDefaultRulesEngine(), memory.WithClock(func() time.Time { return clock }))
	svc := core.NewService(store, core.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	if _, _, err := svc.RecordActivity(ctx, activityInput(0, domain.CategoryInventory)); err != nil {
		t.Fatalf("record old activity: %v", err)
	}
	clock = now.Add(-time.Hour)
	if _, _, err := svc.RecordActivity(ctx, activityInput(1, domain.CategoryInventory)); err != nil {
		t.Fatalf("record recent activity: %v", err)
	}

	removed, _, err := svc.PurgeActivities(ctx, -1)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one purged activity, got %d", removed)
	}
	page, _ := svc.ListActivities(ctx, core.ActivityFilter{})
	if page.Total != 1 || page.Items[0].Action != "action-1" {
		t.Fatalf("unexpected remaining activities %+v", page.Items)
	}
}

func TestRecordActivityValidates(t *testing.T) {
	svc := newService(t)
	in := activityInput(0, "gossip")
	in.Description = ptr("")
	if _, _, err := svc.RecordActivity(context.Background(), in); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestRecordCommunication(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	if _, err := svc.RecordCommunication(ctx, "create_channel", "creó el canal Guardia", "channel-1", "Guardia"); err != nil {
		t.Fatalf("record without actor: %v", err)
	}
	if page, _ := svc.ListActivities(ctx, core.ActivityFilter{}); page.Total != 0 {
		t.Fatalf("expected nothing recorded without an actor, got %d", page.Total)
	}

	ctx = core.WithActor(ctx, core.Actor{ID: "tecnico-1", Role: domain.RoleTechnician})
	if _, err := svc.RecordCommunication(ctx, "create_channel", "creó el canal Guardia", "channel-1", "Guardia"); err != nil {
		t.Fatalf("record with actor: %v", err)
	}
	page, _ := svc.ListActivities(ctx, core.ActivityFilter{Category: domain.CategoryCommunication})
	if page.Total != 1 || page.Items[0].UserName != "tecnico-1" || page.Items[0].Description != "tecnico-1 creó el canal Guardia" {
		t.Fatalf("unexpected communication activity %+v", page.Items)
	}
}
