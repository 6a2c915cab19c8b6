package core_test

import (
	"context"
	"errors"
	"testing"

	"alquimist/internal/core"
	"alquimist/pkg/domain"
)

func mustUser(t *testing.T, svc *core.Service, email, role string) domain.UserProfile {
	t.Helper()
	u, _, err := svc.CreateUser(context.Background(), core.UserInput{
		Name:     ptr("Dr. Ana García"),
		Role:     ptr(role),
		Email:    ptr(email),
		Password: ptr("admin123"),
		LabID:    ptr("lab-1"),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestCreateUserDerivesPermissionsAndRejectsDuplicates(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	u := mustUser(t, svc, "admin@alquimist.com", domain.RoleAdmin)
	if u.IsOnline || len(u.Permissions) != 10 {
		t.Fatalf("expected offline admin with role permissions, got %+v", u)
	}

	_, _, err := svc.CreateUser(ctx, core.UserInput{Name: ptr("Otro"), Role: ptr("Técnico"), Email: ptr("admin@alquimist.com"), Password: ptr("secret1")})
	var conflict domain.ErrConflict
	if !errors.As(err, &conflict) || conflict.Field != "email" {
		t.Fatalf("expected email conflict, got %v", err)
	}

	custom, _, err := svc.CreateUser(ctx, core.UserInput{Name: ptr("Invitada"), Role: ptr("Visitante"), Email: ptr("guest@alquimist.com"), Password: ptr("secret1"), Permissions: ptr([]string{"view_all"})})
	if err != nil {
		t.Fatalf("create custom user: %v", err)
	}
	if len(custom.Permissions) != 1 || custom.Permissions[0] != "view_all" {
		t.Fatalf("explicit permissions should win, got %v", custom.Permissions)
	}

	if _, _, err := svc.CreateUser(ctx, core.UserInput{Name: ptr("Corta"), Role: ptr("Técnico"), Email: ptr("short@alquimist.com"), Password: ptr("123")}); err == nil {
		t.Fatalf("expected short password rejected")
	}
}

func TestUpdateUserRoleAndEmail(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	admin := mustUser(t, svc, "admin@alquimist.com", domain.RoleAdmin)
	tech := mustUser(t, svc, "tecnico@alquimist.com", domain.RoleTechnician)

	if _, _, err := svc.UpdateUser(ctx, tech.ID, core.UserInput{Email: ptr(admin.Email)}); err == nil {
		t.Fatalf("expected duplicate email rejected on update")
	}
	if _, _, err := svc.UpdateUser(ctx, tech.ID, core.UserInput{Email: ptr(tech.Email)}); err != nil {
		t.Fatalf("keeping own email should succeed: %v", err)
	}

	updated, _, err := svc.UpdateUser(ctx, tech.ID, core.UserInput{Role: ptr(domain.RolePathologist)})
	if err != nil {
		t.Fatalf("update role: %v", err)
	}
	want := domain.PermissionsForRole(domain.RolePathologist)
	if len(updated.Permissions) != len(want) || updated.Permissions[0] != want[0] {
		t.Fatalf("expected permissions re-derived, got %v", updated.Permissions)
	}

	updated, _, err = svc.UpdateUser(ctx, tech.ID, core.UserInput{Role: ptr(domain.RoleAdmin), Permissions: ptr([]string{"view_all"})})
	if err != nil {
		t.Fatalf("update role with permissions: %v", err)
	}
	if len(updated.Permissions) != 1 {
		t.Fatalf("explicit permissions should win, got %v", updated.Permissions)
	}

	if _, _, err := svc.UpdateUser(ctx, tech.ID, core.UserInput{Password: ptr("nuevo123")}); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, _, err := svc.Authenticate(ctx, core.LoginInput{Email: ptr(tech.Email), Password: ptr("nuevo123")}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestListUsersFilters(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	mustUser(t, svc, "admin@alquimist.com", domain.RoleAdmin)
	tech := mustUser(t, svc, "tecnico@alquimist.com", domain.RoleTechnician)
	if _, _, err := svc.Authenticate(ctx, core.LoginInput{Email: ptr(tech.Email), Password: ptr("admin123")}); err != nil {
		t.Fatalf("login: %v", err)
	}

	byRole, _ := svc.ListUsers(ctx, core.UserFilter{Role: domain.RoleTechnician})
	if len(byRole) != 1 || byRole[0].ID != tech.ID {
		t.Fatalf("unexpected role filter %+v", byRole)
	}
	online, _ := svc.ListUsers(ctx, core.UserFilter{OnlineOnly: true})
	if len(online) != 1 || !online[0].IsOnline {
		t.Fatalf("unexpected online filter %+v", online)
	}
	none, _ := svc.ListUsers(ctx, core.UserFilter{LabID: "lab-9"})
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", none)
	}
}

func TestAuthenticate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	admin := mustUser(t, svc, "admin@alquimist.com", domain.RoleAdmin)

	profile, res, err := svc.Authenticate(ctx, core.LoginInput{Email: ptr("admin@alquimist.com"), Password: ptr("admin123")})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if profile.ID != admin.ID || profile.Role != domain.RoleAdmin || !profile.IsOnline || profile.LastLogin == nil {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if len(res.Touched()) != 2 {
		t.Fatalf("expected user and activity changes, got %v", res.Touched())
	}

	for name, in := range map[string]core.LoginInput{
		"wrong password": {Email: ptr("admin@alquimist.com"), Password: ptr("nope")},
		"unknown email":  {Email: ptr("ghost@alquimist.com"), Password: ptr("admin123")},
	} {
		if _, _, err := svc.Authenticate(ctx, in); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("%s: expected invalid credentials, got %v", name, err)
		}
	}
	if _, _, err := svc.Authenticate(ctx, core.LoginInput{Email: ptr("not-an-email"), Password: ptr("")}); errors.Is(err, domain.ErrInvalidCredentials) || err == nil {
		t.Fatalf("expected validation error, got %v", err)
	}

	page, _ := svc.ListActivities(ctx, core.ActivityFilter{Category: domain.CategoryAuthentication})
	if page.Total != 1 || page.Items[0].Action != "login" || page.Items[0].Description != "Dr. Ana García inició sesión en el sistema" {
		t.Fatalf("unexpected login activity %+v", page.Items)
	}

	if _, err := svc.Logout(ctx, admin.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	u, _ := svc.GetUser(ctx, admin.ID)
	if u.IsOnline {
		t.Fatalf("expected user offline after logout")
	}
	if _, err := svc.Logout(ctx, "ghost"); err != nil {
		t.Fatalf("logout of unknown user should be acknowledged: %v", err)
	}
}

func TestDeleteUser(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	u := mustUser(t, svc, "admin@alquimist.com", domain.RoleAdmin)
	if _, err := svc.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := svc.GetUser(ctx, u.ID); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
