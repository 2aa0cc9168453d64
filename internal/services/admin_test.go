package services

import (
	"context"
	"testing"
	"time"

	"github.com/ZeremItay/autohub/internal/models"
)

func TestAdminService_UpdateAndDeleteUsers(t *testing.T) {
	db := newTestDB(t)
	q := &recordingQueue{}
	svc := NewAdminService(db, NewGamificationService(db, nil, q))
	ctx := context.Background()
	admin := createProfile(t, db, models.RoleAdmin)
	member := createProfile(t, db, models.RoleFree)

	token := &models.RefreshToken{ProfileID: member.ID, TokenHash: "hash-1", ExpiresAt: time.Now().Add(time.Hour)}
	db.Create(token)

	demote := models.RoleFree
	_, err := svc.UpdateUser(ctx, actorOf(admin), admin.ID, &AdminUpdateUserRequest{Role: &demote})
	assertStatus(t, err, 400)
	off := false
	_, err = svc.UpdateUser(ctx, actorOf(admin), admin.ID, &AdminUpdateUserRequest{IsActive: &off})
	assertStatus(t, err, 400)

	premium := models.RolePremium
	updated, err := svc.UpdateUser(ctx, actorOf(admin), member.ID, &AdminUpdateUserRequest{
		Role: &premium, IsActive: &off, PointsAdjust: 25, Reason: "Meetup speaker",
	})
	if err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	if updated.Role != models.RolePremium || updated.IsActive || updated.Points != 25 {
		t.Errorf("UpdateUser() = role %q active %v points %d", updated.Role, updated.IsActive, updated.Points)
	}
	db.First(token, token.ID)
	if token.RevokedAt == nil {
		t.Error("disabling a member should revoke their refresh tokens")
	}

	_, err = svc.UpdateUser(ctx, actorOf(admin), member.ID, &AdminUpdateUserRequest{PointsAdjust: -100})
	assertStatus(t, err, 409)

	page, err := svc.ListUsers(ctx, &AdminUserListRequest{Status: "inactive"})
	if err != nil || page.Total != 1 || page.Items[0].Email == "" {
		t.Errorf("ListUsers(inactive) = %+v, %v", page, err)
	}

	assertStatus(t, svc.DeleteUser(ctx, actorOf(admin), admin.ID), 400)
	if err := svc.DeleteUser(ctx, actorOf(admin), member.ID); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	assertStatus(t, svc.DeleteUser(ctx, actorOf(admin), member.ID), 404)
}

func TestAdminService_Stats(t *testing.T) {
	db := newTestDB(t)
	svc := NewAdminService(db, nil)
	now := time.Now()
	svc.now = func() time.Time { return now }
	ctx := context.Background()
	member := createProfile(t, db, models.RolePremium)
	createProfile(t, db, models.RoleFree)

	paidAt := now
	lastMonth := now.AddDate(0, -2, 0)
	db.Create(&models.Payment{ProfileID: member.ID, Role: models.RolePremium, Amount: 29, Status: models.PaymentSucceeded, PaidAt: &paidAt})
	db.Create(&models.Payment{ProfileID: member.ID, Role: models.RolePremium, Amount: 29, Status: models.PaymentSucceeded, PaidAt: &lastMonth})
	db.Create(&models.Payment{ProfileID: member.ID, Role: models.RoleBasic, Amount: 9, Status: models.PaymentPending})
	db.Create(&models.Subscription{ProfileID: member.ID, Role: models.RolePremium, Status: models.SubscriptionActive,
		CurrentPeriodStart: now, CurrentPeriodEnd: now.AddDate(0, 1, 0)})

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Members != 2 || stats.ActiveSubscriptions != 1 || stats.RevenueThisMonth != 29 {
		t.Errorf("Stats() = %+v", stats)
	}
	if stats.Courses != 0 || stats.ForumPosts != 0 {
		t.Errorf("empty counters = %+v", stats)
	}
}
