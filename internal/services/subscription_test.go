package services

import (
	"context"
	"testing"
	"time"

	"github.com/ZeremItay/autohub/internal/models"
)

func TestSubscriptionService_Plans(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubscriptionService(db, nil)

	plans, err := svc.Plans(context.Background())
	if err != nil {
		t.Fatalf("Plans() error = %v", err)
	}
	want := []string{models.RoleFree, models.RoleBasic, models.RolePremium}
	if len(plans) != len(want) {
		t.Fatalf("Plans() = %d plans, want %d", len(plans), len(want))
	}
	for i, name := range want {
		if plans[i].Name != name {
			t.Errorf("plans[%d] = %q, want %q", i, plans[i].Name, name)
		}
	}
}

func TestSubscriptionService_CheckoutConfirm(t *testing.T) {
	db := newTestDB(t)
	q := &recordingQueue{}
	svc := NewSubscriptionService(db, q)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()
	member := createProfile(t, db, models.RoleFree)

	_, err := svc.Checkout(ctx, actorOf(member), &CheckoutRequest{Role: models.RoleFree})
	assertStatus(t, err, 400)
	_, err = svc.Checkout(ctx, actorOf(member), &CheckoutRequest{Role: models.RoleAdmin})
	assertStatus(t, err, 400)

	payment, err := svc.Checkout(ctx, actorOf(member), &CheckoutRequest{Role: models.RolePremium})
	if err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}
	if payment.Status != models.PaymentPending || payment.Amount != 29 || payment.ProviderRef == "" {
		t.Errorf("Checkout() = %+v", payment)
	}

	confirmed, err := svc.Confirm(ctx, payment.ID)
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if confirmed.Status != models.PaymentSucceeded || confirmed.PaidAt == nil || confirmed.SubscriptionID == nil {
		t.Errorf("Confirm() = %+v", confirmed)
	}
	if _, err := svc.Confirm(ctx, payment.ID); err != nil {
		t.Fatalf("second Confirm() error = %v", err)
	}
	if n := len(q.notifications(t)); n != 1 {
		t.Errorf("notifications = %d, want 1", n)
	}

	var role string
	db.Model(&models.Profile{}).Select("role").Where("id = ?", member.ID).Scan(&role)
	if role != models.RolePremium {
		t.Errorf("role = %q, want premium", role)
	}

	view, err := svc.Current(ctx, member.ID)
	if err != nil || view.Subscription == nil || view.Plan == nil {
		t.Fatalf("Current() = %+v, %v", view, err)
	}
	if !view.Subscription.CurrentPeriodEnd.Equal(now.AddDate(0, 1, 0)) {
		t.Errorf("period end = %v", view.Subscription.CurrentPeriodEnd)
	}

	renewal, _ := svc.Checkout(ctx, Actor{ID: member.ID, Role: models.RolePremium}, &CheckoutRequest{Role: models.RolePremium})
	if _, err := svc.Confirm(ctx, renewal.ID); err != nil {
		t.Fatal(err)
	}
	view, _ = svc.Current(ctx, member.ID)
	if !view.Subscription.CurrentPeriodEnd.Equal(now.AddDate(0, 2, 0)) {
		t.Errorf("renewal should stack: period end = %v", view.Subscription.CurrentPeriodEnd)
	}

	history, _ := svc.Payments(ctx, member.ID, &Pagination{})
	if history.Total != 2 {
		t.Errorf("Payments() total = %d, want 2", history.Total)
	}

	_, err = svc.Confirm(ctx, 9999)
	assertStatus(t, err, 404)
}

func TestSubscriptionService_CancelAndExpire(t *testing.T) {
	db := newTestDB(t)
	q := &recordingQueue{}
	svc := NewSubscriptionService(db, q)
	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }
	ctx := context.Background()
	member := createProfile(t, db, models.RoleFree)

	_, err := svc.Cancel(ctx, member.ID)
	assertStatus(t, err, 404)

	payment, _ := svc.Checkout(ctx, actorOf(member), &CheckoutRequest{Role: models.RoleBasic})
	if _, err := svc.Confirm(ctx, payment.ID); err != nil {
		t.Fatal(err)
	}
	sub, err := svc.Cancel(ctx, member.ID)
	if err != nil || !sub.CancelAtPeriodEnd {
		t.Fatalf("Cancel() = %+v, %v", sub, err)
	}

	n, err := svc.ExpireDue(ctx)
	if err != nil || n != 0 {
		t.Fatalf("ExpireDue() before period end = %d, %v", n, err)
	}

	svc.now = func() time.Time { return start.AddDate(0, 1, 1) }
	n, err = svc.ExpireDue(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ExpireDue() = %d, %v", n, err)
	}
	n, _ = svc.ExpireDue(ctx)
	if n != 0 {
		t.Errorf("second ExpireDue() = %d, want 0", n)
	}

	var profile models.Profile
	db.First(&profile, member.ID)
	if profile.Role != models.RoleFree {
		t.Errorf("role after expiry = %q, want free", profile.Role)
	}
	view, _ := svc.Current(ctx, member.ID)
	if view.Subscription.Status != models.SubscriptionExpired {
		t.Errorf("status = %q, want expired", view.Subscription.Status)
	}
	if notes := q.notifications(t); len(notes) != 2 {
		t.Errorf("notifications = %d, want 2", len(notes))
	}
}
