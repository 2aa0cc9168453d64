package services

import (
	"context"
	"testing"

	"github.com/ZeremItay/autohub/internal/models"
	"gorm.io/gorm"
)

func createTag(t *testing.T, svc *TagService, name string) *models.Tag {
	t.Helper()
	tag, err := svc.Create(context.Background(), &CreateTagRequest{Name: name, Category: "tool"})
	if err != nil {
		t.Fatalf("create tag %q: %v", name, err)
	}
	return tag
}

func TestProjectService_CreateAndList(t *testing.T) {
	db := newTestDB(t)
	q := &recordingQueue{}
	hub := NewSSEHub()
	svc := NewProjectService(db, q, hub)
	ctx := context.Background()
	owner := createProfile(t, db, models.RoleBasic)
	n8n := createTag(t, NewTagService(db), "n8n")

	events := hub.Subscribe("watcher", 0, TopicInvalidate)
	defer hub.Unsubscribe("watcher")

	_, err := svc.Create(ctx, actorOf(owner), &CreateProjectRequest{Title: "CRM sync", BudgetMin: 500, BudgetMax: 100})
	assertStatus(t, err, 400)
	_, err = svc.Create(ctx, actorOf(owner), &CreateProjectRequest{Title: "CRM sync", TagIDs: []uint{9999}})
	assertStatus(t, err, 400)

	project, err := svc.Create(ctx, actorOf(owner), &CreateProjectRequest{
		Title: "CRM sync", Description: "Sync HubSpot to Sheets", BudgetMin: 200, BudgetMax: 800, TagIDs: []uint{n8n.ID, n8n.ID},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if project.Status != models.ProjectStatusOpen || project.Currency != "USD" || len(project.Tags) != 1 {
		t.Errorf("Create() = %+v", project)
	}
	var links int64
	db.Table("project_tags").Where("project_id = ?", project.ID).Count(&links)
	if links != 1 {
		t.Errorf("project_tags rows = %d, want 1", links)
	}

	select {
	case ev := <-events:
		inv, ok := ev.Data.(Invalidation)
		if !ok || inv.Resource != "projects" || inv.ID != project.ID {
			t.Errorf("invalidation = %+v", ev.Data)
		}
	default:
		t.Error("expected a projects invalidation event")
	}

	if awards := q.awards(t); len(awards) != 1 || awards[0].Action != models.ActionProjectPublished {
		t.Errorf("awards = %+v", awards)
	}

	if _, err := svc.Create(ctx, actorOf(owner), &CreateProjectRequest{Title: "Invoice bot", BudgetMin: 2000, BudgetMax: 3000}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		req  ProjectListRequest
		want int64
	}{
		{"all", ProjectListRequest{}, 2},
		{"by tag slug", ProjectListRequest{Tag: "n8n"}, 1},
		{"by search", ProjectListRequest{Search: "hubspot"}, 1},
		{"by status", ProjectListRequest{Status: models.ProjectStatusCompleted}, 0},
		{"by owner", ProjectListRequest{OwnerID: owner.ID}, 2},
		{"budget below", ProjectListRequest{MaxBudget: floatPtr(1000)}, 1},
		{"budget above", ProjectListRequest{MinBudget: floatPtr(1000)}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.List(ctx, &tt.req)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if page.Total != tt.want {
				t.Errorf("List() total = %d, want %d", page.Total, tt.want)
			}
		})
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestProjectService_Offers(t *testing.T) {
	db := newTestDB(t)
	q := &recordingQueue{}
	svc := NewProjectService(db, q, nil)
	ctx := context.Background()
	owner := createProfile(t, db, models.RoleBasic)
	alice := createProfile(t, db, models.RoleFree)
	bob := createProfile(t, db, models.RoleFree)
	admin := createProfile(t, db, models.RoleAdmin)

	project, _ := svc.Create(ctx, actorOf(owner), &CreateProjectRequest{Title: "Lead scoring", BudgetMax: 500})

	_, err := svc.CreateOffer(ctx, actorOf(owner), project.ID, &CreateOfferRequest{Amount: 100})
	assertStatus(t, err, 400)

	aliceOffer, err := svc.CreateOffer(ctx, actorOf(alice), project.ID, &CreateOfferRequest{Amount: 300, DeliveryDays: 5})
	if err != nil {
		t.Fatalf("CreateOffer() error = %v", err)
	}
	_, err = svc.CreateOffer(ctx, actorOf(alice), project.ID, &CreateOfferRequest{Amount: 250})
	assertStatus(t, err, 409)
	bobOffer, _ := svc.CreateOffer(ctx, actorOf(bob), project.ID, &CreateOfferRequest{Amount: 400})

	notes := q.notifications(t)
	if len(notes) != 2 || notes[0].ProfileID != owner.ID || notes[0].EmailCategory != models.EmailProjectOffers {
		t.Errorf("offer notifications = %+v", notes)
	}

	asAlice, _ := svc.Get(ctx, actorOf(alice), project.ID)
	if len(asAlice.Offers) != 1 || asAlice.Offers[0].ID != aliceOffer.ID || asAlice.OffersCount != 2 {
		t.Errorf("alice sees %d offers (count %d)", len(asAlice.Offers), asAlice.OffersCount)
	}
	asAdmin, _ := svc.Get(ctx, actorOf(admin), project.ID)
	if len(asAdmin.Offers) != 2 {
		t.Errorf("admin sees %d offers, want 2", len(asAdmin.Offers))
	}

	_, err = svc.AcceptOffer(ctx, actorOf(alice), project.ID, aliceOffer.ID)
	assertStatus(t, err, 403)
	_, err = svc.WithdrawOffer(ctx, actorOf(alice), project.ID, bobOffer.ID)
	assertStatus(t, err, 403)

	accepted, err := svc.AcceptOffer(ctx, actorOf(owner), project.ID, aliceOffer.ID)
	if err != nil {
		t.Fatalf("AcceptOffer() error = %v", err)
	}
	if accepted.Status != models.ProjectStatusInProgress || accepted.AcceptedOfferID == nil || *accepted.AcceptedOfferID != aliceOffer.ID {
		t.Errorf("project after accept = %+v", accepted)
	}
	statuses := map[uint]string{}
	for _, o := range accepted.Offers {
		statuses[o.ID] = o.Status
	}
	if statuses[aliceOffer.ID] != models.OfferStatusAccepted || statuses[bobOffer.ID] != models.OfferStatusRejected {
		t.Errorf("offer statuses = %v", statuses)
	}
	notes = q.notifications(t)
	if last := notes[len(notes)-1]; last.ProfileID != alice.ID || last.Type != models.NotificationOfferAccepted {
		t.Errorf("accept notification = %+v", last)
	}

	_, err = svc.WithdrawOffer(ctx, actorOf(bob), project.ID, bobOffer.ID)
	assertStatus(t, err, 400)

	carol := createProfile(t, db, models.RoleFree)
	_, err = svc.CreateOffer(ctx, actorOf(carol), project.ID, &CreateOfferRequest{Amount: 100})
	assertStatus(t, err, 400)
}

func TestProjectService_WithdrawAndOwnership(t *testing.T) {
	db := newTestDB(t)
	svc := NewProjectService(db, nil, nil)
	ctx := context.Background()
	owner := createProfile(t, db, models.RoleBasic)
	other := createProfile(t, db, models.RoleFree)
	admin := createProfile(t, db, models.RoleAdmin)

	project, _ := svc.Create(ctx, actorOf(owner), &CreateProjectRequest{Title: "Slack alerts"})
	offer, _ := svc.CreateOffer(ctx, actorOf(other), project.ID, &CreateOfferRequest{Amount: 50})

	withdrawn, err := svc.WithdrawOffer(ctx, actorOf(other), project.ID, offer.ID)
	if err != nil || withdrawn.Status != models.OfferStatusWithdrawn {
		t.Fatalf("WithdrawOffer() = %+v, %v", withdrawn, err)
	}
	_, err = svc.AcceptOffer(ctx, actorOf(owner), project.ID, offer.ID)
	assertStatus(t, err, 400)

	title := "Stolen"
	_, err = svc.Update(ctx, actorOf(other), project.ID, &UpdateProjectRequest{Title: &title})
	assertStatus(t, err, 403)
	assertStatus(t, svc.Delete(ctx, actorOf(other), project.ID), 403)

	status := models.ProjectStatusCancelled
	updated, err := svc.Update(ctx, actorOf(admin), project.ID, &UpdateProjectRequest{Status: &status})
	if err != nil || updated.Status != models.ProjectStatusCancelled {
		t.Fatalf("admin Update() = %+v, %v", updated, err)
	}

	if err := svc.Delete(ctx, actorOf(owner), project.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	_, err = svc.Get(ctx, actorOf(owner), project.ID)
	assertStatus(t, err, 404)
	var offers int64
	db.Model(&models.ProjectOffer{}).Where("project_id = ?", project.ID).Count(&offers)
	if offers != 0 {
		t.Errorf("offers left after delete = %d", offers)
	}
}

// beforeFirstUpdate runs fn inside the pending statement's connection the first
// time an UPDATE on table is about to execute.
func beforeFirstUpdate(t *testing.T, db *gorm.DB, table string, fn func(tx *gorm.DB)) {
	t.Helper()
	fired := false
	err := db.Callback().Update().Before("gorm:update").Register("test:before_"+table, func(stmt *gorm.DB) {
		if fired || stmt.Statement.Table != table {
			return
		}
		fired = true
		fn(stmt.Session(&gorm.Session{NewDB: true}))
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
}

func TestProjectService_AcceptOfferWithdrawnMidway(t *testing.T) {
	db := newTestDB(t)
	svc := NewProjectService(db, nil, nil)
	ctx := context.Background()
	owner := createProfile(t, db, models.RoleBasic)
	freelancer := createProfile(t, db, models.RoleFree)

	project, _ := svc.Create(ctx, actorOf(owner), &CreateProjectRequest{Title: "CRM sync"})
	offer, _ := svc.CreateOffer(ctx, actorOf(freelancer), project.ID, &CreateOfferRequest{Amount: 120})

	beforeFirstUpdate(t, db, "project_offers", func(tx *gorm.DB) {
		tx.Exec("UPDATE project_offers SET status = ? WHERE id = ?", models.OfferStatusWithdrawn, offer.ID)
	})

	_, err := svc.AcceptOffer(ctx, actorOf(owner), project.ID, offer.ID)
	assertStatus(t, err, 409)

	var stored models.Project
	db.First(&stored, project.ID)
	if stored.Status != models.ProjectStatusOpen || stored.AcceptedOfferID != nil {
		t.Errorf("project after failed accept = status %q, accepted %v", stored.Status, stored.AcceptedOfferID)
	}
	var storedOffer models.ProjectOffer
	db.First(&storedOffer, offer.ID)
	if storedOffer.Status != models.OfferStatusWithdrawn {
		t.Errorf("offer status = %q, want withdrawn", storedOffer.Status)
	}
}

func TestProjectService_AcceptOfferRollsBackWhenProjectClosed(t *testing.T) {
	db := newTestDB(t)
	svc := NewProjectService(db, nil, nil)
	ctx := context.Background()
	owner := createProfile(t, db, models.RoleBasic)
	freelancer := createProfile(t, db, models.RoleFree)

	project, _ := svc.Create(ctx, actorOf(owner), &CreateProjectRequest{Title: "Invoice bot"})
	offer, _ := svc.CreateOffer(ctx, actorOf(freelancer), project.ID, &CreateOfferRequest{Amount: 80})

	beforeFirstUpdate(t, db, "projects", func(tx *gorm.DB) {
		tx.Exec("UPDATE projects SET status = ? WHERE id = ?", models.ProjectStatusCancelled, project.ID)
	})

	_, err := svc.AcceptOffer(ctx, actorOf(owner), project.ID, offer.ID)
	assertStatus(t, err, 409)

	var storedOffer models.ProjectOffer
	db.First(&storedOffer, offer.ID)
	if storedOffer.Status != models.OfferStatusPending {
		t.Errorf("offer status = %q, want pending after rollback", storedOffer.Status)
	}
}

func TestProjectService_OfferEventsUseProjectsResource(t *testing.T) {
	db := newTestDB(t)
	hub := NewSSEHub()
	svc := NewProjectService(db, nil, hub)
	ctx := context.Background()
	owner := createProfile(t, db, models.RoleBasic)
	freelancer := createProfile(t, db, models.RoleFree)

	project, _ := svc.Create(ctx, actorOf(owner), &CreateProjectRequest{Title: "Airtable cleanup"})

	events := hub.Subscribe("watcher", 0, TopicInvalidate)
	defer hub.Unsubscribe("watcher")

	offer, _ := svc.CreateOffer(ctx, actorOf(freelancer), project.ID, &CreateOfferRequest{Amount: 60})
	if _, err := svc.WithdrawOffer(ctx, actorOf(freelancer), project.ID, offer.ID); err != nil {
		t.Fatalf("WithdrawOffer() error = %v", err)
	}

	for _, step := range []string{"offer", "withdraw"} {
		select {
		case ev := <-events:
			inv, ok := ev.Data.(Invalidation)
			if !ok || inv.Resource != "projects" || inv.ID != project.ID {
				t.Errorf("%s invalidation = %+v", step, ev.Data)
			}
		default:
			t.Errorf("expected a projects invalidation after %s", step)
		}
	}
}
