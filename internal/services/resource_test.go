package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ZeremItay/autohub/internal/models"
	"gorm.io/gorm"
)

func TestResourceService_CreateAndList(t *testing.T) {
	db := newTestDB(t)
	q := &recordingQueue{}
	uploader := newTestUploader(t)
	svc := NewResourceService(db, q, nil, uploader, nil)
	ctx := context.Background()
	free := createProfile(t, db, models.RoleFree)
	author := createProfile(t, db, models.RolePremium)
	guide := createTag(t, NewTagService(db), "Guides")

	_, err := svc.Create(ctx, actorOf(free), &CreateResourceRequest{Title: "x", ExternalURL: "https://example.com"})
	assertStatus(t, err, 403)
	_, err = svc.Create(ctx, actorOf(author), &CreateResourceRequest{Title: "Empty"})
	assertStatus(t, err, 400)

	file, err := svc.Upload(ctx, "checklist.pdf", 3, "application/pdf", strings.NewReader("pdf"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	doc, err := svc.Create(ctx, actorOf(author), &CreateResourceRequest{
		Title: "Launch checklist", FileURL: file.URL, FileName: file.FileName, FileSize: file.FileSize,
		MimeType: file.MimeType, TagIDs: []uint{guide.ID},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if doc.Type != models.ResourceTypeFile || len(doc.Tags) != 1 {
		t.Errorf("Create() = %+v", doc)
	}
	var key string
	db.Model(&models.Resource{}).Select("file_key").Where("id = ?", doc.ID).Scan(&key)
	if key != file.Key {
		t.Errorf("file_key = %q, want %q", key, file.Key)
	}

	link, err := svc.Create(ctx, actorOf(author), &CreateResourceRequest{Title: "Docs", ExternalURL: "https://docs.example.com", PointsCost: 5})
	if err != nil {
		t.Fatal(err)
	}
	if link.Type != models.ResourceTypeLink {
		t.Errorf("type = %q, want link", link.Type)
	}

	awards := q.awards(t)
	if len(awards) != 2 || awards[0].Action != models.ActionResourceShared {
		t.Errorf("awards = %+v", awards)
	}

	page, err := svc.List(ctx, actorOf(free), &ResourceListRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 || page.Items[0].ID != link.ID {
		t.Fatalf("List() = %+v", page.Items)
	}
	if page.Items[0].ExternalURL != "" {
		t.Error("paid resource url must be withheld from other members")
	}
	if page.Items[1].FileURL == "" {
		t.Error("free resource url should be visible")
	}

	byTag, _ := svc.List(ctx, actorOf(free), &ResourceListRequest{Tag: "guides"})
	if byTag.Total != 1 {
		t.Errorf("List(tag) total = %d, want 1", byTag.Total)
	}
	byType, _ := svc.List(ctx, actorOf(free), &ResourceListRequest{Type: models.ResourceTypeLink})
	if byType.Total != 1 {
		t.Errorf("List(type) total = %d, want 1", byType.Total)
	}

	if err := svc.Delete(ctx, actorOf(free), doc.ID); err == nil {
		t.Fatal("non-author delete should fail")
	}
	if err := svc.Delete(ctx, actorOf(author), doc.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}

func TestResourceService_DownloadCharging(t *testing.T) {
	db := newTestDB(t)
	svc := NewResourceService(db, nil, nil, nil, nil)
	ctx := context.Background()
	author := createProfile(t, db, models.RolePremium)
	buyer := createProfile(t, db, models.RoleFree)
	poor := createProfile(t, db, models.RoleFree)
	db.Model(buyer).Update("points", 12)
	db.Model(poor).Update("points", 3)

	paid, _ := svc.Create(ctx, actorOf(author), &CreateResourceRequest{Title: "Templates", ExternalURL: "https://example.com/t.zip", PointsCost: 5})
	premium, _ := svc.Create(ctx, actorOf(author), &CreateResourceRequest{Title: "Playbook", ExternalURL: "https://example.com/p", IsPremium: true})

	_, err := svc.Download(ctx, actorOf(poor), paid.ID)
	assertStatus(t, err, 409)

	first, err := svc.Download(ctx, actorOf(buyer), paid.ID)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if first.PointsCharged != 5 || first.URL != "https://example.com/t.zip" || first.Downloads != 1 {
		t.Errorf("first download = %+v", first)
	}
	second, err := svc.Download(ctx, actorOf(buyer), paid.ID)
	if err != nil {
		t.Fatal(err)
	}
	if second.PointsCharged != 0 || second.Downloads != 2 {
		t.Errorf("second download = %+v", second)
	}
	var points int
	db.Model(&models.Profile{}).Select("points").Where("id = ?", buyer.ID).Scan(&points)
	if points != 7 {
		t.Errorf("buyer points = %d, want 7", points)
	}
	db.Model(&models.Profile{}).Select("points").Where("id = ?", poor.ID).Scan(&points)
	if points != 3 {
		t.Errorf("poor points = %d, want 3", points)
	}

	own, err := svc.Download(ctx, actorOf(author), paid.ID)
	if err != nil || own.PointsCharged != 0 {
		t.Errorf("author download = %+v, %v", own, err)
	}

	_, err = svc.Download(ctx, actorOf(buyer), premium.ID)
	assertStatus(t, err, 403)
}

func TestResourceService_LikeAndSave(t *testing.T) {
	db := newTestDB(t)
	svc := NewResourceService(db, nil, nil, nil, nil)
	ctx := context.Background()
	author := createProfile(t, db, models.RolePremium)
	reader := createProfile(t, db, models.RoleFree)
	res, _ := svc.Create(ctx, actorOf(author), &CreateResourceRequest{Title: "Cheatsheet", ExternalURL: "https://example.com/c"})

	liked, err := svc.SetLike(ctx, actorOf(reader), res.ID, nil)
	if err != nil || !liked.Active || liked.Count != 1 {
		t.Fatalf("SetLike() = %+v, %v", liked, err)
	}
	on := true
	saved, _ := svc.SetSave(ctx, actorOf(reader), res.ID, &on)
	saved, _ = svc.SetSave(ctx, actorOf(reader), res.ID, &on)
	if !saved.Active || saved.Count != 1 {
		t.Errorf("SetSave() = %+v", saved)
	}

	mine, _ := svc.List(ctx, actorOf(reader), &ResourceListRequest{Saved: true})
	if mine.Total != 1 || !mine.Items[0].Saved || !mine.Items[0].Liked {
		t.Errorf("saved list = %+v", mine.Items)
	}
	others, _ := svc.List(ctx, actorOf(author), &ResourceListRequest{Saved: true})
	if others.Total != 0 {
		t.Errorf("author saved list total = %d, want 0", others.Total)
	}

	liked, _ = svc.SetLike(ctx, actorOf(reader), res.ID, nil)
	if liked.Active || liked.Count != 0 {
		t.Errorf("unlike = %+v", liked)
	}
	_, err = svc.SetSave(ctx, actorOf(reader), 9999, nil)
	assertStatus(t, err, 404)
}

func TestResourceService_DownloadChargedOnceUnderRace(t *testing.T) {
	db := newTestDB(t)
	svc := NewResourceService(db, nil, nil, nil, nil)
	ctx := context.Background()
	author := createProfile(t, db, models.RolePremium)
	buyer := createProfile(t, db, models.RoleFree)
	db.Model(buyer).Update("points", 20)

	paid, _ := svc.Create(ctx, actorOf(author), &CreateResourceRequest{Title: "Scenarios", ExternalURL: "https://example.com/s.zip", PointsCost: 5})
	key := awardKey(buyer.ID, models.ActionResourceDownload, "resource", paid.ID)

	// Another first download commits its ledger row (and its charge) right
	// before this one inserts.
	fired := false
	err := db.Callback().Create().Before("gorm:create").Register("test:concurrent_charge", func(stmt *gorm.DB) {
		if fired || stmt.Statement.Table != "points_transactions" {
			return
		}
		fired = true
		tx := stmt.Session(&gorm.Session{NewDB: true})
		tx.Exec("INSERT INTO points_transactions (profile_id, action, points, reference_type, reference_id, award_key, description, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			buyer.ID, models.ActionResourceDownload, -5, "resource", paid.ID, key, "Downloaded Scenarios", time.Now())
		tx.Exec("UPDATE profiles SET points = points - 5 WHERE id = ?", buyer.ID)
	})
	if err != nil {
		t.Fatal(err)
	}

	result, err := svc.Download(ctx, actorOf(buyer), paid.ID)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if result.PointsCharged != 0 || result.Downloads != 1 {
		t.Errorf("download = %+v, want uncharged", result)
	}
	var points int
	db.Model(&models.Profile{}).Select("points").Where("id = ?", buyer.ID).Scan(&points)
	if points != 15 {
		t.Errorf("buyer points = %d, want 15", points)
	}
	var entries int64
	db.Model(&models.PointsTransaction{}).Where("award_key = ?", key).Count(&entries)
	if entries != 1 {
		t.Errorf("ledger entries = %d, want 1", entries)
	}
}
