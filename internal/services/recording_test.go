package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ZeremItay/autohub/internal/models"
)

func TestRecordingService_AccessAndViews(t *testing.T) {
	db := newTestDB(t)
	svc := NewRecordingService(db, newTestUploader(t))
	ctx := context.Background()
	admin := createProfile(t, db, models.RoleAdmin)
	free := createProfile(t, db, models.RoleFree)
	premium := createProfile(t, db, models.RolePremium)
	topic := createTag(t, NewTagService(db), "Webhooks")

	_, err := svc.Create(ctx, actorOf(admin), &RecordingRequest{Title: "No video"}, nil)
	assertStatus(t, err, 400)

	older := time.Now().Add(-48 * time.Hour)
	open, err := svc.Create(ctx, actorOf(admin), &RecordingRequest{
		Title: "Community call", VideoURL: "https://videos.example.com/call.mp4", RecordedAt: &older, TagIDs: []uint{topic.ID},
	}, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	locked, err := svc.Create(ctx, actorOf(admin), &RecordingRequest{Title: "Masterclass", IsPremium: true}, &VideoUpload{
		FileName: "class.mp4", Size: 4, ContentType: "video/mp4", Body: strings.NewReader("mp4!"),
	})
	if err != nil {
		t.Fatalf("Create() with upload error = %v", err)
	}
	if !strings.HasPrefix(locked.VideoURL, "/files/recordings/") {
		t.Errorf("uploaded video url = %q", locked.VideoURL)
	}

	_, err = svc.Create(ctx, actorOf(admin), &RecordingRequest{Title: "Bad"}, &VideoUpload{
		FileName: "script.exe", Size: 4, ContentType: "application/octet-stream", Body: strings.NewReader("MZ.."),
	})
	assertStatus(t, err, 400)

	page, err := svc.List(ctx, actorOf(free), &RecordingListRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 || page.Items[0].ID != locked.ID {
		t.Fatalf("List() = %+v", page.Items)
	}
	if page.Items[0].VideoURL != "" || page.Items[1].VideoURL == "" {
		t.Error("premium video url must be hidden from free members only")
	}
	byTag, _ := svc.List(ctx, actorOf(free), &RecordingListRequest{Tag: "webhooks"})
	if byTag.Total != 1 || byTag.Items[0].ID != open.ID {
		t.Errorf("List(tag) = %+v", byTag.Items)
	}

	_, err = svc.Get(ctx, actorOf(free), locked.ID)
	assertStatus(t, err, 403)
	for i := 0; i < 2; i++ {
		if _, err := svc.Get(ctx, actorOf(premium), locked.ID); err != nil {
			t.Fatalf("premium Get() error = %v", err)
		}
	}
	var views int
	db.Model(&models.Recording{}).Select("views").Where("id = ?", locked.ID).Scan(&views)
	if views != 2 {
		t.Errorf("views = %d, want 2", views)
	}

	updated, err := svc.Update(ctx, open.ID, &RecordingRequest{Title: "Community call #1", TagIDs: []uint{}})
	if err != nil || updated.Title != "Community call #1" || len(updated.Tags) != 0 || updated.VideoURL == "" {
		t.Errorf("Update() = %+v, %v", updated, err)
	}
	if err := svc.Delete(ctx, open.ID); err != nil {
		t.Fatal(err)
	}
	_, err = svc.Get(ctx, actorOf(admin), open.ID)
	assertStatus(t, err, 404)
}
