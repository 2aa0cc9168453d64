package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ZeremItay/autohub/internal/models"
	"github.com/ZeremItay/autohub/internal/utils"
	"github.com/ZeremItay/autohub/pkg/response"
	"gorm.io/gorm"
)

var postLikes = reaction{
	itemColumn:    "post_id",
	counterTable:  "forum_posts",
	counterColumn: "likes_count",
	newRow: func(itemID, profileID uint) interface{} {
		return &models.ForumPostLike{PostID: itemID, ProfileID: profileID}
	},
}

type ForumService struct {
	db    *gorm.DB
	queue TaskQueue
	hub   *SSEHub
}

func NewForumService(db *gorm.DB, queue TaskQueue, hub *SSEHub) *ForumService {
	return &ForumService{db: db, queue: queue, hub: hub}
}

// ListForums returns every forum with its number of threads.
func (s *ForumService) ListForums(ctx context.Context) ([]models.Forum, error) {
	var forums []models.Forum
	if err := s.db.WithContext(ctx).Order("position ASC, id ASC").Find(&forums).Error; err != nil {
		return nil, err
	}

	type forumCount struct {
		ForumID uint
		Count   int64
	}
	var counts []forumCount
	if err := s.db.WithContext(ctx).Model(&models.ForumPost{}).
		Select("forum_id, COUNT(*) AS count").
		Where("parent_id IS NULL").
		Group("forum_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	byForum := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byForum[c.ForumID] = c.Count
	}
	for i := range forums {
		forums[i].PostsCount = byForum[forums[i].ID]
	}
	return forums, nil
}

func (s *ForumService) getForum(ctx context.Context, id uint) (*models.Forum, error) {
	var forum models.Forum
	if err := s.db.WithContext(ctx).First(&forum, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("forum not found")
		}
		return nil, err
	}
	return &forum, nil
}

type PostListRequest struct {
	Pagination
	Search string `form:"search"`
}

// ListPosts returns the threads of a forum, pinned first, then newest first.
func (s *ForumService) ListPosts(ctx context.Context, actor Actor, forumID uint, req *PostListRequest) (*PageResult[models.ForumPost], error) {
	if _, err := s.getForum(ctx, forumID); err != nil {
		return nil, err
	}
	req.normalize(20)

	query := s.db.WithContext(ctx).Model(&models.ForumPost{}).Where("forum_id = ? AND parent_id IS NULL", forumID)
	if req.Search != "" {
		like := "%" + strings.ToLower(req.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(content) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var posts []models.ForumPost
	if err := query.Preload("Author", selectPublicProfile).
		Order("is_pinned DESC, created_at DESC, id DESC").
		Offset(req.offset()).Limit(req.PageSize).
		Find(&posts).Error; err != nil {
		return nil, err
	}
	if err := s.markLiked(ctx, actor, posts); err != nil {
		return nil, err
	}
	return newPageResult(req.Pagination, total, posts), nil
}

func (s *ForumService) markLiked(ctx context.Context, actor Actor, posts []models.ForumPost) error {
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	liked, err := reactedIDs(s.db.WithContext(ctx), &models.ForumPostLike{}, "post_id", actor.ID, ids)
	if err != nil {
		return err
	}
	for i := range posts {
		posts[i].Liked = liked[posts[i].ID]
	}
	return nil
}

// GetPost returns a post with its replies, oldest first.
func (s *ForumService) GetPost(ctx context.Context, actor Actor, id uint) (*models.ForumPost, error) {
	var post models.ForumPost
	if err := s.db.WithContext(ctx).Preload("Author", selectPublicProfile).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("post not found")
		}
		return nil, err
	}

	replies := []models.ForumPost{}
	if post.ParentID == nil {
		if err := s.db.WithContext(ctx).Preload("Author", selectPublicProfile).
			Where("parent_id = ?", post.ID).
			Order("created_at ASC, id ASC").
			Find(&replies).Error; err != nil {
			return nil, err
		}
	}

	all := append([]models.ForumPost{post}, replies...)
	if err := s.markLiked(ctx, actor, all); err != nil {
		return nil, err
	}
	post = all[0]
	post.Replies = all[1:]
	return &post, nil
}

type CreatePostRequest struct {
	ForumID  uint   `json:"forum_id" binding:"required"`
	Title    string `json:"title" binding:"max=250"`
	Content  string `json:"content" binding:"required,max=50000"`
	ParentID *uint  `json:"parent_id"`
}

// CreatePost starts a thread or replies to one.
func (s *ForumService) CreatePost(ctx context.Context, actor Actor, req *CreatePostRequest) (*models.ForumPost, error) {
	forum, err := s.getForum(ctx, req.ForumID)
	if err != nil {
		return nil, err
	}
	if forum.IsLocked && !actor.IsAdmin() {
		return nil, response.NewForbidden("this forum is locked")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, response.NewBadRequest("content is required")
	}

	post := &models.ForumPost{
		ForumID:  req.ForumID,
		AuthorID: actor.ID,
		Title:    strings.TrimSpace(req.Title),
		Content:  req.Content,
	}

	var parent models.ForumPost
	if req.ParentID != nil {
		if err := s.db.WithContext(ctx).First(&parent, *req.ParentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, response.NewNotFound("post not found")
			}
			return nil, err
		}
		if parent.ParentID != nil || parent.ForumID != req.ForumID {
			return nil, response.NewBadRequest("replies must target a thread in the same forum")
		}
		if parent.IsLocked && !actor.IsAdmin() {
			return nil, response.NewForbidden("this thread is locked")
		}
		post.ParentID = &parent.ID
		post.Title = ""
	} else if post.Title == "" {
		return nil, response.NewBadRequest("title is required")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		if post.ParentID != nil {
			return tx.Model(&models.ForumPost{}).Where("id = ?", *post.ParentID).
				UpdateColumn("replies_count", gorm.Expr("replies_count + 1")).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCreate(actor, forum, post, &parent)

	var created models.ForumPost
	if err := s.db.WithContext(ctx).Preload("Author", selectPublicProfile).First(&created, post.ID).Error; err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *ForumService) afterCreate(actor Actor, forum *models.Forum, post, parent *models.ForumPost) {
	if post.ParentID == nil {
		enqueue(s.queue, TaskTypePointsAward, PointsAwardTask{
			ProfileID: actor.ID, Action: models.ActionForumPost, ReferenceType: "forum_post", ReferenceID: post.ID,
		})
		enqueue(s.queue, TaskTypeActivity, ActivityTask{
			ActorID:    actor.ID,
			Verb:       models.VerbPosted,
			ObjectType: "forum_post",
			ObjectID:   post.ID,
			Summary:    fmt.Sprintf("started %q in %s", post.Title, forum.Name),
			Metadata:   map[string]interface{}{"forum_id": forum.ID},
		})
		publishInvalidation(s.hub, "forum_posts", forum.ID)
		return
	}

	enqueue(s.queue, TaskTypePointsAward, PointsAwardTask{
		ProfileID: actor.ID, Action: models.ActionForumReply, ReferenceType: "forum_post", ReferenceID: post.ID,
	})
	enqueue(s.queue, TaskTypeActivity, ActivityTask{
		ActorID:    actor.ID,
		Verb:       models.VerbReplied,
		ObjectType: "forum_post",
		ObjectID:   parent.ID,
		Summary:    fmt.Sprintf("replied to %q", parent.Title),
		Metadata:   map[string]interface{}{"forum_id": forum.ID, "reply_id": post.ID},
	})
	if parent.AuthorID != actor.ID {
		enqueue(s.queue, TaskTypeNotification, NotificationTask{
			ProfileID:     parent.AuthorID,
			Type:          models.NotificationForumReply,
			Title:         "New reply to " + parent.Title,
			Body:          excerpt(post.Content, 200),
			Link:          fmt.Sprintf("/forums/posts/%d", parent.ID),
			Data:          map[string]interface{}{"post_id": parent.ID, "reply_id": post.ID},
			EmailCategory: models.EmailForumReplies,
		})
	}
	publishInvalidation(s.hub, "forum_post", parent.ID)
}

// excerpt shortens text to at most n runes.
func excerpt(text string, n int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}

type UpdatePostRequest struct {
	Title   *string `json:"title" binding:"omitempty,max=250"`
	Content *string `json:"content" binding:"omitempty,max=50000"`
}

func (s *ForumService) UpdatePost(ctx context.Context, actor Actor, id uint, req *UpdatePostRequest) (*models.ForumPost, error) {
	var post models.ForumPost
	if err := s.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("post not found")
		}
		return nil, err
	}
	if err := requireOwner(actor, &post); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Title != nil && post.ParentID == nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, response.NewBadRequest("title is required")
		}
		updates["title"] = title
	}
	if req.Content != nil {
		if strings.TrimSpace(*req.Content) == "" {
			return nil, response.NewBadRequest("content is required")
		}
		updates["content"] = *req.Content
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&post).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetPost(ctx, actor, id)
}

// DeletePost removes a reply, or a thread together with its replies.
func (s *ForumService) DeletePost(ctx context.Context, actor Actor, id uint) error {
	var post models.ForumPost
	if err := s.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NewNotFound("post not found")
		}
		return err
	}
	if err := requireOwner(actor, &post); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&post).Error; err != nil {
			return err
		}
		if post.ParentID != nil {
			return tx.Model(&models.ForumPost{}).Where("id = ? AND replies_count > 0", *post.ParentID).
				UpdateColumn("replies_count", gorm.Expr("replies_count - 1")).Error
		}
		return tx.Where("parent_id = ?", post.ID).Delete(&models.ForumPost{}).Error
	})
	if err != nil {
		return err
	}
	publishInvalidation(s.hub, "forum_posts", post.ForumID)
	return nil
}

type LikeResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

// SetLike toggles the caller's like, or forces it when want is set.
func (s *ForumService) SetLike(ctx context.Context, actor Actor, postID uint, want *bool) (*LikeResult, error) {
	var result LikeResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ForumPost{}).Where("id = ?", postID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return response.NewNotFound("post not found")
		}
		liked, likes, err := postLikes.set(tx, postID, actor.ID, want)
		result = LikeResult{Liked: liked, LikesCount: likes}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

type ForumRequest struct {
	Name        string `json:"name" binding:"required,max=120"`
	Description string `json:"description" binding:"max=1000"`
	Icon        string `json:"icon" binding:"max=50"`
	Position    int    `json:"position"`
	IsLocked    bool   `json:"is_locked"`
}

func (s *ForumService) CreateForum(ctx context.Context, req *ForumRequest) (*models.Forum, error) {
	slug := utils.Slugify(req.Name)
	if slug == "" {
		return nil, response.NewBadRequest("name must contain letters or digits")
	}
	var count int64
	s.db.WithContext(ctx).Unscoped().Model(&models.Forum{}).Where("slug = ?", slug).Count(&count)
	if count > 0 {
		return nil, response.NewConflict("a forum with this name already exists")
	}

	forum := &models.Forum{
		Name:        req.Name,
		Slug:        slug,
		Description: req.Description,
		Icon:        req.Icon,
		Position:    req.Position,
		IsLocked:    req.IsLocked,
	}
	if err := s.db.WithContext(ctx).Create(forum).Error; err != nil {
		return nil, err
	}
	return forum, nil
}

func (s *ForumService) UpdateForum(ctx context.Context, id uint, req *ForumRequest) (*models.Forum, error) {
	forum, err := s.getForum(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"name":        req.Name,
		"description": req.Description,
		"icon":        req.Icon,
		"position":    req.Position,
		"is_locked":   req.IsLocked,
	}
	if err := s.db.WithContext(ctx).Model(forum).Updates(updates).Error; err != nil {
		return nil, err
	}
	return forum, nil
}

func (s *ForumService) DeleteForum(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Forum{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return response.NewNotFound("forum not found")
		}
		return tx.Where("forum_id = ?", id).Delete(&models.ForumPost{}).Error
	})
}

type ModeratePostRequest struct {
	IsPinned *bool `json:"is_pinned"`
	IsLocked *bool `json:"is_locked"`
}

func (s *ForumService) ModeratePost(ctx context.Context, id uint, req *ModeratePostRequest) (*models.ForumPost, error) {
	var post models.ForumPost
	if err := s.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("post not found")
		}
		return nil, err
	}
	updates := make(map[string]interface{})
	if req.IsPinned != nil {
		updates["is_pinned"] = *req.IsPinned
	}
	if req.IsLocked != nil {
		updates["is_locked"] = *req.IsLocked
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&post).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	publishInvalidation(s.hub, "forum_posts", post.ForumID)
	return &post, nil
}
