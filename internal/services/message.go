package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ZeremItay/autohub/internal/models"
	"github.com/ZeremItay/autohub/pkg/response"
	"gorm.io/gorm"
)

type MessageService struct {
	db    *gorm.DB
	queue TaskQueue
	hub   *SSEHub
}

func NewMessageService(db *gorm.DB, queue TaskQueue, hub *SSEHub) *MessageService {
	return &MessageService{db: db, queue: queue, hub: hub}
}

// Conversation summarizes the thread between the caller and one partner.
type Conversation struct {
	Partner     *models.Profile `json:"partner"`
	LastMessage models.Message  `json:"last_message"`
	UnreadCount int64           `json:"unread_count"`
}

// Conversations returns one entry per partner, newest conversation first.
func (s *MessageService) Conversations(ctx context.Context, profileID uint) ([]Conversation, error) {
	db := s.db.WithContext(ctx)

	type lastRow struct {
		PartnerID uint
		LastID    uint
	}
	var rows []lastRow
	if err := db.Model(&models.Message{}).
		Select("CASE WHEN sender_id = ? THEN recipient_id ELSE sender_id END AS partner_id, MAX(id) AS last_id", profileID).
		Where("sender_id = ? OR recipient_id = ?", profileID, profileID).
		Group("partner_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []Conversation{}, nil
	}

	lastIDs := make([]uint, len(rows))
	partnerIDs := make([]uint, len(rows))
	for i, r := range rows {
		lastIDs[i] = r.LastID
		partnerIDs[i] = r.PartnerID
	}

	var last []models.Message
	if err := db.Where("id IN ?", lastIDs).Find(&last).Error; err != nil {
		return nil, err
	}
	var partners []models.Profile
	if err := selectPublicProfile(db).Where("id IN ?", partnerIDs).Find(&partners).Error; err != nil {
		return nil, err
	}
	unread, err := s.unreadBySender(db, profileID)
	if err != nil {
		return nil, err
	}

	partnerByID := make(map[uint]*models.Profile, len(partners))
	for i := range partners {
		partnerByID[partners[i].ID] = &partners[i]
	}
	out := make([]Conversation, 0, len(last))
	for _, m := range last {
		partnerID := m.SenderID
		if partnerID == profileID {
			partnerID = m.RecipientID
		}
		out = append(out, Conversation{
			Partner:     partnerByID[partnerID],
			LastMessage: m,
			UnreadCount: unread[partnerID],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessage.ID > out[j].LastMessage.ID })
	return out, nil
}

func (s *MessageService) unreadBySender(db *gorm.DB, profileID uint) (map[uint]int64, error) {
	type row struct {
		SenderID uint
		Count    int64
	}
	var rows []row
	if err := db.Model(&models.Message{}).
		Select("sender_id, COUNT(*) AS count").
		Where("recipient_id = ? AND read_at IS NULL", profileID).
		Group("sender_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]int64, len(rows))
	for _, r := range rows {
		out[r.SenderID] = r.Count
	}
	return out, nil
}

type ThreadRequest struct {
	Pagination
	PartnerID uint `form:"partner_id" binding:"required"`
}

// Thread pages through the messages with one partner. Pages go back in time,
// messages inside a page are oldest first. Messages from the partner are marked read.
func (s *MessageService) Thread(ctx context.Context, profileID uint, req *ThreadRequest) (*PageResult[models.Message], error) {
	req.normalize(50)
	db := s.db.WithContext(ctx)
	query := db.Model(&models.Message{}).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
			profileID, req.PartnerID, req.PartnerID, profileID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}
	var items []models.Message
	if err := query.Preload("Sender", selectPublicProfile).
		Order("id DESC").
		Offset(req.offset()).Limit(req.PageSize).
		Find(&items).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	if err := db.Model(&models.Message{}).
		Where("sender_id = ? AND recipient_id = ? AND read_at IS NULL", req.PartnerID, profileID).
		Update("read_at", time.Now()).Error; err != nil {
		return nil, err
	}
	return newPageResult(req.Pagination, total, items), nil
}

type SendMessageRequest struct {
	RecipientID uint   `json:"recipient_id" binding:"required"`
	Content     string `json:"content" binding:"required,max=10000"`
}

// Send delivers a direct message and pushes it to the recipient's stream.
func (s *MessageService) Send(ctx context.Context, actor Actor, req *SendMessageRequest) (*models.Message, error) {
	if req.RecipientID == actor.ID {
		return nil, response.NewBadRequest("you cannot message yourself")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, response.NewBadRequest("content is required")
	}

	var recipient models.Profile
	if err := s.db.WithContext(ctx).Select("id", "is_active").First(&recipient, req.RecipientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("recipient not found")
		}
		return nil, err
	}
	if !recipient.IsActive {
		return nil, response.NewBadRequest("recipient is not active")
	}

	msg := &models.Message{SenderID: actor.ID, RecipientID: recipient.ID, Content: req.Content}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, err
	}
	var sent models.Message
	if err := s.db.WithContext(ctx).Preload("Sender", selectPublicProfile).First(&sent, msg.ID).Error; err != nil {
		return nil, err
	}

	publish(s.hub, Event{Topic: TopicMessage, ProfileID: recipient.ID, Data: &sent})
	name := "A member"
	if sent.Sender != nil {
		name = sent.Sender.Name()
	}
	enqueue(s.queue, TaskTypeNotification, NotificationTask{
		ProfileID:     recipient.ID,
		Type:          models.NotificationMessage,
		Title:         "New message from " + name,
		Body:          excerpt(sent.Content, 200),
		Link:          fmt.Sprintf("/messages?partner_id=%d", actor.ID),
		Data:          map[string]interface{}{"message_id": sent.ID, "sender_id": actor.ID},
		EmailCategory: models.EmailMessages,
	})
	return &sent, nil
}

func (s *MessageService) UnreadCount(ctx context.Context, profileID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("recipient_id = ? AND read_at IS NULL", profileID).
		Count(&count).Error
	return count, err
}
