package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZeremItay/autohub/internal/models"
	"github.com/ZeremItay/autohub/pkg/logger"
	"github.com/ZeremItay/autohub/pkg/response"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubscriptionService struct {
	db    *gorm.DB
	queue TaskQueue
	now   func() time.Time
}

func NewSubscriptionService(db *gorm.DB, queue TaskQueue) *SubscriptionService {
	return &SubscriptionService{db: db, queue: queue, now: time.Now}
}

// Plans lists the public membership tiers, cheapest first.
func (s *SubscriptionService) Plans(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	err := s.db.WithContext(ctx).Where("is_public = ?", true).Order(clause.OrderByColumn{Column: clause.Column{Name: "rank"}}).Find(&roles).Error
	return roles, err
}

type SubscriptionView struct {
	Subscription *models.Subscription `json:"subscription"`
	Plan         *models.Role         `json:"plan"`
}

// Current returns the caller's subscription with its plan; both are nil for members who never paid.
func (s *SubscriptionService) Current(ctx context.Context, profileID uint) (*SubscriptionView, error) {
	view := &SubscriptionView{}
	var sub models.Subscription
	err := s.db.WithContext(ctx).Where("profile_id = ?", profileID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return view, nil
	}
	if err != nil {
		return nil, err
	}
	view.Subscription = &sub

	var role models.Role
	if err := s.db.WithContext(ctx).Where("name = ?", sub.Role).First(&role).Error; err == nil {
		view.Plan = &role
	}
	return view, nil
}

type CheckoutRequest struct {
	Role string `json:"role" binding:"required"`
}

// Checkout opens a pending payment for a paid plan. The payment is confirmed
// later by an admin or by the provider webhook.
func (s *SubscriptionService) Checkout(ctx context.Context, actor Actor, req *CheckoutRequest) (*models.Payment, error) {
	if actor.IsAdmin() {
		return nil, response.NewBadRequest("administrators do not need a subscription")
	}
	var role models.Role
	if err := s.db.WithContext(ctx).Where("name = ? AND is_public = ?", req.Role, true).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewBadRequest("unknown plan")
		}
		return nil, err
	}
	if role.PriceMonthly <= 0 {
		return nil, response.NewBadRequest("this plan is free")
	}

	payment := &models.Payment{
		ProfileID:   actor.ID,
		Role:        role.Name,
		Amount:      role.PriceMonthly,
		Currency:    role.Currency,
		Status:      models.PaymentPending,
		Provider:    "manual",
		ProviderRef: uuid.NewString(),
	}
	if err := s.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, err
	}
	return payment, nil
}

// Confirm marks a payment as paid and activates or extends the subscription by
// one month. Confirming an already succeeded payment returns it unchanged.
func (s *SubscriptionService) Confirm(ctx context.Context, paymentID uint) (*models.Payment, error) {
	var payment models.Payment
	var sub models.Subscription
	var applied bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&payment, paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("payment not found")
			}
			return err
		}
		if payment.Status == models.PaymentSucceeded {
			return nil
		}
		if payment.Status != models.PaymentPending {
			return response.NewBadRequest("payment is " + payment.Status)
		}

		now := s.now()
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentPending).
			Updates(map[string]interface{}{"status": models.PaymentSucceeded, "paid_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return tx.First(&payment, paymentID).Error
		}

		err := tx.Where("profile_id = ?", payment.ProfileID).First(&sub).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			sub = models.Subscription{
				ProfileID:          payment.ProfileID,
				Role:               payment.Role,
				Status:             models.SubscriptionActive,
				CurrentPeriodStart: now,
				CurrentPeriodEnd:   now.AddDate(0, 1, 0),
			}
			if err := tx.Create(&sub).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			start := now
			// Renewing the same plan early stacks the new month on the remaining period.
			if sub.Status == models.SubscriptionActive && sub.Role == payment.Role && sub.CurrentPeriodEnd.After(now) {
				start = sub.CurrentPeriodEnd
			}
			sub.Role = payment.Role
			sub.Status = models.SubscriptionActive
			sub.CurrentPeriodStart = start
			sub.CurrentPeriodEnd = start.AddDate(0, 1, 0)
			sub.CancelAtPeriodEnd = false
			if err := tx.Model(&sub).Select("role", "status", "current_period_start", "current_period_end", "cancel_at_period_end").
				Updates(&sub).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&models.Payment{}).Where("id = ?", payment.ID).
			Update("subscription_id", sub.ID).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Profile{}).
			Where("id = ? AND role <> ?", payment.ProfileID, models.RoleAdmin).
			Update("role", payment.Role).Error; err != nil {
			return err
		}
		applied = true
		return tx.First(&payment, paymentID).Error
	})
	if err != nil {
		return nil, err
	}

	if applied {
		enqueue(s.queue, TaskTypeNotification, NotificationTask{
			ProfileID: payment.ProfileID,
			Type:      models.NotificationSubscription,
			Title:     "Your membership is active",
			Body:      fmt.Sprintf("Your %s plan runs until %s.", payment.Role, sub.CurrentPeriodEnd.Format("Jan 2, 2006")),
			Link:      "/subscription",
			Data:      map[string]interface{}{"payment_id": payment.ID, "role": payment.Role},
		})
	}
	return &payment, nil
}

// Cancel stops renewal; the plan stays active until the period ends.
func (s *SubscriptionService) Cancel(ctx context.Context, profileID uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.WithContext(ctx).Where("profile_id = ? AND status = ?", profileID, models.SubscriptionActive).
		First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("no active subscription")
		}
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&sub).Update("cancel_at_period_end", true).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *SubscriptionService) Payments(ctx context.Context, profileID uint, page *Pagination) (*PageResult[models.Payment], error) {
	page.normalize(20)
	query := s.db.WithContext(ctx).Model(&models.Payment{}).Where("profile_id = ?", profileID)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}
	var items []models.Payment
	if err := query.Order("created_at DESC, id DESC").
		Offset(page.offset()).Limit(page.PageSize).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return newPageResult(*page, total, items), nil
}

// ExpireDue ends subscriptions whose period is over and drops those members
// back to the free role. It returns how many subscriptions expired.
func (s *SubscriptionService) ExpireDue(ctx context.Context) (int, error) {
	now := s.now()
	var due []models.Subscription
	if err := s.db.WithContext(ctx).
		Where("status = ? AND current_period_end < ?", models.SubscriptionActive, now).
		Find(&due).Error; err != nil {
		return 0, err
	}

	expired := 0
	for _, sub := range due {
		var changed bool
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.Subscription{}).
				Where("id = ? AND status = ? AND current_period_end < ?", sub.ID, models.SubscriptionActive, now).
				Update("status", models.SubscriptionExpired)
			if res.Error != nil || res.RowsAffected == 0 {
				return res.Error
			}
			changed = true
			return tx.Model(&models.Profile{}).
				Where("id = ? AND role = ?", sub.ProfileID, sub.Role).
				Update("role", models.RoleFree).Error
		})
		if err != nil {
			logger.Error().Err(err).Uint("subscription_id", sub.ID).Msg("failed to expire subscription")
			continue
		}
		if !changed {
			continue
		}
		expired++
		enqueue(s.queue, TaskTypeNotification, NotificationTask{
			ProfileID: sub.ProfileID,
			Type:      models.NotificationSubscription,
			Title:     "Your membership has ended",
			Body:      fmt.Sprintf("Your %s plan expired. Renew any time to keep your access.", sub.Role),
			Link:      "/subscription",
		})
	}
	return expired, nil
}
