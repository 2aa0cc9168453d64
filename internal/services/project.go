package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZeremItay/autohub/internal/models"
	"github.com/ZeremItay/autohub/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProjectService struct {
	db    *gorm.DB
	queue TaskQueue
	hub   *SSEHub
}

func NewProjectService(db *gorm.DB, queue TaskQueue, hub *SSEHub) *ProjectService {
	return &ProjectService{db: db, queue: queue, hub: hub}
}

type ProjectListRequest struct {
	Pagination
	Status    string   `form:"status" binding:"omitempty,oneof=open in_progress completed cancelled"`
	Tag       string   `form:"tag"`
	Search    string   `form:"search"`
	OwnerID   uint     `form:"owner_id"`
	MinBudget *float64 `form:"min_budget"`
	MaxBudget *float64 `form:"max_budget"`
}

func (s *ProjectService) List(ctx context.Context, req *ProjectListRequest) (*PageResult[models.Project], error) {
	req.normalize(20)
	db := s.db.WithContext(ctx)
	query := db.Model(&models.Project{})

	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.OwnerID != 0 {
		query = query.Where("owner_id = ?", req.OwnerID)
	}
	if req.Search != "" {
		like := "%" + strings.ToLower(req.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	if req.Tag != "" {
		query = query.Where("id IN (?)", taggedIDs(db, "project_tags", "project_id", req.Tag))
	}
	// A project matches a budget range when the two ranges overlap.
	if req.MinBudget != nil {
		query = query.Where("budget_max >= ? OR budget_max = 0", *req.MinBudget)
	}
	if req.MaxBudget != nil {
		query = query.Where("budget_min <= ?", *req.MaxBudget)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var items []models.Project
	if err := query.Preload("Owner", selectPublicProfile).Preload("Tags").
		Order("created_at DESC, id DESC").
		Offset(req.offset()).Limit(req.PageSize).
		Find(&items).Error; err != nil {
		return nil, err
	}

	ids := make([]uint, len(items))
	for i, p := range items {
		ids[i] = p.ID
	}
	counts, err := countByColumn(db, &models.ProjectOffer{}, "project_id", ids)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].OffersCount = counts[items[i].ID]
	}
	return newPageResult(req.Pagination, total, items), nil
}

// countByColumn counts rows of model grouped by column, restricted to ids.
func countByColumn(db *gorm.DB, model interface{}, column string, ids []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	type row struct {
		ID    uint
		Count int64
	}
	var rows []row
	if err := db.Model(model).
		Select(column+" AS id, COUNT(*) AS count").
		Where(column+" IN ?", ids).
		Group(column).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ID] = r.Count
	}
	return out, nil
}

func (s *ProjectService) getProject(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("project not found")
		}
		return nil, err
	}
	return &project, nil
}

// Get returns a project with its owner and tags. The owner and admins see every
// offer, other members only their own.
func (s *ProjectService) Get(ctx context.Context, actor Actor, id uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).Preload("Owner", selectPublicProfile).Preload("Tags").
		First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("project not found")
		}
		return nil, err
	}

	offers := s.db.WithContext(ctx).Preload("Profile", selectPublicProfile).
		Where("project_id = ?", project.ID).
		Order("created_at ASC, id ASC")
	if !CanModify(actor, &project) {
		offers = offers.Where("profile_id = ?", actor.ID)
	}
	project.Offers = []models.ProjectOffer{}
	if err := offers.Find(&project.Offers).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.ProjectOffer{}).
		Where("project_id = ?", project.ID).Count(&project.OffersCount).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

type CreateProjectRequest struct {
	Title       string     `json:"title" binding:"required,max=200"`
	Description string     `json:"description" binding:"max=20000"`
	BudgetMin   float64    `json:"budget_min" binding:"min=0"`
	BudgetMax   float64    `json:"budget_max" binding:"min=0"`
	Currency    string     `json:"currency" binding:"omitempty,len=3"`
	Deadline    *time.Time `json:"deadline"`
	TagIDs      []uint     `json:"tag_ids"`
}

func validateBudget(min, max float64) error {
	if max > 0 && min > max {
		return response.NewBadRequest("budget_min must not exceed budget_max")
	}
	return nil
}

func (s *ProjectService) Create(ctx context.Context, actor Actor, req *CreateProjectRequest) (*models.Project, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, response.NewBadRequest("title is required")
	}
	if err := validateBudget(req.BudgetMin, req.BudgetMax); err != nil {
		return nil, err
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = "USD"
	}

	project := &models.Project{
		OwnerID:     actor.ID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		BudgetMin:   req.BudgetMin,
		BudgetMax:   req.BudgetMax,
		Currency:    currency,
		Deadline:    req.Deadline,
		Status:      models.ProjectStatusOpen,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := loadTags(tx, req.TagIDs)
		if err != nil {
			return err
		}
		if err := tx.Omit("Tags").Create(project).Error; err != nil {
			return err
		}
		if len(tags) > 0 {
			return tx.Model(project).Association("Tags").Append(tags)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	enqueue(s.queue, TaskTypePointsAward, PointsAwardTask{
		ProfileID: actor.ID, Action: models.ActionProjectPublished, ReferenceType: "project", ReferenceID: project.ID,
	})
	enqueue(s.queue, TaskTypeActivity, ActivityTask{
		ActorID:    actor.ID,
		Verb:       models.VerbPublishedProject,
		ObjectType: "project",
		ObjectID:   project.ID,
		Summary:    fmt.Sprintf("published the project %q", project.Title),
	})
	publishInvalidation(s.hub, "projects", project.ID)

	return s.Get(ctx, actor, project.ID)
}

type UpdateProjectRequest struct {
	Title       *string    `json:"title" binding:"omitempty,max=200"`
	Description *string    `json:"description" binding:"omitempty,max=20000"`
	BudgetMin   *float64   `json:"budget_min" binding:"omitempty,min=0"`
	BudgetMax   *float64   `json:"budget_max" binding:"omitempty,min=0"`
	Deadline    *time.Time `json:"deadline"`
	Status      *string    `json:"status" binding:"omitempty,oneof=open in_progress completed cancelled"`
	TagIDs      *[]uint    `json:"tag_ids"`
}

func (s *ProjectService) Update(ctx context.Context, actor Actor, id uint, req *UpdateProjectRequest) (*models.Project, error) {
	project, err := s.getProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, project); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, response.NewBadRequest("title is required")
		}
		updates["title"] = title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	budgetMin, budgetMax := project.BudgetMin, project.BudgetMax
	if req.BudgetMin != nil {
		budgetMin = *req.BudgetMin
		updates["budget_min"] = budgetMin
	}
	if req.BudgetMax != nil {
		budgetMax = *req.BudgetMax
		updates["budget_max"] = budgetMax
	}
	if err := validateBudget(budgetMin, budgetMax); err != nil {
		return nil, err
	}
	if req.Deadline != nil {
		updates["deadline"] = *req.Deadline
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(project).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.TagIDs != nil {
			tags, err := loadTags(tx, *req.TagIDs)
			if err != nil {
				return err
			}
			return tx.Model(project).Association("Tags").Replace(tags)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	publishInvalidation(s.hub, "projects", project.ID)
	return s.Get(ctx, actor, id)
}

func (s *ProjectService) Delete(ctx context.Context, actor Actor, id uint) error {
	project, err := s.getProject(ctx, id)
	if err != nil {
		return err
	}
	if err := requireOwner(actor, project); err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(project).Association("Tags").Clear(); err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.ProjectOffer{}).Error; err != nil {
			return err
		}
		return tx.Delete(project).Error
	})
	if err != nil {
		return err
	}
	publishInvalidation(s.hub, "projects", project.ID)
	return nil
}

type CreateOfferRequest struct {
	Amount       float64 `json:"amount" binding:"required,gt=0"`
	Message      string  `json:"message" binding:"max=5000"`
	DeliveryDays int     `json:"delivery_days" binding:"min=0,max=3650"`
}

// CreateOffer sends the caller's offer on an open project. One offer per member per project.
func (s *ProjectService) CreateOffer(ctx context.Context, actor Actor, projectID uint, req *CreateOfferRequest) (*models.ProjectOffer, error) {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID == actor.ID {
		return nil, response.NewBadRequest("you cannot send an offer on your own project")
	}
	if project.Status != models.ProjectStatusOpen {
		return nil, response.NewBadRequest("project is not open for offers")
	}
	if req.Amount <= 0 {
		return nil, response.NewBadRequest("amount must be positive")
	}

	offer := &models.ProjectOffer{
		ProjectID:    project.ID,
		ProfileID:    actor.ID,
		Amount:       req.Amount,
		Message:      req.Message,
		DeliveryDays: req.DeliveryDays,
		Status:       models.OfferStatusPending,
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(offer)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, response.NewConflict("you already sent an offer on this project")
	}

	enqueue(s.queue, TaskTypeNotification, NotificationTask{
		ProfileID:     project.OwnerID,
		Type:          models.NotificationProjectOffer,
		Title:         "New offer on " + project.Title,
		Body:          fmt.Sprintf("%.2f %s, %d days", offer.Amount, project.Currency, offer.DeliveryDays),
		Link:          fmt.Sprintf("/projects/%d", project.ID),
		Data:          map[string]interface{}{"project_id": project.ID, "offer_id": offer.ID},
		EmailCategory: models.EmailProjectOffers,
	})
	publishInvalidation(s.hub, "projects", project.ID)

	var created models.ProjectOffer
	if err := s.db.WithContext(ctx).Preload("Profile", selectPublicProfile).First(&created, offer.ID).Error; err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *ProjectService) getOffer(ctx context.Context, projectID, offerID uint) (*models.ProjectOffer, error) {
	var offer models.ProjectOffer
	if err := s.db.WithContext(ctx).Where("id = ? AND project_id = ?", offerID, projectID).First(&offer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("offer not found")
		}
		return nil, err
	}
	return &offer, nil
}

// AcceptOffer hands the project to one offer and rejects the other pending ones.
func (s *ProjectService) AcceptOffer(ctx context.Context, actor Actor, projectID, offerID uint) (*models.Project, error) {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != actor.ID {
		return nil, response.NewForbidden("only the project owner can accept offers")
	}
	offer, err := s.getOffer(ctx, projectID, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Status != models.OfferStatusPending {
		return nil, response.NewBadRequest("offer is not pending")
	}

	// Both conditional updates must hit their row, or the whole accept rolls back.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ProjectOffer{}).
			Where("id = ? AND project_id = ? AND status = ?", offer.ID, project.ID, models.OfferStatusPending).
			Update("status", models.OfferStatusAccepted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return response.NewConflict("offer is no longer pending")
		}
		res = tx.Model(&models.Project{}).
			Where("id = ? AND status = ?", project.ID, models.ProjectStatusOpen).
			Updates(map[string]interface{}{"status": models.ProjectStatusInProgress, "accepted_offer_id": offer.ID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return response.NewConflict("project is no longer open")
		}
		return tx.Model(&models.ProjectOffer{}).
			Where("project_id = ? AND id <> ? AND status = ?", project.ID, offer.ID, models.OfferStatusPending).
			Update("status", models.OfferStatusRejected).Error
	})
	if err != nil {
		return nil, err
	}

	enqueue(s.queue, TaskTypeNotification, NotificationTask{
		ProfileID:     offer.ProfileID,
		Type:          models.NotificationOfferAccepted,
		Title:         "Your offer was accepted",
		Body:          "Your offer on " + project.Title + " was accepted.",
		Link:          fmt.Sprintf("/projects/%d", project.ID),
		Data:          map[string]interface{}{"project_id": project.ID, "offer_id": offer.ID},
		EmailCategory: models.EmailProjectOffers,
	})
	publishInvalidation(s.hub, "projects", project.ID)
	return s.Get(ctx, actor, project.ID)
}

// WithdrawOffer lets the offer author pull a pending offer.
func (s *ProjectService) WithdrawOffer(ctx context.Context, actor Actor, projectID, offerID uint) (*models.ProjectOffer, error) {
	offer, err := s.getOffer(ctx, projectID, offerID)
	if err != nil {
		return nil, err
	}
	if offer.ProfileID != actor.ID {
		return nil, response.NewForbidden("only the offer author can withdraw it")
	}
	res := s.db.WithContext(ctx).Model(offer).
		Where("status = ?", models.OfferStatusPending).
		Update("status", models.OfferStatusWithdrawn)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, response.NewBadRequest("only pending offers can be withdrawn")
	}
	publishInvalidation(s.hub, "projects", projectID)
	return offer, nil
}
