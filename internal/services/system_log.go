package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ZeremItay/autohub/internal/models"
	"github.com/ZeremItay/autohub/pkg/logger"
	"gorm.io/gorm"
)

const defaultLogRetentionDays = 30

var globalDB *gorm.DB

func InitSystemLogger(db *gorm.DB) {
	globalDB = db
}

func LogInfo(module, action, message string, profileID *uint, ip, userAgent string, extra interface{}) {
	writeLog("info", module, action, message, profileID, ip, userAgent, extra)
}

func LogWarning(module, action, message string, profileID *uint, ip, userAgent string, extra interface{}) {
	writeLog("warning", module, action, message, profileID, ip, userAgent, extra)
}

func LogError(module, action, message string, profileID *uint, ip, userAgent string, extra interface{}) {
	writeLog("error", module, action, message, profileID, ip, userAgent, extra)
}

func writeLog(level, module, action, message string, profileID *uint, ip, userAgent string, extra interface{}) {
	if globalDB == nil {
		return
	}

	var extraStr string
	if extra != nil {
		if b, err := json.Marshal(extra); err == nil {
			extraStr = string(b)
		}
	}

	entry := &models.SystemLog{
		Level:     level,
		Module:    module,
		Action:    action,
		Message:   message,
		ProfileID: profileID,
		IP:        ip,
		UserAgent: truncate(userAgent, 500),
		Extra:     extraStr,
		CreatedAt: time.Now(),
	}
	if err := globalDB.Create(entry).Error; err != nil {
		logger.Warn().Err(err).Str("module", module).Str("action", action).Msg("failed to write system log")
	}
}

type SystemLogService struct {
	db        *gorm.DB
	configSvc *SystemConfigService
}

func NewSystemLogService(db *gorm.DB, configSvc *SystemConfigService) *SystemLogService {
	return &SystemLogService{db: db, configSvc: configSvc}
}

type SystemLogListRequest struct {
	Pagination
	Level     string `form:"level"`
	Module    string `form:"module"`
	Action    string `form:"action"`
	ProfileID uint   `form:"profile_id"`
	StartDate string `form:"start_date"` // 2006-01-02
	EndDate   string `form:"end_date"`
	Search    string `form:"search"`
}

func (s *SystemLogService) List(ctx context.Context, req *SystemLogListRequest) (*PageResult[models.SystemLog], error) {
	req.normalize(20)
	query := s.db.WithContext(ctx).Model(&models.SystemLog{})

	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.Action != "" {
		query = query.Where("action LIKE ?", "%"+req.Action+"%")
	}
	if req.ProfileID != 0 {
		query = query.Where("profile_id = ?", req.ProfileID)
	}
	if start, err := time.Parse("2006-01-02", req.StartDate); err == nil {
		query = query.Where("created_at >= ?", start)
	}
	if end, err := time.Parse("2006-01-02", req.EndDate); err == nil {
		query = query.Where("created_at < ?", end.AddDate(0, 0, 1))
	}
	if req.Search != "" {
		query = query.Where("LOWER(message) LIKE ?", "%"+strings.ToLower(req.Search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}
	var logs []models.SystemLog
	if err := query.Order("created_at DESC, id DESC").
		Offset(req.offset()).Limit(req.PageSize).
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return newPageResult(req.Pagination, total, logs), nil
}

func (s *SystemLogService) GetModules(ctx context.Context) ([]string, error) {
	var modules []string
	if err := s.db.WithContext(ctx).Model(&models.SystemLog{}).
		Distinct("module").Order("module").Pluck("module", &modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

// CleanupOldLogs deletes logs older than retentionDays and returns how many were removed.
func (s *SystemLogService) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// GetRetentionDays reads log_retention_days; zero or less disables cleanup.
func (s *SystemLogService) GetRetentionDays() int {
	if s.configSvc == nil {
		return defaultLogRetentionDays
	}
	return s.configSvc.GetInt("log_retention_days", defaultLogRetentionDays)
}

// RunCleanup applies the configured retention.
func (s *SystemLogService) RunCleanup(ctx context.Context) {
	days := s.GetRetentionDays()
	if days <= 0 {
		logger.Debug().Msg("system log cleanup disabled")
		return
	}
	deleted, err := s.CleanupOldLogs(ctx, days)
	if err != nil {
		logger.Error().Err(err).Msg("failed to clean up system logs")
		return
	}
	if deleted > 0 {
		logger.Info().Int64("deleted", deleted).Int("retention_days", days).Msg("cleaned up old system logs")
	}
}
