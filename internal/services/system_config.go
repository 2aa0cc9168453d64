package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ZeremItay/autohub/internal/models"
	"github.com/ZeremItay/autohub/pkg/response"
	"gorm.io/gorm"
)

const secretMask = "********"

type SystemConfigService struct {
	db *gorm.DB
}

func NewSystemConfigService(db *gorm.DB) *SystemConfigService {
	return &SystemConfigService{db: db}
}

func (s *SystemConfigService) Get(key string) (string, error) {
	var cfg models.SystemConfig
	if err := s.db.Where(&models.SystemConfig{Key: key}).First(&cfg).Error; err != nil {
		return "", err
	}
	return cfg.Value, nil
}

func (s *SystemConfigService) GetWithDefault(key, defaultValue string) string {
	value, err := s.Get(key)
	if err != nil {
		return defaultValue
	}
	return value
}

func (s *SystemConfigService) GetBool(key string, defaultValue bool) bool {
	value, err := s.Get(key)
	if err != nil {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func (s *SystemConfigService) GetInt(key string, defaultValue int) int {
	value, err := s.Get(key)
	if err != nil {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// GetList reads a comma separated setting.
func (s *SystemConfigService) GetList(key string) []string {
	return splitAndTrim(s.GetWithDefault(key, ""), ",")
}

func (s *SystemConfigService) Set(key, value string) error {
	var cfg models.SystemConfig
	err := s.db.Where(&models.SystemConfig{Key: key}).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cfg = models.SystemConfig{
			Key:   key,
			Value: value,
			Type:  "string",
			Group: "general",
		}
		return s.db.Create(&cfg).Error
	}
	if err != nil {
		return err
	}
	return s.db.Model(&cfg).Update("value", value).Error
}

// GetByGroup returns one settings group with secret values masked.
func (s *SystemConfigService) GetByGroup(group string) ([]models.SystemConfig, error) {
	var configs []models.SystemConfig
	if err := s.db.Where(&models.SystemConfig{Group: group}).Order("id").Find(&configs).Error; err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, response.NewNotFound(fmt.Sprintf("settings group %q not found", group))
	}
	for i := range configs {
		if configs[i].IsSecret && configs[i].Value != "" {
			configs[i].Value = secretMask
		}
	}
	return configs, nil
}

// ListGrouped returns every setting keyed by group with secret values masked.
func (s *SystemConfigService) ListGrouped() (map[string][]models.SystemConfig, error) {
	var configs []models.SystemConfig
	if err := s.db.Order("id").Find(&configs).Error; err != nil {
		return nil, err
	}

	grouped := make(map[string][]models.SystemConfig)
	for _, cfg := range configs {
		if cfg.IsSecret && cfg.Value != "" {
			cfg.Value = secretMask
		}
		grouped[cfg.Group] = append(grouped[cfg.Group], cfg)
	}
	return grouped, nil
}

type UpdateSettingsRequest struct {
	Settings map[string]string `json:"settings" binding:"required"`
}

// UpdateSettings validates values against each setting's declared type and
// saves them in one transaction. Unknown keys are rejected; a masked secret
// is left unchanged.
func (s *SystemConfigService) UpdateSettings(req *UpdateSettingsRequest) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for key, value := range req.Settings {
			var cfg models.SystemConfig
			if err := tx.Where(&models.SystemConfig{Key: key}).First(&cfg).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return response.NewBadRequest(fmt.Sprintf("unknown setting %q", key))
				}
				return err
			}
			if cfg.IsSecret && value == secretMask {
				continue
			}
			if err := validateSettingValue(cfg.Type, value); err != nil {
				return response.NewBadRequest(fmt.Sprintf("setting %q: %v", key, err))
			}
			if err := tx.Model(&cfg).Update("value", value).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func validateSettingValue(settingType, value string) error {
	switch settingType {
	case "bool":
		if _, err := strconv.ParseBool(value); err != nil {
			return errors.New("expected true or false")
		}
	case "int":
		if _, err := strconv.Atoi(value); err != nil {
			return errors.New("expected an integer")
		}
	}
	return nil
}

// splitAndTrim splits s by sep, trims each part and drops empty ones.
func splitAndTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var result []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
