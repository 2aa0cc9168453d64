package models

import (
	"fmt"
	"time"

	"github.com/ZeremItay/autohub/internal/config"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB(cfg *config.DatabaseConfig, logLevel string) error {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormLevel := logger.Warn
	if logLevel == "debug" {
		gormLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(gormLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// SQLite allows one writer; a single connection avoids "database is locked".
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	DB = db
	return nil
}

func GetDB() *gorm.DB {
	return DB
}

// AutoMigrate migrates the global connection.
func AutoMigrate() error {
	return Migrate(DB)
}

// Migrate creates or updates every table the application owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Profile{},
		&RefreshToken{},
		&Tag{},
		&Course{},
		&CourseSection{},
		&CourseLesson{},
		&CourseEnrollment{},
		&LessonCompletion{},
		&Forum{},
		&ForumPost{},
		&ForumPostLike{},
		&Project{},
		&ProjectOffer{},
		&Message{},
		&Recording{},
		&Resource{},
		&ResourceLike{},
		&ResourceSave{},
		&Role{},
		&Subscription{},
		&Payment{},
		&PointsRule{},
		&PointsTransaction{},
		&Notification{},
		&EmailPreference{},
		&Activity{},
		&SystemConfig{},
		&SystemLog{},
		&SchedulerLock{},
	)
}

// SeedDefaultData seeds the global connection.
func SeedDefaultData() error {
	return Seed(DB)
}

// Seed creates default roles, points rules, forums and settings if they do not exist.
func Seed(db *gorm.DB) error {
	defaultRoles := []Role{
		{Name: RoleFree, DisplayName: "Free", Description: "Forums, free courses and the resource library", Rank: 0,
			Features: datatypes.JSON(`["forums","free_courses","resources","messages"]`), IsPublic: true},
		{Name: RoleBasic, DisplayName: "Basic", Description: "Everything in Free plus the project marketplace", PriceMonthly: 9, Rank: 1,
			Features: datatypes.JSON(`["forums","free_courses","resources","messages","projects"]`), IsPublic: true},
		{Name: RolePremium, DisplayName: "Premium", Description: "All courses, recordings and premium resources", PriceMonthly: 29, Rank: 2,
			Features: datatypes.JSON(`["forums","all_courses","resources","premium_resources","messages","projects","recordings"]`), IsPublic: true},
		{Name: RoleAdmin, DisplayName: "Administrator", Rank: 100, Features: datatypes.JSON(`["all"]`), IsPublic: false},
	}
	for _, role := range defaultRoles {
		if err := db.Where(Role{Name: role.Name}).FirstOrCreate(&role).Error; err != nil {
			return err
		}
	}

	defaultRules := []PointsRule{
		{Action: ActionSignup, Points: 10, Description: "Joined the community", IsActive: true},
		{Action: ActionForumPost, Points: 5, Description: "Started a discussion", IsActive: true},
		{Action: ActionForumReply, Points: 2, Description: "Replied to a discussion", IsActive: true},
		{Action: ActionLessonCompleted, Points: 3, Description: "Completed a lesson", IsActive: true},
		{Action: ActionCourseCompleted, Points: 25, Description: "Completed a course", IsActive: true},
		{Action: ActionProjectPublished, Points: 5, Description: "Published a project", IsActive: true},
		{Action: ActionResourceShared, Points: 10, Description: "Shared a resource", IsActive: true},
	}
	for _, rule := range defaultRules {
		if err := db.Where(PointsRule{Action: rule.Action}).FirstOrCreate(&rule).Error; err != nil {
			return err
		}
	}

	var forumCount int64
	db.Model(&Forum{}).Count(&forumCount)
	if forumCount == 0 {
		defaultForums := []Forum{
			{Name: "General", Slug: "general", Description: "Anything about automation and the community", Position: 1},
			{Name: "Introductions", Slug: "introductions", Description: "Say hello and tell us what you build", Position: 2},
			{Name: "Help & Questions", Slug: "help", Description: "Stuck on something? Ask here", Position: 3},
			{Name: "Showcase", Slug: "showcase", Description: "Show off your workflows and projects", Position: 4},
		}
		if err := db.Create(&defaultForums).Error; err != nil {
			return err
		}
	}

	defaultConfigs := []SystemConfig{
		{Key: "site_name", Value: "AutoHub", Type: "string", Group: "general", Label: "Site Name"},
		{Key: "site_url", Value: "http://localhost:3000", Type: "string", Group: "general", Label: "Public Site URL"},
		{Key: "registration_open", Value: "true", Type: "bool", Group: "community", Label: "Allow New Sign Ups"},
		{Key: "signup_allowed_domains", Value: "", Type: "string", Group: "community", Label: "Allowed Sign Up Email Domains (comma separated, empty for any)"},
		{Key: "points_enabled", Value: "true", Type: "bool", Group: "community", Label: "Award Points For Activity"},
		{Key: "email_enabled", Value: "false", Type: "bool", Group: "email", Label: "Enable SMTP Email"},
		{Key: "email_host", Value: "", Type: "string", Group: "email", Label: "SMTP Host"},
		{Key: "email_port", Value: "587", Type: "int", Group: "email", Label: "SMTP Port"},
		{Key: "email_username", Value: "", Type: "string", Group: "email", Label: "SMTP Username"},
		{Key: "email_password", Value: "", Type: "string", Group: "email", Label: "SMTP Password", IsSecret: true},
		{Key: "email_from", Value: "", Type: "string", Group: "email", Label: "From Address"},
		{Key: "email_use_tls", Value: "false", Type: "bool", Group: "email", Label: "Use Implicit TLS"},
		{Key: "log_retention_days", Value: "30", Type: "int", Group: "system", Label: "System Log Retention Days"},
	}
	for _, cfg := range defaultConfigs {
		var count int64
		db.Model(&SystemConfig{}).Where(&SystemConfig{Key: cfg.Key}).Count(&count)
		if count == 0 {
			if err := db.Create(&cfg).Error; err != nil {
				return err
			}
		}
	}

	return nil
}
