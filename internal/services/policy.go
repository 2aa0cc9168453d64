package services

import (
	"github.com/ZeremItay/autohub/internal/models"
	"github.com/ZeremItay/autohub/pkg/response"
	"gorm.io/gorm"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   uint
	Role string
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

func (a Actor) HasPremium() bool {
	return models.HasPremiumAccess(a.Role)
}

// Ownable is implemented by rows that belong to a single member.
type Ownable interface {
	OwnedBy() uint
}

// CanModify reports whether the actor owns the row or is an admin.
func CanModify(actor Actor, row Ownable) bool {
	return actor.IsAdmin() || (actor.ID != 0 && row.OwnedBy() == actor.ID)
}

func requireOwner(actor Actor, row Ownable) error {
	if !CanModify(actor, row) {
		return response.NewForbidden("you can only modify your own content")
	}
	return nil
}

func requirePremium(actor Actor, isPremium bool) error {
	if isPremium && !actor.HasPremium() {
		return response.NewForbidden("premium membership required")
	}
	return nil
}

// publicProfileColumns is what other members may see of a profile.
var publicProfileColumns = []string{"id", "full_name", "display_name", "avatar_url", "headline", "role", "points"}

// selectPublicProfile is used with Preload to join author and owner profiles.
func selectPublicProfile(db *gorm.DB) *gorm.DB {
	return db.Select(publicProfileColumns)
}
