package services

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// reaction is a (item, profile) join row, such as a like or a save, whose
// count is kept denormalized on the item.
type reaction struct {
	itemColumn    string
	counterTable  string
	counterColumn string
	newRow        func(itemID, profileID uint) interface{}
}

// set turns the reaction on or off. With want nil it flips the current state.
// It runs inside tx and returns the resulting state and the stored count.
func (r reaction) set(tx *gorm.DB, itemID, profileID uint, want *bool) (bool, int, error) {
	model := r.newRow(0, 0)
	where := r.itemColumn + " = ? AND profile_id = ?"

	var existing int64
	if err := tx.Model(model).Where(where, itemID, profileID).Count(&existing).Error; err != nil {
		return false, 0, err
	}

	active := existing > 0
	target := !active
	if want != nil {
		target = *want
	}

	switch {
	case target && !active:
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(r.newRow(itemID, profileID))
		if res.Error != nil {
			return false, 0, res.Error
		}
		if res.RowsAffected > 0 {
			if err := tx.Table(r.counterTable).Where("id = ?", itemID).
				UpdateColumn(r.counterColumn, gorm.Expr(r.counterColumn+" + 1")).Error; err != nil {
				return false, 0, err
			}
		}
	case !target && active:
		res := tx.Where(where, itemID, profileID).Delete(model)
		if res.Error != nil {
			return false, 0, res.Error
		}
		if res.RowsAffected > 0 {
			if err := tx.Table(r.counterTable).Where("id = ? AND "+r.counterColumn+" > 0", itemID).
				UpdateColumn(r.counterColumn, gorm.Expr(r.counterColumn+" - 1")).Error; err != nil {
				return false, 0, err
			}
		}
	}

	var count int
	if err := tx.Table(r.counterTable).Select(r.counterColumn).Where("id = ?", itemID).Row().Scan(&count); err != nil {
		return false, 0, err
	}
	return target, count, nil
}

// reactedIDs returns which of itemIDs the profile has a row for.
func reactedIDs(db *gorm.DB, model interface{}, itemColumn string, profileID uint, itemIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool)
	if profileID == 0 || len(itemIDs) == 0 {
		return out, nil
	}
	var ids []uint
	if err := db.Model(model).Where("profile_id = ? AND "+itemColumn+" IN ?", profileID, itemIDs).
		Pluck(itemColumn, &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
