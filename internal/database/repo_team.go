package database

import (
	"gorm.io/gorm"
)

type TeamRepo struct {
	db *gorm.DB
}

func NewTeamRepo() *TeamRepo {
	return &TeamRepo{db: DB}
}

// CreateWithOwner creates the team and, when an owner is given, enrols them with the owner role.
func (r *TeamRepo) CreateWithOwner(team *Team, ownerRole string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(team).Error; err != nil {
			return err
		}
		if team.OwnerUserID == nil {
			return nil
		}
		return tx.Create(&TeamMember{TeamID: team.ID, UserID: *team.OwnerUserID, Role: ownerRole}).Error
	})
}

func (r *TeamRepo) Get(id uint) (*Team, error) {
	var team Team
	if err := r.db.First(&team, id).Error; err != nil {
		return nil, err
	}
	return &team, nil
}

// List returns teams newest first.
func (r *TeamRepo) List() ([]Team, error) {
	var teams []Team
	err := r.db.Order("created_at desc, id desc").Find(&teams).Error
	return teams, err
}

// Delete removes the team's members first, then the team.
func (r *TeamRepo) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("team_id = ?", id).Delete(&TeamMember{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&Team{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// TeamMemberView is a member row joined with the user's name.
type TeamMemberView struct {
	TeamMember
	Username string `json:"username"`
}

func (r *TeamRepo) Members(teamID uint) ([]TeamMemberView, error) {
	var rows []TeamMemberView
	err := r.db.Table("team_members").
		Select("team_members.*, users.username").
		Joins("LEFT JOIN users ON users.id = team_members.user_id").
		Where("team_members.team_id = ?", teamID).
		Order("team_members.joined_at asc, team_members.id asc").
		Scan(&rows).Error
	return rows, err
}

func (r *TeamRepo) AddMember(m *TeamMember) error {
	return r.db.Create(m).Error
}

func (r *TeamRepo) RemoveMember(teamID, userID uint) error {
	res := r.db.Where("team_id = ? AND user_id = ?", teamID, userID).Delete(&TeamMember{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *TeamRepo) UpdateMemberRole(teamID, userID uint, role string) error {
	res := r.db.Model(&TeamMember{}).Where("team_id = ? AND user_id = ?", teamID, userID).Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
