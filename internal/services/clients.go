package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/diewo77/billing-core/internal/models"
	"github.com/diewo77/billing-core/internal/validation"
	"gorm.io/gorm"
)

type ClientService struct {
	db *gorm.DB
}

func NewClientService(db *gorm.DB) *ClientService { return &ClientService{db: db} }

type ClientInput struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"omitempty,email,max=255"`
	Phone   string `json:"phone" validate:"max=20"`
	Address string `json:"address"`
}

func (in ClientInput) validate() validation.Violations {
	v := validation.Violations{}
	validation.Struct(in, v)
	validation.Required("name", in.Name, v)
	return v
}

func (s *ClientService) CreateClient(ctx context.Context, ownerID uint, in ClientInput) (*models.Client, error) {
	if v := in.validate(); !v.Empty() {
		return nil, invalid(v)
	}
	c := models.Client{
		UserID:  ownerID,
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Phone:   strings.TrimSpace(in.Phone),
		Address: in.Address,
	}
	if err := s.db.WithContext(ctx).Omit("Bills").Create(&c).Error; err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return &c, nil
}

func (s *ClientService) UpdateClient(ctx context.Context, ownerID, id uint, in ClientInput) (*models.Client, error) {
	if v := in.validate(); !v.Empty() {
		return nil, invalid(v)
	}
	c, err := s.GetClient(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Model(c).Updates(map[string]any{
		"name":    strings.TrimSpace(in.Name),
		"email":   strings.TrimSpace(in.Email),
		"phone":   strings.TrimSpace(in.Phone),
		"address": in.Address,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("update client %d: %w", id, err)
	}
	return s.GetClient(ctx, ownerID, id)
}

func (s *ClientService) GetClient(ctx context.Context, ownerID, id uint) (*models.Client, error) {
	var c models.Client
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).First(&c).Error; err != nil {
		return nil, notFound(err, "client", id)
	}
	return &c, nil
}

// ListClients returns the owner's clients, newest first.
func (s *ClientService) ListClients(ctx context.Context, ownerID uint) ([]models.Client, error) {
	var clients []models.Client
	if err := s.db.WithContext(ctx).Where("user_id = ?", ownerID).Order("created_at DESC, id DESC").Find(&clients).Error; err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clients, nil
}

// DeleteClient removes a client, its bills and their items in one transaction.
func (s *ClientService) DeleteClient(ctx context.Context, ownerID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Client
		if err := tx.Select("id").Where("id = ? AND user_id = ?", id, ownerID).First(&c).Error; err != nil {
			return notFound(err, "client", id)
		}
		var billIDs []uint
		if err := tx.Model(&models.Bill{}).Where("client_id = ?", c.ID).Pluck("id", &billIDs).Error; err != nil {
			return fmt.Errorf("find bills of client %d: %w", c.ID, err)
		}
		if err := deleteBills(tx, billIDs); err != nil {
			return err
		}
		if err := tx.Delete(&models.Client{}, c.ID).Error; err != nil {
			return fmt.Errorf("delete client %d: %w", c.ID, err)
		}
		return nil
	})
}
