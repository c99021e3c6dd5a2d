package certificates

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, cert *Certificate) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (*Certificate, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Certificate, error)
	Update(ctx context.Context, cert *Certificate) error
	Delete(ctx context.Context, id, userID uuid.UUID) (bool, error)
	MarkExpired(ctx context.Context, now time.Time) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, cert *Certificate) error {
	return r.db.WithContext(ctx).Create(cert).Error
}

func (r *gormRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*Certificate, error) {
	var cert Certificate
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&cert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func (r *gormRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Certificate, error) {
	var certs []Certificate
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at, id").
		Find(&certs).Error
	return certs, err
}

func (r *gormRepository) Update(ctx context.Context, cert *Certificate) error {
	return r.db.WithContext(ctx).Save(cert).Error
}

func (r *gormRepository) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&Certificate{})
	return res.RowsAffected > 0, res.Error
}

func (r *gormRepository) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&Certificate{}).
		Where("is_expired = false AND not_after < ?", now).
		Update("is_expired", true)
	return res.RowsAffected, res.Error
}
