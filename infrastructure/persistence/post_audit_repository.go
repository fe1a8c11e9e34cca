package persistence

import (
	"context"

	"crosspost/domain/model"

	"gorm.io/gorm"
)

// PostAuditRepository appends post status changes to the audit store.
type PostAuditRepository struct{ db *gorm.DB }

func NewPostAuditRepository(db *gorm.DB) *PostAuditRepository {
	return &PostAuditRepository{db: db}
}

// Migrate creates the post_audits table.
func (r *PostAuditRepository) Migrate() error {
	return r.db.AutoMigrate(&model.PostAudit{})
}

func (r *PostAuditRepository) Append(ctx context.Context, a *model.PostAudit) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *PostAuditRepository) ListByPost(ctx context.Context, postID, userID string) ([]*model.PostAudit, error) {
	var list []*model.PostAudit
	err := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Order("id").
		Find(&list).Error
	return list, err
}
