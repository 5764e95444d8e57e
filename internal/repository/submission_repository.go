package repository

import (
	"errors"

	"order_composer/internal/models"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

type SubmissionRepository interface {
	Create(submission *models.OrderSubmission) error
	GetByToken(token string) (*models.OrderSubmission, error)
	GetLatestByDraftID(draftID string) (*models.OrderSubmission, error)
	GetByDraftID(draftID string) ([]models.OrderSubmission, error)
	Update(submission *models.OrderSubmission) error
}

type submissionRepository struct {
	db *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(submission *models.OrderSubmission) error {
	return r.db.Create(submission).Error
}

func (r *submissionRepository) GetByToken(token string) (*models.OrderSubmission, error) {
	var submission models.OrderSubmission
	err := r.db.Where("token = ?", token).First(&submission).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &submission, nil
}

func (r *submissionRepository) GetLatestByDraftID(draftID string) (*models.OrderSubmission, error) {
	var submission models.OrderSubmission
	err := r.db.Where("draft_id = ?", draftID).Order("id DESC").First(&submission).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &submission, nil
}

func (r *submissionRepository) GetByDraftID(draftID string) ([]models.OrderSubmission, error) {
	var submissions []models.OrderSubmission
	err := r.db.Where("draft_id = ?", draftID).Order("id ASC").Find(&submissions).Error
	return submissions, err
}

func (r *submissionRepository) Update(submission *models.OrderSubmission) error {
	return r.db.Save(submission).Error
}
