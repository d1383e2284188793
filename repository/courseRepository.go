package repository

import (
	"context"

	courseModels "coursehub/models/course"

	"gorm.io/gorm"
)

// CourseRepository reads the course catalog and video progress.
type CourseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// GetAllCoursesAndContentHierarchy returns every course with its content
// links in position order.
func (r *CourseRepository) GetAllCoursesAndContentHierarchy(ctx context.Context) ([]courseModels.Course, error) {
	var courses []courseModels.Course
	err := r.db.WithContext(ctx).
		Preload("Content", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc")
		}).
		Order("id asc").
		Find(&courses).Error
	if err != nil {
		return nil, err
	}
	return courses, nil
}

// GetAllVideos returns every visible video.
func (r *CourseRepository) GetAllVideos(ctx context.Context) ([]courseModels.Content, error) {
	var videos []courseModels.Content
	err := r.db.WithContext(ctx).
		Where("type = ? AND hidden = ?", courseModels.ContentTypeVideo, false).
		Find(&videos).Error
	if err != nil {
		return nil, err
	}
	return videos, nil
}

// GetVideoProgressForUser returns the user's progress rows, only the
// completed ones when markAsCompleted is set.
func (r *CourseRepository) GetVideoProgressForUser(ctx context.Context, userID string, markAsCompleted bool) ([]courseModels.VideoProgress, error) {
	var progress []courseModels.VideoProgress
	db := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if markAsCompleted {
		db = db.Where("mark_as_completed = ?", true)
	}
	if err := db.Find(&progress).Error; err != nil {
		return nil, err
	}
	return progress, nil
}
