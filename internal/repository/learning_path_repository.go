package repository

import (
	"context"
	"errors"
	"prepx_backend/internal/model"
	"prepx_backend/internal/util"

	"gorm.io/gorm"
)

type LearningPathRepository struct {
	DB *gorm.DB
}

func NewLearningPathRepository(db *gorm.DB) *LearningPathRepository {
	return &LearningPathRepository{DB: db}
}

// Transaction 在同一事务中执行 fn, fn 内的 repo 绑定到事务
func (r *LearningPathRepository) Transaction(ctx context.Context, fn func(tx *LearningPathRepository) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&LearningPathRepository{DB: tx})
	})
}

func (r *LearningPathRepository) CreatePath(ctx context.Context, path *model.LearningPath) error {
	return r.DB.WithContext(ctx).Create(path).Error
}

func (r *LearningPathRepository) CreateColumn(ctx context.Context, col *model.Column) error {
	return r.DB.WithContext(ctx).Create(col).Error
}

func (r *LearningPathRepository) CreateItem(ctx context.Context, item *model.Item) error {
	return r.DB.WithContext(ctx).Create(item).Error
}

func (r *LearningPathRepository) CreateSection(ctx context.Context, section *model.ContentSection) error {
	return r.DB.WithContext(ctx).Create(section).Error
}

func (r *LearningPathRepository) FindPathByID(ctx context.Context, id string) (*model.LearningPath, error) {
	var p model.LearningPath
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrPathNotFound
	}
	return &p, err
}

func (r *LearningPathRepository) ListPathsByOwner(ctx context.Context, ownerID string, page, limit int) ([]model.LearningPath, int64, error) {
	var ps []model.LearningPath
	var total int64
	query := r.DB.WithContext(ctx).Model(&model.LearningPath{}).Where("owner_id = ?", ownerID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&ps).Error
	return ps, total, err
}

func (r *LearningPathRepository) ListPublicPaths(ctx context.Context, page, limit int) ([]model.LearningPath, int64, error) {
	var ps []model.LearningPath
	var total int64
	query := r.DB.WithContext(ctx).Model(&model.LearningPath{}).Where("is_public = ?", true)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&ps).Error
	return ps, total, err
}

func (r *LearningPathRepository) UpdatePath(ctx context.Context, path *model.LearningPath) error {
	return r.DB.WithContext(ctx).Save(path).Error
}

// PathTree 一条路径下的全部行, 均按 order_index 升序
type PathTree struct {
	Path     model.LearningPath
	Columns  []model.Column
	Items    []model.Item
	Sections []model.ContentSection
}

func (r *LearningPathRepository) LoadTree(ctx context.Context, pathID string) (*PathTree, error) {
	path, err := r.FindPathByID(ctx, pathID)
	if err != nil {
		return nil, err
	}

	tree := &PathTree{Path: *path}
	db := r.DB.WithContext(ctx)
	if err := db.Where("path_id = ?", pathID).Order("order_index asc, created_at asc").Find(&tree.Columns).Error; err != nil {
		return nil, err
	}
	if len(tree.Columns) == 0 {
		return tree, nil
	}

	columnIDs := make([]string, 0, len(tree.Columns))
	for _, c := range tree.Columns {
		columnIDs = append(columnIDs, c.ID)
	}
	if err := db.Where("column_id IN ?", columnIDs).Order("order_index asc, created_at asc").Find(&tree.Items).Error; err != nil {
		return nil, err
	}
	if err := db.Where("column_id IN ?", columnIDs).Order("order_index asc, created_at asc").Find(&tree.Sections).Error; err != nil {
		return nil, err
	}
	return tree, nil
}

func (r *LearningPathRepository) FindItemByID(ctx context.Context, id string) (*model.Item, *model.Column, error) {
	var item model.Item
	db := r.DB.WithContext(ctx)
	if err := db.Where("id = ?", id).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, util.ErrItemNotFound
		}
		return nil, nil, err
	}
	var col model.Column
	if err := db.Where("id = ?", item.ColumnID).First(&col).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, util.ErrItemNotFound
		}
		return nil, nil, err
	}
	return &item, &col, nil
}

// CountTopicItems 非根分支列中的条目数
func (r *LearningPathRepository) CountTopicItems(ctx context.Context, pathID string) (int64, error) {
	var total int64
	err := r.DB.WithContext(ctx).Model(&model.Item{}).
		Joins("JOIN path_columns ON path_columns.id = path_items.column_id").
		Where("path_columns.path_id = ?", pathID).
		Where("path_columns.kind = ?", model.ColumnBranch).
		Where("path_columns.parent_item_id IS NOT NULL").
		Where("path_columns.deleted_at IS NULL").
		Count(&total).Error
	return total, err
}

// DeletePath 删除路径及其整棵子树、测验与进度
func (r *LearningPathRepository) DeletePath(ctx context.Context, pathID string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var columnIDs []string
		if err := tx.Model(&model.Column{}).Where("path_id = ?", pathID).Pluck("id", &columnIDs).Error; err != nil {
			return err
		}
		if len(columnIDs) > 0 {
			if err := tx.Where("column_id IN ?", columnIDs).Delete(&model.ContentSection{}).Error; err != nil {
				return err
			}
			if err := tx.Where("column_id IN ?", columnIDs).Delete(&model.Item{}).Error; err != nil {
				return err
			}
			if err := tx.Where("path_id = ?", pathID).Delete(&model.Column{}).Error; err != nil {
				return err
			}
		}

		var quizIDs []string
		if err := tx.Model(&model.Quiz{}).Where("path_id = ?", pathID).Pluck("id", &quizIDs).Error; err != nil {
			return err
		}
		if len(quizIDs) > 0 {
			if err := tx.Where("quiz_id IN ?", quizIDs).Delete(&model.QuizQuestion{}).Error; err != nil {
				return err
			}
			if err := tx.Where("quiz_id IN ?", quizIDs).Delete(&model.QuizAttempt{}).Error; err != nil {
				return err
			}
			if err := tx.Where("path_id = ?", pathID).Delete(&model.Quiz{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("path_id = ?", pathID).Delete(&model.ItemProgress{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", pathID).Delete(&model.LearningPath{}).Error
	})
}
