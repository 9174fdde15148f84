package service

import (
	"context"
	"prepx_backend/internal/model"
	"prepx_backend/internal/repository"
	"prepx_backend/internal/util"
	"time"
)

type ProgressService struct {
	ProgressRepo *repository.ProgressRepository
	PathRepo     *repository.LearningPathRepository
	now          func() time.Time
}

func NewProgressService(progressRepo *repository.ProgressRepository, pathRepo *repository.LearningPathRepository) *ProgressService {
	return &ProgressService{
		ProgressRepo: progressRepo,
		PathRepo:     pathRepo,
		now:          time.Now,
	}
}

// SetItemProgress 标记条目完成或未完成, 同一用户同一条目只保留一行
func (s *ProgressService) SetItemProgress(ctx context.Context, userID, itemID string, completed bool) (*model.ItemProgress, error) {
	_, col, err := s.PathRepo.FindItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	// 只有非根分支列中的主题条目计入进度
	if col.ParentItemID == nil || col.Kind != model.ColumnBranch {
		return nil, util.ErrNotTopicItem
	}
	path, err := s.PathRepo.FindPathByID(ctx, col.PathID)
	if err != nil {
		return nil, err
	}
	if path.OwnerID != userID && !path.IsPublic {
		return nil, util.ErrPermissionDenied
	}

	p := &model.ItemProgress{
		UserID:    userID,
		ItemID:    itemID,
		PathID:    path.ID,
		Completed: completed,
	}
	if completed {
		now := s.now()
		p.CompletedAt = &now
	}
	if err := s.ProgressRepo.Upsert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

type PathProgress struct {
	PathID           string   `json:"pathId"`
	Completed        int64    `json:"completed"`
	Total            int64    `json:"total"`
	Percent          float64  `json:"percent"`
	CompletedItemIDs []string `json:"completedItemIds"`
}

// PathSummary 已完成条目数 / 主题条目总数
func (s *ProgressService) PathSummary(ctx context.Context, userID, pathID string) (*PathProgress, error) {
	path, err := s.PathRepo.FindPathByID(ctx, pathID)
	if err != nil {
		return nil, err
	}
	if path.OwnerID != userID && !path.IsPublic {
		return nil, util.ErrPermissionDenied
	}

	total, err := s.PathRepo.CountTopicItems(ctx, pathID)
	if err != nil {
		return nil, err
	}
	rows, err := s.ProgressRepo.ListByPath(ctx, userID, pathID)
	if err != nil {
		return nil, err
	}

	out := &PathProgress{PathID: pathID, Total: total, CompletedItemIDs: []string{}}
	for _, r := range rows {
		if r.Completed {
			out.Completed++
			out.CompletedItemIDs = append(out.CompletedItemIDs, r.ItemID)
		}
	}
	if total > 0 {
		out.Percent = float64(out.Completed) * 100 / float64(total)
	}
	return out, nil
}
