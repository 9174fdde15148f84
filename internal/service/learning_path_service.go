package service

import (
	"context"
	"encoding/json"
	"fmt"
	"prepx_backend/internal/model"
	"prepx_backend/internal/repository"
	"prepx_backend/internal/util"
	"prepx_backend/pkg/logger"
	"prepx_backend/pkg/monitoring"
	"prepx_backend/pkg/tracing"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// PathStore 路径物化所需的逐行写入
type PathStore interface {
	CreatePath(ctx context.Context, path *model.LearningPath) error
	CreateColumn(ctx context.Context, col *model.Column) error
	CreateItem(ctx context.Context, item *model.Item) error
	CreateSection(ctx context.Context, section *model.ContentSection) error
}

// SourceArchiver 保存生成路径所用的原始资料
type SourceArchiver interface {
	ArchiveSource(ctx context.Context, ownerID, text string) (string, error)
	LoadSource(ctx context.Context, key string) (string, error)
	DeleteSource(ctx context.Context, key string) error
}

type LearningPathService struct {
	Repo     *repository.LearningPathRepository
	store    PathStore
	archiver SourceArchiver
}

func NewLearningPathService(repo *repository.LearningPathRepository, archiver SourceArchiver) *LearningPathService {
	return &LearningPathService{
		Repo:     repo,
		store:    repo,
		archiver: archiver,
	}
}

// WithStore 替换写入端, 测试中用于注入失败
func (s *LearningPathService) WithStore(store PathStore) *LearningPathService {
	s.store = store
	return s
}

// MaterializeReport 物化结果; Requested/Created 统计根列以下的记录
type MaterializeReport struct {
	PathID    string `json:"pathId"`
	Requested int    `json:"requested"`
	Created   int    `json:"created"`
	Skipped   int    `json:"skipped"`
}

func (r *MaterializeReport) Complete() bool {
	return r.Skipped == 0
}

type CreatePathRequest struct {
	Generated  GeneratedPath `json:"generated" binding:"required"`
	SourceText string        `json:"sourceText"`
	IsPublic   bool          `json:"isPublic"`
	IsMajor    bool          `json:"isMajor"`
}

// CreateFromGenerated 归档原始资料 (尽力而为) 后物化路径
func (s *LearningPathService) CreateFromGenerated(ctx context.Context, ownerID string, req CreatePathRequest) (*MaterializeReport, error) {
	path := &model.LearningPath{
		OwnerID:  ownerID,
		IsPublic: req.IsPublic,
		IsMajor:  req.IsMajor,
	}
	if s.archiver != nil && strings.TrimSpace(req.SourceText) != "" {
		key, err := s.archiver.ArchiveSource(ctx, ownerID, req.SourceText)
		if err != nil {
			logger.WithContext(ctx).Warn("archive source failed", zap.String("owner_id", ownerID), zap.Error(err))
		} else {
			path.SourceKey = key
		}
	}
	report, err := s.materialize(ctx, path, req.Generated)
	if err != nil && path.SourceKey != "" {
		if derr := s.archiver.DeleteSource(context.WithoutCancel(ctx), path.SourceKey); derr != nil {
			logger.WithContext(ctx).Warn("delete orphaned source failed", zap.String("key", path.SourceKey), zap.Error(derr))
		}
	}
	return report, err
}

// Source 返回路径生成时归档的原始资料, 仅拥有者可读
func (s *LearningPathService) Source(ctx context.Context, userID, pathID string) (string, error) {
	path, err := s.owned(ctx, userID, pathID)
	if err != nil {
		return "", err
	}
	if path.SourceKey == "" || s.archiver == nil {
		return "", util.ErrSourceNotFound
	}
	return s.archiver.LoadSource(ctx, path.SourceKey)
}

// Materialize 将生成的骨架写入为一棵路径树; 只有路径行失败是致命的
func (s *LearningPathService) Materialize(ctx context.Context, ownerID string, g GeneratedPath) (*MaterializeReport, error) {
	return s.materialize(ctx, &model.LearningPath{OwnerID: ownerID}, g)
}

func (s *LearningPathService) materialize(ctx context.Context, path *model.LearningPath, g GeneratedPath) (report *MaterializeReport, err error) {
	title := strings.TrimSpace(g.Path.Title)
	if title == "" {
		return nil, util.ErrEmptyPath
	}

	ctx, span := tracing.StartSpan(ctx, "path.materialize", attribute.Int("branches", len(g.Branches)))
	defer func() { tracing.EndSpan(span, err) }()

	log := logger.WithContext(ctx)

	path.Title = title
	path.Subtitle = g.Path.Subtitle
	if err := s.store.CreatePath(ctx, path); err != nil {
		return nil, fmt.Errorf("create learning path: %w", err)
	}

	report = &MaterializeReport{PathID: path.ID, Requested: g.CountRecords()}
	log = log.With(zap.String("path_id", path.ID))

	root := &model.Column{
		PathID:     path.ID,
		Title:      model.RootColumnTitle,
		Kind:       model.ColumnBranch,
		OrderIndex: 0,
	}
	if err := s.store.CreateColumn(ctx, root); err != nil {
		// 没有根列, 整棵子树都无法挂载
		log.Error("create root column failed", zap.Error(err))
		skip(report, "root_column", report.Requested)
		return report, nil
	}

	for mi, module := range g.Branches {
		s.materializeModule(ctx, log, report, path.ID, root.ID, mi, module)
	}

	if !report.Complete() {
		log.Warn("learning path materialized with skipped records",
			zap.Int("requested", report.Requested),
			zap.Int("created", report.Created),
			zap.Int("skipped", report.Skipped),
		)
	}
	return report, nil
}

func skip(report *MaterializeReport, record string, n int) {
	if n <= 0 {
		return
	}
	report.Skipped += n
	monitoring.MaterializeSkipped.WithLabelValues(record).Add(float64(n))
}

func moduleRecords(module GeneratedBranch) int {
	return GeneratedPath{Branches: []GeneratedBranch{module}}.CountRecords()
}

func topicRecords(topic GeneratedItem) int {
	if len(topic.Sections) == 0 {
		return 1
	}
	return 2 + len(topic.Sections)
}

func (s *LearningPathService) materializeModule(ctx context.Context, log *zap.Logger, report *MaterializeReport, pathID, rootID string, index int, module GeneratedBranch) {
	moduleItem := &model.Item{
		ColumnID:   rootID,
		Title:      module.Title,
		OrderIndex: index,
	}
	if err := s.store.CreateItem(ctx, moduleItem); err != nil {
		log.Error("create module item failed", zap.Int("module", index), zap.Error(err))
		skip(report, "module_item", moduleRecords(module))
		return
	}
	report.Created++

	topicsColumn := &model.Column{
		PathID:       pathID,
		ParentItemID: &moduleItem.ID,
		Title:        module.Title,
		Kind:         model.ColumnBranch,
		OrderIndex:   0,
	}
	if err := s.store.CreateColumn(ctx, topicsColumn); err != nil {
		log.Error("create topics column failed", zap.Int("module", index), zap.Error(err))
		skip(report, "topics_column", moduleRecords(module)-1)
		return
	}
	report.Created++

	for ti, topic := range module.Items {
		s.materializeTopic(ctx, log, report, pathID, topicsColumn.ID, index, ti, topic)
	}
}

func (s *LearningPathService) materializeTopic(ctx context.Context, log *zap.Logger, report *MaterializeReport, pathID, columnID string, moduleIndex, index int, topic GeneratedItem) {
	topicItem := &model.Item{
		ColumnID:   columnID,
		Title:      topic.Title,
		OrderIndex: index,
	}
	if err := s.store.CreateItem(ctx, topicItem); err != nil {
		log.Error("create topic item failed", zap.Int("module", moduleIndex), zap.Int("topic", index), zap.Error(err))
		skip(report, "topic_item", topicRecords(topic))
		return
	}
	report.Created++

	if len(topic.Sections) == 0 {
		return
	}

	contentColumn := &model.Column{
		PathID:       pathID,
		ParentItemID: &topicItem.ID,
		Title:        topic.Title,
		Kind:         model.ColumnContent,
		OrderIndex:   0,
	}
	if err := s.store.CreateColumn(ctx, contentColumn); err != nil {
		log.Error("create content column failed", zap.Int("module", moduleIndex), zap.Int("topic", index), zap.Error(err))
		skip(report, "content_column", 1+len(topic.Sections))
		return
	}
	report.Created++

	for si, sec := range topic.Sections {
		section := &model.ContentSection{
			ColumnID:   contentColumn.ID,
			Type:       model.SectionType(sec.Type),
			Content:    NormalizeSectionContent(sec.Type, sec.Content),
			OrderIndex: si,
		}
		if err := s.store.CreateSection(ctx, section); err != nil {
			log.Error("create content section failed",
				zap.Int("module", moduleIndex), zap.Int("topic", index), zap.Int("section", si), zap.Error(err))
			skip(report, "section", 1)
			continue
		}
		report.Created++
	}
}

// NormalizeSectionContent 按段落类型把模型给出的内容包装成固定结构
func NormalizeSectionContent(sectionType string, raw json.RawMessage) datatypes.JSON {
	var value any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &value); err != nil {
			value = string(raw)
		}
	}

	var payload map[string]any
	switch model.SectionType(sectionType) {
	case model.SectionHeading, model.SectionParagraph:
		payload = map[string]any{"text": value}
	case model.SectionCode:
		payload = map[string]any{"code": value, "language": "javascript"}
	case model.SectionList:
		items, ok := value.([]any)
		if !ok {
			items = []any{value}
		}
		payload = map[string]any{"items": items}
	default:
		payload = map[string]any{"text": value}
	}

	b, _ := json.Marshal(payload)
	return datatypes.JSON(b)
}

func (s *LearningPathService) ListPaths(ctx context.Context, ownerID string, page, limit int) ([]model.LearningPath, int64, error) {
	return s.Repo.ListPathsByOwner(ctx, ownerID, page, limit)
}

func (s *LearningPathService) ListPublicPaths(ctx context.Context, page, limit int) ([]model.LearningPath, int64, error) {
	return s.Repo.ListPublicPaths(ctx, page, limit)
}

// readable 拥有者或公开路径可读
func (s *LearningPathService) readable(ctx context.Context, userID, pathID string) (*model.LearningPath, error) {
	path, err := s.Repo.FindPathByID(ctx, pathID)
	if err != nil {
		return nil, err
	}
	if path.OwnerID != userID && !path.IsPublic {
		return nil, util.ErrPermissionDenied
	}
	return path, nil
}

func (s *LearningPathService) owned(ctx context.Context, userID, pathID string) (*model.LearningPath, error) {
	path, err := s.Repo.FindPathByID(ctx, pathID)
	if err != nil {
		return nil, err
	}
	if path.OwnerID != userID {
		return nil, util.ErrPermissionDenied
	}
	return path, nil
}

type ColumnNode struct {
	model.Column
	Items    []ItemNode             `json:"items,omitempty"`
	Sections []model.ContentSection `json:"sections,omitempty"`
}

type ItemNode struct {
	model.Item
	Columns []ColumnNode `json:"columns,omitempty"`
}

type PathTreeResponse struct {
	Path    model.LearningPath `json:"path"`
	Columns []ColumnNode       `json:"columns"`
}

// GetTree 按 order_index 组装整棵路径树
func (s *LearningPathService) GetTree(ctx context.Context, userID, pathID string) (*PathTreeResponse, error) {
	if _, err := s.readable(ctx, userID, pathID); err != nil {
		return nil, err
	}
	tree, err := s.Repo.LoadTree(ctx, pathID)
	if err != nil {
		return nil, err
	}
	return buildTree(tree), nil
}

func buildTree(tree *repository.PathTree) *PathTreeResponse {
	columnsByParent := make(map[string][]model.Column)
	var roots []model.Column
	for _, c := range tree.Columns {
		if c.ParentItemID == nil {
			roots = append(roots, c)
			continue
		}
		columnsByParent[*c.ParentItemID] = append(columnsByParent[*c.ParentItemID], c)
	}
	itemsByColumn := make(map[string][]model.Item)
	for _, it := range tree.Items {
		itemsByColumn[it.ColumnID] = append(itemsByColumn[it.ColumnID], it)
	}
	sectionsByColumn := make(map[string][]model.ContentSection)
	for _, sec := range tree.Sections {
		sectionsByColumn[sec.ColumnID] = append(sectionsByColumn[sec.ColumnID], sec)
	}

	var buildColumn func(c model.Column) ColumnNode
	buildColumn = func(c model.Column) ColumnNode {
		node := ColumnNode{Column: c, Sections: sectionsByColumn[c.ID]}
		for _, it := range itemsByColumn[c.ID] {
			in := ItemNode{Item: it}
			for _, child := range columnsByParent[it.ID] {
				in.Columns = append(in.Columns, buildColumn(child))
			}
			node.Items = append(node.Items, in)
		}
		return node
	}

	out := &PathTreeResponse{Path: tree.Path, Columns: make([]ColumnNode, 0, len(roots))}
	for _, r := range roots {
		out.Columns = append(out.Columns, buildColumn(r))
	}
	return out
}

type UpdatePathRequest struct {
	Title    *string `json:"title"`
	Subtitle *string `json:"subtitle"`
	IsPublic *bool   `json:"isPublic"`
	IsMajor  *bool   `json:"isMajor"`
}

func (s *LearningPathService) UpdatePath(ctx context.Context, userID, pathID string, req UpdatePathRequest) (*model.LearningPath, error) {
	path, err := s.owned(ctx, userID, pathID)
	if err != nil {
		return nil, err
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) != "" {
		path.Title = strings.TrimSpace(*req.Title)
	}
	if req.Subtitle != nil {
		path.Subtitle = *req.Subtitle
	}
	if req.IsPublic != nil {
		path.IsPublic = *req.IsPublic
	}
	if req.IsMajor != nil {
		path.IsMajor = *req.IsMajor
	}
	if err := s.Repo.UpdatePath(ctx, path); err != nil {
		return nil, err
	}
	return path, nil
}

func (s *LearningPathService) DeletePath(ctx context.Context, userID, pathID string) error {
	if _, err := s.owned(ctx, userID, pathID); err != nil {
		return err
	}
	return s.Repo.DeletePath(ctx, pathID)
}

// ClonePath 在一个事务中复制整棵树到当前用户名下; 原始资料归属原拥有者, 不随副本复制
func (s *LearningPathService) ClonePath(ctx context.Context, userID, pathID string) (*model.LearningPath, error) {
	src, err := s.Repo.FindPathByID(ctx, pathID)
	if err != nil {
		return nil, err
	}
	if src.OwnerID != userID && !src.IsPublic {
		return nil, util.ErrPathNotPublic
	}
	tree, err := s.Repo.LoadTree(ctx, pathID)
	if err != nil {
		return nil, err
	}
	nested := buildTree(tree)

	originalID := src.ID
	if src.OriginalPathID != nil {
		originalID = *src.OriginalPathID
	}
	clone := &model.LearningPath{
		OwnerID:        userID,
		Title:          src.Title,
		Subtitle:       src.Subtitle,
		IsMajor:        src.IsMajor,
		OriginalPathID: &originalID,
	}

	err = s.Repo.Transaction(ctx, func(tx *repository.LearningPathRepository) error {
		if err := tx.CreatePath(ctx, clone); err != nil {
			return err
		}
		for _, c := range nested.Columns {
			if err := cloneColumn(ctx, tx, clone.ID, nil, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return clone, nil
}

func cloneColumn(ctx context.Context, tx *repository.LearningPathRepository, pathID string, parentItemID *string, node ColumnNode) error {
	col := &model.Column{
		PathID:       pathID,
		ParentItemID: parentItemID,
		Title:        node.Title,
		Kind:         node.Kind,
		OrderIndex:   node.OrderIndex,
	}
	if err := tx.CreateColumn(ctx, col); err != nil {
		return err
	}
	for _, sec := range node.Sections {
		if err := tx.CreateSection(ctx, &model.ContentSection{
			ColumnID:   col.ID,
			Type:       sec.Type,
			Content:    sec.Content,
			OrderIndex: sec.OrderIndex,
		}); err != nil {
			return err
		}
	}
	for _, it := range node.Items {
		item := &model.Item{ColumnID: col.ID, Title: it.Title, OrderIndex: it.OrderIndex}
		if err := tx.CreateItem(ctx, item); err != nil {
			return err
		}
		for _, child := range it.Columns {
			if err := cloneColumn(ctx, tx, pathID, &item.ID, child); err != nil {
				return err
			}
		}
	}
	return nil
}
