package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gosignals-ai/bet-analyzer/internal/model"
)

// RawContractColumns odds_raw 契约 v1 的必需列
var RawContractColumns = []string{"id", "sport_key", "game_id", "fetched_at", "payload", "payload_hash"}

// SnapshotFilter 选择参与归一化的原始快照
type SnapshotFilter struct {
	IDs          []uint64   // 指定快照 id；非空时忽略 Since
	Since        *time.Time // fetched_at >= Since
	SportKey     string
	PerGameLimit int // 每场比赛最多取最新 N 条，0 不限
	Limit        int // 总共最多取最新 N 条，0 不限
}

// SnapshotRepository 原始快照仓储（只追加）
type SnapshotRepository interface {
	// Insert 按 payload_hash 去重写入；已存在时返回 false
	Insert(ctx context.Context, snap *model.RawSnapshot) (bool, error)
	// ExistingHashes 返回已入库的哈希集合（dry run 用）
	ExistingHashes(ctx context.Context, hashes []string) (map[string]bool, error)
	// List 按 (fetched_at, id) 升序返回选中的快照
	List(ctx context.Context, filter SnapshotFilter) ([]*model.RawSnapshot, error)
	// ValidateContract 校验 odds_raw 表与契约列是否存在
	ValidateContract(ctx context.Context) error
	WithTx(tx *gorm.DB) SnapshotRepository
}

type snapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) WithTx(tx *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: tx}
}

func (r *snapshotRepository) Insert(ctx context.Context, snap *model.RawSnapshot) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payload_hash"}},
		DoNothing: true,
	}).Create(snap)
	if res.Error != nil {
		return false, fmt.Errorf("写入原始快照失败: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *snapshotRepository) ExistingHashes(ctx context.Context, hashes []string) (map[string]bool, error) {
	found := make(map[string]bool, len(hashes))
	if len(hashes) == 0 {
		return found, nil
	}
	var existing []string
	if err := r.db.WithContext(ctx).Model(&model.RawSnapshot{}).
		Where("payload_hash IN ?", hashes).
		Pluck("payload_hash", &existing).Error; err != nil {
		return nil, fmt.Errorf("查询快照哈希失败: %w", err)
	}
	for _, h := range existing {
		found[h] = true
	}
	return found, nil
}

func (r *snapshotRepository) List(ctx context.Context, filter SnapshotFilter) ([]*model.RawSnapshot, error) {
	q := r.db.WithContext(ctx).Model(&model.RawSnapshot{})
	if len(filter.IDs) > 0 {
		q = q.Where("id IN ?", filter.IDs)
	} else if filter.Since != nil {
		q = q.Where("fetched_at >= ?", filter.Since.UTC())
	}
	if filter.SportKey != "" {
		q = q.Where("sport_key = ?", filter.SportKey)
	}
	q = q.Order("fetched_at DESC").Order("id DESC")
	// 无每场上限时 limit 可以下推到 SQL
	if filter.PerGameLimit <= 0 && filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var newestFirst []*model.RawSnapshot
	if err := q.Find(&newestFirst).Error; err != nil {
		return nil, fmt.Errorf("查询原始快照失败: %w", err)
	}

	if filter.PerGameLimit > 0 {
		perGame := make(map[string]int)
		kept := newestFirst[:0]
		for _, s := range newestFirst {
			if perGame[s.GameID] >= filter.PerGameLimit {
				continue
			}
			perGame[s.GameID]++
			kept = append(kept, s)
			if filter.Limit > 0 && len(kept) == filter.Limit {
				break
			}
		}
		newestFirst = kept
	}

	out := make([]*model.RawSnapshot, len(newestFirst))
	for i, s := range newestFirst {
		out[len(newestFirst)-1-i] = s
	}
	return out, nil
}

func (r *snapshotRepository) ValidateContract(ctx context.Context) error {
	m := r.db.WithContext(ctx).Migrator()
	if !m.HasTable(&model.RawSnapshot{}) {
		return ErrRawTableMissing
	}
	var missing []string
	for _, col := range RawContractColumns {
		if !m.HasColumn(&model.RawSnapshot{}, col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Table: model.RawSnapshot{}.TableName(), Columns: missing}
	}
	return nil
}
