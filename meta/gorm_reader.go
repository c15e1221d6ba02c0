package meta

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"
)

// Brand brands 表的只读映射
type Brand struct {
	ID              string `gorm:"primaryKey;size:64"`
	Name            string `gorm:"size:256"`
	CompetitorsJSON string `gorm:"column:competitors;type:text"`
}

// TableName 指定表名
func (Brand) TableName() string { return "brands" }

// Query queries 表的只读映射
type Query struct {
	ID     string `gorm:"primaryKey;size:64"`
	Text   string `gorm:"type:text"`
	Intent string `gorm:"size:64"`
	Topic  string `gorm:"size:256"`
}

// TableName 指定表名
func (Query) TableName() string { return "queries" }

// GormReader 从元数据库读取品牌与查询信息。
// 同时实现 BrandReader 与 QueryReader。
type GormReader struct {
	db *gorm.DB
}

// NewGormReader 创建元数据读取器
func NewGormReader(db *gorm.DB) *GormReader {
	return &GormReader{db: db}
}

// GetBrandName implements BrandReader.
func (r *GormReader) GetBrandName(ctx context.Context, brandID string) (string, error) {
	var brand Brand
	if err := r.db.WithContext(ctx).First(&brand, "id = ?", brandID).Error; err != nil {
		return "", err
	}
	return brand.Name, nil
}

// GetCompetitors implements BrandReader.
func (r *GormReader) GetCompetitors(ctx context.Context, brandID string) ([]string, error) {
	var brand Brand
	if err := r.db.WithContext(ctx).First(&brand, "id = ?", brandID).Error; err != nil {
		return nil, err
	}
	if brand.CompetitorsJSON == "" {
		return nil, nil
	}
	var competitors []string
	if err := json.Unmarshal([]byte(brand.CompetitorsJSON), &competitors); err != nil {
		return nil, err
	}
	return competitors, nil
}

// GetQuery implements QueryReader.
func (r *GormReader) GetQuery(ctx context.Context, queryID string) (*QueryInfo, error) {
	var query Query
	if err := r.db.WithContext(ctx).First(&query, "id = ?", queryID).Error; err != nil {
		return nil, err
	}
	return &QueryInfo{
		ID:     query.ID,
		Text:   query.Text,
		Intent: query.Intent,
		Topic:  query.Topic,
	}, nil
}

var (
	_ BrandReader = (*GormReader)(nil)
	_ QueryReader = (*GormReader)(nil)
)
