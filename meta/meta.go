package meta

import "context"

// BrandInfo 品牌元数据
type BrandInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Competitors []string `json:"competitors,omitempty"`
}

// QueryInfo 查询元数据
type QueryInfo struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Intent string `json:"intent,omitempty"`
	Topic  string `json:"topic,omitempty"`
}

// BrandReader 读取品牌名与竞品列表。
// 实现失败时返回错误，调用方降级为使用请求自带的字段。
type BrandReader interface {
	GetBrandName(ctx context.Context, brandID string) (string, error)
	GetCompetitors(ctx context.Context, brandID string) ([]string, error)
}

// QueryReader 读取查询元数据
type QueryReader interface {
	GetQuery(ctx context.Context, queryID string) (*QueryInfo, error)
}

// Scorer 采集完成后的异步打分钩子。
// 打分按品牌维度进行，请求必须携带 brand_id 与 customer_id。
// 实现必须 fire-and-forget：不返回错误、不阻塞调用方。
type Scorer interface {
	ScoreBrandAsync(ctx context.Context, resultID, brandID, customerID string)
}

// NoopBrandReader 空实现，未接入元数据库时使用。
type NoopBrandReader struct{}

// GetBrandName implements BrandReader.
func (NoopBrandReader) GetBrandName(context.Context, string) (string, error) { return "", nil }

// GetCompetitors implements BrandReader.
func (NoopBrandReader) GetCompetitors(context.Context, string) ([]string, error) { return nil, nil }

// NoopQueryReader 空实现
type NoopQueryReader struct{}

// GetQuery implements QueryReader.
func (NoopQueryReader) GetQuery(context.Context, string) (*QueryInfo, error) { return nil, nil }

// NoopScorer 空实现
type NoopScorer struct{}

// ScoreBrandAsync implements Scorer.
func (NoopScorer) ScoreBrandAsync(context.Context, string, string, string) {}
