package state

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/collectorflow/types"
)

// JSONMap 以 JSON 文本落库的 map 列
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src any) error {
	return scanJSON(src, m)
}

// StringList 以 JSON 文本落库的字符串切片列
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	return scanJSON(src, l)
}

// AttemptList 以 JSON 文本落库的重试历史列
type AttemptList []types.Attempt

// Value implements driver.Valuer.
func (l AttemptList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *AttemptList) Scan(src any) error {
	return scanJSON(src, l)
}

func scanJSON(src, dst any) error {
	if src == nil {
		return nil
	}
	switch t := src.(type) {
	case []byte:
		if len(t) == 0 {
			return nil
		}
		return json.Unmarshal(t, dst)
	case string:
		if t == "" {
			return nil
		}
		return json.Unmarshal([]byte(t), dst)
	default:
		return fmt.Errorf("unsupported column type %T", src)
	}
}

// Execution 一条 (request, collector) 执行记录
type Execution struct {
	ID                   string                `gorm:"primaryKey;size:36" json:"id"`
	QueryID              string                `gorm:"size:64;index" json:"query_id"`
	BrandID              string                `gorm:"size:64" json:"brand_id"`
	CustomerID           string                `gorm:"size:64" json:"customer_id"`
	CollectorType        string                `gorm:"size:32;index" json:"collector_type"`
	Status               types.ExecutionStatus `gorm:"size:16;index" json:"status"`
	BrightdataSnapshotID string                `gorm:"size:128;index" json:"brightdata_snapshot_id,omitempty"`
	ErrorMessage         string                `gorm:"type:text" json:"error_message,omitempty"`
	ErrorMetadata        JSONMap               `gorm:"type:text" json:"error_metadata,omitempty"`
	RetryCount           int                   `json:"retry_count"`
	RetryHistory         AttemptList           `gorm:"type:text" json:"retry_history,omitempty"`
	Metadata             JSONMap               `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// TableName 指定表名
func (Execution) TableName() string { return "executions" }

// CollectorResult 一条规范化答案记录，与 Execution 成对（execution_id 唯一）。
// raw_response_json 独立成列：大负载以第二次容错更新写入。
type CollectorResult struct {
	ID                   string             `gorm:"primaryKey;size:36" json:"id"`
	QueryID              string             `gorm:"size:64;index" json:"query_id"`
	ExecutionID          string             `gorm:"size:36;uniqueIndex" json:"execution_id,omitempty"`
	CollectorType        string             `gorm:"size:32;index" json:"collector_type"`
	RawAnswer            string             `gorm:"type:text" json:"raw_answer,omitempty"`
	Citations            StringList         `gorm:"type:text" json:"citations,omitempty"`
	URLs                 StringList         `gorm:"column:urls;type:text" json:"urls,omitempty"`
	Brand                string             `gorm:"size:256" json:"brand,omitempty"`
	Question             string             `gorm:"type:text" json:"question,omitempty"`
	Competitors          StringList         `gorm:"type:text" json:"competitors,omitempty"`
	Topic                string             `gorm:"size:256" json:"topic,omitempty"`
	CollectionTimeMS     int64              `gorm:"column:collection_time_ms" json:"collection_time_ms"`
	Status               types.ResultStatus `gorm:"size:16;index" json:"status"`
	BrightdataSnapshotID string             `gorm:"size:128;index" json:"brightdata_snapshot_id,omitempty"`
	RawResponseJSON      *string            `gorm:"column:raw_response_json;type:text" json:"-"`
	Metadata             JSONMap            `gorm:"type:text" json:"metadata,omitempty"`
	ErrorMessage         string             `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// TableName 指定表名
func (CollectorResult) TableName() string { return "collector_results" }

// StatusTransition metadata.status_transitions 中的单条流转记录
type StatusTransition struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	At     time.Time `json:"at"`
	Source string    `json:"source"`
	Reason string    `json:"reason,omitempty"`
}
