// pkg/model/analysis.go
package model

import (
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
)

// ImpactTier 市场影响等级
type ImpactTier string

const (
	ImpactHigh   ImpactTier = "high"
	ImpactMedium ImpactTier = "medium"
	ImpactLow    ImpactTier = "low"
)

// Direction 验证预测方向
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Confidence 验证置信度
type Confidence string

const (
	ConfidenceHigh    Confidence = "high"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceLow     Confidence = "low"
	ConfidenceUnknown Confidence = "unknown"
)

// VerificationStatus 单条预测的验证结果
type VerificationStatus string

const (
	VerificationMatched    VerificationStatus = "matched"
	VerificationUnmatched  VerificationStatus = "unmatched"
	VerificationUnverified VerificationStatus = "unverified" // 价格数据不可用
)

// SymbolImpact 直接受影响的股票
type SymbolImpact struct {
	Symbol     string  `json:"symbol"`
	Direction  string  `json:"direction"` // positive / negative / neutral
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// IndirectImpact 间接受影响的股票，关系类型来自关系图谱
type IndirectImpact struct {
	Symbol       string `json:"symbol"`
	Via          string `json:"via,omitempty"`
	Relationship string `json:"relationship"`
	Direction    string `json:"direction"`
	Reason       string `json:"reason,omitempty"`
}

// Prediction 验证预测：如果新闻重要，Symbol 应向 Expected 方向变动
type Prediction struct {
	Symbol    string    `json:"symbol"`
	Expected  Direction `json:"expected_direction"`
	Rationale string    `json:"rationale,omitempty"`
}

var Categories = []string{
	"monetary_policy",
	"fiscal_policy",
	"earnings",
	"mergers_acquisitions",
	"regulation",
	"geopolitics",
	"technology",
	"commodities",
	"macro_data",
	"other",
}

// NormalizeCategory 未知分类归为 other
func NormalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	if c == "" {
		return ""
	}
	for _, known := range Categories {
		if c == known {
			return c
		}
	}
	return "other"
}

// ToJSON 序列化为 jsonb 列，失败时返回 null
func ToJSON(v interface{}) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(data)
}
