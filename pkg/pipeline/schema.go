package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrMalformedOutput 模型输出不符合阶段约定的结构
	ErrMalformedOutput = errors.New("模型输出格式错误")
	// ErrStageFailed 某阶段全部调用失败，整个批处理中止
	ErrStageFailed = errors.New("分析阶段全部失败")
)

var validate = validator.New()

// normalizer 校验前统一大小写与空白
type normalizer interface {
	normalize()
}

// decode 解析并校验阶段输出，任何不符都归为 ErrMalformedOutput
func decode(raw []byte, out any) error {
	reflect.ValueOf(out).Elem().SetZero()
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if n, ok := out.(normalizer); ok {
		n.normalize()
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

// ScreenResponse 第一阶段输出
type ScreenResponse struct {
	Selected []ScreenPick `json:"selected" validate:"required,dive"`
}

// ScreenPick 被选中的新闻，Index 从 1 开始
type ScreenPick struct {
	Index          int     `json:"index" validate:"min=1"`
	RelevanceScore float64 `json:"relevance_score" validate:"min=0,max=10"`
	Category       string  `json:"category"`
	Reason         string  `json:"reason"`
}

func (r *ScreenResponse) normalize() {
	for i := range r.Selected {
		r.Selected[i].Category = strings.ToLower(strings.TrimSpace(r.Selected[i].Category))
	}
}

// AnalysisResponse 第二阶段输出
type AnalysisResponse struct {
	Summary             string            `json:"summary" validate:"required"`
	ImportanceScore     float64           `json:"importance_score" validate:"min=1,max=10"`
	ImpactTier          string            `json:"impact_tier" validate:"required,oneof=high medium low"`
	ImpactDirection     string            `json:"impact_direction" validate:"omitempty,oneof=positive negative mixed uncertain"`
	AffectedSymbols     []SymbolImpactOut `json:"affected_symbols" validate:"dive"`
	IndirectImpacts     []IndirectOut     `json:"indirect_impacts" validate:"dive"`
	Predictions         []PredictionOut   `json:"verification_predictions" validate:"dive"`
	SupplyChainAnalysis string            `json:"supply_chain_analysis"`
	CompetitorAnalysis  string            `json:"competitor_analysis"`
	KeyPoints           []string          `json:"key_points"`
}

type SymbolImpactOut struct {
	Symbol     string  `json:"symbol" validate:"required"`
	Direction  string  `json:"direction" validate:"omitempty,oneof=positive negative neutral"`
	Confidence float64 `json:"confidence" validate:"min=0,max=1"`
	Reason     string  `json:"reason"`
}

type IndirectOut struct {
	Symbol    string `json:"symbol" validate:"required"`
	Via       string `json:"via"`
	Direction string `json:"direction" validate:"omitempty,oneof=positive negative neutral"`
	Reason    string `json:"reason"`
}

type PredictionOut struct {
	Symbol            string `json:"symbol" validate:"required"`
	ExpectedDirection string `json:"expected_direction" validate:"required,oneof=up down"`
	Rationale         string `json:"rationale"`
}

func (r *AnalysisResponse) normalize() {
	r.ImpactTier = lower(r.ImpactTier)
	r.ImpactDirection = lower(r.ImpactDirection)
	for i := range r.AffectedSymbols {
		r.AffectedSymbols[i].Symbol = upper(r.AffectedSymbols[i].Symbol)
		r.AffectedSymbols[i].Direction = lower(r.AffectedSymbols[i].Direction)
	}
	for i := range r.IndirectImpacts {
		r.IndirectImpacts[i].Symbol = upper(r.IndirectImpacts[i].Symbol)
		r.IndirectImpacts[i].Via = upper(r.IndirectImpacts[i].Via)
		r.IndirectImpacts[i].Direction = lower(r.IndirectImpacts[i].Direction)
	}
	for i := range r.Predictions {
		r.Predictions[i].Symbol = upper(r.Predictions[i].Symbol)
		r.Predictions[i].ExpectedDirection = lower(r.Predictions[i].ExpectedDirection)
	}
}

// RankResponse 第四阶段输出
type RankResponse struct {
	Rankings []RankItem `json:"rankings" validate:"required,dive"`
}

// RankItem 模型给出的排名与点评；Score 仅记录，不参与计分
type RankItem struct {
	TopicID          string   `json:"topic_id" validate:"required"`
	Rank             int      `json:"rank" validate:"min=1"`
	Commentary       string   `json:"commentary"`
	ActionSuggestion string   `json:"action_suggestion"`
	Score            *float64 `json:"score,omitempty"`
}

func (r *RankResponse) normalize() {
	for i := range r.Rankings {
		r.Rankings[i].TopicID = strings.TrimSpace(r.Rankings[i].TopicID)
	}
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
func upper(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
