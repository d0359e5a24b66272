// Package graph 股票关系图谱：供应链、竞争对手、行业ETF、指数
package graph

import "strings"

// RelationshipType 关系类型
type RelationshipType string

const (
	SupplyChain RelationshipType = "supply_chain"
	Competitor  RelationshipType = "competitors"
	SectorETF   RelationshipType = "sector_etf"
	Index       RelationshipType = "index"
	Unlisted    RelationshipType = "unlisted" // 图谱中不存在的关系
)

// Peers 某只股票的关联股票
type Peers struct {
	SupplyChain []string `json:"supply_chain"`
	Competitors []string `json:"competitors"`
	SectorETF   []string `json:"sector_etf"`
	Index       []string `json:"index"`
}

// Affected 受新闻间接影响的股票及其来源
type Affected struct {
	Relationship RelationshipType `json:"relationship"`
	SourceSymbol string           `json:"source_symbol"`
}

// Graph 只读关系图谱，可并发使用
type Graph struct {
	peers map[string]Peers
}

// New 使用给定关系表创建图谱，nil 时使用内置表
func New(peers map[string]Peers) *Graph {
	if peers == nil {
		peers = defaultPeers
	}
	normalized := make(map[string]Peers, len(peers))
	for symbol, p := range peers {
		normalized[strings.ToUpper(symbol)] = p
	}
	return &Graph{peers: normalized}
}

// Default 内置关系图谱
func Default() *Graph {
	return New(nil)
}

// Peers 查询关联股票
func (g *Graph) Peers(symbol string) (Peers, bool) {
	p, ok := g.peers[strings.ToUpper(strings.TrimSpace(symbol))]
	return p, ok
}

// Relationship 返回 to 相对 from 的关系，按供应链、竞争对手、行业ETF、指数的顺序匹配
func (g *Graph) Relationship(from, to string) RelationshipType {
	p, ok := g.Peers(from)
	if !ok {
		return Unlisted
	}
	to = strings.ToUpper(strings.TrimSpace(to))
	for _, group := range p.groups() {
		for _, s := range group.symbols {
			if s == to {
				return group.kind
			}
		}
	}
	return Unlisted
}

// FindAffected 给定新闻中的股票，返回所有可能受影响的关联股票。
// 同一股票只记录第一次出现的关系，新闻本身提及的股票不计入。
func (g *Graph) FindAffected(symbols []string) map[string]Affected {
	mentioned := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		mentioned[strings.ToUpper(strings.TrimSpace(s))] = true
	}

	affected := make(map[string]Affected)
	for _, s := range symbols {
		source := strings.ToUpper(strings.TrimSpace(s))
		p, ok := g.peers[source]
		if !ok {
			continue
		}
		for _, group := range p.groups() {
			for _, related := range group.symbols {
				if mentioned[related] {
					continue
				}
				if _, exists := affected[related]; !exists {
					affected[related] = Affected{Relationship: group.kind, SourceSymbol: source}
				}
			}
		}
	}
	return affected
}

// Resolve 为间接影响确定关系类型：优先使用 via 与 symbol 的直接关系，
// 否则从直接受影响股票的关联中查找
func (g *Graph) Resolve(symbol, via string, direct []string) (RelationshipType, string) {
	if via != "" {
		if rel := g.Relationship(via, symbol); rel != Unlisted {
			return rel, strings.ToUpper(via)
		}
	}
	if a, ok := g.FindAffected(direct)[strings.ToUpper(strings.TrimSpace(symbol))]; ok {
		return a.Relationship, a.SourceSymbol
	}
	return Unlisted, strings.ToUpper(via)
}

type peerGroup struct {
	kind    RelationshipType
	symbols []string
}

func (p Peers) groups() []peerGroup {
	return []peerGroup{
		{SupplyChain, p.SupplyChain},
		{Competitor, p.Competitors},
		{SectorETF, p.SectorETF},
		{Index, p.Index},
	}
}
