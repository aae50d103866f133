package model

// Category 模型给出的邮件分类
type Category string

const (
	CategoryUrgent Category = "URGENT"
	CategorySpam   Category = "SPAM"
	CategoryLead   Category = "LEAD"
	CategoryOther  Category = "OTHER"
)

// Categories lists every label the categorizer may return.
var Categories = []Category{CategoryUrgent, CategorySpam, CategoryLead, CategoryOther}

// Valid reports whether c is one of the known labels (exact match).
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// CategoryResult 分类结果，每封邮件只产生一次，不可修改
type CategoryResult struct {
	Category     Category `json:"category"`
	Confidence   float64  `json:"confidence"`
	Rationale    string   `json:"rationale"`
	ModelVersion string   `json:"model_version"`
}

// RouteTag 决策门输出，用于选择处理分支
type RouteTag string

const (
	RouteUrgent RouteTag = "URGENT"
	RouteSpam   RouteTag = "SPAM"
	RouteLead   RouteTag = "LEAD"
	RouteOther  RouteTag = "OTHER"
)
