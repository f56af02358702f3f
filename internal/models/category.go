package models

// CategoryKind represents the kind of category
type CategoryKind string

const (
	CategoryKindExpense CategoryKind = "expense"
	CategoryKindIncome  CategoryKind = "income"
)

// Valid reports whether k is a known category kind.
func (k CategoryKind) Valid() bool {
	return k == CategoryKindExpense || k == CategoryKindIncome
}

// PathSeparator joins parent and child names in FullPath.
const PathSeparator = " > "

// Category classifies transactions. Categories nest at most two levels deep
// and a child always has its parent's kind.
type Category struct {
	Base
	LedgerID      string       `gorm:"type:uuid;not null;index" json:"ledger_id"`
	Name          string       `gorm:"not null" json:"name"`
	Kind          CategoryKind `gorm:"not null" json:"kind"`
	ParentID      *string      `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Icon          string       `json:"icon,omitempty"`
	Color         string       `json:"color,omitempty"`
	IsQuickSelect bool         `gorm:"not null" json:"is_quick_select"`
	IsHidden      bool         `gorm:"not null" json:"is_hidden"`
	SortOrder     int          `gorm:"not null" json:"sort_order"`

	// Relationships
	Parent   *Category  `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	Children []Category `gorm:"foreignKey:ParentID" json:"children,omitempty"`
}

// IsRoot reports whether the category has no parent.
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}

// FullPath returns "Parent > Child" for children and the bare name for
// roots. Parent must be loaded for children.
func (c *Category) FullPath() string {
	if c.Parent == nil {
		return c.Name
	}
	return c.Parent.Name + PathSeparator + c.Name
}

// CategoryScope is the set of categories whose transactions roll up into a
// category. It is either a BranchScope or a LeafScope.
type CategoryScope interface {
	// CategoryIDs lists every category id in the scope.
	CategoryIDs() []string
	scope()
}

// BranchScope is a root category together with its direct children.
type BranchScope struct {
	Root     Category   `json:"category"`
	Children []Category `json:"children"`
}

// CategoryIDs implements CategoryScope.
func (s BranchScope) CategoryIDs() []string {
	ids := make([]string, 0, len(s.Children)+1)
	ids = append(ids, s.Root.ID)
	for _, child := range s.Children {
		ids = append(ids, child.ID)
	}
	return ids
}

func (BranchScope) scope() {}

// LeafScope is a child category on its own.
type LeafScope struct {
	Leaf Category `json:"category"`
}

// CategoryIDs implements CategoryScope.
func (s LeafScope) CategoryIDs() []string {
	return []string{s.Leaf.ID}
}

func (LeafScope) scope() {}

// ScopeOf builds the scope of c. children is ignored for child categories.
func ScopeOf(c Category, children []Category) CategoryScope {
	if !c.IsRoot() {
		return LeafScope{Leaf: c}
	}
	return BranchScope{Root: c, Children: children}
}
