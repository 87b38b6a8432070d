package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ingredient is one entry of a recipe's ingredient or seasoning list.
type Ingredient struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity,omitempty"`
	Unit     string `json:"unit,omitempty"`
	Category string `json:"category,omitempty"`
}

// Difficulty is the recipe difficulty level. Content tooling has written it
// both as a plain string and as a one-element array, so both forms decode.
type Difficulty string

// UnmarshalJSON accepts "easy" as well as ["easy"].
func (d *Difficulty) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = Difficulty(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("invalid difficulty: %s", string(data))
	}
	if len(list) > 0 {
		*d = Difficulty(list[0])
	} else {
		*d = ""
	}
	return nil
}

// Value implements the driver.Valuer interface
func (d Difficulty) Value() (driver.Value, error) {
	return string(d), nil
}

// Scan implements the sql.Scanner interface
func (d *Difficulty) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case nil:
		*d = ""
		return nil
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("unsupported difficulty source type %T", value)
	}

	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") || strings.HasPrefix(raw, "\"") {
		return d.UnmarshalJSON([]byte(raw))
	}
	*d = Difficulty(raw)
	return nil
}

// Recipe is a searchable recipe. The search engine only reads it.
type Recipe struct {
	ID           uuid.UUID             `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	Name         string                `gorm:"size:255;not null;index" json:"name"`
	Cuisine      string                `gorm:"size:64;index" json:"cuisine"`
	Description  string                `gorm:"type:text" json:"description"`
	Ingredients  JSONBList[Ingredient] `gorm:"type:jsonb;not null;default:'[]'" json:"ingredients"`
	Seasonings   JSONBList[Ingredient] `gorm:"type:jsonb;not null;default:'[]'" json:"seasonings"`
	Flavors      JSONBList[string]     `gorm:"type:jsonb;not null;default:'[]'" json:"flavors"`
	Difficulty   Difficulty            `gorm:"type:text" json:"difficulty"`
	CookingTime  int                   `json:"cooking_time"`
	Steps        JSONBList[string]     `gorm:"type:jsonb;not null;default:'[]'" json:"steps"`
	Tips         JSONBList[string]     `gorm:"type:jsonb;not null;default:'[]'" json:"tips"`
	IsVegan      bool                  `gorm:"not null;default:false" json:"is_vegan"`
	IsHalal      bool                  `gorm:"not null;default:false" json:"is_halal"`
	IsGlutenFree bool                  `gorm:"not null;default:false" json:"is_gluten_free"`
	ImageURL     string                `gorm:"size:512" json:"image_url"`
}

// TableName returns the table name for the Recipe model
func (Recipe) TableName() string {
	return "recipes"
}

// BeforeCreate assigns an id when the caller did not.
func (r *Recipe) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// EmbeddingText is the text the embedding pipeline feeds to the embedder:
// name, ingredient names and description.
func (r *Recipe) EmbeddingText() string {
	parts := make([]string, 0, len(r.Ingredients)+2)
	parts = append(parts, r.Name)
	for _, ing := range r.Ingredients {
		parts = append(parts, ing.Name)
	}
	parts = append(parts, r.Description)
	return strings.Join(parts, " ")
}
