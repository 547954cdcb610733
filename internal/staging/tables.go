package staging

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/lakeflow/pkg/json"
	"github.com/ajitpratap0/lakeflow/pkg/models"
)

// table describes how one dataset maps onto its staging table
type table struct {
	name    string
	columns []string
	row     func(record json.RawMessage) ([]interface{}, error)
}

// QualifiedName returns schema.table
func (t table) QualifiedName() string {
	return "raw." + t.name
}

func (t table) truncateSQL() string {
	return fmt.Sprintf("TRUNCATE TABLE %s", t.QualifiedName())
}

func (t table) insertSQL() string {
	placeholders := make([]string, len(t.columns))
	for i := range t.columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.QualifiedName(), strings.Join(t.columns, ", "), strings.Join(placeholders, ", "))
}

var tables = map[string]table{
	models.DatasetProducts: {
		name:    "products",
		columns: []string{"id", "title", "price", "description", "category", "image", "rating"},
		row:     productRow,
	},
	models.DatasetUsers: {
		name:    "users",
		columns: []string{"id", "email", "username", "password", "name", "address", "phone"},
		row:     userRow,
	},
	models.DatasetCarts: {
		name:    "carts",
		columns: []string{"id", "userId", "date", "products"},
		row:     cartRow,
	},
}

type product struct {
	ID          *int64          `json:"id"`
	Title       *string         `json:"title"`
	Price       *json.Number    `json:"price"`
	Description *string         `json:"description"`
	Category    *string         `json:"category"`
	Image       *string         `json:"image"`
	Rating      json.RawMessage `json:"rating"`
}

type user struct {
	ID       *int64          `json:"id"`
	Email    *string         `json:"email"`
	Username *string         `json:"username"`
	Password *string         `json:"password"`
	Name     json.RawMessage `json:"name"`
	Address  json.RawMessage `json:"address"`
	Phone    *string         `json:"phone"`
}

type cart struct {
	ID       *int64          `json:"id"`
	UserID   *int64          `json:"userId"`
	Date     *string         `json:"date"`
	Products json.RawMessage `json:"products"`
}

func productRow(record json.RawMessage) ([]interface{}, error) {
	var p product
	if err := json.Unmarshal(record, &p); err != nil {
		return nil, err
	}
	if p.ID == nil {
		return nil, fmt.Errorf("product has no id")
	}
	var price interface{}
	if p.Price != nil {
		price = p.Price.String()
	}
	return []interface{}{*p.ID, p.Title, price, p.Description, p.Category, p.Image, jsonb(p.Rating)}, nil
}

func userRow(record json.RawMessage) ([]interface{}, error) {
	var u user
	if err := json.Unmarshal(record, &u); err != nil {
		return nil, err
	}
	if u.ID == nil {
		return nil, fmt.Errorf("user has no id")
	}
	return []interface{}{*u.ID, u.Email, u.Username, u.Password, jsonb(u.Name), jsonb(u.Address), u.Phone}, nil
}

func cartRow(record json.RawMessage) ([]interface{}, error) {
	var c cart
	if err := json.Unmarshal(record, &c); err != nil {
		return nil, err
	}
	if c.ID == nil {
		return nil, fmt.Errorf("cart has no id")
	}
	// date is bound as text so PostgreSQL applies its own TIMESTAMP input rules
	return []interface{}{*c.ID, c.UserID, c.Date, jsonb(c.Products)}, nil
}

// jsonb returns the nested document as text for a JSONB parameter, or nil
// when the field was absent.
func jsonb(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
