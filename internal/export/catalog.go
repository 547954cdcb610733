package export

import (
	"regexp"

	"github.com/ajitpratap0/lakeflow/pkg/config"
	"github.com/ajitpratap0/lakeflow/pkg/errors"
)

// Table is one analytic table and the query that exports it
type Table struct {
	Name  string `yaml:"name"`
	Query string `yaml:"query"`
}

// Catalog is the ordered list of tables an export run covers
type Catalog struct {
	Tables []Table `yaml:"tables"`
}

// tableName doubles as the object key prefix, so keep it path-safe
var tableName = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)

// DefaultCatalog returns the analytics tables produced by the transform step
func DefaultCatalog() Catalog {
	return Catalog{Tables: []Table{
		{
			Name: "dim_products",
			Query: `SELECT
				product_id, product_name, category, price, description,
				avg_rating, rating_count, updated_at
			FROM analytics.dim_products`,
		},
		{
			Name: "dim_users",
			Query: `SELECT
				user_id, full_name, email, city, username, updated_at
			FROM analytics.dim_users`,
		},
		{
			Name: "dim_user_segments",
			Query: `SELECT
				user_id, full_name, city, email, user_segment,
				rfm_total_score, recency_score, frequency_score, monetary_score,
				total_carts, total_items_purchased, days_since_last_cart, updated_at
			FROM analytics.dim_user_segments`,
		},
		{
			Name: "fct_carts",
			Query: `SELECT
				cart_id, user_id, cart_date, total_items, updated_at
			FROM analytics.fct_carts`,
		},
		{
			Name: "fct_daily_sales",
			Query: `SELECT
				sale_date, total_carts, unique_customers, total_items_sold,
				avg_items_per_cart, avg_carts_per_customer, updated_at
			FROM analytics.fct_daily_sales
			ORDER BY sale_date DESC`,
		},
		{
			Name: "fct_category_performance",
			Query: `SELECT
				category, product_count, avg_price, min_price, max_price,
				avg_rating, total_ratings, times_in_carts, unique_customers, updated_at
			FROM analytics.fct_category_performance`,
		},
		{
			Name: "dim_product_rankings",
			Query: `SELECT
				product_id, product_name, category, price, avg_rating, rating_count,
				price_tier, rating_tier, category_rank_by_rating,
				overall_rank_by_rating, price_diff_pct, revenue_potential, updated_at
			FROM analytics.dim_product_rankings`,
		},
	}}
}

// LoadCatalog reads a YAML catalog file of the form
//
//	tables:
//	  - name: dim_products
//	    query: SELECT ... FROM analytics.dim_products
func LoadCatalog(path string) (Catalog, error) {
	var c Catalog
	if err := config.LoadFile(path, &c); err != nil {
		return Catalog{}, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load export catalog").
			WithDetail("path", path)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate checks that the catalog is non-empty with unique, path-safe names
func (c Catalog) Validate() error {
	if len(c.Tables) == 0 {
		return errors.New(errors.ErrorTypeConfig, "export catalog has no tables")
	}
	seen := make(map[string]bool, len(c.Tables))
	for i, t := range c.Tables {
		if !tableName.MatchString(t.Name) {
			return errors.Newf(errors.ErrorTypeConfig, "catalog entry %d: invalid table name %q", i, t.Name)
		}
		if seen[t.Name] {
			return errors.Newf(errors.ErrorTypeConfig, "catalog entry %d: duplicate table %q", i, t.Name)
		}
		if t.Query == "" {
			return errors.Newf(errors.ErrorTypeConfig, "catalog entry %d: table %q has no query", i, t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// Names returns the table names in export order
func (c Catalog) Names() []string {
	names := make([]string, len(c.Tables))
	for i, t := range c.Tables {
		names[i] = t.Name
	}
	return names
}
