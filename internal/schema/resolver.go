// Package schema maps the columns of an uploaded table onto the canonical
// roles the analysis needs.
package schema

import (
	"fmt"
	"slices"
	"strings"
)

type Role string

const (
	RoleDate     Role = "date"
	RoleRevenue  Role = "revenue"
	RoleQuantity Role = "quantity"
	RoleCustomer Role = "customer"
	RoleProduct  Role = "product"
	RoleInvoice  Role = "invoice"
)

// AllRequired lists the roles a complete upload maps.
var AllRequired = []Role{RoleDate, RoleRevenue, RoleQuantity, RoleCustomer, RoleProduct}

// Candidate is one column name that may fill a role. UnitPrice marks revenue
// columns that hold a per-unit price rather than a line total.
type Candidate struct {
	Role      Role
	Column    string
	UnitPrice bool
}

// DefaultCandidates is evaluated in order; the first hit per role wins.
var DefaultCandidates = []Candidate{
	{Role: RoleDate, Column: "date"},
	{Role: RoleDate, Column: "Date"},
	{Role: RoleDate, Column: "InvoiceDate"},
	{Role: RoleDate, Column: "invoice_date"},
	{Role: RoleDate, Column: "transaction_date"},
	{Role: RoleDate, Column: "order_date"},
	{Role: RoleDate, Column: "timestamp"},

	{Role: RoleRevenue, Column: "revenue"},
	{Role: RoleRevenue, Column: "Revenue"},
	{Role: RoleRevenue, Column: "TotalValue"},
	{Role: RoleRevenue, Column: "total_value"},
	{Role: RoleRevenue, Column: "total_price"},
	{Role: RoleRevenue, Column: "TotalPrice"},
	{Role: RoleRevenue, Column: "amount"},
	{Role: RoleRevenue, Column: "sales"},
	{Role: RoleRevenue, Column: "UnitPrice", UnitPrice: true},
	{Role: RoleRevenue, Column: "unit_price", UnitPrice: true},
	{Role: RoleRevenue, Column: "price", UnitPrice: true},

	{Role: RoleQuantity, Column: "quantity"},
	{Role: RoleQuantity, Column: "Quantity"},
	{Role: RoleQuantity, Column: "qty"},
	{Role: RoleQuantity, Column: "units"},

	{Role: RoleCustomer, Column: "customer_id"},
	{Role: RoleCustomer, Column: "CustomerID"},
	{Role: RoleCustomer, Column: "customer"},
	{Role: RoleCustomer, Column: "user_id"},
	{Role: RoleCustomer, Column: "client_id"},

	{Role: RoleProduct, Column: "product_id"},
	{Role: RoleProduct, Column: "StockCode"},
	{Role: RoleProduct, Column: "product"},
	{Role: RoleProduct, Column: "Description"},
	{Role: RoleProduct, Column: "product_name"},
	{Role: RoleProduct, Column: "sku"},
	{Role: RoleProduct, Column: "item"},

	{Role: RoleInvoice, Column: "InvoiceNo"},
	{Role: RoleInvoice, Column: "invoice_no"},
	{Role: RoleInvoice, Column: "invoice"},
	{Role: RoleInvoice, Column: "transaction_id"},
	{Role: RoleInvoice, Column: "order_id"},
}

// Mapping is the resolved role -> column assignment of one upload. It is a
// value type with no exported mutators.
type Mapping struct {
	columns   map[Role]string
	indexes   map[Role]int
	unitPrice bool
}

// Column returns the column name assigned to role.
func (m Mapping) Column(role Role) (string, bool) {
	c, ok := m.columns[role]
	return c, ok
}

// Index returns the position of the role's column in the table header.
func (m Mapping) Index(role Role) (int, bool) {
	i, ok := m.indexes[role]
	return i, ok
}

func (m Mapping) Has(role Role) bool {
	_, ok := m.columns[role]
	return ok
}

// UnitPriced reports whether the revenue column is a per-unit price.
func (m Mapping) UnitPriced() bool {
	return m.unitPrice
}

// Roles returns a copy of the assignment.
func (m Mapping) Roles() map[Role]string {
	out := make(map[Role]string, len(m.columns))
	for k, v := range m.columns {
		out[k] = v
	}
	return out
}

// SchemaError lists the roles that could not be resolved.
type SchemaError struct {
	Missing  []Role
	Tried    map[Role][]string
	Received []string
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for _, role := range e.Missing {
		parts = append(parts, fmt.Sprintf("%s (tried %s)", role, strings.Join(e.Tried[role], ", ")))
	}
	return fmt.Sprintf("unresolved columns: %s; received columns: %s",
		strings.Join(parts, "; "), strings.Join(e.Received, ", "))
}

// Resolver resolves roles against an ordered candidate list.
type Resolver struct {
	Candidates []Candidate
	Required   []Role
}

// NewResolver uses DefaultCandidates. When requireDate is false a missing
// date column is reported through the mapping instead of an error.
func NewResolver(requireDate bool) Resolver {
	required := []Role{RoleRevenue, RoleQuantity, RoleCustomer, RoleProduct}
	if requireDate {
		required = AllRequired
	}
	return Resolver{Candidates: DefaultCandidates, Required: required}
}

// Resolve maps columns to roles. An exact header match is tried across all
// candidates of a role first, then a case-insensitive one.
func (r Resolver) Resolve(columns []string) (Mapping, error) {
	exact := make(map[string]int, len(columns))
	folded := make(map[string]int, len(columns))
	for i, c := range columns {
		name := strings.TrimSpace(c)
		if _, seen := exact[name]; !seen {
			exact[name] = i
		}
		key := strings.ToLower(name)
		if _, seen := folded[key]; !seen {
			folded[key] = i
		}
	}

	byRole := make(map[Role][]Candidate)
	var order []Role
	for _, c := range r.Candidates {
		if _, ok := byRole[c.Role]; !ok {
			order = append(order, c.Role)
		}
		byRole[c.Role] = append(byRole[c.Role], c)
	}

	m := Mapping{
		columns: make(map[Role]string),
		indexes: make(map[Role]int),
	}

	for _, role := range order {
		hit, idx, ok := firstMatch(byRole[role], exact, func(s string) string { return s })
		if !ok {
			hit, idx, ok = firstMatch(byRole[role], folded, strings.ToLower)
		}
		if !ok {
			continue
		}
		m.columns[role] = columns[idx]
		m.indexes[role] = idx
		if role == RoleRevenue {
			m.unitPrice = hit.UnitPrice
		}
	}

	var missing []Role
	for _, role := range r.Required {
		if !m.Has(role) {
			missing = append(missing, role)
		}
	}
	if len(missing) > 0 {
		tried := make(map[Role][]string, len(missing))
		for _, role := range missing {
			for _, c := range byRole[role] {
				tried[role] = append(tried[role], c.Column)
			}
		}
		return Mapping{}, &SchemaError{
			Missing:  missing,
			Tried:    tried,
			Received: slices.Clone(columns),
		}
	}

	return m, nil
}

// Resolve runs the default resolver with every role required.
func Resolve(columns []string) (Mapping, error) {
	return NewResolver(true).Resolve(columns)
}

func firstMatch(cands []Candidate, index map[string]int, key func(string) string) (Candidate, int, bool) {
	for _, c := range cands {
		if i, ok := index[key(c.Column)]; ok {
			return c, i, true
		}
	}
	return Candidate{}, 0, false
}
