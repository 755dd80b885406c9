package domain

// CatalogKind identifies one of the admin-editable enumerations
type CatalogKind string

const (
	CatalogObjects      CatalogKind = "objects"
	CatalogExpenseTypes CatalogKind = "expense_types"
	CatalogPayMethods   CatalogKind = "pay_methods"
	CatalogCategories   CatalogKind = "categories"
)

var validCatalogKinds = map[CatalogKind]bool{
	CatalogObjects:      true,
	CatalogExpenseTypes: true,
	CatalogPayMethods:   true,
	CatalogCategories:   true,
}

// String returns the string representation of the kind
func (k CatalogKind) String() string {
	return string(k)
}

// IsValid returns true if the kind is a known catalog kind
func (k CatalogKind) IsValid() bool {
	return validCatalogKinds[k]
}
