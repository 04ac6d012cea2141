package domain

// Role - роль вызывающего, выданная identity provider.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
)

// Caller - проверенная пара (callerId, role) и контакты для снапшотов.
type Caller struct {
	ID    string
	Role  Role
	Name  string
	Phone string
}

// IsAdmin возвращает true для администратора.
func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }
