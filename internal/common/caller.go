package common

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleAuthor Role = "AUTHOR"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleAuthor
}

// Caller is the authenticated identity performing an operation. It is passed explicitly to every
// write path; a nil *Caller means an anonymous request.
type Caller struct {
	ID    int
	Name  string
	Email string
	Role  Role
}

func (c *Caller) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// CanManage reports whether the caller may modify a resource owned by ownerID.
func (c *Caller) CanManage(ownerID int) bool {
	if c == nil {
		return false
	}

	return c.IsAdmin() || c.ID == ownerID
}
