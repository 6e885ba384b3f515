package domain

// Employee is the directory view of a person, owned by the external identity service.
type Employee struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Email      string `json:"email"`
	Role       Role   `json:"role"`
}

// Role represents an employee's access level
type Role string

const (
	// RoleAdmin manages categories, balances and every application
	RoleAdmin Role = "admin"

	// RoleManager reviews applications of their department
	RoleManager Role = "manager"

	// RoleStaff applies for leave
	RoleStaff Role = "staff"
)

var validRoles = map[Role]bool{
	RoleAdmin:   true,
	RoleManager: true,
	RoleStaff:   true,
}

// IsValid checks if the role is a valid role
func (r Role) IsValid() bool {
	return validRoles[r]
}

// ReviewersFor returns the ids of admins and of managers in the employee's department.
func ReviewersFor(employee *Employee, everyone []*Employee) []string {
	var ids []string
	for _, e := range everyone {
		if e.Role == RoleAdmin || (e.Role == RoleManager && e.Department == employee.Department) {
			ids = append(ids, e.ID)
		}
	}
	return ids
}
