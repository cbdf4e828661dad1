package models

type Customer struct {
	ID       int64  `json:"C_ID"`
	Name     string `json:"C_NAME"`
	Email    string `json:"C_EMAIL"`
	Password string `json:"C_PASSWORD"`
	Phone    string `json:"C_PHONE"`
	Role     string `json:"C_ROLE"`
}

type CustomerInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Role     string
}

type CustomerPatch struct {
	Name     *string `json:"C_NAME"`
	Email    *string `json:"C_EMAIL"`
	Password *string `json:"C_PASSWORD"`
	Phone    *string `json:"C_PHONE"`
	Role     *string `json:"C_ROLE"`
}

func (p CustomerPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Password == nil && p.Phone == nil && p.Role == nil
}

func (p CustomerPatch) Apply(c *Customer) {
	setString(&c.Name, p.Name)
	setString(&c.Email, p.Email)
	setString(&c.Password, p.Password)
	setString(&c.Phone, p.Phone)
	setString(&c.Role, p.Role)
}

func (p CustomerPatch) Input() CustomerInput {
	var c Customer
	p.Apply(&c)
	return CustomerInput{
		Name:     c.Name,
		Email:    c.Email,
		Password: c.Password,
		Phone:    c.Phone,
		Role:     c.Role,
	}
}

// CustomerFilter matches Name, Email and Phone as substrings and Role exactly.
type CustomerFilter struct {
	Name  string
	Email string
	Phone string
	Role  string
}
