package models

// UserResponse is what callers get back; it never exposes the row layout.
type UserResponse struct {
	ID         int64            `json:"id"`
	Login      string           `json:"login"`
	Age        int              `json:"age"`
	FirstName  string           `json:"firstName"`
	MiddleName string           `json:"middleName"`
	LastName   string           `json:"lastName"`
	Address    *AddressResponse `json:"address"`
}

type AddressResponse struct {
	City     string `json:"city"`
	Building string `json:"building"`
	Street   string `json:"street"`
}
