package models

// CreateUserRequest is the input shape for both create and update.
//
// Every field is optional: nil means "not supplied". On create an unsupplied
// field takes its zero value; on update it leaves the stored value untouched.
type CreateUserRequest struct {
	Login      *string               `json:"login"`
	Age        *int                  `json:"age" validate:"omitempty,gte=0"`
	FirstName  *string               `json:"firstName"`
	MiddleName *string               `json:"middleName"`
	LastName   *string               `json:"lastName"`
	Address    *CreateAddressRequest `json:"address"`
}

// CreateAddressRequest is the optional nested address group.
type CreateAddressRequest struct {
	City     *string `json:"city"`
	Building *string `json:"building"`
	Street   *string `json:"street"`
}
