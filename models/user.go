package models

// User represents a row in the "users" table.
// ID is assigned by the store on insert and never changes afterwards.
type User struct {
	ID         int64
	Login      string
	Age        int
	FirstName  string
	MiddleName string
	LastName   string
	// Address is stored in the same row; nil when the user has none.
	Address *Address
}

// Address is owned by its User and has no identity of its own.
type Address struct {
	City     string
	Building string
	Street   string
}
