package service

import "github.com/Skryldev/user-service/models"

func buildUserResponse(u *models.User) *models.UserResponse {
	resp := &models.UserResponse{
		ID:         u.ID,
		Login:      u.Login,
		Age:        u.Age,
		FirstName:  u.FirstName,
		MiddleName: u.MiddleName,
		LastName:   u.LastName,
	}
	if a := u.Address; a != nil {
		resp.Address = &models.AddressResponse{
			City:     a.City,
			Building: a.Building,
			Street:   a.Street,
		}
	}
	return resp
}

func buildUser(req models.CreateUserRequest) *models.User {
	u := &models.User{
		Login:      deref(req.Login),
		Age:        deref(req.Age),
		FirstName:  deref(req.FirstName),
		MiddleName: deref(req.MiddleName),
		LastName:   deref(req.LastName),
	}
	if a := req.Address; a != nil {
		u.Address = &models.Address{
			City:     deref(a.City),
			Building: deref(a.Building),
			Street:   deref(a.Street),
		}
	}
	return u
}

// mergeUser copies every supplied request field onto u and leaves the rest
// alone. A supplied address on a user without one starts from an empty
// Address.
func mergeUser(u *models.User, req models.CreateUserRequest) {
	setIfPresent(&u.Login, req.Login)
	setIfPresent(&u.Age, req.Age)
	setIfPresent(&u.FirstName, req.FirstName)
	setIfPresent(&u.MiddleName, req.MiddleName)
	setIfPresent(&u.LastName, req.LastName)

	a := req.Address
	if a == nil {
		return
	}
	if u.Address == nil {
		u.Address = &models.Address{}
	}
	setIfPresent(&u.Address.City, a.City)
	setIfPresent(&u.Address.Building, a.Building)
	setIfPresent(&u.Address.Street, a.Street)
}

func setIfPresent[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}
