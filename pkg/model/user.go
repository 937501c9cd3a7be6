package model

import "time"

type User struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name      string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Email     string    `json:"email" bson:"email" validate:"required,email"`
	Password  string    `json:"password,omitempty" bson:"password" validate:"omitempty,min=8,max=72"`
	Role      string    `json:"role" bson:"role" validate:"required,oneof=driver owner admin"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// Public strips the credential hash before the record leaves the service.
func (u *User) Public() *User {
	out := *u
	out.Password = ""
	return &out
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=driver owner"`

	// Owners may claim an unclaimed spot at registration time.
	SpotNumber string `json:"spot_number,omitempty" validate:"omitempty,min=1,max=20"`
	SpotType   string `json:"spot_type,omitempty" validate:"omitempty,oneof=standard disabled-access reserved electric"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
