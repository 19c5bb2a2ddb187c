package domain

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleHotel    Role = "HOTEL"
	RoleCustomer Role = "CUSTOMER"
)

func (r Role) Valid() bool {
	return r == RoleHotel || r == RoleCustomer
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	HotelID   *string   `json:"hotel_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HotelRef returns the id of the user's hotel, empty when none was set up.
func (u *User) HotelRef() string {
	if u == nil || u.HotelID == nil {
		return ""
	}
	return *u.HotelID
}

// UserInfo is the public view of a user.
type UserInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u *User) ToUserInfo() UserInfo {
	return UserInfo{ID: u.ID, Name: u.Name, Email: u.Email}
}

// Profile is what the signed-in user sees about themselves.
type Profile struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Role    Role   `json:"role"`
	HotelID string `json:"hotel,omitempty"`
}

func (u *User) ToProfile() Profile {
	return Profile{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, HotelID: u.HotelRef()}
}

// SignUpIntent is what a pending magic link resolves to.
type SignUpIntent struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type SignUpRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type SignInRequest struct {
	Email string `json:"email"`
}

type AccessRequest struct {
	Token string `json:"token"`
}

type GoogleSignInRequest struct {
	IDToken string `json:"id_token"`
}

type GoogleSignUpRequest struct {
	IDToken string `json:"id_token"`
	Name    string `json:"name"`
}

func (r *SignUpRequest) Normalize() {
	r.Email = normalizeEmail(r.Email)
	r.Name = strings.TrimSpace(r.Name)
}

func (r *SignUpRequest) Validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	return lengthBetween("name", r.Name, 2, 100)
}

func (r *SignInRequest) Normalize() {
	r.Email = normalizeEmail(r.Email)
}

func (r *SignInRequest) Validate() error {
	return validateEmail(r.Email)
}

func (r *AccessRequest) Validate() error {
	if strings.TrimSpace(r.Token) == "" {
		return fmt.Errorf("token is required")
	}
	return nil
}

func (r *GoogleSignUpRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
}

func (r *GoogleSignUpRequest) Validate() error {
	if r.IDToken == "" {
		return fmt.Errorf("id_token is required")
	}
	if r.Name == "" {
		return fmt.Errorf("name is required to sign up")
	}
	return nil
}

func (r *GoogleSignInRequest) Validate() error {
	if r.IDToken == "" {
		return fmt.Errorf("id_token is required")
	}
	return nil
}
