package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/darasahq/darasa/core"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleTrainer = "trainer"
	RoleStudent = "student"
)

var (
	AllRoles = []string{RoleAdmin, RoleStudent, RoleTrainer} // sorted

	rolePriorities = map[string]int{
		RoleAdmin:   30,
		RoleTrainer: 20,
		RoleStudent: 10,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Trainer", Value: RoleTrainer},
		{Name: "Admin", Value: RoleAdmin},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	BatchID      string    `json:"batch_id,omitempty"` // set iff Role == student
	IsActive     *bool     `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsTrainer() bool { return u.Role == RoleTrainer }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

func (u *User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"required,role"`
	BatchID         string `json:"batch_id" validate:"omitempty,uuid4"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string  `json:"name"`
	Email           string  `json:"email" validate:"omitempty,email"`
	Role            string  `json:"role" validate:"omitempty,role"`
	BatchID         *string `json:"batch_id"` // nil: unchanged; "": unassign
	IsActive        *bool   `json:"is_active"`
	Password        string  `json:"password"`
	PasswordConfirm string  `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc Service) error {
	name := core.CleanString(uu.Name)
	if name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}

type (
	// QueryFilter fields are combined with an AND operation.
	// Search does a case-insensitive match on one of Name or Email.
	QueryFilter struct {
		Search      string    `query:"search"`
		Role        string    `query:"role"`
		BatchID     string    `query:"batch_id"`
		IsActive    *bool     `query:"is_active"`
		CreatedFrom time.Time `query:"created_from"`
		CreatedTo   time.Time `query:"created_to"`
	}

	// GetFilter selects a single User by ID or Email; ID wins if both are set.
	GetFilter struct {
		ID    string
		Email string
	}
)

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Role == "" && qf.BatchID == "" && qf.IsActive == nil &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
}
