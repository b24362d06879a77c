// Package apierr defines the registry's typed domain error hierarchy. Every
// variant carries an HTTP status and can render itself as the JSON body the
// router sends back; no error is swallowed silently between the domain
// layers and the router.
package apierr

import (
	"encoding/json"
	"net/http"
)

// Error is the interface every domain error implements.
type Error interface {
	error
	Status() int
	Body() any
}

type base struct {
	Detail string `json:"detail"`
}

// Validation reports one or more field-level schema failures.
type Validation struct {
	base
	Fields []FieldError `json:"fields"`
}

// FieldError names one bad field and why.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func NewValidation(fields []FieldError) *Validation {
	return &Validation{base: base{Detail: "validation failed"}, Fields: fields}
}

func (e *Validation) Error() string { return e.Detail }
func (e *Validation) Status() int   { return http.StatusUnprocessableEntity }
func (e *Validation) Body() any     { return e }

// Unauthorized covers missing, malformed, or expired bearer tokens.
type Unauthorized struct{ base }

func NewUnauthorized(detail string) *Unauthorized {
	return &Unauthorized{base{Detail: detail}}
}
func (e *Unauthorized) Error() string { return e.Detail }
func (e *Unauthorized) Status() int   { return http.StatusUnauthorized }
func (e *Unauthorized) Body() any     { return e }

// InvalidCredentials covers login denial.
type InvalidCredentials struct{ base }

func NewInvalidCredentials() *InvalidCredentials {
	return &InvalidCredentials{base{Detail: "invalid username or password"}}
}
func (e *InvalidCredentials) Error() string { return e.Detail }
func (e *InvalidCredentials) Status() int   { return http.StatusUnauthorized }
func (e *InvalidCredentials) Body() any     { return e }

// NoPermission covers an authenticated caller failing an ACL check.
type NoPermission struct{ base }

func NewNoPermission() *NoPermission {
	return &NoPermission{base{Detail: "you do not have permission to perform this action"}}
}
func (e *NoPermission) Error() string { return e.Detail }
func (e *NoPermission) Status() int   { return http.StatusForbidden }
func (e *NoPermission) Body() any     { return e }

// NotFound covers a lookup miss for a named kind.
type NotFound struct {
	base
	What string `json:"what"`
}

func NewNotFound(what string) *NotFound {
	return &NotFound{base: base{Detail: what + " not found"}, What: what}
}
func (e *NotFound) Error() string { return e.Detail }
func (e *NotFound) Status() int   { return http.StatusNotFound }
func (e *NotFound) Body() any     { return e }

// AlreadyExists covers a natural-key collision.
type AlreadyExists struct {
	base
	What string `json:"what"`
}

func NewAlreadyExists(what string) *AlreadyExists {
	return &AlreadyExists{base: base{Detail: what + " already exists"}, What: what}
}
func (e *AlreadyExists) Error() string { return e.Detail }
func (e *AlreadyExists) Status() int   { return http.StatusConflict }
func (e *AlreadyExists) Body() any     { return e }

// UsernameTaken covers a registration colliding with an existing
// username. Unlike AlreadyExists it carries no extra `what` field, matching
// the original's plain-detail shape.
type UsernameTaken struct{ base }

func NewUsernameTaken() *UsernameTaken {
	return &UsernameTaken{base{Detail: "Username is already taken"}}
}
func (e *UsernameTaken) Error() string { return e.Detail }
func (e *UsernameTaken) Status() int   { return http.StatusBadRequest }
func (e *UsernameTaken) Body() any     { return e }

// EmailRegistered covers a registration colliding with an existing email.
type EmailRegistered struct{ base }

func NewEmailRegistered() *EmailRegistered {
	return &EmailRegistered{base{Detail: "Email is already registered"}}
}
func (e *EmailRegistered) Error() string { return e.Detail }
func (e *EmailRegistered) Status() int   { return http.StatusBadRequest }
func (e *EmailRegistered) Body() any     { return e }

// UnknownDependencies covers a version that referenced nonexistent
// dependency packages.
type UnknownDependencies struct {
	base
	Packages []string `json:"packages"`
}

func NewUnknownDependencies(packages []string) *UnknownDependencies {
	return &UnknownDependencies{base: base{Detail: "unknown dependency packages"}, Packages: packages}
}
func (e *UnknownDependencies) Error() string { return e.Detail }
func (e *UnknownDependencies) Status() int   { return http.StatusBadRequest }
func (e *UnknownDependencies) Body() any     { return e }

// UnknownOwners covers a package create/edit that referenced nonexistent
// owner usernames.
type UnknownOwners struct {
	base
	Usernames []string `json:"usernames"`
}

func NewUnknownOwners(usernames []string) *UnknownOwners {
	return &UnknownOwners{base: base{Detail: "unknown owner usernames"}, Usernames: usernames}
}
func (e *UnknownOwners) Error() string { return e.Detail }
func (e *UnknownOwners) Status() int   { return http.StatusBadRequest }
func (e *UnknownOwners) Body() any     { return e }

// Precondition covers the remaining invariant-guard errors that carry no
// extra structured fields beyond detail: no-namespace-owner-remains,
// no-package-owner-remains, role-not-empty, has-dependents,
// has-referring-tags.
type Precondition struct{ base }

func NewPrecondition(detail string) *Precondition {
	return &Precondition{base{Detail: detail}}
}
func (e *Precondition) Error() string { return e.Detail }
func (e *Precondition) Status() int   { return http.StatusBadRequest }
func (e *Precondition) Body() any     { return e }

// WriteJSON renders any Error to the response writer with the right status
// and, for Unauthorized, the WWW-Authenticate header spec.md §6 requires.
func WriteJSON(w http.ResponseWriter, err Error) {
	if _, ok := err.(*Unauthorized); ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status())
	_ = json.NewEncoder(w).Encode(err.Body())
}
