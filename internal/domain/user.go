package domain

import "strings"

// User is the cached snapshot of the signed-in user.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Active    bool      `json:"active"`
	Profiles  []Profile `json:"profiles"`
	CreatedAt string    `json:"createdAt,omitempty"`
	UpdatedAt string    `json:"updatedAt,omitempty"`
}

// Profile groups permissions under a profile type.
type Profile struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	ProfileType ProfileType  `json:"profileType"`
	Permissions []Permission `json:"permissions,omitempty"`
}

// Permission grants one operation on one resource.
type Permission struct {
	ID        int64     `json:"id"`
	Resource  Reference `json:"resource"`
	Operation Reference `json:"operation"`
}

// Reference is a named backend entity such as a resource or operation.
type Reference struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// DisplayName returns Name, or Username when no name is set.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// IsAdmin reports whether any profile is ADMIN.
func (u *User) IsAdmin() bool {
	if u == nil {
		return false
	}
	for _, p := range u.Profiles {
		if p.ProfileType.IsAdmin() {
			return true
		}
	}
	return false
}

// HasProfile reports whether the user holds a profile of type pt.
// ADMIN satisfies every query.
func (u *User) HasProfile(pt ProfileType) bool {
	if u == nil {
		return false
	}
	for _, p := range u.Profiles {
		if p.ProfileType == pt || p.ProfileType.IsAdmin() {
			return true
		}
	}
	return false
}

// HasPermission reports whether any profile grants operation on resource.
// Names are compared case-insensitively and ADMIN short-circuits to true.
func (u *User) HasPermission(resource, operation string) bool {
	if u == nil {
		return false
	}
	if u.IsAdmin() {
		return true
	}
	for _, p := range u.Profiles {
		for _, perm := range p.Permissions {
			if strings.EqualFold(perm.Resource.Name, resource) &&
				strings.EqualFold(perm.Operation.Name, operation) {
				return true
			}
		}
	}
	return false
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.Name == "" && p.Email == ""
}
