package domain

import "fmt"

// ProfileType classifies a profile. ADMIN implies every permission.
type ProfileType string

const (
	ProfileAdmin   ProfileType = "ADMIN"
	ProfileManager ProfileType = "MANAGER"
	ProfileUser    ProfileType = "USER"
	ProfileCustom  ProfileType = "CUSTOM"
)

// NewProfileType creates a ProfileType value object with validation
func NewProfileType(value string) (ProfileType, error) {
	p := ProfileType(value)
	if err := p.Validate(); err != nil {
		return "", err
	}
	return p, nil
}

// Validate checks if the profile type is known
func (p ProfileType) Validate() error {
	switch p {
	case ProfileAdmin, ProfileManager, ProfileUser, ProfileCustom:
		return nil
	default:
		return fmt.Errorf("invalid profile type %q: must be ADMIN, MANAGER, USER, or CUSTOM", string(p))
	}
}

func (p ProfileType) String() string {
	return string(p)
}

// IsAdmin reports whether p is the ADMIN type.
func (p ProfileType) IsAdmin() bool {
	return p == ProfileAdmin
}
