package domain

import (
	"fmt"
	"strings"
)

// AudienceScope is the discriminator of the persisted audience form.
type AudienceScope string

const (
	ScopeAdmins              AudienceScope = "admins"
	ScopeAdminsAndAssistants AudienceScope = "admins_and_assistants"
	ScopeSpecificUsers       AudienceScope = "specific_users"
)

// Audience is a closed set of variants: Admins, AdminsAndAssistants and
// SpecificUsers. Only SpecificUsers carries identifiers.
type Audience interface {
	Scope() AudienceScope
	audience()
}

// Admins targets every directory member with role admin.
type Admins struct{}

// AdminsAndAssistants targets admins and admin assistants.
type AdminsAndAssistants struct{}

// SpecificUsers targets an explicit list of user ids.
type SpecificUsers struct {
	UserIDs []string
}

func (Admins) Scope() AudienceScope              { return ScopeAdmins }
func (AdminsAndAssistants) Scope() AudienceScope { return ScopeAdminsAndAssistants }
func (SpecificUsers) Scope() AudienceScope       { return ScopeSpecificUsers }

func (Admins) audience()              {}
func (AdminsAndAssistants) audience() {}
func (SpecificUsers) audience()       {}

// AudienceSpec is the wire and storage form of an Audience.
type AudienceSpec struct {
	Scope   AudienceScope `json:"scope"`
	UserIDs []string      `json:"user_ids,omitempty"`
}

// SpecOf converts an Audience to its storage form.
func SpecOf(a Audience) AudienceSpec {
	switch v := a.(type) {
	case SpecificUsers:
		ids := make([]string, len(v.UserIDs))
		copy(ids, v.UserIDs)
		return AudienceSpec{Scope: ScopeSpecificUsers, UserIDs: ids}
	case nil:
		return AudienceSpec{}
	default:
		return AudienceSpec{Scope: a.Scope()}
	}
}

// ParseAudience converts a storage form back into an Audience.
func ParseAudience(s AudienceSpec) (Audience, error) {
	switch AudienceScope(strings.ToLower(strings.TrimSpace(string(s.Scope)))) {
	case ScopeAdmins:
		return Admins{}, nil
	case ScopeAdminsAndAssistants:
		return AdminsAndAssistants{}, nil
	case ScopeSpecificUsers:
		ids := make([]string, 0, len(s.UserIDs))
		for _, id := range s.UserIDs {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		return SpecificUsers{UserIDs: ids}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAudience, s.Scope)
	}
}
