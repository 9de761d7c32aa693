package domain

import "strings"

// ============================================================
// Dashboard identity
// ============================================================

// User is the identity the dashboard acts for. It is passed around by value;
// changing a field means producing a new snapshot.
type User struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Status      string `json:"status,omitempty"`
	Role        Role   `json:"role"`
	DealerID    *int64 `json:"dealerId,omitempty"`
}

// Guest returns the identity used when no usable session exists.
func Guest() User {
	return User{DisplayName: "Guest"}
}

// IsGuest reports whether u is an anonymous identity.
func (u User) IsGuest() bool {
	return u.ID == 0
}

// Validate checks the dealer affiliation invariant.
func (u User) Validate() error {
	if u.ID <= 0 {
		return &ErrValidation{Field: "id", Message: "user id is required"}
	}
	if u.Role.IsDealerScoped() && u.DealerID == nil {
		return &ErrValidation{Field: "dealerId", Message: "dealer roles require a dealer affiliation"}
	}
	return nil
}

// Incomplete reports whether a profile sync could fill in missing fields.
func (u User) Incomplete() bool {
	if u.IsGuest() {
		return false
	}
	if strings.TrimSpace(u.DisplayName) == "" || !u.Role.IsValid() {
		return true
	}
	return u.Role.IsDealerScoped() && u.DealerID == nil
}

// InDealer reports whether u belongs to the given dealer.
func (u User) InDealer(dealerID int64) bool {
	return u.DealerID != nil && *u.DealerID == dealerID
}

// WithProfile returns a copy of u with the authoritative profile fields applied.
// Empty remote values never erase known local ones; a valid remote role always wins.
func (u User) WithProfile(p UserProfile) User {
	merged := u
	if name := strings.TrimSpace(p.FullName); name != "" {
		merged.DisplayName = name
	}
	if p.Email != "" {
		merged.Email = p.Email
	}
	if p.PhoneNumber != "" {
		merged.Phone = p.PhoneNumber
	}
	if p.Status != "" {
		merged.Status = p.Status
	}
	if role, ok := ParseRole(p.Role); ok {
		merged.Role = role
	}
	if p.DealerID != nil {
		id := *p.DealerID
		merged.DealerID = &id
	} else if merged.Role.IsEVM() {
		merged.DealerID = nil
	}
	return merged
}

// UserProfile is the canonical profile served by the backend at GET /users/{id}.
type UserProfile struct {
	ID          int64  `json:"id"`
	DealerID    *int64 `json:"dealerId"`
	Role        string `json:"role"`
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Status      string `json:"status"`
}

// ToUser builds a User from a freshly fetched profile.
func (p UserProfile) ToUser() User {
	return User{ID: p.ID}.WithProfile(p)
}
