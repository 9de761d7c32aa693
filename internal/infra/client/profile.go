package client

import (
	"context"
	"net/http"

	"github.com/boddenberg/ev-dealer-bfa-go/internal/domain"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/port"
)

var (
	_ port.ProfileFetcher = (*Backend)(nil)
	_ port.Authenticator  = (*Backend)(nil)
)

// GetUser fetches the canonical profile for userID.
func (c *Backend) GetUser(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	err := c.do(ctx, call{
		op:       "GetUser",
		method:   http.MethodGet,
		path:     "/users/" + idString(userID),
		out:      &profile,
		resource: "user",
		id:       idString(userID),
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// Login checks credentials and returns the signed-in user's profile.
// A 401 from the backend comes back as *domain.ErrUnauthorized.
func (c *Backend) Login(ctx context.Context, email, password string) (*domain.UserProfile, error) {
	var resp domain.BackendLoginResponse
	err := c.do(ctx, call{
		op:     "Login",
		method: http.MethodPost,
		path:   "/auth/login",
		body: map[string]string{
			"email":    email,
			"password": password,
		},
		out:      &resp,
		resource: "credentials",
	})
	if err != nil {
		return nil, err
	}
	if resp.User.ID == 0 {
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}
	return &resp.User, nil
}
