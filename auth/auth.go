package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
)

const (
	nameClaim    = "name"
	pictureClaim = "picture"
)

// Identity is the verified caller. It is passed explicitly to every operation.
type Identity struct {
	ID          string
	DisplayName string
	PhotoURL    string
}

// Gateway verifies callers and ends their sessions.
type Gateway interface {
	Authenticate(r *http.Request) (Identity, error)
	SignOut(ctx context.Context, uid string) error
}

// Error is returned for any authentication failure.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("auth %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var errEmptyUID = errors.New("token has no uid")

// Firebase verifies Firebase ID tokens and rejects revoked sessions.
type Firebase struct {
	client *auth.Client
}

func NewFirebase(ctx context.Context, app *firebase.App) (*Firebase, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return &Firebase{client: client}, nil
}

func (f *Firebase) Authenticate(req *http.Request) (Identity, error) {
	jwtToken, err := bearerTokenFromRequest(req)
	if err != nil {
		return Identity{}, &Error{Op: "parse", Err: err}
	}
	token, err := f.client.VerifyIDTokenAndCheckRevoked(req.Context(), jwtToken)
	if err != nil {
		return Identity{}, &Error{Op: "verify", Err: err}
	}
	id, err := IdentityFromToken(token)
	if err != nil {
		return Identity{}, &Error{Op: "verify", Err: err}
	}
	return id, nil
}

// SignOut revokes refresh tokens, so tokens minted before now fail verification.
func (f *Firebase) SignOut(ctx context.Context, uid string) error {
	if err := f.client.RevokeRefreshTokens(ctx, uid); err != nil {
		return &Error{Op: "sign out", Err: err}
	}
	return nil
}

func IdentityFromToken(token *auth.Token) (Identity, error) {
	if token == nil || token.UID == "" {
		return Identity{}, errEmptyUID
	}
	id := Identity{ID: token.UID}
	if name, ok := token.Claims[nameClaim].(string); ok {
		id.DisplayName = name
	}
	if picture, ok := token.Claims[pictureClaim].(string); ok {
		id.PhotoURL = picture
	}
	return id, nil
}
