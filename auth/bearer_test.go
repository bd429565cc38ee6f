package auth

import (
	"errors"
	"net/http"
	"testing"

	"firebase.google.com/go/v4/auth"
)

func TestParseBearerToken(t *testing.T) {
	tests := []struct {
		name          string
		authorization string
		expectedToken string
		expectedErr   error
	}{
		{
			name:          "Missing Authorization Header",
			authorization: "",
			expectedToken: "",
			expectedErr:   errMissingAuthorizationHeader,
		},
		{
			name:          "Invalid Authorization Header - No Bearer",
			authorization: "Basic some_token",
			expectedToken: "",
			expectedErr:   errInvalidAuthorizationHeader,
		},
		{
			name:          "Invalid Authorization Header - Malformed Bearer Token",
			authorization: "BearerTokenWithoutSpace",
			expectedToken: "",
			expectedErr:   errInvalidAuthorizationHeader,
		},
		{
			name:          "Valid Bearer Token",
			authorization: "Bearer some_valid_token",
			expectedToken: "some_valid_token",
			expectedErr:   nil,
		},
		{
			name:          "Valid Bearer Token with extra spaces",
			authorization: "Bearer   some_valid_token   ",
			expectedToken: "some_valid_token",
			expectedErr:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &http.Request{
				Header: http.Header{
					authorizationHeader: []string{tt.authorization},
				},
			}

			token, err := bearerTokenFromRequest(req)
			if token != tt.expectedToken {
				t.Errorf("expected token %q, got %q", tt.expectedToken, token)
			}

			if err != tt.expectedErr {
				t.Errorf("expected error %v, got %v", tt.expectedErr, err)
			}
		})
	}
}

func TestIdentityFromToken(t *testing.T) {
	tests := []struct {
		name     string
		token    *auth.Token
		expected Identity
		wantErr  bool
	}{
		{
			name:    "nil token",
			token:   nil,
			wantErr: true,
		},
		{
			name:    "empty uid",
			token:   &auth.Token{},
			wantErr: true,
		},
		{
			name: "uid only",
			token: &auth.Token{
				UID: "U1",
			},
			expected: Identity{ID: "U1"},
		},
		{
			name: "profile claims",
			token: &auth.Token{
				UID: "U1",
				Claims: map[string]any{
					"name":    "Ada",
					"picture": "https://example.com/ada.png",
				},
			},
			expected: Identity{ID: "U1", DisplayName: "Ada", PhotoURL: "https://example.com/ada.png"},
		},
		{
			name: "non string claims ignored",
			token: &auth.Token{
				UID:    "U2",
				Claims: map[string]any{"name": 42},
			},
			expected: Identity{ID: "U2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := IdentityFromToken(tt.token)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got identity %+v", id)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != tt.expected {
				t.Errorf("expected %+v, got %+v", tt.expected, id)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := error(&Error{Op: "parse", Err: errMissingAuthorizationHeader})
	if !errors.Is(err, errMissingAuthorizationHeader) {
		t.Errorf("expected errors.Is to find the cause")
	}
	var authErr *Error
	if !errors.As(err, &authErr) || authErr.Op != "parse" {
		t.Errorf("expected errors.As to find *Error")
	}
}
