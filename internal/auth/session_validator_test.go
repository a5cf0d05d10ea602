package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSessionSigningSecret = "secret"
	testSessionCookieName    = "app_session"
	testSessionUserID        = "user-123"
	testSessionAccessToken   = "gho_test_token"
)

func testSubject() SessionSubject {
	return SessionSubject{
		UserID:      testSessionUserID,
		Login:       "octocat",
		Name:        "Mona Lisa",
		Email:       "mona@example.com",
		AvatarURL:   "https://avatars.example.com/u/1",
		AccessToken: testSessionAccessToken,
	}
}

func newTestPair(t *testing.T, clock func() time.Time) (*SessionIssuer, *SessionValidator) {
	t.Helper()
	issuer, err := NewSessionIssuer(SessionIssuerConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		TTL:           time.Hour,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("failed to construct issuer: %v", err)
	}
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		CookieName:    testSessionCookieName,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}
	return issuer, validator
}

func TestSessionRoundTripCarriesProfileAndAccessToken(t *testing.T) {
	clockNow := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	issuer, validator := newTestPair(t, func() time.Time { return clockNow })

	signed, expiresAt, err := issuer.Issue(testSubject())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if !expiresAt.Equal(clockNow.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %s", expiresAt)
	}

	claims, err := validator.ValidateToken(signed)
	if err != nil {
		t.Fatalf("unexpected validation failure: %v", err)
	}
	if claims.UserID != testSessionUserID || claims.Subject != testSessionUserID {
		t.Fatalf("unexpected user id: %s / %s", claims.UserID, claims.Subject)
	}
	if claims.AccessToken != testSessionAccessToken {
		t.Fatalf("unexpected access token %q", claims.AccessToken)
	}
	if claims.DisplayName() != "Mona Lisa" {
		t.Fatalf("unexpected display name %q", claims.DisplayName())
	}
	if claims.Issuer != defaultSessionIssuer {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
}

func TestSessionIssuerRequiresUserAndAccessToken(t *testing.T) {
	issuer, _ := newTestPair(t, nil)

	subject := testSubject()
	subject.UserID = ""
	if _, _, err := issuer.Issue(subject); err == nil {
		t.Fatalf("expected error for missing user id")
	}

	subject = testSubject()
	subject.AccessToken = " "
	if _, _, err := issuer.Issue(subject); err == nil {
		t.Fatalf("expected error for missing access token")
	}

	if _, err := NewSessionIssuer(SessionIssuerConfig{}); err == nil {
		t.Fatalf("expected constructor error for missing secret")
	}
}

func TestSessionValidatorRejectsExpiredToken(t *testing.T) {
	issuedAt := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	issuer, _ := newTestPair(t, func() time.Time { return issuedAt })
	_, validator := newTestPair(t, func() time.Time { return issuedAt.Add(2 * time.Hour) })

	signed, _, err := issuer.Issue(testSubject())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, err := validator.ValidateToken(signed); !errors.Is(err, ErrExpiredSessionToken) {
		t.Fatalf("expected ErrExpiredSessionToken, got %v", err)
	}
}

func TestSessionValidatorRejectsForeignSignatureAndIssuer(t *testing.T) {
	_, validator := newTestPair(t, nil)

	foreign, err := NewSessionIssuer(SessionIssuerConfig{SigningSecret: []byte("other-secret")})
	if err != nil {
		t.Fatalf("failed to construct issuer: %v", err)
	}
	signed, _, err := foreign.Issue(testSubject())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := validator.ValidateToken(signed); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected ErrInvalidSessionToken, got %v", err)
	}

	otherIssuer, err := NewSessionIssuer(SessionIssuerConfig{SigningSecret: []byte(testSessionSigningSecret), Issuer: "someone-else"})
	if err != nil {
		t.Fatalf("failed to construct issuer: %v", err)
	}
	signed, _, err = otherIssuer.Issue(testSubject())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := validator.ValidateToken(signed); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected issuer mismatch to fail, got %v", err)
	}
}

func TestSessionValidatorRequiresAccessTokenClaim(t *testing.T) {
	_, validator := newTestPair(t, nil)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		UserID: testSessionUserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    defaultSessionIssuer,
			Subject:   testSessionUserID,
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSessionSigningSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	if _, err := validator.ValidateToken(signed); !errors.Is(err, ErrMissingSessionAccessToken) {
		t.Fatalf("expected ErrMissingSessionAccessToken, got %v", err)
	}
}

func TestSessionValidatorValidateRequestUsesCookie(t *testing.T) {
	issuer, validator := newTestPair(t, nil)

	signed, _, err := issuer.Issue(testSubject())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	request := httptest.NewRequest(http.MethodGet, "/dashboard", http.NoBody)
	request.AddCookie(&http.Cookie{Name: testSessionCookieName, Value: signed})

	claims, err := validator.ValidateRequest(request)
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if claims.Login != "octocat" {
		t.Fatalf("unexpected login: %s", claims.Login)
	}

	bare := httptest.NewRequest(http.MethodGet, "/dashboard", http.NoBody)
	if _, err := validator.ValidateRequest(bare); !errors.Is(err, ErrMissingSessionToken) {
		t.Fatalf("expected ErrMissingSessionToken, got %v", err)
	}
}
