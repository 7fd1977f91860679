package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/crypto/bcrypt"

	"github.com/velvetbrow/studio/internal/config"
	httperrors "github.com/velvetbrow/studio/internal/http/errors"
)

var (
	ErrNoCredentials      = errors.New("missing bearer token")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// TokenVerifier validates a bearer ID token from the identity provider.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*Principal, error)
}

// Service authenticates admin API callers with either a static token
// (compared against a bcrypt hash) or an OIDC ID token.
type Service struct {
	tokenHash []byte
	verifier  TokenVerifier
}

func NewService(tokenHash string, verifier TokenVerifier) *Service {
	s := &Service{verifier: verifier}
	if tokenHash != "" {
		s.tokenHash = []byte(tokenHash)
	}
	return s
}

// NewServiceFromConfig builds the service, discovering the OIDC provider when
// an issuer is configured.
func NewServiceFromConfig(ctx context.Context, cfg *config.Config) (*Service, error) {
	var verifier TokenVerifier
	if cfg.Admin.OIDCIssuerURL != "" {
		v, err := NewOIDCVerifier(ctx, cfg.Admin.OIDCIssuerURL, cfg.Admin.OIDCClientID)
		if err != nil {
			return nil, err
		}
		verifier = v
	}
	return NewService(cfg.Admin.TokenHash, verifier), nil
}

// Authenticate checks the request's bearer token.
func (s *Service) Authenticate(ctx context.Context, r *http.Request) (*Principal, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return nil, ErrNoCredentials
	}

	if len(s.tokenHash) > 0 {
		if err := bcrypt.CompareHashAndPassword(s.tokenHash, []byte(raw)); err == nil {
			return &Principal{Subject: "admin", Method: "token"}, nil
		}
	}
	if s.verifier != nil {
		p, err := s.verifier.Verify(ctx, raw)
		if err == nil {
			return p, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return nil, ErrInvalidCredentials
}

// RequireAdmin rejects requests without valid admin credentials.
func (s *Service) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := s.Authenticate(r.Context(), r)
		if err != nil {
			if !errors.Is(err, ErrNoCredentials) {
				httperrors.LogInfo(r, "admin auth rejected: "+err.Error())
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="studio admin"`)
			httperrors.Write(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// HashToken returns the bcrypt hash to put in APP_ADMIN_TOKEN_HASH.
func HashToken(token string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

type oidcVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer and verifies ID tokens issued to clientID.
func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string) (TokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider %s: %w", issuerURL, err)
	}
	return &oidcVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

func (v *oidcVerifier) Verify(ctx context.Context, rawToken string) (*Principal, error) {
	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	var claims struct {
		Email string `json:"email"`
	}
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	return &Principal{Subject: token.Subject, Email: claims.Email, Method: "oidc"}, nil
}
