package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrAlreadyExists      = errors.New("already exists")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("authentication failed")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidAccount     = errors.New("invalid account")
	// 貸出履歴などから参照されていて削除できない
	ErrReferenced         = errors.New("account is referenced")
)

type tokenClaims struct {
	Role      string `json:"role"`
	LibraryID string `json:"library_id,omitempty"`
	jwt.RegisteredClaims
}

type Service struct {
	store  AccountStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(store AccountStore, secret []byte, ttl time.Duration) *Service {
	return &Service{store: store, secret: secret, ttl: ttl, now: time.Now}
}

type LoginResult struct {
	Token string    `json:"token"`
	User  Principal `json:"user"`
}

func (s *Service) Login(ctx context.Context, id, password string) (*LoginResult, error) {
	acct, err := s.store.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if acct == nil || acct.IsDisabled {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	p := acct.Principal()
	token, err := s.IssueToken(p)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: p}, nil
}

// IssueToken は Principal を sub/role/library_id クレームに載せて署名する。
func (s *Service) IssueToken(p Principal) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Role:      string(p.Role),
		LibraryID: p.LibraryID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	return token.SignedString(s.secret)
}

// Register は LIBRARY_OWNER / ADMIN アカウントを作成する。
// STUDENT はプロフィールと同時に students 側で作成する。
func (s *Service) Register(ctx context.Context, id, password string, role Role, libraryID string) error {
	id = strings.TrimSpace(id)
	if id == "" || len(password) < 8 {
		return ErrInvalidAccount
	}
	if role != RoleLibraryOwner && role != RoleAdmin {
		return ErrInvalidAccount
	}
	if role == RoleLibraryOwner && libraryID == "" {
		return ErrInvalidAccount
	}
	if role == RoleAdmin {
		libraryID = ""
	}

	exists, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if exists != nil {
		return ErrAlreadyExists
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.store.Create(ctx, &Account{
		ID:           id,
		PasswordHash: hash,
		Role:         role,
		LibraryID:    libraryID,
	})
}

func (s *Service) Delete(ctx context.Context, id string) error {
	n, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
