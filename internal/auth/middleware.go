package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/touripk/support-desk/internal/domain"
	"github.com/touripk/support-desk/internal/repository"
	apperrors "github.com/touripk/support-desk/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	User  *domain.User
	Actor domain.Actor
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens    *TokenManager
	users     repository.UserRepository
	companies repository.CompanyRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository, companies repository.CompanyRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, companies: companies}
}

// Handle enforces authentication for protected routes and resolves the caller's role once.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.GetByID(c.UserContext(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}
	if !user.IsActive {
		return apperrors.NewUnauthorized("account disabled")
	}

	actor := domain.Actor{UserID: user.ID, Role: user.Role()}
	if actor.Role == domain.RoleCompany {
		companies, err := m.companies.ListByOwner(c.UserContext(), user.ID)
		if err != nil {
			return apperrors.MapError(err)
		}
		actor.CompanyIDs = make([]string, 0, len(companies))
		for _, company := range companies {
			actor.CompanyIDs = append(actor.CompanyIDs, company.ID)
		}
	}

	c.Locals(principalKey, &Principal{User: user, Actor: actor})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
