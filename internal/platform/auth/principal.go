package auth

import (
	"github.com/gin-gonic/gin"
)

type Role string

const (
	RoleStudent      Role = "STUDENT"
	RoleLibraryOwner Role = "LIBRARY_OWNER"
	RoleAdmin        Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleLibraryOwner, RoleAdmin:
		return true
	}
	return false
}

// Principal は検証済みトークンから解決した呼び出し元。
// LibraryID は LIBRARY_OWNER と STUDENT のみ持つ。
type Principal struct {
	UserID    string `json:"id"`
	Role      Role   `json:"role"`
	LibraryID string `json:"libraryId,omitempty"`
}

const ctxPrincipalKey = "auth.principal"

// PrincipalFrom は RequireAuth が詰めた Principal を取り出す。
func PrincipalFrom(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(ctxPrincipalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// WithPrincipal はテストや内部呼び出しで Principal を直接設定する。
func WithPrincipal(c *gin.Context, p Principal) {
	c.Set(ctxPrincipalKey, p)
}
