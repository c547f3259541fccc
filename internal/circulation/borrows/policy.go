package borrows

import "LIBRA-backend/internal/platform/auth"

type Operation string

const (
	OpBorrow Operation = "borrow"
	OpReturn Operation = "return"
	OpList   Operation = "list"
)

// Ownership は操作対象の持ち主。返却では貸出の学生と書籍の所属図書館。
type Ownership struct {
	StudentID string
	LibraryID string
}

// Scope は一覧で見える範囲。All=false で StudentID/LibraryID が両方空なら何も見えない。
type Scope struct {
	All       bool
	StudentID string
	LibraryID string
}

// policy はロールごとの権限表。ロール分岐はここ以外に書かない。
type policy interface {
	allows(op Operation, o Ownership) bool
	scope() Scope
}

type studentPolicy struct{ userID string }

func (p studentPolicy) allows(op Operation, o Ownership) bool {
	switch op {
	case OpBorrow, OpList:
		return true
	case OpReturn:
		return o.StudentID == p.userID
	}
	return false
}

func (p studentPolicy) scope() Scope { return Scope{StudentID: p.userID} }

// 図書館オーナーは自館の書籍に関する貸出のみ扱う
type ownerPolicy struct{ libraryID string }

func (p ownerPolicy) allows(op Operation, o Ownership) bool {
	if p.libraryID == "" {
		return false
	}
	switch op {
	case OpList:
		return true
	case OpReturn:
		return o.LibraryID == p.libraryID
	}
	return false
}

func (p ownerPolicy) scope() Scope { return Scope{LibraryID: p.libraryID} }

type adminPolicy struct{}

func (adminPolicy) allows(op Operation, _ Ownership) bool {
	return op == OpReturn || op == OpList
}

func (adminPolicy) scope() Scope { return Scope{All: true} }

type denyPolicy struct{}

func (denyPolicy) allows(Operation, Ownership) bool { return false }
func (denyPolicy) scope() Scope                     { return Scope{} }

func policyFor(p auth.Principal) policy {
	switch p.Role {
	case auth.RoleStudent:
		if p.UserID == "" {
			return denyPolicy{}
		}
		return studentPolicy{userID: p.UserID}
	case auth.RoleLibraryOwner:
		return ownerPolicy{libraryID: p.LibraryID}
	case auth.RoleAdmin:
		return adminPolicy{}
	}
	return denyPolicy{}
}

// Authorize は principal が対象 o に対して op を実行できるかを返す。
func Authorize(p auth.Principal, op Operation, o Ownership) bool {
	return policyFor(p).allows(op, o)
}

// ScopeFor は一覧の可視範囲を返す。ok=false なら一覧自体が不可。
func ScopeFor(p auth.Principal) (Scope, bool) {
	pol := policyFor(p)
	if !pol.allows(OpList, Ownership{}) {
		return Scope{}, false
	}
	return pol.scope(), true
}
