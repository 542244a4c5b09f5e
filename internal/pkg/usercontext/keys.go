package usercontext

// Shared Locals/session keys. KeyUserID and KeyIsAdmin are written into the
// session by the authentication service.
const (
	KeyContext       = "USER_CONTEXT"
	KeyUserID        = "user_id"
	KeyUsername      = "username"
	KeyIsAdmin       = "is_admin"
	KeyFromProtected = "from_protected"
)
