package common

// Cookie names carrying the credential pair between client and server.
const (
	AccessCookieName  = "access"
	RefreshCookieName = "refresh"
)
