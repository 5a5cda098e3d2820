package domain

// User is the identity attached to a connection by the authentication layer.
// Everything in the real-time layer treats it as opaque, already-verified
// data; no authorization decisions are made here.
type User struct {
	Username string `json:"username"`
}
