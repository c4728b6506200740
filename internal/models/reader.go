package models

import "time"

// Reader represents a reader account in the system.
type Reader struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Password    Credential `json:"-"` // Never expose this to the client
	IsActive    bool       `json:"isActive"`
	IsStaff     bool       `json:"isStaff"`
	IsSuperuser bool       `json:"isSuperuser"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// SetPassword replaces the credential with a raw password; it is hashed on the next save.
func (r *Reader) SetPassword(password string) {
	r.Password = RawCredential(password)
}

// CheckPassword verifies password against the stored credential.
func (r *Reader) CheckPassword(password string) bool {
	return r.Password.Verify(password)
}
