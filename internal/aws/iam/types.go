package iam

import "time"

type IAMUser struct {
	Name      string
	UserID    string
	ARN       string
	Path      string
	CreatedAt time.Time
}

type IAMGroup struct {
	Name      string
	GroupID   string
	ARN       string
	Path      string
	CreatedAt time.Time
}

type IAMAttachedPolicy struct {
	Name string
	ARN  string
}

// IAMAccessKey is access key metadata; the secret is only ever returned at creation.
type IAMAccessKey struct {
	ID        string
	Status    string // "Active", "Inactive"
	CreatedAt time.Time
}

type IAMIssuedKey struct {
	ID     string
	Secret string
}

type IAMLoginProfile struct {
	UserName              string
	CreatedAt             time.Time
	PasswordResetRequired bool
}
