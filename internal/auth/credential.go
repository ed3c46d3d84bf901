package auth

import "strings"

// Credential is what a caller presents to sign in. The set of variants is
// closed: only the types in this file implement it.
type Credential interface {
	credential()
}

// FederatedProfile is a profile already vouched for by an external identity
// provider.
type FederatedProfile struct {
	Email   string
	Name    string
	Picture string
}

// LocalCredential is an email and password pair checked against the stored
// bcrypt hash.
type LocalCredential struct {
	Email    string
	Password string
}

func (FederatedProfile) credential() {}
func (LocalCredential) credential()  {}

// FromGoogle converts a verified Google profile into a credential.
func FromGoogle(u *GoogleUser) FederatedProfile {
	return FederatedProfile{Email: u.Email, Name: u.Name, Picture: u.Picture}
}

// DisplayName is the username given to an account provisioned from this
// profile: the provider's display name, or the normalized email's local part.
func (p FederatedProfile) DisplayName() string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(NormalizeEmail(p.Email), "@")
	return local
}

// NormalizeEmail lowercases and trims an address for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
