package models

// User captures the identity of the signed-in account as the client sees it.
type User struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	HasPreferences bool   `json:"hasPreferences"`
}

// Preferences holds the onboarding survey answers.
type Preferences struct {
	Assets       []string `json:"assets"`
	InvestorType string   `json:"investorType"`
	ContentTypes []string `json:"contentTypes"`
}

// Profile is the GET /profile response body.
type Profile struct {
	ID          string       `json:"_id"`
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

// User derives the session identity. Preferences count as set once an investor type exists.
func (p Profile) User() User {
	return User{
		ID:             p.ID,
		Name:           p.Name,
		Email:          p.Email,
		HasPreferences: p.Preferences != nil && p.Preferences.InvestorType != "",
	}
}
