package github

import (
	"strconv"

	"github.com/goliatone/go-storefront-auth/social"
)

// githubUser is the subset of GET /user the sign in needs
type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// githubEmail is one entry of GET /user/emails
type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// primaryVerifiedEmail ignores the public profile email, it is user editable
// and never verified
func primaryVerifiedEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	return ""
}

func mapProfile(user *githubUser, verifiedEmail string) *social.SocialProfile {
	profile := &social.SocialProfile{
		Provider:       ProviderName,
		ProviderUserID: strconv.FormatInt(user.ID, 10),
		Username:       user.Login,
		Name:           user.Name,
		AvatarURL:      user.AvatarURL,
	}
	if verifiedEmail != "" {
		profile.Email = verifiedEmail
		profile.EmailVerified = true
	}
	return profile
}
