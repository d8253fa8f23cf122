package instagram

import (
	"fmt"
	"net/url"
)

const (
	// BaseURL is the base URL for the Instagram web API.
	BaseURL = "https://www.instagram.com"

	// ProfileEndpoint returns public profile metadata for one username.
	ProfileEndpoint = "/api/v1/users/web_profile_info/"

	// ReelsEndpoint returns the active story reels for a set of user ids.
	ReelsEndpoint = "/api/v1/feed/reels_media/"

	// AppID identifies the web client to the API.
	AppID = "936619743392459"
)

// ProfileURL constructs the URL for fetching a user's profile.
func ProfileURL(base, username string) string {
	params := url.Values{}
	params.Set("username", username)
	return fmt.Sprintf("%s%s?%s", base, ProfileEndpoint, params.Encode())
}

// ReelsURL constructs the URL for fetching a user's active stories.
func ReelsURL(base, userID string) string {
	params := url.Values{}
	params.Set("reel_ids", userID)
	return fmt.Sprintf("%s%s?%s", base, ReelsEndpoint, params.Encode())
}

// IsValidUsername checks a username against Instagram's naming rules:
// letters, digits, periods and underscores, at most 30 characters.
func IsValidUsername(username string) bool {
	if username == "" || len(username) > 30 {
		return false
	}
	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '_') {
			return false
		}
	}
	return true
}

// SanitizeUsername strips a leading @ and trailing slashes or spaces.
func SanitizeUsername(username string) string {
	if username == "" {
		return ""
	}
	if username[0] == '@' {
		username = username[1:]
	}
	for len(username) > 0 && (username[len(username)-1] == '/' || username[len(username)-1] == ' ') {
		username = username[:len(username)-1]
	}
	return username
}
