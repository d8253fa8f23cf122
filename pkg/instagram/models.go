package instagram

// profileResponse is the top-level payload of the web profile endpoint.
type profileResponse struct {
	RequiresToLogin bool   `json:"requires_to_login"`
	Data            data   `json:"data"`
	Status          string `json:"status"`
	Message         string `json:"message"`
}

type data struct {
	User profileUser `json:"user"`
}

type profileUser struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	FullName        string `json:"full_name"`
	IsPrivate       bool   `json:"is_private"`
	IsVerified      bool   `json:"is_verified"`
	FollowedByCount struct {
		Count int `json:"count"`
	} `json:"edge_followed_by"`
}

// reelsResponse is the payload of the reels media endpoint, keyed by the
// requested reel ids.
type reelsResponse struct {
	ReelsMedia []reel `json:"reels_media"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

type reel struct {
	ID    string     `json:"id"`
	Items []reelItem `json:"items"`
}

type reelItem struct {
	ID        string `json:"id"`
	TakenAt   int64  `json:"taken_at"`
	MediaType int    `json:"media_type"`
}

// Profile is the subset of a user profile the monitor cares about.
type Profile struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	FullName      string `json:"fullName"`
	IsPrivate     bool   `json:"isPrivate"`
	IsVerified    bool   `json:"isVerified"`
	FollowerCount int    `json:"followerCount"`
}
