package watcher

import (
	"context"
	"time"

	"igmonitor/pkg/instagram"
	"igmonitor/pkg/schedule"
)

// PrivacyCheck reports whether an account is currently private.
type PrivacyCheck struct {
	client *instagram.Client
}

// NewPrivacyCheck wires a privacy check to the Instagram client.
func NewPrivacyCheck(client *instagram.Client) *PrivacyCheck {
	return &PrivacyCheck{client: client}
}

func (c *PrivacyCheck) Type() schedule.TaskType {
	return schedule.TaskPrivacy
}

func (c *PrivacyCheck) Check(ctx context.Context, username string) (*Result, error) {
	profile, err := c.client.Profile(ctx, username)
	if err != nil {
		return nil, err
	}
	private := profile.IsPrivate
	return &Result{
		Username:  profile.Username,
		FullName:  profile.FullName,
		IsPrivate: &private,
		CheckedAt: time.Now(),
	}, nil
}

// StoriesCheck reports whether an account has active stories.
type StoriesCheck struct {
	client *instagram.Client
}

// NewStoriesCheck wires a stories check to the Instagram client.
func NewStoriesCheck(client *instagram.Client) *StoriesCheck {
	return &StoriesCheck{client: client}
}

func (c *StoriesCheck) Type() schedule.TaskType {
	return schedule.TaskStories
}

func (c *StoriesCheck) Check(ctx context.Context, username string) (*Result, error) {
	profile, err := c.client.Profile(ctx, username)
	if err != nil {
		return nil, err
	}
	// Reels of private accounts the session does not follow come back
	// empty rather than failing.
	count, err := c.client.StoryCount(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	has := count > 0
	return &Result{
		Username:      profile.Username,
		FullName:      profile.FullName,
		HasNewStories: &has,
		StoryCount:    count,
		CheckedAt:     time.Now(),
	}, nil
}
