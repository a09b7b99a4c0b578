package user

import "time"

type CreateUserRequest struct {
	ClerkID   string `json:"clerkId" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Username  string `json:"username" validate:"required,min=3,max=30"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

type UpdateProfileRequest struct {
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

type LeaderboardEntry struct {
	UserID              string `json:"user_id"`
	Username            string `json:"username"`
	ImageURL            string `json:"image_url,omitempty"`
	LongestStreak       int    `json:"longest_streak"`
	CompletedChallenges int    `json:"completed_challenges"`
	CompletedTasks      int    `json:"completed_tasks"`
	Rank                int    `json:"rank"`
}

type Achievements struct {
	LongestStreak       int       `json:"longest_streak"`
	CurrentStreak       int       `json:"current_streak"`
	CompletedChallenges int       `json:"completed_challenges"`
	CompletedTasks      int       `json:"completed_tasks"`
	MemberSince         time.Time `json:"member_since"`
}
