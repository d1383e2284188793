package course

// VideoCounts is the watch progress attached to a purchased course.
type VideoCounts struct {
	TotalVideos        int `json:"totalVideos"`
	TotalVideosWatched int `json:"totalVideosWatched"`
}

// EnrichedCourse is the course shape returned to the purchases endpoint.
// VideoCounts is nil when the course has no videos, which drops both
// counters from the JSON.
type EnrichedCourse struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	ImageURL       string `json:"imageUrl"`
	Description    string `json:"description"`
	AppxCourseID   int    `json:"appxCourseId"`
	OpenToEveryone bool   `json:"openToEveryone"`
	Slug           string `json:"slug"`
	DiscordRoleID  string `json:"discordRoleId"`
	*VideoCounts
}
