package course

// Course is a catalog entry. Content lists its top-level content nodes in
// display order.
type Course struct {
	ID             string          `json:"id" gorm:"primaryKey"`
	Title          string          `json:"title"`
	ImageURL       string          `json:"imageUrl"`
	Description    string          `json:"description"`
	AppxCourseID   int             `json:"appxCourseId" gorm:"index"`
	OpenToEveryone bool            `json:"openToEveryone" gorm:"default:false"`
	Slug           string          `json:"slug" gorm:"uniqueIndex"`
	DiscordRoleID  string          `json:"discordRoleId"`
	Content        []CourseContent `json:"content,omitempty" gorm:"foreignKey:CourseID"`
}

// CourseContent links a course to one of its content nodes.
type CourseContent struct {
	CourseID  string `json:"courseId" gorm:"primaryKey"`
	ContentID string `json:"contentId" gorm:"primaryKey"`
	Position  int    `json:"position" gorm:"default:0"`
}
