package course

const (
	ContentTypeFolder = "folder"
	ContentTypeVideo  = "video"
)

// Content is a node of the content tree. Videos hang off a folder through
// ParentID.
type Content struct {
	ID       string  `json:"id" gorm:"primaryKey"`
	Type     string  `json:"type" gorm:"index;default:'folder'"` // folder, video
	Title    string  `json:"title"`
	ParentID *string `json:"parentId" gorm:"index"`
	Hidden   bool    `json:"hidden" gorm:"default:false"`
}

// VideoProgress records how far a user got through one video.
type VideoProgress struct {
	ID               uint   `json:"id" gorm:"primaryKey"`
	UserID           string `json:"userId" gorm:"uniqueIndex:idx_user_content;not null"`
	ContentID        string `json:"contentId" gorm:"uniqueIndex:idx_user_content;not null"`
	CurrentTimestamp int    `json:"currentTimestamp" gorm:"default:0"` // seconds
	MarkAsCompleted  bool   `json:"markAsCompleted" gorm:"default:false"`
}
