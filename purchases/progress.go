package purchases

import (
	courseModels "coursehub/models/course"
)

// CompletedSet indexes the ids of the videos a user has completed.
func CompletedSet(progress []courseModels.VideoProgress) map[string]struct{} {
	completed := make(map[string]struct{}, len(progress))
	for _, p := range progress {
		completed[p.ContentID] = struct{}{}
	}
	return completed
}

// EnrichCourses attaches video totals to every course, in input order. A video
// counts towards a course when its parent is one of the course's content
// nodes. Courses without videos carry no counters.
func EnrichCourses(courses []courseModels.Course, videos []courseModels.Content, completed map[string]struct{}) []courseModels.EnrichedCourse {
	// parent content id -> video ids
	videosByParent := make(map[string][]string)
	for _, v := range videos {
		if v.ParentID == nil {
			continue
		}
		videosByParent[*v.ParentID] = append(videosByParent[*v.ParentID], v.ID)
	}

	enriched := make([]courseModels.EnrichedCourse, len(courses))
	for i, c := range courses {
		totalVideos := 0
		totalVideosWatched := 0
		seen := make(map[string]struct{}, len(c.Content))
		for _, cc := range c.Content {
			if _, dup := seen[cc.ContentID]; dup {
				continue
			}
			seen[cc.ContentID] = struct{}{}
			for _, videoID := range videosByParent[cc.ContentID] {
				totalVideos++
				if _, ok := completed[videoID]; ok {
					totalVideosWatched++
				}
			}
		}

		enriched[i] = courseModels.EnrichedCourse{
			ID:             c.ID,
			Title:          c.Title,
			ImageURL:       c.ImageURL,
			Description:    c.Description,
			AppxCourseID:   c.AppxCourseID,
			OpenToEveryone: c.OpenToEveryone,
			Slug:           c.Slug,
			DiscordRoleID:  c.DiscordRoleID,
		}
		if totalVideos > 0 {
			enriched[i].VideoCounts = &courseModels.VideoCounts{
				TotalVideos:        totalVideos,
				TotalVideosWatched: totalVideosWatched,
			}
		}
	}
	return enriched
}
