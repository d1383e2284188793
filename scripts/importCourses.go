package main

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	"coursehub/config"
	"coursehub/database"
	"coursehub/logger"
	courseModels "coursehub/models/course"

	"gorm.io/gorm"
)

// Imports the course catalog from a CSV file with the header
// id,title,imageUrl,description,appxCourseId,openToEveryone,slug,discordRoleId,contentIds
// where contentIds is a "|" separated list in display order.
func main() {
	config.LoadConfig()
	if err := logger.InitLogger(logger.LogConfig{Level: config.AppConfig.LogLevel, Format: "console"}); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize logger")
	}
	database.ConnectDb()

	path := "courses.csv"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	file, err := os.Open(path)
	if err != nil {
		logger.Logger.Fatal().Err(err).Str("path", path).Msg("Failed to open CSV file")
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to read CSV")
	}
	if len(records) < 2 {
		logger.Logger.Fatal().Msg("CSV file is empty or has only headers")
	}

	stats := importCourses(database.Database.Db, records)

	logger.Info().
		Int("imported", stats.imported).
		Int("skipped", stats.skipped).
		Int("failed", stats.failed).
		Msg("=== Import Complete ===")
}

type importStats struct {
	imported int
	skipped  int
	failed   int
}

// importCourses upserts every row and replaces the course's content links.
// records[0] is the header.
func importCourses(db *gorm.DB, records [][]string) importStats {
	var stats importStats

	headerIndex := make(map[string]int)
	for i, h := range records[0] {
		headerIndex[strings.TrimSpace(h)] = i
	}

	for i, row := range records[1:] {
		course := parseCourse(row, headerIndex)
		if course.ID == "" || course.Slug == "" {
			stats.skipped++
			continue
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			content := course.Content
			course.Content = nil
			if err := tx.Save(&course).Error; err != nil {
				return err
			}
			if err := tx.Where("course_id = ?", course.ID).Delete(&courseModels.CourseContent{}).Error; err != nil {
				return err
			}
			if len(content) == 0 {
				return nil
			}
			return tx.Create(&content).Error
		})
		if err != nil {
			logger.Error().Err(err).Int("row", i+2).Str("course", course.ID).Msg("Error importing course")
			stats.failed++
			continue
		}
		stats.imported++
	}
	return stats
}

func parseCourse(row []string, headerIndex map[string]int) courseModels.Course {
	course := courseModels.Course{
		ID:             getField(row, headerIndex, "id"),
		Title:          getField(row, headerIndex, "title"),
		ImageURL:       getField(row, headerIndex, "imageUrl"),
		Description:    getField(row, headerIndex, "description"),
		AppxCourseID:   parseInt(getField(row, headerIndex, "appxCourseId")),
		OpenToEveryone: parseBool(getField(row, headerIndex, "openToEveryone")),
		Slug:           getField(row, headerIndex, "slug"),
		DiscordRoleID:  getField(row, headerIndex, "discordRoleId"),
	}

	position := 0
	for _, contentID := range strings.Split(getField(row, headerIndex, "contentIds"), "|") {
		contentID = strings.TrimSpace(contentID)
		if contentID == "" {
			continue
		}
		course.Content = append(course.Content, courseModels.CourseContent{
			CourseID:  course.ID,
			ContentID: contentID,
			Position:  position,
		})
		position++
	}
	return course
}

// getField safely gets a field from the row by header name
func getField(row []string, headerIndex map[string]int, field string) string {
	if idx, ok := headerIndex[field]; ok && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func parseInt(s string) int {
	val, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return val
}

func parseBool(s string) bool {
	val, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return val
}
