package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/prepium/ieltsprep-backend/internal/config"
	"github.com/prepium/ieltsprep-backend/internal/database"
	"github.com/prepium/ieltsprep-backend/internal/logger"
	"github.com/prepium/ieltsprep-backend/internal/model"
)

// seed-exam loads a full exam definition from a JSON file and inserts it as
// a published exam. Section and question IDs are generated; question order
// follows the file.
func main() {
	var file string
	flag.StringVar(&file, "file", "exam.json", "Path to the exam JSON file")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	raw, err := os.ReadFile(file)
	if err != nil {
		log.Fatal().Err(err).Str("file", file).Msg("Failed to read exam file")
	}

	var exam model.Exam
	if err := json.Unmarshal(raw, &exam); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse exam file")
	}
	if exam.ID == uuid.Nil {
		exam.ID = uuid.New()
	}
	if exam.Status == "" {
		exam.Status = model.ExamStatusPublished
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	settings, _ := json.Marshal(exam.Settings)
	if _, err := tx.Exec(ctx,
		`INSERT INTO exams (id, title, settings, status) VALUES ($1, $2, $3, $4)`,
		exam.ID, exam.Title, settings, exam.Status,
	); err != nil {
		log.Fatal().Err(err).Msg("Failed to insert exam")
	}

	order := 0
	for i := range exam.Sections {
		sec := &exam.Sections[i]
		if sec.ID == uuid.Nil {
			sec.ID = uuid.New()
		}
		sec.ExamID = exam.ID
		if _, err := tx.Exec(ctx,
			`INSERT INTO sections (id, exam_id, title, audio_url, passage, play_count_allowed, instructions, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			sec.ID, exam.ID, sec.Title, sec.AudioURL, sec.Passage,
			sec.PlayCountAllowed, sec.Instructions, i+1,
		); err != nil {
			log.Fatal().Err(err).Str("section", sec.Title).Msg("Failed to insert section")
		}
	}

	for i := range exam.Questions {
		q := &exam.Questions[i]
		if q.ID == uuid.Nil {
			q.ID = uuid.New()
		}
		if q.Order == 0 {
			order++
			q.Order = order
		} else {
			order = q.Order
		}
		if q.SectionID == uuid.Nil {
			// Orders map to sections in fixed blocks of ten.
			part := model.PartForOrder(q.Order)
			if part < 1 || part > len(exam.Sections) {
				log.Fatal().Int("order", q.Order).Msg("Question order maps outside the section list")
			}
			q.SectionID = exam.Sections[part-1].ID
		}

		payload, _ := json.Marshal(map[string]any{
			"options":      q.Options,
			"table_grid":   q.TableGrid,
			"gap_numbers":  q.GapNumbers,
			"drag_items":   q.DragItems,
			"drop_zones":   q.DropZones,
			"headings":     q.Headings,
			"paragraphs":   q.Paragraphs,
			"word_limit":   q.WordLimit,
			"image_url":    q.ImageURL,
			"instructions": q.Instructions,
		})
		if _, err := tx.Exec(ctx,
			`INSERT INTO questions (id, section_id, question_type, order_num, body, payload)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			q.ID, q.SectionID, q.Type, q.Order, q.Body, payload,
		); err != nil {
			log.Fatal().Err(err).Str("question", q.ID.String()).Msg("Failed to insert question")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to commit")
	}

	fmt.Printf("Seeded exam %s (%d sections, %d questions)\n",
		exam.ID, len(exam.Sections), len(exam.Questions))
}
