package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/raphaelgruber/signalroom/internal/models"
	"github.com/raphaelgruber/signalroom/internal/store"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Load catalog entities and comments from a YAML file",
	Long: `Upsert monitored entities and comments into the configured store.

File format:
  entities:
    - name: Taylor Swift
      aliases: [Tay, T-Swift]
      type: person
  comments:
    - id: c1
      text: Taylor was amazing tonight
      likes: 120
      caption: Eras tour night 3
      posted_at: 2026-03-01T20:00:00Z`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

type seedFile struct {
	Entities []seedEntity  `yaml:"entities"`
	Comments []seedComment `yaml:"comments"`
}

type seedEntity struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
	Type    string   `yaml:"type"`
	Active  *bool    `yaml:"active"`
}

type seedComment struct {
	ID       string    `yaml:"id"`
	Text     string    `yaml:"text"`
	Likes    int       `yaml:"likes"`
	Caption  string    `yaml:"caption"`
	PostedAt time.Time `yaml:"posted_at"`
}

// parseSeed decodes and validates a seed document.
func parseSeed(data []byte, now time.Time) ([]models.MonitoredEntity, []models.Comment, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("parse seed file: %w", err)
	}

	entities := make([]models.MonitoredEntity, 0, len(f.Entities))
	for i, e := range f.Entities {
		if e.Name == "" {
			return nil, nil, fmt.Errorf("entity %d: name is required", i)
		}
		typ := models.EntityType(e.Type)
		if typ == "" {
			typ = models.EntityPerson
		}
		if !typ.Valid() {
			return nil, nil, fmt.Errorf("entity %q: invalid type %q", e.Name, e.Type)
		}
		active := true
		if e.Active != nil {
			active = *e.Active
		}
		entities = append(entities, models.MonitoredEntity{
			ID:      e.ID,
			Name:    e.Name,
			Aliases: e.Aliases,
			Type:    typ,
			Active:  active,
		})
	}

	comments := make([]models.Comment, 0, len(f.Comments))
	for i, c := range f.Comments {
		if c.ID == "" {
			return nil, nil, fmt.Errorf("comment %d: id is required", i)
		}
		postedAt := c.PostedAt
		if postedAt.IsZero() {
			postedAt = now
		}
		comments = append(comments, models.Comment{
			ID:          c.ID,
			Text:        c.Text,
			Likes:       c.Likes,
			PostCaption: c.Caption,
			PostedAt:    postedAt.UTC(),
		})
	}
	return entities, comments, nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	admin, ok := signalStore.(store.Admin)
	if !ok {
		return errors.New("configured store does not support seeding")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	entities, comments, err := parseSeed(data, time.Now().UTC())
	if err != nil {
		return err
	}

	for _, e := range entities {
		if err := admin.UpsertEntity(ctx, e); err != nil {
			return fmt.Errorf("upsert entity %q: %w", e.Name, err)
		}
	}
	if len(comments) > 0 {
		if err := admin.SaveComments(ctx, comments); err != nil {
			return fmt.Errorf("save comments: %w", err)
		}
	}

	logger.Info("seeded store", "entities", len(entities), "comments", len(comments))
	newPrinter(cmd.OutOrStdout()).ok("Seeded %d entities and %d comments", len(entities), len(comments))
	return nil
}
