// Command seed populates the styles and prompt templates the story
// pipeline depends on. Run it once against a fresh database; story
// processing fails without an active template per submission type.
package main

import (
	"flag"
	"fmt"
	"os"

	"gorm.io/gorm"

	"ananse-ntentan/backend/internal/models"
	"ananse-ntentan/backend/pkg/config"
)

const storyPromptText = `You are a creative storytelling AI that transforms user stories into engaging comic-style narratives.

TASK: Convert the user's story into a structured comic narrative with 4-6 panels.

OUTPUT FORMAT (respond with valid JSON only):
{
  "panels": [
    {
      "number": 1,
      "scene": "Brief scene setting",
      "description": "Visual description of what's happening",
      "dialogue": "Character dialogue or narration"
    }
  ],
  "narration": "A complete audio-ready narration script that tells the full story in an engaging way, suitable for text-to-speech."
}

GUIDELINES:
- Create 4-6 engaging panels
- Each panel should have clear visual descriptions
- Include compelling dialogue or narration
- The narration should be conversational and engaging
- Focus on emotional impact and story flow
- Keep it concise but impactful`

var storyGuidelines = models.StringList{
	"Generate 4-6 panels per story",
	"Include clear scene settings",
	"Write engaging dialogue",
	"Create a coherent narrative arc",
	"Make narration suitable for audio",
}

func promptTemplates() []models.PromptTemplate {
	templates := make([]models.PromptTemplate, 0, len(models.StoryTypes))
	for _, storyType := range models.StoryTypes {
		templates = append(templates, models.PromptTemplate{
			Name:       fmt.Sprintf("%s story generator v1", storyType),
			Type:       storyType,
			PromptText: storyPromptText,
			Guidelines: storyGuidelines,
			Version:    "1.0",
			IsActive:   true,
		})
	}
	return templates
}

var artisticStyles = []models.ArtisticStyle{
	{
		Name:            "Standard Comic",
		Slug:            "default",
		Description:     "A classic western comic book style with clear lines and vibrant colors.",
		PromptModifiers: models.StringList{"comic book style", "vibrant colors", "clear outlines", "action shot"},
		Popularity:      100,
		IsActive:        true,
	},
	{
		Name:            "Noir",
		Slug:            "noir",
		Description:     "Dark, moody, high contrast black and white style.",
		PromptModifiers: models.StringList{"noir style", "high contrast", "black and white", "dramatic shadows"},
		Popularity:      50,
		IsActive:        true,
	},
	{
		Name:            "Watercolor",
		Slug:            "watercolor",
		Description:     "Soft, painterly style with bleeding colors.",
		PromptModifiers: models.StringList{"watercolor painting", "soft edges", "dreamy atmosphere"},
		Popularity:      60,
		IsActive:        true,
	},
}

var audioStyles = []models.AudioStyle{
	{
		Name:        "Standard Narrator",
		Slug:        "default",
		Description: "A clear, balanced voice suitable for general storytelling.",
		VoiceSettings: models.VoiceSettings{
			VoiceType:    "coqui/XTTS-v2",
			SpeakingRate: 1.0,
		},
		Mood:       "Neutral",
		Popularity: 100,
		IsActive:   true,
	},
	{
		Name:        "Suspenseful",
		Slug:        "suspense",
		Description: "Slow, deep voice for scary or tense stories.",
		VoiceSettings: models.VoiceSettings{
			VoiceType:    "coqui/XTTS-v2",
			SpeakingRate: 0.8,
			Pitch:        -0.5,
		},
		Mood:       "Tense",
		Popularity: 40,
		IsActive:   true,
	},
}

func main() {
	stylesPtr := flag.Bool("styles", false, "Seed artistic and audio styles")
	promptsPtr := flag.Bool("prompts", false, "Seed prompt templates")
	allPtr := flag.Bool("all", false, "Seed everything")
	flag.Parse()

	if !*stylesPtr && !*promptsPtr && !*allPtr {
		fmt.Println("Seed Usage:")
		fmt.Println("  -styles    Seed artistic and audio styles")
		fmt.Println("  -prompts   Seed prompt templates")
		fmt.Println("  -all       Seed everything")
		os.Exit(0)
	}

	db, err := config.NewDB()
	if err != nil {
		fmt.Printf("Error connecting to database: %v\n", err)
		os.Exit(1)
	}

	if err := config.Migrate(db,
		&models.ArtisticStyle{},
		&models.AudioStyle{},
		&models.PromptTemplate{},
	); err != nil {
		fmt.Printf("Error migrating: %v\n", err)
		os.Exit(1)
	}

	if *stylesPtr || *allPtr {
		if err := seedStyles(db); err != nil {
			fmt.Printf("Error seeding styles: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Seeded %d artistic and %d audio styles\n", len(artisticStyles), len(audioStyles))
	}

	if *promptsPtr || *allPtr {
		if err := seedPrompts(db); err != nil {
			fmt.Printf("Error seeding prompt templates: %v\n", err)
			os.Exit(1)
		}
		for _, t := range promptTemplates() {
			fmt.Printf("  - %s (%s)\n", t.Name, t.Type)
		}
	}
}

func seedStyles(db *gorm.DB) error {
	if err := db.Where("1 = 1").Delete(&models.ArtisticStyle{}).Error; err != nil {
		return err
	}
	if err := db.Where("1 = 1").Delete(&models.AudioStyle{}).Error; err != nil {
		return err
	}
	for i := range artisticStyles {
		if err := db.Create(&artisticStyles[i]).Error; err != nil {
			return err
		}
	}
	for i := range audioStyles {
		if err := db.Create(&audioStyles[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func seedPrompts(db *gorm.DB) error {
	if err := db.Where("1 = 1").Delete(&models.PromptTemplate{}).Error; err != nil {
		return err
	}
	templates := promptTemplates()
	for i := range templates {
		if err := db.Create(&templates[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
