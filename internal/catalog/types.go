package catalog

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"velora-scenario-service/internal/domain"
)

// File is the catalog document schema.
type File struct {
	Version int         `yaml:"version"`
	Tracks  []fileTrack `yaml:"tracks"`
}

type fileTrack struct {
	ID          string         `yaml:"id"`
	Slug        string         `yaml:"slug"`
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Order       int            `yaml:"order"`
	Scenarios   []fileScenario `yaml:"scenarios"`
}

type fileScenario struct {
	ID           string         `yaml:"id"`
	Code         string         `yaml:"code"`
	Title        string         `yaml:"title"`
	Context      string         `yaml:"context"`
	Assumptions  []string       `yaml:"assumptions"`
	TriggerEvent string         `yaml:"trigger_event"`
	Difficulty   string         `yaml:"difficulty"`
	Order        int            `yaml:"order"`
	Questions    []fileQuestion `yaml:"questions"`
}

type fileQuestion struct {
	ID          string           `yaml:"id"`
	Prompt      string           `yaml:"prompt"`
	Order       int              `yaml:"order"`
	Options     []fileOption     `yaml:"options"`
	Explanation explanationField `yaml:"explanation"`
}

type fileOption struct {
	ID               string        `yaml:"id"`
	Label            string        `yaml:"label"`
	Text             string        `yaml:"text"`
	Correct          bool          `yaml:"correct"`
	Correctness      string        `yaml:"correctness"`
	Scores           domain.Scores `yaml:"scores"`
	WrongExplanation string        `yaml:"wrong_explanation"`
}

type fileExplanation struct {
	CorrectExplanation  string `yaml:"correct_explanation"`
	LenderPerspective   string `yaml:"lender_perspective"`
	BorrowerPerspective string `yaml:"borrower_perspective"`
	LearningOutcome     string `yaml:"learning_outcome"`
}

// explanationField accepts either a mapping or a list holding exactly one mapping,
// so callers always see a single explanation per question.
type explanationField struct {
	value fileExplanation
	set   bool
}

func (f *explanationField) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []fileExplanation
		if err := node.Decode(&list); err != nil {
			return err
		}
		if len(list) != 1 {
			return fmt.Errorf("line %d: expected exactly one explanation, got %d", node.Line, len(list))
		}
		f.value = list[0]
	case yaml.MappingNode:
		if err := node.Decode(&f.value); err != nil {
			return err
		}
	default:
		return fmt.Errorf("line %d: explanation must be a mapping or a list of one mapping", node.Line)
	}
	f.set = true
	return nil
}

// Bundle is a loaded, normalized and validated catalog.
type Bundle struct {
	Tracks    []domain.Track
	Scenarios []domain.Scenario
}
